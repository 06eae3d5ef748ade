package cli

import (
	"time"

	"github.com/charmbracelet/log"
)

// progress tracks the start time of an operation and logs completion with
// the elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time and returns it.
func (p *progress) done(msg string) time.Duration {
	elapsed := time.Since(p.start)
	p.logger.Infof("%s (%s)", msg, elapsed.Round(time.Millisecond))

	return elapsed
}
