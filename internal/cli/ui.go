package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorCyan   = lipgloss.Color("36")  // primary
	colorGreen  = lipgloss.Color("35")  // success
	colorYellow = lipgloss.Color("220") // warnings
	colorWhite  = lipgloss.Color("255") // values
	colorDim    = lipgloss.Color("240") // muted
)

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleSuccess for success messages.
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleLabel       = lipgloss.NewStyle().Foreground(colorDim).Width(12)
)

const iconSuccess = "✓"

// printSuccess prints a success message.
func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

// report is the printable outcome of one solve.
type report struct {
	runID      string
	family     string
	rank       string
	n, m       int
	cost       float64
	converged  bool
	iterations int
	mass       float64
	marginalA  float64 // L1 distance of the plan's row sums to the input
	marginalB  float64
	elapsed    time.Duration
}

// render lays the report out as aligned label/value lines.
func (r report) render() string {
	converged := StyleWarning.Render("no")
	if r.converged {
		converged = StyleSuccess.Render("yes")
	}

	var sb strings.Builder
	sb.WriteString(StyleTitle.Render(appName+" solve") + " " + StyleDim.Render(r.runID) + "\n")
	line := func(label, value string) {
		sb.WriteString("  " + styleLabel.Render(label) + value + "\n")
	}
	line("family", StyleValue.Render(r.family))
	line("rank", StyleValue.Render(r.rank))
	line("shape", StyleNumber.Render(fmt.Sprintf("%dx%d", r.n, r.m)))
	line("cost", StyleNumber.Render(fmt.Sprintf("%.6g", r.cost)))
	line("converged", converged)
	line("iterations", StyleNumber.Render(fmt.Sprintf("%d", r.iterations)))
	line("mass", StyleNumber.Render(fmt.Sprintf("%.6f", r.mass)))
	line("marginals", StyleNumber.Render(fmt.Sprintf("a %.2e  b %.2e", r.marginalA, r.marginalB)))
	line("elapsed", StyleDim.Render(r.elapsed.Round(time.Millisecond).String()))

	return sb.String()
}
