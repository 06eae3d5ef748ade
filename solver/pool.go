package solver

import (
	"sync"

	"github.com/katalvlaran/lvot/sinkhorn"
)

type shape struct{ n, m int }

// workspacePool hands out Sinkhorn workspaces keyed by problem shape. It is
// shared by every call of one solver and safe for concurrent use.
type workspacePool struct {
	mu    sync.Mutex
	pools map[shape]*sync.Pool
}

func newWorkspacePool() *workspacePool {
	return &workspacePool{pools: make(map[shape]*sync.Pool)}
}

func (p *workspacePool) get(n, m int) *sinkhorn.Workspace {
	p.mu.Lock()
	sp, ok := p.pools[shape{n, m}]
	if !ok {
		sp = &sync.Pool{New: func() any { return sinkhorn.NewWorkspace(n, m) }}
		p.pools[shape{n, m}] = sp
	}
	p.mu.Unlock()

	return sp.Get().(*sinkhorn.Workspace)
}

func (p *workspacePool) put(n, m int, ws *sinkhorn.Workspace) {
	if ws == nil {
		return
	}
	p.mu.Lock()
	sp := p.pools[shape{n, m}]
	p.mu.Unlock()
	if sp != nil {
		sp.Put(ws)
	}
}
