package page

import "sync"

// Monitor is a reentrant lock keyed by an owner token. A second Enter with the same
// owner succeeds immediately; any other owner blocks until the holder has exited as many
// times as it entered.
type Monitor struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner any
	depth int
}

func (m *Monitor) init() {
	if m.cond == nil {
		m.cond = sync.NewCond(&m.mu)
	}
}

// Enter acquires the monitor for owner. owner must be a comparable, non-nil token.
func (m *Monitor) Enter(owner any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	for m.depth > 0 && m.owner != owner {
		m.cond.Wait()
	}
	m.owner = owner
	m.depth++
}

// Exit releases one level of ownership.
func (m *Monitor) Exit(owner any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.depth == 0 || m.owner != owner {
		panic("page: monitor exited by a non-owner")
	}
	m.depth--
	if m.depth == 0 {
		m.owner = nil
		m.cond.Broadcast()
	}
}

// HeldBy reports whether owner currently holds the monitor.
func (m *Monitor) HeldBy(owner any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depth > 0 && m.owner == owner
}
