package usecase

import (
	"context"
	"sync"
)

// RunCoordinator tracks the newest run per upload session. Beginning a run
// cancels the one it replaces; the replaced run's result must be discarded.
type RunCoordinator struct {
	mu     sync.Mutex
	seq    uint64
	active map[string]*RunTicket
}

func NewRunCoordinator() *RunCoordinator {
	return &RunCoordinator{active: make(map[string]*RunTicket)}
}

// RunTicket identifies one run registered with a RunCoordinator.
type RunTicket struct {
	c      *RunCoordinator
	key    string
	seq    uint64
	cancel context.CancelFunc
}

// Begin registers a run for key and returns the context the run must use.
// An empty key is never superseded.
func (c *RunCoordinator) Begin(parent context.Context, key string) (context.Context, *RunTicket) {
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &RunTicket{c: c, key: key, seq: c.seq, cancel: cancel}
	if key == "" {
		return ctx, t
	}
	if prev, ok := c.active[key]; ok {
		prev.cancel()
	}
	c.active[key] = t
	return ctx, t
}

// Current reports whether no newer run has begun for the ticket's key.
func (t *RunTicket) Current() bool {
	if t.key == "" {
		return true
	}
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	cur, ok := t.c.active[t.key]
	return ok && cur.seq == t.seq
}

// Commit runs fn only if the ticket is still current, and keeps any newer
// run from beginning until fn returns. It reports false without calling fn
// when the ticket has been superseded.
func (t *RunTicket) Commit(fn func() error) (bool, error) {
	if t.key == "" {
		return true, fn()
	}
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if cur, ok := t.c.active[t.key]; !ok || cur.seq != t.seq {
		return false, nil
	}
	return true, fn()
}

// Release ends the run. It is safe to call more than once.
func (t *RunTicket) Release() {
	t.cancel()
	if t.key == "" {
		return
	}
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if cur, ok := t.c.active[t.key]; ok && cur.seq == t.seq {
		delete(t.c.active, t.key)
	}
}

// InFlight returns the number of sessions with a registered run.
func (c *RunCoordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}
