package detect

import "sync/atomic"

// Guard is a non-blocking single-flight admission gate: at most one holder
// at a time, and callers never wait for it.
type Guard struct {
	held atomic.Bool
}

// TryAcquire takes the guard if it is free and reports whether it did.
func (g *Guard) TryAcquire() bool {
	return g.held.CompareAndSwap(false, true)
}

// Release frees the guard. Releasing a free guard is a no-op.
func (g *Guard) Release() {
	g.held.Store(false)
}

// Held reports whether a run currently holds the guard.
func (g *Guard) Held() bool {
	return g.held.Load()
}
