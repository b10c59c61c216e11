package epoch

import "reclaim/infra/memory"

// Guard witnesses that a handle is pinned. The zero Guard is unprotected.
// A guard must be released exactly once with Unpin.
type Guard struct {
	handle *Handle
}

// Unprotected returns a guard that is not pinned. Work deferred on it runs
// immediately, so it is only suitable when nothing else can observe the
// retired data.
func Unprotected() Guard { return Guard{} }

// IsUnprotected reports whether g is not backed by a pinned handle.
func (g Guard) IsUnprotected() bool { return g.handle == nil }

// Epoch returns the epoch the guard's handle is pinned at.
func (g Guard) Epoch() Epoch {
	if g.handle == nil {
		return 0
	}
	return Epoch(g.handle.epoch.Load()).Unpinned()
}

// Defer schedules fn to run once no goroutine pinned now can still be
// pinned.
func (g Guard) Defer(fn func()) {
	if g.handle == nil {
		fn()
		return
	}
	g.handle.retire(fn)
}

// Retire hands obj back to r once it is safe to reuse.
func (g Guard) Retire(r memory.Reclaimer, obj any) {
	g.Defer(func() { r.PutAny(obj) })
}

// Flush seals the handle's local garbage into the global queue and runs a
// collection step. It never blocks on other participants.
func (g Guard) Flush() {
	if g.handle == nil {
		return
	}
	g.handle.flush()
}

// Repin moves an outermost guard to the current global epoch, so a long
// running pinned loop does not hold back reclamation.
func (g Guard) Repin() {
	if g.handle == nil {
		return
	}
	g.handle.repin()
}

// Unpin releases the guard.
func (g Guard) Unpin() {
	if g.handle == nil {
		return
	}
	g.handle.unpin()
}
