package kernel

import "sync/atomic"

// blasThreads models the process-wide "how many threads may a single
// kernel call use" setting. A real BLAS library reads an
// environment variable or its own global for this. No kernel in
// internal/kernel/cpu reads it: those take an explicit worker count,
// and a count of 0 or less falls back to runtime.GOMAXPROCS(0).
var blasThreads int32 = 1

// BLASThreads returns the current process-wide kernel worker count.
func BLASThreads() int {
	return int(atomic.LoadInt32(&blasThreads))
}

// SetBLASThreads sets the process-wide kernel worker count directly.
// Most callers should go through ThreadCountGuard instead, which pairs
// the set with a guaranteed restore.
func SetBLASThreads(n int) {
	atomic.StoreInt32(&blasThreads, int32(n))
}

// ThreadCountGuard saves the current BLASThreads value on Clamp and
// puts it back on Restore, so a panic anywhere inside the guarded
// region still leaves the process-wide setting as it found it. The
// driver wraps every top-level GetrfNoPiv call with one, clamping to 1
// for the duration so inner kernels don't themselves
// fan out while the outer scheduler is already running many workers.
type ThreadCountGuard struct {
	saved int32
	armed bool
}

// Clamp saves the current thread count and sets it to n.
func (g *ThreadCountGuard) Clamp(n int) {
	g.saved = atomic.LoadInt32(&blasThreads)
	g.armed = true
	atomic.StoreInt32(&blasThreads, int32(n))
}

// Restore puts back the value Clamp saved. A no-op if Clamp was never
// called, so defer g.Restore() is always safe.
func (g *ThreadCountGuard) Restore() {
	if !g.armed {
		return
	}
	atomic.StoreInt32(&blasThreads, g.saved)
	g.armed = false
}
