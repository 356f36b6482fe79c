package cpu

import (
	"runtime"
	"sync"

	"github.com/dlattice/tessera/internal/kernel"
)

// parallelRange splits [0, n) into contiguous chunks and runs fn over
// each chunk, in parallel when target is HostNest and serially
// otherwise, pinning each worker goroutine to a CPU where the platform
// supports it. Every HostNest kernel in this package fans out through
// this one function.
func parallelRange(target kernel.Target, workers, n int, fn func(start, end int)) {
	if target != kernel.HostNest || n <= 1 {
		fn(0, n)
		return
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	ncpu := runtime.NumCPU()
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, n)
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(cpuID, start, end int) {
			defer wg.Done()
			if affinitySupported() {
				runtime.LockOSThread()
				defer runtime.UnlockOSThread()
				_ = pinCurrentGoroutine(cpuID)
			}
			fn(start, end)
		}(w%ncpu, start, end)
	}
	wg.Wait()
}
