//go:build !linux

package cpu

// pinCurrentGoroutine is a no-op outside Linux: sched_setaffinity has no
// portable equivalent, and HostNest correctness never depends on
// pinning — it is a performance hint, not a correctness requirement.
func pinCurrentGoroutine(cpuID int) error { return nil }

func affinitySupported() bool { return false }
