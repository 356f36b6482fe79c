//go:build linux

package cpu

import (
	"golang.org/x/sys/unix"
)

// pinCurrentGoroutine pins the calling OS thread to cpuID via
// sched_setaffinity, grounded on cmd/mantle/lineedit_linux.go's use of
// golang.org/x/sys/unix for a raw syscall the stdlib doesn't expose
// (IoctlGetTermios/IoctlSetTermios) — adapted here from terminal
// raw-mode control to CPU affinity control for HostNest worker
// goroutines. The caller must have already locked the calling goroutine
// to its OS thread via runtime.LockOSThread.
func pinCurrentGoroutine(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(0, &set)
}

func affinitySupported() bool { return true }
