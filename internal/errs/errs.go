// Package errs defines the error taxonomy shared across tessera's packages.
package errs

import "errors"

// Sentinel errors, one per category in the engine's error taxonomy.
// Concrete errors returned by packages wrap one of these with fmt.Errorf's
// %w verb and additional structured context; callers discriminate with
// errors.Is against these sentinels.
var (
	// ErrInvalidArgument covers bad dimensions, unknown enum values,
	// contradictory view bounds, and out-of-range option values.
	// Surfaced at the entry point, before any work is submitted.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfMemory is returned when a device or host arena is
	// exhausted and no freeable buffer exists.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrCommunicationFailure marks an unrecoverable transport error.
	// The matrix's local origins remain coherent; remote replicas are
	// undefined after this error and the matrix must be treated as
	// invalidated by the caller.
	ErrCommunicationFailure = errors.New("communication failure")

	// ErrNumericSingular marks a zero pivot or zero diagonal. It is
	// never returned from the driver's entry point — it is recorded in
	// the diagnostics channel (internal/diag) and the factorization
	// proceeds. The sentinel exists so internal plumbing that detects
	// singularity can still use the standard error-wrapping idiom.
	ErrNumericSingular = errors.New("numerically singular")

	// ErrKernelFailure marks a fatal return code from an underlying
	// kernel. The enclosing driver call aborts.
	ErrKernelFailure = errors.New("kernel failure")
)
