package tile

import (
	"math"
	"math/cmplx"
)

// Scalar is the set of element types tessera factors over: real32,
// real64, complex64, complex128. All four support the
// arithmetic operators Go generics need for the kernels in
// internal/kernel; real-type projection (for norms and pivot tests) is
// derived with AbsScalar below rather than carried as a second type
// parameter.
type Scalar interface {
	~float32 | ~float64 | ~complex64 | ~complex128
}

// AbsScalar returns the magnitude of v as a float64, regardless of
// which of the four Scalar types it is. Used for norm computation and
// for detecting an exactly-zero diagonal (NumericSingular).
func AbsScalar[S Scalar](v S) float64 {
	switch x := any(v).(type) {
	case float32:
		return math.Abs(float64(x))
	case float64:
		return math.Abs(x)
	case complex64:
		return cmplx.Abs(complex128(x))
	case complex128:
		return cmplx.Abs(x)
	default:
		return 0
	}
}

// IsComplexScalar reports whether S is one of the two complex Scalar
// types. Used by ConjTranspose views to decide whether conjugation is
// meaningful or degenerates to a plain Transpose.
func IsComplexScalar[S Scalar]() bool {
	var zero S
	switch any(zero).(type) {
	case complex64, complex128:
		return true
	default:
		return false
	}
}

// ConjScalar returns the complex conjugate of v for complex S, or v
// unchanged for real S.
func ConjScalar[S Scalar](v S) S {
	switch x := any(v).(type) {
	case complex64:
		return any(complex64(cmplx.Conj(complex128(x)))).(S)
	case complex128:
		return any(cmplx.Conj(x)).(S)
	default:
		return v
	}
}

// IsZeroScalar reports whether v is the exact zero value of S — used
// for the NumericSingular check (triggered when a diagonal tile
// contains an exact zero), which must be bit-exact, not a tolerance
// test.
func IsZeroScalar[S Scalar](v S) bool {
	switch x := any(v).(type) {
	case float32:
		return x == 0
	case float64:
		return x == 0
	case complex64:
		return x == 0
	case complex128:
		return x == 0
	default:
		return false
	}
}
