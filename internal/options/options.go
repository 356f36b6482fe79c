// Package options implements the driver's option map: a mapping from
// option name to a tagged value, with documented defaults and
// entry-point validation.
package options

import (
	"fmt"
	"runtime"

	"github.com/dlattice/tessera/internal/errs"
	"github.com/dlattice/tessera/internal/kernel"
)

// Name identifies an option key. Unknown names are ignored by Resolve;
// missing names take their documented default.
type Name string

const (
	Target          Name = "Target"
	Lookahead       Name = "Lookahead"
	InnerBlocking   Name = "InnerBlocking"
	MaxPanelThreads Name = "MaxPanelThreads"
)

// Map is the option-name -> tagged-value mapping callers build and pass
// to the driver. Values are int, int64 or kernel.Target; Resolve does
// the narrowing.
type Map map[Name]any

// Resolved holds the fully validated, defaulted options a driver call
// runs with.
type Resolved struct {
	Target          kernel.Target
	Lookahead       int
	InnerBlocking   int
	MaxPanelThreads int
}

// Resolve validates m and fills in defaults, returning errs.ErrInvalidArgument
// for any out-of-range value. It must be called — and must succeed —
// before any task is submitted to the scheduler.
func Resolve(m Map) (Resolved, error) {
	r := Resolved{
		Target:          kernel.HostTask,
		Lookahead:       1,
		InnerBlocking:   16,
		MaxPanelThreads: max(runtime.GOMAXPROCS(0)/2, 1),
	}

	if v, ok := m[Target]; ok {
		t, ok := v.(kernel.Target)
		if !ok {
			return Resolved{}, fmt.Errorf("option %s: expected kernel.Target, got %T: %w", Target, v, errs.ErrInvalidArgument)
		}
		if !t.Valid() {
			return Resolved{}, fmt.Errorf("option %s: unknown target %v: %w", Target, t, errs.ErrInvalidArgument)
		}
		r.Target = t
	}

	if v, ok := m[Lookahead]; ok {
		n, err := asInt(Lookahead, v)
		if err != nil {
			return Resolved{}, err
		}
		if n < 0 {
			return Resolved{}, fmt.Errorf("option %s: must be >= 0, got %d: %w", Lookahead, n, errs.ErrInvalidArgument)
		}
		r.Lookahead = n
	}

	if v, ok := m[InnerBlocking]; ok {
		n, err := asInt(InnerBlocking, v)
		if err != nil {
			return Resolved{}, err
		}
		if n <= 0 {
			return Resolved{}, fmt.Errorf("option %s: must be > 0, got %d: %w", InnerBlocking, n, errs.ErrInvalidArgument)
		}
		r.InnerBlocking = n
	}

	if v, ok := m[MaxPanelThreads]; ok {
		n, err := asInt(MaxPanelThreads, v)
		if err != nil {
			return Resolved{}, err
		}
		maxRuntime := runtime.GOMAXPROCS(0)
		if n < 1 || n > maxRuntime {
			return Resolved{}, fmt.Errorf("option %s: must be in [1,%d], got %d: %w", MaxPanelThreads, maxRuntime, n, errs.ErrInvalidArgument)
		}
		r.MaxPanelThreads = n
	}

	return r, nil
}

func asInt(name Name, v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	default:
		return 0, fmt.Errorf("option %s: expected integer, got %T: %w", name, v, errs.ErrInvalidArgument)
	}
}
