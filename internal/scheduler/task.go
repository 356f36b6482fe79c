package scheduler

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/dlattice/tessera/internal/kernel"
)

// Task is one unit of dataflow work: a function plus the tokens it
// reads, writes, or both reads and writes. ID is stamped by the pool at
// Submit time if the caller leaves it the zero uuid.UUID, grounded on
// internal/api/helpers.go's use of github.com/google/uuid for request
// correlation ids — here a task correlation id threaded into log
// attributes so a stuck task is traceable.
type Task struct {
	Name     string
	In       []*Token
	Out      []*Token
	InOut    []*Token
	Priority kernel.Priority
	Fn       func(ctx context.Context) error

	ID uuid.UUID
}

func (t *Task) deps() []dep {
	deps := make([]dep, 0, len(t.In)+len(t.Out)+len(t.InOut))
	for _, tok := range t.In {
		deps = append(deps, dep{tok, In})
	}
	for _, tok := range t.Out {
		deps = append(deps, dep{tok, Out})
	}
	for _, tok := range t.InOut {
		deps = append(deps, dep{tok, InOut})
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].token.id < deps[j].token.id })
	// A token declared more than once (the driver's trailing tasks list
	// column[k+1+lookahead] and column[nt-1], which can be the same
	// column) is locked once, exclusively if any declaration writes it.
	out := deps[:0]
	for _, d := range deps {
		if n := len(out); n > 0 && out[n-1].token == d.token {
			if d.access != In {
				out[n-1].access = d.access
			}
			continue
		}
		out = append(out, d)
	}
	return out
}

// acquire locks every declared token in a stable global order (by
// Token.id), so two tasks that both depend on tokens {A, B} never
// acquire them in opposite orders and deadlock each other.
func (t *Task) acquire(deps []dep) {
	for _, d := range deps {
		if d.access == In {
			d.token.mu.RLock()
		} else {
			d.token.mu.Lock()
		}
	}
}

// release unlocks every declared token in reverse acquisition order.
func (t *Task) release(deps []dep) {
	for i := len(deps) - 1; i >= 0; i-- {
		d := deps[i]
		if d.access == In {
			d.token.mu.RUnlock()
		} else {
			d.token.mu.Unlock()
		}
	}
}
