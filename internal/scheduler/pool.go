package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dlattice/tessera/internal/errs"
	"github.com/dlattice/tessera/internal/kernel"
	"github.com/dlattice/tessera/internal/logger"
)

// Pool is the cooperative dataflow task pool: a fixed number of worker
// goroutines pulling from a high-priority and a normal-priority queue.
// A worker takes a normal task only when it finds the high queue empty;
// there is no aging or quota, so a steady stream of high-priority
// submissions can hold normal tasks back. Grounded on
// internal/tensor/gemm.go's gemmPool/matVecPool fixed-worker channel
// pool, generalized from a fixed row-range task to an arbitrary
// token-dependent Task.
type Pool struct {
	workers int
	high    chan *Task
	normal  chan *Task
	wg      sync.WaitGroup

	mu       sync.Mutex
	firstErr error
	log      logger.Logger

	inFlight int64
}

// NewPool starts workers goroutines. workers must be at least
// lookahead+2 so that tasks blocked acquiring a token's lock
// never consume every worker while another task still waiting to run
// holds the token they need — callers pass lookahead through so the
// minimum is enforced once, at construction, rather than at every
// Submit.
func NewPool(workers, lookahead int, log logger.Logger) (*Pool, error) {
	if workers < lookahead+2 {
		return nil, fmt.Errorf("scheduler: workers=%d must be >= lookahead+2=%d: %w", workers, lookahead+2, errs.ErrInvalidArgument)
	}
	if log == nil {
		log = logger.Default()
	}

	p := &Pool{
		workers: workers,
		high:    make(chan *Task, workers*4),
		normal:  make(chan *Task, workers*4),
		log:     log,
	}
	for w := 0; w < workers; w++ {
		go p.runWorker()
	}
	return p, nil
}

// Submit enqueues t, stamping a correlation id if t.ID is unset. It
// returns immediately; the task runs once a worker is free and its
// tokens are acquirable.
func (p *Pool) Submit(t *Task) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	p.wg.Add(1)
	atomic.AddInt64(&p.inFlight, 1)
	if t.Priority == kernel.High {
		p.high <- t
	} else {
		p.normal <- t
	}
}

// Wait blocks until every submitted task has completed, matching the
// driver's "after the loop: wait for all tasks" step.
func (p *Pool) Wait() error {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstErr
}

// Close stops the pool's workers. Callers must call Wait first — Close
// closes the underlying queues, which is only safe once every submitted
// task has been dequeued and run. It does not cancel in-flight tasks;
// cancellation mid-task is not supported.
func (p *Pool) Close() {
	close(p.high)
	close(p.normal)
}

func (p *Pool) runWorker() {
	for {
		t, ok := p.next()
		if !ok {
			return
		}
		p.run(t)
	}
}

// next selects the next runnable task, preferring high priority. It
// blocks until work is available or both queues are closed, in which
// case ok is false. Close is only valid once Wait has returned, at
// which point both queues are already empty, so neither branch of the
// blocking select below can lose a buffered task to the other closing
// first.
func (p *Pool) next() (*Task, bool) {
	select {
	case t, ok := <-p.high:
		if ok {
			return t, true
		}
	default:
	}
	select {
	case t, ok := <-p.high:
		return t, ok
	case t, ok := <-p.normal:
		return t, ok
	}
}

// InFlight returns the number of submitted tasks that have not yet
// finished running, for the observability surface's in-flight task
// count.
func (p *Pool) InFlight() int64 { return atomic.LoadInt64(&p.inFlight) }

func (p *Pool) run(t *Task) {
	defer p.wg.Done()
	defer atomic.AddInt64(&p.inFlight, -1)

	deps := t.deps()
	t.acquire(deps)
	defer t.release(deps)

	log := p.log.With("task", t.Name, "task_id", t.ID.String(), "priority", int(t.Priority))
	if err := t.Fn(context.Background()); err != nil {
		log.Error("task failed", "error", err)
		p.mu.Lock()
		if p.firstErr == nil {
			p.firstErr = fmt.Errorf("scheduler: task %q (%s): %w", t.Name, t.ID, err)
		}
		p.mu.Unlock()
		return
	}
	log.Debug("task completed")
}
