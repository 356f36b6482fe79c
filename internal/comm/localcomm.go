package comm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Grid owns the shared per-rank inbox state for a simulated process
// grid and the bandwidth limiter every rank's sends are gated by. It
// plays the role a real MPI communicator's internal routing table would
// play; Comm handles obtained from it are the public surface.
type Grid struct {
	states  []*rankState
	limiter *rate.Limiter
}

type rankState struct {
	mu    sync.Mutex
	inbox map[int64]chan []byte

	bytesSent int64
	bytesRecv int64
}

func newRankState() *rankState {
	return &rankState{inbox: make(map[int64]chan []byte)}
}

func (s *rankState) channel(tag int64) chan []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.inbox[tag]
	if !ok {
		ch = make(chan []byte, 64)
		s.inbox[tag] = ch
	}
	return ch
}

// NewGrid builds a size-rank simulated grid. bandwidthBytesPerSec <= 0
// means unmetered (an infinite-rate limiter); otherwise every byte
// moved through Bcast is accounted against it, realizing the
// mpi_bandwidth token as an observable cost rather than a pure
// scheduling handle.
func NewGrid(size int, bandwidthBytesPerSec float64) *Grid {
	if size < 1 {
		panic("comm: grid size must be >= 1")
	}
	limit := rate.Inf
	burst := 1 << 30
	if bandwidthBytesPerSec > 0 {
		limit = rate.Limit(bandwidthBytesPerSec)
		burst = int(bandwidthBytesPerSec)
		if burst < 1 {
			burst = 1
		}
	}
	g := &Grid{
		states:  make([]*rankState, size),
		limiter: rate.NewLimiter(limit, burst),
	}
	for i := range g.states {
		g.states[i] = newRankState()
	}
	return g
}

// Size returns the number of ranks in the grid.
func (g *Grid) Size() int { return len(g.states) }

// Comm returns the Comm handle for rank.
func (g *Grid) Comm(rank int) Comm {
	if rank < 0 || rank >= len(g.states) {
		panic("comm: rank out of range")
	}
	return &localComm{grid: g, rank: rank}
}

type localComm struct {
	grid *Grid
	rank int
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return len(c.grid.states) }

func (c *localComm) BytesSent() int64 {
	return atomic.LoadInt64(&c.grid.states[c.rank].bytesSent)
}

func (c *localComm) BytesRecv() int64 {
	return atomic.LoadInt64(&c.grid.states[c.rank].bytesRecv)
}

func (c *localComm) Bcast(ctx context.Context, tag int64, data []byte, dests []int) error {
	if len(dests) == 0 {
		return nil // empty destination view: no-op (§9 Open Question 3)
	}

	payload := make([]byte, len(data))
	copy(payload, data)

	for _, dst := range dests {
		if dst == c.rank {
			continue
		}
		if dst < 0 || dst >= len(c.grid.states) {
			return wrapFailure("bcast", c.rank, tag, fmt.Errorf("destination rank %d out of range", dst))
		}
		if err := c.grid.limiter.WaitN(ctx, max1(len(payload))); err != nil {
			return wrapFailure("bcast", c.rank, tag, err)
		}

		ch := c.grid.states[dst].channel(tag)
		select {
		case ch <- payload:
			atomic.AddInt64(&c.grid.states[c.rank].bytesSent, int64(len(payload)))
		case <-ctx.Done():
			return wrapFailure("bcast", c.rank, tag, ctx.Err())
		}
	}
	return nil
}

func (c *localComm) Recv(ctx context.Context, tag int64) ([]byte, error) {
	ch := c.grid.states[c.rank].channel(tag)
	select {
	case data := <-ch:
		atomic.AddInt64(&c.grid.states[c.rank].bytesRecv, int64(len(data)))
		return data, nil
	case <-ctx.Done():
		return nil, wrapFailure("recv", c.rank, tag, ctx.Err())
	}
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

var _ Comm = (*localComm)(nil)
