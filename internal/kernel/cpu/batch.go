package cpu

import (
	"runtime"
	"sync"

	"github.com/dlattice/tessera/internal/kernel"
	"github.com/dlattice/tessera/internal/tile"
)

// GemmBatch runs Gemm over a batch of independent (c, a, b) tile
// triples sharing one alpha/beta, fanning the whole batch out across
// workers goroutines instead of letting each triple pay for its own
// scheduler round trip — the collect-then-dispatch shape the HostBatch
// target exists for. Every individual Gemm call itself runs with
// kernel.HostTask, since the batch-level fan-out already supplies the
// parallelism.
func GemmBatch[S tile.Scalar](c, a, b []*tile.Tile[S], alpha, beta S, workers int) {
	n := len(c)
	if n == 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			Gemm(c[i], a[i], b[i], alpha, beta, kernel.HostTask, 1)
		}
		return
	}

	idx := make(chan int, n)
	for i := 0; i < n; i++ {
		idx <- i
	}
	close(idx)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				Gemm(c[i], a[i], b[i], alpha, beta, kernel.HostTask, 1)
			}
		}()
	}
	wg.Wait()
}

// TrsmBatch runs Trsm over a batch of independent (t, b) tile pairs
// sharing one side/uplo/diag/alpha, with the same collect-then-dispatch
// fan-out as GemmBatch.
func TrsmBatch[S tile.Scalar](side kernel.Side, uplo kernel.Uplo, diag kernel.Diag, alpha S, t, b []*tile.Tile[S], workers int) {
	n := len(t)
	if n == 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			Trsm(side, uplo, diag, alpha, t[i], b[i], kernel.HostTask, 1)
		}
		return
	}

	idx := make(chan int, n)
	for i := 0; i < n; i++ {
		idx <- i
	}
	close(idx)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				Trsm(side, uplo, diag, alpha, t[i], b[i], kernel.HostTask, 1)
			}
		}()
	}
	wg.Wait()
}
