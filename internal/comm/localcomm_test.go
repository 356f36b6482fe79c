package comm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dlattice/tessera/internal/errs"
)

func TestBcastDeliversToAllDestsExceptSelf(t *testing.T) {
	g := NewGrid(4, 0)
	root := g.Comm(0)

	var wg sync.WaitGroup
	got := make([][]byte, 4)
	for _, r := range []int{1, 2, 3} {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			data, err := g.Comm(r).Recv(ctx, 7)
			if err != nil {
				t.Errorf("rank %d Recv: %v", r, err)
				return
			}
			got[r] = data
		}(r)
	}

	if err := root.Bcast(context.Background(), 7, []byte("tile-payload"), []int{0, 1, 2, 3}); err != nil {
		t.Fatalf("Bcast: %v", err)
	}
	wg.Wait()

	for _, r := range []int{1, 2, 3} {
		if string(got[r]) != "tile-payload" {
			t.Errorf("rank %d got %q, want %q", r, got[r], "tile-payload")
		}
	}
}

func TestBcastEmptyDestsIsNoop(t *testing.T) {
	g := NewGrid(2, 0)
	if err := g.Comm(0).Bcast(context.Background(), 1, []byte("x"), nil); err != nil {
		t.Fatalf("empty-dest Bcast should be a no-op, got %v", err)
	}
}

func TestRecvTimesOutAsCommunicationFailure(t *testing.T) {
	g := NewGrid(2, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := g.Comm(1).Recv(ctx, 99)
	if !errors.Is(err, errs.ErrCommunicationFailure) {
		t.Fatalf("expected ErrCommunicationFailure, got %v", err)
	}
}

func TestDisjointTagsDoNotCollide(t *testing.T) {
	g := NewGrid(2, 0)
	root := g.Comm(0)
	ctx := context.Background()

	if err := root.Bcast(ctx, 1, []byte("row"), []int{1}); err != nil {
		t.Fatalf("Bcast tag=1: %v", err)
	}
	if err := root.Bcast(ctx, 2, []byte("col"), []int{1}); err != nil {
		t.Fatalf("Bcast tag=2: %v", err)
	}

	dst := g.Comm(1)
	gotCol, err := dst.Recv(ctx, 2)
	if err != nil || string(gotCol) != "col" {
		t.Fatalf("Recv tag=2 = (%q, %v), want (col, nil)", gotCol, err)
	}
	gotRow, err := dst.Recv(ctx, 1)
	if err != nil || string(gotRow) != "row" {
		t.Fatalf("Recv tag=1 = (%q, %v), want (row, nil)", gotRow, err)
	}
}

func TestBandwidthAccounting(t *testing.T) {
	g := NewGrid(2, 0)
	root := g.Comm(0)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = g.Comm(1).Recv(ctx, 5)
	}()
	payload := make([]byte, 128)
	if err := root.Bcast(ctx, 5, payload, []int{1}); err != nil {
		t.Fatalf("Bcast: %v", err)
	}
	<-done

	if got := root.BytesSent(); got != 128 {
		t.Fatalf("BytesSent() = %d, want 128", got)
	}
}
