// Package diag implements the non-fatal diagnostics channel the driver
// reports through (see DESIGN.md for the zero-pivot-handling decision):
// zero-pivot observations and bandwidth accounting, both JSON-marshalable
// for internal/api and cmd/tessera to surface. Grounded on the
// go.mod-declared goccy/go-json dependency (present but unexercised
// elsewhere in this tree; this package is the first concrete use of it)
// for fast encode/decode, in place of encoding/json, which is what
// cmd/mantle/{inspect,run}.go otherwise reach for.
package diag

import (
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// SingularEvent records one zero-pivot observation from a tile-local
// factorization.
type SingularEvent struct {
	K         int       `json:"k"`         // driver outer-loop iteration
	Tile      [2]int    `json:"tile"`      // (row, col) of the diagonal tile
	Column    int       `json:"column"`    // column within the tile
	Timestamp time.Time `json:"timestamp"`
}

// Recorder aggregates singular-pivot events and byte-level communication
// volume for one driver.GetrfNoPiv call. Safe for concurrent use by
// every scheduler worker.
type Recorder struct {
	mu        sync.Mutex
	singular  []SingularEvent
	bytesSent int64
	bytesRecv int64
	startedAt time.Time
}

// NewRecorder starts a Recorder with its clock zeroed at creation.
func NewRecorder() *Recorder {
	return &Recorder{startedAt: timeNow()}
}

// RecordSingular appends a SingularEvent. Called from the kernel layer
// by way of internal/driver whenever cpu.GetrfNoPiv reports a zero
// pivot; never raises an error — the factorization proceeds and does
// not abort.
func (r *Recorder) RecordSingular(k, tileRow, tileCol, column int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.singular = append(r.singular, SingularEvent{
		K:         k,
		Tile:      [2]int{tileRow, tileCol},
		Column:    column,
		Timestamp: timeNow(),
	})
}

// AddBytesSent/AddBytesRecv accumulate the mpi_bandwidth token's
// observable bandwidth cost.
func (r *Recorder) AddBytesSent(n int64) { atomic.AddInt64(&r.bytesSent, n) }
func (r *Recorder) AddBytesRecv(n int64) { atomic.AddInt64(&r.bytesRecv, n) }

// Singular returns a copy of the recorded singular-pivot events, in the
// order they were observed.
func (r *Recorder) Singular() []SingularEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SingularEvent, len(r.singular))
	copy(out, r.singular)
	return out
}

// Snapshot is the JSON-serializable view of a Recorder's state at a
// point in time, what internal/api's diagnostics endpoint and
// driver.Report both carry.
type Snapshot struct {
	Singular     []SingularEvent `json:"singular"`
	BytesSent    int64           `json:"bytes_sent"`
	BytesRecv    int64           `json:"bytes_recv"`
	ElapsedNanos int64           `json:"elapsed_nanos"`
}

// Snapshot captures the Recorder's current state.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	singular := make([]SingularEvent, len(r.singular))
	copy(singular, r.singular)
	r.mu.Unlock()

	return Snapshot{
		Singular:     singular,
		BytesSent:    atomic.LoadInt64(&r.bytesSent),
		BytesRecv:    atomic.LoadInt64(&r.bytesRecv),
		ElapsedNanos: int64(timeNow().Sub(r.startedAt)),
	}
}

// MarshalJSON lets a Recorder (or *Recorder) be encoded directly,
// equivalent to encoding its Snapshot.
func (r *Recorder) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Snapshot())
}

// timeNow is a thin indirection so tests can avoid depending on wall
// clock skew across fast CI machines without a fake-clock dependency.
var timeNow = time.Now
