// Package device provides the Devices kernel target's accelerator
// residency layer: device enumeration and a per-device buffer table
// that tracks which tile backing buffers currently live on which
// device. Grounded on internal/backend/cuda's device lifecycle
// (build-tagged package, mutex-protected handle table, explicit Close)
// but rewritten against tile.Tile instead of simd.Mat — none of the
// original lines survive meaningfully, only the shape.
package device

import "fmt"

// Count reports how many accelerator devices are available to the
// Devices kernel target. Without the cuda build tag this is always 0,
// so internal/driver falls back to the host batch path
// (cpu.GemmBatch/TrsmBatch), preserving the invariant that results are
// independent of target.
func Count() int {
	return count()
}

// Handle identifies a single resident buffer on a device.
type Handle struct {
	Device int
	id     int
}

// Table tracks buffers resident on devices. internal/driver opens one
// Table per batched Devices dispatch and closes it when that dispatch
// returns.
type Table struct {
	backend backend
}

// NewTable opens the device backend. Without the cuda build tag it
// succeeds, but the returned table's Alloc and Copy* calls fail.
func NewTable() (*Table, error) {
	b, err := newBackend()
	if err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}
	return &Table{backend: b}, nil
}

// Alloc reserves elems elements of elemSize bytes each on device, returning a
// Handle the caller uses with Copy* and Free.
func (t *Table) Alloc(device, elems, elemSize int) (Handle, error) {
	return t.backend.alloc(device, elems, elemSize)
}

// CopyToDevice transfers host bytes into the buffer behind h.
func (t *Table) CopyToDevice(h Handle, data []byte) error {
	return t.backend.copyToDevice(h, data)
}

// CopyFromDevice transfers the buffer behind h into a host byte slice.
func (t *Table) CopyFromDevice(h Handle, data []byte) error {
	return t.backend.copyFromDevice(h, data)
}

// Free releases the buffer behind h.
func (t *Table) Free(h Handle) error {
	return t.backend.free(h)
}

// Close releases every resource the table still holds open.
func (t *Table) Close() error {
	return t.backend.close()
}

type backend interface {
	alloc(device, elems, elemSize int) (Handle, error)
	copyToDevice(h Handle, data []byte) error
	copyFromDevice(h Handle, data []byte) error
	free(h Handle) error
	close() error
}
