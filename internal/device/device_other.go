//go:build !cuda

package device

import "fmt"

func count() int { return 0 }

type noopBackend struct{}

func newBackend() (backend, error) { return noopBackend{}, nil }

func (noopBackend) alloc(device, elems, elemSize int) (Handle, error) {
	return Handle{}, fmt.Errorf("device: no accelerator backend in this build")
}

func (noopBackend) copyToDevice(h Handle, data []byte) error {
	return fmt.Errorf("device: no accelerator backend in this build")
}

func (noopBackend) copyFromDevice(h Handle, data []byte) error {
	return fmt.Errorf("device: no accelerator backend in this build")
}

func (noopBackend) free(h Handle) error { return nil }

func (noopBackend) close() error { return nil }
