//go:build cuda

package device

/*
#cgo LDFLAGS: -lcudart

typedef int cudaError_t;

extern const char* cudaGetErrorString(cudaError_t err);
extern cudaError_t cudaGetDeviceCount(int* count);
extern cudaError_t cudaSetDevice(int device);
extern cudaError_t cudaMalloc(void** ptr, unsigned long long size);
extern cudaError_t cudaFree(void* ptr);
extern cudaError_t cudaMemcpy(void* dst, const void* src, unsigned long long size, int kind);

#define TESSERA_CUDA_MEMCPY_HOST_TO_DEVICE 1
#define TESSERA_CUDA_MEMCPY_DEVICE_TO_HOST 2
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

// Grounded directly on internal/backend/cuda/native/runtime.go's cgo
// forward-declaration pattern (DeviceCount, malloc/free/memcpy over a
// raw cudaStream-less synchronous path); adapted here to move raw byte
// buffers for tile.Tile instead of model weight tensors.

func count() int {
	var n C.int
	if C.cudaGetDeviceCount(&n) != 0 {
		return 0
	}
	return int(n)
}

func cudaErr(err C.cudaError_t, op string) error {
	if err == 0 {
		return nil
	}
	return fmt.Errorf("device: %s failed: %s", op, C.GoString(C.cudaGetErrorString(err)))
}

type cudaBackend struct {
	mu      sync.Mutex
	nextID  int
	ptrs    map[int]unsafe.Pointer
	devices map[int]int
}

func newBackend() (backend, error) {
	return &cudaBackend{
		ptrs:    make(map[int]unsafe.Pointer),
		devices: make(map[int]int),
	}, nil
}

func (b *cudaBackend) alloc(device, elems, elemSize int) (Handle, error) {
	if err := cudaErr(C.cudaSetDevice(C.int(device)), "cudaSetDevice"); err != nil {
		return Handle{}, err
	}
	var ptr unsafe.Pointer
	size := C.ulonglong(elems * elemSize)
	if err := cudaErr(C.cudaMalloc(&ptr, size), "cudaMalloc"); err != nil {
		return Handle{}, err
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.ptrs[id] = ptr
	b.devices[id] = device
	b.mu.Unlock()

	return Handle{Device: device, id: id}, nil
}

func (b *cudaBackend) lookup(h Handle) (unsafe.Pointer, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ptr, ok := b.ptrs[h.id]
	return ptr, ok
}

func (b *cudaBackend) copyToDevice(h Handle, data []byte) error {
	ptr, ok := b.lookup(h)
	if !ok {
		return fmt.Errorf("device: unknown handle")
	}
	if len(data) == 0 {
		return nil
	}
	return cudaErr(C.cudaMemcpy(ptr, unsafe.Pointer(&data[0]), C.ulonglong(len(data)), C.TESSERA_CUDA_MEMCPY_HOST_TO_DEVICE), "cudaMemcpy(H2D)")
}

func (b *cudaBackend) copyFromDevice(h Handle, data []byte) error {
	ptr, ok := b.lookup(h)
	if !ok {
		return fmt.Errorf("device: unknown handle")
	}
	if len(data) == 0 {
		return nil
	}
	return cudaErr(C.cudaMemcpy(unsafe.Pointer(&data[0]), ptr, C.ulonglong(len(data)), C.TESSERA_CUDA_MEMCPY_DEVICE_TO_HOST), "cudaMemcpy(D2H)")
}

func (b *cudaBackend) free(h Handle) error {
	b.mu.Lock()
	ptr, ok := b.ptrs[h.id]
	delete(b.ptrs, h.id)
	delete(b.devices, h.id)
	b.mu.Unlock()
	if !ok {
		return nil
	}
	return cudaErr(C.cudaFree(ptr), "cudaFree")
}

func (b *cudaBackend) close() error {
	b.mu.Lock()
	ids := make([]int, 0, len(b.ptrs))
	for id := range b.ptrs {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := b.free(Handle{id: id}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
