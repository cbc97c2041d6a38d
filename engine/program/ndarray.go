package program

import (
	"fmt"
	"slices"

	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
)

/**
 * @brief A dense array on the device. Shape[0] varies fastest; every
 * element holds Product(ElementShape) interleaved components.
 */
type Ndarray struct {
	prog         *Program
	DType        DataType
	shape        []int
	ElementShape []int
	alloc        metadata.DeviceAllocation
	size         uint64
}

func (p *Program) CreateNdarray(dtype DataType, shape []int, elementShape ...int) (*Ndarray, error) {
	if dtype.Size() == 0 {
		return nil, fmt.Errorf("ndarray of unknown dtype %s", dtype)
	}
	if len(shape) == 0 {
		return nil, fmt.Errorf("ndarray needs at least one dimension")
	}
	for _, n := range append(slices.Clone(shape), elementShape...) {
		if n <= 0 {
			return nil, fmt.Errorf("ndarray shape %v x %v: dimensions must be positive", shape, elementShape)
		}
	}

	arr := &Ndarray{
		prog:         p,
		DType:        dtype,
		shape:        slices.Clone(shape),
		ElementShape: slices.Clone(elementShape),
	}
	arr.size = uint64(arr.NumElements()) * uint64(arr.ElementSize())

	alloc, err := p.allocate(arr.size)
	if err != nil {
		return nil, fmt.Errorf("ndarray %v: %w", shape, err)
	}
	arr.alloc = alloc

	p.mu.Lock()
	p.ndarrays[arr] = struct{}{}
	p.mu.Unlock()
	return arr, nil
}

func (a *Ndarray) Shape() []int {
	return slices.Clone(a.shape)
}

func (a *Ndarray) Allocation() metadata.DeviceAllocation {
	return a.alloc
}

func (a *Ndarray) DevicePtr() metadata.DevicePtr {
	return a.alloc.At(0)
}

func (a *Ndarray) NumElements() int {
	return metadata.Product(a.shape...)
}

// ElementSize is the byte size of one element including all its components.
func (a *Ndarray) ElementSize() int {
	return a.DType.Size() * metadata.Product(a.ElementShape...)
}

func (a *Ndarray) ByteSize() uint64 {
	return a.size
}

// Write replaces the whole contents. len(data) must equal ByteSize.
func (a *Ndarray) Write(data []byte) error {
	if uint64(len(data)) != a.size {
		return fmt.Errorf("%w: got %d bytes, ndarray holds %d", ErrSizeMismatch, len(data), a.size)
	}
	return a.prog.writeAt(a.DevicePtr(), data)
}

func (a *Ndarray) Read() ([]byte, error) {
	return a.prog.readAt(a.DevicePtr(), a.size)
}

func (a *Ndarray) Destroy() {
	a.prog.mu.Lock()
	_, ok := a.prog.ndarrays[a]
	delete(a.prog.ndarrays, a)
	a.prog.mu.Unlock()
	if ok {
		a.prog.device.DeallocMemory(a.alloc)
	}
}

func (a *Ndarray) String() string {
	return fmt.Sprintf("ndarray(%s, %v, %v, %s)", a.DType, a.shape, a.ElementShape, a.alloc)
}
