// Package program is the compute runtime the texture layer draws from. It
// owns ndarrays and materialized SNode trees on a graphics device and runs
// host kernels on a job system.
package program

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/spaghettifunk/gfxbridge/engine/renderer"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
)

var (
	ErrSizeMismatch = errors.New("data size does not match allocation")
	ErrDestroyed    = errors.New("program destroyed")
)

type Options struct {
	ComputeWorkers int
	JobQueueSize   int
}

type Program struct {
	device renderer.GraphicsDevice
	jobs   *JobSystem

	mu        sync.Mutex
	kernelErr error
	launched  int
	trees     map[int]*snodeTree
	nextTree  int
	ndarrays  map[*Ndarray]struct{}
	destroyed bool
}

func New(device renderer.GraphicsDevice, opts Options) (*Program, error) {
	if opts.ComputeWorkers == 0 {
		opts.ComputeWorkers = 1
	}
	jobs, err := NewJobSystem(opts.ComputeWorkers, opts.JobQueueSize)
	if err != nil {
		return nil, err
	}
	return &Program{
		device:   device,
		jobs:     jobs,
		trees:    make(map[int]*snodeTree),
		ndarrays: make(map[*Ndarray]struct{}),
	}, nil
}

func (p *Program) Device() renderer.GraphicsDevice {
	return p.device
}

// Launch queues kernel on the worker pool. Kernels run concurrently with each
// other; Flush orders everything launched so far before later device work.
func (p *Program) Launch(name string, kernel func() error) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return ErrDestroyed
	}
	p.launched++
	p.mu.Unlock()

	return p.jobs.Submit(Job{
		Name: name,
		Run:  kernel,
		OnComplete: func(err error) {
			if err == nil {
				return
			}
			p.mu.Lock()
			if p.kernelErr == nil {
				p.kernelErr = fmt.Errorf("kernel %s: %w", name, err)
			}
			p.mu.Unlock()
		},
	})
}

// Flush waits for queued kernels and returns a semaphore that is signalled
// once everything submitted to the compute stream so far has completed.
func (p *Program) Flush() renderer.Semaphore {
	p.jobs.Wait()

	stream := p.device.GetComputeStream()
	cmdlist, err := stream.NewCommandList()
	core.Must(err, "flush: new command list")
	sema, err := stream.Submit(cmdlist, nil)
	core.Must(err, "flush: submit")
	return sema
}

// Synchronize waits for queued kernels and for the compute stream on the
// host, then returns the first kernel error recorded since the previous
// Synchronize. Nothing waits on the submission from the device side, so it
// carries no signal semaphore.
func (p *Program) Synchronize() error {
	p.jobs.Wait()

	stream := p.device.GetComputeStream()
	cmdlist, err := stream.NewCommandList()
	core.Must(err, "synchronize: new command list")
	err = stream.SubmitSynced(cmdlist, nil)

	p.mu.Lock()
	kerr := p.kernelErr
	p.kernelErr = nil
	p.mu.Unlock()
	return errors.Join(kerr, err)
}

// Launched returns the number of kernels queued over the program's lifetime.
func (p *Program) Launched() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.launched
}

// Destroy drains pending work and releases every ndarray and tree still alive.
func (p *Program) Destroy() error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil
	}
	p.destroyed = true
	p.mu.Unlock()

	var errs []error
	if err := p.jobs.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if err := p.device.GetComputeStream().CommandSync(); err != nil {
		errs = append(errs, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for arr := range p.ndarrays {
		core.LogWarn("program destroyed with live ndarray %s", arr)
		p.device.DeallocMemory(arr.alloc)
	}
	clear(p.ndarrays)
	for id, tree := range p.trees {
		if !tree.alloc.IsNull() {
			p.device.DeallocMemory(tree.alloc)
		}
		delete(p.trees, id)
	}
	return errors.Join(errs...)
}

func (p *Program) allocate(size uint64) (metadata.DeviceAllocation, error) {
	return p.device.AllocateMemory(metadata.AllocParams{
		Size:      size,
		HostWrite: true,
		HostRead:  true,
		Usage:     metadata.AllocUsageStorage,
	})
}

func (p *Program) writeAt(ptr metadata.DevicePtr, data []byte) error {
	mapped, err := p.device.Map(ptr.Alloc)
	if err != nil {
		return err
	}
	defer p.device.Unmap(ptr.Alloc)
	copy(mapped[ptr.Offset:], data)
	return nil
}

func (p *Program) readAt(ptr metadata.DevicePtr, size uint64) ([]byte, error) {
	mapped, err := p.device.Map(ptr.Alloc)
	if err != nil {
		return nil, err
	}
	defer p.device.Unmap(ptr.Alloc)
	out := make([]byte, size)
	copy(out, mapped[ptr.Offset:ptr.Offset+size])
	return out, nil
}
