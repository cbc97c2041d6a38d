package vulkan

import (
	"errors"
	"fmt"
	"math"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxbridge/engine/containers"
	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/spaghettifunk/gfxbridge/engine/renderer"
)

type submission struct {
	buffer *VulkanCommandBuffer
	fence  *VulkanFence
	// semaphores this submission waited on; freed once it retires
	waited []*Semaphore

	mu   sync.Mutex
	done bool
	err  error
}

func (sub *submission) wait(context *VulkanContext) error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.done {
		sub.err = sub.fence.Wait(context, math.MaxUint64)
		sub.done = true
	}
	return sub.err
}

func (sub *submission) poll(context *VulkanContext) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.done {
		return true
	}
	if vk.GetFenceStatus(context.Device.LogicalDevice, sub.fence.Handle) != vk.Success {
		return false
	}
	sub.fence.IsSignaled = true
	sub.done = true
	return true
}

// maxInFlight bounds the submissions a stream keeps alive; submitting past it
// first waits for the oldest one.
const maxInFlight = 64

// Stream submits to one hardware queue. Lists submitted here execute in order.
type Stream struct {
	dev    *Device
	name   string
	family uint32
	queue  vk.Queue
	pool   vk.CommandPool

	mu       sync.Mutex
	inflight *containers.RingQueue[*submission]
	closed   bool
}

var _ renderer.Stream = (*Stream)(nil)

func newStream(d *Device, name string, family uint32, queue vk.Queue) (*Stream, error) {
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit | vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if err := vkCheck("vkCreateCommandPool", vk.CreateCommandPool(d.context.Device.LogicalDevice, &poolCreateInfo, d.context.Allocator, &pool)); err != nil {
		return nil, err
	}
	core.LogDebug("%s stream created on queue family %d.", name, family)
	return &Stream{
		dev:      d,
		name:     name,
		family:   family,
		queue:    queue,
		pool:     pool,
		inflight: containers.NewRingQueue[*submission](maxInFlight),
	}, nil
}

func (s *Stream) Name() string {
	return s.name
}

func (s *Stream) NewCommandList() (renderer.CommandList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, renderer.ErrDeviceDestroyed
	}
	return &CommandList{stream: s}, nil
}

func (s *Stream) Submit(cmdlist renderer.CommandList, waits []renderer.Semaphore) (renderer.Semaphore, error) {
	_, sema, err := s.submit(cmdlist, waits, true)
	if err != nil {
		return nil, err
	}
	return sema, nil
}

func (s *Stream) SubmitSynced(cmdlist renderer.CommandList, waits []renderer.Semaphore) error {
	sub, _, err := s.submit(cmdlist, waits, false)
	if err != nil {
		return err
	}
	if err := sub.wait(s.dev.context); err != nil {
		return err
	}
	s.reap(false)
	return nil
}

func (s *Stream) checkWaits(waits []renderer.Semaphore) ([]*Semaphore, error) {
	out := make([]*Semaphore, 0, len(waits))
	for i, w := range waits {
		if w == nil {
			continue
		}
		vs, ok := w.(*Semaphore)
		if !ok || vs.stream.dev != s.dev {
			return nil, fmt.Errorf("%s stream: wait %d: semaphore from another device", s.name, i)
		}
		if vs.isConsumed() {
			return nil, fmt.Errorf("%s stream: wait %d: %w", s.name, i, ErrSemaphoreReused)
		}
		out = append(out, vs)
	}
	return out, nil
}

func (s *Stream) submit(cmdlist renderer.CommandList, waits []renderer.Semaphore, signal bool) (*submission, *Semaphore, error) {
	cl, ok := cmdlist.(*CommandList)
	if !ok || cl.stream != s {
		return nil, nil, renderer.ErrForeignCommandList
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, renderer.ErrDeviceDestroyed
	}
	if cl.submitted {
		return nil, nil, renderer.ErrCommandListSubmitted
	}
	cl.submitted = true

	if s.inflight.IsFull() {
		if err := s.retireOldest(); err != nil {
			core.LogWarn("%s stream: %s", s.name, err)
		}
	}

	waitSemas, err := s.checkWaits(waits)
	if err != nil {
		return nil, nil, err
	}

	context := s.dev.context
	var cmd *VulkanCommandBuffer
	err = context.Locks.SafeCall(CommandPoolManagement, func() error {
		var err error
		if cmd, err = NewVulkanCommandBuffer(context, s.pool); err != nil {
			return err
		}
		if err = cmd.Begin(); err == nil {
			if err = cl.encode(s.dev, cmd.Handle); err == nil {
				err = cmd.End()
			}
		}
		if err != nil {
			cmd.Free(context, s.pool)
		}
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%s stream: %w", s.name, err)
	}

	sub := &submission{buffer: cmd, waited: waitSemas}
	var sema *Semaphore
	if signal {
		handle, err := newSemaphore(context)
		if err != nil {
			s.freeCommandBuffer(cmd)
			return nil, nil, err
		}
		sema = &Semaphore{stream: s, handle: handle, sub: sub}
	}
	if sub.fence, err = NewFence(context, false); err != nil {
		if sema != nil {
			sema.destroy(context)
		}
		s.freeCommandBuffer(cmd)
		return nil, nil, err
	}

	waitHandles := make([]vk.Semaphore, len(waitSemas))
	waitStages := make([]vk.PipelineStageFlags, len(waitSemas))
	for i, w := range waitSemas {
		waitHandles[i] = w.handle
		waitStages[i] = vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: uint32(len(waitHandles)),
		PWaitSemaphores:    waitHandles,
		PWaitDstStageMask:  waitStages,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd.Handle},
	}
	if sema != nil {
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{sema.handle}
	}

	err = context.Locks.SafeQueueCall(s.family, func() error {
		return vkCheck("vkQueueSubmit", vk.QueueSubmit(s.queue, 1, []vk.SubmitInfo{submitInfo}, sub.fence.Handle))
	})
	if err != nil {
		core.LogError("%s stream: %s", s.name, err)
		sub.fence.Destroy(context)
		if sema != nil {
			sema.destroy(context)
		}
		s.freeCommandBuffer(cmd)
		return nil, nil, err
	}
	cmd.UpdateSubmitted()

	for _, w := range waitSemas {
		w.consume()
		s.dev.forget(w)
	}
	if sema != nil {
		s.dev.track(sema)
	}
	if err := s.inflight.Enqueue(sub); err != nil {
		// unreachable: room was made above
		core.Fatalf("%s stream: %s", s.name, err)
	}
	s.reapLocked(false)
	return sub, sema, nil
}

func (s *Stream) freeCommandBuffer(cmd *VulkanCommandBuffer) {
	_ = s.dev.context.Locks.SafeCall(CommandPoolManagement, func() error {
		cmd.Free(s.dev.context, s.pool)
		return nil
	})
}

func (s *Stream) reap(block bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reapLocked(block)
}

// reapLocked retires finished submissions in order, releasing their command
// buffers, fences and the semaphores they consumed.
func (s *Stream) reapLocked(block bool) error {
	var errs []error
	for !s.inflight.IsEmpty() {
		sub, _ := s.inflight.Peek()
		if !block && !sub.poll(s.dev.context) {
			break
		}
		if err := s.retireOldest(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Stream) retireOldest() error {
	sub, err := s.inflight.Dequeue()
	if err != nil {
		return err
	}
	context := s.dev.context
	err = sub.wait(context)
	s.freeCommandBuffer(sub.buffer)
	sub.fence.Destroy(context)
	for _, w := range sub.waited {
		w.destroy(context)
	}
	return err
}

func (s *Stream) CommandSync() error {
	return s.reap(true)
}

func (s *Stream) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.reapLocked(true)

	context := s.dev.context
	vk.DestroyCommandPool(context.Device.LogicalDevice, s.pool, context.Allocator)
	s.pool = vk.NullCommandPool
	return err
}
