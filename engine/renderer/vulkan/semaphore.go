package vulkan

import (
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxbridge/engine/renderer"
)

// Semaphore wraps the binary semaphore signalled by one submission. A binary
// semaphore may be waited on by exactly one later submission.
type Semaphore struct {
	stream *Stream
	handle vk.Semaphore
	sub    *submission

	mu       sync.Mutex
	consumed bool
}

var _ renderer.Semaphore = (*Semaphore)(nil)

func newSemaphore(context *VulkanContext) (vk.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var handle vk.Semaphore
	if err := vkCheck("vkCreateSemaphore", vk.CreateSemaphore(context.Device.LogicalDevice, &semaphoreCreateInfo, context.Allocator, &handle)); err != nil {
		return vk.NullSemaphore, err
	}
	return handle, nil
}

// Wait blocks the host until the signalling submission has completed.
func (s *Semaphore) Wait() error {
	return s.sub.wait(s.stream.dev.context)
}

func (s *Semaphore) isConsumed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumed
}

func (s *Semaphore) consume() {
	s.mu.Lock()
	s.consumed = true
	s.mu.Unlock()
}

func (s *Semaphore) destroy(context *VulkanContext) {
	if s.handle != vk.NullSemaphore {
		vk.DestroySemaphore(context.Device.LogicalDevice, s.handle, context.Allocator)
		s.handle = vk.NullSemaphore
	}
}
