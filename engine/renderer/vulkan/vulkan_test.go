package vulkan

import (
	"errors"
	"sync"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryKnownFormatMaps(t *testing.T) {
	for f := metadata.BufferFormatR8; f <= metadata.BufferFormatRGBA32F; f++ {
		_, ok := vkFormat(f)
		assert.True(t, ok, "format %s", f)
	}
	_, ok := vkFormat(metadata.BufferFormatUnknown)
	assert.False(t, ok)

	format, _ := vkFormat(metadata.BufferFormatRGBA8)
	assert.Equal(t, vk.FormatR8g8b8a8Unorm, format)
}

func TestLayouts(t *testing.T) {
	assert.Equal(t, vk.ImageLayoutUndefined, vkLayout(metadata.ImageLayoutUndefined))
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, vkLayout(metadata.ImageLayoutTransferDst))
	assert.Equal(t, vk.ImageLayoutTransferSrcOptimal, vkLayout(metadata.ImageLayoutTransferSrc))

	access, stage := layoutAccess(metadata.ImageLayoutUndefined)
	assert.Zero(t, access)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), stage)

	access, stage = layoutAccess(metadata.ImageLayoutTransferDst)
	assert.Equal(t, vk.AccessFlags(vk.AccessTransferWriteBit), access)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTransferBit), stage)
}

func TestBufferUsage(t *testing.T) {
	transfer := vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit)
	storage := vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)

	assert.Equal(t, transfer|storage, bufferUsage(0))
	assert.Equal(t, transfer|vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit), bufferUsage(metadata.AllocUsageUniform))
}

func TestBufferSizePadsToWords(t *testing.T) {
	assert.Equal(t, vk.DeviceSize(4), bufferSize(1))
	assert.Equal(t, vk.DeviceSize(12), bufferSize(12))
	assert.Equal(t, vk.DeviceSize(16), bufferSize(13))
}

func TestSharingAcrossQueueFamilies(t *testing.T) {
	same := &VulkanDevice{ComputeQueueIndex: 0, GraphicsQueueIndex: 0}
	mode, families := same.sharing()
	assert.Equal(t, vk.SharingModeExclusive, mode)
	assert.Empty(t, families)
	assert.Equal(t, []uint32{0}, same.queueFamilyIndices())

	split := &VulkanDevice{ComputeQueueIndex: 2, GraphicsQueueIndex: 0}
	mode, families = split.sharing()
	assert.Equal(t, vk.SharingModeConcurrent, mode)
	assert.Equal(t, []uint32{0, 2}, families)
}

func TestResultStrings(t *testing.T) {
	assert.Equal(t, "VK_ERROR_DEVICE_LOST", VulkanResultString(vk.ErrorDeviceLost))
	assert.Equal(t, "VkResult(-12345)", VulkanResultString(vk.Result(-12345)))

	assert.NoError(t, vkCheck("vkQueueSubmit", vk.Success))
	assert.EqualError(t, vkCheck("vkQueueSubmit", vk.ErrorOutOfDeviceMemory), "vkQueueSubmit failed with VK_ERROR_OUT_OF_DEVICE_MEMORY")
}

func TestSafeStrings(t *testing.T) {
	assert.Equal(t, "\x00", VulkanSafeString(""))
	assert.Equal(t, "abc\x00", VulkanSafeString("abc"))
	assert.Equal(t, "abc\x00", VulkanSafeString("abc\x00"))

	in := []string{"a", "b\x00"}
	out := VulkanSafeStrings(in)
	assert.Equal(t, []string{"a\x00", "b\x00"}, out)
	assert.Equal(t, "a", in[0])

	assert.Equal(t, 3, FindFirstZeroInByteArray([]byte{'g', 'p', 'u', 0, 'x'}))
	assert.Equal(t, 2, FindFirstZeroInByteArray([]byte{'o', 'k'}))
}

func TestLockPoolSerializesQueueCalls(t *testing.T) {
	locks := NewVulkanLockPool()
	locks.SetQueueFamily(0)

	var (
		wg      sync.WaitGroup
		running int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locks.SafeQueueCall(0, func() error {
				mu.Lock()
				running++
				if running > maxSeen {
					maxSeen = running
				}
				mu.Unlock()

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)

	boom := errors.New("boom")
	require.ErrorIs(t, locks.SafeQueueCall(7, func() error { return boom }), boom)
	require.ErrorIs(t, locks.SafeCall(ResourceManagement, func() error { return boom }), boom)
}
