package metadata

import "fmt"

/** @brief Allocation identifier reserved for "no allocation". */
const NoAllocation uint32 = 0

/**
 * @brief Opaque reference to a block of device memory or a device image.
 * Owned by the device that created it; holders must request destruction
 * through that device.
 */
type DeviceAllocation struct {
	/** @brief Backend-assigned identity. Zero means no allocation. */
	ID uint32
}

// IsNull reports whether the allocation refers to nothing.
func (da DeviceAllocation) IsNull() bool {
	return da.ID == NoAllocation
}

// At returns a pointer offset bytes into the allocation.
func (da DeviceAllocation) At(offset uint64) DevicePtr {
	return DevicePtr{Alloc: da, Offset: offset}
}

func (da DeviceAllocation) String() string {
	return fmt.Sprintf("alloc#%d", da.ID)
}

/** @brief A (allocation, byte offset) pair addressing a sub-region. */
type DevicePtr struct {
	Alloc  DeviceAllocation
	Offset uint64
}

// At returns a pointer offset further bytes past p.
func (p DevicePtr) At(offset uint64) DevicePtr {
	return DevicePtr{Alloc: p.Alloc, Offset: p.Offset + offset}
}

func (p DevicePtr) String() string {
	return fmt.Sprintf("%s+%d", p.Alloc, p.Offset)
}
