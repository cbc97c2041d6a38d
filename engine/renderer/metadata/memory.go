package metadata

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidExtent     = errors.New("invalid image extent")
	ErrInvalidSize       = errors.New("invalid allocation size")
)

/** @brief How a linear buffer allocation will be used. */
type AllocUsage uint8

const (
	AllocUsageStorage AllocUsage = 1 << iota
	AllocUsageUniform
	AllocUsageVertex
	AllocUsageIndex
)

/** @brief Parameters for allocating a linear buffer. */
type AllocParams struct {
	/** @brief Size in bytes. Must be greater than zero. */
	Size uint64
	/** @brief The host writes into the buffer through Map. */
	HostWrite bool
	/** @brief The host reads the buffer back through Map. */
	HostRead bool
	Usage    AllocUsage
}

func (p AllocParams) Validate() error {
	if p.Size == 0 {
		return ErrInvalidSize
	}
	return nil
}
