package metadata

import "fmt"

/** @brief Image dimensionality. */
type ImageDimension int

const (
	ImageDimension2D ImageDimension = iota
	ImageDimension3D
)

func (d ImageDimension) String() string {
	switch d {
	case ImageDimension2D:
		return "2d"
	case ImageDimension3D:
		return "3d"
	}
	return fmt.Sprintf("ImageDimension(%d)", int(d))
}

/**
 * @brief Internal memory arrangement of an image. An image must be in the
 * layout an operation expects before that operation may use it.
 */
type ImageLayout int

const (
	/** @brief Contents undefined; transitioning from here discards them. */
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutGeneral
	/** @brief Destination of transfer (copy) operations. */
	ImageLayoutTransferDst
	/** @brief Source of transfer (copy) operations. */
	ImageLayoutTransferSrc
	/** @brief Sampled by shaders. */
	ImageLayoutShaderRead
	ImageLayoutPresentSrc
)

func (l ImageLayout) String() string {
	switch l {
	case ImageLayoutUndefined:
		return "undefined"
	case ImageLayoutGeneral:
		return "general"
	case ImageLayoutTransferDst:
		return "transfer_dst"
	case ImageLayoutTransferSrc:
		return "transfer_src"
	case ImageLayoutShaderRead:
		return "shader_read"
	case ImageLayoutPresentSrc:
		return "present_src"
	}
	return fmt.Sprintf("ImageLayout(%d)", int(l))
}

/** @brief Parameters for creating a device image. */
type ImageParams struct {
	Dimension ImageDimension
	Format    BufferFormat
	/** @brief Extents in pixels. Z is 1 for 2-D images. */
	X, Y, Z       uint32
	InitialLayout ImageLayout
}

// ByteSize returns the size of the level-0 image in bytes.
func (p ImageParams) ByteSize() uint64 {
	return uint64(p.Format.BytesPerPixel()) * Product(uint64(p.X), uint64(p.Y), uint64(p.Z))
}

// Validate checks extents and format; it does not consult any backend.
func (p ImageParams) Validate() error {
	if !p.Format.IsKnown() {
		return fmt.Errorf("image format %s: %w", p.Format, ErrUnsupportedFormat)
	}
	if p.X == 0 || p.Y == 0 || p.Z == 0 {
		return fmt.Errorf("image extent %dx%dx%d: %w", p.X, p.Y, p.Z, ErrInvalidExtent)
	}
	if p.Dimension == ImageDimension2D && p.Z != 1 {
		return fmt.Errorf("2d image with depth %d: %w", p.Z, ErrInvalidExtent)
	}
	return nil
}
