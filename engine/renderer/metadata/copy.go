package metadata

/** @brief A 3-D extent in pixels. */
type Extent struct {
	X, Y, Z uint32
}

/** @brief A 3-D offset in pixels. */
type Offset struct {
	X, Y, Z uint32
}

/**
 * @brief Layout of a buffer<->image copy. BufferRowLength and
 * BufferImageHeight are in texels; zero means tightly packed according to
 * ImageExtent.
 */
type BufferImageCopyParams struct {
	BufferRowLength   uint32
	BufferImageHeight uint32
	ImageMipLevel     uint32
	ImageOffset       Offset
	ImageExtent       Extent
	ImageBaseLayer    uint32
	/** @brief Zero is treated as one layer. */
	ImageLayerCount uint32
}

// RowLength returns the effective buffer row length in texels.
func (p BufferImageCopyParams) RowLength() uint32 {
	if p.BufferRowLength == 0 {
		return p.ImageExtent.X
	}
	return p.BufferRowLength
}

// ImageHeight returns the effective buffer image height in texels.
func (p BufferImageCopyParams) ImageHeight() uint32 {
	if p.BufferImageHeight == 0 {
		return p.ImageExtent.Y
	}
	return p.BufferImageHeight
}

// BufferSpan returns how many bytes of the buffer the copy touches for the
// given texel size, counted from the buffer pointer.
func (p BufferImageCopyParams) BufferSpan(bytesPerPixel int) uint64 {
	e := p.ImageExtent
	if e.X == 0 || e.Y == 0 || e.Z == 0 {
		return 0
	}
	row := uint64(p.RowLength())
	slice := row * uint64(p.ImageHeight())
	last := uint64(e.Z-1)*slice + uint64(e.Y-1)*row + uint64(e.X)
	return last * uint64(bytesPerPixel)
}
