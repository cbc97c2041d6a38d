package metadata

/** @brief Pixel formats an image can be created with. */
type BufferFormat int

const (
	BufferFormatUnknown BufferFormat = iota
	BufferFormatR8
	BufferFormatRG8
	BufferFormatRGBA8
	BufferFormatR16
	BufferFormatRG16
	BufferFormatRGBA16
	BufferFormatR16F
	BufferFormatRG16F
	BufferFormatRGBA16F
	BufferFormatR32F
	BufferFormatRG32F
	BufferFormatRGB32F
	BufferFormatRGBA32F
)

type formatInfo struct {
	name          string
	channels      int
	bytesPerPixel int
}

var formatTable = map[BufferFormat]formatInfo{
	BufferFormatUnknown: {"unknown", 0, 0},
	BufferFormatR8:      {"r8", 1, 1},
	BufferFormatRG8:     {"rg8", 2, 2},
	BufferFormatRGBA8:   {"rgba8", 4, 4},
	BufferFormatR16:     {"r16", 1, 2},
	BufferFormatRG16:    {"rg16", 2, 4},
	BufferFormatRGBA16:  {"rgba16", 4, 8},
	BufferFormatR16F:    {"r16f", 1, 2},
	BufferFormatRG16F:   {"rg16f", 2, 4},
	BufferFormatRGBA16F: {"rgba16f", 4, 8},
	BufferFormatR32F:    {"r32f", 1, 4},
	BufferFormatRG32F:   {"rg32f", 2, 8},
	BufferFormatRGB32F:  {"rgb32f", 3, 12},
	BufferFormatRGBA32F: {"rgba32f", 4, 16},
}

func (f BufferFormat) String() string {
	if info, ok := formatTable[f]; ok {
		return info.name
	}
	return "invalid"
}

// Channels returns the number of components per pixel, 0 for unknown formats.
func (f BufferFormat) Channels() int {
	return formatTable[f].channels
}

// BytesPerPixel returns the texel size in bytes, 0 for unknown formats.
func (f BufferFormat) BytesPerPixel() int {
	return formatTable[f].bytesPerPixel
}

// IsKnown reports whether f names an actual pixel format.
func (f BufferFormat) IsKnown() bool {
	return f != BufferFormatUnknown && formatTable[f].bytesPerPixel > 0
}
