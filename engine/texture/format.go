package texture

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/spaghettifunk/gfxbridge/engine/program"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
)

var (
	ErrInvalidChannels = errors.New("invalid texture channels")
	ErrInvalidDType    = errors.New("invalid texture dtype")
)

// formats lists the pixel format for every legal channel count of a dtype.
// Only f32 has a 3-channel format.
var formats = map[program.DataType]map[int]metadata.BufferFormat{
	program.F16: {
		1: metadata.BufferFormatR16F,
		2: metadata.BufferFormatRG16F,
		4: metadata.BufferFormatRGBA16F,
	},
	program.U16: {
		1: metadata.BufferFormatR16,
		2: metadata.BufferFormatRG16,
		4: metadata.BufferFormatRGBA16,
	},
	program.U8: {
		1: metadata.BufferFormatR8,
		2: metadata.BufferFormatRG8,
		4: metadata.BufferFormatRGBA8,
	},
	program.F32: {
		1: metadata.BufferFormatR32F,
		2: metadata.BufferFormatRG32F,
		3: metadata.BufferFormatRGB32F,
		4: metadata.BufferFormatRGBA32F,
	},
}

// CheckFormat maps (dtype, channels) to a pixel format, returning an error for
// unsupported pairs. Use it to validate input before calling New.
func CheckFormat(dtype program.DataType, channels int) (metadata.BufferFormat, error) {
	byChannels, ok := formats[dtype]
	if !ok {
		return metadata.BufferFormatUnknown, fmt.Errorf("%w: %s", ErrInvalidDType, dtype)
	}
	format, ok := byChannels[channels]
	if !ok {
		return metadata.BufferFormatUnknown, fmt.Errorf("%w: %d for %s", ErrInvalidChannels, channels, dtype)
	}
	return format, nil
}

// GetFormat is CheckFormat for callers that already validated their input;
// an unsupported pair is fatal.
func GetFormat(dtype program.DataType, channels int) metadata.BufferFormat {
	format, err := CheckFormat(dtype, channels)
	core.Must(err, "texture format")
	return format
}
