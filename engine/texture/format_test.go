package texture

import (
	"testing"

	"github.com/spaghettifunk/gfxbridge/engine/core"
	"github.com/spaghettifunk/gfxbridge/engine/program"
	"github.com/spaghettifunk/gfxbridge/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFormatSupportedPairs(t *testing.T) {
	cases := []struct {
		dtype    program.DataType
		channels int
		want     metadata.BufferFormat
	}{
		{program.F16, 1, metadata.BufferFormatR16F},
		{program.F16, 2, metadata.BufferFormatRG16F},
		{program.F16, 4, metadata.BufferFormatRGBA16F},
		{program.U16, 1, metadata.BufferFormatR16},
		{program.U16, 2, metadata.BufferFormatRG16},
		{program.U16, 4, metadata.BufferFormatRGBA16},
		{program.U8, 1, metadata.BufferFormatR8},
		{program.U8, 2, metadata.BufferFormatRG8},
		{program.U8, 4, metadata.BufferFormatRGBA8},
		{program.F32, 1, metadata.BufferFormatR32F},
		{program.F32, 2, metadata.BufferFormatRG32F},
		{program.F32, 3, metadata.BufferFormatRGB32F},
		{program.F32, 4, metadata.BufferFormatRGBA32F},
	}
	for _, tc := range cases {
		t.Run(tc.want.String(), func(t *testing.T) {
			var got metadata.BufferFormat
			require.NotPanics(t, func() { got = GetFormat(tc.dtype, tc.channels) })
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.channels, got.Channels())
		})
	}
}

func TestGetFormatUnsupportedPairs(t *testing.T) {
	dtypes := []program.DataType{program.F16, program.F32, program.F64, program.U8, program.U16, program.U32, program.I32}
	legal := 0
	for _, dtype := range dtypes {
		for channels := -1; channels <= 6; channels++ {
			_, err := CheckFormat(dtype, channels)
			if err == nil {
				legal++
				continue
			}
			assert.Panics(t, func() { GetFormat(dtype, channels) }, "%s x%d", dtype, channels)
		}
	}
	assert.Equal(t, 13, legal)
}

func TestOnlyF32HasThreeChannels(t *testing.T) {
	for _, dtype := range []program.DataType{program.F16, program.U16, program.U8} {
		_, err := CheckFormat(dtype, 3)
		assert.ErrorIs(t, err, ErrInvalidChannels)
	}
	_, err := CheckFormat(program.F64, 1)
	assert.ErrorIs(t, err, ErrInvalidDType)

	defer func() {
		fe, ok := recover().(*core.FatalError)
		require.True(t, ok)
		assert.ErrorIs(t, fe, ErrInvalidChannels)
	}()
	GetFormat(program.U8, 3)
}
