package core

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = ConfigureLogger(LoggerOptions{Level: "error", Output: io.Discard})
}

func TestAssert(t *testing.T) {
	assert.NotPanics(t, func() { Assert(true, "never") })

	defer func() {
		r := recover()
		require.NotNil(t, r)
		fe, ok := r.(*FatalError)
		require.True(t, ok)
		assert.Contains(t, fe.Error(), "channels=7")
	}()
	Assert(false, "channels=%d", 7)
}

func TestMust(t *testing.T) {
	assert.NotPanics(t, func() { Must(nil, "ok") })

	cause := errors.New("out of device memory")
	defer func() {
		fe, ok := recover().(*FatalError)
		require.True(t, ok)
		assert.ErrorIs(t, fe, cause)
		assert.Equal(t, "fatal: create image: out of device memory", fe.Error())
	}()
	Must(cause, "create image")
}

func TestSetLogLevel(t *testing.T) {
	assert.NoError(t, SetLogLevel("debug"))
	assert.Error(t, SetLogLevel("chatty"))
	assert.NoError(t, SetLogLevel("error"))
}
