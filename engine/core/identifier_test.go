package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifierPoolReusesReleasedSlots(t *testing.T) {
	ip := NewIdentifierPool()

	a := ip.AcquireNewID("a")
	b := ip.AcquireNewID("b")
	assert.Equal(t, uint32(1), a)
	assert.Equal(t, uint32(2), b)
	assert.Equal(t, "b", ip.Owner(b))

	require.NoError(t, ip.ReleaseID(a))
	assert.Nil(t, ip.Owner(a))
	assert.Equal(t, a, ip.AcquireNewID("c"))
}

func TestIdentifierPoolGrows(t *testing.T) {
	ip := NewIdentifierPool()
	var last uint32
	for i := 0; i < 150; i++ {
		last = ip.AcquireNewID(i)
	}
	assert.Equal(t, uint32(150), last)
}

func TestIdentifierPoolReleaseErrors(t *testing.T) {
	ip := NewIdentifierPool()
	assert.ErrorIs(t, ip.ReleaseID(3), ErrNotInitialized)

	ip.AcquireNewID("x")
	assert.ErrorIs(t, ip.ReleaseID(0), ErrOutOfRange)
	assert.ErrorIs(t, ip.ReleaseID(1000), ErrOutOfRange)
}
