package io

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/objio/pkg/transport"
)

func TestVectorPutAtSpansBuffers(t *testing.T) {
	iov := [][]byte{make([]byte, 3), make([]byte, 2), make([]byte, 4)}
	d := VectorBuffer(iov)
	require.NoError(t, d.Reserve(9))

	d.PutAt([]byte("abcd"), 2)
	assert.Equal(t, []byte{0, 0, 'a'}, iov[0])
	assert.Equal(t, []byte("bc"), iov[1])
	assert.Equal(t, []byte{'d', 0, 0, 0}, iov[2])

	assert.ErrorIs(t, d.Reserve(10), transport.ErrInvalid)
}

func TestLinearReserve(t *testing.T) {
	d := LinearBuffer(make([]byte, 8))
	assert.NoError(t, d.Reserve(8))
	assert.ErrorIs(t, d.Reserve(9), transport.ErrInvalid)
}

func TestGrowableReuse(t *testing.T) {
	var d GrowableBuffer
	require.NoError(t, d.Reserve(16))
	d.PutAt([]byte("xy"), 14)
	assert.Equal(t, 16, d.Len())

	require.NoError(t, d.Reserve(4))
	assert.Equal(t, 4, d.Len())
}
