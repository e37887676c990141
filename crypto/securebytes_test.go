package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureBytesZeroLengthStillAllocates(t *testing.T) {
	sb := NewSecureBytes(0)
	assert.Equal(t, 1, sb.Len())
}

func TestSecureBytesZeroInitOnAlloc(t *testing.T) {
	sb := NewSecureBytes(16)
	for _, b := range sb.Bytes() {
		assert.Equal(t, byte(0), b)
	}
}

func TestSecureBytesZeroizeWipesMemory(t *testing.T) {
	sb := NewSecureBytesFrom([]byte("super secret key material"))
	require.False(t, sb.Zeroed())

	sb.Zeroize()

	assert.True(t, sb.Zeroed())
	for _, b := range sb.Bytes() {
		assert.Equal(t, byte(0), b)
	}
}

func TestSecureBytesZeroizeIdempotent(t *testing.T) {
	var wipeCalls int
	SetWipeFunc(func(b []byte) {
		wipeCalls++
		for i := range b {
			b[i] = 0
		}
	})
	defer SetWipeFunc(nil)

	sb := NewSecureBytesFrom([]byte("abc"))
	sb.Zeroize()
	sb.Zeroize()
	sb.Zeroize()

	assert.Equal(t, 1, wipeCalls)
}

func TestSecureBytesCopyOutIsIndependent(t *testing.T) {
	sb := NewSecureBytesFrom([]byte("clone-me"))
	out := sb.CopyOut()
	out[0] = 'X'

	assert.Equal(t, "clone-me", string(sb.Bytes()))
	assert.NotEqual(t, "clone-me", string(out))
}

func TestSecureBytesReleaseAliasesZeroize(t *testing.T) {
	sb := NewSecureBytesFrom([]byte("release-me"))
	sb.Release()
	assert.True(t, sb.Zeroed())
}

func TestInjectedWipeFunctionObservesZerosAtReturn(t *testing.T) {
	// spec §8 invariant 7: memory is all zeros the moment wipe returns.
	var observed []byte
	SetWipeFunc(func(b []byte) {
		for i := range b {
			b[i] = 0
		}
		observed = append([]byte{}, b...)
	})
	defer SetWipeFunc(nil)

	sb := NewSecureBytesFrom([]byte{1, 2, 3, 4})
	sb.Zeroize()

	for _, b := range observed {
		assert.Equal(t, byte(0), b)
	}
}
