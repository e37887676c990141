package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimitiveRoundTrip(t *testing.T) {
	w := NewWriter(64)
	w.PutU8(0xAB)
	w.PutU16(0x1234)
	w.PutU32(0xDEADBEEF)
	w.PutU64(0x0102030405060708)
	w.PutI64(-42)
	w.PutBool(true)
	w.PutBool(false)
	w.PutString("hello")
	w.PutBytes([]byte{1, 2, 3})
	w.PutDate(1700000000000)

	r := NewReader(w.Bytes())

	u8, err := r.GetU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAB), u8)

	u16, err := r.GetU16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), u16)

	u32, err := r.GetU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), u32)

	u64, err := r.GetU64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), u64)

	i64, err := r.GetI64()
	require.NoError(t, err)
	assert.Equal(t, int64(-42), i64)

	b1, err := r.GetBool()
	require.NoError(t, err)
	assert.True(t, b1)

	b2, err := r.GetBool()
	require.NoError(t, err)
	assert.False(t, b2)

	s, err := r.GetString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	bs, err := r.GetBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, bs)

	d, err := r.GetDate()
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), d)

	require.NoError(t, r.Finish())
}

func TestOptionalBytes(t *testing.T) {
	w := NewWriter(16)
	w.PutOptionalBytes([]byte("present"), true)
	w.PutOptionalBytes(nil, false)

	r := NewReader(w.Bytes())

	v, present, err := r.GetOptionalBytes()
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, []byte("present"), v)

	v2, present2, err := r.GetOptionalBytes()
	require.NoError(t, err)
	assert.False(t, present2)
	assert.Nil(t, v2)

	require.NoError(t, r.Finish())
}

func TestArrayHeaderRoundTrip(t *testing.T) {
	items := []uint16{0x0001, 0x0101, 0x1001}

	w := NewWriter(16)
	w.PutArrayHeader(len(items))
	for _, it := range items {
		w.PutU16(it)
	}

	r := NewReader(w.Bytes())
	count, err := r.GetArrayCount()
	require.NoError(t, err)
	require.Equal(t, uint32(len(items)), count)

	got := make([]uint16, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := r.GetU16()
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, items, got)
	require.NoError(t, r.Finish())
}

func TestTrailingBytesRejected(t *testing.T) {
	w := NewWriter(4)
	w.PutU16(1)
	w.PutU16(2) // one extra u16 the consumer below never reads

	r := NewReader(w.Bytes())
	_, err := r.GetU16()
	require.NoError(t, err)

	err = r.Finish()
	assert.ErrorIs(t, err, ErrTrailingData)
}

func TestTruncatedInputRejected(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, err := r.GetU32()
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestOutOfRangeLengthRejected(t *testing.T) {
	w := NewWriter(4)
	w.PutU32(1000) // declares 1000 bytes that are never written

	r := NewReader(w.Bytes())
	_, err := r.GetBytes()
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestInvalidBoolByteRejected(t *testing.T) {
	r := NewReader([]byte{0x02})
	_, err := r.GetBool()
	assert.ErrorIs(t, err, ErrBadBool)
}

func TestDeterministicEncoding(t *testing.T) {
	// Invariant 1 (spec §8): encode(V) is byte-identical across runs.
	encodeOnce := func() []byte {
		w := NewWriter(32)
		w.PutU8(7)
		w.PutString("deterministic")
		w.PutDate(1234567890123)
		return w.Bytes()
	}

	a := encodeOnce()
	b := encodeOnce()
	assert.Equal(t, a, b)
}
