package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBitPackingScenario exercises the canonical interleaved bit/byte write
// sequence and confirms it round-trips and matches the documented on-wire
// bytes: a single bit, a single bit, a nibble, four single bits, and a
// 20-bit run sourced from a byte array, all packed LSB-first.
func TestBitPackingScenario(t *testing.T) {
	w := NewMemWriter(-1, LittleEndian)

	require.NoError(t, w.WriteBit(true))
	require.NoError(t, w.WriteBit(false))
	require.NoError(t, w.WriteBits(4, 0x0E))
	require.NoError(t, w.WriteBit(false))
	require.NoError(t, w.WriteBit(true))
	require.NoError(t, w.WriteBit(false))
	require.NoError(t, w.WriteBit(false))

	src := []byte{0x24, 0xB6, 0xF2}
	for i := 0; i < 20; i++ {
		byteIdx := i / 8
		bitIdx := uint(i % 8)
		bit := (src[byteIdx]>>bitIdx)&1 != 0
		require.NoError(t, w.WriteBit(bit))
	}

	require.NoError(t, w.Close())
	got := Bytes(w)
	want := []byte{0xB9, 0x90, 0xD8, 0x0A}
	assert.Equal(t, want, got)

	r := NewMemReader(got, LittleEndian)
	b1, err := r.ReadBit()
	require.NoError(t, err)
	assert.True(t, b1)
	b2, err := r.ReadBit()
	require.NoError(t, err)
	assert.False(t, b2)
	nib, err := r.ReadBits(4)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x0E), nib)
	for _, want := range []bool{false, true, false, false} {
		bit, err := r.ReadBit()
		require.NoError(t, err)
		assert.Equal(t, want, bit)
	}
	for i := 0; i < 20; i++ {
		byteIdx := i / 8
		bitIdx := uint(i % 8)
		wantBit := (src[byteIdx]>>bitIdx)&1 != 0
		bit, err := r.ReadBit()
		require.NoError(t, err)
		assert.Equal(t, wantBit, bit)
	}
	require.NoError(t, r.EnsureAllConsumed(RemTwo))
}

func TestZeroLengthOpsAreNoOps(t *testing.T) {
	w := NewMemWriter(-1, LittleEndian)
	require.NoError(t, w.WriteBit(true))
	before := w.NbCachedBits()
	require.NoError(t, w.WriteBits(0, 0xFF))
	require.NoError(t, w.FillBits(0, true))
	require.NoError(t, w.FillBytes(0, 0xAA))
	assert.Equal(t, before, w.NbCachedBits())
	assert.Equal(t, StateOpen, w.State())

	r := NewMemReader([]byte{0x01}, LittleEndian)
	_, err := r.ReadBit()
	require.NoError(t, err)
	beforeR := r.(*streamReader).cacheLen
	n, err := r.ReadBits(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), n)
	assert.Equal(t, beforeR, r.(*streamReader).cacheLen)
	require.NoError(t, r.Skip(0))
}

func TestByteAlignedWriteFlushesCache(t *testing.T) {
	w := NewMemWriter(-1, LittleEndian)
	require.NoError(t, w.WriteBit(true))
	require.NoError(t, w.WriteUint8(0xAB))
	require.NoError(t, w.Close())
	got := Bytes(w)
	assert.Equal(t, []byte{0x01, 0xAB}, got)
}

func TestByteAlignedReadDiscardsCache(t *testing.T) {
	r := NewMemReader([]byte{0x01, 0xAB}, LittleEndian)
	bit, err := r.ReadBit()
	require.NoError(t, err)
	assert.True(t, bit)
	v, err := r.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAB), v)
}

func TestAlignToByteBoundary(t *testing.T) {
	w := NewMemWriter(-1, LittleEndian)
	require.NoError(t, w.WriteBits(3, 0x5))
	pad, err := w.AlignToByteBoundary(false)
	require.NoError(t, err)
	assert.Equal(t, uint8(5), pad)
	require.NoError(t, w.Close())
	assert.Equal(t, []byte{0x05}, Bytes(w))
}

func TestAlignToByteBoundaryFillOnes(t *testing.T) {
	w := NewMemWriter(-1, LittleEndian)
	require.NoError(t, w.WriteBits(3, 0x5))
	pad, err := w.AlignToByteBoundary(true)
	require.NoError(t, err)
	assert.Equal(t, uint8(5), pad)
	require.NoError(t, w.Close())
	assert.Equal(t, []byte{0xFD}, Bytes(w))
}

func TestReadEmptyStartsAtEndThenErrors(t *testing.T) {
	r := NewMemReader(nil, LittleEndian)
	assert.Equal(t, StateEnd, r.State())
	_, err := r.ReadUint8()
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Equal(t, StateError, r.State())
}

func TestWriteFullTransitionsToEnd(t *testing.T) {
	w := NewMemWriter(1, LittleEndian)
	require.NoError(t, w.WriteUint8(1))
	assert.Equal(t, StateEnd, w.State())
	err := w.WriteUint8(2)
	assert.ErrorIs(t, err, ErrFull)
}

func TestClosedStreamRejectsFurtherOps(t *testing.T) {
	r := NewMemReader([]byte{1, 2, 3}, LittleEndian)
	require.NoError(t, r.Close())
	_, err := r.ReadUint8()
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, r.Close())
}

func TestStringAndLineRoundTrip(t *testing.T) {
	w := NewMemWriter(-1, LittleEndian)
	require.NoError(t, w.WriteString("hello"))
	require.NoError(t, w.WriteLine("world"))
	require.NoError(t, w.Close())

	r := NewMemReader(Bytes(w), LittleEndian)
	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "world", line)
}

func TestEnsureAllConsumedMismatch(t *testing.T) {
	r := NewMemReader([]byte{0xFF}, LittleEndian)
	_, err := r.ReadBits(3)
	require.NoError(t, err)
	err = r.EnsureAllConsumed(RemZero)
	assert.ErrorIs(t, err, ErrRemainingBitsMismatch)
	require.NoError(t, r.EnsureAllConsumed(RemFive))
}

func TestMultiByteEndian(t *testing.T) {
	wLE := NewMemWriter(-1, LittleEndian)
	require.NoError(t, wLE.WriteUint32(0x01020304))
	require.NoError(t, wLE.Close())
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, Bytes(wLE))

	wBE := NewMemWriter(-1, BigEndian)
	require.NoError(t, wBE.WriteUint32(0x01020304))
	require.NoError(t, wBE.Close())
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, Bytes(wBE))

	rBE := NewMemReader(Bytes(wBE), BigEndian)
	v, err := rBE.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01020304), v)
}
