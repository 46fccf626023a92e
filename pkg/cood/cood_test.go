package cood

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowgrove/gocood/pkg/stream"
)

func TestVariableRoundTripUint32(t *testing.T) {
	v := NewVariable(0x2000, "counter", TypeUnsigned32, AttrReadAll|AttrWriteAll, 1, nil, nil)

	w := stream.NewMemWriter(-1, stream.LittleEndian)
	encReader := stream.NewMemReader([]byte{0x78, 0x56, 0x34, 0x12}, stream.LittleEndian)
	sdo := v.Write(0, AttrWriteAll, encReader)
	require.True(t, sdo.OK())

	sdo = v.Read(0, AttrReadAll, w)
	require.True(t, sdo.OK())
	require.NoError(t, w.Close())
	assert.Equal(t, []byte{0x78, 0x56, 0x34, 0x12}, stream.Bytes(w))
}

func TestVariablePermissions(t *testing.T) {
	v := NewVariable(0x2001, "ro", TypeUnsigned8, AttrReadAll, 1, nil, nil)
	w := stream.NewMemWriter(-1, stream.LittleEndian)
	assert.Equal(t, SDOOK, v.Read(0, AttrReadAll, w))

	encReader := stream.NewMemReader([]byte{1}, stream.LittleEndian)
	assert.Equal(t, SDOAttemptToWriteRdOnlyObject, v.Write(0, AttrWriteAll, encReader))
}

func TestVariableCompleteAccessRejected(t *testing.T) {
	v := NewVariable(0x2002, "x", TypeUnsigned8, AttrReadAll|AttrWriteAll, 1, nil, nil)
	w := stream.NewMemWriter(-1, stream.LittleEndian)
	assert.Equal(t, SDOUnsupportedAccessToObject, v.CompleteRead(AttrReadAll, w))
	r := stream.NewMemReader([]byte{1}, stream.LittleEndian)
	assert.Equal(t, SDOUnsupportedAccessToObject, v.CompleteWrite(AttrWriteAll, r))
}

func TestArraySI0Bounds(t *testing.T) {
	a := NewArray(0x3000, "arr", TypeUnsigned8, AttrReadAll|AttrWriteAll, AttrReadAll|AttrWriteAll, 2, 5, nil, nil)

	tooLow := stream.NewMemReader([]byte{1}, stream.LittleEndian)
	assert.Equal(t, SDOValueTooLow, a.Write(0, AttrWriteAll, tooLow))

	tooHigh := stream.NewMemReader([]byte{6}, stream.LittleEndian)
	assert.Equal(t, SDOValueTooHigh, a.Write(0, AttrWriteAll, tooHigh))

	atMin := stream.NewMemReader([]byte{2}, stream.LittleEndian)
	assert.Equal(t, SDOOK, a.Write(0, AttrWriteAll, atMin))
	assert.Equal(t, uint8(2), a.CurrentCount())

	atMax := stream.NewMemReader([]byte{5}, stream.LittleEndian)
	assert.Equal(t, SDOOK, a.Write(0, AttrWriteAll, atMax))
	assert.Equal(t, uint8(5), a.CurrentCount())
}

// TestArrayBitPackedWriteRead reproduces the documented bit2 element
// scenario: writing subindex 3 with value 0b11 sets bits 4-5 of the first
// storage byte and is read back unchanged.
func TestArrayBitPackedWriteRead(t *testing.T) {
	a := NewArray(0x3001, "bits", TypeBit2, AttrReadAll|AttrWriteAll, AttrReadAll|AttrWriteAll, 0, 18, nil, nil)
	si0 := stream.NewMemReader([]byte{18}, stream.LittleEndian)
	require.Equal(t, SDOOK, a.Write(0, AttrWriteAll, si0))

	elemWriter := stream.NewMemReader([]byte{0b11}, stream.LittleEndian)
	require.Equal(t, SDOOK, a.Write(3, AttrWriteAll, elemWriter))

	assert.Equal(t, byte(0b00110000), a.storage[0])

	w := stream.NewMemWriter(-1, stream.LittleEndian)
	require.Equal(t, SDOOK, a.Read(3, AttrReadAll, w))
	require.NoError(t, w.Close())
	assert.Equal(t, []byte{0b11}, stream.Bytes(w))
}

func TestArraySubindexBoundedBySI0NotMax(t *testing.T) {
	a := NewArray(0x3002, "arr", TypeUnsigned8, AttrReadAll|AttrWriteAll, AttrReadAll|AttrWriteAll, 0, 10, nil, nil)
	si0 := stream.NewMemReader([]byte{2}, stream.LittleEndian)
	require.Equal(t, SDOOK, a.Write(0, AttrWriteAll, si0))

	w := stream.NewMemWriter(-1, stream.LittleEndian)
	assert.Equal(t, SDOSubindexNotExisting, a.Read(5, AttrReadAll, w))
}

type countingNotifier struct {
	NopNotifier
	afterWrites int
}

func (n *countingNotifier) OnAfterWrite(obj Object, sub uint8, complete bool) {
	n.afterWrites++
}

func TestNotifierInvokedOnWrite(t *testing.T) {
	n := &countingNotifier{}
	v := NewVariable(0x2003, "x", TypeUnsigned8, AttrReadAll|AttrWriteAll, 1, nil, n)
	r := stream.NewMemReader([]byte{9}, stream.LittleEndian)
	require.Equal(t, SDOOK, v.Write(0, AttrWriteAll, r))
	assert.Equal(t, 1, n.afterWrites)
}
