package remoteaccess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowgrove/gocood/pkg/cood"
	"github.com/hollowgrove/gocood/pkg/stream"
)

func TestReturnStackRoundTrip(t *testing.T) {
	stack := ReturnStack{{ID: 1, Info: 0xAA}, {ID: 2, Info: 0xBB}}
	w := stream.NewMemWriter(-1, stream.LittleEndian)
	require.NoError(t, stack.Serialize(w))
	require.NoError(t, w.Close())
	require.Equal(t, stack.WireSize(), len(stream.Bytes(w)))

	r := stream.NewMemReader(stream.Bytes(w), stream.LittleEndian)
	got, err := DeserializeReturnStack(r, 2)
	require.NoError(t, err)
	assert.Equal(t, stack, got)
}

func TestObjectInfoResponseVariableRoundTrip(t *testing.T) {
	v := cood.NewVariable(0x2000, "counter", cood.TypeUnsigned32, cood.AttrReadAll|cood.AttrWriteAll, 1, nil, nil)

	resp, err := New(v, 0, 0, true, true, 4096, 0)
	require.NoError(t, err)
	complete, _ := resp.IsComplete()
	assert.True(t, complete)
	require.Equal(t, 1, resp.SubindexCount())

	w := stream.NewMemWriter(-1, stream.LittleEndian)
	require.NoError(t, resp.Serialize(w))
	require.NoError(t, w.Close())

	r := stream.NewMemReader(stream.Bytes(w), stream.LittleEndian)
	got, err := Deserialize(r)
	require.NoError(t, err)
	assert.True(t, got.Result().OK())
	assert.Equal(t, cood.ObjectVariable, got.ObjectCode())
	assert.Equal(t, "counter", got.Name())
	assert.Equal(t, 1, got.MaxSubIndices())
	assert.Equal(t, 1, got.SubindexCount())

	d, ok := got.GetSubindexDescriptor(0)
	require.True(t, ok)
	assert.False(t, d.Empty)
	assert.Equal(t, cood.TypeUnsigned32, d.DataType)
}

func TestObjectInfoResponseErrorResultShortCircuits(t *testing.T) {
	resp := NewError(cood.SDOObjectDoesNotExist)
	w := stream.NewMemWriter(-1, stream.LittleEndian)
	require.NoError(t, resp.Serialize(w))
	require.NoError(t, w.Close())
	assert.Equal(t, 4, len(stream.Bytes(w)))

	r := stream.NewMemReader(stream.Bytes(w), stream.LittleEndian)
	got, err := Deserialize(r)
	require.NoError(t, err)
	assert.False(t, got.Result().OK())
	assert.Equal(t, cood.SDOObjectDoesNotExist, got.Result())
}

// TestObjectInfoResponseArrayCompaction reproduces the ARRAY + !include_asm
// scenario: a ten-element array's query over its whole range collapses to
// two stored descriptors (SI0 and a single SI1 representative), yet
// get_last_queried_subindex still reports the coerced last subindex asked
// for.
func TestObjectInfoResponseArrayCompaction(t *testing.T) {
	a := cood.NewArray(0x3000, "arr", cood.TypeUnsigned8, cood.AttrReadAll|cood.AttrWriteAll, cood.AttrReadAll|cood.AttrWriteAll, 0, 9, nil, nil)

	resp, err := New(a, 0, 9, true, false, 4096, 0)
	require.NoError(t, err)

	complete, _ := resp.IsComplete()
	assert.True(t, complete)
	assert.Equal(t, 2, resp.SubindexCount())
	assert.Equal(t, uint8(9), resp.LastQueriedSubindex())

	assert.Equal(t, "Subindex 5", resp.GetSubindexName(5))
	d, ok := resp.GetSubindexDescriptor(7)
	require.True(t, ok)
	assert.Equal(t, cood.TypeUnsigned8, d.DataType)
}

// TestObjectInfoResponseFragmentation forces a tiny budget so only one
// descriptor fits in the first response, then verifies AddFragment stitches
// the continuation on and empties the donor.
func TestObjectInfoResponseFragmentation(t *testing.T) {
	a := cood.NewArray(0x3001, "arr", cood.TypeUnsigned32, cood.AttrReadAll|cood.AttrWriteAll, cood.AttrReadAll|cood.AttrWriteAll, 0, 9, nil, nil)

	first, err := New(a, 0, 9, false, true, 19, 0)
	require.NoError(t, err)
	complete, next := first.IsComplete()
	require.False(t, complete)
	assert.Equal(t, uint8(1), next)
	require.Equal(t, 1, first.SubindexCount())

	second, err := New(a, next, 9, false, true, 4096, 0)
	require.NoError(t, err)
	secondComplete, _ := second.IsComplete()
	assert.True(t, secondComplete)

	require.NoError(t, first.AddFragment(second))
	complete, _ = first.IsComplete()
	assert.True(t, complete)
	assert.Equal(t, 10, first.SubindexCount())
	assert.True(t, second.MovedFrom())

	err = first.AddFragment(second)
	assert.ErrorIs(t, err, ErrMovedFrom)
}

func TestObjectInfoResponseNoSpaceForOneSubindex(t *testing.T) {
	v := cood.NewVariable(0x2001, "x", cood.TypeUnsigned32, cood.AttrReadAll, 1, nil, nil)
	_, err := New(v, 0, 0, true, true, 1, 0)
	assert.ErrorIs(t, err, ErrNoSpaceForOneSubindex)
}

func TestObjectInfoResponseAddFragmentRejectsMismatch(t *testing.T) {
	a := cood.NewArray(0x3002, "arr", cood.TypeUnsigned32, cood.AttrReadAll, cood.AttrReadAll, 0, 9, nil, nil)
	b := cood.NewArray(0x3003, "other", cood.TypeUnsigned16, cood.AttrReadAll, cood.AttrReadAll, 0, 9, nil, nil)

	first, err := New(a, 0, 9, false, true, 19, 0)
	require.NoError(t, err)
	_, next := first.IsComplete()

	mismatched, err := New(b, next, 9, false, true, 4096, 0)
	require.NoError(t, err)

	err = first.AddFragment(mismatched)
	assert.ErrorIs(t, err, ErrFragmentMismatch)
}
