// Package remoteaccess implements ObjectInfoResponse: a metadata query
// response over a CANopen object, with greedy size-bounded packing,
// in-band fragmentation, and a return-stack routing trail. It is grounded
// on the teacher's SDO gateway framing (pkg/gateway) generalized to the
// dictionary-metadata query this core specifies, and consumes pkg/cood for
// object introspection and pkg/stream for the wire codec.
package remoteaccess

import (
	"github.com/hollowgrove/gocood/pkg/stream"
)

// ReturnStackItem is one routing-trail record a caller pushes onto a
// remote-access request; the response carries the stack back unchanged.
// On the wire it is exactly 8 bytes: a 4-byte id followed by a 4-byte info
// value.
type ReturnStackItem struct {
	ID   uint32
	Info uint32
}

// ReturnStackItemWireSize is the fixed on-wire size of one ReturnStackItem.
const ReturnStackItemWireSize = 8

// Serialize appends the item's 8 wire bytes to w.
func (r ReturnStackItem) Serialize(w stream.Writer) error {
	if err := w.WriteUint32(r.ID); err != nil {
		return err
	}
	return w.WriteUint32(r.Info)
}

// DeserializeReturnStackItem reads one 8-byte record from r.
func DeserializeReturnStackItem(r stream.Reader) (ReturnStackItem, error) {
	id, err := r.ReadUint32()
	if err != nil {
		return ReturnStackItem{}, err
	}
	info, err := r.ReadUint32()
	if err != nil {
		return ReturnStackItem{}, err
	}
	return ReturnStackItem{ID: id, Info: info}, nil
}

// ReturnStack is an ordered, bounded sequence of routing records.
type ReturnStack []ReturnStackItem

// WireSize returns the total bytes the stack occupies on the wire.
func (s ReturnStack) WireSize() int {
	return len(s) * ReturnStackItemWireSize
}

// Serialize appends every item in order.
func (s ReturnStack) Serialize(w stream.Writer) error {
	for _, item := range s {
		if err := item.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// DeserializeReturnStack reads n items from r.
func DeserializeReturnStack(r stream.Reader, n int) (ReturnStack, error) {
	out := make(ReturnStack, n)
	for i := range out {
		item, err := DeserializeReturnStackItem(r)
		if err != nil {
			return nil, err
		}
		out[i] = item
	}
	return out, nil
}
