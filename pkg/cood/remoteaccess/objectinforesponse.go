package remoteaccess

import (
	"errors"
	"fmt"

	"github.com/hollowgrove/gocood/pkg/cood"
	"github.com/hollowgrove/gocood/pkg/stream"
)

// ErrNoSpaceForOneSubindex is a construction-time logic error: the
// max_response_size budget was too small to hold even one descriptor.
var ErrNoSpaceForOneSubindex = errors.New("remoteaccess: max response size too small for one subindex descriptor")

// ErrMovedFrom is returned by AddFragment when either side has already
// been emptied by a prior merge.
var ErrMovedFrom = errors.New("remoteaccess: object info response was moved-from")

// ErrAlreadyComplete is returned by AddFragment when the receiver already
// covers its full requested range.
var ErrAlreadyComplete = errors.New("remoteaccess: response is already complete")

// ErrFragmentMismatch is returned by AddFragment when the fragment's
// structural fields (object code, data type, subindex count, include flags,
// contiguity) don't match.
var ErrFragmentMismatch = errors.New("remoteaccess: fragment does not match this response")

// ErrDeserialize is returned by Deserialize on any wire-format violation.
var ErrDeserialize = errors.New("remoteaccess: malformed object info response")

// SubindexDescriptor is one per-subindex metadata record, matching the
// wire layout at spec §6: an empty flag, or type/attributes/size plus
// optional name and application-specific bytes.
type SubindexDescriptor struct {
	Empty       bool
	DataType    cood.DataType
	Attributes  cood.Attribute
	MaxSizeBits uint32
	IncludeName bool
	Name        string
	IncludeASM  bool
	ASM         []byte
}

func (d SubindexDescriptor) flags() uint8 {
	var f uint8
	if d.Empty {
		f |= 1 << 0
	}
	if d.IncludeName {
		f |= 1 << 1
	}
	if d.IncludeASM {
		f |= 1 << 2
	}
	if d.MaxSizeBits <= 255 {
		f |= 1 << 3
	}
	if len(d.ASM) <= 255 {
		f |= 1 << 4
	}
	return f
}

func (d SubindexDescriptor) wireSize() int {
	if d.Empty {
		return 1
	}
	size := 1 + 2 + 2 // flags + data_type + attributes
	if d.MaxSizeBits <= 255 {
		size++
	} else {
		size += 4
	}
	if d.IncludeName {
		size += len(d.Name) + 1
	}
	if d.IncludeASM {
		if len(d.ASM) <= 255 {
			size++
		} else {
			size += 4
		}
		size += len(d.ASM)
	}
	return size
}

func (d SubindexDescriptor) serialize(w stream.Writer) error {
	if err := w.WriteUint8(d.flags()); err != nil {
		return err
	}
	if d.Empty {
		return nil
	}
	if err := w.WriteUint16(uint16(d.DataType)); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(d.Attributes)); err != nil {
		return err
	}
	if d.MaxSizeBits <= 255 {
		if err := w.WriteUint8(uint8(d.MaxSizeBits)); err != nil {
			return err
		}
	} else {
		if err := w.WriteUint32(d.MaxSizeBits); err != nil {
			return err
		}
	}
	if d.IncludeName {
		if err := w.WriteString(d.Name); err != nil {
			return err
		}
	}
	if d.IncludeASM {
		if len(d.ASM) <= 255 {
			if err := w.WriteUint8(uint8(len(d.ASM))); err != nil {
				return err
			}
		} else {
			if err := w.WriteUint32(uint32(len(d.ASM))); err != nil {
				return err
			}
		}
		if err := w.WriteUint8Slice(d.ASM); err != nil {
			return err
		}
	}
	return nil
}

func deserializeDescriptor(r stream.Reader) (SubindexDescriptor, error) {
	flags, err := r.ReadUint8()
	if err != nil {
		return SubindexDescriptor{}, err
	}
	d := SubindexDescriptor{Empty: flags&(1<<0) != 0}
	if d.Empty {
		return d, nil
	}
	d.IncludeName = flags&(1<<1) != 0
	d.IncludeASM = flags&(1<<2) != 0
	maxSizeU8 := flags&(1<<3) != 0
	asmSizeU8 := flags&(1<<4) != 0

	dt, err := r.ReadUint16()
	if err != nil {
		return SubindexDescriptor{}, err
	}
	d.DataType = cood.DataType(dt)

	attr, err := r.ReadUint16()
	if err != nil {
		return SubindexDescriptor{}, err
	}
	d.Attributes = cood.Attribute(attr)

	if maxSizeU8 {
		v, err := r.ReadUint8()
		if err != nil {
			return SubindexDescriptor{}, err
		}
		d.MaxSizeBits = uint32(v)
	} else {
		v, err := r.ReadUint32()
		if err != nil {
			return SubindexDescriptor{}, err
		}
		d.MaxSizeBits = v
	}

	if d.IncludeName {
		name, err := r.ReadString()
		if err != nil {
			return SubindexDescriptor{}, err
		}
		d.Name = name
	}

	if d.IncludeASM {
		var n int
		if asmSizeU8 {
			v, err := r.ReadUint8()
			if err != nil {
				return SubindexDescriptor{}, err
			}
			n = int(v)
		} else {
			v, err := r.ReadUint32()
			if err != nil {
				return SubindexDescriptor{}, err
			}
			n = int(v)
		}
		asm, err := r.ReadUint8Slice(n)
		if err != nil {
			return SubindexDescriptor{}, err
		}
		d.ASM = asm
	}
	return d, nil
}

// ObjectInfoResponse is a bounded-size, fragmentable metadata query
// response over one CANopen object's subindex range.
type ObjectInfoResponse struct {
	result cood.SDO

	includeNames bool
	includeASM   bool

	objectCode     cood.ObjectCode
	objectDataType cood.DataType
	name           string

	maxSubIndices int
	firstSubIndex uint8
	lastRequested uint8 // coerced last_subindex asked for at construction

	descriptors []SubindexDescriptor
	compact     bool // ARRAY + !includeASM: descriptors[1] (if present) represents SI1..SIn
	nextSub     int  // -1 once complete

	movedFrom bool
}

// NewError constructs a response carrying a non-OK result; per the data
// model, every other field is then meaningless.
func NewError(result cood.SDO) *ObjectInfoResponse {
	return &ObjectInfoResponse{result: result, nextSub: -1}
}

// New constructs an ObjectInfoResponse over obj's declared subindex range
// [firstSubIndex, lastSubIndex], greedily packing descriptors until
// maxResponseSizeBytes (minus returnStackSizeBytes reserved for the
// enclosing message) is exhausted.
func New(obj cood.Object, firstSubIndex, lastSubIndex uint8, includeNames, includeASM bool, maxResponseSizeBytes, returnStackSizeBytes int) (*ObjectInfoResponse, error) {
	maxSub := obj.MaxSubIndices()
	if maxSub < 1 {
		maxSub = 1
	}
	if maxSub > 256 {
		maxSub = 256
	}

	if int(firstSubIndex) > maxSub-1 {
		firstSubIndex = uint8(maxSub - 1)
	}
	if int(lastSubIndex) > maxSub-1 {
		lastSubIndex = uint8(maxSub - 1)
	}
	if lastSubIndex < firstSubIndex {
		lastSubIndex = firstSubIndex
	}

	resp := &ObjectInfoResponse{
		result:        cood.SDOOK,
		includeNames:  includeNames,
		includeASM:    includeASM,
		objectCode:    obj.Code(),
		objectDataType: obj.DataType(),
		maxSubIndices: maxSub,
		firstSubIndex: firstSubIndex,
		lastRequested: lastSubIndex,
		nextSub:       -1,
	}
	if includeNames {
		resp.name = obj.Name()
	}

	resp.compact = obj.Code() == cood.ObjectArray && !includeASM

	candidates := subindexCandidates(firstSubIndex, lastSubIndex, resp.compact)

	budget := maxResponseSizeBytes - returnStackSizeBytes
	cur := resp.headerSize()

	for i, sub := range candidates {
		desc, err := buildDescriptor(obj, sub, includeNames, includeASM)
		if err != nil {
			return nil, fmt.Errorf("remoteaccess: building descriptor for subindex %d: %w", sub, err)
		}
		size := desc.wireSize()
		if cur+size > budget {
			if len(resp.descriptors) == 0 {
				return nil, ErrNoSpaceForOneSubindex
			}
			resp.nextSub = int(sub)
			return resp, nil
		}
		resp.descriptors = append(resp.descriptors, desc)
		cur += size
		if i == len(candidates)-1 {
			resp.nextSub = -1
		}
	}
	return resp, nil
}

// subindexCandidates returns the logical subindices a construction pass
// should attempt to describe. For an ARRAY without ASM, only SI0 and SI1
// are ever candidates: SI1 stands in for every SI1..SIn.
func subindexCandidates(first, last uint8, compact bool) []uint8 {
	if !compact {
		out := make([]uint8, 0, int(last)-int(first)+1)
		for s := int(first); s <= int(last); s++ {
			out = append(out, uint8(s))
		}
		return out
	}
	var out []uint8
	if first == 0 {
		out = append(out, 0)
		if last >= 1 {
			out = append(out, 1)
		}
	} else {
		out = append(out, 1)
	}
	return out
}

func buildDescriptor(obj cood.Object, subIndex uint8, includeNames, includeASM bool) (SubindexDescriptor, error) {
	meta, err := obj.SubMeta(subIndex)
	if err != nil {
		return SubindexDescriptor{Empty: true}, nil
	}
	d := SubindexDescriptor{
		DataType:    meta.DataType,
		Attributes:  meta.Attributes,
		MaxSizeBits: meta.MaxSizeBits,
		IncludeASM:  includeASM && len(meta.ASM) > 0,
		ASM:         meta.ASM,
	}
	if includeNames && meta.Name != "" {
		d.IncludeName = true
		d.Name = meta.Name
	}
	return d, nil
}

// headerSize is the serialized size of every field preceding the
// descriptor list, given this response's current flags and name.
func (r *ObjectInfoResponse) headerSize() int {
	if !r.result.OK() {
		return 4
	}
	size := 4 + 1 + 1 + 2 // result + flags + object_code + object_data_type
	if r.includeNames {
		size += len(r.name) + 1
	}
	size += 2 + 1 + 2 // max_subindices + first_subindex + descriptor_count
	return size
}

// Serialize writes the full wire representation: header, then every
// stored descriptor in order.
func (r *ObjectInfoResponse) Serialize(w stream.Writer) error {
	if err := w.WriteUint32(uint32(r.result)); err != nil {
		return err
	}
	if !r.result.OK() {
		return nil
	}

	var flags uint8
	if r.includeNames {
		flags |= 1 << 0
	}
	if r.includeASM {
		flags |= 1 << 1
	}
	if err := w.WriteUint8(flags); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(r.objectCode)); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(r.objectDataType)); err != nil {
		return err
	}
	if r.includeNames {
		if err := w.WriteString(r.name); err != nil {
			return err
		}
	}
	if err := w.WriteUint16(uint16(r.maxSubIndices)); err != nil {
		return err
	}
	if err := w.WriteUint8(r.firstSubIndex); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(len(r.descriptors))); err != nil {
		return err
	}
	for _, d := range r.descriptors {
		if err := d.serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize reads a full wire representation, validating structural
// invariants (subindex/descriptor-count bounds) as it goes.
func Deserialize(r stream.Reader) (*ObjectInfoResponse, error) {
	resultRaw, err := r.ReadUint32()
	if err != nil {
		return nil, errors.Join(ErrDeserialize, err)
	}
	resp := &ObjectInfoResponse{result: cood.SDO(resultRaw), nextSub: -1}
	if !resp.result.OK() {
		return resp, nil
	}

	flags, err := r.ReadUint8()
	if err != nil {
		return nil, errors.Join(ErrDeserialize, err)
	}
	resp.includeNames = flags&(1<<0) != 0
	resp.includeASM = flags&(1<<1) != 0

	code, err := r.ReadUint8()
	if err != nil {
		return nil, errors.Join(ErrDeserialize, err)
	}
	resp.objectCode = cood.ObjectCode(code)

	dt, err := r.ReadUint16()
	if err != nil {
		return nil, errors.Join(ErrDeserialize, err)
	}
	resp.objectDataType = cood.DataType(dt)

	if resp.includeNames {
		name, err := r.ReadString()
		if err != nil {
			return nil, errors.Join(ErrDeserialize, err)
		}
		resp.name = name
	}

	maxSub, err := r.ReadUint16()
	if err != nil {
		return nil, errors.Join(ErrDeserialize, err)
	}
	if maxSub < 1 {
		return nil, fmt.Errorf("%w: max_subindices %d out of range", ErrDeserialize, maxSub)
	}
	resp.maxSubIndices = int(maxSub)

	first, err := r.ReadUint8()
	if err != nil {
		return nil, errors.Join(ErrDeserialize, err)
	}
	if int(first) >= resp.maxSubIndices {
		return nil, fmt.Errorf("%w: first_subindex %d out of range", ErrDeserialize, first)
	}
	resp.firstSubIndex = first
	resp.lastRequested = uint8(resp.maxSubIndices - 1)

	count, err := r.ReadUint16()
	if err != nil {
		return nil, errors.Join(ErrDeserialize, err)
	}
	if count < 1 || count > 256 {
		return nil, fmt.Errorf("%w: descriptor_count %d out of range", ErrDeserialize, count)
	}

	resp.compact = resp.objectCode == cood.ObjectArray && !resp.includeASM

	resp.descriptors = make([]SubindexDescriptor, count)
	for i := range resp.descriptors {
		d, err := deserializeDescriptor(r)
		if err != nil {
			return nil, errors.Join(ErrDeserialize, err)
		}
		resp.descriptors[i] = d
	}
	return resp, nil
}

// IsComplete reports whether the response covers the whole requested
// range. When it does not, next holds the subindex the caller should
// query to continue.
func (r *ObjectInfoResponse) IsComplete() (complete bool, next uint8) {
	if r.nextSub < 0 {
		return true, 0
	}
	return false, uint8(r.nextSub)
}

// AddFragment merges other's descriptors into r, validating that other is
// a legal continuation fragment, and empties other (move semantics).
func (r *ObjectInfoResponse) AddFragment(other *ObjectInfoResponse) error {
	if r.movedFrom || other.movedFrom {
		return ErrMovedFrom
	}
	if !r.result.OK() || !other.result.OK() {
		return ErrFragmentMismatch
	}
	if r.nextSub < 0 {
		return ErrAlreadyComplete
	}
	if other.firstSubIndex != uint8(r.nextSub) {
		return fmt.Errorf("%w: fragment starts at %d, expected %d", ErrFragmentMismatch, other.firstSubIndex, r.nextSub)
	}
	if r.objectCode != other.objectCode ||
		r.objectDataType != other.objectDataType ||
		r.maxSubIndices != other.maxSubIndices ||
		r.includeNames != other.includeNames ||
		r.includeASM != other.includeASM {
		return ErrFragmentMismatch
	}

	r.descriptors = append(r.descriptors, other.descriptors...)
	r.nextSub = other.nextSub

	*other = ObjectInfoResponse{movedFrom: true, nextSub: -1}
	return nil
}

// Result returns the response's SDO outcome.
func (r *ObjectInfoResponse) Result() cood.SDO { return r.result }

// ObjectCode returns the queried object's structural kind.
func (r *ObjectInfoResponse) ObjectCode() cood.ObjectCode { return r.objectCode }

// ObjectDataType returns the queried object's declared data type.
func (r *ObjectInfoResponse) ObjectDataType() cood.DataType { return r.objectDataType }

// Name returns the object name, or "" if include_names was false.
func (r *ObjectInfoResponse) Name() string { return r.name }

// MaxSubIndices returns the object's declared subindex count (1..256).
func (r *ObjectInfoResponse) MaxSubIndices() int { return r.maxSubIndices }

// FirstSubindex returns the first subindex this response (or fragment)
// starts at.
func (r *ObjectInfoResponse) FirstSubindex() uint8 { return r.firstSubIndex }

// LastQueriedSubindex returns the coerced last_subindex requested at
// construction, independent of ARRAY compaction: the compact
// representative logically stands for the whole trailing range.
func (r *ObjectInfoResponse) LastQueriedSubindex() uint8 { return r.lastRequested }

// SubindexCount returns the number of physically stored descriptors.
func (r *ObjectInfoResponse) SubindexCount() int { return len(r.descriptors) }

// MovedFrom reports whether this response was emptied by AddFragment.
func (r *ObjectInfoResponse) MovedFrom() bool { return r.movedFrom }

// storedIndexFor maps a logical subindex number to its physical position
// in descriptors, honoring ARRAY compaction where every subindex >= 1
// maps to the single stored SI1 representative.
func (r *ObjectInfoResponse) storedIndexFor(subIndex uint8) (int, bool) {
	if r.compact && subIndex >= 1 {
		pos := 0
		if r.firstSubIndex == 0 {
			pos = 1
		}
		if pos < len(r.descriptors) {
			return pos, true
		}
		return 0, false
	}
	offset := int(subIndex) - int(r.firstSubIndex)
	if offset < 0 || offset >= len(r.descriptors) {
		return 0, false
	}
	return offset, true
}

// GetSubindexDescriptor returns the (possibly compacted) descriptor for a
// logical subindex number.
func (r *ObjectInfoResponse) GetSubindexDescriptor(subIndex uint8) (SubindexDescriptor, bool) {
	i, ok := r.storedIndexFor(subIndex)
	if !ok {
		return SubindexDescriptor{}, false
	}
	return r.descriptors[i], true
}

// GetSubindexByPosition returns the i-th physically stored descriptor,
// for callers iterating the response in wire order.
func (r *ObjectInfoResponse) GetSubindexByPosition(i int) (SubindexDescriptor, bool) {
	if i < 0 || i >= len(r.descriptors) {
		return SubindexDescriptor{}, false
	}
	return r.descriptors[i], true
}

// GetSubindexName returns the descriptor's stored name, synthesizing
// "Subindex N" for ARRAY elements sharing the compact SI1 representative
// (their name was never stored) while returning SI0's real stored name
// as-is.
func (r *ObjectInfoResponse) GetSubindexName(subIndex uint8) string {
	d, ok := r.GetSubindexDescriptor(subIndex)
	if !ok {
		return fmt.Sprintf("Subindex %d", subIndex)
	}
	if r.compact && subIndex >= 1 {
		return fmt.Sprintf("Subindex %d", subIndex)
	}
	if d.IncludeName {
		return d.Name
	}
	return fmt.Sprintf("Subindex %d", subIndex)
}
