package cood

import (
	"github.com/hollowgrove/gocood/pkg/rwlock"
	"github.com/hollowgrove/gocood/pkg/stream"
)

// RecordField declares one subindex of a RECORD object at construction
// time. Unlike ARRAY, each field may have its own type and attributes;
// SI0 is always the fixed field count, per CiA 301 RECORD semantics.
type RecordField struct {
	Name       string
	DataType   DataType
	Attributes Attribute
	NElements  int // 1 for scalar fields, buffer capacity for strings
}

type recordEntry struct {
	RecordField
	value []byte
}

// Record is a CANopen RECORD object: a fixed, heterogeneous set of
// subindices 1..N sharing subindex 0 as a read-only field count. This
// object kind is not named in the core's minimal component set but is a
// natural sibling of ARRAY built from the same VARIABLE-style read/write
// machinery, grounded on the teacher's VariableList (pkg/od/variable_list.go).
type Record struct {
	base
	si0Attr Attribute
	entries []recordEntry
}

// NewRecord constructs a RECORD object from an ordered field list; fields[i]
// becomes subindex i+1.
func NewRecord(index uint16, name string, si0Attr Attribute, fields []RecordField, mu *rwlock.RWLock, notifier Notifier) *Record {
	entries := make([]recordEntry, len(fields))
	for i, f := range fields {
		width := int(NativeBits(f.DataType)) / 8
		if width == 0 {
			width = 1
		}
		n := f.NElements
		if n == 0 {
			n = 1
		}
		entries[i] = recordEntry{RecordField: f, value: make([]byte, width*n)}
	}
	return &Record{
		base: base{
			index:    index,
			name:     name,
			code:     ObjectRecord,
			dataType: 0,
			mu:       mu,
			notifier: notifier,
		},
		si0Attr: si0Attr,
		entries: entries,
	}
}

func (r *Record) MaxSubIndices() int { return len(r.entries) + 1 }

func (r *Record) SubMeta(subIndex uint8) (SubMeta, error) {
	if subIndex == 0 {
		return SubMeta{DataType: TypeUnsigned8, Attributes: r.si0Attr, MaxSizeBits: 8, Name: r.name}, nil
	}
	i := int(subIndex) - 1
	if i >= len(r.entries) {
		return SubMeta{}, SDOSubindexNotExisting
	}
	e := r.entries[i]
	n := e.NElements
	if n == 0 {
		n = 1
	}
	return SubMeta{DataType: e.DataType, Attributes: e.Attributes, MaxSizeBits: uint32(WireBits(e.DataType)) * uint32(n), Name: e.Name}, nil
}

// Read serializes subindex 0 (field count) or one field's value.
func (r *Record) Read(subIndex uint8, perms Attribute, w stream.Writer) SDO {
	r.lockRead()
	defer r.unlockRead()

	if subIndex == 0 {
		if !canRead(r.si0Attr, perms) {
			return SDOAttemptToReadWrOnlyObject
		}
		if sdo := r.notify().OnBeforeRead(r, 0, false, false); !sdo.OK() {
			return sdo
		}
		if err := w.WriteUint8(uint8(len(r.entries))); err != nil {
			return mapStreamErr(err)
		}
		return SDOOK
	}

	i := int(subIndex) - 1
	if i >= len(r.entries) {
		return SDOSubindexNotExisting
	}
	e := r.entries[i]
	if !canRead(e.Attributes, perms) {
		return SDOAttemptToReadWrOnlyObject
	}
	if sdo := r.notify().OnBeforeRead(r, subIndex, false, false); !sdo.OK() {
		return sdo
	}
	n := e.NElements
	if n == 0 {
		n = 1
	}
	return NativeToEncoded(e.value, e.DataType, n, false, w)
}

// CompleteRead always fails: like VARIABLE, this core's RECORD rejects
// complete access — there is no single homogeneous codec call that could
// serve heterogeneous fields in one shot.
func (r *Record) CompleteRead(perms Attribute, w stream.Writer) SDO {
	return SDOUnsupportedAccessToObject
}

// Write decodes and commits one field's value. Subindex 0 is never
// written: it fails with SDOAttemptToWriteRdOnlyObject when si0Attr grants
// no write bit, and with SDOUnsupportedAccessToObject otherwise.
func (r *Record) Write(subIndex uint8, perms Attribute, rd stream.Reader) SDO {
	if subIndex == 0 {
		if !canWrite(r.si0Attr, perms) {
			return SDOAttemptToWriteRdOnlyObject
		}
		return SDOUnsupportedAccessToObject
	}

	i := int(subIndex) - 1
	if i >= len(r.entries) {
		return SDOSubindexNotExisting
	}
	e := &r.entries[i]
	if !canWrite(e.Attributes, perms) {
		return SDOAttemptToWriteRdOnlyObject
	}

	n := e.NElements
	if n == 0 {
		n = 1
	}
	shadow := make([]byte, len(e.value))
	if sdo := EncodedToNative(rd, e.DataType, n, false, shadow); !sdo.OK() {
		return sdo
	}
	if err := rd.EnsureAllConsumed(stream.RemSevenOrLess); err != nil {
		return SDODataTypeMismatchTooLong
	}

	r.lockWrite()
	defer r.unlockWrite()

	if sdo := r.notify().OnBeforeWrite(r, subIndex, false, 0, shadow); !sdo.OK() {
		return sdo
	}
	copy(e.value, shadow)
	r.notify().OnAfterWrite(r, subIndex, false)
	return SDOOK
}

// CompleteWrite always fails, mirroring CompleteRead.
func (r *Record) CompleteWrite(perms Attribute, rd stream.Reader) SDO {
	return SDOUnsupportedAccessToObject
}
