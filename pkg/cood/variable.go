package cood

import (
	"errors"

	"github.com/hollowgrove/gocood/pkg/rwlock"
	"github.com/hollowgrove/gocood/pkg/stream"
)

// Variable is a CANopen VARIABLE (or DOMAIN) object: a single subindex-0
// value of a fixed or flexible-length type. Complete access is always
// rejected, per the source asymmetry preserved at spec §9.
type Variable struct {
	base

	attr    Attribute
	maxSize uint32 // bits; for visible_string this bounds the buffer, not the live length

	value []byte // native-form storage, length = NativeBits(dataType)*nElements/8
	nElem int
}

// NewVariable constructs a VARIABLE object. nElements is 1 for scalar
// types; for visible_string/octet_string it is the buffer capacity in
// bytes. mu may be nil if the owner accepts unsynchronized concurrent
// reads (see base.mu).
func NewVariable(index uint16, name string, dataType DataType, attr Attribute, nElements int, mu *rwlock.RWLock, notifier Notifier) *Variable {
	width := int(NativeBits(dataType))
	if width == 0 {
		width = 8
	}
	bufLen := (width * nElements) / 8
	if bufLen == 0 {
		bufLen = nElements
	}
	return &Variable{
		base: base{
			index:    index,
			name:     name,
			code:     ObjectVariable,
			dataType: dataType,
			mu:       mu,
			notifier: notifier,
		},
		attr:    attr,
		maxSize: uint32(nElements) * uint32(WireBits(dataType)),
		value:   make([]byte, bufLen),
		nElem:   nElements,
	}
}

func (v *Variable) MaxSubIndices() int { return 1 }

func (v *Variable) SubMeta(subIndex uint8) (SubMeta, error) {
	if subIndex != 0 {
		return SubMeta{}, SDOSubindexNotExisting
	}
	return SubMeta{DataType: v.dataType, Attributes: v.attr, MaxSizeBits: v.maxSize, Name: v.name}, nil
}

// SetValue overwrites the live value directly, bypassing permissions and
// notifications. Intended for object construction and test setup.
func (v *Variable) SetValue(native []byte) {
	v.lockWrite()
	defer v.unlockWrite()
	copy(v.value, native)
}

// Value returns a copy of the live native-form value.
func (v *Variable) Value() []byte {
	v.lockRead()
	defer v.unlockRead()
	out := make([]byte, len(v.value))
	copy(out, v.value)
	return out
}

// Read serializes subindex 0 to w under the requested permission mask.
func (v *Variable) Read(subIndex uint8, perms Attribute, w stream.Writer) SDO {
	if subIndex != 0 {
		return SDOSubindexNotExisting
	}
	if !canRead(v.attr, perms) {
		return SDOAttemptToReadWrOnlyObject
	}

	v.lockRead()
	defer v.unlockRead()

	if sdo := v.notify().OnBeforeRead(v, 0, false, false); !sdo.OK() {
		return sdo
	}
	return NativeToEncoded(v.value, v.dataType, v.nElem, false, w)
}

// CompleteRead always fails: VARIABLE objects reject complete access.
func (v *Variable) CompleteRead(perms Attribute, w stream.Writer) SDO {
	return SDOUnsupportedAccessToObject
}

// Write decodes w's subindex-0 payload, validates it, and commits it under
// the requested permission mask.
func (v *Variable) Write(subIndex uint8, perms Attribute, r stream.Reader) SDO {
	if subIndex != 0 {
		return SDOSubindexNotExisting
	}
	if !canWrite(v.attr, perms) {
		return SDOAttemptToWriteRdOnlyObject
	}

	shadow := make([]byte, len(v.value))
	if sdo := EncodedToNative(r, v.dataType, v.nElem, false, shadow); !sdo.OK() {
		return sdo
	}
	if err := r.EnsureAllConsumed(stream.RemSevenOrLess); err != nil {
		if errors.Is(err, stream.ErrRemainingBitsMismatch) {
			return SDODataTypeMismatchTooLong
		}
		return SDOGeneralError
	}

	v.lockWrite()
	defer v.unlockWrite()

	if sdo := v.notify().OnBeforeWrite(v, 0, false, 0, shadow); !sdo.OK() {
		return sdo
	}
	copy(v.value, shadow)
	v.notify().OnAfterWrite(v, 0, false)
	return SDOOK
}

// CompleteWrite always fails: VARIABLE objects reject complete access.
func (v *Variable) CompleteWrite(perms Attribute, r stream.Reader) SDO {
	return SDOUnsupportedAccessToObject
}

// GetSubIdxActualSize returns the current size, in bits, of subindex 0.
// For flexible-length types (visible_string) this invokes OnBeforeRead
// with sizeQuery=true before measuring the live content.
func (v *Variable) GetSubIdxActualSize(subIndex uint8) (uint32, SDO) {
	if subIndex != 0 {
		return 0, SDOSubindexNotExisting
	}

	v.lockRead()
	defer v.unlockRead()

	if v.dataType == TypeVisibleString {
		if sdo := v.notify().OnBeforeRead(v, 0, false, true); !sdo.OK() {
			return 0, sdo
		}
		n := strnlen(v.value)
		return uint32(n) * 8, SDOOK
	}
	return v.maxSize, SDOOK
}
