package cood

import (
	"github.com/hollowgrove/gocood/pkg/rwlock"
	"github.com/hollowgrove/gocood/pkg/stream"
)

// Array is a CANopen ARRAY object: subindex 0 carries the element count
// (an unsigned 8-bit value within [minSI0, maxSI0]); subindices 1..SI0
// carry homogeneous elements. Bit-packed element types (bitN, boolean) are
// stuffed contiguously into the storage buffer starting at bit 0, per the
// offset algorithm in the package's array bit-access helpers.
type Array struct {
	base

	si0Attr  Attribute
	elemAttr Attribute
	minSI0   uint8
	maxSI0   uint8
	si0      uint8

	bitPacked      bool
	bitsPerElement uint
	elemBytes      int // native width per element when not bit-packed

	storage []byte // length covers maxSI0 elements
}

// NewArray constructs an ARRAY object with capacity for maxSI0 elements of
// elemType. si0 starts at minSI0.
func NewArray(index uint16, name string, elemType DataType, si0Attr, elemAttr Attribute, minSI0, maxSI0 uint8, mu *rwlock.RWLock, notifier Notifier) *Array {
	a := &Array{
		base: base{
			index:    index,
			name:     name,
			code:     ObjectArray,
			dataType: elemType,
			mu:       mu,
			notifier: notifier,
		},
		si0Attr:  si0Attr,
		elemAttr: elemAttr,
		minSI0:   minSI0,
		maxSI0:   maxSI0,
		si0:      minSI0,
	}
	if IsBitPacked(elemType) {
		a.bitPacked = true
		a.bitsPerElement = WireBits(elemType)
		totalBits := int(maxSI0) * int(a.bitsPerElement)
		a.storage = make([]byte, (totalBits+7)/8)
	} else {
		width := int(NativeBits(elemType)) / 8
		if width == 0 {
			width = 1
		}
		a.elemBytes = width
		a.storage = make([]byte, width*int(maxSI0))
	}
	return a
}

func (a *Array) MaxSubIndices() int { return int(a.maxSI0) + 1 }

func (a *Array) SubMeta(subIndex uint8) (SubMeta, error) {
	if subIndex == 0 {
		return SubMeta{DataType: TypeUnsigned8, Attributes: a.si0Attr, MaxSizeBits: 8, Name: a.name}, nil
	}
	if int(subIndex) > int(a.maxSI0) {
		return SubMeta{}, SDOSubindexNotExisting
	}
	return SubMeta{DataType: a.dataType, Attributes: a.elemAttr, MaxSizeBits: uint32(a.elementWireBits())}, nil
}

func (a *Array) elementWireBits() uint {
	if a.bitPacked {
		return a.bitsPerElement
	}
	return uint(a.elemBytes) * 8
}

// CurrentCount returns the live SI0 value.
func (a *Array) CurrentCount() uint8 {
	a.lockRead()
	defer a.unlockRead()
	return a.si0
}

// readBits extracts the value of element subIndex (1-based) from a
// bit-packed storage buffer, per the offset algorithm: bit offset is
// (subIndex-1)*bitsPerElement, loading one or two bytes as needed and
// masking out the element's window.
func (a *Array) readBits(subIndex uint8) uint8 {
	offset := int(subIndex-1) * int(a.bitsPerElement)
	byteIdx := offset / 8
	intra := uint(offset % 8)

	window := uint16(a.storage[byteIdx])
	if intra+a.bitsPerElement > 8 {
		window |= uint16(a.storage[byteIdx+1]) << 8
	}
	mask := uint16(1<<a.bitsPerElement) - 1
	return uint8((window >> intra) & mask)
}

// writeBits stores val into element subIndex's window, clearing only
// those bits before OR-ing in the new value so neighboring elements in the
// same byte are preserved.
func (a *Array) writeBits(subIndex uint8, val uint8) {
	offset := int(subIndex-1) * int(a.bitsPerElement)
	byteIdx := offset / 8
	intra := uint(offset % 8)
	spansTwo := intra+a.bitsPerElement > 8

	window := uint16(a.storage[byteIdx])
	if spansTwo {
		window |= uint16(a.storage[byteIdx+1]) << 8
	}
	elemMask := (uint16(1<<a.bitsPerElement) - 1) << intra
	window = (window &^ elemMask) | (uint16(val) << intra)

	a.storage[byteIdx] = byte(window)
	if spansTwo {
		a.storage[byteIdx+1] = byte(window >> 8)
	}
}

func (a *Array) elementChunk(subIndex uint8) []byte {
	return a.storage[int(subIndex-1)*a.elemBytes : int(subIndex)*a.elemBytes]
}

func (a *Array) elementNative(subIndex uint8) []byte {
	if a.bitPacked {
		return []byte{a.readBits(subIndex)}
	}
	out := make([]byte, a.elemBytes)
	copy(out, a.elementChunk(subIndex))
	return out
}

func (a *Array) commitElement(subIndex uint8, native []byte) {
	if a.bitPacked {
		mask := uint8(1<<a.bitsPerElement) - 1
		a.writeBits(subIndex, native[0]&mask)
		return
	}
	copy(a.elementChunk(subIndex), native)
}

// Read serializes one subindex: 0 yields the current element count, i in
// 1..SI0 yields that element, and i>SI0 is reported as nonexistent even
// if storage capacity (maxSI0) would allow it.
func (a *Array) Read(subIndex uint8, perms Attribute, w stream.Writer) SDO {
	a.lockRead()
	defer a.unlockRead()

	if subIndex == 0 {
		if !canRead(a.si0Attr, perms) {
			return SDOAttemptToReadWrOnlyObject
		}
		if sdo := a.notify().OnBeforeRead(a, 0, false, false); !sdo.OK() {
			return sdo
		}
		if err := w.WriteUint8(a.si0); err != nil {
			return mapStreamErr(err)
		}
		return SDOOK
	}

	if subIndex > a.si0 {
		return SDOSubindexNotExisting
	}
	if !canRead(a.elemAttr, perms) {
		return SDOAttemptToReadWrOnlyObject
	}
	if sdo := a.notify().OnBeforeRead(a, subIndex, false, false); !sdo.OK() {
		return sdo
	}
	return NativeToEncoded(a.elementNative(subIndex), a.dataType, 1, false, w)
}

// Write decodes and commits one subindex, following the same subindex-0
// vs. element split as Read.
func (a *Array) Write(subIndex uint8, perms Attribute, r stream.Reader) SDO {
	if subIndex == 0 {
		return a.writeSI0(perms, r)
	}
	return a.writeElement(subIndex, perms, r)
}

func (a *Array) writeSI0(perms Attribute, r stream.Reader) SDO {
	if !canWrite(a.si0Attr, perms) {
		return SDOAttemptToWriteRdOnlyObject
	}
	newVal, err := r.ReadUint8()
	if err != nil {
		return mapStreamErr(err)
	}
	if newVal < a.minSI0 {
		return SDOValueTooLow
	}
	if newVal > a.maxSI0 {
		return SDOValueTooHigh
	}

	a.lockWrite()
	defer a.unlockWrite()

	shadow := []byte{newVal}
	if sdo := a.notify().OnBeforeWrite(a, 0, false, newVal, shadow); !sdo.OK() {
		return sdo
	}
	a.si0 = shadow[0]
	a.notify().OnAfterWrite(a, 0, false)
	return SDOOK
}

func (a *Array) writeElement(subIndex uint8, perms Attribute, r stream.Reader) SDO {
	a.lockWrite()
	defer a.unlockWrite()

	if subIndex > a.si0 {
		return SDOSubindexNotExisting
	}
	if !canWrite(a.elemAttr, perms) {
		return SDOAttemptToWriteRdOnlyObject
	}

	width := 1
	if !a.bitPacked {
		width = a.elemBytes
	}
	shadow := make([]byte, width)
	if sdo := EncodedToNative(r, a.dataType, 1, false, shadow); !sdo.OK() {
		return sdo
	}
	if sdo := a.notify().OnBeforeWrite(a, subIndex, false, 0, shadow); !sdo.OK() {
		return sdo
	}
	a.commitElement(subIndex, shadow)
	a.notify().OnAfterWrite(a, subIndex, false)
	return SDOOK
}

// CompleteRead serializes SI0 (when inclSI0) followed by all SI0 current
// elements in one codec call, since live storage is already laid out in
// the exact contiguous, bit-stuffed form the codec expects.
func (a *Array) CompleteRead(inclSI0 bool, si0Is16Bits bool, perms Attribute, w stream.Writer) SDO {
	a.lockRead()
	defer a.unlockRead()

	if !inclSI0 && a.si0 == 0 {
		return SDOOK
	}
	if inclSI0 && !canRead(a.si0Attr, perms) {
		return SDOAttemptToReadWrOnlyObject
	}

	if sdo := a.notify().OnBeforeRead(a, 0, true, false); !sdo.OK() {
		return sdo
	}

	if inclSI0 {
		var err error
		if si0Is16Bits {
			err = w.WriteUint16(uint16(a.si0))
		} else {
			err = w.WriteUint8(a.si0)
		}
		if err != nil {
			return mapStreamErr(err)
		}
	}

	if a.si0 == 0 {
		return SDOOK
	}

	if !canRead(a.elemAttr, perms) {
		return zeroFillElements(a.si0, a.elementWireBits(), w)
	}

	prefix := a.storagePrefix(a.si0)
	return NativeToEncoded(prefix, a.dataType, int(a.si0), true, w)
}

// zeroFillElements writes n elements of width bits as zero, used when the
// caller lacks read permission on the element attribute during a complete
// read (the core substitutes zeros rather than failing the whole response).
func zeroFillElements(n uint8, bitsPerElement uint, w stream.Writer) SDO {
	if bitsPerElement%8 == 0 {
		if err := w.FillBytes(int(n)*int(bitsPerElement/8), 0); err != nil {
			return mapStreamErr(err)
		}
		return SDOOK
	}
	for i := 0; i < int(n); i++ {
		if err := w.FillBits(uint8(bitsPerElement), false); err != nil {
			return mapStreamErr(err)
		}
	}
	return SDOOK
}

func (a *Array) storagePrefix(n uint8) []byte {
	if a.bitPacked {
		bits := int(n) * int(a.bitsPerElement)
		return a.storage[:(bits+7)/8]
	}
	return a.storage[:int(n)*a.elemBytes]
}

// CompleteWrite decodes an optional SI0 followed by newSI0 elements and
// commits both atomically under the object's write lock.
func (a *Array) CompleteWrite(inclSI0 bool, si0Is16Bits bool, perms Attribute, r stream.Reader, expectedTrailing stream.RemainingBits) SDO {
	a.lockWrite()
	defer a.unlockWrite()

	newSI0 := a.si0
	if inclSI0 {
		var v uint16
		if si0Is16Bits {
			u, err := r.ReadUint16()
			if err != nil {
				return mapStreamErr(err)
			}
			v = u
		} else {
			u, err := r.ReadUint8()
			if err != nil {
				return mapStreamErr(err)
			}
			v = uint16(u)
		}
		if v > 255 {
			return SDOValueTooHigh
		}
		candidate := uint8(v)
		if !canWrite(a.si0Attr, perms) && candidate != a.si0 {
			return SDOUnsupportedAccessToObject
		}
		newSI0 = candidate
	}

	if newSI0 < a.minSI0 {
		return SDOValueTooLow
	}
	if newSI0 > a.maxSI0 {
		return SDOValueTooHigh
	}

	if newSI0 > 0 && !canWrite(a.elemAttr, perms) {
		return SDOAttemptToWriteRdOnlyObject
	}

	width := 0
	if a.bitPacked {
		width = (int(newSI0)*int(a.bitsPerElement) + 7) / 8
	} else {
		width = int(newSI0) * a.elemBytes
	}
	shadow := make([]byte, width)
	if sdo := EncodedToNative(r, a.dataType, int(newSI0), true, shadow); !sdo.OK() {
		return sdo
	}
	if err := r.EnsureAllConsumed(expectedTrailing); err != nil {
		return SDODataTypeMismatchTooLong
	}

	if sdo := a.notify().OnBeforeWrite(a, 0, true, newSI0, shadow); !sdo.OK() {
		return sdo
	}

	a.si0 = newSI0
	a.commitPrefix(newSI0, shadow)
	a.notify().OnAfterWrite(a, 0, true)
	return SDOOK
}

// commitPrefix copies the first n elements of shadow into live storage,
// honoring a bit-boundary tail: when n*bitsPerElement isn't byte aligned,
// only the element bits in the final partial byte are replaced, leaving
// any higher-indexed element's bits in that same byte untouched.
func (a *Array) commitPrefix(n uint8, shadow []byte) {
	if !a.bitPacked {
		copy(a.storage[:int(n)*a.elemBytes], shadow)
		return
	}
	totalBits := int(n) * int(a.bitsPerElement)
	fullBytes := totalBits / 8
	tailBits := uint(totalBits % 8)
	copy(a.storage[:fullBytes], shadow[:fullBytes])
	if tailBits > 0 {
		mask := byte(1<<tailBits) - 1
		a.storage[fullBytes] = (a.storage[fullBytes] &^ mask) | (shadow[fullBytes] & mask)
	}
}
