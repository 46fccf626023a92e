package cood

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/hollowgrove/gocood/pkg/stream"
)

// ErrDataTypeNotSupported is returned by the codec for a DataType it does
// not recognize.
var ErrDataTypeNotSupported = SDODataTypeNotSupported

// strnlen returns the index of the first zero byte in b, or len(b) if none.
func strnlen(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return len(b)
}

// SizeOfCanopenEncoded returns the number of wire bits native would occupy
// once encoded as nElements values of type t.
func SizeOfCanopenEncoded(native []byte, t DataType, nElements int) (int, error) {
	switch {
	case t == TypeVisibleString:
		n := strnlen(native)
		if n < nElements {
			n++ // room for the terminating NUL
		}
		if n > nElements {
			n = nElements
		}
		return n * 8, nil
	case t == TypeOctetString || t == TypeUnicodeString:
		return nElements * 8, nil
	case IsBitPacked(t):
		return int(WireBits(t)) * nElements, nil
	default:
		bits := WireBits(t)
		if bits == 0 {
			return 0, ErrDataTypeNotSupported
		}
		return int(bits) * nElements, nil
	}
}

// mapStreamErr translates a stream-layer failure into the SDO abort code
// the codec contract specifies.
func mapStreamErr(err error) SDO {
	switch {
	case errors.Is(err, stream.ErrEmpty):
		return SDODataTypeMismatchTooSmall
	case errors.Is(err, stream.ErrFull):
		return SDODataTypeMismatchTooLong
	default:
		return SDOGeneralError
	}
}

// NativeToEncoded writes nElements values of type t, read from native, to w
// in CANopen wire form. completeAccess selects the visible_string padding
// rule: padded to nElements bytes under complete access, otherwise followed
// by a single NUL when the string is shorter than nElements bytes.
func NativeToEncoded(native []byte, t DataType, nElements int, completeAccess bool, w stream.Writer) SDO {
	switch {
	case t == TypeVisibleString:
		n := strnlen(native)
		if n > nElements {
			n = nElements
		}
		if err := w.WriteUint8Slice(native[:n]); err != nil {
			return mapStreamErr(err)
		}
		if completeAccess {
			if err := w.FillBytes(nElements-n, 0); err != nil {
				return mapStreamErr(err)
			}
		} else if n < nElements {
			if err := w.WriteUint8(0); err != nil {
				return mapStreamErr(err)
			}
		}
		return SDOOK

	case t == TypeOctetString || t == TypeUnicodeString:
		if err := w.WriteUint8Slice(native[:nElements]); err != nil {
			return mapStreamErr(err)
		}
		return SDOOK

	case IsBitPacked(t):
		bits := uint8(WireBits(t))
		nr := stream.NewMemReader(native, stream.LittleEndian)
		for i := 0; i < nElements; i++ {
			v, err := nr.ReadBits(bits)
			if err != nil {
				return SDOGeneralError
			}
			if err := w.WriteBits(bits, v); err != nil {
				return mapStreamErr(err)
			}
		}
		return SDOOK

	default:
		return nativeToEncodedFixed(native, t, nElements, w)
	}
}

func nativeToEncodedFixed(native []byte, t DataType, nElements int, w stream.Writer) SDO {
	width := int(NativeBits(t)) / 8
	for i := 0; i < nElements; i++ {
		chunk := native[i*width : (i+1)*width]
		var err error
		switch t {
		case TypeBoolean:
			err = w.WriteBool(chunk[0] != 0)
		case TypeInteger8:
			err = w.WriteInt8(int8(chunk[0]))
		case TypeUnsigned8:
			err = w.WriteUint8(chunk[0])
		case TypeInteger16:
			err = w.WriteInt16(int16(binary.LittleEndian.Uint16(chunk)))
		case TypeUnsigned16:
			err = w.WriteUint16(binary.LittleEndian.Uint16(chunk))
		case TypeInteger32:
			err = w.WriteInt32(int32(binary.LittleEndian.Uint32(chunk)))
		case TypeUnsigned32:
			err = w.WriteUint32(binary.LittleEndian.Uint32(chunk))
		case TypeInteger64:
			err = w.WriteInt64(int64(binary.LittleEndian.Uint64(chunk)))
		case TypeUnsigned64:
			err = w.WriteUint64(binary.LittleEndian.Uint64(chunk))
		case TypeReal32:
			err = w.WriteFloat32(math.Float32frombits(binary.LittleEndian.Uint32(chunk)))
		case TypeReal64:
			err = w.WriteFloat64(math.Float64frombits(binary.LittleEndian.Uint64(chunk)))
		default:
			return ErrDataTypeNotSupported
		}
		if err != nil {
			return mapStreamErr(err)
		}
	}
	return SDOOK
}

// EncodedToNative reads nElements values of type t from r and stores them
// in native, zero-filling any unused tail. completeAccess selects the
// visible_string semantics: exactly nElements bytes under complete access,
// or a NUL/empty-terminated read (using the remaining-bytes hint when
// available) for single-subindex access.
func EncodedToNative(r stream.Reader, t DataType, nElements int, completeAccess bool, nativeOut []byte) SDO {
	switch {
	case t == TypeVisibleString:
		return encodedToNativeString(r, nElements, completeAccess, nativeOut)

	case t == TypeOctetString || t == TypeUnicodeString:
		b, err := r.ReadUint8Slice(nElements)
		if err != nil {
			return mapStreamErr(err)
		}
		copy(nativeOut, b)
		return SDOOK

	case IsBitPacked(t):
		bits := uint8(WireBits(t))
		nw := stream.NewMemWriter(len(nativeOut), stream.LittleEndian)
		for i := 0; i < nElements; i++ {
			v, err := r.ReadBits(bits)
			if err != nil {
				return mapStreamErr(err)
			}
			if err := nw.WriteBits(bits, v); err != nil {
				return SDOGeneralError
			}
		}
		if _, err := nw.AlignToByteBoundary(false); err != nil {
			return SDOGeneralError
		}
		copy(nativeOut, stream.Bytes(nw))
		return SDOOK

	default:
		return encodedToNativeFixed(r, t, nElements, nativeOut)
	}
}

func encodedToNativeString(r stream.Reader, nElements int, completeAccess bool, nativeOut []byte) SDO {
	for i := range nativeOut {
		nativeOut[i] = 0
	}
	if completeAccess {
		b, err := r.ReadUint8Slice(nElements)
		if err != nil {
			return mapStreamErr(err)
		}
		n := strnlen(b)
		copy(nativeOut, b[:n])
		return SDOOK
	}

	if n, err := r.RemainingBytes(); err == nil {
		if n > nElements {
			n = nElements
		}
		b, rerr := r.ReadUint8Slice(n)
		if rerr != nil {
			return mapStreamErr(rerr)
		}
		end := strnlen(b)
		copy(nativeOut, b[:end])
		return SDOOK
	}

	var out []byte
	for len(out) < nElements {
		b, err := r.ReadUint8()
		if err != nil {
			return mapStreamErr(err)
		}
		if b == 0 {
			break
		}
		out = append(out, b)
	}
	copy(nativeOut, out)
	return SDOOK
}

func encodedToNativeFixed(r stream.Reader, t DataType, nElements int, nativeOut []byte) SDO {
	width := int(NativeBits(t)) / 8
	for i := 0; i < nElements; i++ {
		chunk := nativeOut[i*width : (i+1)*width]
		switch t {
		case TypeBoolean:
			v, err := r.ReadBool()
			if err != nil {
				return mapStreamErr(err)
			}
			if v {
				chunk[0] = 1
			} else {
				chunk[0] = 0
			}
		case TypeInteger8:
			v, err := r.ReadInt8()
			if err != nil {
				return mapStreamErr(err)
			}
			chunk[0] = byte(v)
		case TypeUnsigned8:
			v, err := r.ReadUint8()
			if err != nil {
				return mapStreamErr(err)
			}
			chunk[0] = v
		case TypeInteger16:
			v, err := r.ReadInt16()
			if err != nil {
				return mapStreamErr(err)
			}
			binary.LittleEndian.PutUint16(chunk, uint16(v))
		case TypeUnsigned16:
			v, err := r.ReadUint16()
			if err != nil {
				return mapStreamErr(err)
			}
			binary.LittleEndian.PutUint16(chunk, v)
		case TypeInteger32:
			v, err := r.ReadInt32()
			if err != nil {
				return mapStreamErr(err)
			}
			binary.LittleEndian.PutUint32(chunk, uint32(v))
		case TypeUnsigned32:
			v, err := r.ReadUint32()
			if err != nil {
				return mapStreamErr(err)
			}
			binary.LittleEndian.PutUint32(chunk, v)
		case TypeInteger64:
			v, err := r.ReadInt64()
			if err != nil {
				return mapStreamErr(err)
			}
			binary.LittleEndian.PutUint64(chunk, uint64(v))
		case TypeUnsigned64:
			v, err := r.ReadUint64()
			if err != nil {
				return mapStreamErr(err)
			}
			binary.LittleEndian.PutUint64(chunk, v)
		case TypeReal32:
			v, err := r.ReadFloat32()
			if err != nil {
				return mapStreamErr(err)
			}
			binary.LittleEndian.PutUint32(chunk, math.Float32bits(v))
		case TypeReal64:
			v, err := r.ReadFloat64()
			if err != nil {
				return mapStreamErr(err)
			}
			binary.LittleEndian.PutUint64(chunk, math.Float64bits(v))
		default:
			return ErrDataTypeNotSupported
		}
	}
	return SDOOK
}
