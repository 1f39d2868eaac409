// Package leb128 implements the variable-length integer encoding used by the
// WebAssembly binary format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#integers%E2%91%A4
package leb128

import (
	"errors"
	"io"
)

const (
	maxVarintLen32 = 5

	continuation = 0x80
	payload      = 0x7f
)

// ErrOverflow32 is returned when an encoded uint32 is longer than 5 bytes or
// sets bits above bit 31.
var ErrOverflow32 = errors.New("overflows a 32-bit integer")

// EncodeInt32 encodes the signed value into a buffer in LEB128 format
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_signed_integer
func EncodeInt32(value int32) []byte {
	return EncodeInt64(int64(value))
}

// EncodeInt64 encodes the signed value into a buffer in LEB128 format
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_signed_integer
func EncodeInt64(value int64) (buf []byte) {
	for {
		// Take 7 remaining low-order bits from the value into b.
		b := uint8(value & payload)
		// Extract the sign bit.
		s := uint8(value & 0x40)
		value >>= 7

		// The encoding unsigned numbers is simpler as it only needs to check if the value is non-zero to tell if there
		// are more bits to encode. Signed is a little more complicated as you have to double-check the sign bit.
		// If either case, set the high-order bit to tell the reader there are more bytes in this int.
		if (value != -1 || s == 0) && (value != 0 || s != 0) {
			b |= continuation
		}

		// Append b into the buffer
		buf = append(buf, b)
		if b&continuation == 0 {
			break
		}
	}
	return buf
}

// EncodeUint32 encodes the value into a buffer in LEB128 format
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_unsigned_integer
func EncodeUint32(value uint32) (buf []byte) {
	for {
		b := uint8(value & payload)
		value >>= 7
		if value != 0 {
			b |= continuation
		}
		buf = append(buf, b)
		if b&continuation == 0 {
			return buf
		}
	}
}

// LoadUint32 decodes an unsigned LEB128 value from the start of buf.
//
// io.ErrUnexpectedEOF means buf ended before the last byte of the value. The
// caller decides whether that is corruption or a reason to wait for more data.
func LoadUint32(buf []byte) (ret uint32, bytesRead uint64, err error) {
	for shift := 0; shift < 7*maxVarintLen32; shift += 7 {
		if bytesRead >= uint64(len(buf)) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		b := buf[bytesRead]
		bytesRead++

		// The fifth byte only carries the top four bits and can't continue.
		if shift == 7*(maxVarintLen32-1) && b > 0x0f {
			return 0, 0, ErrOverflow32
		}
		ret |= uint32(b&payload) << shift
		if b&continuation == 0 {
			return ret, bytesRead, nil
		}
	}
	return 0, 0, ErrOverflow32
}
