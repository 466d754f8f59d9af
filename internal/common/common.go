package common

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

var (
	ErrWidth = errors.New("unsupported width")
	ErrShort = errors.New("buffer shorter than width")
)

// Order returns the byte order selected by littleEndian.
func Order(littleEndian bool) binary.ByteOrder {
	if littleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// IsIntWidth reports whether n is a decodable integer width in bytes.
func IsIntWidth(n int) bool {
	switch n {
	case 1, 2, 4, 8:
		return true
	default:
		return false
	}
}

// ReadUint reads an unsigned integer of width bytes from the start of b.
func ReadUint(b []byte, width int, order binary.ByteOrder) (uint64, error) {
	if !IsIntWidth(width) {
		return 0, fmt.Errorf("%w: %d bytes", ErrWidth, width)
	}
	if len(b) < width {
		return 0, fmt.Errorf("%w: %d < %d", ErrShort, len(b), width)
	}
	switch width {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(order.Uint16(b)), nil
	case 4:
		return uint64(order.Uint32(b)), nil
	default:
		return order.Uint64(b), nil
	}
}

// ReadInt reads a two's complement integer of width bytes from the start of b.
func ReadInt(b []byte, width int, order binary.ByteOrder) (int64, error) {
	u, err := ReadUint(b, width, order)
	if err != nil {
		return 0, err
	}
	switch width {
	case 1:
		return int64(int8(u)), nil
	case 2:
		return int64(int16(u)), nil
	case 4:
		return int64(int32(u)), nil
	default:
		return int64(u), nil
	}
}

// PutUint writes the low width bytes of v into b. It is the inverse of
// ReadUint and of ReadInt for the two's complement bits of a signed value.
func PutUint(b []byte, v uint64, width int, order binary.ByteOrder) error {
	if !IsIntWidth(width) {
		return fmt.Errorf("%w: %d bytes", ErrWidth, width)
	}
	if len(b) < width {
		return fmt.Errorf("%w: %d < %d", ErrShort, len(b), width)
	}
	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		order.PutUint16(b, uint16(v))
	case 4:
		order.PutUint32(b, uint32(v))
	default:
		order.PutUint64(b, v)
	}
	return nil
}

// TerminatedText decodes b as text made of unit-byte code units (1 =
// UTF-8, 2 = UTF-16 in the given order). The value ends at the first zero
// code unit, or at the end of b when there is none. Invalid sequences
// decode to U+FFFD.
func TerminatedText(b []byte, unit int, order binary.ByteOrder) (string, error) {
	var enc encoding.Encoding
	switch unit {
	case 1:
		enc = unicode.UTF8
	case 2:
		e := unicode.LittleEndian
		if order == binary.BigEndian {
			e = unicode.BigEndian
		}
		enc = unicode.UTF16(e, unicode.IgnoreBOM)
	default:
		return "", fmt.Errorf("%w: %d-byte code unit", ErrWidth, unit)
	}
	b = b[:terminator(b, unit)]
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// terminator returns the byte offset of the first all-zero code unit, or
// the length of b rounded down to whole units.
func terminator(b []byte, unit int) int {
	n := len(b) - len(b)%unit
	for i := 0; i < n; i += unit {
		zero := true
		for _, c := range b[i : i+unit] {
			if c != 0 {
				zero = false
				break
			}
		}
		if zero {
			return i
		}
	}
	return n
}
