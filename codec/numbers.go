package codec

import (
	"encoding/binary"
	"fmt"
)

// Number is the set of element types that can be moved between workers.
// Only fixed-size types qualify; int and uint are excluded on purpose since
// their width differs between platforms.
type Number interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// SizeOf returns the encoded width of one element of T.
func SizeOf[T Number]() int {
	var zero T
	return binary.Size(zero)
}

// EncodeNumbers packs values little-endian.
func EncodeNumbers[T Number](values []T) []byte {
	if len(values) == 0 {
		return nil
	}
	buf, err := binary.Append(make([]byte, 0, len(values)*SizeOf[T]()), binary.LittleEndian, values)
	if err != nil {
		// unreachable for fixed-size element types
		panic(fmt.Sprintf("encode %T: %v", values, err))
	}
	return buf
}

// DecodeNumbers unpacks exactly n values of T from buf.
func DecodeNumbers[T Number](buf []byte, n int) ([]T, error) {
	if len(buf) != n*SizeOf[T]() {
		return nil, fmt.Errorf("decode %d numbers: buffer has %d bytes, want %d", n, len(buf), n*SizeOf[T]())
	}
	values := make([]T, n)
	if n == 0 {
		return values, nil
	}
	if _, err := binary.Decode(buf, binary.LittleEndian, values); err != nil {
		return nil, fmt.Errorf("decode %d numbers: %w", n, err)
	}
	return values, nil
}
