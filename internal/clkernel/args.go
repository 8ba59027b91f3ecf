package clkernel

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ScalarBytes encodes a fixed-size scalar kernel argument in host byte order.
// Go's int and uint are rejected since their width does not match a device type.
func ScalarBytes(value any) ([]byte, error) {
	var (
		buf [8]byte
		n   int
	)
	switch v := value.(type) {
	case int8:
		buf[0], n = byte(v), 1
	case uint8:
		buf[0], n = v, 1
	case int16:
		binary.NativeEndian.PutUint16(buf[:], uint16(v))
		n = 2
	case uint16:
		binary.NativeEndian.PutUint16(buf[:], v)
		n = 2
	case int32:
		binary.NativeEndian.PutUint32(buf[:], uint32(v))
		n = 4
	case uint32:
		binary.NativeEndian.PutUint32(buf[:], v)
		n = 4
	case float32:
		binary.NativeEndian.PutUint32(buf[:], math.Float32bits(v))
		n = 4
	case int64:
		binary.NativeEndian.PutUint64(buf[:], uint64(v))
		n = 8
	case uint64:
		binary.NativeEndian.PutUint64(buf[:], v)
		n = 8
	case float64:
		binary.NativeEndian.PutUint64(buf[:], math.Float64bits(v))
		n = 8
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedArg, value)
	}
	return buf[:n:n], nil
}

// argSize is the byte size reported in verbose argument diagnostics.
func argSize(value any) int {
	switch v := value.(type) {
	case Buffer:
		return v.Size()
	case LocalSpace:
		return int(v.Size)
	}
	if b, err := ScalarBytes(value); err == nil {
		return len(b)
	}
	return 0
}
