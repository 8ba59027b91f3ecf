// Package precision selects the floating-point width used by host and device
// code. Double precision is the default; build with -tags single for float32.
package precision

import (
	"fmt"
	"unsafe"
)

// Size is the width of Real in bytes.
const Size = int(unsafe.Sizeof(Real(0)))

// IsDouble reports whether Real is a 64-bit float.
func IsDouble() bool {
	return isDouble
}

// BuildOptions returns the compiler macros that make kernel sources agree with Real.
func BuildOptions() string {
	flag := 0
	if isDouble {
		flag = 1
	}
	return fmt.Sprintf("-DREAL=%s -DREAL_IS_DOUBLE=%d", Name, flag)
}

// Bytes returns the raw memory of v without copying.
func Bytes(v []Real) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(v))), len(v)*Size)
}

// View reinterprets b as a slice of Real without copying. Trailing bytes that
// do not form a whole element are ignored.
func View(b []byte) []Real {
	n := len(b) / Size
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*Real)(unsafe.Pointer(unsafe.SliceData(b))), n)
}
