package clkernel

import (
	"fmt"
	"math/bits"
	"strings"
)

// MaxDims is the highest number of dimensions of an execution range.
const MaxDims = 3

// Range is a validated 1, 2 or 3 dimensional execution range.
type Range struct {
	Dims   int
	Global [MaxDims]uint64
	Local  [MaxDims]uint64
	Offset [MaxDims]uint64
}

// NewRange validates an execution range against a device's maximum
// work-group size. A nil offset means zero on every axis.
func NewRange(dims int, global, local, offset []uint64, maxWorkGroup uint64) (Range, error) {
	if dims < 1 || dims > MaxDims {
		return Range{}, &RangeError{Reason: fmt.Sprintf("dimension %d not in 1..%d", dims, MaxDims)}
	}
	if len(global) < dims || len(local) < dims {
		return Range{}, &RangeError{Reason: fmt.Sprintf("%dD range needs %d global and local sizes", dims, dims)}
	}
	if offset != nil && len(offset) < dims {
		return Range{}, &RangeError{Reason: fmt.Sprintf("%dD range needs %d offsets", dims, dims)}
	}

	r := Range{Dims: dims}
	wgroup, total := uint64(1), uint64(1)
	for i := 0; i < dims; i++ {
		if local[i] == 0 {
			return Range{}, &RangeError{Reason: fmt.Sprintf("local size of axis %d is zero", i)}
		}
		if global[i]%local[i] != 0 {
			return Range{}, &RangeError{Reason: "local size must divide global size"}
		}

		var hi uint64
		hi, wgroup = bits.Mul64(wgroup, local[i])
		if hi != 0 {
			return Range{}, &RangeError{Reason: "local work group size overflows"}
		}
		hi, total = bits.Mul64(total, global[i])
		if hi != 0 {
			return Range{}, &RangeError{Reason: "global size overflows"}
		}

		r.Global[i] = global[i]
		r.Local[i] = local[i]
		if offset != nil {
			r.Offset[i] = offset[i]
		}
	}

	if wgroup > maxWorkGroup {
		return Range{}, &RangeError{Reason: fmt.Sprintf("local work group size %d exceeds hardware limit (%d)", wgroup, maxWorkGroup)}
	}
	if total < wgroup {
		return Range{}, &RangeError{Reason: "global size should be greater or equal than local size"}
	}
	return r, nil
}

// Valid reports whether r has been populated by NewRange.
func (r Range) Valid() bool {
	return r.Dims > 0
}

// GlobalSizes returns the global size of each used axis.
func (r Range) GlobalSizes() []uint64 {
	return append([]uint64(nil), r.Global[:r.Dims]...)
}

// LocalSizes returns the local size of each used axis.
func (r Range) LocalSizes() []uint64 {
	return append([]uint64(nil), r.Local[:r.Dims]...)
}

// Offsets returns the offset of each used axis.
func (r Range) Offsets() []uint64 {
	return append([]uint64(nil), r.Offset[:r.Dims]...)
}

// WorkItems is the total number of work items in the range.
func (r Range) WorkItems() uint64 {
	n := uint64(1)
	for i := 0; i < r.Dims; i++ {
		n *= r.Global[i]
	}
	return n
}

// WorkGroupSize is the number of work items in one work group.
func (r Range) WorkGroupSize() uint64 {
	n := uint64(1)
	for i := 0; i < r.Dims; i++ {
		n *= r.Local[i]
	}
	return n
}

func (r Range) String() string {
	axes := func(v [MaxDims]uint64) string {
		parts := make([]string, r.Dims)
		for i := range parts {
			parts[i] = fmt.Sprint(v[i])
		}
		return strings.Join(parts, "x")
	}
	return fmt.Sprintf("%dD global=%s local=%s offset=%s", r.Dims, axes(r.Global), axes(r.Local), axes(r.Offset))
}
