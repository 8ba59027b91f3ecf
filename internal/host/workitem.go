package host

import (
	"fmt"

	"github.com/cwbudde/oclkernel/internal/clkernel"
	"github.com/cwbudde/oclkernel/internal/precision"
)

// Func is the Go implementation of a kernel, called once per work item.
type Func func(item WorkItem, args *Args) error

// WorkItem identifies one invocation inside an execution range, with the
// same meaning as the OpenCL work-item built-ins.
type WorkItem struct {
	dims   int
	global [clkernel.MaxDims]uint64
	local  [clkernel.MaxDims]uint64
	group  [clkernel.MaxDims]uint64
	rng    clkernel.Range
}

// WorkDim is get_work_dim().
func (w WorkItem) WorkDim() int { return w.dims }

// GlobalID is get_global_id(dim); it includes the range offset.
func (w WorkItem) GlobalID(dim int) uint64 {
	if dim >= w.dims {
		return 0
	}
	return w.global[dim]
}

// LocalID is get_local_id(dim).
func (w WorkItem) LocalID(dim int) uint64 {
	if dim >= w.dims {
		return 0
	}
	return w.local[dim]
}

// GroupID is get_group_id(dim).
func (w WorkItem) GroupID(dim int) uint64 {
	if dim >= w.dims {
		return 0
	}
	return w.group[dim]
}

// GlobalSize is get_global_size(dim); unused dimensions report 1.
func (w WorkItem) GlobalSize(dim int) uint64 {
	if dim >= w.dims {
		return 1
	}
	return w.rng.Global[dim]
}

// LocalSize is get_local_size(dim); unused dimensions report 1.
func (w WorkItem) LocalSize(dim int) uint64 {
	if dim >= w.dims {
		return 1
	}
	return w.rng.Local[dim]
}

// Args gives a kernel implementation access to its bound arguments.
type Args struct {
	values map[uint32]any
	local  map[uint32][]byte
}

func (a *Args) lookup(index uint32) (any, error) {
	v, ok := a.values[index]
	if !ok {
		return nil, &clkernel.StatusError{Op: fmt.Sprintf("arg %d", index), Code: clkernel.StatusInvalidKernelArgs, Name: "CL_INVALID_KERNEL_ARGS"}
	}
	return v, nil
}

// Buffer returns the device memory bound at index.
func (a *Args) Buffer(index uint32) ([]byte, error) {
	v, err := a.lookup(index)
	if err != nil {
		return nil, err
	}
	buf, ok := v.(*buffer)
	if !ok {
		return nil, fmt.Errorf("arg %d is %T, not a buffer", index, v)
	}
	return buf.data, nil
}

// Reals returns the buffer bound at index viewed as precision.Real values.
func (a *Args) Reals(index uint32) ([]precision.Real, error) {
	data, err := a.Buffer(index)
	if err != nil {
		return nil, err
	}
	return precision.View(data), nil
}

// Local returns the work-group scratch memory bound at index.
func (a *Args) Local(index uint32) ([]byte, error) {
	if _, err := a.lookup(index); err != nil {
		return nil, err
	}
	mem, ok := a.local[index]
	if !ok {
		return nil, fmt.Errorf("arg %d is not local memory", index)
	}
	return mem, nil
}

// Scalar returns the scalar value bound at index.
func (a *Args) Scalar(index uint32) (any, error) {
	v, err := a.lookup(index)
	if err != nil {
		return nil, err
	}
	switch v.(type) {
	case *buffer, clkernel.LocalSpace:
		return nil, fmt.Errorf("arg %d is %T, not a scalar", index, v)
	}
	return v, nil
}
