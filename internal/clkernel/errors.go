package clkernel

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSource indicates the kernel source file was missing or empty.
	ErrNoSource = errors.New("no kernel source provided")
	// ErrNotInitialized indicates Init has not completed successfully.
	ErrNotInitialized = errors.New("compute platform not initialized")
	// ErrNoCPUDevice is fatal: GPU selection failed and no CPU device exists.
	ErrNoCPUDevice = errors.New("no CPU device available for fallback")
	// ErrNoProgram indicates no program has been built.
	ErrNoProgram = errors.New("no kernel program built")
	// ErrNoKernel indicates no kernel function is active.
	ErrNoKernel = errors.New("no kernel activated")
	// ErrNoRange indicates no valid execution range has been set.
	ErrNoRange = errors.New("no valid kernel range set")
	// ErrInvalidRange is matched by every RangeError.
	ErrInvalidRange = errors.New("kernel range is invalid")
	// ErrLocalMemory indicates a local allocation above the device limit.
	ErrLocalMemory = errors.New("local memory request exceeds hardware limit")
	// ErrUnsupportedArg indicates a kernel argument of an unsupported Go type.
	ErrUnsupportedArg = errors.New("unsupported kernel argument type")
	// ErrBufferSize indicates a host slice larger than the device buffer.
	ErrBufferSize = errors.New("host data exceeds device buffer size")
)

// Status codes shared by every backend, matching the OpenCL numbering.
const (
	StatusSuccess             = 0
	StatusDeviceNotFound      = -1
	StatusBuildProgramFailure = -11
	StatusInvalidValue        = -30
	StatusInvalidMemObject    = -38
	StatusInvalidBinary       = -42
	StatusInvalidProgramExec  = -45
	StatusInvalidKernelName   = -46
	StatusInvalidArgIndex     = -49
	StatusInvalidArgValue     = -50
	StatusInvalidArgSize      = -51
	StatusInvalidKernelArgs   = -52
	StatusInvalidWorkDim      = -53
	StatusInvalidWorkGroup    = -54
	StatusInvalidBufferSize   = -61
)

// StatusError is a failed runtime call with its numeric status.
type StatusError struct {
	Op   string
	Code int
	Name string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Name, e.Code)
}

// BuildError is a failed program build with the compiler output.
type BuildError struct {
	Options string
	Log     string
	Err     error
}

func (e *BuildError) Error() string {
	if e.Log == "" {
		return fmt.Sprintf("kernel compilation failed: %v", e.Err)
	}
	return fmt.Sprintf("kernel compilation failed: %v\n%s", e.Err, e.Log)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// RangeError describes why an execution range was rejected.
type RangeError struct {
	Reason string
}

func (e *RangeError) Error() string {
	return "invalid kernel range: " + e.Reason
}

func (e *RangeError) Is(target error) bool {
	return target == ErrInvalidRange
}
