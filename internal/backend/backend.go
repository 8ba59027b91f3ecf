// Package backend selects the compute runtime a kernel runs on.
package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cwbudde/oclkernel/internal/clkernel"
	"github.com/cwbudde/oclkernel/internal/gpu"
	"github.com/cwbudde/oclkernel/internal/host"
)

// Name identifies a runtime implementation.
type Name string

const (
	Host   Name = "host"
	OpenCL Name = "opencl"
)

var (
	// ErrUnknownBackend is returned when the name does not match a known backend.
	ErrUnknownBackend = errors.New("unknown compute backend")
	// ErrBackendUnavailable indicates the backend is not available in this build.
	ErrBackendUnavailable = errors.New("compute backend unavailable")
)

// Normalize maps arbitrary user input to a canonical backend name.
func Normalize(name string) Name {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "host", "emulator":
		return Host
	case "gpu", "opencl", "cl":
		return OpenCL
	default:
		return Name(name)
	}
}

// SupportedBackends returns the list of backends understood by the factory.
func SupportedBackends() []Name {
	return []Name{Host, OpenCL}
}

// New constructs the requested backend.
func New(name string) (clkernel.Backend, error) {
	switch Normalize(name) {
	case Host:
		return host.New(), nil
	case OpenCL:
		b, err := gpu.New()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, OpenCL, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
}
