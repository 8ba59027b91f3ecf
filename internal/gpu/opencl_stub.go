//go:build !gpu

package gpu

import "github.com/cwbudde/oclkernel/internal/clkernel"

// Backend is a placeholder when GPU support is not compiled.
type Backend struct{}

// New returns ErrNotBuilt when GPU support is not compiled in.
func New() (*Backend, error) {
	return nil, ErrNotBuilt
}

func (b *Backend) Name() string { return "opencl" }

func (b *Backend) Platforms() ([]clkernel.Platform, error) {
	return nil, ErrNotBuilt
}

func (b *Backend) Devices(clkernel.Platform, clkernel.DeviceType) ([]clkernel.Device, error) {
	return nil, ErrNotBuilt
}

func (b *Backend) CreateContext([]clkernel.Device) (clkernel.Context, error) {
	return nil, ErrNotBuilt
}
