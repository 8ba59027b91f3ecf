//go:build !gpu

package gpu

import (
	"errors"
	"testing"

	"github.com/cwbudde/oclkernel/internal/clkernel"
)

func TestNewStub(t *testing.T) {
	b, err := New()
	if !errors.Is(err, ErrNotBuilt) {
		t.Errorf("New() error = %v, want ErrNotBuilt", err)
	}
	if b != nil {
		t.Error("New() should return a nil backend on stub")
	}
}

func TestStubMethods(t *testing.T) {
	var b Backend
	var _ clkernel.Backend = &b

	if _, err := b.Platforms(); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("Platforms() error = %v", err)
	}
	if _, err := b.Devices(clkernel.Platform{}, clkernel.DeviceTypeGPU); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("Devices() error = %v", err)
	}
	if _, err := b.CreateContext(nil); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("CreateContext() error = %v", err)
	}
}
