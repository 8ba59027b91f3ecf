package backend

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want Name
	}{
		{"", Host},
		{"host", Host},
		{" Emulator ", Host},
		{"gpu", OpenCL},
		{"OpenCL", OpenCL},
		{"cl", OpenCL},
		{"cuda", Name("cuda")},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewHost(t *testing.T) {
	b, err := New("host")
	if err != nil {
		t.Fatalf("New(host) failed: %v", err)
	}
	if b.Name() != "host" {
		t.Errorf("Name() = %q, want host", b.Name())
	}
	platforms, err := b.Platforms()
	if err != nil || len(platforms) != 1 {
		t.Errorf("Platforms() = %v, %v", platforms, err)
	}
}

func TestNewUnknown(t *testing.T) {
	if _, err := New("cuda"); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("New(cuda) error = %v, want ErrUnknownBackend", err)
	}
}

func TestNewOpenCL(t *testing.T) {
	b, err := New("gpu")
	if err != nil {
		if !errors.Is(err, ErrBackendUnavailable) {
			t.Errorf("New(gpu) error = %v, want ErrBackendUnavailable", err)
		}
		return
	}
	if b.Name() != "opencl" {
		t.Errorf("Name() = %q, want opencl", b.Name())
	}
}

func TestSupportedBackends(t *testing.T) {
	names := SupportedBackends()
	if len(names) != 2 || names[0] != Host || names[1] != OpenCL {
		t.Errorf("SupportedBackends() = %v", names)
	}
}
