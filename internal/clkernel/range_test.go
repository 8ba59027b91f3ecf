package clkernel

import (
	"errors"
	"testing"
)

func TestNewRangeDivisibleAccepted(t *testing.T) {
	for l := uint64(1); l <= 32; l++ {
		for g := l; g <= 256; g += l {
			r, err := NewRange(1, []uint64{g}, []uint64{l}, nil, 1024)
			if err != nil {
				t.Fatalf("NewRange(g=%d, l=%d) failed: %v", g, l, err)
			}
			if r.Global[0] != g || r.Local[0] != l || r.Offset[0] != 0 {
				t.Fatalf("unexpected range %+v for g=%d l=%d", r, g, l)
			}
		}
	}
}

func TestNewRangeNonDivisibleRejected(t *testing.T) {
	for l := uint64(2); l <= 16; l++ {
		for g := l + 1; g <= 64; g++ {
			if g%l == 0 {
				continue
			}
			_, err := NewRange(1, []uint64{g}, []uint64{l}, nil, 1024)
			if !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("NewRange(g=%d, l=%d) error = %v, want ErrInvalidRange", g, l, err)
			}
		}
	}
}

func TestNewRangeRejections(t *testing.T) {
	tests := []struct {
		name   string
		dims   int
		global []uint64
		local  []uint64
		offset []uint64
		maxWG  uint64
	}{
		{"zero dimension", 0, []uint64{16}, []uint64{16}, nil, 256},
		{"four dimensions", 4, []uint64{2, 2, 2, 2}, []uint64{1, 1, 1, 1}, nil, 256},
		{"zero local size", 1, []uint64{16}, []uint64{0}, nil, 256},
		{"short global", 2, []uint64{16}, []uint64{4, 4}, nil, 256},
		{"short local", 3, []uint64{4, 4, 4}, []uint64{2, 2}, nil, 256},
		{"short offset", 2, []uint64{4, 4}, []uint64{2, 2}, []uint64{1}, 256},
		{"work group above limit", 2, []uint64{32, 32}, []uint64{16, 32}, nil, 256},
		{"work group above limit 3D", 3, []uint64{8, 8, 8}, []uint64{8, 8, 8}, nil, 256},
		{"zero global", 1, []uint64{0}, []uint64{4}, nil, 256},
		{"overflow", 2, []uint64{1 << 40, 1 << 40}, []uint64{1, 1}, nil, 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRange(tt.dims, tt.global, tt.local, tt.offset, tt.maxWG)
			if !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("error = %v, want ErrInvalidRange", err)
			}
			var re *RangeError
			if !errors.As(err, &re) || re.Reason == "" {
				t.Fatalf("expected RangeError with a reason, got %v", err)
			}
		})
	}
}

func TestNewRangeAtLimit(t *testing.T) {
	r, err := NewRange(2, []uint64{16, 16}, []uint64{16, 16}, nil, 256)
	if err != nil {
		t.Fatalf("NewRange failed: %v", err)
	}
	if r.WorkGroupSize() != 256 || r.WorkItems() != 256 {
		t.Errorf("WorkGroupSize=%d WorkItems=%d, want 256/256", r.WorkGroupSize(), r.WorkItems())
	}
}

func TestRangeAccessors(t *testing.T) {
	r, err := NewRange(3, []uint64{8, 4, 2}, []uint64{2, 2, 1}, []uint64{1, 2, 3}, 64)
	if err != nil {
		t.Fatalf("NewRange failed: %v", err)
	}
	if got := r.GlobalSizes(); len(got) != 3 || got[0] != 8 || got[2] != 2 {
		t.Errorf("GlobalSizes() = %v", got)
	}
	if got := r.Offsets(); got[1] != 2 {
		t.Errorf("Offsets() = %v", got)
	}
	if got := r.String(); got != "3D global=8x4x2 local=2x2x1 offset=1x2x3" {
		t.Errorf("String() = %q", got)
	}
	if (Range{}).Valid() {
		t.Error("zero Range must not be valid")
	}
}
