package tune

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/cwbudde/oclkernel/internal/clkernel"
	"github.com/cwbudde/oclkernel/internal/host"
	"github.com/cwbudde/oclkernel/internal/precision"
	"github.com/cwbudde/oclkernel/kernels"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// gridOptimizer evaluates a fixed list of positions.
type gridOptimizer struct{ points [][]float64 }

func (g gridOptimizer) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	best, cost := []float64(nil), math.Inf(1)
	for _, p := range g.points {
		if c := eval(p); c < cost {
			best, cost = p, c
		}
	}
	return best, cost
}

func TestDivisors(t *testing.T) {
	tests := []struct {
		n    uint64
		want []uint64
	}{
		{0, nil},
		{1, []uint64{1}},
		{12, []uint64{1, 2, 3, 4, 6, 12}},
		{16, []uint64{1, 2, 4, 8, 16}},
		{13, []uint64{1, 13}},
	}
	for _, tt := range tests {
		if got := Divisors(tt.n); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Divisors(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestPickClamps(t *testing.T) {
	choices := []uint64{1, 2, 4}
	if got := pick(choices, -0.5); got != 1 {
		t.Errorf("pick(-0.5) = %d", got)
	}
	if got := pick(choices, 1); got != 4 {
		t.Errorf("pick(1) = %d", got)
	}
	if got := pick(choices, 0.5); got != 2 {
		t.Errorf("pick(0.5) = %d", got)
	}
}

func TestRunPicksFastestValid(t *testing.T) {
	cfg := Config{Global: []uint64{16, 16}, MaxWorkGroup: 64, Repeats: 2}
	opt := gridOptimizer{points: [][]float64{
		{0, 0},     // 1x1
		{0.5, 0.5}, // 4x4
		{1, 1},     // 16x16, above the limit
		{0.7, 0.5}, // 8x4
	}}

	calls := 0
	measure := func(local []uint64) (time.Duration, error) {
		calls++
		// Fastest at a 16-item group.
		return time.Duration(1+absDiff(local[0]*local[1], 16)) * time.Microsecond, nil
	}

	res, err := NewWithOptimizer(opt, quiet).Run(cfg, measure)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !reflect.DeepEqual(res.Best.Local, []uint64{4, 4}) {
		t.Errorf("best local = %v, want [4 4]", res.Best.Local)
	}
	if res.Best.Mean != time.Microsecond {
		t.Errorf("best mean = %v, want 1µs", res.Best.Mean)
	}
	if res.Evaluated != 4 || res.Invalid != 1 {
		t.Errorf("evaluated=%d invalid=%d, want 4 and 1", res.Evaluated, res.Invalid)
	}
	if calls != 6 {
		t.Errorf("measure calls = %d, want 6 (3 valid candidates x 2 repeats)", calls)
	}
}

func TestRunNoValidCandidate(t *testing.T) {
	cfg := Config{Global: []uint64{8}, MaxWorkGroup: 8}
	opt := gridOptimizer{points: [][]float64{{0}, {1}}}
	failing := func([]uint64) (time.Duration, error) { return 0, errors.New("launch failed") }

	res, err := NewWithOptimizer(opt, quiet).Run(cfg, failing)
	if !errors.Is(err, ErrNoValidCandidate) {
		t.Fatalf("Run error = %v, want ErrNoValidCandidate", err)
	}
	if res.Failed != 2 {
		t.Errorf("failed = %d, want 2", res.Failed)
	}
}

func TestRunRejectsBadGlobal(t *testing.T) {
	tuner := NewWithOptimizer(gridOptimizer{}, quiet)
	for _, global := range [][]uint64{nil, {1, 2, 3, 4}, {8, 0}} {
		if _, err := tuner.Run(Config{Global: global}, nil); !errors.Is(err, clkernel.ErrInvalidRange) {
			t.Errorf("Run(%v) error = %v, want ErrInvalidRange", global, err)
		}
	}
}

func TestMayflyTunerFindsValidSize(t *testing.T) {
	cfg := Config{Global: []uint64{64}, MaxWorkGroup: 32, Iterations: 10, PopSize: 20, Seed: 7}
	measure := func(local []uint64) (time.Duration, error) {
		if local[0] > cfg.MaxWorkGroup {
			t.Fatalf("measured invalid local size %v", local)
		}
		return time.Duration(absDiff(local[0], 8)+1) * time.Nanosecond, nil
	}

	res, err := New(cfg, quiet).Run(cfg, measure)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if 64%res.Best.Local[0] != 0 || res.Best.Local[0] > 32 {
		t.Errorf("best local %v is not a valid divisor", res.Best.Local)
	}
}

func TestKernelMeasureOnHost(t *testing.T) {
	const n = 32
	k := clkernel.NewFromSource(kernels.Square, host.New(), clkernel.WithLogger(quiet))
	defer k.Close()
	if err := k.Init(clkernel.InitOptions{}); err != nil {
		t.Fatal(err)
	}
	in, _ := k.NewBuffer(clkernel.MemReadOnly, n*precision.Size)
	out, _ := k.NewBuffer(clkernel.MemWriteOnly, n*precision.Size)
	if err := k.Build(precision.BuildOptions()); err != nil {
		t.Fatal(err)
	}
	if err := k.ActivateKernel(kernels.SquareName); err != nil {
		t.Fatal(err)
	}
	_ = k.SetArg(0, in)
	_ = k.SetArg(1, out)

	measure := KernelMeasure(k, []uint64{n}, nil)
	if _, err := measure([]uint64{8}); err != nil {
		t.Fatalf("measure(8) failed: %v", err)
	}
	if _, err := measure([]uint64{5}); !errors.Is(err, clkernel.ErrInvalidRange) {
		t.Errorf("measure(5) error = %v, want ErrInvalidRange", err)
	}
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
