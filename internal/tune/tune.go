// Package tune searches work-group sizes for a fixed NDRange.
package tune

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/oclkernel/internal/clkernel"
)

// ErrNoValidCandidate is returned when no candidate could be measured.
var ErrNoValidCandidate = errors.New("no valid work-group size found")

// penalty is the cost of a candidate the device cannot run.
const penalty = 1e18

// Measure runs the kernel with the given local sizes and returns the
// elapsed time of one launch.
type Measure func(local []uint64) (time.Duration, error)

// Config controls a search.
type Config struct {
	Global       []uint64
	MaxWorkGroup uint64
	Iterations   int
	PopSize      int
	Seed         int64
	Repeats      int
}

// Candidate is one measured local size.
type Candidate struct {
	Local []uint64      `json:"local"`
	Mean  time.Duration `json:"mean"`
}

// Result reports the search outcome.
type Result struct {
	Best      Candidate `json:"best"`
	Evaluated int       `json:"evaluated"`
	Invalid   int       `json:"invalid"`
	Failed    int       `json:"failed"`
}

// Divisors returns the divisors of n in ascending order.
func Divisors(n uint64) []uint64 {
	if n == 0 {
		return nil
	}
	var low, high []uint64
	for d := uint64(1); d*d <= n; d++ {
		if n%d != 0 {
			continue
		}
		low = append(low, d)
		if d != n/d {
			high = append(high, n/d)
		}
	}
	for i := len(high) - 1; i >= 0; i-- {
		low = append(low, high[i])
	}
	return low
}

// pick maps x in [0,1] onto an element of choices.
func pick(choices []uint64, x float64) uint64 {
	i := int(math.Floor(x * float64(len(choices))))
	if i < 0 {
		i = 0
	}
	if i >= len(choices) {
		i = len(choices) - 1
	}
	return choices[i]
}

// Tuner searches local sizes with an Optimizer.
type Tuner struct {
	opt    Optimizer
	logger *slog.Logger
}

// New returns a Tuner backed by Mayfly.
func New(cfg Config, logger *slog.Logger) *Tuner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tuner{opt: NewMayfly(cfg.Iterations, cfg.PopSize, cfg.Seed), logger: logger}
}

// NewWithOptimizer returns a Tuner using opt.
func NewWithOptimizer(opt Optimizer, logger *slog.Logger) *Tuner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tuner{opt: opt, logger: logger}
}

// Run searches local sizes for cfg.Global, measuring each valid candidate
// with measure. The best measured candidate is returned, not the optimizer's
// final position.
func (t *Tuner) Run(cfg Config, measure Measure) (Result, error) {
	dims := len(cfg.Global)
	if dims < 1 || dims > clkernel.MaxDims {
		return Result{}, fmt.Errorf("tune: %w: %d dimensions", clkernel.ErrInvalidRange, dims)
	}
	choices := make([][]uint64, dims)
	for i, g := range cfg.Global {
		if g == 0 {
			return Result{}, fmt.Errorf("tune: %w: zero global size in dimension %d", clkernel.ErrInvalidRange, i)
		}
		choices[i] = Divisors(g)
	}
	repeats := cfg.Repeats
	if repeats < 1 {
		repeats = 1
	}

	var res Result
	found := false

	eval := func(x []float64) float64 {
		res.Evaluated++
		local := make([]uint64, dims)
		group := uint64(1)
		for i := range local {
			local[i] = pick(choices[i], x[i])
			group *= local[i]
		}
		if cfg.MaxWorkGroup > 0 && group > cfg.MaxWorkGroup {
			res.Invalid++
			return penalty + float64(group)
		}

		var total time.Duration
		for r := 0; r < repeats; r++ {
			d, err := measure(local)
			if err != nil {
				res.Failed++
				t.logger.Debug("candidate failed", "local", local, "err", err)
				return penalty
			}
			total += d
		}
		mean := total / time.Duration(repeats)
		if !found || mean < res.Best.Mean {
			res.Best = Candidate{Local: local, Mean: mean}
			found = true
			t.logger.Debug("new best work-group size", "local", local, "mean", mean)
		}
		return float64(mean)
	}

	lower := make([]float64, dims)
	upper := make([]float64, dims)
	for i := range upper {
		upper[i] = 1
	}
	t.opt.Run(eval, lower, upper, dims)

	if !found {
		return res, ErrNoValidCandidate
	}
	t.logger.Info("tuning complete",
		"global", cfg.Global,
		"local", res.Best.Local,
		"mean", res.Best.Mean,
		"evaluated", res.Evaluated,
		"invalid", res.Invalid,
		"failed", res.Failed)
	return res, nil
}

// KernelMeasure times RunAndWait on k for each candidate local size. The
// kernel must have its arguments bound.
func KernelMeasure(k *clkernel.Kernel, global, offset []uint64) Measure {
	return func(local []uint64) (time.Duration, error) {
		if err := k.SetRange(len(global), global, local, offset); err != nil {
			return 0, err
		}
		start := time.Now()
		if err := k.RunAndWait(); err != nil {
			return 0, err
		}
		return time.Since(start), nil
	}
}
