// Package demo squares a matrix of random values on a compute device and
// verifies every element against the host result.
package demo

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/bits"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/oclkernel/internal/clkernel"
	"github.com/cwbudde/oclkernel/internal/precision"
	"github.com/cwbudde/oclkernel/internal/store"
	"github.com/cwbudde/oclkernel/kernels"
)

// Config selects what the demo runs and where it reports.
type Config struct {
	// ID names the run; a random UUID is used when empty.
	ID          string
	Backend     clkernel.Backend
	BackendName string

	// SourcePath is read from disk when set; otherwise the embedded
	// square kernel is used.
	SourcePath   string
	Kernel       string
	BuildOptions string

	Width, Height uint64
	// Local defaults to the global size; Offset defaults to zero.
	Local  []uint64
	Offset []uint64
	Seed   int64

	Verbose bool
	CPUOnly bool

	Out      io.Writer
	Logger   *slog.Logger
	Observer clkernel.Observer
}

// MaxElements is the largest matrix the demo allocates.
const MaxElements = 1 << 26

// ErrTooLarge is returned by Elements for matrices beyond MaxElements.
var ErrTooLarge = errors.New("matrix too large")

// Elements returns width*height as an element count, rejecting products that
// overflow or exceed MaxElements.
func Elements(width, height uint64) (int, error) {
	hi, n := bits.Mul64(width, height)
	if hi != 0 || n > MaxElements {
		return 0, fmt.Errorf("%w: %dx%d exceeds %d elements", ErrTooLarge, width, height, MaxElements)
	}
	return int(n), nil
}

type step struct {
	name string
	fn   func() error
}

// Run drives the kernel through its lifecycle and tallies the result. Step
// failures are logged and recorded in the report; the remaining device steps
// are skipped but the tally is always printed. The only error returned is
// clkernel.ErrNoCPUDevice.
func Run(cfg Config) (*store.Report, error) {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Kernel == "" {
		cfg.Kernel = kernels.SquareName
	}
	local := cfg.Local
	if len(local) == 0 {
		local = []uint64{cfg.Width, cfg.Height}
	}

	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}

	start := time.Now()
	report := &store.Report{
		ID:        cfg.ID,
		Timestamp: start,
		Backend:   cfg.BackendName,
		Precision: precision.Name,
		Kernel:    cfg.Kernel,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Local:     local,
		Offset:    cfg.Offset,
		Seed:      cfg.Seed,
	}
	if report.Backend == "" && cfg.Backend != nil {
		report.Backend = cfg.Backend.Name()
	}

	n, err := Elements(cfg.Width, cfg.Height)
	if err != nil {
		cfg.Logger.Error("demo step failed", "step", "size", "err", err)
		report.Steps = append(report.Steps, store.StepError{Step: "size", Error: err.Error()})
		tally(cfg.Out, report, 0, 0, nil, nil)
		report.Elapsed = time.Since(start)
		return report, nil
	}
	data := make([]precision.Real, n)
	results := make([]precision.Real, n)
	rng := rand.New(rand.NewSource(cfg.Seed))
	for i := range data {
		data[i] = precision.Real(rng.Float64())
	}

	opts := []clkernel.Option{clkernel.WithLogger(cfg.Logger)}
	if cfg.Observer != nil {
		opts = append(opts, clkernel.WithObserver(cfg.Observer))
	}
	var k *clkernel.Kernel
	if cfg.SourcePath != "" {
		k = clkernel.New(cfg.SourcePath, cfg.Backend, opts...)
	} else {
		k = clkernel.NewFromSource(kernels.Square, cfg.Backend, opts...)
	}
	defer func() {
		if err := k.Close(); err != nil {
			cfg.Logger.Warn("releasing device resources failed", "err", err)
		}
	}()

	size := n * precision.Size
	var input, output clkernel.Buffer
	defer func() {
		for _, b := range []clkernel.Buffer{input, output} {
			if b == nil {
				continue
			}
			if err := b.Release(); err != nil {
				cfg.Logger.Warn("releasing buffer failed", "err", err)
			}
		}
	}()

	options := precision.BuildOptions()
	if cfg.BuildOptions != "" {
		options += " " + cfg.BuildOptions
	}

	steps := []step{
		{"init", func() error { return k.Init(clkernel.InitOptions{Verbose: cfg.Verbose, CPUOnly: cfg.CPUOnly}) }},
		{"input buffer", func() (err error) { input, err = k.NewBuffer(clkernel.MemReadOnly, size); return err }},
		{"output buffer", func() (err error) { output, err = k.NewBuffer(clkernel.MemWriteOnly, size); return err }},
		{"write", func() error { return k.WriteBuffer(input, precision.Bytes(data)) }},
		{"build", func() error { return k.Build(options) }},
		{"activate", func() error { return k.ActivateKernel(cfg.Kernel) }},
		{"range", func() error { return k.Set2DRange([]uint64{cfg.Width, cfg.Height}, local, cfg.Offset) }},
		{"arg 0", func() error { return k.SetArg(0, input) }},
		{"arg 1", func() error { return k.SetArg(1, output) }},
		{"run", k.RunAndWait},
		{"read", func() error { return k.ReadBuffer(output, precision.Bytes(results)) }},
	}

	for _, s := range steps {
		err := s.fn()
		if err == nil {
			continue
		}
		if errors.Is(err, clkernel.ErrNoCPUDevice) {
			return report, err
		}
		cfg.Logger.Error("demo step failed", "step", s.name, "err", err)
		report.Steps = append(report.Steps, store.StepError{Step: s.name, Error: err.Error()})
		break
	}

	report.Device = k.Device()
	report.Platform = k.Platform().Name

	tally(cfg.Out, report, cfg.Width, cfg.Height, data, results)
	report.Elapsed = time.Since(start)
	return report, nil
}

// tally compares results against the squares of data element by element.
func tally(w io.Writer, report *store.Report, width, height uint64, data, results []precision.Real) {
	fmt.Fprintln(w, "Testing results ...")

	for i := uint64(0); i < width; i++ {
		for j := uint64(0); j < height; j++ {
			elem := i + j*width
			want := data[elem] * data[elem]
			if results[elem] == want {
				report.Correct++
				continue
			}
			fmt.Fprintf(w, "%d, %d\t%v\t%v\n", i, j, results[elem], want)
			report.Mismatches = append(report.Mismatches, store.Mismatch{
				I:    i,
				J:    j,
				Got:  float64(results[elem]),
				Want: float64(want),
			})
		}
	}
	report.Total = len(data)

	fmt.Fprintf(w, "Computed %d/%d correct values.\n", report.Correct, report.Total)
}
