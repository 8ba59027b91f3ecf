package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cwbudde/oclkernel/internal/backend"
	"github.com/cwbudde/oclkernel/internal/clkernel"
	"github.com/cwbudde/oclkernel/internal/demo"
	"github.com/cwbudde/oclkernel/internal/precision"
	"github.com/cwbudde/oclkernel/internal/tune"
	"github.com/cwbudde/oclkernel/kernels"
)

var (
	tuneIters   int
	tunePop     int
	tuneSeed    int64
	tuneRepeats int
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Search the fastest work-group size for the kernel",
	Long: `Builds the kernel once and uses the Mayfly optimizer to search local
work-group sizes that divide the global range, timing each candidate.`,
	RunE: runTune,
}

func init() {
	addKernelFlags(tuneCmd, &kernelFlags)
	tuneCmd.Flags().IntVar(&tuneIters, "iters", 0, "Optimizer iterations (default from config)")
	tuneCmd.Flags().IntVar(&tunePop, "pop", 0, "Population size, at least 20 (default from config)")
	tuneCmd.Flags().Int64Var(&tuneSeed, "tune-seed", 0, "Optimizer seed (default from config)")
	tuneCmd.Flags().IntVar(&tuneRepeats, "repeats", 0, "Launches averaged per candidate (default from config)")
	rootCmd.AddCommand(tuneCmd)
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, &kernelFlags)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("iters") {
		cfg.Tune.Iterations = tuneIters
	}
	if cmd.Flags().Changed("pop") {
		cfg.Tune.PopSize = tunePop
	}
	if cmd.Flags().Changed("tune-seed") {
		cfg.Tune.Seed = tuneSeed
	}
	if cmd.Flags().Changed("repeats") {
		cfg.Tune.Repeats = tuneRepeats
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	b, err := backend.New(cfg.Backend)
	if err != nil {
		return err
	}

	var k *clkernel.Kernel
	if cfg.Source != "" {
		k = clkernel.New(cfg.Source, b, clkernel.WithLogger(slog.Default()))
	} else {
		k = clkernel.NewFromSource(kernels.Square, b, clkernel.WithLogger(slog.Default()))
	}
	defer k.Close()

	n, err := demo.Elements(cfg.Width, cfg.Height)
	if err != nil {
		return err
	}
	global := []uint64{cfg.Width, cfg.Height}
	size := n * precision.Size
	data := make([]precision.Real, n)

	if err := k.Init(clkernel.InitOptions{Verbose: cfg.Verbose, CPUOnly: cfg.CPUOnly}); err != nil {
		return err
	}
	input, err := k.NewBuffer(clkernel.MemReadOnly, size)
	if err != nil {
		return err
	}
	defer input.Release()
	output, err := k.NewBuffer(clkernel.MemWriteOnly, size)
	if err != nil {
		return err
	}
	defer output.Release()

	options := precision.BuildOptions()
	if cfg.BuildOptions != "" {
		options += " " + cfg.BuildOptions
	}
	setup := []func() error{
		func() error { return k.WriteBuffer(input, precision.Bytes(data)) },
		func() error { return k.Build(options) },
		func() error { return k.ActivateKernel(cfg.Kernel) },
		func() error { return k.SetArg(0, input) },
		func() error { return k.SetArg(1, output) },
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return err
		}
	}

	tcfg := tune.Config{
		Global:       global,
		MaxWorkGroup: k.Device().MaxWorkGroupSize,
		Iterations:   cfg.Tune.Iterations,
		PopSize:      cfg.Tune.PopSize,
		Seed:         cfg.Tune.Seed,
		Repeats:      cfg.Tune.Repeats,
	}
	res, err := tune.New(tcfg, slog.Default()).Run(tcfg, tune.KernelMeasure(k, global, cfg.Offset))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Device: %s\n", k.Device().Name)
	fmt.Fprintf(out, "Best local size: %v (mean %v over %d launches)\n", res.Best.Local, res.Best.Mean, tcfg.Repeats)
	fmt.Fprintf(out, "Candidates: %d evaluated, %d over the work-group limit, %d failed\n", res.Evaluated, res.Invalid, res.Failed)
	return nil
}
