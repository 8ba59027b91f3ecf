package main

import (
	"github.com/spf13/cobra"

	"github.com/cwbudde/oclkernel/internal/config"
)

// runFlags are shared by every command that drives a kernel.
type runFlags struct {
	configPath   string
	backend      string
	source       string
	kernel       string
	buildOptions string
	width        uint64
	height       uint64
	local        []uint
	offset       []uint
	seed         int64
	verbose      bool
	cpuOnly      bool
	dataDir      string
	save         bool
}

var kernelFlags runFlags

func addKernelFlags(cmd *cobra.Command, f *runFlags) {
	d := config.Default()
	cmd.Flags().StringVar(&f.configPath, "config", "", "YAML configuration file")
	cmd.Flags().StringVar(&f.backend, "backend", d.Backend, "Compute backend (host, opencl)")
	cmd.Flags().StringVar(&f.source, "source", "", "Kernel source file (default: embedded square.cl)")
	cmd.Flags().StringVar(&f.kernel, "kernel", d.Kernel, "Kernel function to activate")
	cmd.Flags().StringVar(&f.buildOptions, "build-options", "", "Extra compiler options, e.g. \"-D_MY_CONSTANT_=1 -I.\"")
	cmd.Flags().Uint64Var(&f.width, "width", d.Width, "Matrix width")
	cmd.Flags().Uint64Var(&f.height, "height", d.Height, "Matrix height")
	cmd.Flags().UintSliceVar(&f.local, "local", nil, "Local work-group sizes (default: global size)")
	cmd.Flags().UintSliceVar(&f.offset, "offset", nil, "Global work offsets")
	cmd.Flags().Int64Var(&f.seed, "seed", d.Seed, "Random seed for the test data")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Report every wrapper step at info level")
	cmd.Flags().BoolVar(&f.cpuOnly, "cpu-only", false, "Skip GPU devices")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", d.DataDir, "Base directory for stored reports")
}

// loadConfig reads --config when given and lets explicitly set flags win.
func loadConfig(cmd *cobra.Command, f *runFlags) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return cfg, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("backend") {
		cfg.Backend = f.backend
	}
	if changed("source") {
		cfg.Source = f.source
	}
	if changed("kernel") {
		cfg.Kernel = f.kernel
	}
	if changed("build-options") {
		cfg.BuildOptions = f.buildOptions
	}
	if changed("width") {
		cfg.Width = f.width
	}
	if changed("height") {
		cfg.Height = f.height
	}
	if changed("local") {
		cfg.Local = toUint64(f.local)
	}
	if changed("offset") {
		cfg.Offset = toUint64(f.offset)
	}
	if changed("seed") {
		cfg.Seed = f.seed
	}
	if changed("verbose") {
		cfg.Verbose = f.verbose
	}
	if changed("cpu-only") {
		cfg.CPUOnly = f.cpuOnly
	}
	if changed("data-dir") {
		cfg.DataDir = f.dataDir
	}
	if changed("save") {
		cfg.Save = f.save
	}

	return cfg, cfg.Validate()
}

func toUint64(v []uint) []uint64 {
	if len(v) == 0 {
		return nil
	}
	out := make([]uint64, len(v))
	for i, x := range v {
		out[i] = uint64(x)
	}
	return out
}
