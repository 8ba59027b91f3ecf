package main

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/oclkernel/internal/backend"
	"github.com/cwbudde/oclkernel/internal/clkernel"
	"github.com/cwbudde/oclkernel/internal/config"
	"github.com/cwbudde/oclkernel/internal/demo"
	"github.com/cwbudde/oclkernel/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Square random values on the device and verify them",
	Long: `Runs the square kernel over a width x height matrix and compares every
element bit-for-bit with the host result. Step failures are logged and the
tally is still printed; only a missing CPU fallback device fails the command.`,
	RunE: runDemo,
}

func init() {
	addKernelFlags(runCmd, &kernelFlags)
	runCmd.Flags().BoolVar(&kernelFlags.save, "save", false, "Store the report and event log under --data-dir")
	rootCmd.AddCommand(runCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, &kernelFlags)
	if err != nil {
		return err
	}

	b, err := backend.New(cfg.Backend)
	if err != nil {
		return err
	}

	dcfg := demoConfig(cfg, b)
	dcfg.Out = cmd.OutOrStdout()

	var (
		reports *store.FSStore
		events  *store.EventWriter
	)
	if cfg.Save {
		if reports, err = store.NewFSStore(cfg.DataDir); err != nil {
			return fmt.Errorf("failed to create report store: %w", err)
		}
		dcfg.ID = uuid.New().String()
		if events, err = store.NewEventWriter(cfg.DataDir, dcfg.ID); err != nil {
			return err
		}
		dcfg.Observer = events.Observe
	}

	slog.Info("Starting verification run",
		"backend", backend.Normalize(cfg.Backend),
		"width", cfg.Width,
		"height", cfg.Height,
		"seed", cfg.Seed)

	report, runErr := demo.Run(dcfg)

	if events != nil {
		if err := events.Close(); err != nil {
			slog.Warn("Failed to write event log", "path", events.Path(), "error", err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("no usable compute device: %w", runErr)
	}

	slog.Info("Verification finished",
		"correct", report.Correct,
		"total", report.Total,
		"failed_steps", len(report.Steps),
		"elapsed", report.Elapsed)

	if reports != nil {
		if err := reports.SaveReport(report); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Report saved: %s\n", report.ID)
	}
	return nil
}

func demoConfig(cfg config.Config, b clkernel.Backend) demo.Config {
	return demo.Config{
		Backend:      b,
		BackendName:  string(backend.Normalize(cfg.Backend)),
		SourcePath:   cfg.Source,
		Kernel:       cfg.Kernel,
		BuildOptions: cfg.BuildOptions,
		Width:        cfg.Width,
		Height:       cfg.Height,
		Local:        cfg.Local,
		Offset:       cfg.Offset,
		Seed:         cfg.Seed,
		Verbose:      cfg.Verbose,
		CPUOnly:      cfg.CPUOnly,
		Logger:       slog.Default(),
	}
}
