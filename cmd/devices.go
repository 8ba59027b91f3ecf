package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/oclkernel/internal/backend"
	"github.com/cwbudde/oclkernel/internal/clkernel"
)

var (
	devicesBackend string
	devicesJSON    bool
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List compute platforms and devices",
	RunE:  runDevices,
}

func init() {
	devicesCmd.Flags().StringVar(&devicesBackend, "backend", string(backend.Host), "Compute backend (host, opencl)")
	devicesCmd.Flags().BoolVar(&devicesJSON, "json", false, "Print as JSON")
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	b, err := backend.New(devicesBackend)
	if err != nil {
		return err
	}

	platforms, err := clkernel.EnumeratePlatforms(b)
	if err != nil {
		return fmt.Errorf("failed to enumerate platforms: %w", err)
	}

	out := cmd.OutOrStdout()
	if devicesJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(platforms)
	}

	if len(platforms) == 0 {
		fmt.Fprintln(out, "No platforms found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, p := range platforms {
		fmt.Fprintf(w, "Platform %d: %s (%s, %s)\n", i, p.Name, p.Vendor, p.Version)
		fmt.Fprintln(w, "  DEVICE\tTYPE\tUNITS\tMAX WG\tLOCAL MEM\tFP64")
		for _, d := range p.Devices {
			fmt.Fprintf(w, "  %s\t%s\t%d\t%d\t%s\t%t\n",
				d.Name,
				d.Type,
				d.MaxComputeUnits,
				d.MaxWorkGroupSize,
				formatBytes(int64(d.LocalMemSize)),
				d.FP64,
			)
		}
	}
	return w.Flush()
}
