package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/oclkernel/internal/precision"
)

var version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "oclkernel version %s (%s precision)\n", version, precision.Name)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
