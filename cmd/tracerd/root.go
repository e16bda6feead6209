package main

import (
	"github.com/spf13/cobra"
)

var configDirFlag string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tracerd",
		Short: "Tracer host agent",
		Long:  "tracerd observes bioinformatics and batch-compute pipeline steps on a host and forwards enriched telemetry to a remote collector.",
	}

	root.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "directory holding config.yaml (default $TRACER_CONFIG_DIR, then /tmp/tracer); rules overlays are read from the rules_dir setting")

	root.AddCommand(newRunCmd())
	root.AddCommand(newRulesCmd())

	return root
}
