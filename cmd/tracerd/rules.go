package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracer-cloud/tracerd/internal/config"
	"github.com/tracer-cloud/tracerd/internal/rulesstore"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate process-matching rules",
	}
	cmd.AddCommand(newRulesValidateCmd())
	return cmd
}

func newRulesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the embedded and overlay rules and report the active rule count",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configDirFlag)
			if err != nil {
				return err
			}
			store, err := rulesstore.New(cfg.RulesDir)
			if err != nil {
				return err
			}
			snap := store.Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "rules: %d active, %d blacklisted\n", len(snap.Rules), len(snap.Blacklist))
			return nil
		},
	}
}
