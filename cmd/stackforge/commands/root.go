package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath   string
	catalogPaths []string
	verbose      bool
	jsonOutput   bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stackforge",
		Short: "StackForge - Stack Selection and Tool Reconciliation Engine",
		Long: `StackForge resolves a project's technology stack through a predicate-filtered
decision catalog and reconciles the scaffolded project with the outcome.

Features:
  - Decision-tree stack selection with predicate-filtered options
  - Supersession rules that retire replaced tools deterministically
  - Idempotent operation plans (dependency removals, file deletions, script rewrites)
  - Canonical config persistence with merge preservation (CUE-validated)
  - OPA policy gating of generated plans
  - Starlark-extensible catalogs with hot reload`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "stackforge.yaml", "canonical config file path")
	rootCmd.PersistentFlags().StringSliceVar(&catalogPaths, "catalog", nil, "extension catalog file or directory (repeatable)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newResolveCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newCatalogCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newDevCommand())

	return rootCmd
}
