package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stackforge/stackforge/pkg/config"
	"github.com/stackforge/stackforge/pkg/policy"
)

func newValidateCommand() *cobra.Command {
	var policyPaths []string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate config, catalogs, and policies",
		Long: `Validate the canonical config against its schema, load any extension
catalogs (compiling their predicates), and parse any policy files.`,
		Example: `  # Validate the canonical config
  stackforge validate

  # Validate config plus extension catalogs and policies
  stackforge validate --catalog ./catalogs --policy ./policies`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			persister := config.NewPersister(configPath, config.NewSchemaRegistry(), log.Logger)
			doc, err := persister.Load()
			if err != nil {
				return err
			}
			if doc == nil {
				log.Warn().Str("path", configPath).Msg("No canonical config to validate")
			} else {
				if err := config.NewSchemaRegistry().ValidateCanonical(ctx, doc); err != nil {
					return fmt.Errorf("canonical config invalid: %w", err)
				}
				log.Info().Str("path", configPath).Msg("Canonical config valid")
			}

			cat, err := loadCatalog(ctx)
			if err != nil {
				return fmt.Errorf("catalog invalid: %w", err)
			}
			log.Info().
				Str("version", cat.Version).
				Int("nodes", len(cat.Nodes)).
				Int("rules", len(cat.Rules.Tools())).
				Msg("Catalog valid")

			if len(policyPaths) > 0 {
				eng, err := policy.NewEngine(log.Logger)
				if err != nil {
					return err
				}
				if err := eng.LoadPolicies(ctx, policyPaths); err != nil {
					return fmt.Errorf("policies invalid: %w", err)
				}
				log.Info().Int("policies", len(eng.ListPolicies())).Msg("Policies valid")
			}

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "policy file or directory to validate (repeatable)")

	return cmd
}
