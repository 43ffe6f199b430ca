package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stackforge/stackforge/pkg/catalog"
	"github.com/stackforge/stackforge/pkg/config"
	"github.com/stackforge/stackforge/pkg/engine"
	"github.com/stackforge/stackforge/pkg/policy"
	"github.com/stackforge/stackforge/pkg/telemetry"
)

func newDevCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Development mode commands",
		Long:  `Commands for authoring extension catalogs and policies locally.`,
	}

	cmd.AddCommand(newDevWatchCommand())

	return cmd
}

func newDevWatchCommand() *cobra.Command {
	var (
		policyPaths []string
		projectDir  string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch catalogs and policies, reloading on change",
		Long: `Watch extension catalog and policy paths and reload them on change,
reporting validation errors as they are introduced. When a canonical config
exists, each catalog reload re-plans against it so rule edits show their
effect immediately. Runs until interrupted.`,
		Example: `  # Watch a catalog directory while editing it
  stackforge dev watch --catalog ./catalogs

  # Watch catalogs and policies together
  stackforge dev watch --catalog ./catalogs --policy ./policies`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(catalogPaths) == 0 && len(policyPaths) == 0 {
				return fmt.Errorf("nothing to watch, pass --catalog and/or --policy")
			}

			if len(catalogPaths) > 0 {
				evaluator := catalog.NewPredicateEvaluator(0, log.Logger)
				loader := catalog.NewLoader(evaluator, log.Logger)

				cat, err := loader.Load(ctx, catalogPaths)
				if err != nil {
					return err
				}
				log.Info().Str("version", cat.Version).Int("nodes", len(cat.Nodes)).Msg("Catalog loaded")
				replanOnReload(ctx, cat, projectDir)

				err = loader.Watch(ctx, catalogPaths, func(cat *catalog.Catalog) error {
					log.Info().
						Str("version", cat.Version).
						Int("nodes", len(cat.Nodes)).
						Msg("Catalog reloaded")
					if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
						tel.Metrics.RecordCatalogReload("success", len(cat.Nodes))
						_ = tel.Events.PublishCatalogReloaded(cat.Version, len(cat.Nodes))
					}
					replanOnReload(ctx, cat, projectDir)
					return nil
				})
				if err != nil {
					return err
				}
				defer func() { _ = loader.StopWatching() }()
			}

			if len(policyPaths) > 0 {
				eng, err := policy.NewEngine(log.Logger)
				if err != nil {
					return err
				}
				if err := eng.LoadPolicies(ctx, policyPaths); err != nil {
					return err
				}
				log.Info().Int("policies", len(eng.ListPolicies())).Msg("Policies loaded")

				loader := policy.NewLoader(log.Logger)
				err = loader.Watch(ctx, policyPaths, func(policies []policy.Policy) error {
					log.Info().Int("policies", len(policies)).Msg("Policies reloaded")
					return nil
				})
				if err != nil {
					return err
				}
				defer func() { _ = loader.StopWatching() }()
			}

			log.Info().Msg("Watching for changes, Ctrl+C to stop")
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "policy file or directory to watch (repeatable)")
	cmd.Flags().StringVarP(&projectDir, "project", "p", ".", "project directory to re-plan against")

	return cmd
}

// replanOnReload re-plans against the canonical config after a catalog
// change. Skipped quietly when no config exists yet.
func replanOnReload(ctx context.Context, cat *catalog.Catalog, projectDir string) {
	persister := config.NewPersister(configPath, config.NewSchemaRegistry(), log.Logger)
	doc, err := persister.Load()
	if err != nil || doc == nil {
		log.Debug().Str("path", configPath).Msg("No canonical config, skipping re-plan")
		return
	}

	provider := engine.ChoiceProviderFunc(func(ctx context.Context, node engine.ChoiceNode, options []engine.Option) ([]string, error) {
		return nil, fmt.Errorf("canonical config has no answer for node %q", node.ID)
	})
	snapshot, err := resolveStack(ctx, cat, provider, defaultsFromConfig(doc))
	if err != nil {
		log.Warn().Err(err).Msg("Re-plan failed during resolution")
		return
	}
	state, err := inspectProject(projectDir)
	if err != nil {
		log.Warn().Err(err).Msg("Re-plan failed during inspection")
		return
	}
	plan, err := buildPlan(ctx, cat, snapshot, state)
	if err != nil {
		log.Warn().Err(err).Msg("Re-plan failed during planning")
		return
	}
	log.Info().
		Int("operations", len(plan.Operations)).
		Int("removals", plan.Summary.Removals).
		Int("deletions", plan.Summary.Deletions).
		Int("rewrites", plan.Summary.Rewrites).
		Msg("Re-planned after catalog reload")
}
