package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/stackforge/stackforge/pkg/catalog"
	"github.com/stackforge/stackforge/pkg/config"
	"github.com/stackforge/stackforge/pkg/engine"
	"github.com/stackforge/stackforge/pkg/policy"
	"github.com/stackforge/stackforge/pkg/project"
	"github.com/stackforge/stackforge/pkg/stores"
	"github.com/stackforge/stackforge/pkg/telemetry"
)

// loadCatalog loads the builtin catalog overlaid with any --catalog paths.
func loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	evaluator := catalog.NewPredicateEvaluator(0, log.Logger)
	loader := catalog.NewLoader(evaluator, log.Logger)
	return loader.Load(ctx, catalogPaths)
}

// resolveStack walks the catalog with the given provider and defaults and
// returns the finalized snapshot.
func resolveStack(ctx context.Context, cat *catalog.Catalog, provider engine.ChoiceProvider, defaults engine.Selections) (*engine.Snapshot, error) {
	walker := engine.NewWalker(cat.Nodes, cat.Categories, instrumentProvider(ctx, provider), log.Logger)
	return walker.Resolve(ctx, defaults)
}

// instrumentProvider wraps a choice provider so every solicitation is
// counted per node. Auto-resolved nodes never reach the provider.
func instrumentProvider(ctx context.Context, inner engine.ChoiceProvider) engine.ChoiceProvider {
	tel := telemetry.FromTelemetryContext(ctx)
	if tel == nil {
		return inner
	}
	return engine.ChoiceProviderFunc(func(ctx context.Context, node engine.ChoiceNode, options []engine.Option) ([]string, error) {
		ids, err := inner.Choose(ctx, node, options)
		outcome := "accepted"
		if err != nil {
			outcome = "rejected"
		}
		tel.Metrics.RecordSolicitation(node.ID, outcome)
		return ids, err
	})
}

// inspectProject snapshots the scaffolded project directory.
func inspectProject(projectDir string) (*engine.ProjectState, error) {
	return project.NewInspector(log.Logger).Inspect(projectDir)
}

// buildPlan runs conflict resolution and planning for a finalized snapshot
// against an inspected project state.
func buildPlan(ctx context.Context, cat *catalog.Catalog, snapshot *engine.Snapshot, state *engine.ProjectState) (*engine.OperationPlan, error) {
	resolver := engine.NewConflictResolver(log.Logger)
	set, err := resolver.Resolve(snapshot, cat.Rules)
	if err != nil {
		return nil, err
	}

	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		excluded := make(map[string]bool, len(set.Excluded))
		for _, tool := range set.Excluded {
			excluded[tool] = true
		}
		for _, origin := range set.Origins {
			for _, replaced := range set.ByOrigin[origin].ReplacedTools {
				if excluded[replaced] {
					tel.Metrics.RecordSupersession(origin)
				}
			}
		}
	}

	return engine.NewPlanner(log.Logger).Plan(set, snapshot, state)
}

// gatePlan evaluates the plan against builtin and user-supplied policies.
// An error-severity violation fails the run.
func gatePlan(ctx context.Context, plan *engine.OperationPlan, state *engine.ProjectState, policyPaths []string) error {
	eng, err := policy.NewEngine(log.Logger)
	if err != nil {
		return err
	}
	if len(policyPaths) > 0 {
		if err := eng.LoadPolicies(ctx, policyPaths); err != nil {
			return err
		}
	}

	result, err := eng.EvaluatePlan(ctx, plan, state)
	if err != nil {
		return err
	}

	tel := telemetry.FromTelemetryContext(ctx)
	for _, v := range result.Violations {
		event := log.Warn()
		if v.Severity == policy.SeverityError {
			event = log.Error()
		}
		event.
			Str("policy", v.Policy).
			Str("severity", string(v.Severity)).
			Msg(v.Message)
		if tel != nil {
			tel.Metrics.RecordPolicyViolation(v.Policy, string(v.Severity))
		}
	}
	for _, w := range result.Warnings {
		log.Warn().Msg(w)
	}

	if !result.Allowed {
		return fmt.Errorf("plan blocked by policy (%d violations)", len(result.Violations))
	}
	return nil
}

// writePlan writes the plan as JSON to the given path, or stdout when the
// path is empty.
func writePlan(plan *engine.OperationPlan, outFile string) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	data = append(data, '\n')

	if outFile == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write plan file: %w", err)
	}
	log.Info().Str("out", outFile).Int("operations", len(plan.Operations)).Msg("Plan written")
	return nil
}

// persistConfig merges the snapshot into the canonical config document.
func persistConfig(ctx context.Context, snapshot *engine.Snapshot, meta config.IntegrationMetadata) error {
	persister := config.NewPersister(configPath, config.NewSchemaRegistry(), log.Logger)
	if _, err := persister.Persist(ctx, snapshot, meta); err != nil {
		return err
	}
	return nil
}

// recordHistory stores the resolution and plan in the history database when
// one is configured. History failures are reported but never fail the run.
func recordHistory(ctx context.Context, dbPath, projectDir, catalogVersion string, snapshot *engine.Snapshot, plan *engine.OperationPlan, persisted bool) {
	if dbPath == "" {
		return
	}

	store := stores.NewSQLiteStore(stores.DefaultConfig(dbPath), log.Logger)
	if err := store.Init(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to open history database")
		return
	}
	defer func() { _ = store.Close() }()
	if err := store.Migrate(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to migrate history database")
		return
	}

	recorder := stores.NewRecorder(store, log.Logger)
	res, err := recorder.RecordResolution(ctx, projectDir, catalogVersion, snapshot)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to record resolution")
		return
	}
	if _, err := recorder.RecordPlan(ctx, res.ID, plan); err != nil {
		log.Warn().Err(err).Msg("Failed to record plan")
		return
	}
	if persisted {
		if err := recorder.MarkPersisted(ctx, res.ID); err != nil {
			log.Warn().Err(err).Msg("Failed to mark resolution persisted")
		}
	}
	log.Info().Str("resolution_id", res.ID).Msg("Resolution recorded")
}

// defaultsFromConfig derives seed selections from an existing canonical
// config document's stack section.
func defaultsFromConfig(doc config.Document) engine.Selections {
	defaults := make(engine.Selections)
	stack, ok := doc["stack"].(map[string]interface{})
	if !ok {
		return defaults
	}

	single := map[string]string{
		"structure":       "structure",
		"project_type":    "project-type",
		"language":        "language",
		"package_manager": "package-manager",
	}
	for key, node := range single {
		if v, ok := stack[key].(string); ok && v != "" {
			defaults[node] = []string{v}
		}
	}

	multi := map[string]string{
		"frameworks": "framework",
		"additions":  "additions",
	}
	for key, node := range multi {
		list, ok := stack[key].([]interface{})
		if !ok {
			continue
		}
		ids := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				ids = append(ids, s)
			}
		}
		defaults[node] = ids
	}
	return defaults
}
