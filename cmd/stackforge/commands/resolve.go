package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stackforge/stackforge/pkg/config"
	"github.com/stackforge/stackforge/pkg/engine"
	"github.com/stackforge/stackforge/pkg/project"
	"github.com/stackforge/stackforge/pkg/telemetry"
)

func newResolveCommand() *cobra.Command {
	var (
		projectDir   string
		answersFile  string
		setValues    []string
		outFile      string
		policyPaths  []string
		historyDB    string
		dryRun       bool
		services     []string
		integrations []string
		skills       []string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the stack and reconcile the project",
		Long: `Walk the decision catalog, resolve tool conflicts, and generate the
reconciliation plan for the scaffolded project.

The resolution:
  - Solicits each catalog node (interactively, or from an answers file)
  - Applies supersession rules to retire replaced tools
  - Plans dependency removals, file deletions, and script rewrites
  - Gates the plan with policies
  - Persists the outcome to the canonical config (unless --dry-run)`,
		Example: `  # Interactive resolution against the current directory
  stackforge resolve

  # Scripted resolution from an answers file, plan to file
  stackforge resolve --answers answers.yaml --out plan.json

  # Seed individual answers and keep the config untouched
  stackforge resolve --set project-type=web --set framework=nextjs --dry-run

  # Record the resolution in a history database
  stackforge resolve --answers answers.yaml --history .stackforge/history.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			timer := telemetry.NewTimer()
			resolutionID := uuid.New().String()
			ctx := telemetry.WithResolutionContext(cmd.Context(), resolutionID, projectDir, "unknown")

			runErr := runResolve(ctx, resolveOptions{
				resolutionID: resolutionID,
				projectDir:   projectDir,
				answersFile:  answersFile,
				setValues:    setValues,
				outFile:      outFile,
				policyPaths:  policyPaths,
				historyDB:    historyDB,
				dryRun:       dryRun,
				services:     services,
				integrations: integrations,
				skills:       skills,
			}, timer)

			status := "completed"
			if runErr != nil {
				status = "failed"
				if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
					class := "unclassified"
					switch {
					case engine.IsFatal(runErr):
						class = "fatal"
					case engine.IsRecoverable(runErr):
						class = "recoverable"
					}
					tel.Metrics.RecordError(class, engine.CodeOf(runErr))
				}
			}
			telemetry.EndResolutionContext(ctx, resolutionID, status, timer, runErr)
			return runErr
		},
	}

	cmd.Flags().StringVarP(&projectDir, "project", "p", ".", "scaffolded project directory")
	cmd.Flags().StringVarP(&answersFile, "answers", "a", "", "answers YAML file (node: option or list)")
	cmd.Flags().StringArrayVar(&setValues, "set", nil, "seed an answer, node=option[,option] (repeatable)")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "plan output file (default: stdout)")
	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "additional policy file or directory (repeatable)")
	cmd.Flags().StringVar(&historyDB, "history", "", "history SQLite database path (empty: no history)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "generate the plan without touching the config")
	cmd.Flags().StringSliceVar(&services, "service", nil, "integration service, name=identifier (repeatable)")
	cmd.Flags().StringSliceVar(&integrations, "integration", nil, "tooling integration to record (repeatable)")
	cmd.Flags().StringSliceVar(&skills, "skill", nil, "skill to record (repeatable)")

	return cmd
}

// resolveOptions carries the resolve command's flag values.
type resolveOptions struct {
	resolutionID string
	projectDir   string
	answersFile  string
	setValues    []string
	outFile      string
	policyPaths  []string
	historyDB    string
	dryRun       bool
	services     []string
	integrations []string
	skills       []string
}

// runResolve executes the full resolution pass: walk, conflict resolution,
// planning, policy gating, persistence, and history recording.
func runResolve(ctx context.Context, opts resolveOptions, timer *telemetry.Timer) error {
	cat, err := loadCatalog(ctx)
	if err != nil {
		return err
	}

	state, err := inspectProject(opts.projectDir)
	if err != nil {
		return err
	}

	// Detected defaults seed nodes the user left unset. Explicit --set
	// values win.
	defaults := project.DetectDefaults(state)
	explicit, err := parseSetFlags(opts.setValues)
	if err != nil {
		return err
	}
	for node, options := range explicit {
		defaults[node] = options
	}

	var provider engine.ChoiceProvider
	if opts.answersFile != "" {
		answers, err := loadAnswersFile(opts.answersFile)
		if err != nil {
			return err
		}
		provider = &answersProvider{answers: answers}
	} else {
		provider = newInteractiveProvider()
	}

	snapshot, err := resolveStack(ctx, cat, provider, defaults)
	if err != nil {
		return err
	}
	log.Info().
		Strs("tools", snapshot.SelectedTools()).
		Str("catalog", cat.Version).
		Msg("Stack resolved")

	plan, err := buildPlan(ctx, cat, snapshot, state)
	if err != nil {
		return err
	}
	recordPlanTelemetry(ctx, opts.resolutionID, plan)

	if err := gatePlan(ctx, plan, state, opts.policyPaths); err != nil {
		return err
	}
	if err := writePlan(plan, opts.outFile); err != nil {
		return err
	}

	persisted := false
	if opts.dryRun {
		log.Info().Msg("Dry run, canonical config untouched")
	} else {
		meta, err := parseMetadata(opts.services, opts.integrations, opts.skills)
		if err != nil {
			return err
		}
		if err := persistConfig(ctx, snapshot, meta); err != nil {
			return err
		}
		persisted = true
		if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
			_ = tel.Events.PublishConfigPersisted(opts.resolutionID, configPath)
		}
	}

	recordHistory(ctx, opts.historyDB, opts.projectDir, cat.Version, snapshot, plan, persisted)

	log.Info().
		Int("operations", len(plan.Operations)).
		Dur("elapsed", timer.Duration()).
		Msg("Resolution complete")
	return nil
}

// recordPlanTelemetry records plan metrics and the generation event.
func recordPlanTelemetry(ctx context.Context, resolutionID string, plan *engine.OperationPlan) {
	tel := telemetry.FromTelemetryContext(ctx)
	if tel == nil {
		return
	}
	byKind := make(map[string]int, 3)
	for _, op := range plan.Operations {
		byKind[string(op.Kind)]++
	}
	tel.Metrics.RecordPlan(byKind)
	_ = tel.Events.PublishPlanGenerated(resolutionID, plan.ID, len(plan.Operations))
}

// parseMetadata builds the integration metadata from CLI flags.
func parseMetadata(services, integrations, skills []string) (config.IntegrationMetadata, error) {
	meta := config.IntegrationMetadata{
		Integrations: integrations,
		Skills:       skills,
	}
	if len(services) > 0 {
		meta.Services = make(map[string]string, len(services))
		for _, s := range services {
			parts := strings.SplitN(s, "=", 2)
			if len(parts) != 2 || parts[0] == "" {
				return meta, fmt.Errorf("invalid --service value %q, expected name=identifier", s)
			}
			meta.Services[parts[0]] = parts[1]
		}
	}
	return meta, nil
}
