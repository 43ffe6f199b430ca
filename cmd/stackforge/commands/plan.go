package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stackforge/stackforge/pkg/config"
	"github.com/stackforge/stackforge/pkg/engine"
)

func newPlanCommand() *cobra.Command {
	var (
		projectDir  string
		outFile     string
		policyPaths []string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate a reconciliation plan from the canonical config",
		Long: `Generate the reconciliation plan for a previously resolved stack.

The stack section of the canonical config seeds the catalog walk, so no
prompting occurs; an incomplete config fails the command. Running plan twice
against an unchanged project yields the same plan, and a project that is
already aligned yields an empty plan.`,
		Example: `  # Plan against the current directory, print to stdout
  stackforge plan

  # Plan a specific project and save the plan
  stackforge plan --project ./app --out plan.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cat, err := loadCatalog(ctx)
			if err != nil {
				return err
			}

			persister := config.NewPersister(configPath, config.NewSchemaRegistry(), log.Logger)
			doc, err := persister.Load()
			if err != nil {
				return err
			}
			if doc == nil {
				return fmt.Errorf("no canonical config at %s, run 'stackforge resolve' first", configPath)
			}

			defaults := defaultsFromConfig(doc)
			provider := engine.ChoiceProviderFunc(func(ctx context.Context, node engine.ChoiceNode, options []engine.Option) ([]string, error) {
				return nil, fmt.Errorf("canonical config has no answer for node %q, re-run 'stackforge resolve'", node.ID)
			})

			snapshot, err := resolveStack(ctx, cat, provider, defaults)
			if err != nil {
				return err
			}

			state, err := inspectProject(projectDir)
			if err != nil {
				return err
			}
			plan, err := buildPlan(ctx, cat, snapshot, state)
			if err != nil {
				return err
			}
			if err := gatePlan(ctx, plan, state, policyPaths); err != nil {
				return err
			}

			if plan.Empty() {
				log.Info().Msg("Project already aligned, empty plan")
			}
			return writePlan(plan, outFile)
		},
	}

	cmd.Flags().StringVarP(&projectDir, "project", "p", ".", "scaffolded project directory")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "plan output file (default: stdout)")
	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "additional policy file or directory (repeatable)")

	return cmd
}
