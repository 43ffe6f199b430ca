package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stackforge/stackforge/pkg/config"
	"github.com/stackforge/stackforge/pkg/engine"
)

func newInitCommand() *cobra.Command {
	var (
		structure      string
		projectType    string
		language       string
		framework      string
		packageManager string
		additions      []string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a canonical config non-interactively",
		Long: `Create the canonical config from flag-supplied answers without prompting.

Every required node must be answered by a flag or auto-resolvable (a required
single-select node whose filtered set has exactly one option resolves itself,
e.g. the framework for a CLI project).`,
		Example: `  # Initialize a Next.js web app config
  stackforge init --type web --language typescript --framework nextjs --pm pnpm

  # CLI projects auto-resolve language and framework
  stackforge init --type cli --pm npm --additions biome,vitest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cat, err := loadCatalog(ctx)
			if err != nil {
				return err
			}

			defaults := engine.Selections{
				"structure":    {structure},
				"project-type": {projectType},
			}
			if language != "" {
				defaults["language"] = []string{language}
			}
			if framework != "" {
				defaults["framework"] = []string{framework}
			}
			if packageManager != "" {
				defaults["package-manager"] = []string{packageManager}
			}
			defaults["additions"] = additions

			provider := engine.ChoiceProviderFunc(func(ctx context.Context, node engine.ChoiceNode, options []engine.Option) ([]string, error) {
				return nil, fmt.Errorf("node %q has no answer, pass the matching flag", node.ID)
			})

			snapshot, err := resolveStack(ctx, cat, provider, defaults)
			if err != nil {
				return err
			}

			if err := persistConfig(ctx, snapshot, config.IntegrationMetadata{}); err != nil {
				return err
			}

			log.Info().
				Str("path", configPath).
				Strs("tools", snapshot.SelectedTools()).
				Msg("Canonical config created")
			return nil
		},
	}

	cmd.Flags().StringVar(&structure, "structure", "single-app", "repository structure (monorepo, single-app)")
	cmd.Flags().StringVarP(&projectType, "type", "t", "", "project type (web, api, cli, library)")
	cmd.Flags().StringVarP(&language, "language", "l", "", "implementation language")
	cmd.Flags().StringVarP(&framework, "framework", "f", "", "framework")
	cmd.Flags().StringVar(&packageManager, "pm", "", "package manager")
	cmd.Flags().StringSliceVar(&additions, "additions", nil, "stack additions (comma-separated)")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}
