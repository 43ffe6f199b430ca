package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stackforge/stackforge/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var historyDB string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded resolutions",
		Long:  `Inspect the resolution history recorded by 'resolve --history'.`,
	}

	cmd.PersistentFlags().StringVar(&historyDB, "db", ".stackforge/history.db", "history SQLite database path")

	cmd.AddCommand(newHistoryListCommand(&historyDB))
	cmd.AddCommand(newHistoryShowCommand(&historyDB))

	return cmd
}

// openHistory opens and migrates the history database.
func openHistory(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no history database at %s", path)
	}
	store := stores.NewSQLiteStore(stores.DefaultConfig(path), log.Logger)
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func newHistoryListCommand(historyDB *string) *cobra.Command {
	var (
		projectFilter string
		limit         int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded resolutions, newest first",
		Example: `  # List the last resolutions
  stackforge history list

  # List resolutions for one project
  stackforge history list --project ./app`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openHistory(ctx, *historyDB)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var project *string
			if projectFilter != "" {
				project = &projectFilter
			}
			resolutions, err := store.ListResolutions(ctx, project, limit, 0)
			if err != nil {
				return err
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(resolutions)
			}
			for _, res := range resolutions {
				fmt.Printf("%s  %-10s  %s  %s\n",
					res.CreatedAt.Format("2006-01-02 15:04:05"),
					res.Status, res.ID, res.ProjectPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectFilter, "project", "", "filter by project path")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum resolutions to list")

	return cmd
}

func newHistoryShowCommand(historyDB *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <resolution-id>",
		Short: "Show one resolution with its selections and plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openHistory(ctx, *historyDB)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			res, err := store.GetResolution(ctx, args[0])
			if err != nil {
				return err
			}
			ops, err := store.ListPlanOperations(ctx, res.ID)
			if err != nil {
				return err
			}

			if jsonOutput {
				out := struct {
					Resolution *stores.Resolution      `json:"resolution"`
					Operations []*stores.PlanOperation `json:"operations"`
				}{res, ops}
				return json.NewEncoder(os.Stdout).Encode(out)
			}

			fmt.Printf("Resolution %s (%s)\n", res.ID, res.Status)
			fmt.Printf("  project:  %s\n", res.ProjectPath)
			fmt.Printf("  catalog:  %s\n", res.CatalogVersion)
			fmt.Printf("  created:  %s\n", res.CreatedAt.Format("2006-01-02 15:04:05"))
			if res.Error != nil {
				fmt.Printf("  error:    %s\n", *res.Error)
			}

			selections, err := stores.DecodeSelections(res)
			if err != nil {
				return err
			}
			nodes := make([]string, 0, len(selections))
			for node := range selections {
				nodes = append(nodes, node)
			}
			sort.Strings(nodes)
			fmt.Println("  selections:")
			for _, node := range nodes {
				fmt.Printf("    %s: %v\n", node, selections[node])
			}

			if len(ops) > 0 {
				fmt.Printf("  plan (%d operations):\n", len(ops))
				for _, op := range ops {
					target := ""
					switch {
					case op.Path != nil:
						target = *op.Path
					case op.Name != nil:
						target = *op.Name
					}
					fmt.Printf("    %2d. %-18s %-30s (%s, %s)\n", op.Seq, op.Kind, target, op.Origin, op.Status)
				}
			}
			return nil
		},
	}
	return cmd
}
