package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stackforge/stackforge/pkg/engine"
)

func newCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the decision catalog",
		Long:  `Inspect the effective catalog: builtin content overlaid with any --catalog extensions.`,
	}

	cmd.AddCommand(newCatalogShowCommand())
	cmd.AddCommand(newCatalogRulesCommand())

	return cmd
}

func newCatalogShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "List decision nodes and their options",
		Example: `  # Show the builtin catalog
  stackforge catalog show

  # Show the catalog with an extension overlay
  stackforge catalog show --catalog team-catalog.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				out := struct {
					Version    string                `json:"version"`
					Nodes      []engine.ChoiceNode   `json:"nodes"`
					Categories []engine.ToolCategory `json:"categories"`
				}{cat.Version, cat.Nodes, cat.Categories}
				return json.NewEncoder(os.Stdout).Encode(out)
			}

			fmt.Printf("Catalog %s (%d nodes)\n", cat.Version, len(cat.Nodes))
			for _, node := range cat.Nodes {
				mode := "one"
				if node.MultiSelect {
					mode = "many"
				}
				required := ""
				if node.Required {
					required = ", required"
				}
				fmt.Printf("\n%s (%s, select %s%s)\n", node.ID, node.Category, mode, required)
				for _, opt := range node.Options {
					category := ""
					if opt.Category != "" {
						category = fmt.Sprintf(" [%s]", opt.Category)
					}
					fmt.Printf("  - %s: %s%s\n", opt.ID, opt.Label, category)
				}
			}
			return nil
		},
	}
	return cmd
}

func newCatalogRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List supersession rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				rules := make([]engine.SupersessionRule, 0, len(cat.Rules.Tools()))
				for _, tool := range cat.Rules.Tools() {
					rule, _ := cat.Rules.Rule(tool)
					rules = append(rules, rule)
				}
				return json.NewEncoder(os.Stdout).Encode(rules)
			}

			for _, tool := range cat.Rules.Tools() {
				rule, _ := cat.Rules.Rule(tool)
				fmt.Printf("%s\n", tool)
				if len(rule.ReplacedTools) > 0 {
					fmt.Printf("  replaces:  %s\n", strings.Join(rule.ReplacedTools, ", "))
				}
				if len(rule.DependencyNames) > 0 {
					fmt.Printf("  removes:   %s\n", strings.Join(rule.DependencyNames, ", "))
				}
				if len(rule.FilePatterns) > 0 {
					fmt.Printf("  deletes:   %s\n", strings.Join(rule.FilePatterns, ", "))
				}
				if len(rule.ScriptRewrites) > 0 {
					fmt.Printf("  rewrites:  %d script(s)\n", len(rule.ScriptRewrites))
				}
				if len(rule.OwnedFiles) > 0 {
					fmt.Printf("  protects:  %s\n", strings.Join(rule.OwnedFiles, ", "))
				}
			}
			return nil
		},
	}
	return cmd
}
