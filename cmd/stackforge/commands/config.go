package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stackforge/stackforge/pkg/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the canonical config",
		Long:  `Inspect the canonical config document that resolutions persist to.`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigGetCommand())

	return cmd
}

// loadConfigDocument loads the canonical config, failing when it does not
// exist yet.
func loadConfigDocument() (config.Document, error) {
	persister := config.NewPersister(configPath, config.NewSchemaRegistry(), log.Logger)
	doc, err := persister.Load()
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("no canonical config at %s, run 'stackforge resolve' first", configPath)
	}
	return doc, nil
}

func newConfigShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the canonical config document",
		Example: `  # Print the config as YAML
  stackforge config show

  # Print the config as JSON
  stackforge config show --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadConfigDocument()
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}

			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer func() { _ = enc.Close() }()
			return enc.Encode(map[string]interface{}(doc))
		},
	}
	return cmd
}

func newConfigGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <dotted.path>",
		Short: "Print one value from the canonical config",
		Args:  cobra.ExactArgs(1),
		Example: `  # Print the resolved package manager
  stackforge config get stack.package_manager

  # Print the whole stack section
  stackforge config get stack`,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadConfigDocument()
			if err != nil {
				return err
			}

			var value interface{} = map[string]interface{}(doc)
			for _, key := range strings.Split(args[0], ".") {
				section, ok := value.(map[string]interface{})
				if !ok {
					return fmt.Errorf("config path %q does not resolve to a value", args[0])
				}
				value, ok = section[key]
				if !ok {
					return fmt.Errorf("config has no value at %q", args[0])
				}
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(value)
			}
			switch v := value.(type) {
			case string:
				fmt.Println(v)
				return nil
			default:
				enc := yaml.NewEncoder(os.Stdout)
				enc.SetIndent(2)
				defer func() { _ = enc.Close() }()
				return enc.Encode(v)
			}
		},
	}
	return cmd
}
