package catalog

import (
	"github.com/stackforge/stackforge/pkg/engine"
)

// BuiltinRules returns the supersession rule table the engine ships with.
// Order is significant: the planner attributes deduplicated targets to the
// first origin in this order.
func BuiltinRules() []engine.SupersessionRule {
	return []engine.SupersessionRule{
		{
			Tool:          "biome",
			ReplacedTools: []string{"eslint", "prettier"},
			FilePatterns: []string{
				".eslintrc*",
				".eslintignore",
				".prettierrc*",
				".prettierignore",
				"eslint.config.*",
				"prettier.config.*",
			},
			DependencyNames: []string{
				"eslint",
				"prettier",
				"eslint-config-next",
				"eslint-config-prettier",
				"eslint-plugin-react",
				"eslint-plugin-react-hooks",
				"@typescript-eslint/parser",
				"@typescript-eslint/eslint-plugin",
			},
			ScriptRewrites: map[string]string{
				"lint":   "biome check .",
				"format": "biome format --write .",
			},
			OwnedFiles: []string{"biome.json", "biome.jsonc"},
		},
		{
			Tool:          "vitest",
			ReplacedTools: []string{"jest"},
			FilePatterns:  []string{"jest.config.*", "jest.setup.*"},
			DependencyNames: []string{
				"jest",
				"ts-jest",
				"babel-jest",
				"@types/jest",
				"jest-environment-jsdom",
			},
			ScriptRewrites: map[string]string{
				"test":       "vitest run",
				"test:watch": "vitest",
			},
			OwnedFiles: []string{"vitest.config.*", "vitest.workspace.*"},
		},
		{
			Tool:          "playwright",
			ReplacedTools: []string{"cypress"},
			FilePatterns:  []string{"cypress.config.*"},
			DependencyNames: []string{
				"cypress",
			},
			ScriptRewrites: map[string]string{
				"test:e2e": "playwright test",
			},
			OwnedFiles: []string{"playwright.config.*"},
		},
		// Package-manager rules carry only OwnedFiles: they protect the
		// selected manager's lockfile from other rules' delete patterns and
		// never plan operations themselves. A resolution without additions
		// therefore yields an empty plan whatever the project contains.
		{
			Tool:       "pnpm",
			OwnedFiles: []string{"pnpm-lock.yaml", "pnpm-workspace.yaml"},
		},
		{
			Tool:       "yarn",
			OwnedFiles: []string{"yarn.lock", ".yarnrc.yml"},
		},
		{
			Tool:       "npm",
			OwnedFiles: []string{"package-lock.json"},
		},
		{
			Tool:       "bun",
			OwnedFiles: []string{"bun.lockb", "bun.lock"},
		},
		{
			Tool:          "drizzle",
			ReplacedTools: []string{"prisma"},
			FilePatterns:  []string{"prisma/schema.prisma"},
			DependencyNames: []string{
				"prisma",
				"@prisma/client",
			},
			ScriptRewrites: map[string]string{
				"db:migrate": "drizzle-kit migrate",
				"db:studio":  "drizzle-kit studio",
			},
			OwnedFiles: []string{"drizzle.config.*"},
		},
	}
}

// BuiltinRuleTable builds the rule table from BuiltinRules.
func BuiltinRuleTable() (*engine.RuleTable, error) {
	return engine.NewRuleTable(BuiltinRules())
}
