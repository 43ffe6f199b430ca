package project

import (
	"strings"

	"github.com/stackforge/stackforge/pkg/engine"
)

// lockfileManagers maps lockfile names to the package manager that writes
// them. First match in listed order wins when a project carries several.
var lockfileManagers = []struct {
	file    string
	manager string
}{
	{"pnpm-lock.yaml", "pnpm"},
	{"yarn.lock", "yarn"},
	{"bun.lockb", "bun"},
	{"bun.lock", "bun"},
	{"package-lock.json", "npm"},
}

// toolingDependencies maps manifest dependency names to addition option IDs.
var toolingDependencies = map[string]string{
	"@biomejs/biome": "biome",
	"eslint":         "eslint",
	"prettier":       "prettier",
	"vitest":         "vitest",
	"jest":           "jest",
	"@playwright/test": "playwright",
	"cypress":        "cypress",
	"prisma":         "prisma",
	"drizzle-orm":    "drizzle",
	"tailwindcss":    "tailwind",
	"husky":          "husky",
}

// DetectDefaults derives seed selections from an inspected project state:
// the package manager from its lockfile and stack additions from declared
// tooling dependencies. Detected defaults only seed the walk; the walker
// still validates each one against the node's filtered option set.
func DetectDefaults(state *engine.ProjectState) engine.Selections {
	defaults := make(engine.Selections)
	if state == nil {
		return defaults
	}

	roots := make(map[string]bool, len(state.Files))
	for _, f := range state.Files {
		if !strings.Contains(f, "/") {
			roots[f] = true
		}
	}
	for _, lm := range lockfileManagers {
		if roots[lm.file] {
			defaults["package-manager"] = []string{lm.manager}
			break
		}
	}

	var additions []string
	seen := make(map[string]bool)
	for _, dep := range state.Dependencies {
		addition, ok := toolingDependencies[dep]
		if !ok || seen[addition] {
			continue
		}
		seen[addition] = true
		additions = append(additions, addition)
	}
	if len(additions) > 0 {
		defaults["additions"] = additions
	}

	return defaults
}
