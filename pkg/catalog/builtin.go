package catalog

import (
	"github.com/stackforge/stackforge/pkg/engine"
)

// BuiltinCategories returns the tool categories the engine ships with.
func BuiltinCategories() []engine.ToolCategory {
	return []engine.ToolCategory{
		{Name: "package-manager", Exclusivity: engine.ExclusivityOneOf},
		{Name: "linter", Exclusivity: engine.ExclusivityOneOf},
		{Name: "formatter", Exclusivity: engine.ExclusivityOneOf},
		{Name: "unit-test-runner", Exclusivity: engine.ExclusivityOneOf},
		{Name: "orm", Exclusivity: engine.ExclusivityOneOf},
		{Name: "e2e", Exclusivity: engine.ExclusivityManyOf},
		{Name: "ci", Exclusivity: engine.ExclusivityManyOf},
	}
}

// BuiltinNodes returns the decision catalog in dependency order: structure,
// project type, language, framework, package manager, stack additions.
// Predicates are pure functions over the selections recorded so far.
func BuiltinNodes() []engine.ChoiceNode {
	return []engine.ChoiceNode{
		{
			ID:       "structure",
			Category: "structure",
			Required: true,
			Options: []engine.Option{
				{ID: "monorepo", Label: "Monorepo"},
				{ID: "single-app", Label: "Single application"},
			},
		},
		{
			ID:       "project-type",
			Category: "project-type",
			Required: true,
			Options: []engine.Option{
				{ID: "web", Label: "Web application"},
				{ID: "api", Label: "API service"},
				{ID: "cli", Label: "Command-line tool"},
				{ID: "library", Label: "Library"},
			},
		},
		{
			ID:       "language",
			Category: "language",
			Required: true,
			Options: []engine.Option{
				{ID: "typescript", Label: "TypeScript"},
				{ID: "javascript", Label: "JavaScript"},
			},
			Predicate: languagePredicate,
		},
		{
			ID:       "framework",
			Category: "framework",
			Required: true,
			Options: []engine.Option{
				{ID: "nextjs", Label: "Next.js"},
				{ID: "astro", Label: "Astro"},
				{ID: "remix", Label: "Remix"},
				{ID: "fastify", Label: "Fastify"},
				{ID: "nestjs", Label: "NestJS"},
				{ID: "express", Label: "Express"},
				{ID: "commander", Label: "Commander"},
				{ID: "none", Label: "No framework"},
			},
			Predicate: frameworkPredicate,
		},
		{
			ID:       "package-manager",
			Category: "package-manager",
			Required: true,
			Options: []engine.Option{
				{ID: "npm", Label: "npm", Category: "package-manager"},
				{ID: "pnpm", Label: "pnpm", Category: "package-manager"},
				{ID: "yarn", Label: "Yarn", Category: "package-manager"},
				{ID: "bun", Label: "Bun", Category: "package-manager"},
			},
		},
		{
			ID:          "additions",
			Category:    "stack-additions",
			MultiSelect: true,
			Options: []engine.Option{
				{ID: "biome", Label: "Biome", Category: "linter"},
				{ID: "eslint", Label: "ESLint", Category: "linter"},
				{ID: "prettier", Label: "Prettier", Category: "formatter"},
				{ID: "vitest", Label: "Vitest", Category: "unit-test-runner"},
				{ID: "jest", Label: "Jest", Category: "unit-test-runner"},
				{ID: "playwright", Label: "Playwright", Category: "e2e"},
				{ID: "cypress", Label: "Cypress", Category: "e2e"},
				{ID: "prisma", Label: "Prisma", Category: "orm"},
				{ID: "drizzle", Label: "Drizzle", Category: "orm"},
				{ID: "tailwind", Label: "Tailwind CSS"},
				{ID: "husky", Label: "Husky"},
			},
			Predicate: additionsPredicate,
		},
	}
}

// languagePredicate narrows the language choice by project type. CLI tools
// are scaffolded TypeScript-only.
func languagePredicate(prior engine.Selections) []engine.Option {
	if t, _ := prior.Single("project-type"); t == "cli" {
		return []engine.Option{{ID: "typescript", Label: "TypeScript"}}
	}
	return []engine.Option{
		{ID: "typescript", Label: "TypeScript"},
		{ID: "javascript", Label: "JavaScript"},
	}
}

// frameworkPredicate offers only the frameworks valid for the chosen project
// type and language.
func frameworkPredicate(prior engine.Selections) []engine.Option {
	projectType, _ := prior.Single("project-type")
	language, _ := prior.Single("language")

	switch projectType {
	case "web":
		return []engine.Option{
			{ID: "nextjs", Label: "Next.js"},
			{ID: "astro", Label: "Astro"},
			{ID: "remix", Label: "Remix"},
		}
	case "api":
		opts := []engine.Option{
			{ID: "fastify", Label: "Fastify"},
			{ID: "express", Label: "Express"},
		}
		if language == "typescript" {
			opts = append(opts, engine.Option{ID: "nestjs", Label: "NestJS"})
		}
		return opts
	case "cli":
		return []engine.Option{{ID: "commander", Label: "Commander"}}
	case "library":
		return []engine.Option{{ID: "none", Label: "No framework"}}
	default:
		return nil
	}
}

// additionsPredicate removes additions that make no sense for the chosen
// stack: ORMs are offered for API services only, Tailwind for web projects.
func additionsPredicate(prior engine.Selections) []engine.Option {
	projectType, _ := prior.Single("project-type")

	all := []engine.Option{
		{ID: "biome", Label: "Biome", Category: "linter"},
		{ID: "eslint", Label: "ESLint", Category: "linter"},
		{ID: "prettier", Label: "Prettier", Category: "formatter"},
		{ID: "vitest", Label: "Vitest", Category: "unit-test-runner"},
		{ID: "jest", Label: "Jest", Category: "unit-test-runner"},
		{ID: "playwright", Label: "Playwright", Category: "e2e"},
		{ID: "cypress", Label: "Cypress", Category: "e2e"},
		{ID: "prisma", Label: "Prisma", Category: "orm"},
		{ID: "drizzle", Label: "Drizzle", Category: "orm"},
		{ID: "tailwind", Label: "Tailwind CSS"},
		{ID: "husky", Label: "Husky"},
	}

	out := make([]engine.Option, 0, len(all))
	for _, opt := range all {
		switch opt.ID {
		case "prisma", "drizzle":
			if projectType != "api" {
				continue
			}
		case "tailwind":
			if projectType != "web" {
				continue
			}
		case "playwright", "cypress":
			if projectType != "web" && projectType != "api" {
				continue
			}
		}
		out = append(out, opt)
	}
	return out
}
