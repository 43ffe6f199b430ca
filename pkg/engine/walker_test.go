package engine

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

// Shared test fixtures: a small catalog and rule table resembling the
// built-in ones, plus a scripted choice provider.

func testCategories() []ToolCategory {
	return []ToolCategory{
		{Name: "package-manager", Exclusivity: ExclusivityOneOf},
		{Name: "linter", Exclusivity: ExclusivityOneOf},
		{Name: "formatter", Exclusivity: ExclusivityOneOf},
		{Name: "unit-test-runner", Exclusivity: ExclusivityOneOf},
		{Name: "e2e", Exclusivity: ExclusivityManyOf},
	}
}

func testNodes() []ChoiceNode {
	return []ChoiceNode{
		{
			ID:       "structure",
			Category: "structure",
			Required: true,
			Options: []Option{
				{ID: "monorepo", Label: "Monorepo"},
				{ID: "single-app", Label: "Single application"},
			},
		},
		{
			ID:       "project-type",
			Category: "project-type",
			Required: true,
			Options: []Option{
				{ID: "web", Label: "Web application"},
				{ID: "api", Label: "API service"},
				{ID: "cli", Label: "Command-line tool"},
			},
		},
		{
			ID:       "language",
			Category: "language",
			Required: true,
			Options: []Option{
				{ID: "typescript", Label: "TypeScript"},
				{ID: "javascript", Label: "JavaScript"},
			},
			Predicate: func(prior Selections) []Option {
				if t, _ := prior.Single("project-type"); t == "cli" {
					return []Option{{ID: "typescript", Label: "TypeScript"}}
				}
				return []Option{
					{ID: "typescript", Label: "TypeScript"},
					{ID: "javascript", Label: "JavaScript"},
				}
			},
		},
		{
			ID:       "framework",
			Category: "framework",
			Required: true,
			Options: []Option{
				{ID: "nextjs", Label: "Next.js"},
				{ID: "astro", Label: "Astro"},
				{ID: "fastify", Label: "Fastify"},
				{ID: "nestjs", Label: "NestJS"},
				{ID: "commander", Label: "Commander"},
			},
			Predicate: func(prior Selections) []Option {
				projectType, _ := prior.Single("project-type")
				language, _ := prior.Single("language")
				switch projectType {
				case "web":
					return []Option{
						{ID: "nextjs", Label: "Next.js"},
						{ID: "astro", Label: "Astro"},
					}
				case "api":
					opts := []Option{{ID: "fastify", Label: "Fastify"}}
					if language == "typescript" {
						opts = append(opts, Option{ID: "nestjs", Label: "NestJS"})
					}
					return opts
				case "cli":
					return []Option{{ID: "commander", Label: "Commander"}}
				default:
					return nil
				}
			},
		},
		{
			ID:       "package-manager",
			Category: "package-manager",
			Required: true,
			Options: []Option{
				{ID: "npm", Label: "npm", Category: "package-manager"},
				{ID: "pnpm", Label: "pnpm", Category: "package-manager"},
				{ID: "yarn", Label: "Yarn", Category: "package-manager"},
			},
		},
		{
			ID:          "additions",
			Category:    "stack-additions",
			MultiSelect: true,
			Options: []Option{
				{ID: "biome", Label: "Biome", Category: "linter"},
				{ID: "eslint", Label: "ESLint", Category: "linter"},
				{ID: "prettier", Label: "Prettier", Category: "formatter"},
				{ID: "vitest", Label: "Vitest", Category: "unit-test-runner"},
				{ID: "jest", Label: "Jest", Category: "unit-test-runner"},
				{ID: "playwright", Label: "Playwright", Category: "e2e"},
			},
		},
	}
}

func testRuleTable(t *testing.T) *RuleTable {
	t.Helper()
	table, err := NewRuleTable([]SupersessionRule{
		{
			Tool:            "biome",
			ReplacedTools:   []string{"eslint", "prettier"},
			FilePatterns:    []string{".eslintrc*", ".prettierrc*", ".eslintignore"},
			DependencyNames: []string{"eslint", "prettier", "eslint-config-next"},
			ScriptRewrites:  map[string]string{"lint": "biome check .", "format": "biome format --write ."},
			OwnedFiles:      []string{"biome.json"},
		},
		{
			Tool:            "vitest",
			ReplacedTools:   []string{"jest"},
			FilePatterns:    []string{"jest.config.*"},
			DependencyNames: []string{"jest", "ts-jest", "@types/jest"},
			ScriptRewrites:  map[string]string{"test": "vitest run"},
			OwnedFiles:      []string{"vitest.config.*"},
		},
		{
			Tool:         "pnpm",
			FilePatterns: []string{"package-lock.json", "yarn.lock"},
			OwnedFiles:   []string{"pnpm-lock.yaml"},
		},
	})
	if err != nil {
		t.Fatalf("failed to build rule table: %v", err)
	}
	return table
}

// scriptedProvider answers each node from a fixed map, standing in for the
// conversational layer.
type scriptedProvider struct {
	answers map[string][]string
	asked   []string
}

func (p *scriptedProvider) Choose(_ context.Context, node ChoiceNode, _ []Option) ([]string, error) {
	p.asked = append(p.asked, node.ID)
	return p.answers[node.ID], nil
}

// retryProvider returns a bad answer first, then a good one.
type retryProvider struct {
	bad      map[string][]string
	good     map[string][]string
	attempts map[string]int
}

func (p *retryProvider) Choose(_ context.Context, node ChoiceNode, _ []Option) ([]string, error) {
	if p.attempts == nil {
		p.attempts = make(map[string]int)
	}
	p.attempts[node.ID]++
	if p.attempts[node.ID] == 1 {
		if bad, ok := p.bad[node.ID]; ok {
			return bad, nil
		}
	}
	return p.good[node.ID], nil
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func webAnswers() map[string][]string {
	return map[string][]string{
		"structure":       {"monorepo"},
		"project-type":    {"web"},
		"language":        {"typescript"},
		"framework":       {"nextjs"},
		"package-manager": {"pnpm"},
		"additions":       {"biome"},
	}
}

func TestWalker_Resolve_CompleteWalk(t *testing.T) {
	provider := &scriptedProvider{answers: webAnswers()}
	walker := NewWalker(testNodes(), testCategories(), provider, testLogger())

	snapshot, err := walker.Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if got, _ := snapshot.Single("framework"); got != "nextjs" {
		t.Errorf("Expected framework nextjs, got %q", got)
	}

	tools := snapshot.SelectedTools()
	want := []string{"monorepo", "web", "typescript", "nextjs", "pnpm", "biome"}
	if len(tools) != len(want) {
		t.Fatalf("Expected %d selected tools, got %d: %v", len(want), len(tools), tools)
	}
	for i, tool := range want {
		if tools[i] != tool {
			t.Errorf("Selected tool %d: expected %q, got %q", i, tool, tools[i])
		}
	}
}

func TestWalker_Resolve_AutoResolvesSoleOption(t *testing.T) {
	answers := webAnswers()
	answers["project-type"] = []string{"cli"}
	delete(answers, "language")
	delete(answers, "framework")
	provider := &scriptedProvider{answers: answers}
	walker := NewWalker(testNodes(), testCategories(), provider, testLogger())

	snapshot, err := walker.Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// cli narrows language and framework to a single option each:
	// both are auto-resolved, never asked.
	if got, _ := snapshot.Single("language"); got != "typescript" {
		t.Errorf("Expected auto-resolved language typescript, got %q", got)
	}
	if got, _ := snapshot.Single("framework"); got != "commander" {
		t.Errorf("Expected auto-resolved framework commander, got %q", got)
	}
	for _, asked := range provider.asked {
		if asked == "language" || asked == "framework" {
			t.Errorf("Node %q should have been auto-resolved without prompting", asked)
		}
	}
}

func TestWalker_Resolve_UnsatisfiableNode(t *testing.T) {
	nodes := []ChoiceNode{
		{
			ID:       "project-type",
			Category: "project-type",
			Required: true,
			Options:  []Option{{ID: "desktop", Label: "Desktop"}},
		},
		{
			ID:       "framework",
			Category: "framework",
			Required: true,
			Options:  []Option{{ID: "nextjs", Label: "Next.js"}},
			Predicate: func(prior Selections) []Option {
				// No framework supports the desktop project type.
				return nil
			},
		},
	}
	provider := &scriptedProvider{answers: map[string][]string{
		"project-type": {"desktop"},
	}}
	walker := NewWalker(nodes, testCategories(), provider, testLogger())

	_, err := walker.Resolve(context.Background(), nil)
	if err == nil {
		t.Fatal("Expected UnsatisfiableNode error, got nil")
	}
	if CodeOf(err) != ErrCodeUnsatisfiableNode {
		t.Errorf("Expected code %s, got %s", ErrCodeUnsatisfiableNode, CodeOf(err))
	}
	if !IsFatal(err) {
		t.Error("UnsatisfiableNode must be fatal")
	}
}

func TestWalker_Resolve_ReSolicitsOnInvalidSelection(t *testing.T) {
	provider := &retryProvider{
		bad:  map[string][]string{"framework": {"fastify"}}, // not valid for web
		good: webAnswers(),
	}
	walker := NewWalker(testNodes(), testCategories(), provider, testLogger())

	snapshot, err := walker.Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if provider.attempts["framework"] != 2 {
		t.Errorf("Expected framework re-solicited once, got %d attempts", provider.attempts["framework"])
	}
	if got, _ := snapshot.Single("framework"); got != "nextjs" {
		t.Errorf("Expected nextjs after re-solicit, got %q", got)
	}
}

func TestWalker_Resolve_DefaultsSeedWithoutPrompting(t *testing.T) {
	answers := webAnswers()
	delete(answers, "package-manager")
	provider := &scriptedProvider{answers: answers}
	walker := NewWalker(testNodes(), testCategories(), provider, testLogger())

	defaults := Selections{"package-manager": {"yarn"}}
	snapshot, err := walker.Resolve(context.Background(), defaults)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if got, _ := snapshot.Single("package-manager"); got != "yarn" {
		t.Errorf("Expected default-seeded yarn, got %q", got)
	}
	for _, asked := range provider.asked {
		if asked == "package-manager" {
			t.Error("Defaulted node should not have been prompted")
		}
	}
}

func TestWalker_Resolve_StaleDefaultFallsBackToProvider(t *testing.T) {
	provider := &scriptedProvider{answers: webAnswers()}
	walker := NewWalker(testNodes(), testCategories(), provider, testLogger())

	// "nestjs" is not valid once project-type is web; the default is stale
	// and the provider must be consulted.
	defaults := Selections{"framework": {"nestjs"}}
	snapshot, err := walker.Resolve(context.Background(), defaults)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got, _ := snapshot.Single("framework"); got != "nextjs" {
		t.Errorf("Expected provider answer nextjs over stale default, got %q", got)
	}
}

func TestWalker_Resolve_CancellationDiscardsState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := ChoiceProviderFunc(func(ctx context.Context, node ChoiceNode, _ []Option) ([]string, error) {
		if node.ID == "project-type" {
			cancel()
		}
		return webAnswers()[node.ID], nil
	})
	walker := NewWalker(testNodes(), testCategories(), provider, testLogger())

	snapshot, err := walker.Resolve(ctx, nil)
	if err == nil {
		t.Fatal("Expected cancellation error, got nil")
	}
	if snapshot != nil {
		t.Error("Cancelled walk must not return a snapshot")
	}
}
