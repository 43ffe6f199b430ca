package policy

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/stackforge/stackforge/pkg/engine"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func testPlan(ops ...engine.Operation) *engine.OperationPlan {
	return &engine.OperationPlan{
		ID:         "test-plan",
		Operations: ops,
	}
}

func testState(files ...string) *engine.ProjectState {
	return &engine.ProjectState{Files: files}
}

func TestEngine_EvaluatePlan_AllowsCleanPlan(t *testing.T) {
	e := newTestEngine(t)
	plan := testPlan(
		engine.Operation{Kind: engine.OpRemoveDependency, Name: "eslint", Origin: "biome"},
		engine.Operation{Kind: engine.OpDeleteFile, Path: ".eslintrc.json", Origin: "biome"},
		engine.Operation{Kind: engine.OpRewriteScript, Name: "lint", Command: "biome check .", Origin: "biome"},
	)

	result, err := e.EvaluatePlan(context.Background(), plan, testState(".eslintrc.json", "src/index.ts"))
	if err != nil {
		t.Fatalf("EvaluatePlan failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Clean plan must be allowed, violations: %v", result.Violations)
	}
	if len(result.EvaluatedPolicies) != len(GetBuiltinPolicies()) {
		t.Errorf("Expected all builtin policies evaluated, got %v", result.EvaluatedPolicies)
	}
}

func TestEngine_EvaluatePlan_BlocksProtectedPathDeletion(t *testing.T) {
	e := newTestEngine(t)

	cases := []string{
		"package.json",
		".git/config",
		"src/index.ts",
		"package-lock.json",
		"pnpm-lock.yaml",
		"yarn.lock",
		"bun.lockb",
		"bun.lock",
	}
	for _, path := range cases {
		plan := testPlan(engine.Operation{Kind: engine.OpDeleteFile, Path: path, Origin: "biome"})
		result, err := e.EvaluatePlan(context.Background(), plan, testState(path))
		if err != nil {
			t.Fatalf("EvaluatePlan failed for %s: %v", path, err)
		}
		if result.Allowed {
			t.Errorf("Plan deleting %s must be blocked", path)
		}
	}
}

func TestEngine_EvaluatePlan_WarnsOnMassDelete(t *testing.T) {
	e := newTestEngine(t)

	// Three deletions out of four files crosses the half-the-tree line but
	// none is protected: the plan stays allowed with a warning violation.
	plan := testPlan(
		engine.Operation{Kind: engine.OpDeleteFile, Path: "a.lock", Origin: "pnpm"},
		engine.Operation{Kind: engine.OpDeleteFile, Path: "b.lock", Origin: "pnpm"},
		engine.Operation{Kind: engine.OpDeleteFile, Path: "c.lock", Origin: "pnpm"},
	)
	result, err := e.EvaluatePlan(context.Background(), plan, testState("a.lock", "b.lock", "c.lock", "index.ts"))
	if err != nil {
		t.Fatalf("EvaluatePlan failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Warning-only plan must stay allowed, violations: %v", result.Violations)
	}

	found := false
	for _, v := range result.Violations {
		if v.Policy == "mass-delete" && v.Severity == SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a mass-delete warning, got %v", result.Violations)
	}
}

func TestEngine_EvaluatePlan_BlocksMalformedOperations(t *testing.T) {
	e := newTestEngine(t)

	plan := testPlan(engine.Operation{Kind: engine.OpDeleteFile, Path: "stale.lock"})
	result, err := e.EvaluatePlan(context.Background(), plan, testState("stale.lock"))
	if err != nil {
		t.Fatalf("EvaluatePlan failed: %v", err)
	}
	if result.Allowed {
		t.Error("Operation without an origin must be blocked")
	}
}

func TestEngine_EvaluatePlan_DisabledPolicySkipped(t *testing.T) {
	e := newTestEngine(t)
	if err := e.DisablePolicy("protected-paths"); err != nil {
		t.Fatalf("DisablePolicy failed: %v", err)
	}

	plan := testPlan(engine.Operation{Kind: engine.OpDeleteFile, Path: "package.json", Origin: "biome"})
	result, err := e.EvaluatePlan(context.Background(), plan, testState("package.json"))
	if err != nil {
		t.Fatalf("EvaluatePlan failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Disabled policy must not block, violations: %v", result.Violations)
	}

	if err := e.EnablePolicy("protected-paths"); err != nil {
		t.Fatalf("EnablePolicy failed: %v", err)
	}
	result, err = e.EvaluatePlan(context.Background(), plan, testState("package.json"))
	if err != nil {
		t.Fatalf("EvaluatePlan failed: %v", err)
	}
	if result.Allowed {
		t.Error("Re-enabled policy must block again")
	}
}

func TestEngine_GetPolicy(t *testing.T) {
	e := newTestEngine(t)
	policy, err := e.GetPolicy("protected-paths")
	if err != nil {
		t.Fatalf("GetPolicy failed: %v", err)
	}
	if policy.Severity != SeverityError {
		t.Errorf("Expected error severity, got %s", policy.Severity)
	}
	if _, err := e.GetPolicy("missing"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}
