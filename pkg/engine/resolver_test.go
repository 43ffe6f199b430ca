package engine

import (
	"testing"
)

// snapshotFor builds a finalized snapshot selecting the given tools, in order.
func snapshotFor(t *testing.T, tools ...string) *Snapshot {
	t.Helper()
	opts := make([]Option, len(tools))
	for i, tool := range tools {
		opts[i] = Option{ID: tool, Label: tool}
	}
	nodes := []ChoiceNode{{
		ID:          "tools",
		Category:    "stack-additions",
		MultiSelect: true,
		Options:     opts,
	}}
	m := NewSelectionModel(nodes, nil)
	m.SetFiltered("tools", opts)
	if err := m.Record("tools", tools); err != nil {
		t.Fatalf("record tools: %v", err)
	}
	snapshot, err := m.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return snapshot
}

func mustRuleTable(t *testing.T, rules []SupersessionRule) *RuleTable {
	t.Helper()
	table, err := NewRuleTable(rules)
	if err != nil {
		t.Fatalf("failed to build rule table: %v", err)
	}
	return table
}

func TestConflictResolver_Resolve_UnionsActiveRules(t *testing.T) {
	resolver := NewConflictResolver(testLogger())
	snapshot := snapshotFor(t, "pnpm", "biome", "vitest")

	set, err := resolver.Resolve(snapshot, testRuleTable(t))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	want := []string{"pnpm", "biome", "vitest"}
	if len(set.Origins) != len(want) {
		t.Fatalf("Expected %d origins, got %d: %v", len(want), len(set.Origins), set.Origins)
	}
	for i, origin := range want {
		if set.Origins[i] != origin {
			t.Errorf("Origin %d: expected %q, got %q", i, origin, set.Origins[i])
		}
	}
	if len(set.Excluded) != 0 {
		t.Errorf("Expected no exclusions, got %v", set.Excluded)
	}
	if set.Empty() {
		t.Error("Set with removal targets must not report empty")
	}
}

func TestConflictResolver_Resolve_ToolsWithoutRulesContributeNothing(t *testing.T) {
	resolver := NewConflictResolver(testLogger())
	snapshot := snapshotFor(t, "nextjs", "typescript", "pnpm")

	set, err := resolver.Resolve(snapshot, testRuleTable(t))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(set.Origins) != 1 || set.Origins[0] != "pnpm" {
		t.Errorf("Expected only pnpm origin, got %v", set.Origins)
	}
}

func TestConflictResolver_Resolve_ReplacerSuppressesReplacedRule(t *testing.T) {
	table := mustRuleTable(t, []SupersessionRule{
		{
			Tool:            "biome",
			ReplacedTools:   []string{"eslint"},
			DependencyNames: []string{"eslint"},
		},
		{
			Tool:            "eslint",
			ReplacedTools:   []string{"tslint"},
			DependencyNames: []string{"tslint"},
		},
	})
	resolver := NewConflictResolver(testLogger())
	snapshot := snapshotFor(t, "biome", "eslint")

	set, err := resolver.Resolve(snapshot, table)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(set.Origins) != 1 || set.Origins[0] != "biome" {
		t.Errorf("Expected biome as sole origin, got %v", set.Origins)
	}
	if len(set.Excluded) != 1 || set.Excluded[0] != "eslint" {
		t.Errorf("Expected eslint excluded, got %v", set.Excluded)
	}
	if _, ok := set.ByOrigin["eslint"]; ok {
		t.Error("Excluded tool's rule must not appear in the union")
	}
}

func TestConflictResolver_Resolve_TransitiveChainReactivatesLeaf(t *testing.T) {
	// a replaces b, b replaces c. With all three selected, a wins over b,
	// and b being inactive means c's rule stays active.
	table := mustRuleTable(t, []SupersessionRule{
		{Tool: "a", ReplacedTools: []string{"b"}, DependencyNames: []string{"dep-a"}},
		{Tool: "b", ReplacedTools: []string{"c"}, DependencyNames: []string{"dep-b"}},
		{Tool: "c", DependencyNames: []string{"dep-c"}},
	})
	resolver := NewConflictResolver(testLogger())
	snapshot := snapshotFor(t, "a", "b", "c")

	set, err := resolver.Resolve(snapshot, table)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	want := []string{"a", "c"}
	if len(set.Origins) != len(want) {
		t.Fatalf("Expected origins %v, got %v", want, set.Origins)
	}
	for i, origin := range want {
		if set.Origins[i] != origin {
			t.Errorf("Origin %d: expected %q, got %q", i, origin, set.Origins[i])
		}
	}
	if len(set.Excluded) != 1 || set.Excluded[0] != "b" {
		t.Errorf("Expected only b excluded, got %v", set.Excluded)
	}
}

func TestConflictResolver_Resolve_MutualReplacementIsCycle(t *testing.T) {
	table := mustRuleTable(t, []SupersessionRule{
		{Tool: "a", ReplacedTools: []string{"b"}},
		{Tool: "b", ReplacedTools: []string{"a"}},
	})
	resolver := NewConflictResolver(testLogger())
	snapshot := snapshotFor(t, "a", "b")

	_, err := resolver.Resolve(snapshot, table)
	if err == nil {
		t.Fatal("Expected ConflictCycle error, got nil")
	}
	if CodeOf(err) != ErrCodeConflictCycle {
		t.Errorf("Expected code %s, got %s", ErrCodeConflictCycle, CodeOf(err))
	}
	if !IsFatal(err) {
		t.Error("ConflictCycle must be fatal")
	}
}

func TestConflictResolver_Resolve_TransitiveCycleDetected(t *testing.T) {
	table := mustRuleTable(t, []SupersessionRule{
		{Tool: "a", ReplacedTools: []string{"b"}},
		{Tool: "b", ReplacedTools: []string{"c"}},
		{Tool: "c", ReplacedTools: []string{"a"}},
	})
	resolver := NewConflictResolver(testLogger())
	snapshot := snapshotFor(t, "a", "b", "c")

	_, err := resolver.Resolve(snapshot, table)
	if err == nil {
		t.Fatal("Expected ConflictCycle error for three-tool cycle, got nil")
	}
	if CodeOf(err) != ErrCodeConflictCycle {
		t.Errorf("Expected code %s, got %s", ErrCodeConflictCycle, CodeOf(err))
	}
}

func TestConflictResolver_Resolve_UnselectedReplacementIsNoCycle(t *testing.T) {
	// a and b replace each other on paper, but only a is selected, so the
	// replacement relation over the selection has no edge and no cycle.
	table := mustRuleTable(t, []SupersessionRule{
		{Tool: "a", ReplacedTools: []string{"b"}, DependencyNames: []string{"dep-b"}},
		{Tool: "b", ReplacedTools: []string{"a"}, DependencyNames: []string{"dep-a"}},
	})
	resolver := NewConflictResolver(testLogger())
	snapshot := snapshotFor(t, "a")

	set, err := resolver.Resolve(snapshot, table)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(set.Origins) != 1 || set.Origins[0] != "a" {
		t.Errorf("Expected a as sole origin, got %v", set.Origins)
	}
}

func TestConflictResolver_Resolve_EmptySetForRulelessSelection(t *testing.T) {
	resolver := NewConflictResolver(testLogger())
	snapshot := snapshotFor(t, "nextjs", "typescript")

	set, err := resolver.Resolve(snapshot, testRuleTable(t))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !set.Empty() {
		t.Errorf("Expected empty superseded set, got origins %v", set.Origins)
	}
}
