package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/stackforge/stackforge/pkg/engine"
)

func testSnapshot(t *testing.T, additions ...string) *engine.Snapshot {
	t.Helper()
	nodes := []engine.ChoiceNode{
		{ID: "structure", Category: "structure", Required: true,
			Options: []engine.Option{{ID: "monorepo", Label: "Monorepo"}}},
		{ID: "project-type", Category: "project-type", Required: true,
			Options: []engine.Option{{ID: "web", Label: "Web application"}}},
		{ID: "language", Category: "language", Required: true,
			Options: []engine.Option{{ID: "typescript", Label: "TypeScript"}}},
		{ID: "framework", Category: "framework", Required: true,
			Options: []engine.Option{{ID: "nextjs", Label: "Next.js"}}},
		{ID: "package-manager", Category: "package-manager", Required: true,
			Options: []engine.Option{{ID: "pnpm", Label: "pnpm"}}},
		{ID: "additions", Category: "stack-additions", MultiSelect: true,
			Options: []engine.Option{
				{ID: "biome", Label: "Biome"},
				{ID: "vitest", Label: "Vitest"},
			}},
	}
	model := engine.NewSelectionModel(nodes, nil)
	answers := map[string][]string{
		"structure":       {"monorepo"},
		"project-type":    {"web"},
		"language":        {"typescript"},
		"framework":       {"nextjs"},
		"package-manager": {"pnpm"},
		"additions":       additions,
	}
	for _, node := range nodes {
		model.SetFiltered(node.ID, node.Options)
		if err := model.Record(node.ID, answers[node.ID]); err != nil {
			t.Fatalf("record %s: %v", node.ID, err)
		}
	}
	snapshot, err := model.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return snapshot
}

func testMeta() IntegrationMetadata {
	return IntegrationMetadata{
		Services:     map[string]string{"tracker": "PROJ-42"},
		Integrations: []string{"github", "linear"},
		Skills:       []string{"code-review"},
	}
}

func newTestPersister(t *testing.T) *Persister {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stackforge.yaml")
	return NewPersister(path, NewSchemaRegistry(), zerolog.Nop())
}

func TestPersister_Persist_CreatesDocument(t *testing.T) {
	persister := newTestPersister(t)

	doc, err := persister.Persist(context.Background(), testSnapshot(t, "biome"), testMeta())
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	stack, ok := doc["stack"].(map[string]interface{})
	if !ok {
		t.Fatal("Document missing stack section")
	}
	if stack["structure"] != "monorepo" || stack["package_manager"] != "pnpm" {
		t.Errorf("Unexpected stack section: %v", stack)
	}

	reloaded, err := persister.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reloaded == nil {
		t.Fatal("Expected persisted document on disk")
	}
	if _, ok := reloaded["integrations"]; !ok {
		t.Error("Persisted document missing integrations section")
	}
}

func TestPersister_Persist_PreservesExtraKeys(t *testing.T) {
	persister := newTestPersister(t)

	if _, err := persister.Persist(context.Background(), testSnapshot(t, "biome"), testMeta()); err != nil {
		t.Fatalf("First persist failed: %v", err)
	}

	// Simulate a manual edit: an extra top-level key and an extra key in a
	// schema section.
	doc, err := persister.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	doc["notes"] = "hand-written"
	stack := doc["stack"].(map[string]interface{})
	stack["custom_flag"] = true
	if err := writeRaw(t, persister.Path(), doc); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	merged, err := persister.Persist(context.Background(), testSnapshot(t, "biome", "vitest"), testMeta())
	if err != nil {
		t.Fatalf("Second persist failed: %v", err)
	}

	if merged["notes"] != "hand-written" {
		t.Error("Extra top-level key lost in merge")
	}
	mergedStack := merged["stack"].(map[string]interface{})
	if mergedStack["custom_flag"] != true {
		t.Error("Extra nested key lost in merge")
	}
}

func TestPersister_Persist_UnionsArrays(t *testing.T) {
	persister := newTestPersister(t)

	if _, err := persister.Persist(context.Background(), testSnapshot(t, "biome"), testMeta()); err != nil {
		t.Fatalf("First persist failed: %v", err)
	}

	meta := testMeta()
	meta.Integrations = []string{"linear", "sentry"}
	merged, err := persister.Persist(context.Background(), testSnapshot(t, "vitest"), meta)
	if err != nil {
		t.Fatalf("Second persist failed: %v", err)
	}

	tooling := merged["tooling"].(map[string]interface{})
	integrations := tooling["integrations"].([]interface{})
	want := []string{"github", "linear", "sentry"}
	if len(integrations) != len(want) {
		t.Fatalf("Expected deduplicated union %v, got %v", want, integrations)
	}
	for i, v := range want {
		if integrations[i] != v {
			t.Errorf("Union order: expected %q at %d, got %v", v, i, integrations[i])
		}
	}

	stack := merged["stack"].(map[string]interface{})
	additions := stack["additions"].([]interface{})
	if len(additions) != 2 {
		t.Errorf("Expected additions unioned to [biome vitest], got %v", additions)
	}
}

func TestPersister_Persist_SchemaFailureLeavesDocumentUntouched(t *testing.T) {
	persister := newTestPersister(t)

	if _, err := persister.Persist(context.Background(), testSnapshot(t, "biome"), testMeta()); err != nil {
		t.Fatalf("First persist failed: %v", err)
	}
	// Corrupt a list element type. The union merge preserves existing
	// elements, so the corruption survives into the merged document and
	// fails the schema's [...string] constraint.
	doc, _ := persister.Load()
	stack := doc["stack"].(map[string]interface{})
	stack["frameworks"] = []interface{}{42}
	if err := writeRaw(t, persister.Path(), doc); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	corrupted, err := os.ReadFile(persister.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	_, err = persister.Persist(context.Background(), testSnapshot(t, "biome"), testMeta())
	if err == nil {
		t.Fatal("Expected schema validation failure")
	}
	if engine.CodeOf(err) != engine.ErrCodeSchemaValidation {
		t.Errorf("Expected code %s, got %s", engine.ErrCodeSchemaValidation, engine.CodeOf(err))
	}
	if !engine.IsFatal(err) {
		t.Error("SchemaValidationError must be fatal")
	}

	after, err := os.ReadFile(persister.Path())
	if err != nil {
		t.Fatalf("read after failure: %v", err)
	}
	if string(after) != string(corrupted) {
		t.Error("Failed persist must leave the prior document untouched")
	}
}

func TestPersister_Load_MissingDocumentIsNil(t *testing.T) {
	persister := newTestPersister(t)
	doc, err := persister.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc != nil {
		t.Errorf("Expected nil for missing document, got %v", doc)
	}
}

func TestMergeMaps_IncomingScalarOverwrites(t *testing.T) {
	base := map[string]interface{}{
		"stack": map[string]interface{}{"language": "javascript", "note": "keep"},
	}
	incoming := map[string]interface{}{
		"stack": map[string]interface{}{"language": "typescript"},
	}

	out := mergeMaps(base, incoming)
	stack := out["stack"].(map[string]interface{})
	if stack["language"] != "typescript" {
		t.Errorf("Incoming key must overwrite, got %v", stack["language"])
	}
	if stack["note"] != "keep" {
		t.Errorf("Base-only key must be preserved, got %v", stack["note"])
	}
}

func TestUnionLists_MapElementsDedupedByID(t *testing.T) {
	old := []interface{}{
		map[string]interface{}{"id": "github", "enabled": true},
	}
	incoming := []interface{}{
		map[string]interface{}{"id": "github", "enabled": false},
		map[string]interface{}{"id": "linear"},
	}

	out := unionLists(old, incoming)
	if len(out) != 2 {
		t.Fatalf("Expected two elements, got %v", out)
	}
	first := out[0].(map[string]interface{})
	if first["enabled"] != true {
		t.Error("Existing element must win over incoming duplicate")
	}
}

// writeRaw writes a document directly, bypassing validation, to simulate
// manual edits.
func writeRaw(t *testing.T, path string, doc Document) error {
	t.Helper()
	p := NewPersister(path, NewSchemaRegistry(), zerolog.Nop())
	return p.write(doc)
}
