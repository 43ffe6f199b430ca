package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const lockfileRego = `package stackforge.policies.lockfiles

# Warns when a plan leaves no lockfile behind
import rego.v1

deny contains violation if {
	false
	violation := {"message": "unreachable"}
}
`

func writePolicyFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoader_LoadFromPaths_RegoFile(t *testing.T) {
	dir := t.TempDir()
	writePolicyFile(t, dir, "lockfiles.rego", lockfileRego)

	policies, err := NewLoader(zerolog.Nop()).LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("Expected one policy, got %d", len(policies))
	}

	p := policies[0]
	if p.Name != "lockfiles" {
		t.Errorf("Expected name from file, got %q", p.Name)
	}
	if p.Severity != SeverityWarning {
		t.Errorf("Expected default warning severity, got %s", p.Severity)
	}
	if p.Description == "" {
		t.Error("Expected description extracted from leading comment")
	}
}

func TestLoader_LoadFromPaths_JSONFile(t *testing.T) {
	dir := t.TempDir()
	writePolicyFile(t, dir, "custom.json", `{
		"name": "custom",
		"description": "a json policy",
		"rego": "package stackforge.policies.custom\n\nimport rego.v1\n",
		"severity": "error",
		"enabled": true
	}`)

	policies, err := NewLoader(zerolog.Nop()).LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if len(policies) != 1 || policies[0].Severity != SeverityError {
		t.Fatalf("Unexpected policies: %+v", policies)
	}
}

func TestLoader_LoadFromPaths_SkipsBrokenFilesInDirectory(t *testing.T) {
	dir := t.TempDir()
	writePolicyFile(t, dir, "good.rego", lockfileRego)
	writePolicyFile(t, dir, "broken.json", "{not json")
	writePolicyFile(t, dir, "notes.txt", "ignored entirely")

	policies, err := NewLoader(zerolog.Nop()).LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if len(policies) != 1 {
		t.Errorf("Expected only the good policy, got %d", len(policies))
	}
}

func TestLoader_LoadFromPaths_MissingPathFails(t *testing.T) {
	if _, err := NewLoader(zerolog.Nop()).LoadFromPaths(context.Background(), []string{"/does/not/exist"}); err == nil {
		t.Fatal("Expected error for missing path")
	}
}

func TestLoader_CacheServesUntilCleared(t *testing.T) {
	dir := t.TempDir()
	path := writePolicyFile(t, dir, "lockfiles.rego", lockfileRego)

	loader := NewLoader(zerolog.Nop())
	first, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}

	// Rewrite the file; the cached parse is returned until the cache is
	// cleared (the watcher clears per-file entries on change events).
	writePolicyFile(t, dir, "lockfiles.rego", "# changed\n"+lockfileRego)
	cached, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if cached[0].Rego != first[0].Rego {
		t.Error("Expected cached policy before cache clear")
	}

	loader.ClearCache()
	fresh, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if fresh[0].Rego == first[0].Rego {
		t.Error("Expected fresh parse after cache clear")
	}
}
