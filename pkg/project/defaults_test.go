package project

import (
	"testing"

	"github.com/stackforge/stackforge/pkg/engine"
)

func TestDetectDefaults_LockfilePrecedence(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{"pnpm", []string{"package.json", "pnpm-lock.yaml"}, "pnpm"},
		{"yarn", []string{"package.json", "yarn.lock"}, "yarn"},
		{"bun binary lockfile", []string{"bun.lockb"}, "bun"},
		{"bun text lockfile", []string{"package.json", "bun.lock"}, "bun"},
		{"npm", []string{"package-lock.json"}, "npm"},
		{"pnpm wins over npm", []string{"package-lock.json", "pnpm-lock.yaml"}, "pnpm"},
		{"yarn wins over npm", []string{"package-lock.json", "yarn.lock"}, "yarn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defaults := DetectDefaults(&engine.ProjectState{Files: tt.files})
			got := defaults["package-manager"]
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("Expected package-manager [%s], got %v", tt.want, got)
			}
		})
	}
}

func TestDetectDefaults_NestedLockfileIgnored(t *testing.T) {
	state := &engine.ProjectState{
		Files: []string{"package.json", "packages/app/yarn.lock"},
	}
	defaults := DetectDefaults(state)
	if _, ok := defaults["package-manager"]; ok {
		t.Errorf("Expected no package manager from nested lockfile, got %v", defaults["package-manager"])
	}
}

func TestDetectDefaults_ToolingAdditions(t *testing.T) {
	state := &engine.ProjectState{
		Dependencies: []string{"@biomejs/biome", "next", "react", "vitest", "tailwindcss"},
	}
	defaults := DetectDefaults(state)

	want := []string{"biome", "vitest", "tailwind"}
	got := defaults["additions"]
	if len(got) != len(want) {
		t.Fatalf("Expected additions %v, got %v", want, got)
	}
	for i, a := range want {
		if got[i] != a {
			t.Errorf("Addition %d: expected %q, got %q", i, a, got[i])
		}
	}
}

func TestDetectDefaults_NoDetections(t *testing.T) {
	defaults := DetectDefaults(&engine.ProjectState{
		Files:        []string{"README.md", "src/index.ts"},
		Dependencies: []string{"react", "zod"},
	})
	if len(defaults) != 0 {
		t.Errorf("Expected no defaults, got %v", defaults)
	}
}

func TestDetectDefaults_NilState(t *testing.T) {
	defaults := DetectDefaults(nil)
	if len(defaults) != 0 {
		t.Errorf("Expected empty defaults for nil state, got %v", defaults)
	}
}
