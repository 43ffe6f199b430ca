package project

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/stackforge/stackforge/pkg/engine"
)

// manifest is the subset of package.json the planner cares about.
type manifest struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Scripts         map[string]string `json:"scripts"`
}

// Inspector produces a project state snapshot from a scaffolded project
// directory: declared dependencies, existing files, and script mappings.
type Inspector struct {
	logger zerolog.Logger

	// skipDirs are directory names never descended into.
	skipDirs map[string]bool
}

// NewInspector creates an inspector.
func NewInspector(logger zerolog.Logger) *Inspector {
	return &Inspector{
		logger: logger.With().Str("component", "project-inspector").Logger(),
		skipDirs: map[string]bool{
			"node_modules": true,
			".git":         true,
			".next":        true,
			"dist":         true,
			"build":        true,
			"coverage":     true,
		},
	}
}

// Inspect reads the manifest and walks the tree under root. The returned
// state is a point-in-time snapshot; one resolve-plan-persist pass must run
// against a single snapshot.
func (i *Inspector) Inspect(root string) (*engine.ProjectState, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	state := &engine.ProjectState{
		Scripts: make(map[string]string),
	}

	m, err := i.readManifest(root)
	if err != nil {
		return nil, err
	}
	if m != nil {
		deps := make([]string, 0, len(m.Dependencies)+len(m.DevDependencies))
		for name := range m.Dependencies {
			deps = append(deps, name)
		}
		for name := range m.DevDependencies {
			deps = append(deps, name)
		}
		sort.Strings(deps)
		state.Dependencies = deps
		for name, command := range m.Scripts {
			state.Scripts[name] = command
		}
	}

	files, err := i.collectFiles(root)
	if err != nil {
		return nil, err
	}
	state.Files = files

	i.logger.Debug().
		Str("root", root).
		Int("dependencies", len(state.Dependencies)).
		Int("files", len(state.Files)).
		Int("scripts", len(state.Scripts)).
		Msg("Project state inspected")

	return state, nil
}

// readManifest parses package.json if present. A missing manifest is not an
// error: freshly created directories have none yet.
func (i *Inspector) readManifest(root string) (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// collectFiles walks the tree and returns file paths relative to root, with
// forward slashes, sorted for deterministic planning.
func (i *Inspector) collectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && i.skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk project tree: %w", err)
	}
	sort.Strings(files)
	return files, nil
}
