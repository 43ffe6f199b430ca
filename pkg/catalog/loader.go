package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/stackforge/stackforge/pkg/engine"
)

// Loader assembles the effective catalog from the builtin tables plus
// extension YAML files, and can watch extension paths for changes.
type Loader struct {
	logger    zerolog.Logger
	validate  *validator.Validate
	evaluator *PredicateEvaluator

	mu      sync.RWMutex
	cache   map[string]*File
	watcher *fsnotify.Watcher
}

// NewLoader creates a catalog loader.
func NewLoader(evaluator *PredicateEvaluator, logger zerolog.Logger) *Loader {
	return &Loader{
		logger:    logger.With().Str("component", "catalog-loader").Logger(),
		validate:  validator.New(),
		evaluator: evaluator,
		cache:     make(map[string]*File),
	}
}

// Load assembles the catalog: builtin tables overlaid with every extension
// file found at the given paths, in lexical path order so the result is
// stable across runs.
func (l *Loader) Load(ctx context.Context, paths []string) (*Catalog, error) {
	base, err := Builtin()
	if err != nil {
		return nil, err
	}

	files, err := l.collectFiles(paths)
	if err != nil {
		return nil, err
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file, err := l.loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog file %s: %w", path, err)
		}
		if err := l.overlay(base, file); err != nil {
			return nil, fmt.Errorf("failed to apply catalog file %s: %w", path, err)
		}
		base.Version = file.Version
	}

	l.logger.Info().
		Int("nodes", len(base.Nodes)).
		Int("categories", len(base.Categories)).
		Int("rules", len(base.Rules.Tools())).
		Int("extensions", len(files)).
		Str("version", base.Version).
		Msg("Catalog assembled")

	return base, nil
}

// collectFiles expands the given paths into a sorted list of YAML files.
func (l *Loader) collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat path %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isCatalogFile(p) {
				return nil
			}
			files = append(files, p)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk directory %s: %w", path, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func isCatalogFile(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}

// loadFile parses and validates a single extension file, consulting the cache.
func (l *Loader) loadFile(path string) (*File, error) {
	l.mu.RLock()
	if cached, ok := l.cache[path]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := l.validate.Struct(&file); err != nil {
		return nil, fmt.Errorf("catalog file failed validation: %w", err)
	}

	l.mu.Lock()
	l.cache[path] = &file
	l.mu.Unlock()

	l.logger.Debug().
		Str("path", path).
		Str("version", file.Version).
		Msg("Catalog file loaded")

	return &file, nil
}

// overlay applies one extension file onto the catalog in place.
func (l *Loader) overlay(base *Catalog, file *File) error {
	for _, spec := range file.Categories {
		cat := engine.ToolCategory{
			Name:        spec.Name,
			Exclusivity: engine.ExclusivityMode(spec.Exclusivity),
		}
		replaced := false
		for i := range base.Categories {
			if base.Categories[i].Name == cat.Name {
				base.Categories[i] = cat
				replaced = true
				break
			}
		}
		if !replaced {
			base.Categories = append(base.Categories, cat)
		}
	}

	for _, spec := range file.Nodes {
		node, err := l.buildNode(spec)
		if err != nil {
			return err
		}
		replaced := false
		for i := range base.Nodes {
			if base.Nodes[i].ID == node.ID {
				base.Nodes[i] = node
				replaced = true
				break
			}
		}
		if !replaced {
			base.Nodes = append(base.Nodes, node)
		}
	}

	if len(file.Rules) > 0 {
		merged := make([]engine.SupersessionRule, 0, len(base.Rules.Tools())+len(file.Rules))
		override := make(map[string]engine.SupersessionRule, len(file.Rules))
		for _, r := range file.Rules {
			override[r.Tool] = r
		}
		for _, tool := range base.Rules.Tools() {
			if r, ok := override[tool]; ok {
				merged = append(merged, r)
				delete(override, tool)
				continue
			}
			r, _ := base.Rules.Rule(tool)
			merged = append(merged, r)
		}
		for _, r := range file.Rules {
			if _, pending := override[r.Tool]; pending {
				merged = append(merged, r)
			}
		}
		table, err := engine.NewRuleTable(merged)
		if err != nil {
			return err
		}
		base.Rules = table
	}

	return nil
}

// buildNode converts a node spec into an engine node, compiling its
// Starlark predicate when present.
func (l *Loader) buildNode(spec NodeSpec) (engine.ChoiceNode, error) {
	seen := make(map[string]bool, len(spec.Options))
	for _, opt := range spec.Options {
		if seen[opt.ID] {
			return engine.ChoiceNode{}, fmt.Errorf("node %s declares duplicate option %s", spec.ID, opt.ID)
		}
		seen[opt.ID] = true
	}

	node := engine.ChoiceNode{
		ID:          spec.ID,
		Category:    spec.Category,
		Options:     spec.Options,
		MultiSelect: spec.MultiSelect,
		Required:    spec.Required,
	}
	if spec.Predicate != "" {
		predicate, err := l.evaluator.Compile(spec.ID, spec.Predicate, spec.Options)
		if err != nil {
			return engine.ChoiceNode{}, err
		}
		node.Predicate = predicate
	}
	return node, nil
}

// Watch starts watching extension paths and invokes reloadFn with the
// freshly assembled catalog after changes settle.
func (l *Loader) Watch(ctx context.Context, paths []string, reloadFn func(*Catalog) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	l.watcher = watcher

	for _, path := range paths {
		if err := watcher.Add(path); err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch path")
		}
	}

	go l.processEvents(ctx, paths, reloadFn)

	l.logger.Info().Int("paths", len(paths)).Msg("Started watching catalog paths")
	return nil
}

// processEvents debounces file system events and triggers reloads.
func (l *Loader) processEvents(ctx context.Context, paths []string, reloadFn func(*Catalog) error) {
	var reloadTimer *time.Timer
	const reloadDelay = 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			_ = l.watcher.Close()
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 || !isCatalogFile(event.Name) {
				continue
			}
			l.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Catalog file changed")

			l.mu.Lock()
			delete(l.cache, event.Name)
			l.mu.Unlock()

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, func() {
				catalog, err := l.Load(ctx, paths)
				if err != nil {
					l.logger.Error().Err(err).Msg("Failed to reload catalog")
					return
				}
				if err := reloadFn(catalog); err != nil {
					l.logger.Error().Err(err).Msg("Failed to apply reloaded catalog")
				}
			})

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// StopWatching stops watching for file changes.
func (l *Loader) StopWatching() error {
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// ClearCache drops all cached extension files.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*File)
	l.logger.Debug().Msg("Catalog cache cleared")
}
