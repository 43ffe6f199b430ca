package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/stackforge/stackforge/pkg/engine"
)

// Persister owns the on-disk canonical configuration document and is the
// only component permitted to mutate it.
type Persister struct {
	path     string
	registry *SchemaRegistry
	logger   zerolog.Logger
}

// NewPersister creates a persister for the document at the given path.
func NewPersister(path string, registry *SchemaRegistry, logger zerolog.Logger) *Persister {
	return &Persister{
		path:     path,
		registry: registry,
		logger:   logger.With().Str("component", "config-persister").Logger(),
	}
}

// Path returns the document location.
func (p *Persister) Path() string {
	return p.path
}

// Load reads the current document, or returns nil when none exists yet.
func (p *Persister) Load() (Document, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	// Decode into the plain map type so nested mappings come back as
	// map[string]interface{}; yaml.v3 would otherwise propagate the named
	// Document type to every nested mapping.
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return Document(doc), nil
}

// Persist merges the resolution into the canonical document and writes it.
//
// With no existing document, the fresh document is written as-is. Against an
// existing document the merge is recursive and key-wise: keys from the new
// resolution overwrite, keys present only in the old document are preserved,
// and array values are unioned with stable identity instead of replaced.
//
// The merged result is validated before any write; on SchemaValidationError
// the prior document is left untouched. The write itself is a temp file plus
// rename, so a partial document is never observable.
func (p *Persister) Persist(ctx context.Context, snapshot *engine.Snapshot, meta IntegrationMetadata) (Document, error) {
	if snapshot == nil {
		return nil, engine.NewValidationError("selection snapshot is required", nil)
	}

	existing, err := p.Load()
	if err != nil {
		return nil, engine.NewSchemaValidation("existing document is unreadable", err)
	}

	fresh := buildDocument(snapshot, meta)

	merged := fresh
	if existing != nil {
		merged = mergeMaps(existing, fresh)
	}

	if err := p.registry.ValidateCanonical(ctx, merged); err != nil {
		return nil, engine.NewSchemaValidation("merged document failed schema validation", err)
	}

	if err := p.write(merged); err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("path", p.path).
		Bool("merged", existing != nil).
		Msg("Canonical document persisted")

	return merged, nil
}

// write performs the atomic full-document replace.
func (p *Persister) write(doc Document) error {
	data, err := yaml.Marshal(map[string]interface{}(doc))
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create document directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".stackforge-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, p.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace document: %w", err)
	}
	return nil
}

// buildDocument constructs the document for one resolution from scratch.
func buildDocument(snapshot *engine.Snapshot, meta IntegrationMetadata) Document {
	structure, _ := snapshot.Single("structure")
	projectType, _ := snapshot.Single("project-type")
	language, _ := snapshot.Single("language")
	packageManager, _ := snapshot.Single("package-manager")

	integrations := make(map[string]interface{}, len(meta.Services))
	for name, id := range meta.Services {
		integrations[name] = id
	}

	return Document{
		"integrations": integrations,
		"tooling": map[string]interface{}{
			"integrations": toInterfaceSlice(meta.Integrations),
			"skills":       toInterfaceSlice(meta.Skills),
		},
		"stack": map[string]interface{}{
			"structure":       structure,
			"project_type":    projectType,
			"language":        language,
			"frameworks":      toInterfaceSlice(snapshot.Get("framework")),
			"package_manager": packageManager,
			"additions":       toInterfaceSlice(snapshot.Get("additions")),
		},
	}
}

func toInterfaceSlice(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// mergeMaps merges incoming onto base, key by key. Nested maps merge
// recursively, arrays union, every other incoming value overwrites.
func mergeMaps(base, incoming map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(incoming))
	for k, v := range base {
		out[k] = v
	}
	for k, newVal := range incoming {
		oldVal, present := out[k]
		if !present {
			out[k] = newVal
			continue
		}
		out[k] = mergeValue(oldVal, newVal)
	}
	return out
}

func mergeValue(oldVal, newVal interface{}) interface{} {
	oldMap, oldIsMap := asMap(oldVal)
	newMap, newIsMap := asMap(newVal)
	if oldIsMap && newIsMap {
		return mergeMaps(oldMap, newMap)
	}

	oldList, oldIsList := oldVal.([]interface{})
	newList, newIsList := newVal.([]interface{})
	if oldIsList && newIsList {
		return unionLists(oldList, newList)
	}

	return newVal
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Document:
		return m, true
	default:
		return nil, false
	}
}

// unionLists appends new elements not already present, keeping the old order.
// Identity is the "id" or "name" key for map elements, the printed value
// otherwise.
func unionLists(old, incoming []interface{}) []interface{} {
	seen := make(map[string]bool, len(old))
	out := make([]interface{}, 0, len(old)+len(incoming))
	for _, v := range old {
		seen[listIdentity(v)] = true
		out = append(out, v)
	}
	for _, v := range incoming {
		id := listIdentity(v)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, v)
	}
	return out
}

func listIdentity(v interface{}) string {
	if m, ok := asMap(v); ok {
		if id, ok := m["id"].(string); ok {
			return "id:" + id
		}
		if name, ok := m["name"].(string); ok {
			return "name:" + name
		}
	}
	return fmt.Sprintf("%v", v)
}
