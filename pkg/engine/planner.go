package engine

import (
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Planner converts a superseded set plus the selection snapshot into an
// ordered, idempotent operation plan against a project state snapshot.
type Planner struct {
	logger zerolog.Logger
}

// NewPlanner creates a planner.
func NewPlanner(logger zerolog.Logger) *Planner {
	return &Planner{
		logger: logger.With().Str("component", "planner").Logger(),
	}
}

// Plan computes the reconciliation operations, in fixed order to avoid
// partial states: dependency removals, then file deletions, then script
// rewrites, each in catalog order.
//
// Idempotence: an operation is emitted only when the project state actually
// diverges: a dependency that is absent, a file that does not exist, or a
// script already at its target command produces nothing. Re-planning a state
// to which the plan has been applied therefore yields an empty plan.
func (p *Planner) Plan(set *SupersededSet, snapshot *Snapshot, state *ProjectState) (*OperationPlan, error) {
	if set == nil || snapshot == nil || state == nil {
		return nil, NewValidationError("superseded set, snapshot, and project state are all required", nil)
	}

	plan := &OperationPlan{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
	}

	protected := p.protectedFiles(set, state)

	// 1. Dependency removals. Union semantics: the first origin in catalog
	// order claims a dependency named by several rules.
	removed := make(map[string]bool)
	for _, origin := range set.Origins {
		rule := set.ByOrigin[origin]
		for _, dep := range rule.DependencyNames {
			if removed[dep] || !state.HasDependency(dep) {
				continue
			}
			removed[dep] = true
			plan.Operations = append(plan.Operations, Operation{
				Kind:   OpRemoveDependency,
				Name:   dep,
				Origin: origin,
			})
			plan.Summary.Removals++
		}
	}

	// 2. File deletions. A file owned by any currently selected tool is
	// never deleted, even when a superseded pattern matches it.
	deleted := make(map[string]bool)
	for _, origin := range set.Origins {
		rule := set.ByOrigin[origin]
		for _, pattern := range rule.FilePatterns {
			for _, file := range state.Files {
				if deleted[file] || !matchPattern(pattern, file) {
					continue
				}
				if protected[file] {
					p.logger.Debug().
						Str("file", file).
						Str("pattern", pattern).
						Str("origin", origin).
						Msg("File protected by an active selection, not deleted")
					continue
				}
				deleted[file] = true
				plan.Operations = append(plan.Operations, Operation{
					Kind:   OpDeleteFile,
					Path:   file,
					Origin: origin,
				})
				plan.Summary.Deletions++
			}
		}
	}

	// 3. Script rewrites, script names in lexical order within each rule.
	rewritten := make(map[string]bool)
	for _, origin := range set.Origins {
		rule := set.ByOrigin[origin]
		for _, name := range sortedScriptNames(rule.ScriptRewrites) {
			command := rule.ScriptRewrites[name]
			if rewritten[name] || state.Scripts[name] == command {
				continue
			}
			rewritten[name] = true
			plan.Operations = append(plan.Operations, Operation{
				Kind:    OpRewriteScript,
				Name:    name,
				Command: command,
				Origin:  origin,
			})
			plan.Summary.Rewrites++
		}
	}

	p.logger.Info().
		Str("plan_id", plan.ID).
		Int("removals", plan.Summary.Removals).
		Int("deletions", plan.Summary.Deletions).
		Int("rewrites", plan.Summary.Rewrites).
		Msg("Operation plan computed")
	return plan, nil
}

// protectedFiles collects the existing files matched by an OwnedFiles
// pattern of any active selection. Selected-tool files always win over
// superseded-tool patterns. Tools whose rules were excluded do not protect:
// being superseded by another selection is precisely the signal that their
// files are up for removal.
func (p *Planner) protectedFiles(set *SupersededSet, state *ProjectState) map[string]bool {
	protected := make(map[string]bool)
	for _, origin := range set.Origins {
		for _, pattern := range set.ByOrigin[origin].OwnedFiles {
			for _, file := range state.Files {
				if matchPattern(pattern, file) {
					protected[file] = true
				}
			}
		}
	}
	return protected
}

// matchPattern matches a file path against a glob pattern. Patterns are
// matched against the full relative path and, for bare patterns without a
// separator, against the base name as well, so ".eslintrc*" matches both
// ".eslintrc.json" and "config/.eslintrc.json".
func matchPattern(pattern, file string) bool {
	if ok, err := path.Match(pattern, file); err == nil && ok {
		return true
	}
	if !containsSlash(pattern) {
		if ok, err := path.Match(pattern, path.Base(file)); err == nil && ok {
			return true
		}
	}
	return false
}

func containsSlash(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return true
		}
	}
	return false
}
