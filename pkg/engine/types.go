package engine

import (
	"sort"
	"time"
)

// Option is a single selectable answer for a decision node.
type Option struct {
	// ID is the stable identifier recorded in the selection model.
	ID string `json:"id" yaml:"id"`

	// Label is the human-readable text shown by the prompting collaborator.
	Label string `json:"label" yaml:"label"`

	// Category is the tool category this option belongs to, if any.
	// One-of categories enforce mutual exclusivity across the whole model.
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
}

// Selections is a read-only view of recorded answers keyed by node ID.
type Selections map[string][]string

// Single returns the sole recorded option for a single-select node.
func (s Selections) Single(nodeID string) (string, bool) {
	ids, ok := s[nodeID]
	if !ok || len(ids) != 1 {
		return "", false
	}
	return ids[0], true
}

// Has reports whether the given option is recorded for the given node.
func (s Selections) Has(nodeID, optionID string) bool {
	for _, id := range s[nodeID] {
		if id == optionID {
			return true
		}
	}
	return false
}

// clone returns a copy so predicates never observe later mutation.
func (s Selections) clone() Selections {
	out := make(Selections, len(s))
	for node, ids := range s {
		cp := make([]string, len(ids))
		copy(cp, ids)
		out[node] = cp
	}
	return out
}

// PredicateFunc filters a node's static option set down to what is valid
// given the selections recorded so far. Implementations must be pure.
type PredicateFunc func(prior Selections) []Option

// ChoiceNode is one step in the decision tree: a category of question with
// a static option set narrowed by a predicate over prior selections.
type ChoiceNode struct {
	// ID is the unique identifier for this node.
	ID string `json:"id" yaml:"id"`

	// Category is the decision category label (e.g. "framework").
	Category string `json:"category" yaml:"category"`

	// Options is the ordered static option set. The effective option set at
	// resolution time is always a subset of this set.
	Options []Option `json:"options" yaml:"options"`

	// MultiSelect allows zero or more options instead of exactly one.
	MultiSelect bool `json:"multi_select" yaml:"multi_select"`

	// Required nodes must end up with a recorded selection; a required node
	// whose filtered set is empty fails the walk.
	Required bool `json:"required" yaml:"required"`

	// Predicate filters Options against prior selections. A nil predicate
	// passes the static set through unchanged.
	Predicate PredicateFunc `json:"-" yaml:"-"`
}

// FilterOptions evaluates the node's predicate and intersects the result with
// the static option set, enforcing the subset invariant even for misbehaving
// predicates.
func (n *ChoiceNode) FilterOptions(prior Selections) []Option {
	if n.Predicate == nil {
		out := make([]Option, len(n.Options))
		copy(out, n.Options)
		return out
	}

	filtered := n.Predicate(prior.clone())

	allowed := make(map[string]bool, len(filtered))
	for _, opt := range filtered {
		allowed[opt.ID] = true
	}

	// Intersect in static order so the result is deterministic regardless of
	// the order the predicate returned.
	out := make([]Option, 0, len(filtered))
	for _, opt := range n.Options {
		if allowed[opt.ID] {
			out = append(out, opt)
		}
	}
	return out
}

// option looks up a static option by ID.
func (n *ChoiceNode) option(id string) (Option, bool) {
	for _, opt := range n.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// ExclusivityMode controls how many members of a tool category may be
// selected at once.
type ExclusivityMode string

const (
	// ExclusivityOneOf allows at most one selected member of the category.
	ExclusivityOneOf ExclusivityMode = "one-of"

	// ExclusivityManyOf allows any number of selected members.
	ExclusivityManyOf ExclusivityMode = "many-of"
)

// ToolCategory is a named mutual-exclusivity group over tool options.
type ToolCategory struct {
	// Name is the unique category name (e.g. "package-manager").
	Name string `json:"name" yaml:"name"`

	// Exclusivity is the selection mode for this category.
	Exclusivity ExclusivityMode `json:"exclusivity" yaml:"exclusivity"`
}

// SupersessionRule declares what selecting a tool implies removing.
type SupersessionRule struct {
	// Tool is the selected tool this rule activates for.
	Tool string `json:"tool" yaml:"tool" validate:"required"`

	// ReplacedTools are tool IDs superseded by this tool.
	ReplacedTools []string `json:"replaced_tools,omitempty" yaml:"replaced_tools,omitempty"`

	// FilePatterns are glob patterns for files owned by the superseded tools.
	FilePatterns []string `json:"file_patterns,omitempty" yaml:"file_patterns,omitempty"`

	// DependencyNames are manifest dependency names to remove.
	DependencyNames []string `json:"dependency_names,omitempty" yaml:"dependency_names,omitempty"`

	// ScriptRewrites maps script names to their new commands.
	ScriptRewrites map[string]string `json:"script_rewrites,omitempty" yaml:"script_rewrites,omitempty"`

	// OwnedFiles are glob patterns for files this tool itself requires.
	// Files matching an owned pattern of any selected tool are never deleted,
	// even if another rule's FilePatterns match them.
	OwnedFiles []string `json:"owned_files,omitempty" yaml:"owned_files,omitempty"`
}

// RuleTable is an ordered set of supersession rules keyed by tool ID.
// Order follows the catalog so plan output stays deterministic.
type RuleTable struct {
	order []string
	rules map[string]SupersessionRule
}

// NewRuleTable builds a table from rules in the given order. A duplicate tool
// entry is a table authoring error.
func NewRuleTable(rules []SupersessionRule) (*RuleTable, error) {
	t := &RuleTable{
		order: make([]string, 0, len(rules)),
		rules: make(map[string]SupersessionRule, len(rules)),
	}
	for _, r := range rules {
		if _, dup := t.rules[r.Tool]; dup {
			return nil, NewValidationError("duplicate rule for tool", nil).WithTool(r.Tool)
		}
		t.order = append(t.order, r.Tool)
		t.rules[r.Tool] = r
	}
	return t, nil
}

// Rule returns the rule for a tool, if one exists.
func (t *RuleTable) Rule(tool string) (SupersessionRule, bool) {
	r, ok := t.rules[tool]
	return r, ok
}

// Tools returns all tool IDs with rules, in table order.
func (t *RuleTable) Tools() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// SupersededSet is the consolidated removal targets derived from the active
// rules of the selected tools, keyed by origin tool for traceability.
type SupersededSet struct {
	// Origins lists the selected tools whose rules are active, in catalog
	// selection order.
	Origins []string `json:"origins"`

	// ByOrigin holds each active rule keyed by its origin tool.
	ByOrigin map[string]SupersessionRule `json:"by_origin"`

	// Excluded lists selected tools whose own rules were suppressed because
	// another selected tool supersedes them.
	Excluded []string `json:"excluded,omitempty"`
}

// Empty reports whether no rule contributed any removal target.
func (s *SupersededSet) Empty() bool {
	for _, origin := range s.Origins {
		r := s.ByOrigin[origin]
		if len(r.DependencyNames) > 0 || len(r.FilePatterns) > 0 || len(r.ScriptRewrites) > 0 {
			return false
		}
	}
	return true
}

// ProjectState is a snapshot of the scaffolded project, supplied by an
// external inspection collaborator.
type ProjectState struct {
	// Dependencies is the flat set of dependency names currently declared.
	Dependencies []string `json:"dependencies"`

	// Files is the set of existing file paths, relative to the project root.
	Files []string `json:"files"`

	// Scripts maps script names to their current command strings.
	Scripts map[string]string `json:"scripts"`
}

// HasDependency reports whether the named dependency is declared.
func (p *ProjectState) HasDependency(name string) bool {
	for _, d := range p.Dependencies {
		if d == name {
			return true
		}
	}
	return false
}

// OperationKind identifies a reconciliation operation variant.
type OperationKind string

const (
	// OpRemoveDependency removes a dependency from the manifest.
	OpRemoveDependency OperationKind = "remove_dependency"

	// OpDeleteFile deletes a file matched by a superseded pattern.
	OpDeleteFile OperationKind = "delete_file"

	// OpRewriteScript rewrites a script mapping to a new command.
	OpRewriteScript OperationKind = "rewrite_script"
)

// Operation is a single typed reconciliation action. The engine emits
// operations; an external executor collaborator applies them.
type Operation struct {
	// Kind is the operation variant.
	Kind OperationKind `json:"kind"`

	// Name is the dependency or script name, depending on Kind.
	Name string `json:"name,omitempty"`

	// Path is the matched file path for delete operations.
	Path string `json:"path,omitempty"`

	// Command is the new script command for rewrite operations.
	Command string `json:"command,omitempty"`

	// Origin is the selected tool whose rule produced this operation.
	Origin string `json:"origin"`
}

// PlanSummary provides statistics about an operation plan.
type PlanSummary struct {
	// Removals is the number of dependency removals.
	Removals int `json:"removals"`

	// Deletions is the number of file deletions.
	Deletions int `json:"deletions"`

	// Rewrites is the number of script rewrites.
	Rewrites int `json:"rewrites"`
}

// OperationPlan is the ordered, idempotent list of reconciliation operations.
type OperationPlan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id"`

	// CreatedAt is when the plan was computed.
	CreatedAt time.Time `json:"created_at"`

	// Operations is the ordered operation list: dependency removals, then
	// file deletions, then script rewrites, each in catalog order.
	Operations []Operation `json:"operations"`

	// Summary provides per-kind counts.
	Summary PlanSummary `json:"summary"`
}

// Empty reports whether the plan contains no operations.
func (p *OperationPlan) Empty() bool {
	return len(p.Operations) == 0
}

// Snapshot is the immutable result of a completed walk. Ownership of the
// selection data transfers to the resolver and planner through this value.
type Snapshot struct {
	selections Selections
	nodeOrder  []string
	toolOrder  []string
	resolvedAt time.Time
}

// Selections returns a copy of the recorded answers.
func (s *Snapshot) Selections() Selections {
	return s.selections.clone()
}

// Get returns the recorded option IDs for a node.
func (s *Snapshot) Get(nodeID string) []string {
	ids := s.selections[nodeID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Single returns the sole recorded option for a single-select node.
func (s *Snapshot) Single(nodeID string) (string, bool) {
	return s.selections.Single(nodeID)
}

// SelectedTools returns every selected option ID across all nodes, in catalog
// order. Rule lookups and plan emission iterate this order.
func (s *Snapshot) SelectedTools() []string {
	out := make([]string, len(s.toolOrder))
	copy(out, s.toolOrder)
	return out
}

// Nodes returns the IDs of nodes with a recorded selection, in walk order.
func (s *Snapshot) Nodes() []string {
	out := make([]string, len(s.nodeOrder))
	copy(out, s.nodeOrder)
	return out
}

// ResolvedAt is when the walk completed.
func (s *Snapshot) ResolvedAt() time.Time {
	return s.resolvedAt
}

// sortedScriptNames returns a rule's script names in lexical order so map
// iteration never leaks into plan ordering.
func sortedScriptNames(rewrites map[string]string) []string {
	names := make([]string, 0, len(rewrites))
	for name := range rewrites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
