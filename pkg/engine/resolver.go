package engine

import (
	"github.com/rs/zerolog"
)

// ConflictResolver expands a finalized selection snapshot through the rule
// table into a consolidated superseded set, detecting malformed tables.
type ConflictResolver struct {
	logger zerolog.Logger
}

// NewConflictResolver creates a resolver.
func NewConflictResolver(logger zerolog.Logger) *ConflictResolver {
	return &ConflictResolver{
		logger: logger.With().Str("component", "conflict-resolver").Logger(),
	}
}

// Resolve unions the active rules of every selected tool into a
// SupersededSet keyed by origin tool.
//
// When selected tool A's rule replaces selected tool B, B's own rule is
// excluded from the union (A wins). Exclusion follows the replacement
// relation: a rule is active iff no active rule replaces its tool. Mutual or
// transitive replacement among selected tools is a ConflictCycle: that is a
// malformed rule table, not a valid choice. Two non-conflicting rules that
// both supersede the same third tool reduce to plain set union.
func (r *ConflictResolver) Resolve(snapshot *Snapshot, table *RuleTable) (*SupersededSet, error) {
	selected := snapshot.SelectedTools()
	selectedSet := make(map[string]bool, len(selected))
	for _, t := range selected {
		selectedSet[t] = true
	}

	// Replacement edges restricted to selected tools that carry rules.
	replaces := make(map[string][]string)
	for _, tool := range selected {
		rule, ok := table.Rule(tool)
		if !ok {
			continue
		}
		for _, replaced := range rule.ReplacedTools {
			if selectedSet[replaced] {
				if _, hasRule := table.Rule(replaced); hasRule {
					replaces[tool] = append(replaces[tool], replaced)
				}
			}
		}
	}

	if a, b, found := findCycle(selected, replaces); found {
		r.logger.Error().
			Str("tool_a", a).
			Str("tool_b", b).
			Msg("Supersession rules form a cycle; rule table is malformed")
		return nil, NewConflictCycle(a, b)
	}

	// The relation is acyclic, so activity is well-defined by induction:
	// a tool's rule is active iff no tool with an active rule replaces it.
	active := make(map[string]bool)
	var isActive func(tool string) bool
	isActive = func(tool string) bool {
		if v, done := active[tool]; done {
			return v
		}
		// Mark pessimistically to terminate; the cycle check above
		// guarantees this value is never read back during recursion.
		active[tool] = false
		for _, replacer := range selected {
			for _, replaced := range replaces[replacer] {
				if replaced == tool && isActive(replacer) {
					active[tool] = false
					return false
				}
			}
		}
		active[tool] = true
		return true
	}

	set := &SupersededSet{
		ByOrigin: make(map[string]SupersessionRule),
	}
	for _, tool := range selected {
		rule, ok := table.Rule(tool)
		if !ok {
			continue
		}
		if !isActive(tool) {
			set.Excluded = append(set.Excluded, tool)
			r.logger.Debug().
				Str("tool", tool).
				Msg("Rule excluded: tool is superseded by another selection")
			continue
		}
		set.Origins = append(set.Origins, tool)
		set.ByOrigin[tool] = rule
	}

	r.logger.Info().
		Int("origins", len(set.Origins)).
		Int("excluded", len(set.Excluded)).
		Msg("Supersession rules resolved")
	return set, nil
}

// findCycle detects a cycle in the replacement relation among selected tools
// and returns one closing edge for the error report.
func findCycle(selected []string, replaces map[string][]string) (string, string, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(selected))

	var cycleFrom, cycleTo string
	var visit func(tool string) bool
	visit = func(tool string) bool {
		color[tool] = gray
		for _, next := range replaces[tool] {
			switch color[next] {
			case gray:
				cycleFrom, cycleTo = tool, next
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[tool] = black
		return false
	}

	for _, tool := range selected {
		if color[tool] == white && visit(tool) {
			return cycleTo, cycleFrom, true
		}
	}
	return "", "", false
}
