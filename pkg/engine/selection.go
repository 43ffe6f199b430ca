package engine

import (
	"time"
)

// SelectionModel accumulates validated answers during a walk. The walker
// exclusively owns the model until Finalize; afterwards only the immutable
// Snapshot circulates.
type SelectionModel struct {
	nodes      map[string]*ChoiceNode
	categories map[string]ToolCategory

	recorded  map[string][]string
	filtered  map[string][]Option
	nodeOrder []string
	toolOrder []string

	// categoryHolders maps a one-of category name to the tool occupying it.
	categoryHolders map[string]string

	finalized bool
}

// NewSelectionModel creates an empty model over the given catalog nodes and
// tool categories.
func NewSelectionModel(nodes []ChoiceNode, categories []ToolCategory) *SelectionModel {
	m := &SelectionModel{
		nodes:           make(map[string]*ChoiceNode, len(nodes)),
		categories:      make(map[string]ToolCategory, len(categories)),
		recorded:        make(map[string][]string),
		filtered:        make(map[string][]Option),
		categoryHolders: make(map[string]string),
	}
	for i := range nodes {
		node := nodes[i]
		m.nodes[node.ID] = &node
	}
	for _, c := range categories {
		m.categories[c.Name] = c
	}
	return m
}

// Current returns the answers recorded so far, for predicate evaluation.
func (m *SelectionModel) Current() Selections {
	return Selections(m.recorded).clone()
}

// SetFiltered records the filtered option set presented for a node. Record
// validates chosen IDs against this set, so a choice can never outlive the
// upstream selections it was filtered under.
func (m *SelectionModel) SetFiltered(nodeID string, options []Option) {
	cp := make([]Option, len(options))
	copy(cp, options)
	m.filtered[nodeID] = cp
}

// Record validates and stores the chosen option(s) for a node.
//
// Validation order: node existence, cardinality against MultiSelect,
// membership in the last filtered set, then one-of category constraints.
// A category violation fails with CategoryConflict rather than silently
// overwriting the earlier selection.
func (m *SelectionModel) Record(nodeID string, optionIDs []string) error {
	if m.finalized {
		return NewValidationError("selection model is finalized", nil).WithNode(nodeID)
	}

	node, ok := m.nodes[nodeID]
	if !ok {
		return NewValidationError("unknown decision node", nil).WithNode(nodeID)
	}

	if !node.MultiSelect && len(optionIDs) != 1 {
		return NewInvalidSelection(nodeID, "").
			WithDetail("reason", "single-select node requires exactly one option").
			WithDetail("got", len(optionIDs))
	}

	filtered, ok := m.filtered[nodeID]
	if !ok {
		return NewValidationError("node has no filtered option set; walk order violated", nil).WithNode(nodeID)
	}

	inFiltered := make(map[string]bool, len(filtered))
	for _, opt := range filtered {
		inFiltered[opt.ID] = true
	}

	seen := make(map[string]bool, len(optionIDs))
	for _, id := range optionIDs {
		if !inFiltered[id] {
			return NewInvalidSelection(nodeID, id)
		}
		if seen[id] {
			return NewInvalidSelection(nodeID, id).WithDetail("reason", "duplicate option")
		}
		seen[id] = true
	}

	// One-of category check across everything recorded so far. Checked
	// before mutation so a conflicting call leaves the model untouched.
	pendingHolders := make(map[string]string)
	for _, id := range optionIDs {
		opt, _ := node.option(id)
		if opt.Category == "" {
			continue
		}
		cat, known := m.categories[opt.Category]
		if !known || cat.Exclusivity != ExclusivityOneOf {
			continue
		}
		if holder, held := m.categoryHolders[opt.Category]; held && holder != id {
			return NewCategoryConflict(opt.Category, holder, id)
		}
		if holder, held := pendingHolders[opt.Category]; held && holder != id {
			return NewCategoryConflict(opt.Category, holder, id)
		}
		pendingHolders[opt.Category] = id
	}

	ids := make([]string, len(optionIDs))
	copy(ids, optionIDs)
	m.recorded[nodeID] = ids
	m.nodeOrder = append(m.nodeOrder, nodeID)
	m.toolOrder = append(m.toolOrder, ids...)
	for cat, holder := range pendingHolders {
		m.categoryHolders[cat] = holder
	}
	return nil
}

// Finalize checks that every required node has a recorded selection and
// returns an immutable snapshot. The model rejects further mutation.
func (m *SelectionModel) Finalize() (*Snapshot, error) {
	for id, node := range m.nodes {
		if !node.Required {
			continue
		}
		if _, ok := m.recorded[id]; !ok {
			return nil, NewValidationError("required node has no recorded selection", nil).WithNode(id)
		}
	}

	m.finalized = true
	return &Snapshot{
		selections: Selections(m.recorded).clone(),
		nodeOrder:  append([]string(nil), m.nodeOrder...),
		toolOrder:  append([]string(nil), m.toolOrder...),
		resolvedAt: time.Now(),
	}, nil
}
