package catalog

import (
	"github.com/stackforge/stackforge/pkg/engine"
)

// Catalog bundles the decision nodes, tool categories, and supersession rule
// table for one resolution pass.
type Catalog struct {
	// Version is the catalog version string, from the highest-versioned
	// source file, or "builtin" for the shipped catalog alone.
	Version string

	// Nodes is the decision catalog in dependency order.
	Nodes []engine.ChoiceNode

	// Categories is the set of tool exclusivity groups.
	Categories []engine.ToolCategory

	// Rules is the supersession rule table.
	Rules *engine.RuleTable
}

// Builtin returns the catalog the engine ships with.
func Builtin() (*Catalog, error) {
	table, err := BuiltinRuleTable()
	if err != nil {
		return nil, err
	}
	return &Catalog{
		Version:    "builtin",
		Nodes:      BuiltinNodes(),
		Categories: BuiltinCategories(),
		Rules:      table,
	}, nil
}

// Node returns the node with the given ID, if present.
func (c *Catalog) Node(id string) (engine.ChoiceNode, bool) {
	for _, n := range c.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return engine.ChoiceNode{}, false
}

// File is one extension catalog document as parsed from YAML. Extensions
// overlay the builtin catalog: a node, category, or rule whose identifier
// matches a builtin entry replaces it in place, everything else is appended.
type File struct {
	// Version identifies the extension catalog revision.
	Version string `yaml:"version" validate:"required"`

	// Categories declares additional or replacement exclusivity groups.
	Categories []CategorySpec `yaml:"categories,omitempty" validate:"dive"`

	// Nodes declares additional or replacement decision nodes.
	Nodes []NodeSpec `yaml:"nodes,omitempty" validate:"dive"`

	// Rules declares additional or replacement supersession rules.
	Rules []engine.SupersessionRule `yaml:"rules,omitempty" validate:"dive"`
}

// CategorySpec is the YAML shape of a tool category.
type CategorySpec struct {
	Name        string `yaml:"name" validate:"required"`
	Exclusivity string `yaml:"exclusivity" validate:"required,oneof=one-of many-of"`
}

// NodeSpec is the YAML shape of a decision node. The predicate, when
// present, is a Starlark script compiled at load time.
type NodeSpec struct {
	ID          string          `yaml:"id" validate:"required"`
	Category    string          `yaml:"category" validate:"required"`
	Options     []engine.Option `yaml:"options" validate:"required,min=1,dive"`
	MultiSelect bool            `yaml:"multi_select"`
	Required    bool            `yaml:"required"`
	Predicate   string          `yaml:"predicate,omitempty"`
}
