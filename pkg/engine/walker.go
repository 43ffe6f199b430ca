package engine

import (
	"context"

	"github.com/rs/zerolog"
)

// ChoiceProvider supplies the actual decision for a node. The conversational
// layer implements this interface; the engine never prompts directly.
type ChoiceProvider interface {
	// Choose presents the filtered options for a node and returns the chosen
	// option IDs. For single-select nodes exactly one ID is expected.
	Choose(ctx context.Context, node ChoiceNode, options []Option) ([]string, error)
}

// ChoiceProviderFunc adapts a function to the ChoiceProvider interface.
type ChoiceProviderFunc func(ctx context.Context, node ChoiceNode, options []Option) ([]string, error)

// Choose implements ChoiceProvider.
func (f ChoiceProviderFunc) Choose(ctx context.Context, node ChoiceNode, options []Option) ([]string, error) {
	return f(ctx, node, options)
}

// maxSolicitAttempts bounds re-prompting on recoverable errors so a
// misbehaving provider cannot loop the walk forever.
const maxSolicitAttempts = 5

// Walker drives traversal of the decision catalog in dependency order,
// filtering each node's options against the selections recorded so far.
// It exclusively owns the in-progress SelectionModel; on any fatal error or
// cancellation that state is discarded and nothing is committed.
type Walker struct {
	nodes      []ChoiceNode
	categories []ToolCategory
	provider   ChoiceProvider
	logger     zerolog.Logger
}

// NewWalker creates a walker over the given catalog.
func NewWalker(nodes []ChoiceNode, categories []ToolCategory, provider ChoiceProvider, logger zerolog.Logger) *Walker {
	return &Walker{
		nodes:      nodes,
		categories: categories,
		provider:   provider,
		logger:     logger.With().Str("component", "walker").Logger(),
	}
}

// Resolve walks every node in catalog order and returns the finalized
// snapshot. Defaults seed answers detected from the environment: a default
// that is valid under the node's filtered set is recorded without prompting.
//
// Node behavior:
//   - empty filtered set + required: fails with UnsatisfiableNode
//   - empty filtered set + optional: node skipped
//   - single option + required single-select: auto-resolved without prompting
//   - otherwise: the ChoiceProvider is solicited; InvalidSelection and
//     CategoryConflict re-solicit the same node, other errors abort
func (w *Walker) Resolve(ctx context.Context, defaults Selections) (*Snapshot, error) {
	model := NewSelectionModel(w.nodes, w.categories)

	for i := range w.nodes {
		node := w.nodes[i]

		if err := ctx.Err(); err != nil {
			w.logger.Debug().Str("node", node.ID).Msg("Walk cancelled, discarding selection model")
			return nil, err
		}

		options := node.FilterOptions(model.Current())
		model.SetFiltered(node.ID, options)

		if len(options) == 0 {
			if node.Required {
				w.logger.Error().Str("node", node.ID).Msg("Required node has no valid options")
				return nil, NewUnsatisfiableNode(node.ID)
			}
			w.logger.Debug().Str("node", node.ID).Msg("Node not applicable, skipping")
			continue
		}

		// Environment-seeded defaults answer the node without prompting when
		// they are still valid under the current filter.
		if chosen, ok := defaults[node.ID]; ok {
			if err := model.Record(node.ID, chosen); err == nil {
				w.logger.Debug().
					Str("node", node.ID).
					Strs("options", chosen).
					Msg("Node resolved from defaults")
				continue
			} else if IsFatal(err) {
				return nil, err
			}
			// Stale default: fall through to solicitation.
		}

		// Single-option required nodes are auto-resolved; there is nothing
		// to ask.
		if node.Required && !node.MultiSelect && len(options) == 1 {
			if err := model.Record(node.ID, []string{options[0].ID}); err != nil {
				return nil, err
			}
			w.logger.Debug().
				Str("node", node.ID).
				Str("option", options[0].ID).
				Msg("Node auto-resolved to sole option")
			continue
		}

		if err := w.solicit(ctx, model, node, options); err != nil {
			return nil, err
		}
	}

	snapshot, err := model.Finalize()
	if err != nil {
		return nil, err
	}

	w.logger.Info().
		Int("nodes", len(snapshot.Nodes())).
		Int("tools", len(snapshot.SelectedTools())).
		Msg("Decision walk completed")
	return snapshot, nil
}

// solicit asks the provider for a choice, re-soliciting the same node on
// recoverable validation errors.
func (w *Walker) solicit(ctx context.Context, model *SelectionModel, node ChoiceNode, options []Option) error {
	var lastErr error

	for attempt := 0; attempt < maxSolicitAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		chosen, err := w.provider.Choose(ctx, node, options)
		if err != nil {
			return err
		}

		// Multi-select nodes may answer with nothing at all.
		if node.MultiSelect && len(chosen) == 0 {
			return model.Record(node.ID, nil)
		}

		err = model.Record(node.ID, chosen)
		if err == nil {
			w.logger.Debug().
				Str("node", node.ID).
				Strs("options", chosen).
				Msg("Node resolved")
			return nil
		}
		if !IsRecoverable(err) {
			return err
		}

		w.logger.Warn().
			Err(err).
			Str("node", node.ID).
			Int("attempt", attempt+1).
			Msg("Invalid choice, re-soliciting node")
		lastErr = err
	}

	return lastErr
}
