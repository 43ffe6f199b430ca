package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/stackforge/stackforge/pkg/engine"
)

// PredicateEvaluator compiles Starlark predicate scripts from extension
// catalogs into engine predicate functions.
//
// A predicate script sees two predeclared names:
//
//	selections  dict of node ID to list of chosen option IDs
//	options     list of dicts with "id", "label", "category" keys
//
// and must assign a list of permitted option IDs to the global "allowed".
type PredicateEvaluator struct {
	timeout time.Duration
	logger  zerolog.Logger
}

// NewPredicateEvaluator creates an evaluator. A zero timeout defaults to
// one second; predicates run on every node visit and must stay cheap.
func NewPredicateEvaluator(timeout time.Duration, logger zerolog.Logger) *PredicateEvaluator {
	if timeout == 0 {
		timeout = time.Second
	}
	return &PredicateEvaluator{
		timeout: timeout,
		logger:  logger.With().Str("component", "predicate-evaluator").Logger(),
	}
}

// Compile syntax-checks the script and returns a predicate closed over it.
//
// A compiled predicate never fails the walk: on script error or timeout it
// logs and passes the static option set through unfiltered, so a broken
// extension degrades to unfiltered choices instead of blocking resolution.
func (e *PredicateEvaluator) Compile(nodeID, script string, static []engine.Option) (engine.PredicateFunc, error) {
	if _, _, err := starlark.SourceProgramOptions(predicateFileOptions, nodeID+".star", script, isPredeclaredName); err != nil {
		return nil, fmt.Errorf("predicate for node %s does not parse: %w", nodeID, err)
	}

	return func(prior engine.Selections) []engine.Option {
		allowed, err := e.run(script, nodeID, prior, static)
		if err != nil {
			e.logger.Warn().
				Err(err).
				Str("node", nodeID).
				Msg("Predicate evaluation failed, passing static options through")
			return static
		}
		return filterByID(static, allowed)
	}, nil
}

// run executes the script with a timeout. Starlark has no preemption, so the
// evaluation runs in a goroutine and the caller abandons it on deadline.
func (e *PredicateEvaluator) run(script, nodeID string, prior engine.Selections, static []engine.Option) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	type outcome struct {
		allowed []string
		err     error
	}
	ch := make(chan outcome, 1)

	go func() {
		allowed, err := evalPredicate(script, nodeID, prior, static)
		ch <- outcome{allowed: allowed, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("predicate timeout after %v", e.timeout)
	case out := <-ch:
		return out.allowed, out.err
	}
}

// predicateFileOptions allows script-style predicates: top-level if/for
// statements and reassignment of the top-level "allowed" global. The same
// options apply to the compile check and execution so they agree.
var predicateFileOptions = &syntax.FileOptions{
	TopLevelControl: true,
	GlobalReassign:  true,
}

// isPredeclaredName reports whether the evaluator predeclares the name, per
// the predeclared environment built in evalPredicate.
func isPredeclaredName(name string) bool {
	return name == "selections" || name == "options"
}

func evalPredicate(script, nodeID string, prior engine.Selections, static []engine.Option) ([]string, error) {
	thread := &starlark.Thread{
		Name:  "stackforge-predicate",
		Print: func(_ *starlark.Thread, _ string) {},
	}

	predeclared := starlark.StringDict{
		"selections": selectionsToStarlark(prior),
		"options":    optionsToStarlark(static),
	}

	globals, err := starlark.ExecFileOptions(predicateFileOptions, thread, nodeID+".star", script, predeclared)
	if err != nil {
		return nil, fmt.Errorf("predicate execution failed: %w", err)
	}

	raw, ok := globals["allowed"]
	if !ok {
		return nil, fmt.Errorf("predicate did not assign the allowed global")
	}

	list, ok := raw.(*starlark.List)
	if !ok {
		return nil, fmt.Errorf("allowed must be a list of option IDs, got %s", raw.Type())
	}

	allowed := make([]string, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		id, ok := list.Index(i).(starlark.String)
		if !ok {
			return nil, fmt.Errorf("allowed[%d] must be a string, got %s", i, list.Index(i).Type())
		}
		allowed = append(allowed, string(id))
	}
	return allowed, nil
}

func selectionsToStarlark(prior engine.Selections) *starlark.Dict {
	dict := starlark.NewDict(len(prior))
	for node, ids := range prior {
		values := make([]starlark.Value, len(ids))
		for i, id := range ids {
			values[i] = starlark.String(id)
		}
		_ = dict.SetKey(starlark.String(node), starlark.NewList(values))
	}
	return dict
}

func optionsToStarlark(options []engine.Option) *starlark.List {
	values := make([]starlark.Value, len(options))
	for i, opt := range options {
		d := starlark.NewDict(3)
		_ = d.SetKey(starlark.String("id"), starlark.String(opt.ID))
		_ = d.SetKey(starlark.String("label"), starlark.String(opt.Label))
		_ = d.SetKey(starlark.String("category"), starlark.String(opt.Category))
		values[i] = d
	}
	return starlark.NewList(values)
}

// filterByID intersects the static set with the allowed IDs, in static order.
func filterByID(static []engine.Option, allowed []string) []engine.Option {
	allowedSet := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = true
	}
	out := make([]engine.Option, 0, len(allowed))
	for _, opt := range static {
		if allowedSet[opt.ID] {
			out = append(out, opt)
		}
	}
	return out
}
