// Package engine implements the StackForge resolution core: a deterministic
// decision process that resolves a target technology stack from user choices
// and computes an idempotent plan reconciling a scaffolded project with those
// choices.
//
// # Workflow
//
// One pass flows through four components, each handing an immutable value to
// the next:
//
//	Walker -> Snapshot -> ConflictResolver -> SupersededSet -> Planner -> OperationPlan
//
// The Walker traverses the decision catalog in dependency order (structure,
// project type, language, framework, stack additions), filtering each node's
// static options through its predicate over the selections recorded so far.
// It exclusively owns the in-progress SelectionModel; finalizing transfers
// ownership to the resolver and planner as an immutable Snapshot.
//
// The ConflictResolver expands the selected tools through the supersession
// rule table into a consolidated SupersededSet. A selected tool replaced by
// another selected tool loses its own rule (the replacer wins); mutual
// replacement is a ConflictCycle, which signals a malformed rule table.
//
// The Planner turns the superseded set into an ordered OperationPlan of
// dependency removals, file deletions, and script rewrites. Plans are
// deterministic for a given (snapshot, project state) pair and idempotent:
// re-planning against a reconciled state yields an empty plan.
//
// # Boundaries
//
// The engine consumes and produces plain data. It never prompts the user
// (see ChoiceProvider), never touches the project's files or manifest (the
// plan is handed to an external executor), and performs no network I/O.
// Errors are classified: recoverable errors re-solicit a single node;
// fatal errors unwind the pass with no partial state committed.
package engine
