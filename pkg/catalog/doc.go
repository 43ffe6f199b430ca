// Package catalog provides the decision catalog and supersession rule table
// consumed by the resolution engine.
//
// The builtin catalog ships with the binary. Extension YAML files can overlay
// it: entries with a matching identifier replace builtin entries, new entries
// are appended. Extension nodes may carry Starlark predicate scripts, which
// are compiled at load time and sandboxed behind a timeout.
package catalog
