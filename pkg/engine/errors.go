// Package engine provides the core types and components of the StackForge
// resolution engine: the decision tree walker, the selection model, the tool
// conflict resolver, and the operation planner.
package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for the walk loop.
type ErrorClass string

const (
	// ErrorClassRecoverable indicates a node-level failure that is handled by
	// re-soliciting the same decision node without unwinding the walk.
	// Examples: a chosen option outside the filtered set, a one-of category
	// violation.
	ErrorClassRecoverable ErrorClass = "recoverable"

	// ErrorClassFatal indicates a failure that aborts the entire pass.
	// Examples: a required node with zero valid options, a rule table cycle,
	// a canonical document missing a required section.
	ErrorClassFatal ErrorClass = "fatal"
)

// Error represents a classified resolution error with node and tool context.
type Error struct {
	// Class is the error classification for the walk loop.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Node is the decision node ID involved, if applicable.
	Node string `json:"node,omitempty"`

	// Tool is the tool ID involved, if applicable.
	Tool string `json:"tool,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Node != "" && e.Err != nil:
		return fmt.Sprintf("[%s] %s (node=%s): %v", e.Class, e.Message, e.Node, e.Err)
	case e.Node != "":
		return fmt.Sprintf("[%s] %s (node=%s)", e.Class, e.Message, e.Node)
	case e.Err != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Class, e.Message, e.Err)
	default:
		return fmt.Sprintf("[%s] %s", e.Class, e.Message)
	}
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// WithNode adds decision node context to an error.
func (e *Error) WithNode(nodeID string) *Error {
	e.Node = nodeID
	return e
}

// WithTool adds tool context to an error.
func (e *Error) WithTool(toolID string) *Error {
	e.Tool = toolID
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewUnsatisfiableNode reports a required node whose predicate produced zero
// valid options given the prior selections. Fatal: the walk aborts and no
// partial state is committed.
func NewUnsatisfiableNode(nodeID string) *Error {
	return &Error{
		Class:   ErrorClassFatal,
		Code:    ErrCodeUnsatisfiableNode,
		Message: "required node has no valid options",
		Node:    nodeID,
	}
}

// NewInvalidSelection reports a chosen option that is not in the node's
// currently filtered option set. Recoverable: the same node is re-solicited.
func NewInvalidSelection(nodeID, optionID string) *Error {
	return &Error{
		Class:   ErrorClassRecoverable,
		Code:    ErrCodeInvalidSelection,
		Message: fmt.Sprintf("option %q is not in the filtered set", optionID),
		Node:    nodeID,
	}
}

// NewCategoryConflict reports a selection that would place a second member in
// a one-of tool category. Recoverable: the category is re-solicited rather
// than silently overwritten.
func NewCategoryConflict(category, existingTool, newTool string) *Error {
	e := &Error{
		Class:   ErrorClassRecoverable,
		Code:    ErrCodeCategoryConflict,
		Message: fmt.Sprintf("category %q already holds %q, cannot also select %q", category, existingTool, newTool),
		Tool:    newTool,
	}
	return e.WithDetail("category", category).WithDetail("existing", existingTool)
}

// NewConflictCycle reports two selected tools whose rules supersede each
// other. Fatal: a cycle indicates a malformed rule table, surfaced to the
// table maintainer rather than the end user.
func NewConflictCycle(toolA, toolB string) *Error {
	e := &Error{
		Class:   ErrorClassFatal,
		Code:    ErrCodeConflictCycle,
		Message: fmt.Sprintf("tools %q and %q supersede each other", toolA, toolB),
		Tool:    toolA,
	}
	return e.WithDetail("other", toolB)
}

// NewSchemaValidation reports a merged canonical document that is missing a
// required section. Fatal: persistence aborts and the prior document is left
// untouched.
func NewSchemaValidation(message string, err error) *Error {
	return &Error{
		Class:   ErrorClassFatal,
		Code:    ErrCodeSchemaValidation,
		Message: message,
		Err:     err,
	}
}

// NewValidationError reports malformed static input (catalog, rule table,
// project state). Fatal.
func NewValidationError(message string, err error) *Error {
	return &Error{
		Class:   ErrorClassFatal,
		Code:    ErrCodeValidation,
		Message: message,
		Err:     err,
	}
}

// IsRecoverable returns true if the error is handled by re-soliciting the
// same decision node.
func IsRecoverable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassRecoverable
	}
	return false
}

// IsFatal returns true if the error unwinds the entire pass.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassFatal
	}
	return false
}

// CodeOf returns the error code of a classified error, or "" for other errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Common error codes.
const (
	ErrCodeUnsatisfiableNode = "UNSATISFIABLE_NODE"
	ErrCodeInvalidSelection  = "INVALID_SELECTION"
	ErrCodeCategoryConflict  = "CATEGORY_CONFLICT"
	ErrCodeConflictCycle     = "CONFLICT_CYCLE"
	ErrCodeSchemaValidation  = "SCHEMA_VALIDATION"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
)
