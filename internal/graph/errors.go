package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph construction and parameter checking. Every
// typed error below unwraps to one of these so callers can use errors.Is.
var (
	// ErrValidation indicates malformed input: an out-of-range index, a
	// weight outside [0, 1], or length-mismatched parallel lists.
	ErrValidation = errors.New("invalid graph input")
	// ErrConsistency indicates that out-adjacency and in-adjacency disagree.
	ErrConsistency = errors.New("inconsistent adjacency")
	// ErrInvalidParameter indicates a bad algorithm parameter or an empty
	// required input.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrIOFormat indicates an unparseable interchange document.
	ErrIOFormat = errors.New("unparseable document")
)

// ValidationError records a malformed-input problem with enough context to
// find it without re-running: the field name and, when relevant, the node
// index and position inside that node's list.
type ValidationError struct {
	Field    string // e.g. "inWeight", "outList", "weight"
	Node     int    // node index, -1 when not node-specific
	Position int    // position in the node's list, -1 when not applicable
	Reason   string
}

// Error returns a human-readable description including node context.
func (e *ValidationError) Error() string {
	msg := "validation: " + e.Field
	if e.Node >= 0 {
		msg += fmt.Sprintf("[%d]", e.Node)
	}
	if e.Position >= 0 {
		msg += fmt.Sprintf("[%d]", e.Position)
	}
	return msg + ": " + e.Reason
}

// Unwrap returns ErrValidation for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ConsistencyError records an out-edge without its mirrored in-edge (or the
// reverse), or a mirrored pair whose weights differ.
type ConsistencyError struct {
	Source int
	Target int
	Reason string
}

// Error returns a human-readable description naming the offending edge.
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency: edge %d->%d: %s", e.Source, e.Target, e.Reason)
}

// Unwrap returns ErrConsistency for use with errors.Is.
func (e *ConsistencyError) Unwrap() error {
	return ErrConsistency
}

// InvalidParameterError records a rejected algorithm parameter.
type InvalidParameterError struct {
	Name   string
	Value  any
	Reason string
}

// Error returns a human-readable description including the rejected value.
func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Name, e.Value, e.Reason)
}

// Unwrap returns ErrInvalidParameter for use with errors.Is.
func (e *InvalidParameterError) Unwrap() error {
	return ErrInvalidParameter
}

// IOFormatError records a document that could not be parsed. Line is 1-based
// and zero when the format has no meaningful line position.
type IOFormatError struct {
	Format string // "edgelist", "json", "csv"
	Line   int
	Err    error
}

// Error returns a human-readable description including the line number.
func (e *IOFormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %v", e.Format, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Format, e.Err)
}

// Unwrap returns both ErrIOFormat and the underlying cause.
func (e *IOFormatError) Unwrap() []error {
	return []error{ErrIOFormat, e.Err}
}

func invalid(field string, node, pos int, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Node: node, Position: pos, Reason: fmt.Sprintf(format, args...)}
}
