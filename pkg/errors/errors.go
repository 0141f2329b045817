package errors

import (
	"fmt"
)

// ParseError represents a YAML parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures configuration issues: missing parameters, dangling
// node references, cycles, arity violations and unresolved template keys.
// They are never retried.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ExecutionError represents a runtime failure while executing a plan node.
type ExecutionError struct {
	NodeName string
	Err      error
}

// NewExecutionError constructs an ExecutionError.
func NewExecutionError(nodeName string, err error) error {
	return &ExecutionError{NodeName: nodeName, Err: err}
}

func (e *ExecutionError) Error() string {
	if e == nil {
		return ""
	}
	if e.NodeName != "" {
		return fmt.Sprintf("execution error on node %s: %v", e.NodeName, e.Err)
	}
	return fmt.Sprintf("execution error: %v", e.Err)
}

// Unwrap exposes the root error.
func (e *ExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// OperatorError indicates an operator or component type that cannot be
// resolved from its registry.
type OperatorError struct {
	Type    string
	Message string
	Err     error
}

// NewOperatorError constructs an OperatorError for the given type key.
func NewOperatorError(typeKey string, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &OperatorError{Type: typeKey, Message: message, Err: err}
}

func (e *OperatorError) Error() string {
	if e == nil {
		return ""
	}
	if e.Type != "" {
		return fmt.Sprintf("operator error [%s]: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("operator error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *OperatorError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DetectorError reports a defect in a pluggable detector, such as an anomaly
// starting before the detection interval. It is fatal.
type DetectorError struct {
	Detector string
	Message  string
}

// NewDetectorError constructs a DetectorError.
func NewDetectorError(detector, message string) error {
	return &DetectorError{Detector: detector, Message: message}
}

func (e *DetectorError) Error() string {
	if e == nil {
		return ""
	}
	if e.Detector != "" {
		return fmt.Sprintf("detector error [%s]: %s", e.Detector, e.Message)
	}
	return fmt.Sprintf("detector error: %s", e.Message)
}

// BranchError wraps the failure of one fork-join branch.
type BranchError struct {
	Index int
	Item  string
	Err   error
}

// NewBranchError constructs a BranchError.
func NewBranchError(index int, item string, err error) error {
	return &BranchError{Index: index, Item: item, Err: err}
}

func (e *BranchError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("fork-join branch %d (%s) failed: %v", e.Index, e.Item, e.Err)
}

// Unwrap exposes the underlying error.
func (e *BranchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
