package errx

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSchemaValidation   = errors.New("tool arguments violate schema")
	ErrToolExecution      = errors.New("tool execution failed")
	ErrUnknownTool        = errors.New("unknown tool")
	ErrArtifactResolution = errors.New("artifact could not be resolved")
	ErrUnhandledTurn      = errors.New("unhandled turn failure")
	ErrInsufficientData   = errors.New("insufficient data")
	ErrDegenerateData     = errors.New("degenerate data")
	ErrTimeout            = errors.New("operation timed out")
	ErrInvalidInput       = errors.New("invalid input")
)

// FieldError describes one argument that failed schema validation.
type FieldError struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// SchemaValidationError is returned when tool arguments do not match the
// declared parameter schema. The model is expected to retry with corrected
// arguments.
type SchemaValidationError struct {
	Tool   string
	Fields []FieldError
}

func (e *SchemaValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Name, f.Reason))
	}
	return fmt.Sprintf("%s: %s: %s", ErrSchemaValidation.Error(), e.Tool, strings.Join(parts, "; "))
}

func (e *SchemaValidationError) Is(target error) bool {
	return target == ErrSchemaValidation
}

// ToolExecutionError wraps any failure raised by a tool function.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrToolExecution.Error(), e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

func (e *ToolExecutionError) Is(target error) bool {
	return target == ErrToolExecution
}

// ArtifactResolutionError is returned when a local artifact path cannot be
// turned into a publicly reachable URL.
type ArtifactResolutionError struct {
	Path string
	Err  error
}

func (e *ArtifactResolutionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrArtifactResolution.Error(), e.Path, e.Err)
}

func (e *ArtifactResolutionError) Unwrap() error {
	return e.Err
}

func (e *ArtifactResolutionError) Is(target error) bool {
	return target == ErrArtifactResolution
}

// UnhandledTurnError marks any fault that escaped a turn.
type UnhandledTurnError struct {
	SessionID string
	Err       error
}

func (e *UnhandledTurnError) Error() string {
	return fmt.Sprintf("%s: session %s: %v", ErrUnhandledTurn.Error(), e.SessionID, e.Err)
}

func (e *UnhandledTurnError) Unwrap() error {
	return e.Err
}

func (e *UnhandledTurnError) Is(target error) bool {
	return target == ErrUnhandledTurn
}
