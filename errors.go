package gentflow

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a session id is unknown to the context store.
	ErrSessionNotFound = errors.New("gentflow: session not found")

	// ErrInvalidTool is returned when registering a tool with a blank name or a schema that
	// does not compile.
	ErrInvalidTool = errors.New("gentflow: invalid tool")

	// ErrToolNotFound is returned when executing a tool that is not registered.
	ErrToolNotFound = errors.New("gentflow: tool not found")

	// ErrInvalidToolArgs is returned when tool arguments fail the tool's parameter schema.
	ErrInvalidToolArgs = errors.New("gentflow: invalid tool arguments")

	// ErrEmptyContent is returned when model output is empty after markdown stripping.
	ErrEmptyContent = errors.New("gentflow: empty content after strip")

	// ErrNoJSONFound is returned when model output contains neither '{' nor '['.
	ErrNoJSONFound = errors.New("gentflow: no JSON object or array found")

	// ErrUnclosedBracket is returned when the first JSON bracket is never closed.
	ErrUnclosedBracket = errors.New("gentflow: unclosed JSON bracket")

	// ErrInvalidJSON is returned when the extracted span is not valid JSON.
	ErrInvalidJSON = errors.New("gentflow: invalid JSON")

	// ErrValidationFailed is returned when parsed output does not satisfy its schema.
	ErrValidationFailed = errors.New("gentflow: schema validation failed")

	// ErrModelRequired is returned by the gateway when neither the request nor the gateway
	// names a model.
	ErrModelRequired = errors.New("gentflow: model is required: provide request model or default model")

	// ErrNoProvider is returned when a model has no provider mapping.
	ErrNoProvider = errors.New("gentflow: no provider mapping found for model")

	// ErrProviderNotConfigured is returned when a mapped provider was never registered.
	ErrProviderNotConfigured = errors.New("gentflow: provider not configured")

	// ErrPermissionDenied is reported when an actor lacks a required action.
	ErrPermissionDenied = errors.New("gentflow: permission denied")

	// ErrApprovalRejected is reported when a human declines to continue a workflow.
	ErrApprovalRejected = errors.New("gentflow: human did not approve next step")
)

// ProviderError is a failure reported by a model provider. Status is the HTTP status when
// known, Code a transport or vendor error code.
type ProviderError struct {
	Provider string
	Status   int
	Code     string
	Message  string
	Err      error
}

// Error implements error.
func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s provider error (status %d): %s", e.Provider, e.Status, msg)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s provider error (%s): %s", e.Provider, e.Code, msg)
	}
	return fmt.Sprintf("%s provider error: %s", e.Provider, msg)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}
