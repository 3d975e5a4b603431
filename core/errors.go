package core

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrSinkClosed is returned when writing to an already closed event sink.
var ErrSinkClosed = errors.New("event sink closed")

// NewCorrelationID mints the identifier threading one turn through nested
// tool calls, log events and errors.
func NewCorrelationID() string { return uuid.NewString() }

// ConfigError marks missing or invalid tool configuration. Configuration
// errors fail the whole turn (fail closed), they are never downgraded to a
// silently disabled tool.
type ConfigError struct {
	Key           string `json:"key"`     // configKey or tool name that failed resolution
	Message       string `json:"message"` // human-readable description
	CorrelationID string `json:"correlation_id,omitempty"`
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for %q: %s", e.Key, e.Message)
}

// NewConfigError creates a ConfigError for the given key.
func NewConfigError(key, message, correlationID string) *ConfigError {
	return &ConfigError{Key: key, Message: message, CorrelationID: correlationID}
}

// ProviderError marks an upstream model provider failure (auth, rate limit,
// transport). Provider errors on the primary call abort the turn.
type ProviderError struct {
	Provider      string `json:"provider"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Err           error  `json:"-"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error [%s]: %s", e.Provider, e.Message)
}

// Unwrap exposes the wrapped transport error.
func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps an upstream failure.
func NewProviderError(provider, correlationID string, err error) *ProviderError {
	msg := "unknown failure"
	if err != nil {
		msg = err.Error()
	}
	return &ProviderError{Provider: provider, Message: msg, CorrelationID: correlationID, Err: err}
}

// AgentError marks a disabled or misconfigured sub-agent. Surfaced via the
// tool result, non-fatal to the turn.
type AgentError struct {
	Agent         string `json:"agent"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent error in %s: %s", e.Agent, e.Message)
}

// NewAgentError creates an AgentError for the named agent.
func NewAgentError(agent, message, correlationID string) *AgentError {
	return &AgentError{Agent: agent, Message: message, CorrelationID: correlationID}
}

// OperationError marks an invalid delegated operation (e.g. out-of-range
// revert target). Returned as the tool's result so the model can explain it.
type OperationError struct {
	Op            Operation `json:"operation"`
	ArtifactID    string    `json:"artifact_id,omitempty"`
	Message       string    `json:"message"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

func (e *OperationError) Error() string {
	if e.ArtifactID != "" {
		return fmt.Sprintf("operation error [%s] on artifact %s: %s", e.Op, e.ArtifactID, e.Message)
	}
	return fmt.Sprintf("operation error [%s]: %s", e.Op, e.Message)
}

// NewOperationError creates an OperationError for the given operation.
func NewOperationError(op Operation, artifactID, message, correlationID string) *OperationError {
	return &OperationError{Op: op, ArtifactID: artifactID, Message: message, CorrelationID: correlationID}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsProviderError reports whether err is (or wraps) a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsAgentError reports whether err is (or wraps) an AgentError.
func IsAgentError(err error) bool {
	var ae *AgentError
	return errors.As(err, &ae)
}

// IsOperationError reports whether err is (or wraps) an OperationError.
func IsOperationError(err error) bool {
	var oe *OperationError
	return errors.As(err, &oe)
}
