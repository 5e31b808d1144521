package flowerror

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code classifies a failure at a collaborator boundary. Every boundary method
// returns a well-formed result or a FlowError, never an unclassified failure.
type Code string

const (
	// CodeValidation marks malformed identifier or config input. Never retried.
	CodeValidation Code = "VALIDATION"
	// CodeTransientAutomation marks navigation, timeout or selector failures
	// inside a provider flow. Retried by the orchestrator's backoff policy.
	CodeTransientAutomation Code = "TRANSIENT_AUTOMATION"
	// CodeUnresolvedRoute marks a settlement destination the router cannot map.
	CodeUnresolvedRoute Code = "UNRESOLVED_ROUTE"
	// CodeBackendNotConfigured marks a resolved rail family with no backend
	// configured. A configuration gap, distinct from an unsupported destination.
	CodeBackendNotConfigured Code = "BACKEND_NOT_CONFIGURED"
	// CodeBackendExecution marks a failure reported by a settlement backend.
	CodeBackendExecution Code = "BACKEND_EXECUTION"
	// CodeSourceUnavailable marks a single lookup source failure. Swallowed by
	// the lookup engine, triggers fallback to the next source.
	CodeSourceUnavailable Code = "SOURCE_UNAVAILABLE"
	// CodeProviderNotFound marks a provider key with no registered driver.
	CodeProviderNotFound Code = "PROVIDER_NOT_FOUND"
)

type FlowError struct {
	Code    Code        `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e FlowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code Code, message string, details interface{}) FlowError {
	return FlowError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CodeOf returns the classification of err, unwrapping as needed. Errors that
// never passed through a boundary classification report an empty Code.
func CodeOf(err error) Code {
	var fe FlowError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// Retryable reports whether the orchestrator's retry policy applies to err.
// Only transient automation failures are retried; unclassified errors (raw
// session or navigation failures that escaped a driver) are treated as
// transient because drivers are idempotent-safe against re-invocation.
func Retryable(err error) bool {
	code := CodeOf(err)
	return code == CodeTransientAutomation || code == ""
}
