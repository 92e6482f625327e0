// Package errors defines the error taxonomy surfaced by the routing core.
// Every failure returned to callers is a *RouterError whose Kind can be matched
// with errors.Is against the sentinel values below.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a routing failure.
type Kind string

// Error kinds as constants for consistency.
const (
	KindNoHealthyDeployments Kind = "no_healthy_deployments"
	KindDeploymentNotFound   Kind = "deployment_not_found"
	KindStrategyError        Kind = "strategy_error"
	KindRoutingFailed        Kind = "routing_failed"
	KindLockError            Kind = "lock_error"
	KindNoCandidates         Kind = "no_candidates"
	KindInvalidDeployment    Kind = "invalid_deployment"
)

// RouterError represents a failure of a single routing-core operation.
type RouterError struct {
	Kind    Kind   `json:"type"`
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
	Key     string `json:"key,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *RouterError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Model != "" {
		msg += fmt.Sprintf(" (model=%s)", e.Model)
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" (key=%s)", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *RouterError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a RouterError of the same kind.
func (e *RouterError) Is(target error) bool {
	var t *RouterError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// HTTPStatusCode returns the HTTP status code callers should surface for the error.
func (e *RouterError) HTTPStatusCode() int {
	switch e.Kind {
	case KindNoHealthyDeployments:
		return http.StatusServiceUnavailable
	case KindDeploymentNotFound:
		return http.StatusNotFound
	case KindInvalidDeployment:
		return http.StatusBadRequest
	case KindLockError:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether retrying the same call may succeed.
func (e *RouterError) Retryable() bool {
	switch e.Kind {
	case KindNoHealthyDeployments, KindLockError:
		return true
	default:
		return false
	}
}

// Sentinels for errors.Is matching.
var (
	ErrNoHealthyDeployments = &RouterError{Kind: KindNoHealthyDeployments}
	ErrDeploymentNotFound   = &RouterError{Kind: KindDeploymentNotFound}
	ErrStrategy             = &RouterError{Kind: KindStrategyError}
	ErrRoutingFailed        = &RouterError{Kind: KindRoutingFailed}
	ErrLock                 = &RouterError{Kind: KindLockError}
	ErrNoCandidates         = &RouterError{Kind: KindNoCandidates}
	ErrInvalidDeployment    = &RouterError{Kind: KindInvalidDeployment}
)

// NewNoHealthyDeploymentsError reports that no eligible deployment exists for model.
func NewNoHealthyDeploymentsError(model string) *RouterError {
	return &RouterError{
		Kind:    KindNoHealthyDeployments,
		Message: "no healthy deployments available",
		Model:   model,
	}
}

// NewDeploymentNotFoundError reports a failed lookup by key.
func NewDeploymentNotFoundError(key string) *RouterError {
	return &RouterError{
		Kind:    KindDeploymentNotFound,
		Message: "deployment not found",
		Key:     key,
	}
}

// NewStrategyError wraps a selector's internal failure.
func NewStrategyError(strategy, message string) *RouterError {
	return &RouterError{
		Kind:    KindStrategyError,
		Message: fmt.Sprintf("%s: %s", strategy, message),
	}
}

// WrapStrategyError wraps an error returned by a selector, keeping the cause
// reachable through errors.Is and errors.As.
func WrapStrategyError(strategy string, cause error) *RouterError {
	return &RouterError{
		Kind:    KindStrategyError,
		Message: fmt.Sprintf("%s failed to select", strategy),
		Err:     cause,
	}
}

// NewNoCandidatesError is returned by a selector invoked with an empty candidate set.
func NewNoCandidatesError(strategy string) *RouterError {
	return &RouterError{
		Kind:    KindNoCandidates,
		Message: fmt.Sprintf("%s: no candidates to select from", strategy),
	}
}

// NewRoutingFailedError wraps a failure raised while orchestrating a Route call.
func NewRoutingFailedError(model string, cause error) *RouterError {
	return &RouterError{
		Kind:    KindRoutingFailed,
		Message: "routing failed",
		Model:   model,
		Err:     cause,
	}
}

// NewLockError reports that an exclusion primitive could not be acquired.
func NewLockError(resource string, cause error) *RouterError {
	return &RouterError{
		Kind:    KindLockError,
		Message: fmt.Sprintf("failed to acquire lock on %s", resource),
		Err:     cause,
	}
}

// NewInvalidDeploymentError reports a deployment that cannot be registered.
func NewInvalidDeploymentError(key, message string) *RouterError {
	return &RouterError{
		Kind:    KindInvalidDeployment,
		Message: message,
		Key:     key,
	}
}

// StatusCode extracts the HTTP status for any error, defaulting to 500.
func StatusCode(err error) int {
	var re *RouterError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return http.StatusInternalServerError
}
