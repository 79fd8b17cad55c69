package domain

import "fmt"

// Error types for consistent error handling across the BFF.

// ErrRemoteUnavailable indicates there is no authenticated channel to the
// ledger yet. Reads degrade to defaults; writes fail fast with this error.
type ErrRemoteUnavailable struct {
	Operation string
}

func (e *ErrRemoteUnavailable) Error() string {
	return fmt.Sprintf("ledger unavailable for %s: no authenticated session", e.Operation)
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in a ledger call (RemoteCallFailed).
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrRemoteStatus carries a non-2xx status returned by the ledger.
type ErrRemoteStatus struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *ErrRemoteStatus) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: ledger returned status %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: ledger returned status %d", e.Operation, e.StatusCode)
}

// Temporary reports whether retrying the same request could succeed.
func (e *ErrRemoteStatus) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
