// Package turnerr defines the error taxonomy shared by every stage of the
// turn-execution pipeline. Codes, not Go type names, are the wire contract
// (see §6.1's terminal "error" event and §7): callers match on Code, not on
// concrete error types.
package turnerr

import (
	"errors"
	"fmt"
)

// Code is a stable taxonomy code surfaced to clients in the terminal SSE
// error event and logged for every aborted turn.
type Code string

const (
	CodeTenantNotFound          Code = "TenantNotFound"
	CodeTenantInvalid           Code = "TenantInvalid"
	CodeInsufficientCredits     Code = "InsufficientCredits"
	CodeInteractionLimitReached Code = "InteractionLimitReached"
	CodeUpstreamTransient       Code = "UpstreamTransient"
	CodeUpstreamUnavailable     Code = "UpstreamUnavailable"
	CodeUpstreamInvalid         Code = "BadRequestUpstream"
	CodeToolExecutionFailed     Code = "ToolExecutionFailed"
	CodePersistenceFailed       Code = "PersistenceFailed"
	CodeConfigurationError      Code = "ConfigurationError"
	CodeDeadlineExceeded        Code = "DeadlineExceeded"
	CodeCancelled               Code = "Cancelled"
	CodeInternalError           Code = "InternalError"
)

// Error is the taxonomy-coded error carried through the pipeline. It wraps
// an optional underlying cause for logging while keeping Code as the only
// thing callers should branch on.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a taxonomy error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds a taxonomy error around an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the taxonomy code from err, defaulting to
// CodeInternalError for anything that isn't a *Error. Unknown/unexpected
// exceptions are converted to InternalError per §7's propagation policy.
func CodeOf(err error) Code {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return CodeInternalError
}

// Is reports whether err carries the given taxonomy code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

var (
	// ErrTenantNotFound is returned by the Instance Registry when the
	// requested instance_id does not exist (§4.1).
	ErrTenantNotFound = New(CodeTenantNotFound, "tenant not found")
	// ErrLimitReached is returned by the orchestrator's interaction-limit
	// check (§4.8 step 6); non-fatal, a distinct SSE code accompanies it.
	ErrLimitReached = New(CodeInteractionLimitReached, "interaction limit reached")
	// ErrInsufficientCredits guards the pre-LLM-call credit floor check
	// (§4.8 step 7) and the post-debit re-check (§4.8 step 13c).
	ErrInsufficientCredits = New(CodeInsufficientCredits, "insufficient credits")
)
