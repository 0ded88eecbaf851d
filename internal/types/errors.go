package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed taxonomy of job-level pipeline failures.
// Per-URL and per-chunk failures are never represented this way — they
// are recorded as data on KnowledgeSource.Error or a chunk outcome, so a
// single bad URL or chunk cannot abort the job through the error path.
type ErrorKind string

const (
	KindInvalidInput                 ErrorKind = "invalid_input"
	KindKnowledgeFetchError          ErrorKind = "knowledge_fetch_error"
	KindEmbeddingBackendUnavailable  ErrorKind = "embedding_backend_unavailable"
	KindGenerationError              ErrorKind = "generation_error"
	KindInsufficientContent          ErrorKind = "insufficient_content"
	KindNoValidSteps                 ErrorKind = "no_valid_steps"
	KindJobTimeout                   ErrorKind = "job_timeout"
	KindCancelled                    ErrorKind = "cancelled"
	KindInternal                     ErrorKind = "internal"
)

// Error is the single error type the pipeline returns to its caller. It
// always carries one of the closed ErrorKind values plus a human-readable,
// potentially multi-line remediation message.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError constructs a pipeline Error. cause may be nil.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the ErrorKind of err if it is (or wraps) a *Error, and
// false otherwise.
func KindOf(err error) (ErrorKind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}
