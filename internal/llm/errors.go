package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable means every retry of a transient failure was used up.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrModelAuth means the credentials were rejected.
	ErrModelAuth = errors.New("model authentication failed")
	// ErrModelQuota means the account has no quota or billing left.
	ErrModelQuota = errors.New("model quota exhausted")
	// ErrModelNotFound means no configured model exists.
	ErrModelNotFound = errors.New("model not found")
	// ErrRequestRejected means the model refused this particular request.
	ErrRequestRejected = errors.New("request rejected by model")
	// ErrEmptyResponse means the model answered with no text.
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrDeadlineTooClose means the rate limiter would wait past the context deadline.
	ErrDeadlineTooClose = errors.New("rate limiter wait exceeds deadline")
)

// StatusError is an HTTP-level failure reported by a model backend.
type StatusError struct {
	Code    int    // HTTP status code
	Status  string // Backend status name, e.g. RESOURCE_EXHAUSTED
	Message string
	Err     error // Backend error, if any
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("model returned %d %s: %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("model returned %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error { return e.Err }

// FatalError ends the whole run: retrying cannot help.
type FatalError struct {
	Kind    Kind
	Model   string
	Status  int
	Message string
	Err     error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s error from model %s: %s", e.Kind, e.Model, e.Message)
}

func (e *FatalError) Unwrap() error { return e.Err }

func (e *FatalError) Is(target error) bool {
	switch e.Kind {
	case KindAuth:
		return target == ErrModelAuth
	case KindQuota:
		return target == ErrModelQuota
	case KindModelMissing:
		return target == ErrModelNotFound
	}
	return false
}

// UnavailableError reports a transient failure that outlasted every retry.
type UnavailableError struct {
	Attempts int
	Model    string
	Cause    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("model %s unavailable after %d attempts: %v", e.Model, e.Attempts, e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

func (e *UnavailableError) Is(target error) bool { return target == ErrModelUnavailable }
