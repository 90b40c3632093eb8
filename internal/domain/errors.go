package domain

import (
	"errors"
	"strings"
)

var (
	// ErrUnauthorized is returned when no valid session is present.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the caller may not act on a resource.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation marks input or oracle output that failed validation.
	ErrValidation = errors.New("validation failed")
	// ErrQuizNotFound indicates the quiz identifier does not resolve.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrUserNotFound indicates the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrInsufficientCredits is returned when a debit would overdraw a balance.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrQuizNotLive rejects submissions to draft or ended quizzes.
	ErrQuizNotLive = errors.New("quiz is not live")
	// ErrAlreadySubmitted rejects a second submission by the same participant.
	ErrAlreadySubmitted = errors.New("participant already submitted")
	// ErrInvalidTransition rejects lifecycle moves that are not defined.
	ErrInvalidTransition = errors.New("invalid quiz state transition")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("already exists")
	// ErrUpstream marks failures of the generation oracle.
	ErrUpstream = errors.New("upstream generation failed")
)

// ValidationError carries the individual problems found.
type ValidationError struct {
	Problems []string
}

func NewValidationError(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// UpstreamError wraps a failed oracle call.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return ErrUpstream.Error()
	}
	return ErrUpstream.Error() + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() []error { return []error{ErrUpstream, e.Err} }
