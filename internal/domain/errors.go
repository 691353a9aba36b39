package domain

import "fmt"

// ResourceErrorKind classifies content loading failures.
type ResourceErrorKind int

const (
	ResourceNotFound ResourceErrorKind = iota + 1
	ResourceInvalidFormat
)

func (k ResourceErrorKind) String() string {
	switch k {
	case ResourceNotFound:
		return "not found"
	case ResourceInvalidFormat:
		return "invalid format"
	}
	return "unknown"
}

// ResourceError is returned by the resource provider. errors.Is matches on Kind.
type ResourceError struct {
	Kind     ResourceErrorKind
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	s := fmt.Sprintf("resource %s: %s", e.Resource, e.Kind)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ResourceError) Unwrap() error { return e.Err }

func (e *ResourceError) Is(target error) bool {
	t, ok := target.(*ResourceError)
	return ok && t.Kind == e.Kind && t.Resource == ""
}

// StateErrorKind classifies rejected session operations.
type StateErrorKind int

const (
	StateNoActiveSession StateErrorKind = iota + 1
	StateInvalidAnswer
	StateAlreadyAnswered
	// StateSuperseded is returned to a load that lost to a newer start or reset.
	StateSuperseded
)

func (k StateErrorKind) String() string {
	switch k {
	case StateNoActiveSession:
		return "no active session"
	case StateInvalidAnswer:
		return "invalid answer"
	case StateAlreadyAnswered:
		return "already answered"
	case StateSuperseded:
		return "superseded"
	}
	return "unknown"
}

// StateError is returned by the session state machine. errors.Is matches on Kind.
type StateError struct {
	Kind    StateErrorKind
	Message string
}

func (e *StateError) Error() string {
	if e.Message == "" {
		return "session: " + e.Kind.String()
	}
	return fmt.Sprintf("session: %s: %s", e.Kind, e.Message)
}

func (e *StateError) Is(target error) bool {
	t, ok := target.(*StateError)
	return ok && t.Kind == e.Kind && t.Message == ""
}

// PersistenceErrorKind classifies storage failures.
type PersistenceErrorKind int

const (
	PersistenceQuotaExceeded PersistenceErrorKind = iota + 1
	PersistenceSerializationFailure
)

func (k PersistenceErrorKind) String() string {
	switch k {
	case PersistenceQuotaExceeded:
		return "quota exceeded"
	case PersistenceSerializationFailure:
		return "serialization failure"
	}
	return "unknown"
}

// PersistenceError is returned by the store. errors.Is matches on Kind.
type PersistenceError struct {
	Kind PersistenceErrorKind
	Key  string
	Err  error
}

func (e *PersistenceError) Error() string {
	s := fmt.Sprintf("store %q: %s", e.Key, e.Kind)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool {
	t, ok := target.(*PersistenceError)
	return ok && t.Kind == e.Kind && t.Key == ""
}

var (
	// ErrNotFound matches any ResourceError of kind NotFound.
	ErrNotFound = &ResourceError{Kind: ResourceNotFound}
	// ErrInvalidFormat matches any ResourceError of kind InvalidFormat.
	ErrInvalidFormat = &ResourceError{Kind: ResourceInvalidFormat}

	// ErrNoActiveSession is returned when an operation needs a loaded quiz.
	ErrNoActiveSession = &StateError{Kind: StateNoActiveSession}
	// ErrInvalidAnswer is returned when an answer does not fit the question.
	ErrInvalidAnswer = &StateError{Kind: StateInvalidAnswer}
	// ErrAlreadyAnswered is returned on re-submission to an answered question.
	ErrAlreadyAnswered = &StateError{Kind: StateAlreadyAnswered}
	// ErrSuperseded is returned to a quiz load overtaken by a newer request.
	ErrSuperseded = &StateError{Kind: StateSuperseded}

	// ErrQuotaExceeded matches storage quota failures.
	ErrQuotaExceeded = &PersistenceError{Kind: PersistenceQuotaExceeded}
	// ErrSerialization matches JSON encode/decode failures in the store.
	ErrSerialization = &PersistenceError{Kind: PersistenceSerializationFailure}
)
