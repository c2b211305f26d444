package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies completion failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindBadRequest
	KindRateLimited
	KindEmptyResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindRateLimited:
		return "rate_limited"
	case KindEmptyResponse:
		return "empty_response"
	default:
		return "unknown"
	}
}

var (
	ErrMissingCredential = errors.New("api key is not configured")

	// Kind sentinels, matched by *Error through errors.Is.
	ErrBadRequest    = errors.New("bad request")
	ErrRateLimited   = errors.New("rate limited")
	ErrEmptyResponse = errors.New("empty response from model")
	ErrUnknown       = errors.New("completion failed")
)

// Error is a classified completion failure. Message keeps the raw
// diagnostic returned by the service.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrBadRequest:
		return e.Kind == KindBadRequest
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrEmptyResponse:
		return e.Kind == KindEmptyResponse
	case ErrUnknown:
		return e.Kind == KindUnknown
	}
	return false
}

// KindOf returns the classification of err, KindUnknown for unclassified errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
