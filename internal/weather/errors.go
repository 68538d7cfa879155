package weather

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a terminal or transient fetch failure.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindUnauthorized ErrorKind = "unauthorized"
	KindRateLimited  ErrorKind = "rate_limited"
	KindTimeout      ErrorKind = "timeout"
	KindMalformed    ErrorKind = "malformed"
	KindUnknown      ErrorKind = "unknown"
)

// FetchError is the normalized failure surfaced by the orchestrator. CanRetry
// is false only for local validation failures; every other terminal error may
// be re-triggered manually.
type FetchError struct {
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	CanRetry bool      `json:"canRetry"`
}

func (e *FetchError) Error() string {
	return e.Message
}

// Retryable reports whether the orchestrator may retry this failure
// automatically. NotFound and Unauthorized are terminal.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindTimeout, KindMalformed, KindUnknown:
		return true
	default:
		return false
	}
}

// StatusError is a raw non-2xx response from the upstream, carried up for
// classification by the orchestrator.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %s", e.Status)
}

var (
	// ErrSuperseded is returned by a fetch sequence that lost its right to a
	// result because a newer fetch started before it reached a terminal state.
	ErrSuperseded = errors.New("fetch superseded by a newer query")

	// ErrMalformedPayload marks an upstream body that is missing required fields.
	ErrMalformedPayload = errors.New("invalid weather data received")

	// ErrNoResult marks a reverse geocoding lookup that returned zero places.
	ErrNoResult = errors.New("no city found for these coordinates")
)
