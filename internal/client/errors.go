package client

import (
	"errors"
	"fmt"
)

// ErrorKind tags every error returned by the upstream client so callers can map
// outcomes without string matching.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindNotFound: the geocoder had no match for the requested city. Terminal.
	KindNotFound
	// KindUpstream: non-2xx status, malformed payload, or exhausted retries.
	KindUpstream
	// KindTransport: timeout or network failure on a single attempt. Retried;
	// never returned from a public method.
	KindTransport
	// KindCircuitOpen: the breaker rejected the call without touching the network.
	KindCircuitOpen
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream_error"
	case KindTransport:
		return "transport"
	case KindCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

var (
	ErrCityNotFound    = errors.New("city not found")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrCircuitOpen     = errors.New("circuit breaker open")

	errMalformedResponse = errors.New("malformed response")
)

// Error is the tagged error returned by OpenMeteoClient.
type Error struct {
	Kind ErrorKind
	// Op is the upstream endpoint ("geocoding" or "forecast").
	Op string
	// City is set for KindNotFound.
	City string
	// StatusCode is set when the upstream answered with a non-2xx status.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return "City not found: " + e.City
	case KindCircuitOpen:
		return fmt.Sprintf("%s: circuit breaker open", e.Op)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream returned HTTP %d", e.Op, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the package sentinels by kind. Circuit-open and
// transport failures also match ErrUpstreamFailure: callers treat them the same.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrCityNotFound:
		return e.Kind == KindNotFound
	case ErrCircuitOpen:
		return e.Kind == KindCircuitOpen
	case ErrUpstreamFailure:
		return e.Kind == KindUpstream || e.Kind == KindCircuitOpen || e.Kind == KindTransport
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
