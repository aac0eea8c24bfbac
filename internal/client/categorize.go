package client

import (
	"context"
	"errors"
)

// Outcome labels used by weatherQueriesTotal and upstreamCallsTotal.
const (
	OutcomeSuccess       = "success"
	OutcomeNotFound      = "not_found"
	OutcomeUpstreamError = "upstream_error"
	OutcomeCircuitOpen   = "circuit_open"
	OutcomeTimeout       = "timeout"
	OutcomeUnknown       = "unknown"
)

// CategorizeError maps an error to a stable outcome label for metrics.
func CategorizeError(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	switch KindOf(err) {
	case KindNotFound:
		return OutcomeNotFound
	case KindCircuitOpen:
		return OutcomeCircuitOpen
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	if KindOf(err) == KindUpstream || KindOf(err) == KindTransport {
		return OutcomeUpstreamError
	}
	return OutcomeUnknown
}

// statusLabel buckets an HTTP status for upstream call metrics.
func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
