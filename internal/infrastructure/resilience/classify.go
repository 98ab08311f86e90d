package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// ClassifyTransport is the shared policy for HTTP-backed dependencies:
// cancellation is neither retried nor counted, network errors and retryable
// statuses are both, everything else only counts against the breaker.
func ClassifyTransport(err error, statusCode func(error) (int, bool)) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if IsCircuitOpen(err) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if statusCode != nil {
		if code, ok := statusCode(err); ok {
			if IsRetryableHTTPStatus(code) {
				return ErrorClassification{Retryable: true, RecordFailure: true}
			}
			return ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return ErrorClassification{Retryable: false, RecordFailure: true}
}

func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
