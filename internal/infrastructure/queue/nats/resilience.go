package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/resilience"
)

// Connection-level failures that a reconnect can heal.
var transientNATSErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrConnectionReconnecting,
	nats.ErrNoResponders,
}

func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), isTransient(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		// Bad subject, oversized payload and similar are caller bugs.
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func isTransient(err error) bool {
	for _, target := range transientNATSErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// wrapTemporaryIfNeeded marks a failed publish as ErrTemporary so the upload
// endpoint answers 503 and the client can retry the upload.
func wrapTemporaryIfNeeded(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "publish corpus event", err)
	}
	return err
}
