package elastic

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/resilience"
)

type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "elastic status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("elastic %s status: %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("elastic %s status: %d: %s", e.Operation, e.StatusCode, strings.TrimSpace(e.Body))
}

func statusOf(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}

func classifyElasticError(err error) resilience.ErrorClassification {
	return resilience.ClassifyTransport(err, statusOf)
}
