package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTemporary        = errors.New("temporary failure")
	ErrIndexUnavailable = errors.New("index unavailable")
	ErrUpstream         = errors.New("upstream model failure")
)

// errorKinds is ordered: the first matching kind names a wrapped error.
var errorKinds = []struct {
	kind error
	name string
}{
	{ErrInvalidInput, "invalid_input"},
	{ErrUnauthorized, "unauthorized"},
	{ErrNotFound, "not_found"},
	{ErrTemporary, "temporary"},
	{ErrIndexUnavailable, "index_unavailable"},
	{ErrUpstream, "upstream"},
}

// WrapError tags err with a kind and the operation that failed. The result
// reads "operation: kind: cause" and matches both kind and cause with errors.Is.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindName is a stable label for metrics and logs; untyped errors are "internal".
func KindName(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "internal"
}
