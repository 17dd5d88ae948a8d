package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// WrapErrorText is WrapError for cases without an underlying error value.
func WrapErrorText(kind error, operation, detail string) error {
	return fmt.Errorf("%s: %w: %s", operation, kind, detail)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
