package services

import (
	"errors"
	"fmt"

	"github.com/imzleep/abibuilder-sub000/internal/store"
)

var (
	// ErrAuthRequired is returned when an anonymous caller attempts an
	// action that needs an identity.
	ErrAuthRequired = errors.New("authentication required")

	// ErrUnauthorized is returned when the caller lacks the role or
	// ownership an action needs. It carries no detail about the resource.
	ErrUnauthorized = errors.New("not permitted")

	ErrNotFound = store.ErrNotFound
	ErrConflict = store.ErrConflict
)

// ValidationError reports a missing or malformed submission field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// StoreError wraps an unexpected failure of the backing store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// storeErr passes sentinel store errors through and wraps everything else.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
