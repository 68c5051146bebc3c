package core

import (
	"errors"
	"fmt"
)

// ErrConcurrentModification is returned when an order row changed between read and write.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// ErrorKind classifies domain failures so adapters can map them to responses.
type ErrorKind string

const (
	KindValidation ErrorKind = "VALIDATION_ERROR"
	KindBusiness   ErrorKind = "BUSINESS_ERROR"
	KindNotFound   ErrorKind = "NOT_FOUND"
)

// ValidationError reports malformed or out-of-range input. It is always raised before any mutation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// BusinessError reports valid input that the current state does not allow.
type BusinessError struct {
	Message string
}

func (e *BusinessError) Error() string { return e.Message }

// NotFoundError reports an unknown entity id.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func businessErrorf(format string, args ...any) error {
	return &BusinessError{Message: fmt.Sprintf(format, args...)}
}

func notFound(entity string, id fmt.Stringer) error {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsBusiness(err error) bool {
	var b *BusinessError
	return errors.As(err, &b)
}

func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

// KindOf returns the domain kind of err, or "" for infrastructure failures.
func KindOf(err error) ErrorKind {
	switch {
	case IsValidation(err):
		return KindValidation
	case IsBusiness(err):
		return KindBusiness
	case IsNotFound(err):
		return KindNotFound
	}
	return ""
}
