// Package domain defines the catalog and sales records shared by the
// services, their validation rules and the error taxonomy every service
// maps to HTTP responses.
package domain

import (
	"context"
	"errors"
	"fmt"
)

// ValidationError reports bad caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// DuplicateIDError is returned when a product id is already taken.
type DuplicateIDError struct {
	ID int64
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("product id %d already in use", e.ID)
}

func (e *DuplicateIDError) Is(target error) bool {
	_, ok := target.(*DuplicateIDError)
	return ok
}

// ProductNotFoundError identifies the missing product either by id or, for
// sales, by name.
type ProductNotFoundError struct {
	ID   int64
	Name string
}

func (e *ProductNotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("product not found: name=%q", e.Name)
	}
	return fmt.Sprintf("product not found: id=%d", e.ID)
}

func (e *ProductNotFoundError) Is(target error) bool {
	_, ok := target.(*ProductNotFoundError)
	return ok
}

// InsufficientStockError carries the stock that was available when the sale
// was rejected.
type InsufficientStockError struct {
	Product   string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested=%d available=%d", e.Product, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	_, ok := target.(*InsufficientStockError)
	return ok
}

// ForbiddenError is returned when the caller's role may not perform Action.
type ForbiddenError struct {
	Role   string
	Action string
}

func (e *ForbiddenError) Error() string {
	role := e.Role
	if role == "" {
		role = "anonymous"
	}
	return fmt.Sprintf("role %s may not %s", role, e.Action)
}

func (e *ForbiddenError) Is(target error) bool {
	_, ok := target.(*ForbiddenError)
	return ok
}

// RemoteOperationError wraps a failure of the document store.
type RemoteOperationError struct {
	Op  string
	Err error
}

func (e *RemoteOperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteOperationError) Unwrap() error { return e.Err }

// Timeout reports whether the store call ran out of time or was cancelled.
func (e *RemoteOperationError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded) || errors.Is(e.Err, context.Canceled)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func NewRemoteOperationError(op string, err error) error {
	return &RemoteOperationError{Op: op, Err: err}
}

func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsDuplicateIDError(err error) bool {
	var e *DuplicateIDError
	return errors.As(err, &e)
}

func IsProductNotFoundError(err error) bool {
	var e *ProductNotFoundError
	return errors.As(err, &e)
}

func IsForbiddenError(err error) bool {
	var e *ForbiddenError
	return errors.As(err, &e)
}

func IsInsufficientStockError(err error) bool {
	var e *InsufficientStockError
	return errors.As(err, &e)
}
