package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("invalid input")
	ErrNotFound          = errors.New("product not found")
	ErrSaleNotFound      = errors.New("sale record not found")
	ErrOutOfStock        = errors.New("product out of stock")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStorage           = errors.New("storage failure")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InsufficientStockError is returned when a sale asks for more than is on
// hand and the caller has not agreed to a partial sale.
type InsufficientStockError struct {
	ProductID int64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %d: requested %d, only %d in stock", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// StorageError wraps a store failure so callers can match ErrStorage without
// depending on driver error types.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrStorage)
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// storageErr passes domain errors through untouched and wraps anything else.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}

	for _, domain := range []error{ErrValidation, ErrNotFound, ErrSaleNotFound, ErrOutOfStock, ErrInsufficientStock, ErrStorage} {
		if errors.Is(err, domain) {
			return err
		}
	}

	return &StorageError{Op: op, Err: err}
}
