package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Structured errors below match these through errors.Is.
var (
	ErrNotFound                 = errors.New("not found")
	ErrValidation               = errors.New("validation failed")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrOverCapacity             = errors.New("checkin exceeds checked out quantity")
	ErrDuplicateCode            = errors.New("duplicate item code")
	ErrDuplicateRequest         = errors.New("duplicate request")
	ErrReferencedByTransactions = errors.New("item is referenced by transactions")
	ErrStorageFault             = errors.New("storage fault")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InsufficientStockError reports the availability observed when a checkout
// was refused.
type InsufficientStockError struct {
	ItemID    int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d: requested %d, available %d", e.ItemID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// OverCapacityError reports the largest checkin the item could accept.
type OverCapacityError struct {
	ItemID    int64
	Requested int
	Max       int
}

func (e *OverCapacityError) Error() string {
	return fmt.Sprintf("checkin of %d exceeds checked out quantity for item %d: at most %d can be checked in", e.Requested, e.ItemID, e.Max)
}

func (e *OverCapacityError) Is(target error) bool { return target == ErrOverCapacity }

// StorageError wraps a failure of the underlying datastore.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage fault during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorageFault }

func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsRetryable reports whether the caller may retry the operation unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageFault)
}
