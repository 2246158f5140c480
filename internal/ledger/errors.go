package ledger

import (
	"errors"
	"fmt"
)

// Typed, recoverable failures surfaced to callers. None of these leave
// partial state behind.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrInvalidAmount     = errors.New("amount must be greater than 0")
	ErrOutOfStock        = errors.New("item out of stock")
	ErrItemNotFound      = errors.New("item not found")
	ErrTxNotFound        = errors.New("transaction not found")
	ErrSelfTransfer      = errors.New("cannot transfer to your own account")
	ErrConflict          = errors.New("account was modified concurrently")
)

// StorageError wraps an infrastructure-level fault from the underlying
// store. These are retried a bounded number of times before surfacing.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// retryable reports whether an operation may be attempted again. Conflicts
// under optimistic locking and transient storage faults qualify; validation
// and resource errors never do.
func retryable(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	var se *StorageError
	return errors.As(err, &se)
}
