package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by every operation except Connect while no
	// session is open.
	ErrNotConnected = errors.New("datastore is not connected")

	// ErrAlreadyConnected is returned by Connect when a session is open.
	ErrAlreadyConnected = errors.New("datastore is already connected")

	// ErrUnsupported is returned for operations the backend cannot perform.
	ErrUnsupported = errors.New("operation not supported by this backend")

	// ErrTransactionActive is returned when starting a transaction while one is active.
	ErrTransactionActive = errors.New("transaction already active")

	// ErrNoTransaction is returned by commit/rollback when no transaction is active.
	ErrNoTransaction = errors.New("no active transaction")

	// ErrIndexConflict is returned when an index exists with different uniqueness.
	ErrIndexConflict = errors.New("index exists with conflicting uniqueness")

	// ErrFilterMismatch is returned when a filter for another backend is passed to Select.
	ErrFilterMismatch = errors.New("filter does not belong to this backend")

	// ErrDuplicate is returned when an insert violates a unique index.
	ErrDuplicate = errors.New("duplicate value for unique index")

	// ErrInvalidRecord is returned for records that cannot form a statement.
	ErrInvalidRecord = errors.New("invalid record")
)

// StoreError wraps a backend failure with the operation that produced it.
type StoreError struct {
	Driver     DriverType
	Op         string
	Collection string
	Err        error
}

// Error implements error.
func (e *StoreError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("%s %s %s: %v", e.Driver, e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Driver, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps err. A nil err yields nil.
func NewStoreError(driver DriverType, op, collection string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Driver: driver, Op: op, Collection: collection, Err: err}
}
