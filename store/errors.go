package store

import (
	"strconv"

	"github.com/agilira/go-errors"
)

// Error codes for store operations. The server maps these to wire status
// codes; nothing in this package logs or panics on them.
const (
	// ErrCodeInvalidArgument — nil/empty key or value, capacity outside
	// [1, 2^32-1], or negative TTL.
	ErrCodeInvalidArgument errors.ErrorCode = "CREAM_INVALID_ARGUMENT"
	// ErrCodeStoreFull — every slot is Live and the insert was not forced.
	ErrCodeStoreFull errors.ErrorCode = "CREAM_STORE_FULL"
	// ErrCodeKeyNotFound — Get on an absent (or expired) key.
	ErrCodeKeyNotFound errors.ErrorCode = "CREAM_KEY_NOT_FOUND"
	// ErrCodeStoreInvalidated — the store was invalidated; all operations fail.
	ErrCodeStoreInvalidated errors.ErrorCode = "CREAM_STORE_INVALIDATED"
)

const (
	msgInvalidArgument  = "invalid argument"
	msgStoreFull        = "store is full and the insert was not forced"
	msgKeyNotFound      = "key not found"
	msgStoreInvalidated = "store has been invalidated"
)

func errInvalidArgument(op, what string) error {
	return errors.NewWithField(ErrCodeInvalidArgument, msgInvalidArgument, "op", op+": "+what)
}

func errStoreFull(capacity int) error {
	return errors.NewWithField(ErrCodeStoreFull, msgStoreFull, "capacity", strconv.Itoa(capacity)).
		AsRetryable() // entries expire; a later insert may succeed
}

func errKeyNotFound() error {
	return errors.New(ErrCodeKeyNotFound, msgKeyNotFound)
}

func errStoreInvalidated() error {
	return errors.New(ErrCodeStoreInvalidated, msgStoreInvalidated)
}

// IsNotFound reports whether err is a key-not-found error.
func IsNotFound(err error) bool { return errors.HasCode(err, ErrCodeKeyNotFound) }

// IsStoreFull reports whether err is a store-full error.
func IsStoreFull(err error) bool { return errors.HasCode(err, ErrCodeStoreFull) }

// IsInvalidArgument reports whether err is an invalid-argument error.
func IsInvalidArgument(err error) bool { return errors.HasCode(err, ErrCodeInvalidArgument) }

// IsInvalidated reports whether err came from an invalidated store.
func IsInvalidated(err error) bool { return errors.HasCode(err, ErrCodeStoreInvalidated) }
