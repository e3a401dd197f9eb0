package exchange

import "errors"

var (
	// ErrValidation rejects an operation before any state is touched.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals an unknown entity or an order that is no
	// longer cancellable.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientBalance rejects orders and withdrawals the owner
	// cannot fund.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrDuplicateUser rejects a username that is already registered.
	ErrDuplicateUser = errors.New("username already exists")
)
