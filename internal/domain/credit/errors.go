package credit

import "errors"

var (
	// ErrInsufficientCredit is returned when a debit would push available
	// credit below zero.
	ErrInsufficientCredit = errors.New("insufficient credit")

	// ErrLimitExceeded is returned when a restoration would push available
	// credit above the credit limit.
	ErrLimitExceeded = errors.New("restoration exceeds credit limit")

	// ErrInvalidAmount is returned when amount is <= 0
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrUserNotFound is returned when user doesn't exist
	ErrUserNotFound = errors.New("user not found")

	ErrInternal = errors.New("internal error")
)
