package transaction

import "errors"

var (
	// ErrDuplicateTransaction is returned when an identical request was
	// registered within the duplicate window.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrItemsAmountMismatch is returned when item totals do not reconcile
	// with the declared amount.
	ErrItemsAmountMismatch = errors.New("items total does not match transaction amount")

	// ErrInvalidPaymentPlan is returned for installment counts outside {2,3,4}.
	ErrInvalidPaymentPlan = errors.New("invalid payment plan")

	// ErrInvalidTransition is returned for a status transition not in the
	// state machine table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTransactionNotFound is returned when the transaction doesn't exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInstallmentNotFound is returned when the installment doesn't exist.
	ErrInstallmentNotFound = errors.New("installment not found")

	// ErrNotTransactionOwner is returned when a caller operates on another
	// user's transaction.
	ErrNotTransactionOwner = errors.New("transaction belongs to another user")

	// ErrInstallmentsAttempted is returned when cancelling an approved
	// transaction whose installments have already been processed.
	ErrInstallmentsAttempted = errors.New("installments already processed, cannot cancel")

	ErrInternal = errors.New("internal error")
)
