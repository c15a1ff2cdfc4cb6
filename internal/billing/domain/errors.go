package billing

import "errors"

var (
	// ErrInvalidConfiguration is returned for an unrecognised frequency or malformed obligation.
	ErrInvalidConfiguration = errors.New("billing: invalid configuration")
	// ErrInvalidInput is returned for negative amounts, missing dates or malformed history.
	ErrInvalidInput = errors.New("billing: invalid input")
	// ErrResolutionGap marks a metadata lookup that returned nothing. It never aborts a document.
	ErrResolutionGap = errors.New("billing: resolution gap")
	// ErrPersistence wraps failures surfaced by a storage collaborator.
	ErrPersistence = errors.New("billing: persistence failure")
	// ErrBillNotFound is returned when a bill does not exist.
	ErrBillNotFound = errors.New("billing: bill not found")
	// ErrNilBill is returned when saving a nil bill.
	ErrNilBill = errors.New("billing: nil bill")
	// ErrDuplicateBill is returned when a bill number is already taken.
	ErrDuplicateBill = errors.New("billing: duplicate bill")
	// ErrStatusTransition is returned when a terminal payment status is changed.
	ErrStatusTransition = errors.New("billing: invalid status transition")
)
