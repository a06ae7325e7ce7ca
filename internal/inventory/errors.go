package inventory

import "errors"

var (
	ErrNoBatchAvailable  = errors.New("no unexpired batch with available stock")
	ErrInsufficientStock = errors.New("insufficient available stock")
	ErrBatchNotFound     = errors.New("batch not found")
	ErrBatchMismatch     = errors.New("batch does not belong to product")
	ErrBatchExpired      = errors.New("batch is expired")
	ErrReservation       = errors.New("reservation cannot be released")
	ErrProductInUse      = errors.New("product is used in transactions; deactivate it instead")
	ErrBatchInUse        = errors.New("batch is used in transactions")
)
