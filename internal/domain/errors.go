package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrInvalidAmount   = errors.New("repayment amount exceeds outstanding balance")
	ErrVersionConflict = errors.New("optimistic lock conflict")
)
