package core

import "errors"

// Sentinel errors for programmatic handling. Callers use errors.Is to
// distinguish caller mistakes (ErrInvalidOperator, ErrInvalidCursor) from
// absent data (ErrNotFound) and contractually unsupported operations
// (ErrNotImplemented).
var (
	ErrNotFound        = errors.New("object not found")
	ErrNotImplemented  = errors.New("operation not implemented")
	ErrInvalidOperator = errors.New("invalid filter operator")
	ErrInvalidCursor   = errors.New("invalid pagination cursor")
	ErrEmptyField      = errors.New("filter field cannot be empty")
)
