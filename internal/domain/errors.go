package domain

import "errors"

// Error taxonomy for the penalty engine. Callers classify with errors.Is and
// map to API responses; the record is unchanged whenever one of these is
// returned from a decision, charge, or refund entry point.
var (
	ErrValidation    = errors.New("validation failed")
	ErrStateConflict = errors.New("state conflict")
	ErrNotFound      = errors.New("resource not found")
)
