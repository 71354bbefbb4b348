package core

import "errors"

// Request-scoped failures. Callers wrap these with detail via fmt.Errorf and
// test for them with errors.Is. None of them leaves session state modified.
var (
	ErrUnsupportedFormat          = errors.New("unsupported file format")
	ErrEmptyFile                  = errors.New("empty file")
	ErrParse                      = errors.New("parse error")
	ErrNoActiveSession            = errors.New("no active session")
	ErrColumnNotFound             = errors.New("column not found")
	ErrInvalidColumns             = errors.New("invalid columns")
	ErrInvalidStrategy            = errors.New("invalid strategy")
	ErrInvalidOperator            = errors.New("invalid operator")
	ErrUnsupportedOperatorForType = errors.New("operator not supported for column type")
	ErrTypeCoercion               = errors.New("type coercion error")
	ErrSerialization              = errors.New("serialization error")
	ErrFileTooLarge               = errors.New("file too large")
	ErrInvalidRequest             = errors.New("invalid request")
)
