package types

import "errors"

var (
	ErrUnsupportedType = errors.New("unsupported type")
	ErrTypeMismatch    = errors.New("wire value does not match target type")
	ErrInvalidValue    = errors.New("invalid wire value")
	ErrVectorSize      = errors.New("vector size mismatch")
)
