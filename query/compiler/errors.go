package compiler

import "errors"

var (
	ErrInvalidQuery = errors.New("invalid query")
	ErrUnknownModel = errors.New("unknown model")
)
