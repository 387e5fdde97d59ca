package executor

import "errors"

var (
	ErrColumnLayout = errors.New("result columns do not match the join layout")
	ErrMissingKey   = errors.New("joined row has a null key")
	ErrDecode       = errors.New("cannot decode column")
	ErrTypeMismatch = errors.New("entity type mismatch")
)
