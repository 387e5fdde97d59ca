package sqlgen

import "errors"

var (
	ErrUnsupportedQuery = errors.New("unsupported query")
	ErrUnknownField     = errors.New("unknown field")
	ErrInvalidCondition = errors.New("invalid condition")
)
