package introspect

import "errors"

var (
	ErrIntrospectionFailed = errors.New("database introspection failed")
	ErrInvalidIndexSQL     = errors.New("cannot parse index definition")
)
