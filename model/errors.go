package model

import "errors"

var (
	ErrNotStruct            = errors.New("entity type must be a struct")
	ErrNoPrimaryKey         = errors.New("entity has no key column")
	ErrMultiplePrimaryKeys  = errors.New("entity has more than one key column")
	ErrNavigationNotPointer = errors.New("navigation must be *T or []*T")
	ErrUnsupportedField     = errors.New("field type cannot be mapped to a column")
	ErrInvalidTag           = errors.New("invalid libsql tag")
	ErrUnknownEntity        = errors.New("unknown entity")
	ErrUnknownNavigation    = errors.New("unknown navigation")
	ErrNoForeignKey         = errors.New("no foreign key links the entities")
	ErrAutoIncludeCycle     = errors.New("auto-include cycle")
)
