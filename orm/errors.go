package orm

import "errors"

var (
	// ErrNotFound is returned by First when the query matches no row.
	ErrNotFound = errors.New("no matching row")
	// ErrNoTransactions is returned by Transaction when the executor cannot
	// open sessions, including inside a transaction.
	ErrNoTransactions = errors.New("executor does not support transactions")
	// ErrNoKeyAssigned is returned by Insert when the server reports no rowid
	// for an auto-increment key.
	ErrNoKeyAssigned = errors.New("server reported no last insert rowid")
	// ErrNilEntity is returned by Insert, Update and Delete for a nil value.
	ErrNilEntity = errors.New("nil entity value")
)
