package client

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURL  = errors.New("invalid database url")
	ErrSessionBusy = errors.New("session already has a pipeline call in flight")

	ErrMalformedResponse = errors.New("malformed pipeline response")
	ErrMissingResults    = errors.New("pipeline response has no results")
	ErrNoRows            = errors.New("query returned no rows")
	ErrNoColumns         = errors.New("query result has no columns")
	ErrNullValue         = errors.New("scalar value is null")
	ErrInvalidValue      = errors.New("scalar value cannot be decoded")
)

// TransportError reports an HTTP exchange that failed or returned a
// non-success status.
type TransportError struct {
	Op           string
	StatusCode   int
	RequestBody  []byte
	ResponseBody []byte
	Err          error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, truncate(e.ResponseBody, 512))
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ClientError reports a response that could not be turned into the expected
// shape. Kind is one of the Err* sentinels and matches with errors.Is.
type ClientError struct {
	Kind         error
	Message      string
	Query        string
	RequestJSON  []byte
	ResponseJSON []byte
	Err          error
}

func (e *ClientError) Error() string {
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Query != "" {
		msg = fmt.Sprintf("%s (query: %s)", msg, e.Query)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ClientError) Is(target error) bool { return e.Kind != nil && target == e.Kind }

func (e *ClientError) Unwrap() error { return e.Err }

// QueryError reports the first statement of a batch the server rejected.
// Index is the position of the statement in the caller's input.
type QueryError struct {
	Index   int
	SQL     string
	Message string
	Code    string
}

func (e *QueryError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("statement %d failed [%s]: %s (sql: %s)", e.Index, e.Code, e.Message, e.SQL)
	}
	return fmt.Sprintf("statement %d failed: %s (sql: %s)", e.Index, e.Message, e.SQL)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
