package client

import (
	"context"
	"reflect"

	"github.com/satishbabariya/libsql-go/runtime/types"
)

// Scalar runs stmt and decodes the first column of its only row.
//
// Zero rows fail with ErrNoRows and a first row without cells with
// ErrNoColumns. Null decodes to zero for numeric and pointer T and fails with
// ErrNullValue otherwise.
func Scalar[T any](ctx context.Context, exec Executor, stmt Statement) (T, error) {
	var zero T

	resp, err := exec.Execute(ctx, stmt)
	if err != nil {
		return zero, err
	}

	clientErr := func(kind error, msg string, cause error) error {
		return &ClientError{
			Kind:         kind,
			Message:      msg,
			Query:        stmt.SQL,
			RequestJSON:  resp.RequestJSON(),
			ResponseJSON: resp.ResponseJSON(),
			Err:          cause,
		}
	}

	rs := resp.Result(0)
	if rs == nil {
		return zero, clientErr(ErrMissingResults, "response has no result for the scalar query", nil)
	}
	if len(rs.Rows) == 0 {
		return zero, clientErr(ErrNoRows, "query returned no rows, cannot execute scalar", nil)
	}
	if len(rs.Cols) == 0 || len(rs.Rows[0]) == 0 {
		return zero, clientErr(ErrNoColumns, "query result has no columns or first row has no cells, cannot execute scalar", nil)
	}

	v := rs.Rows[0][0]
	if v.IsNull() && !nullable(reflect.TypeOf(&zero).Elem()) {
		return zero, clientErr(ErrNullValue, "scalar query returned null", nil)
	}

	out, err := types.DecodeAs[T](v, types.ParseDeclType(rs.Cols[0].DeclType))
	if err != nil {
		return zero, clientErr(ErrInvalidValue, "cannot decode scalar value", err)
	}
	return out, nil
}

// nullable reports whether Null has a meaningful decoding for t.
func nullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return t == reflect.TypeOf(types.Value{})
}
