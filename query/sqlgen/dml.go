package sqlgen

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/satishbabariya/libsql-go/model"
	"github.com/satishbabariya/libsql-go/runtime/client"
	"github.com/satishbabariya/libsql-go/runtime/types"
)

// Insert builds an INSERT of the struct v (a struct or a pointer to one).
// An auto-increment key holding its zero value is left to the database.
func Insert(e *model.Entity, v reflect.Value) (client.Statement, error) {
	var (
		columns      []string
		placeholders []string
		args         []types.Value
	)
	for _, c := range e.Columns {
		fv := c.Value(v)
		if c.Key && c.AutoIncrement && fv.IsZero() {
			continue
		}
		arg, err := encodeColumn(e, c, fv)
		if err != nil {
			return client.Statement{}, err
		}
		columns = append(columns, quoteIdentifier(c.Name))
		placeholders = append(placeholders, "?")
		args = append(args, arg)
	}

	if len(columns) == 0 {
		return client.Statement{SQL: fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quoteIdentifier(e.Table))}, nil
	}
	return client.Statement{
		SQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdentifier(e.Table), strings.Join(columns, ", "), strings.Join(placeholders, ", ")),
		Args: args,
	}, nil
}

// Update builds an UPDATE of every non-key column of v, matched by key.
func Update(e *model.Entity, v reflect.Value) (client.Statement, error) {
	var (
		set  []string
		args []types.Value
	)
	for _, c := range e.Columns {
		if c.Key {
			continue
		}
		arg, err := encodeColumn(e, c, c.Value(v))
		if err != nil {
			return client.Statement{}, err
		}
		set = append(set, quoteIdentifier(c.Name)+" = ?")
		args = append(args, arg)
	}
	if len(set) == 0 {
		return client.Statement{}, fmt.Errorf("%w: %s has no columns besides its key", ErrUnsupportedQuery, e.Name)
	}

	key, err := encodeColumn(e, e.Key, e.Key.Value(v))
	if err != nil {
		return client.Statement{}, err
	}
	return client.Statement{
		SQL: fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
			quoteIdentifier(e.Table), strings.Join(set, ", "), quoteIdentifier(e.Key.Name)),
		Args: append(args, key),
	}, nil
}

// Delete builds a DELETE of the row whose key matches v's.
func Delete(e *model.Entity, v reflect.Value) (client.Statement, error) {
	key, err := encodeColumn(e, e.Key, e.Key.Value(v))
	if err != nil {
		return client.Statement{}, err
	}
	return client.Statement{
		SQL:  fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdentifier(e.Table), quoteIdentifier(e.Key.Name)),
		Args: []types.Value{key},
	}, nil
}

func encodeColumn(e *model.Entity, c *model.Column, fv reflect.Value) (types.Value, error) {
	v, err := types.Encode(fv.Interface())
	if err != nil {
		return types.Value{}, fmt.Errorf("%s.%s: %w", e.Name, c.Field, err)
	}
	return v, nil
}
