package client

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalar(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.Execute(ctx,
		Statement{SQL: "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT, score REAL)"},
		MustStatement("INSERT INTO t (name, score) VALUES (?, ?)", "ada", nil),
	)
	require.NoError(t, err)

	t.Run("integer", func(t *testing.T) {
		n, err := Scalar[int](ctx, c, Statement{SQL: "SELECT COUNT(*) FROM t"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("text", func(t *testing.T) {
		s, err := Scalar[string](ctx, c, Statement{SQL: "SELECT name FROM t"})
		require.NoError(t, err)
		assert.Equal(t, "ada", s)
	})

	t.Run("null is zero for numbers", func(t *testing.T) {
		f, err := Scalar[float64](ctx, c, Statement{SQL: "SELECT score FROM t"})
		require.NoError(t, err)
		assert.Equal(t, 0.0, f)
	})

	t.Run("null is nil for pointers", func(t *testing.T) {
		p, err := Scalar[*float64](ctx, c, Statement{SQL: "SELECT score FROM t"})
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("null string", func(t *testing.T) {
		_, err := Scalar[string](ctx, c, Statement{SQL: "SELECT NULL"})
		assert.ErrorIs(t, err, ErrNullValue)
	})

	t.Run("no rows", func(t *testing.T) {
		_, err := Scalar[int](ctx, c, Statement{SQL: "SELECT id FROM t WHERE id = 42"})
		assert.ErrorIs(t, err, ErrNoRows)
		assert.NotErrorIs(t, err, ErrNoColumns)

		var ce *ClientError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "SELECT id FROM t WHERE id = 42", ce.Query)
		assert.NotEmpty(t, ce.ResponseJSON)
	})

	t.Run("mismatched type", func(t *testing.T) {
		_, err := Scalar[int](ctx, c, Statement{SQL: "SELECT name FROM t"})
		assert.ErrorIs(t, err, ErrInvalidValue)
	})
}

func TestScalarNoColumns(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Intercept(func(w http.ResponseWriter, r *http.Request, body []byte) bool {
		_, _ = io.WriteString(w, `{"baton":null,"results":[`+
			`{"type":"ok","response":{"type":"execute","result":{"cols":[],"rows":[[]]}}},`+
			`{"type":"ok","response":{"type":"close"}}]}`)
		return true
	})

	_, err := Scalar[int](context.Background(), c, Statement{SQL: "SELECT"})
	assert.ErrorIs(t, err, ErrNoColumns)
	assert.NotErrorIs(t, err, ErrNoRows)
}
