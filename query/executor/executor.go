// Package executor executes compiled queries and maps results to structs.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/satishbabariya/libsql-go/internal/debug"
	"github.com/satishbabariya/libsql-go/model"
	"github.com/satishbabariya/libsql-go/query/ast"
	"github.com/satishbabariya/libsql-go/query/compiler"
	"github.com/satishbabariya/libsql-go/query/sqlgen"
	"github.com/satishbabariya/libsql-go/runtime/client"
	"github.com/satishbabariya/libsql-go/runtime/types"
)

// Executor executes queries and maps results
type Executor struct {
	exec         client.Executor
	compiler     *compiler.Compiler
	materializer *Materializer
	logger       *slog.Logger
}

// NewExecutor creates a query executor running statements on exec.
func NewExecutor(exec client.Executor, comp *compiler.Compiler, m *Materializer, logger *slog.Logger) *Executor {
	if m == nil {
		m = NewMaterializer(logger)
	}
	return &Executor{exec: exec, compiler: comp, materializer: m, logger: logger}
}

// WithExecutor returns a copy of e running statements on exec, typically a
// session holding a transaction.
func (e *Executor) WithExecutor(exec client.Executor) *Executor {
	c := *e
	c.exec = exec
	return &c
}

// Executor returns the underlying statement executor.
func (e *Executor) Executor() client.Executor { return e.exec }

// Compiler returns the query compiler.
func (e *Executor) Compiler() *compiler.Compiler { return e.compiler }

// Materializer returns the row materializer.
func (e *Executor) Materializer() *Materializer { return e.materializer }

// Find runs a FindMany or FindFirst query over base and returns the
// materialized roots.
func (e *Executor) Find(ctx context.Context, base *model.Entity, q *ast.Query) ([]reflect.Value, error) {
	plan, err := e.compiler.CompileFor(base, q)
	if err != nil {
		return nil, err
	}
	if plan.Scalar {
		return nil, fmt.Errorf("%w: %s is not a row query", sqlgen.ErrUnsupportedQuery, q.Operation)
	}

	rs, err := e.run(ctx, plan.Statement())
	if err != nil {
		return nil, err
	}
	return e.materializer.Materialize(base, rs.Cols, rs.Rows, plan.Joins)
}

// Scalar runs a Count or Aggregate query and returns its single value.
func (e *Executor) Scalar(ctx context.Context, base *model.Entity, q *ast.Query) (types.Value, error) {
	plan, err := e.compiler.CompileFor(base, q)
	if err != nil {
		return types.Value{}, err
	}
	if !plan.Scalar {
		return types.Value{}, fmt.Errorf("%w: %s is not a scalar query", sqlgen.ErrUnsupportedQuery, q.Operation)
	}
	return client.Scalar[types.Value](ctx, e.exec, plan.Statement())
}

// Raw runs sql and materializes its rows into base by column name.
func (e *Executor) Raw(ctx context.Context, base *model.Entity, stmt client.Statement) ([]reflect.Value, error) {
	rs, err := e.run(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return e.materializer.Materialize(base, rs.Cols, rs.Rows, nil)
}

// Exec runs a write statement and returns its result set.
func (e *Executor) Exec(ctx context.Context, stmt client.Statement) (*client.ResultSet, error) {
	return e.run(ctx, stmt)
}

func (e *Executor) run(ctx context.Context, stmt client.Statement) (*client.ResultSet, error) {
	debug.Or(e.logger).Debug("executing statement", "sql", stmt.SQL, "args", len(stmt.Args))
	resp, err := e.exec.Execute(ctx, stmt)
	if err != nil {
		return nil, err
	}
	rs := resp.Result(0)
	if rs == nil {
		return nil, &client.ClientError{
			Kind:         client.ErrMissingResults,
			Message:      "response has no result for the statement",
			Query:        stmt.SQL,
			RequestJSON:  resp.RequestJSON(),
			ResponseJSON: resp.ResponseJSON(),
		}
	}
	return rs, nil
}
