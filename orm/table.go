package orm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/satishbabariya/libsql-go/model"
	"github.com/satishbabariya/libsql-go/query/ast"
	"github.com/satishbabariya/libsql-go/query/builder"
	"github.com/satishbabariya/libsql-go/query/sqlgen"
	"github.com/satishbabariya/libsql-go/runtime/client"
	"github.com/satishbabariya/libsql-go/runtime/types"
)

// Table is a query over the entity T. Every builder method returns a new
// Table and leaves the receiver unchanged, so partial queries can be shared.
type Table[T any] struct {
	db     *DB
	entity *model.Entity
	query  *builder.QueryBuilder
	err    error
}

// From starts a query over T. An invalid entity type is reported by the
// first terminal call.
func From[T any](db *DB) *Table[T] {
	e, err := model.Of[T](db.registry)
	if err != nil {
		return &Table[T]{db: db, err: err}
	}
	return &Table[T]{db: db, entity: e, query: builder.NewQueryBuilder(e.Name)}
}

// Entity returns the resolved entity of T, or nil when T is invalid.
func (t *Table[T]) Entity() *model.Entity { return t.entity }

func (t *Table[T]) with(fn func(q *builder.QueryBuilder)) *Table[T] {
	if t.err != nil {
		return t
	}
	c := *t
	c.query = t.query.Clone()
	fn(c.query)
	return &c
}

// Where ANDs the conditions of w into the filter.
func (t *Table[T]) Where(w *builder.WhereBuilder) *Table[T] {
	return t.WhereClause(w.Build())
}

// WhereClause ANDs a prebuilt clause into the filter.
func (t *Table[T]) WhereClause(c *ast.WhereClause) *Table[T] {
	return t.with(func(q *builder.QueryBuilder) { q.Where(c) })
}

// OrderBy appends an ascending ordering on field.
func (t *Table[T]) OrderBy(field string) *Table[T] {
	return t.with(func(q *builder.QueryBuilder) { q.OrderBy(field, ast.SortAsc) })
}

// OrderByDesc appends a descending ordering on field.
func (t *Table[T]) OrderByDesc(field string) *Table[T] {
	return t.with(func(q *builder.QueryBuilder) { q.OrderBy(field, ast.SortDesc) })
}

// Skip skips n base rows.
func (t *Table[T]) Skip(n int) *Table[T] {
	return t.with(func(q *builder.QueryBuilder) { q.Skip(n) })
}

// Take limits the result to n base rows.
func (t *Table[T]) Take(n int) *Table[T] {
	return t.with(func(q *builder.QueryBuilder) { q.Take(n) })
}

// Include loads the navigation at the dotted path.
func (t *Table[T]) Include(path string) *Table[T] {
	return t.with(func(q *builder.QueryBuilder) { q.Include(path) })
}

// Select restricts the loaded columns; unselected fields stay zero.
func (t *Table[T]) Select(fields ...string) *Table[T] {
	return t.with(func(q *builder.QueryBuilder) { q.Select(fields...) })
}

// ToList runs the query.
func (t *Table[T]) ToList(ctx context.Context) ([]*T, error) {
	return t.find(ctx, ast.OpFindMany)
}

// First returns the first match or ErrNotFound.
func (t *Table[T]) First(ctx context.Context) (*T, error) {
	v, err := t.FirstOrDefault(ctx)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%w in %s", ErrNotFound, t.entity.Table)
	}
	return v, nil
}

// FirstOrDefault returns the first match or nil.
func (t *Table[T]) FirstOrDefault(ctx context.Context) (*T, error) {
	list, err := t.find(ctx, ast.OpFindFirst)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

func (t *Table[T]) find(ctx context.Context, op ast.Operation) ([]*T, error) {
	if t.err != nil {
		return nil, t.err
	}
	values, err := t.db.executor.Find(ctx, t.entity, t.query.Build(op))
	if err != nil {
		return nil, err
	}
	return instances[T](values), nil
}

// Count returns the number of matching rows.
func (t *Table[T]) Count(ctx context.Context) (int64, error) {
	v, err := t.aggregate(ctx, ast.AggCount, "")
	if err != nil || v.IsNull() {
		return 0, err
	}
	return v.Int64()
}

// Sum returns the sum of field over the matching rows; zero when none match.
func (t *Table[T]) Sum(ctx context.Context, field string) (float64, error) {
	return t.number(ctx, ast.AggSum, field)
}

// Min returns the smallest numeric value of field.
func (t *Table[T]) Min(ctx context.Context, field string) (float64, error) {
	return t.number(ctx, ast.AggMin, field)
}

// Max returns the largest numeric value of field.
func (t *Table[T]) Max(ctx context.Context, field string) (float64, error) {
	return t.number(ctx, ast.AggMax, field)
}

// Avg returns the average of field.
func (t *Table[T]) Avg(ctx context.Context, field string) (float64, error) {
	return t.number(ctx, ast.AggAvg, field)
}

func (t *Table[T]) number(ctx context.Context, fn ast.AggregateFunc, field string) (float64, error) {
	v, err := t.aggregate(ctx, fn, field)
	if err != nil || v.IsNull() {
		return 0, err
	}
	f, err := v.Float64()
	if err != nil {
		return 0, fmt.Errorf("%s(%s): %w", fn, field, err)
	}
	return f, nil
}

func (t *Table[T]) aggregate(ctx context.Context, fn ast.AggregateFunc, field string) (types.Value, error) {
	if t.err != nil {
		return types.Value{}, t.err
	}
	return t.db.executor.Scalar(ctx, t.entity, t.query.Aggregate(fn, field))
}

// Insert writes v. A zero auto-increment key is assigned by the server and
// copied back into v.
func (t *Table[T]) Insert(ctx context.Context, v *T) error {
	if t.err != nil {
		return t.err
	}
	if v == nil {
		return fmt.Errorf("%w: insert into %s", ErrNilEntity, t.entity.Table)
	}
	rv := reflect.ValueOf(v)
	key := t.entity.Key.Value(rv)
	assign := t.entity.Key.AutoIncrement && key.IsZero()

	stmt, err := sqlgen.Insert(t.entity, rv)
	if err != nil {
		return err
	}
	rs, err := t.db.executor.Exec(ctx, stmt)
	if err != nil {
		return err
	}
	if !assign {
		return nil
	}

	id, ok := rs.LastInsertID()
	if !ok {
		return fmt.Errorf("%w: insert into %s", ErrNoKeyAssigned, t.entity.Table)
	}
	if key.CanInt() {
		key.SetInt(id)
	} else {
		key.SetUint(uint64(id))
	}
	return nil
}

// Update writes every non-key column of v to the row with v's key and
// returns the number of affected rows.
func (t *Table[T]) Update(ctx context.Context, v *T) (int64, error) {
	return t.write(ctx, v, sqlgen.Update)
}

// Delete removes the row with v's key and returns the number of affected
// rows.
func (t *Table[T]) Delete(ctx context.Context, v *T) (int64, error) {
	return t.write(ctx, v, sqlgen.Delete)
}

func (t *Table[T]) write(ctx context.Context, v *T, build func(*model.Entity, reflect.Value) (client.Statement, error)) (int64, error) {
	if t.err != nil {
		return 0, t.err
	}
	if v == nil {
		return 0, fmt.Errorf("%w: %s", ErrNilEntity, t.entity.Table)
	}
	stmt, err := build(t.entity, reflect.ValueOf(v))
	if err != nil {
		return 0, err
	}
	rs, err := t.db.executor.Exec(ctx, stmt)
	if err != nil {
		return 0, err
	}
	return rs.AffectedRowCount, nil
}

// Query runs raw SQL and maps its columns onto T by name. The builder state
// of t is ignored.
func (t *Table[T]) Query(ctx context.Context, sql string, args ...any) ([]*T, error) {
	if t.err != nil {
		return nil, t.err
	}
	stmt, err := client.NewStatement(sql, args...)
	if err != nil {
		return nil, err
	}
	values, err := t.db.executor.Raw(ctx, t.entity, stmt)
	if err != nil {
		return nil, err
	}
	return instances[T](values), nil
}

func instances[T any](values []reflect.Value) []*T {
	out := make([]*T, len(values))
	for i, v := range values {
		out[i] = v.Interface().(*T)
	}
	return out
}
