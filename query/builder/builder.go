// Package builder provides a fluent query builder API over the query AST.
package builder

import (
	"github.com/satishbabariya/libsql-go/query/ast"
)

// WhereBuilder builds WHERE clauses
type WhereBuilder struct {
	conditions []ast.Condition
	groups     []*ast.WhereClause
	operator   ast.LogicalOperator
}

// NewWhereBuilder creates a new WHERE builder
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{operator: ast.OpAND}
}

func (w *WhereBuilder) add(field string, op ast.ComparisonOperator, value any) *WhereBuilder {
	w.conditions = append(w.conditions, ast.Condition{Field: field, Operator: op, Value: value})
	return w
}

// Equals adds an equality condition. A nil value compiles to IS NULL.
func (w *WhereBuilder) Equals(field string, value any) *WhereBuilder {
	return w.add(field, ast.OpEquals, value)
}

// NotEquals adds a not-equals condition
func (w *WhereBuilder) NotEquals(field string, value any) *WhereBuilder {
	return w.add(field, ast.OpNotEquals, value)
}

// GreaterThan adds a greater-than condition
func (w *WhereBuilder) GreaterThan(field string, value any) *WhereBuilder {
	return w.add(field, ast.OpGreaterThan, value)
}

// LessThan adds a less-than condition
func (w *WhereBuilder) LessThan(field string, value any) *WhereBuilder {
	return w.add(field, ast.OpLessThan, value)
}

// GreaterOrEqual adds a greater-than-or-equal condition
func (w *WhereBuilder) GreaterOrEqual(field string, value any) *WhereBuilder {
	return w.add(field, ast.OpGreaterOrEqual, value)
}

// LessOrEqual adds a less-than-or-equal condition
func (w *WhereBuilder) LessOrEqual(field string, value any) *WhereBuilder {
	return w.add(field, ast.OpLessOrEqual, value)
}

// In adds an IN condition
func (w *WhereBuilder) In(field string, values ...any) *WhereBuilder {
	return w.add(field, ast.OpIn, values)
}

// NotIn adds a NOT IN condition
func (w *WhereBuilder) NotIn(field string, values ...any) *WhereBuilder {
	return w.add(field, ast.OpNotIn, values)
}

// Like adds a LIKE condition with a raw pattern
func (w *WhereBuilder) Like(field string, pattern string) *WhereBuilder {
	return w.add(field, ast.OpLike, pattern)
}

// Contains matches values containing s
func (w *WhereBuilder) Contains(field string, s string) *WhereBuilder {
	return w.add(field, ast.OpContains, s)
}

// StartsWith matches values starting with s
func (w *WhereBuilder) StartsWith(field string, s string) *WhereBuilder {
	return w.add(field, ast.OpStartsWith, s)
}

// EndsWith matches values ending with s
func (w *WhereBuilder) EndsWith(field string, s string) *WhereBuilder {
	return w.add(field, ast.OpEndsWith, s)
}

// IsNull adds an IS NULL condition
func (w *WhereBuilder) IsNull(field string) *WhereBuilder {
	return w.add(field, ast.OpIsNull, nil)
}

// IsNotNull adds an IS NOT NULL condition
func (w *WhereBuilder) IsNotNull(field string) *WhereBuilder {
	return w.add(field, ast.OpIsNotNull, nil)
}

// UseOr joins the top-level conditions with OR instead of AND
func (w *WhereBuilder) UseOr() *WhereBuilder {
	w.operator = ast.OpOR
	return w
}

// Build returns the clause, or nil when nothing was added
func (w *WhereBuilder) Build() *ast.WhereClause {
	if w == nil || (len(w.conditions) == 0 && len(w.groups) == 0) {
		return nil
	}
	return &ast.WhereClause{
		Conditions: append([]ast.Condition(nil), w.conditions...),
		Groups:     append([]*ast.WhereClause(nil), w.groups...),
		Operator:   w.operator,
	}
}

// QueryBuilder builds read queries
type QueryBuilder struct {
	query ast.Query
}

// NewQueryBuilder creates a FindMany query over model
func NewQueryBuilder(model string) *QueryBuilder {
	return &QueryBuilder{query: ast.Query{Model: model, Operation: ast.OpFindMany}}
}

// Clone returns an independent copy of the builder
func (q *QueryBuilder) Clone() *QueryBuilder {
	return &QueryBuilder{query: *q.query.Clone()}
}

// Where ANDs a clause into the filter
func (q *QueryBuilder) Where(where *ast.WhereClause) *QueryBuilder {
	q.query.Where = ast.And(q.query.Where, where)
	return q
}

// OrderBy appends an ordering
func (q *QueryBuilder) OrderBy(field string, direction ast.SortDirection) *QueryBuilder {
	q.query.OrderBy = append(q.query.OrderBy, ast.OrderByClause{Field: field, Direction: direction})
	return q
}

// Skip sets the number of base rows to skip
func (q *QueryBuilder) Skip(n int) *QueryBuilder {
	q.query.Skip = &n
	return q
}

// Take sets the maximum number of base rows
func (q *QueryBuilder) Take(n int) *QueryBuilder {
	q.query.Take = &n
	return q
}

// Include appends a dotted navigation path
func (q *QueryBuilder) Include(path string) *QueryBuilder {
	q.query.Include = append(q.query.Include, path)
	return q
}

// Select restricts the selected base columns
func (q *QueryBuilder) Select(fields ...string) *QueryBuilder {
	q.query.Select = append(q.query.Select, fields...)
	return q
}

// Build returns a copy of the query with the given operation
func (q *QueryBuilder) Build(op ast.Operation) *ast.Query {
	out := q.query.Clone()
	out.Operation = op
	return out
}

// Aggregate returns a copy of the query computing fn over field
func (q *QueryBuilder) Aggregate(fn ast.AggregateFunc, field string) *ast.Query {
	out := q.Build(ast.OpAggregate)
	if fn == ast.AggCount && field == "" {
		out.Operation = ast.OpCount
	}
	out.Aggregate = &ast.AggregateClause{Func: fn, Field: field}
	return out
}
