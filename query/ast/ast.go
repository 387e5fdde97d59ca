// Package ast defines the query AST (Abstract Syntax Tree).
package ast

import (
	"strings"
)

// Operation is the terminal operation of a query.
type Operation string

const (
	OpFindMany  Operation = "FindMany"
	OpFindFirst Operation = "FindFirst"
	OpCount     Operation = "Count"
	OpAggregate Operation = "Aggregate"
)

// Query is a read query over one entity, optionally extended with include
// steps that load related entities.
type Query struct {
	Model     string
	Operation Operation
	Where     *WhereClause
	OrderBy   []OrderByClause
	Skip      *int
	Take      *int
	// Include holds dotted navigation paths, e.g. "products" or
	// "author.books".
	Include   []string
	Select    []string
	Aggregate *AggregateClause
}

// WhereClause represents filtering conditions (can be nested)
type WhereClause struct {
	Conditions []Condition
	Groups     []*WhereClause
	Operator   LogicalOperator
	Not        bool
}

// Condition represents a single filter condition
type Condition struct {
	Field    string
	Operator ComparisonOperator
	Value    any
}

// ComparisonOperator represents comparison operators
type ComparisonOperator string

const (
	OpEquals         ComparisonOperator = "equals"
	OpNotEquals      ComparisonOperator = "not"
	OpGreaterThan    ComparisonOperator = "gt"
	OpLessThan       ComparisonOperator = "lt"
	OpGreaterOrEqual ComparisonOperator = "gte"
	OpLessOrEqual    ComparisonOperator = "lte"
	OpIn             ComparisonOperator = "in"
	OpNotIn          ComparisonOperator = "notIn"
	OpLike           ComparisonOperator = "like"
	OpContains       ComparisonOperator = "contains"
	OpStartsWith     ComparisonOperator = "startsWith"
	OpEndsWith       ComparisonOperator = "endsWith"
	OpIsNull         ComparisonOperator = "isNull"
	OpIsNotNull      ComparisonOperator = "isNotNull"
)

// LogicalOperator represents logical operators
type LogicalOperator string

const (
	OpAND LogicalOperator = "AND"
	OpOR  LogicalOperator = "OR"
)

// OrderByClause represents ordering
type OrderByClause struct {
	Field     string
	Direction SortDirection
}

// SortDirection represents sort direction
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// AggregateFunc is a single-value aggregate.
type AggregateFunc string

const (
	AggCount AggregateFunc = "COUNT"
	AggSum   AggregateFunc = "SUM"
	AggMin   AggregateFunc = "MIN"
	AggMax   AggregateFunc = "MAX"
	AggAvg   AggregateFunc = "AVG"
)

// AggregateClause selects the aggregate of an Aggregate query. An empty
// Field counts rows.
type AggregateClause struct {
	Func  AggregateFunc
	Field string
}

// IsEmpty returns true if the WHERE clause is empty
func (w *WhereClause) IsEmpty() bool {
	if w == nil {
		return true
	}
	if len(w.Conditions) > 0 {
		return false
	}
	for _, g := range w.Groups {
		if !g.IsEmpty() {
			return false
		}
	}
	return true
}

// And combines clauses with AND, skipping empty ones.
func And(clauses ...*WhereClause) *WhereClause {
	out := &WhereClause{Operator: OpAND}
	for _, c := range clauses {
		if !c.IsEmpty() {
			out.Groups = append(out.Groups, c)
		}
	}
	switch len(out.Groups) {
	case 0:
		return nil
	case 1:
		return out.Groups[0]
	}
	return out
}

// Fingerprint identifies the join layout of the query: its model and the
// include paths in order. Queries with equal fingerprints resolve to the
// same joins.
func (q *Query) Fingerprint() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(q.Model))
	for _, inc := range q.Include {
		b.WriteByte('|')
		b.WriteString(strings.ToLower(inc))
	}
	return b.String()
}

// Clone returns a deep copy of the query structure. Condition values are
// shared.
func (q *Query) Clone() *Query {
	if q == nil {
		return nil
	}
	c := *q
	c.Where = q.Where.clone()
	c.OrderBy = append([]OrderByClause(nil), q.OrderBy...)
	c.Include = append([]string(nil), q.Include...)
	c.Select = append([]string(nil), q.Select...)
	if q.Skip != nil {
		v := *q.Skip
		c.Skip = &v
	}
	if q.Take != nil {
		v := *q.Take
		c.Take = &v
	}
	if q.Aggregate != nil {
		a := *q.Aggregate
		c.Aggregate = &a
	}
	return &c
}

func (w *WhereClause) clone() *WhereClause {
	if w == nil {
		return nil
	}
	c := *w
	c.Conditions = append([]Condition(nil), w.Conditions...)
	c.Groups = make([]*WhereClause, len(w.Groups))
	for i, g := range w.Groups {
		c.Groups[i] = g.clone()
	}
	return &c
}
