package builder

import (
	"github.com/satishbabariya/libsql-go/query/ast"
)

// AND adds a group whose members are joined with AND
func (w *WhereBuilder) AND(builders ...*WhereBuilder) *WhereBuilder {
	return w.group(ast.OpAND, builders)
}

// OR adds a group whose members are joined with OR
func (w *WhereBuilder) OR(builders ...*WhereBuilder) *WhereBuilder {
	return w.group(ast.OpOR, builders)
}

func (w *WhereBuilder) group(op ast.LogicalOperator, builders []*WhereBuilder) *WhereBuilder {
	group := &ast.WhereClause{Operator: op}
	for _, b := range builders {
		if sub := b.Build(); !sub.IsEmpty() {
			group.Groups = append(group.Groups, sub)
		}
	}
	if len(group.Groups) > 0 {
		w.groups = append(w.groups, group)
	}
	return w
}

// NOT adds the negation of a clause
func (w *WhereBuilder) NOT(builder *WhereBuilder) *WhereBuilder {
	sub := builder.Build()
	if sub.IsEmpty() {
		return w
	}
	sub.Not = true
	w.groups = append(w.groups, sub)
	return w
}
