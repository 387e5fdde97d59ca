package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/libsql-go/query/ast"
)

func TestWhereBuilder(t *testing.T) {
	w := NewWhereBuilder().
		Equals("name", "Ada").
		GreaterOrEqual("age", 30).
		In("id", 1, 2, 3).
		IsNull("nickname").
		Build()

	require.NotNil(t, w)
	assert.Equal(t, ast.OpAND, w.Operator)
	assert.Equal(t, []ast.Condition{
		{Field: "name", Operator: ast.OpEquals, Value: "Ada"},
		{Field: "age", Operator: ast.OpGreaterOrEqual, Value: 30},
		{Field: "id", Operator: ast.OpIn, Value: []any{1, 2, 3}},
		{Field: "nickname", Operator: ast.OpIsNull},
	}, w.Conditions)
}

func TestWhereBuilderEmpty(t *testing.T) {
	assert.Nil(t, NewWhereBuilder().Build())
	assert.Nil(t, NewWhereBuilder().OR(NewWhereBuilder()).NOT(NewWhereBuilder()).Build())
}

func TestWhereBuilderGroups(t *testing.T) {
	w := NewWhereBuilder().
		Equals("active", true).
		OR(
			NewWhereBuilder().StartsWith("name", "A"),
			NewWhereBuilder().EndsWith("email", "@example.com"),
		).
		NOT(NewWhereBuilder().Contains("name", "bot")).
		Build()

	require.Len(t, w.Groups, 2)
	or := w.Groups[0]
	assert.Equal(t, ast.OpOR, or.Operator)
	require.Len(t, or.Groups, 2)
	assert.Equal(t, ast.OpStartsWith, or.Groups[0].Conditions[0].Operator)

	not := w.Groups[1]
	assert.True(t, not.Not)
	assert.Equal(t, "bot", not.Conditions[0].Value)
}

func TestQueryBuilder(t *testing.T) {
	base := NewQueryBuilder("Person").
		Where(NewWhereBuilder().GreaterThan("age", 18).Build()).
		OrderBy("name", ast.SortAsc).
		Include("products")

	paged := base.Clone().Skip(10).Take(5)
	q := paged.Build(ast.OpFindMany)
	require.NotNil(t, q.Skip)
	assert.Equal(t, 10, *q.Skip)
	assert.Equal(t, 5, *q.Take)
	assert.Nil(t, base.Build(ast.OpFindMany).Take, "clones are independent")

	count := base.Aggregate(ast.AggCount, "")
	assert.Equal(t, ast.OpCount, count.Operation)

	sum := base.Aggregate(ast.AggSum, "age")
	assert.Equal(t, ast.OpAggregate, sum.Operation)
	assert.Equal(t, &ast.AggregateClause{Func: ast.AggSum, Field: "age"}, sum.Aggregate)
	assert.Equal(t, "person|products", sum.Fingerprint())
}
