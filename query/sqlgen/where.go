package sqlgen

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/satishbabariya/libsql-go/query/ast"
	"github.com/satishbabariya/libsql-go/runtime/types"
)

var comparisons = map[ast.ComparisonOperator]string{
	ast.OpEquals:         "=",
	ast.OpNotEquals:      "!=",
	ast.OpGreaterThan:    ">",
	ast.OpLessThan:       "<",
	ast.OpGreaterOrEqual: ">=",
	ast.OpLessOrEqual:    "<=",
}

// where builds a WHERE expression with support for nested groups.
func (g *generator) where(w *ast.WhereClause) (string, error) {
	if w.IsEmpty() {
		return "", nil
	}

	var parts []string
	for _, cond := range w.Conditions {
		sql, err := g.condition(cond)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	for _, group := range w.Groups {
		sql, err := g.where(group)
		if err != nil {
			return "", err
		}
		if sql != "" {
			parts = append(parts, "("+sql+")")
		}
	}

	op := " AND "
	if strings.EqualFold(string(w.Operator), string(ast.OpOR)) {
		op = " OR "
	}
	result := strings.Join(parts, op)
	if w.Not {
		result = "NOT (" + result + ")"
	}
	return result, nil
}

func (g *generator) condition(cond ast.Condition) (string, error) {
	field, err := g.field(cond.Field)
	if err != nil {
		return "", err
	}

	switch cond.Operator {
	case ast.OpEquals, ast.OpNotEquals, ast.OpGreaterThan, ast.OpLessThan, ast.OpGreaterOrEqual, ast.OpLessOrEqual:
		v, err := g.value(cond)
		if err != nil {
			return "", err
		}
		if v.IsNull() {
			switch cond.Operator {
			case ast.OpEquals:
				return field + " IS NULL", nil
			case ast.OpNotEquals:
				return field + " IS NOT NULL", nil
			}
			return "", fmt.Errorf("%w: %s on %s with a null value", ErrInvalidCondition, cond.Operator, cond.Field)
		}
		return fmt.Sprintf("%s %s %s", field, comparisons[cond.Operator], g.bind(v)), nil

	case ast.OpIn, ast.OpNotIn:
		return g.in(field, cond)

	case ast.OpLike:
		v, err := g.value(cond)
		if err != nil {
			return "", err
		}
		return field + " LIKE " + g.bind(v), nil

	case ast.OpContains, ast.OpStartsWith, ast.OpEndsWith:
		s, ok := cond.Value.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s on %s needs a string, got %T", ErrInvalidCondition, cond.Operator, cond.Field, cond.Value)
		}
		pattern := escapeLike(s)
		switch cond.Operator {
		case ast.OpContains:
			pattern = "%" + pattern + "%"
		case ast.OpStartsWith:
			pattern += "%"
		default:
			pattern = "%" + pattern
		}
		return field + " LIKE " + g.bind(types.Text(pattern)) + ` ESCAPE '\'`, nil

	case ast.OpIsNull:
		return field + " IS NULL", nil
	case ast.OpIsNotNull:
		return field + " IS NOT NULL", nil
	}
	return "", fmt.Errorf("%w: operator %q", ErrInvalidCondition, cond.Operator)
}

func (g *generator) in(field string, cond ast.Condition) (string, error) {
	rv := reflect.ValueOf(cond.Value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return "", fmt.Errorf("%w: %s on %s needs a list, got %T", ErrInvalidCondition, cond.Operator, cond.Field, cond.Value)
	}
	if rv.Len() == 0 {
		// An empty list matches nothing, and its negation everything.
		if cond.Operator == ast.OpIn {
			return "0", nil
		}
		return "1", nil
	}

	placeholders := make([]string, rv.Len())
	for i := range placeholders {
		v, err := types.Encode(rv.Index(i).Interface())
		if err != nil {
			return "", fmt.Errorf("%s item %d: %w", cond.Field, i, err)
		}
		placeholders[i] = g.bind(v)
	}
	op := " IN "
	if cond.Operator == ast.OpNotIn {
		op = " NOT IN "
	}
	return field + op + "(" + strings.Join(placeholders, ", ") + ")", nil
}

func (g *generator) value(cond ast.Condition) (types.Value, error) {
	v, err := types.Encode(cond.Value)
	if err != nil {
		return types.Value{}, fmt.Errorf("%s: %w", cond.Field, err)
	}
	return v, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
