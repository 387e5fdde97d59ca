// Package sqlgen generates SQLite SQL for entity queries and writes.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/libsql-go/model"
	"github.com/satishbabariya/libsql-go/query/ast"
	"github.com/satishbabariya/libsql-go/runtime/client"
	"github.com/satishbabariya/libsql-go/runtime/types"
)

// PlanJoin is one LEFT JOIN of a plan. Segment 0 is the base entity and
// join i fills segment i+1.
type PlanJoin struct {
	model.Join
	// Path is the include path the join materializes; empty for the
	// connector hop of a many-to-many navigation.
	Path  string
	Alias string
	// Source is the segment of the join's left side.
	Source int
	// Owner is the segment of the instance receiving Attach, or -1.
	Owner int
}

// Plan is a translated query. Rows hold the base columns followed by each
// join's right-entity columns, in join order.
type Plan struct {
	SQL     string
	Args    []types.Value
	Base    *model.Entity
	Columns []*model.Column
	Joins   []PlanJoin
	// Scalar plans return a single row with a single column.
	Scalar bool
}

// Statement returns the plan as a pipeline statement.
func (p *Plan) Statement() client.Statement {
	return client.Statement{SQL: p.SQL, Args: p.Args}
}

// Translate turns q into SQL over base and the resolved joins.
func Translate(q *ast.Query, base *model.Entity, joins []PlanJoin) (*Plan, error) {
	g := &generator{base: base, joins: joins}
	for i := range g.joins {
		g.joins[i].Alias = alias(i + 1)
	}

	switch q.Operation {
	case ast.OpCount, ast.OpAggregate:
		return g.aggregate(q)
	case ast.OpFindMany, ast.OpFindFirst, "":
		return g.find(q)
	}
	return nil, fmt.Errorf("%w: operation %q", ErrUnsupportedQuery, q.Operation)
}

type generator struct {
	base  *model.Entity
	joins []PlanJoin
	args  []types.Value
	// joined is set when a filter or ordering references a joined segment.
	joined bool
}

func alias(i int) string { return fmt.Sprintf("t%d", i) }

func (g *generator) find(q *ast.Query) (*Plan, error) {
	columns := g.base.Columns
	if len(q.Select) > 0 {
		if len(g.joins) > 0 {
			return nil, fmt.Errorf("%w: select together with includes", ErrUnsupportedQuery)
		}
		columns = make([]*model.Column, len(q.Select))
		for i, name := range q.Select {
			c := g.base.Column(name)
			if c == nil {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, g.base.Name, name)
			}
			columns[i] = c
		}
	}

	var selectCols []string
	for _, c := range columns {
		selectCols = append(selectCols, qualify("t0", c.Name))
	}
	for _, j := range g.joins {
		for _, c := range j.Right.Columns {
			selectCols = append(selectCols, qualify(j.Alias, c.Name))
		}
	}

	take := q.Take
	if q.Operation == ast.OpFindFirst {
		one := 1
		take = &one
	}

	where, err := g.where(q.Where)
	if err != nil {
		return nil, err
	}
	orderBy, err := g.orderBy(q.OrderBy)
	if err != nil {
		return nil, err
	}
	paged := take != nil || (q.Skip != nil && *q.Skip > 0)

	var parts []string
	parts = append(parts, "SELECT "+strings.Join(selectCols, ", "))

	if paged && len(g.joins) > 0 {
		if g.joined {
			return nil, fmt.Errorf("%w: paging with conditions on included entities", ErrUnsupportedQuery)
		}
		// Page the base rows first so their children are not cut off.
		sub := []string{"SELECT * FROM " + quoteIdentifier(g.base.Table) + " AS t0"}
		if where != "" {
			sub = append(sub, "WHERE "+where)
		}
		if orderBy != "" {
			sub = append(sub, "ORDER BY "+orderBy)
		}
		sub = append(sub, g.limit(take, q.Skip))
		parts = append(parts, "FROM ("+strings.Join(sub, " ")+") AS t0")
		parts = append(parts, g.joinClauses()...)
		if orderBy != "" {
			parts = append(parts, "ORDER BY "+orderBy)
		}
	} else {
		parts = append(parts, "FROM "+quoteIdentifier(g.base.Table)+" AS t0")
		parts = append(parts, g.joinClauses()...)
		if where != "" {
			parts = append(parts, "WHERE "+where)
		}
		if orderBy != "" {
			parts = append(parts, "ORDER BY "+orderBy)
		}
		if paged {
			parts = append(parts, g.limit(take, q.Skip))
		}
	}

	return &Plan{
		SQL:     strings.Join(parts, " "),
		Args:    g.args,
		Base:    g.base,
		Columns: columns,
		Joins:   g.joins,
	}, nil
}

func (g *generator) aggregate(q *ast.Query) (*Plan, error) {
	g.joins = nil

	expr := "COUNT(*)"
	if agg := q.Aggregate; agg != nil && (agg.Field != "" || agg.Func != ast.AggCount) {
		switch agg.Func {
		case ast.AggCount, ast.AggSum, ast.AggMin, ast.AggMax, ast.AggAvg:
		default:
			return nil, fmt.Errorf("%w: aggregate %q", ErrUnsupportedQuery, agg.Func)
		}
		c := g.base.Column(agg.Field)
		if c == nil {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, g.base.Name, agg.Field)
		}
		expr = fmt.Sprintf("%s(%s)", agg.Func, qualify("t0", c.Name))
	}

	where, err := g.where(q.Where)
	if err != nil {
		return nil, err
	}
	orderBy, err := g.orderBy(q.OrderBy)
	if err != nil {
		return nil, err
	}

	from := []string{"FROM " + quoteIdentifier(g.base.Table) + " AS t0"}
	if where != "" {
		from = append(from, "WHERE "+where)
	}
	if q.Take != nil || (q.Skip != nil && *q.Skip > 0) {
		if orderBy != "" {
			from = append(from, "ORDER BY "+orderBy)
		}
		from = append(from, g.limit(q.Take, q.Skip))
		from = []string{"FROM (SELECT * " + strings.Join(from, " ") + ") AS t0"}
	}

	return &Plan{
		SQL:    "SELECT " + expr + " " + strings.Join(from, " "),
		Args:   g.args,
		Base:   g.base,
		Scalar: true,
	}, nil
}

func (g *generator) joinClauses() []string {
	out := make([]string, len(g.joins))
	for i, j := range g.joins {
		left := alias(j.Source)
		out[i] = fmt.Sprintf("LEFT JOIN %s AS %s ON %s = %s",
			quoteIdentifier(j.Right.Table), j.Alias,
			qualify(j.Alias, j.RightKey.Name), qualify(left, j.LeftKey.Name))
	}
	return out
}

func (g *generator) limit(take, skip *int) string {
	n := int64(-1)
	if take != nil {
		n = int64(*take)
	}
	clause := "LIMIT " + g.bind(types.Integer(n))
	if skip != nil && *skip > 0 {
		clause += " OFFSET " + g.bind(types.Integer(int64(*skip)))
	}
	return clause
}

func (g *generator) orderBy(order []ast.OrderByClause) (string, error) {
	parts := make([]string, 0, len(order))
	for _, o := range order {
		field, err := g.field(o.Field)
		if err != nil {
			return "", err
		}
		direction := "ASC"
		if strings.EqualFold(string(o.Direction), string(ast.SortDesc)) {
			direction = "DESC"
		}
		parts = append(parts, field+" "+direction)
	}
	return strings.Join(parts, ", "), nil
}

// field resolves a base column name or a "path.column" reference to a
// joined segment into a qualified column.
func (g *generator) field(name string) (string, error) {
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		c := g.base.Column(name)
		if c == nil {
			return "", fmt.Errorf("%w: %s.%s", ErrUnknownField, g.base.Name, name)
		}
		return qualify("t0", c.Name), nil
	}

	path, column := name[:dot], name[dot+1:]
	for _, j := range g.joins {
		if j.Path == "" || !strings.EqualFold(j.Path, path) {
			continue
		}
		c := j.Right.Column(column)
		if c == nil {
			return "", fmt.Errorf("%w: %s.%s", ErrUnknownField, j.Right.Name, column)
		}
		g.joined = true
		return qualify(j.Alias, c.Name), nil
	}
	return "", fmt.Errorf("%w: %q is not an included path", ErrUnknownField, path)
}

func (g *generator) bind(v types.Value) string {
	g.args = append(g.args, v)
	return "?"
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func qualify(alias, column string) string {
	return alias + "." + quoteIdentifier(column)
}
