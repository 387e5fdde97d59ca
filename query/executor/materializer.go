package executor

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/satishbabariya/libsql-go/internal/debug"
	"github.com/satishbabariya/libsql-go/model"
	"github.com/satishbabariya/libsql-go/query/sqlgen"
	"github.com/satishbabariya/libsql-go/runtime/client"
	"github.com/satishbabariya/libsql-go/runtime/types"
)

// Materializer turns result rows into entity instances.
type Materializer struct {
	logger *slog.Logger
	// Strict makes per-column decode failures fatal instead of leaving the
	// field at its zero value.
	Strict bool
}

// NewMaterializer creates a lenient materializer.
func NewMaterializer(logger *slog.Logger) *Materializer {
	return &Materializer{logger: logger}
}

type identity struct {
	entity *model.Entity
	key    types.Value
}

type attachment struct {
	parent, child any
}

// Materialize builds one instance of base per row. With joins, each row is
// split into one segment per entity; instances are de-duplicated by key and
// joined instances are attached to their owners. Only roots are returned,
// in first-seen order.
func (m *Materializer) Materialize(base *model.Entity, cols []client.Col, rows [][]types.Value, joins []sqlgen.PlanJoin) ([]reflect.Value, error) {
	if len(joins) == 0 {
		return m.flat(base, cols, rows)
	}

	entities := make([]*model.Entity, 0, len(joins)+1)
	entities = append(entities, base)
	for _, j := range joins {
		entities = append(entities, j.Right)
	}
	width := 0
	for _, e := range entities {
		width += len(e.Columns)
	}
	if width != len(cols) {
		return nil, fmt.Errorf("%w: %d columns for %d entities needing %d", ErrColumnLayout, len(cols), len(entities), width)
	}

	var (
		roots     []reflect.Value
		instances = make(map[identity]reflect.Value)
		attached  = make(map[attachment]struct{})
	)
	for r, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrColumnLayout, r, len(row), width)
		}

		segments := make([]reflect.Value, len(entities))
		offset := 0
		for s, e := range entities {
			cells := row[offset : offset+len(e.Columns)]
			offset += len(e.Columns)
			if s > 0 && allNull(cells) {
				continue
			}

			key := cells[keyIndex(e)]
			if key.IsNull() {
				return nil, fmt.Errorf("%w: %s in row %d", ErrMissingKey, e.Name, r)
			}
			id := identity{entity: e, key: key}
			inst, ok := instances[id]
			if !ok {
				inst = e.New()
				for i, c := range e.Columns {
					if err := m.decode(e, c, cells[i], inst); err != nil {
						return nil, err
					}
				}
				instances[id] = inst
				if s == 0 {
					roots = append(roots, inst)
				}
			}
			segments[s] = inst
		}

		for i, j := range joins {
			child := segments[i+1]
			if j.Attach == nil || j.Owner < 0 || !child.IsValid() || !segments[j.Owner].IsValid() {
				continue
			}
			owner := segments[j.Owner]
			pair := attachment{parent: owner.Interface(), child: child.Interface()}
			if _, done := attached[pair]; done {
				continue
			}
			attached[pair] = struct{}{}
			attach(owner, j.Attach, child)
		}
	}
	return roots, nil
}

// flat maps each row to one instance by column name. Unknown columns are
// ignored and unmatched fields stay zero.
func (m *Materializer) flat(e *model.Entity, cols []client.Col, rows [][]types.Value) ([]reflect.Value, error) {
	targets := make([]*model.Column, len(cols))
	for i, c := range cols {
		targets[i] = e.Column(c.Name)
	}

	out := make([]reflect.Value, 0, len(rows))
	for _, row := range rows {
		inst := e.New()
		for i, v := range row {
			if i >= len(targets) || targets[i] == nil {
				continue
			}
			if err := m.decode(e, targets[i], v, inst); err != nil {
				return nil, err
			}
		}
		out = append(out, inst)
	}
	return out, nil
}

func (m *Materializer) decode(e *model.Entity, c *model.Column, v types.Value, inst reflect.Value) error {
	field := c.Value(inst)
	err := types.Decode(v, c.SQLType, field)
	if err == nil {
		return nil
	}
	err = fmt.Errorf("%w %s.%s: %w", ErrDecode, e.Name, c.Name, err)
	if m.Strict {
		return err
	}
	field.SetZero()
	debug.Or(m.logger).Warn("column decode failed", "entity", e.Name, "column", c.Name, "kind", v.Kind().String(), "error", err)
	return nil
}

func attach(owner reflect.Value, nav *model.Navigation, child reflect.Value) {
	field := nav.Value(owner)
	if nav.Collection {
		field.Set(reflect.Append(field, child))
		return
	}
	field.Set(child)
}

func keyIndex(e *model.Entity) int {
	for i, c := range e.Columns {
		if c == e.Key {
			return i
		}
	}
	return 0
}

func allNull(cells []types.Value) bool {
	for _, v := range cells {
		if !v.IsNull() {
			return false
		}
	}
	return true
}

// Map materializes a result set into instances of T, which must be the Go
// type of base.
func Map[T any](m *Materializer, base *model.Entity, rs *client.ResultSet, joins []sqlgen.PlanJoin) ([]*T, error) {
	if want := reflect.TypeOf((*T)(nil)).Elem(); base.Type != want {
		return nil, fmt.Errorf("%w: %s is not %s", ErrTypeMismatch, base.Type, want)
	}
	if rs == nil {
		return nil, nil
	}
	values, err := m.Materialize(base, rs.Cols, rs.Rows, joins)
	if err != nil {
		return nil, err
	}
	out := make([]*T, len(values))
	for i, v := range values {
		out[i] = v.Interface().(*T)
	}
	return out, nil
}
