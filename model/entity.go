// Package model derives entity descriptors (table, key, columns and
// navigations) from Go struct types and resolves navigations into joins.
package model

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/satishbabariya/libsql-go/runtime/types"
)

// Entity describes how one struct type maps to a table. Entities are
// immutable once built.
type Entity struct {
	Type        reflect.Type
	Name        string
	Table       string
	Key         *Column
	Columns     []*Column
	Navigations []*Navigation
}

// Column is one mappable field.
type Column struct {
	Name          string
	Field         string
	Index         []int
	GoType        reflect.Type
	SQLType       types.DeclType
	Key           bool
	AutoIncrement bool
	NotNull       bool
	Unique        bool
	Indexed       bool
	IndexName     string
	References    string
	VectorDims    int
}

// Navigation is a field holding related entities: *S for a single related
// row, []*S for a collection.
type Navigation struct {
	Name        string
	Field       string
	Index       []int
	Target      reflect.Type
	Collection  bool
	AutoInclude bool
	Through     string
	JoinColumn  string
}

// TableNamer overrides the table name of an entity.
type TableNamer interface {
	TableName() string
}

var (
	timeType       = reflect.TypeOf(time.Time{})
	tableNamerType = reflect.TypeOf((*TableNamer)(nil)).Elem()
)

// Column returns the column whose name or Go field name matches,
// case-insensitively.
func (e *Entity) Column(name string) *Column {
	for _, c := range e.Columns {
		if strings.EqualFold(c.Name, name) || strings.EqualFold(c.Field, name) {
			return c
		}
	}
	return nil
}

// Navigation returns the navigation whose name or Go field name matches,
// case-insensitively.
func (e *Entity) Navigation(name string) *Navigation {
	for _, n := range e.Navigations {
		if strings.EqualFold(n.Name, name) || strings.EqualFold(n.Field, name) {
			return n
		}
	}
	return nil
}

// References returns the columns declared as foreign keys to the named
// entity, in declaration order.
func (e *Entity) References(name string) []*Column {
	var out []*Column
	for _, c := range e.Columns {
		if c.References != "" && strings.EqualFold(c.References, name) {
			out = append(out, c)
		}
	}
	return out
}

// New allocates a zero instance and returns the pointer.
func (e *Entity) New() reflect.Value { return reflect.New(e.Type) }

// Value returns the column's field within the struct value v.
func (c *Column) Value(v reflect.Value) reflect.Value {
	return reflect.Indirect(v).FieldByIndex(c.Index)
}

// Value returns the navigation's field within the struct value v.
func (n *Navigation) Value(v reflect.Value) reflect.Value {
	return reflect.Indirect(v).FieldByIndex(n.Index)
}

func (c *Column) String() string { return c.Name }

func (e *Entity) String() string { return e.Name }

func buildEntity(t reflect.Type) (*Entity, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrNotStruct, t)
	}

	e := &Entity{Type: t, Name: t.Name(), Table: t.Name()}
	if reflect.PointerTo(t).Implements(tableNamerType) {
		e.Table = reflect.New(t).Interface().(TableNamer).TableName()
	}

	if err := collectFields(e, t, nil); err != nil {
		return nil, fmt.Errorf("entity %s: %w", e.Name, err)
	}

	for _, c := range e.Columns {
		if !c.Key {
			continue
		}
		if e.Key != nil {
			return nil, fmt.Errorf("entity %s: %w: %s and %s", e.Name, ErrMultiplePrimaryKeys, e.Key.Name, c.Name)
		}
		e.Key = c
	}
	if e.Key == nil {
		return nil, fmt.Errorf("entity %s: %w", e.Name, ErrNoPrimaryKey)
	}
	return e, nil
}

func collectFields(e *Entity, t reflect.Type, prefix []int) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		index := append(append([]int(nil), prefix...), i)

		tag, err := parseTag(f.Tag.Get(tagKey))
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		if tag.skip {
			continue
		}

		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Type != timeType {
			if err := collectFields(e, f.Type, index); err != nil {
				return err
			}
			continue
		}
		if !f.IsExported() {
			continue
		}

		if nav, ok, err := navigationOf(f, tag, index); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		} else if ok {
			e.Navigations = append(e.Navigations, nav)
			continue
		}

		col, err := columnOf(e, f, tag, index)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		e.Columns = append(e.Columns, col)
	}
	return nil
}

func isEntityStruct(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t != timeType
}

func navigationOf(f reflect.StructField, tag fieldTag, index []int) (*Navigation, bool, error) {
	ft := f.Type
	nav := &Navigation{
		Name:        f.Name,
		Field:       f.Name,
		Index:       index,
		AutoInclude: tag.auto,
		Through:     tag.m2m,
		JoinColumn:  tag.joinCol,
	}
	if tag.name != "" {
		nav.Name = tag.name
	}

	switch {
	case ft.Kind() == reflect.Pointer && isEntityStruct(ft.Elem()):
		nav.Target = ft.Elem()
	case ft.Kind() == reflect.Slice && ft.Elem().Kind() == reflect.Pointer && isEntityStruct(ft.Elem().Elem()):
		nav.Target = ft.Elem().Elem()
		nav.Collection = true
	case isEntityStruct(ft), ft.Kind() == reflect.Slice && isEntityStruct(ft.Elem()):
		return nil, false, fmt.Errorf("%w: %s", ErrNavigationNotPointer, ft)
	default:
		if tag.auto || tag.m2m != "" || tag.joinCol != "" {
			return nil, false, fmt.Errorf("%w: navigation options on non-navigation %s", ErrInvalidTag, ft)
		}
		return nil, false, nil
	}

	if nav.Through != "" && !nav.Collection {
		return nil, false, fmt.Errorf("%w: many-to-many navigation must be a collection", ErrInvalidTag)
	}
	return nav, true, nil
}

func columnOf(e *Entity, f reflect.StructField, tag fieldTag, index []int) (*Column, error) {
	if !types.Supported(f.Type) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedField, f.Type)
	}

	c := &Column{
		Name:       SnakeCase(f.Name),
		Field:      f.Name,
		Index:      index,
		GoType:     f.Type,
		SQLType:    types.DeclFor(f.Type),
		Key:        tag.key,
		Unique:     tag.unique,
		Indexed:    tag.index || tag.unique,
		References: tag.fk,
	}
	if tag.name != "" {
		c.Name = tag.name
	}

	base := f.Type
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Kind() == reflect.Slice && base.Elem().Kind() == reflect.Float32 {
		if tag.size == 0 {
			return nil, fmt.Errorf("%w: vector column needs size=n", ErrInvalidTag)
		}
		c.VectorDims = tag.size
		c.SQLType = types.VectorDecl(tag.size)
	}

	switch {
	case tag.notNull:
		c.NotNull = true
	case tag.null:
		c.NotNull = false
	default:
		c.NotNull = !nullableKind(f.Type)
	}

	if c.Key {
		if c.SQLType == types.DeclInteger {
			c.AutoIncrement = true
			// SQLite reports INTEGER PRIMARY KEY columns as nullable.
			c.NotNull = false
		} else {
			c.NotNull = true
		}
	}

	if c.Indexed {
		c.IndexName = tag.indexName
		if c.IndexName == "" {
			c.IndexName = fmt.Sprintf("idx_%s_%s", e.Table, c.Name)
		}
	}
	return c, nil
}

func nullableKind(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.String, reflect.Slice, reflect.Interface:
		return true
	}
	return false
}
