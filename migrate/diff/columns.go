package diff

import (
	"strings"

	"github.com/satishbabariya/libsql-go/model"
	"github.com/satishbabariya/libsql-go/runtime/types"
)

// ColumnPlan is the desired shape of one column.
type ColumnPlan struct {
	Name          string
	Type          types.DeclType
	NotNull       bool
	PrimaryKey    bool
	AutoIncrement bool
	Unique        bool
}

// planColumns derives the desired columns of e in declaration order.
func planColumns(e *model.Entity) []ColumnPlan {
	out := make([]ColumnPlan, len(e.Columns))
	for i, c := range e.Columns {
		p := ColumnPlan{
			Name:       c.Name,
			Type:       c.SQLType,
			NotNull:    c.NotNull,
			PrimaryKey: c.Key,
			Unique:     c.Unique && !c.Key,
		}
		if c.Key {
			p.AutoIncrement = c.AutoIncrement
			p.NotNull = !c.AutoIncrement
		}
		out[i] = p
	}
	return out
}

// Definition renders the column for CREATE TABLE. withDefault adds a zero
// DEFAULT to NOT NULL columns so existing rows can take them.
func (p ColumnPlan) Definition(withDefault bool) string {
	var b strings.Builder
	b.WriteString(quote(p.Name))
	if p.Type != types.DeclNone {
		b.WriteString(" " + string(p.Type))
	}
	switch {
	case p.PrimaryKey && p.AutoIncrement:
		b.WriteString(" PRIMARY KEY AUTOINCREMENT")
	case p.PrimaryKey:
		b.WriteString(" NOT NULL PRIMARY KEY")
	default:
		if p.NotNull {
			b.WriteString(" NOT NULL")
			if withDefault {
				b.WriteString(" DEFAULT " + zeroLiteral(p.Type))
			}
		}
		if p.Unique {
			b.WriteString(" UNIQUE")
		}
	}
	return b.String()
}

func zeroLiteral(t types.DeclType) string {
	switch t.Family() {
	case types.FamilyInteger:
		return "0"
	case types.FamilyReal:
		return "0.0"
	case types.FamilyBlob, types.FamilyVector:
		return "X''"
	}
	return "''"
}

// ColumnChanges tracks all changes to a column
type ColumnChanges struct {
	TypeChanged       bool
	NullableChanged   bool
	PrimaryKeyChanged bool
	UniqueChanged     bool
}

// Any reports whether anything changed.
func (c ColumnChanges) Any() bool {
	return c.TypeChanged || c.NullableChanged || c.PrimaryKeyChanged || c.UniqueChanged
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
