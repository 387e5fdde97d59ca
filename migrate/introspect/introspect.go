// Package introspect reads the live schema of a table over the pipeline
// protocol.
package introspect

import (
	"strings"

	"github.com/satishbabariya/libsql-go/runtime/types"
)

// Snapshot is the live shape of one table at the time it was read.
// Snapshots are never cached; read a fresh one before every diff.
type Snapshot struct {
	Table   string
	Exists  bool
	Columns []Column
	Indexes []Index
}

// Column represents a table column
type Column struct {
	Name       string
	Type       types.DeclType
	NotNull    bool
	PrimaryKey bool
	Default    *string
}

// Index origins reported by PRAGMA index_list.
const (
	OriginCreate     = "c"
	OriginUnique     = "u"
	OriginPrimaryKey = "pk"
)

// Index represents a database index
type Index struct {
	Name    string
	Unique  bool
	Origin  string
	Partial bool
	Columns []string
	// SQL is the defining statement; empty for indexes SQLite creates
	// implicitly for UNIQUE and PRIMARY KEY constraints.
	SQL string
}

// Column returns the named column, case-insensitively.
func (s *Snapshot) Column(name string) *Column {
	for i := range s.Columns {
		if strings.EqualFold(s.Columns[i].Name, name) {
			return &s.Columns[i]
		}
	}
	return nil
}

// Index returns the named index, case-insensitively.
func (s *Snapshot) Index(name string) *Index {
	for i := range s.Indexes {
		if strings.EqualFold(s.Indexes[i].Name, name) {
			return &s.Indexes[i]
		}
	}
	return nil
}

// Constraint reports whether the index backs a UNIQUE or PRIMARY KEY
// constraint rather than a CREATE INDEX statement.
func (ix *Index) Constraint() bool {
	return ix.Origin == OriginUnique || ix.Origin == OriginPrimaryKey
}

// UniqueColumn reports whether a single-column unique constraint covers
// the named column.
func (s *Snapshot) UniqueColumn(name string) bool {
	for _, ix := range s.Indexes {
		if ix.Origin == OriginUnique && len(ix.Columns) == 1 && strings.EqualFold(ix.Columns[0], name) {
			return true
		}
	}
	return false
}
