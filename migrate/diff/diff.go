// Package diff computes the DDL that brings a live table in line with its
// entity.
package diff

import (
	"errors"
	"fmt"
	"strings"

	"github.com/satishbabariya/libsql-go/migrate/introspect"
	"github.com/satishbabariya/libsql-go/model"
)

// ErrNoSnapshot is returned when Diff is called without a snapshot.
var ErrNoSnapshot = errors.New("missing table snapshot")

// Synchronizer diffs entities against live table snapshots.
type Synchronizer struct {
	registry *model.Registry
}

// NewSynchronizer creates a synchronizer. The registry supplies the legacy
// join navigations whose columns get indexes.
func NewSynchronizer(registry *model.Registry) *Synchronizer {
	return &Synchronizer{registry: registry}
}

// TablePlan is the outcome of diffing one table.
type TablePlan struct {
	Table      string
	Create     bool
	Rebuild    bool
	Changes    map[string]ColumnChanges
	Statements []string
}

// Diff returns the statements that migrate the snapshot to e. A table that
// already matches yields no statements.
func (s *Synchronizer) Diff(e *model.Entity, snap *introspect.Snapshot) ([]string, error) {
	plan, err := s.Plan(e, snap)
	if err != nil {
		return nil, err
	}
	return plan.Statements, nil
}

// Plan is Diff with the reasons behind the statements.
func (s *Synchronizer) Plan(e *model.Entity, snap *introspect.Snapshot) (*TablePlan, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoSnapshot, e.Table)
	}

	columns := planColumns(e)
	indexes := s.planIndexes(e)
	plan := &TablePlan{Table: e.Table, Changes: make(map[string]ColumnChanges)}

	if !snap.Exists {
		plan.Create = true
		plan.Statements = append(plan.Statements, createTable(e.Table, columns, nil))
		plan.Statements = append(plan.Statements, createIndexes(e.Table, indexes)...)
		return plan, nil
	}

	var added []ColumnPlan
	for _, want := range columns {
		live := snap.Column(want.Name)
		if live == nil {
			added = append(added, want)
			if want.PrimaryKey || want.Unique {
				plan.Rebuild = true
			}
			continue
		}
		changes := ColumnChanges{
			TypeChanged:       !want.Type.Equal(live.Type),
			NullableChanged:   want.NotNull != live.NotNull,
			PrimaryKeyChanged: want.PrimaryKey != live.PrimaryKey,
			UniqueChanged:     want.Unique != snap.UniqueColumn(live.Name),
		}
		if changes.Any() {
			plan.Changes[want.Name] = changes
			plan.Rebuild = true
		}
	}

	var dropped []string
	for _, live := range snap.Columns {
		if e.Column(live.Name) != nil {
			continue
		}
		dropped = append(dropped, live.Name)
		if live.PrimaryKey || constrained(snap, live.Name) {
			plan.Rebuild = true
		}
	}

	if plan.Rebuild {
		plan.Statements = append(plan.Statements, rebuild(e.Table, columns, snap)...)
		plan.Statements = append(plan.Statements, createIndexes(e.Table, indexes)...)
		return plan, nil
	}

	// Stale indexes go first: SQLite refuses to drop an indexed column.
	var create []IndexPlan
	wanted := make(map[string]bool)
	for _, ix := range indexes {
		wanted[strings.ToLower(ix.Name)] = true
		live := snap.Index(ix.Name)
		switch {
		case live == nil:
			create = append(create, ix)
		case !live.Constraint() && !sameColumns(live.Columns, []string{ix.Column}):
			plan.Statements = append(plan.Statements, dropIndex(live.Name))
			create = append(create, ix)
		}
	}
	for _, live := range snap.Indexes {
		if live.Constraint() || wanted[strings.ToLower(live.Name)] {
			continue
		}
		plan.Statements = append(plan.Statements, dropIndex(live.Name))
	}

	for _, c := range added {
		plan.Statements = append(plan.Statements,
			fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quote(e.Table), c.Definition(true)))
	}
	for _, name := range dropped {
		plan.Statements = append(plan.Statements,
			fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", quote(e.Table), quote(name)))
	}
	plan.Statements = append(plan.Statements, createIndexes(e.Table, create)...)
	return plan, nil
}

// constrained reports whether a UNIQUE or PRIMARY KEY constraint covers
// the column.
func constrained(snap *introspect.Snapshot, column string) bool {
	for _, ix := range snap.Indexes {
		if !ix.Constraint() {
			continue
		}
		for _, c := range ix.Columns {
			if strings.EqualFold(c, column) {
				return true
			}
		}
	}
	return false
}

func createTable(table string, columns []ColumnPlan, withDefault map[string]bool) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = c.Definition(withDefault[c.Name])
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(table), strings.Join(defs, ", "))
}

// rebuild recreates the table under a temporary name, copies the shared
// columns and swaps it in.
func rebuild(table string, columns []ColumnPlan, snap *introspect.Snapshot) []string {
	shadow := table + "_new"

	var (
		targets     []string
		sources     []string
		withDefault = make(map[string]bool)
	)
	for _, c := range columns {
		live := snap.Column(c.Name)
		if live == nil {
			withDefault[c.Name] = true
			continue
		}
		targets = append(targets, quote(c.Name))
		source := quote(live.Name)
		if c.NotNull && !live.NotNull && !c.AutoIncrement {
			source = fmt.Sprintf("COALESCE(%s, %s)", source, zeroLiteral(c.Type))
		}
		sources = append(sources, source)
	}

	create := strings.Replace(createTable(shadow, columns, withDefault), "CREATE TABLE IF NOT EXISTS", "CREATE TABLE", 1)
	stmts := []string{
		"PRAGMA foreign_keys=OFF",
		"BEGIN TRANSACTION",
		fmt.Sprintf("DROP TABLE IF EXISTS %s", quote(shadow)),
		create,
	}
	if len(targets) > 0 {
		stmts = append(stmts, fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
			quote(shadow), strings.Join(targets, ", "), strings.Join(sources, ", "), quote(table)))
	}
	return append(stmts,
		fmt.Sprintf("DROP TABLE %s", quote(table)),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quote(shadow), quote(table)),
		"COMMIT",
		"PRAGMA foreign_keys=ON",
	)
}
