package introspect

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/satishbabariya/libsql-go/internal/debug"
	"github.com/satishbabariya/libsql-go/runtime/client"
	"github.com/satishbabariya/libsql-go/runtime/types"
)

// Introspector reads table snapshots through a pipeline executor.
type Introspector struct {
	exec   client.Executor
	logger *slog.Logger
}

// New creates an introspector. A nil logger uses the package debug logger.
func New(exec client.Executor, logger *slog.Logger) *Introspector {
	return &Introspector{exec: exec, logger: logger}
}

// Tables lists the user tables of the database.
func (i *Introspector) Tables(ctx context.Context) ([]string, error) {
	resp, err := i.exec.Execute(ctx, client.Statement{
		SQL: "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list tables: %w", ErrIntrospectionFailed, err)
	}
	rs := resp.Result(0)
	if rs == nil {
		return nil, fmt.Errorf("%w: list tables: missing result", ErrIntrospectionFailed)
	}
	var tables []string
	for _, row := range rs.Rows {
		name, err := row[0].AsText()
		if err != nil {
			return nil, fmt.Errorf("%w: table name: %w", ErrIntrospectionFailed, err)
		}
		tables = append(tables, name)
	}
	return tables, nil
}

// ReadTable reads the columns and indexes of table. Column and index lists
// come from one pipeline call; indexes whose definition cannot be parsed
// are resolved with a second call to PRAGMA index_info.
func (i *Introspector) ReadTable(ctx context.Context, table string) (*Snapshot, error) {
	resp, err := i.exec.Execute(ctx,
		client.Statement{SQL: fmt.Sprintf("PRAGMA table_info(%s)", quote(table))},
		client.Statement{SQL: fmt.Sprintf("PRAGMA index_list(%s)", quote(table))},
		client.Statement{
			SQL:  "SELECT name, sql FROM sqlite_master WHERE type = 'index' AND tbl_name = ?",
			Args: []types.Value{types.Text(table)},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrIntrospectionFailed, table, err)
	}
	columns, indexList, definitions := resp.Result(0), resp.Result(1), resp.Result(2)
	if columns == nil || indexList == nil || definitions == nil {
		return nil, fmt.Errorf("%w: %s: missing results", ErrIntrospectionFailed, table)
	}

	snap := &Snapshot{Table: table, Exists: len(columns.Rows) > 0}
	for _, row := range columns.Rows {
		c, err := readColumn(columns, row)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrIntrospectionFailed, table, err)
		}
		snap.Columns = append(snap.Columns, c)
	}

	sqlByIndex := make(map[string]string)
	for _, row := range definitions.Rows {
		name, _ := row[0].AsText()
		if !row[1].IsNull() {
			sqlByIndex[name], _ = row[1].AsText()
		}
	}

	var unresolved []int
	for _, row := range indexList.Rows {
		ix, err := readIndex(indexList, row)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrIntrospectionFailed, table, err)
		}
		ix.SQL = sqlByIndex[ix.Name]
		if ix.SQL != "" {
			if def, err := ParseIndex(ix.SQL); err == nil {
				ix.Columns = def.ColumnNames()
			} else {
				debug.Or(i.logger).Debug("index definition not parsed", "index", ix.Name, "error", err)
			}
		}
		if len(ix.Columns) == 0 {
			unresolved = append(unresolved, len(snap.Indexes))
		}
		snap.Indexes = append(snap.Indexes, ix)
	}

	if len(unresolved) > 0 {
		if err := i.resolveIndexColumns(ctx, snap, unresolved); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func (i *Introspector) resolveIndexColumns(ctx context.Context, snap *Snapshot, pending []int) error {
	stmts := make([]client.Statement, len(pending))
	for n, idx := range pending {
		stmts[n] = client.Statement{SQL: fmt.Sprintf("PRAGMA index_info(%s)", quote(snap.Indexes[idx].Name))}
	}
	resp, err := i.exec.Execute(ctx, stmts...)
	if err != nil {
		return fmt.Errorf("%w: %s index columns: %w", ErrIntrospectionFailed, snap.Table, err)
	}
	for n, idx := range pending {
		rs := resp.Result(n)
		if rs == nil {
			return fmt.Errorf("%w: %s: missing index_info result", ErrIntrospectionFailed, snap.Table)
		}
		col := rs.ColumnIndex("name")
		for _, row := range rs.Rows {
			if col < 0 || row[col].IsNull() {
				continue
			}
			name, _ := row[col].AsText()
			snap.Indexes[idx].Columns = append(snap.Indexes[idx].Columns, name)
		}
	}
	return nil
}

func readColumn(rs *client.ResultSet, row []types.Value) (Column, error) {
	var c Column
	var err error
	if c.Name, err = text(rs, row, "name"); err != nil {
		return c, err
	}
	decl, err := text(rs, row, "type")
	if err != nil {
		return c, err
	}
	c.Type = types.ParseDeclType(decl)
	if c.NotNull, err = flag(rs, row, "notnull"); err != nil {
		return c, err
	}
	if c.PrimaryKey, err = flag(rs, row, "pk"); err != nil {
		return c, err
	}
	if i := rs.ColumnIndex("dflt_value"); i >= 0 && !row[i].IsNull() {
		d, _ := row[i].AsText()
		c.Default = &d
	}
	return c, nil
}

func readIndex(rs *client.ResultSet, row []types.Value) (Index, error) {
	var ix Index
	var err error
	if ix.Name, err = text(rs, row, "name"); err != nil {
		return ix, err
	}
	if ix.Unique, err = flag(rs, row, "unique"); err != nil {
		return ix, err
	}
	if ix.Origin, err = text(rs, row, "origin"); err != nil {
		return ix, err
	}
	if ix.Partial, err = flag(rs, row, "partial"); err != nil {
		return ix, err
	}
	return ix, nil
}

func cell(rs *client.ResultSet, row []types.Value, name string) (types.Value, error) {
	i := rs.ColumnIndex(name)
	if i < 0 || i >= len(row) {
		return types.Value{}, fmt.Errorf("missing column %q", name)
	}
	return row[i], nil
}

func text(rs *client.ResultSet, row []types.Value, name string) (string, error) {
	v, err := cell(rs, row, name)
	if err != nil || v.IsNull() {
		return "", err
	}
	return v.AsText()
}

func flag(rs *client.ResultSet, row []types.Value, name string) (bool, error) {
	v, err := cell(rs, row, name)
	if err != nil {
		return false, err
	}
	return types.DecodeAs[bool](v, types.DeclInteger)
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
