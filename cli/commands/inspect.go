package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/libsql-go/cli/internal/ui"
	"github.com/satishbabariya/libsql-go/migrate/introspect"
)

// ErrNoSuchTable is returned by inspect for a missing table.
var ErrNoSuchTable = errors.New("no such table")

func newInspectCommand(a *app) *cobra.Command {
	var markdown bool

	cmd := &cobra.Command{
		Use:   "inspect [table]",
		Short: "Show the live schema",
		Long:  "List the tables of the database, or show the columns and indexes of one table.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			in := introspect.New(c, a.logger)
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				tables, err := in.Tables(cmd.Context())
				if err != nil {
					return err
				}
				if markdown {
					return ui.PrintMarkdown(out, tablesMarkdown(tables))
				}
				rows := make([][]string, len(tables))
				for i, t := range tables {
					rows[i] = []string{t}
				}
				return ui.PrintTable(out, []string{"table"}, rows)
			}

			snap, err := in.ReadTable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !snap.Exists {
				return fmt.Errorf("%w: %s", ErrNoSuchTable, args[0])
			}
			if markdown {
				return ui.PrintMarkdown(out, snapshotMarkdown(snap))
			}
			return printSnapshot(out, snap)
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "render as markdown")
	return cmd
}

func printSnapshot(w io.Writer, snap *introspect.Snapshot) error {
	ui.PrintSection(w, snap.Table)
	if err := ui.PrintTable(w, []string{"column", "type", "not null", "pk", "default"}, columnRows(snap)); err != nil {
		return err
	}
	if len(snap.Indexes) == 0 {
		return nil
	}
	return ui.PrintTable(w, []string{"index", "unique", "origin", "columns"}, indexRows(snap))
}

func columnRows(snap *introspect.Snapshot) [][]string {
	rows := make([][]string, len(snap.Columns))
	for i, c := range snap.Columns {
		def := ""
		if c.Default != nil {
			def = *c.Default
		}
		rows[i] = []string{c.Name, string(c.Type), yesNo(c.NotNull), yesNo(c.PrimaryKey), def}
	}
	return rows
}

func indexRows(snap *introspect.Snapshot) [][]string {
	rows := make([][]string, len(snap.Indexes))
	for i, ix := range snap.Indexes {
		rows[i] = []string{ix.Name, yesNo(ix.Unique), ix.Origin, strings.Join(ix.Columns, ", ")}
	}
	return rows
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func tablesMarkdown(tables []string) string {
	var b strings.Builder
	b.WriteString("# Tables\n\n")
	for _, t := range tables {
		fmt.Fprintf(&b, "- `%s`\n", t)
	}
	return b.String()
}

func snapshotMarkdown(snap *introspect.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", snap.Table)
	writeMarkdownTable(&b, []string{"Column", "Type", "Not null", "PK", "Default"}, columnRows(snap))
	if len(snap.Indexes) > 0 {
		b.WriteString("\n## Indexes\n\n")
		writeMarkdownTable(&b, []string{"Index", "Unique", "Origin", "Columns"}, indexRows(snap))
	}
	return b.String()
}

func writeMarkdownTable(b *strings.Builder, headers []string, rows [][]string) {
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(headers)) + "\n")
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.ReplaceAll(c, "|", `\|`)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
}
