package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/libsql-go/cli/internal/config"
	"github.com/satishbabariya/libsql-go/cli/internal/ui"
	"github.com/satishbabariya/libsql-go/runtime/client"
	"github.com/satishbabariya/libsql-go/runtime/types"
)

func newExecCommand(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "exec [sql...]",
		Short: "Run SQL statements as one pipeline batch",
		Long: `Run every argument as one statement of a single pipeline call and print
the result of each. With --file, statements are read from a file and split on
semicolons at the end of a line.`,
		Example: `  libsql exec "SELECT * FROM users"
  libsql exec "INSERT INTO t VALUES (1)" "SELECT count(*) FROM t"
  libsql exec -f seed.sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sqls := args
			if file != "" {
				raw, err := afero.ReadFile(config.AppFs, file)
				if err != nil {
					return err
				}
				sqls = append(sqls, splitStatements(string(raw))...)
			}
			if len(sqls) == 0 {
				return errors.New("no statements: pass SQL arguments or --file")
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			stmts := make([]client.Statement, len(sqls))
			for i, sql := range sqls {
				stmts[i] = client.Statement{SQL: sql}
			}

			resp, err := c.Execute(cmd.Context(), stmts...)
			if resp == nil {
				return err
			}
			failed := -1
			var qe *client.QueryError
			if errors.As(err, &qe) {
				failed = qe.Index
			}
			out := cmd.OutOrStdout()
			for i, stmt := range stmts {
				if i == failed {
					break
				}
				if len(stmts) > 1 {
					ui.PrintSection(out, stmt.SQL)
				}
				if perr := printResult(out, resp.Result(i)); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read statements from a file")
	return cmd
}

func printResult(w io.Writer, rs *client.ResultSet) error {
	if rs == nil {
		return nil
	}
	if len(rs.Cols) == 0 {
		ui.PrintInfo(w, "%d rows affected", rs.AffectedRowCount)
		return nil
	}

	headers := make([]string, len(rs.Cols))
	decls := make([]types.DeclType, len(rs.Cols))
	for i, c := range rs.Cols {
		headers[i] = c.Name
		decls[i] = types.ParseDeclType(c.DeclType)
	}
	rows := make([][]string, len(rs.Rows))
	for i, row := range rs.Rows {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			decl := types.DeclType("")
			if j < len(decls) {
				decl = decls[j]
			}
			rows[i][j] = ui.FormatValue(v, decl)
		}
	}
	if err := ui.PrintTable(w, headers, rows); err != nil {
		return err
	}
	fmt.Fprintf(w, "(%d rows)\n", len(rs.Rows))
	return nil
}

// splitStatements splits a script on semicolons ending a line. Quoted
// semicolons inside a line are left alone.
func splitStatements(script string) []string {
	var (
		out     []string
		current strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			out = append(out, s)
		}
		current.Reset()
	}
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		if strings.HasSuffix(trimmed, ";") {
			current.WriteString(strings.TrimSuffix(trimmed, ";"))
			flush()
			continue
		}
		current.WriteString(trimmed)
	}
	flush()
	return out
}
