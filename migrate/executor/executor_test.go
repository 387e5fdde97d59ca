package executor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/libsql-go/internal/testserver"
	"github.com/satishbabariya/libsql-go/model"
	"github.com/satishbabariya/libsql-go/runtime/client"
)

type Person struct {
	ID       int64      `libsql:"id,key"`
	Name     string     `libsql:"name,index"`
	Email    string     `libsql:"email,unique"`
	Age      int64      `libsql:"age"`
	Products []*Product `libsql:"products"`
}

type Product struct {
	ID       int64  `libsql:"id,key"`
	Title    string `libsql:"title"`
	PersonID int64  `libsql:"person_id,fk=Person"`
}

type Widget struct {
	ID   int64  `libsql:"id,key"`
	Code string `libsql:"code,unique"`
}

func setup(t *testing.T, samples ...any) (*testserver.Server, *Migrator) {
	t.Helper()
	srv := testserver.New(t)
	c, err := client.New(srv.URL, "")
	require.NoError(t, err)
	r := model.NewRegistry()
	require.NoError(t, r.Register(samples...))
	return srv, NewMigrator(c, r, nil)
}

func tables(t *testing.T, srv *testserver.Server) []string {
	t.Helper()
	rows, err := srv.DB().Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		require.NoError(t, rows.Scan(&n))
		names = append(names, n)
	}
	require.NoError(t, rows.Err())
	return names
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	srv, m := setup(t, Person{}, Product{})

	planned, err := m.Plan(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, planned)
	assert.True(t, strings.HasPrefix(planned[0], `CREATE TABLE IF NOT EXISTS "Person"`), "registration order")
	assert.Empty(t, tables(t, srv), "planning does not write")

	before := len(srv.Calls())
	res, err := m.Apply(ctx)
	require.NoError(t, err)
	require.Len(t, res.Tables, 2)
	assert.True(t, res.Tables[0].Create)
	assert.Equal(t, planned, res.Statements)
	assert.Positive(t, res.Duration)

	calls := srv.Calls()[before:]
	last := calls[len(calls)-1]
	require.Len(t, last.Requests, 2, "batch and close in one call")
	require.Equal(t, "batch", last.Requests[0].Type)
	steps := last.Requests[0].Batch.Steps
	require.Len(t, steps, len(planned)+2)
	assert.Nil(t, steps[0].Condition)
	require.NotNil(t, steps[1].Condition)
	assert.Equal(t, "ok", steps[1].Condition.Type)
	assert.Equal(t, 0, steps[1].Condition.Step)
	assert.Equal(t, "ROLLBACK", steps[len(planned)].Stmt.SQL)
	assert.Equal(t, "not", steps[len(planned)].Condition.Type)

	assert.Equal(t, []string{"Person", "Product"}, tables(t, srv))

	again, err := m.Plan(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)

	res, err = m.Apply(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Statements)
	assert.Zero(t, res.Duration)
}

func TestApplyFailure(t *testing.T) {
	ctx := context.Background()
	srv, m := setup(t, Widget{})
	for _, stmt := range []string{
		`CREATE TABLE "Widget" (id INTEGER PRIMARY KEY AUTOINCREMENT, code TEXT)`,
		`INSERT INTO "Widget" (code) VALUES ('a'), ('a')`,
	} {
		_, err := srv.DB().Exec(stmt)
		require.NoError(t, err)
	}

	plans, err := m.PlanTables(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.True(t, plans[0].Rebuild, "new unique constraint needs a rebuild")

	_, err = m.Apply(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMigrationFailed)

	var qe *client.QueryError
	require.True(t, errors.As(err, &qe))
	assert.True(t, strings.HasPrefix(qe.SQL, `INSERT INTO "Widget_new"`), qe.SQL)

	var count int
	require.NoError(t, srv.DB().QueryRow(`SELECT COUNT(*) FROM "Widget"`).Scan(&count))
	assert.Equal(t, 2, count, "rows survive a failed rebuild")
	assert.Equal(t, []string{"Widget"}, tables(t, srv))

	var ddl string
	require.NoError(t, srv.DB().QueryRow(`SELECT sql FROM sqlite_master WHERE name = 'Widget'`).Scan(&ddl))
	assert.Equal(t, `CREATE TABLE "Widget" (id INTEGER PRIMARY KEY AUTOINCREMENT, code TEXT)`, ddl)

	again, err := m.PlanTables(ctx)
	require.NoError(t, err)
	assert.True(t, again[0].Rebuild, "schema unchanged")
}

func TestApplyFailureKeepsEarlierTables(t *testing.T) {
	ctx := context.Background()
	srv, m := setup(t, Person{}, Widget{})
	for _, stmt := range []string{
		`CREATE TABLE "Widget" (id INTEGER PRIMARY KEY AUTOINCREMENT, code TEXT)`,
		`INSERT INTO "Widget" (code) VALUES ('a'), ('a'), ('b')`,
	} {
		_, err := srv.DB().Exec(stmt)
		require.NoError(t, err)
	}

	_, err := m.Apply(ctx)
	require.ErrorIs(t, err, ErrMigrationFailed)

	assert.Equal(t, []string{"Person", "Widget"}, tables(t, srv))
	var count int
	require.NoError(t, srv.DB().QueryRow(`SELECT COUNT(*) FROM "Widget"`).Scan(&count))
	assert.Equal(t, 3, count)
}

type executorFunc func(ctx context.Context, stmts ...client.Statement) (*client.PipelineResponse, error)

func (f executorFunc) Execute(ctx context.Context, stmts ...client.Statement) (*client.PipelineResponse, error) {
	return f(ctx, stmts...)
}

func TestApplyNeedsBatches(t *testing.T) {
	ctx := context.Background()
	srv := testserver.New(t)
	c, err := client.New(srv.URL, "")
	require.NoError(t, err)

	r := model.NewRegistry()
	require.NoError(t, r.Register(Widget{}))
	m := NewMigrator(executorFunc(c.Execute), r, nil)

	_, err = m.Apply(ctx)
	require.ErrorIs(t, err, ErrNoBatches)
	assert.ErrorIs(t, err, ErrMigrationFailed)
	assert.Empty(t, tables(t, srv))
}

func TestPlanUnreachable(t *testing.T) {
	srv, m := setup(t, Person{})
	srv.Close()

	_, err := m.Plan(context.Background())
	assert.Error(t, err)
}
