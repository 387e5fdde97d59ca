package orm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/libsql-go/internal/testserver"
	"github.com/satishbabariya/libsql-go/model"
	"github.com/satishbabariya/libsql-go/query/builder"
	"github.com/satishbabariya/libsql-go/runtime/client"
)

type Person struct {
	ID       int64      `libsql:"id,key"`
	Name     string     `libsql:"name,index"`
	Age      int64      `libsql:"age"`
	Products []*Product `libsql:"products"`
}

type Product struct {
	ID       int64   `libsql:"id,key"`
	Title    string  `libsql:"title"`
	Price    float64 `libsql:"price"`
	PersonID int64   `libsql:"person_id,fk=Person"`
}

func open(t *testing.T) *DB {
	t.Helper()
	srv := testserver.New(t)
	db, err := Open(srv.URL, "")
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Register(Person{}, Product{}))
	_, err = db.Migrate(context.Background())
	require.NoError(t, err)
	return db
}

func seed(t *testing.T, db *DB) []*Person {
	t.Helper()
	ctx := context.Background()
	people := []*Person{{Name: "ada", Age: 36}, {Name: "bob", Age: 41}, {Name: "cy", Age: 28}}
	for _, p := range people {
		require.NoError(t, From[Person](db).Insert(ctx, p))
	}
	products := []*Product{
		{Title: "lamp", Price: 10, PersonID: people[0].ID},
		{Title: "desk", Price: 120.5, PersonID: people[0].ID},
		{Title: "pen", Price: 2, PersonID: people[1].ID},
	}
	for _, p := range products {
		require.NoError(t, From[Product](db).Insert(ctx, p))
	}
	return people
}

func TestInsertAssignsKey(t *testing.T) {
	db := open(t)
	people := seed(t, db)
	assert.Equal(t, int64(1), people[0].ID)
	assert.Equal(t, int64(3), people[2].ID)

	explicit := &Person{ID: 42, Name: "zed"}
	require.NoError(t, From[Person](db).Insert(context.Background(), explicit))
	assert.Equal(t, int64(42), explicit.ID)
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	db := open(t)
	seed(t, db)
	people := From[Person](db)

	t.Run("include", func(t *testing.T) {
		list, err := people.Include("products").OrderBy("name").ToList(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "ada", list[0].Name)
		assert.Len(t, list[0].Products, 2)
		assert.Len(t, list[1].Products, 1)
		assert.Empty(t, list[2].Products)
	})

	t.Run("where and paging", func(t *testing.T) {
		list, err := people.
			Where(builder.NewWhereBuilder().GreaterThan("age", 30)).
			OrderByDesc("age").
			Take(1).
			ToList(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "bob", list[0].Name)

		list, err = people.OrderBy("id").Skip(2).ToList(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "cy", list[0].Name)
	})

	t.Run("builders are immutable", func(t *testing.T) {
		filtered := people.Where(builder.NewWhereBuilder().Equals("name", "cy"))
		n, err := filtered.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = people.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("first", func(t *testing.T) {
		p, err := people.Where(builder.NewWhereBuilder().StartsWith("name", "b")).First(ctx)
		require.NoError(t, err)
		assert.Equal(t, "bob", p.Name)

		none := people.Where(builder.NewWhereBuilder().Equals("name", "nobody"))
		_, err = none.First(ctx)
		assert.ErrorIs(t, err, ErrNotFound)

		p, err = none.FirstOrDefault(ctx)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("select", func(t *testing.T) {
		p, err := people.Select("name").OrderBy("name").First(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ada", p.Name)
		assert.Zero(t, p.Age)
	})

	t.Run("aggregates", func(t *testing.T) {
		products := From[Product](db)
		sum, err := products.Sum(ctx, "price")
		require.NoError(t, err)
		assert.InDelta(t, 132.5, sum, 1e-9)

		maxPrice, err := products.Max(ctx, "price")
		require.NoError(t, err)
		assert.InDelta(t, 120.5, maxPrice, 1e-9)

		minAge, err := people.Min(ctx, "age")
		require.NoError(t, err)
		assert.InDelta(t, 28, minAge, 1e-9)

		avg, err := people.Avg(ctx, "age")
		require.NoError(t, err)
		assert.InDelta(t, 35, avg, 1e-9)

		empty, err := products.Where(builder.NewWhereBuilder().GreaterThan("price", 1000)).Sum(ctx, "price")
		require.NoError(t, err)
		assert.Zero(t, empty, "null aggregate is zero")
	})

	t.Run("raw query", func(t *testing.T) {
		list, err := people.Query(ctx, `SELECT id, name FROM "Person" WHERE age < ? ORDER BY id`, 40)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "cy", list[1].Name)
		assert.Zero(t, list[1].Age)
	})
}

func TestUpdateDelete(t *testing.T) {
	ctx := context.Background()
	db := open(t)
	people := seed(t, db)
	table := From[Person](db)

	people[1].Age = 50
	n, err := table.Update(ctx, people[1])
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := table.Where(builder.NewWhereBuilder().Equals("id", people[1].ID)).First(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.Age)

	n, err = table.Delete(ctx, people[2])
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = table.Delete(ctx, people[2])
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := table.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestTransaction(t *testing.T) {
	ctx := context.Background()
	db := open(t)
	seed(t, db)

	boom := errors.New("boom")
	err := db.Transaction(ctx, func(tx *DB) error {
		require.NoError(t, From[Person](tx).Insert(ctx, &Person{Name: "temp"}))
		n, err := From[Person](tx).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n, "visible inside the transaction")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := From[Person](db).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "rolled back")

	err = db.Transaction(ctx, func(tx *DB) error {
		assert.ErrorIs(t, tx.Transaction(ctx, func(*DB) error { return nil }), ErrNoTransactions)
		return From[Person](tx).Insert(ctx, &Person{Name: "kept"})
	})
	require.NoError(t, err)

	n, err = From[Person](db).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

type executorFunc func(ctx context.Context, stmts ...client.Statement) (*client.PipelineResponse, error)

func (f executorFunc) Execute(ctx context.Context, stmts ...client.Statement) (*client.PipelineResponse, error) {
	return f(ctx, stmts...)
}

func TestNewWithPlainExecutor(t *testing.T) {
	down := errors.New("down")
	db, err := New(executorFunc(func(context.Context, ...client.Statement) (*client.PipelineResponse, error) {
		return nil, down
	}), WithRegistry(model.NewRegistry()))
	require.NoError(t, err)
	defer db.Close()

	assert.ErrorIs(t, db.Transaction(context.Background(), func(*DB) error { return nil }), ErrNoTransactions)

	_, err = From[Person](db).ToList(context.Background())
	assert.ErrorIs(t, err, down)
}

func TestInvalidEntity(t *testing.T) {
	db, err := New(executorFunc(nil))
	require.NoError(t, err)
	defer db.Close()

	table := From[int](db).Take(1)
	assert.Nil(t, table.Entity())
	_, err = table.ToList(context.Background())
	assert.ErrorIs(t, err, model.ErrNotStruct)
	assert.ErrorIs(t, table.Insert(context.Background(), new(int)), model.ErrNotStruct)
}

func TestNilEntity(t *testing.T) {
	ctx := context.Background()
	db := open(t)
	people := From[Person](db)

	assert.ErrorIs(t, people.Insert(ctx, nil), ErrNilEntity)
	_, err := people.Update(ctx, nil)
	assert.ErrorIs(t, err, ErrNilEntity)
	_, err = people.Delete(ctx, nil)
	assert.ErrorIs(t, err, ErrNilEntity)
}

type Member struct {
	ID    int64   `libsql:"id,key"`
	Name  string  `libsql:"name"`
	Tools []*Tool `libsql:"tools,m2m=MemberTool"`
}

type Tool struct {
	ID   int64  `libsql:"id,key"`
	Name string `libsql:"name"`
}

type MemberTool struct {
	ID       int64 `libsql:"id,key"`
	MemberID int64 `libsql:"member_id,fk=Member"`
	ToolID   int64 `libsql:"tool_id,fk=Tool"`
}

func TestManyToManyInclude(t *testing.T) {
	ctx := context.Background()
	srv := testserver.New(t)
	db, err := Open(srv.URL, "")
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Register(Member{}, Tool{}, MemberTool{}))
	_, err = db.Migrate(ctx)
	require.NoError(t, err)

	members := []*Member{{Name: "ada"}, {Name: "bob"}, {Name: "cy"}}
	for _, m := range members {
		require.NoError(t, From[Member](db).Insert(ctx, m))
	}
	tools := []*Tool{{Name: "hammer"}, {Name: "saw"}, {Name: "drill"}}
	for _, tl := range tools {
		require.NoError(t, From[Tool](db).Insert(ctx, tl))
	}
	for _, link := range []*MemberTool{
		{MemberID: members[0].ID, ToolID: tools[0].ID},
		{MemberID: members[0].ID, ToolID: tools[1].ID},
		{MemberID: members[1].ID, ToolID: tools[1].ID},
	} {
		require.NoError(t, From[MemberTool](db).Insert(ctx, link))
	}

	list, err := From[Member](db).Include("tools").OrderBy("name").ToList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	names := func(ts []*Tool) []string {
		var out []string
		for _, tl := range ts {
			out = append(out, tl.Name)
		}
		return out
	}
	assert.ElementsMatch(t, []string{"hammer", "saw"}, names(list[0].Tools))
	assert.Equal(t, []string{"saw"}, names(list[1].Tools))
	assert.Empty(t, list[2].Tools)

	var joined bool
	for _, c := range srv.Calls() {
		for _, r := range c.Requests {
			if r.Stmt != nil && strings.Contains(r.Stmt.SQL, `LEFT JOIN "MemberTool"`) {
				joined = true
			}
		}
	}
	assert.True(t, joined, "connector joined on the server")
}
