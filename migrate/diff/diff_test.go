package diff

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/libsql-go/migrate/introspect"
	"github.com/satishbabariya/libsql-go/model"
	"github.com/satishbabariya/libsql-go/runtime/types"
)

type Person struct {
	ID    int64   `libsql:"id,key"`
	Name  string  `libsql:"name,index"`
	Email string  `libsql:"email,unique"`
	Age   float64 `libsql:"age"`
}

type Shelf struct {
	ID    int64   `libsql:"id,key"`
	Items []*Item `libsql:"items,join=shelf_ref"`
}

type Item struct {
	ID       int64 `libsql:"id,key"`
	ShelfRef int64 `libsql:"shelf_ref"`
}

type Doc struct {
	Slug string `libsql:"slug,key"`
	Body []byte `libsql:"body,notnull"`
}

func render(stmts []string) []byte {
	return []byte(strings.Join(stmts, ";\n") + ";\n")
}

func setup(t *testing.T) (*Synchronizer, *model.Registry) {
	t.Helper()
	r := model.NewRegistry()
	require.NoError(t, r.Register(Person{}, Shelf{}, Item{}, Doc{}))
	return NewSynchronizer(r), r
}

func entity[T any](t *testing.T, r *model.Registry) *model.Entity {
	t.Helper()
	e, err := model.Of[T](r)
	require.NoError(t, err)
	return e
}

func col(name string, decl types.DeclType, notNull, pk bool) introspect.Column {
	return introspect.Column{Name: name, Type: decl, NotNull: notNull, PrimaryKey: pk}
}

var emailUnique = introspect.Index{
	Name: "sqlite_autoindex_Person_1", Unique: true, Origin: introspect.OriginUnique, Columns: []string{"email"},
}

var nameIndex = introspect.Index{
	Name: "idx_Person_name", Origin: introspect.OriginCreate, Columns: []string{"name"},
	SQL: `CREATE INDEX "idx_Person_name" ON "Person" ("name")`,
}

func TestDiffGolden(t *testing.T) {
	s, r := setup(t)
	person := entity[Person](t, r)

	tests := []struct {
		name   string
		entity *model.Entity
		snap   *introspect.Snapshot
	}{
		{
			name:   "create_table",
			entity: person,
			snap:   &introspect.Snapshot{Table: "Person"},
		},
		{
			name:   "add_and_drop_columns",
			entity: person,
			snap: &introspect.Snapshot{
				Table:  "Person",
				Exists: true,
				Columns: []introspect.Column{
					col("id", types.DeclInteger, false, true),
					col("name", types.DeclText, false, false),
					col("email", types.DeclText, false, false),
					col("legacy", types.DeclText, false, false),
				},
				Indexes: []introspect.Index{
					emailUnique,
					{Name: "idx_Person_legacy", Origin: introspect.OriginCreate, Columns: []string{"legacy"}},
				},
			},
		},
		{
			name:   "rebuild_table",
			entity: person,
			snap: &introspect.Snapshot{
				Table:  "Person",
				Exists: true,
				Columns: []introspect.Column{
					col("id", types.DeclInteger, false, true),
					col("name", types.DeclText, false, false),
					col("email", types.DeclText, false, false),
					col("age", types.DeclText, false, false),
				},
				Indexes: []introspect.Index{nameIndex},
			},
		},
		{
			name:   "legacy_join_index",
			entity: entity[Item](t, r),
			snap:   &introspect.Snapshot{Table: "Item"},
		},
		{
			name:   "text_key",
			entity: entity[Doc](t, r),
			snap:   &introspect.Snapshot{Table: "Doc"},
		},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts, err := s.Diff(tt.entity, tt.snap)
			require.NoError(t, err)
			g.Assert(t, tt.name, render(stmts))
		})
	}
}

func TestDiffInSync(t *testing.T) {
	s, r := setup(t)

	stmts, err := s.Diff(entity[Person](t, r), &introspect.Snapshot{
		Table:  "Person",
		Exists: true,
		Columns: []introspect.Column{
			col("id", types.DeclInteger, false, true),
			col("name", "text", false, false),
			col("email", types.DeclText, false, false),
			col("age", types.DeclReal, true, false),
		},
		Indexes: []introspect.Index{emailUnique, nameIndex},
	})
	require.NoError(t, err)
	assert.Empty(t, stmts)
}

func TestDiffEscalation(t *testing.T) {
	s, r := setup(t)
	person := entity[Person](t, r)

	t.Run("adding a unique column", func(t *testing.T) {
		plan, err := s.Plan(person, &introspect.Snapshot{
			Table:  "Person",
			Exists: true,
			Columns: []introspect.Column{
				col("id", types.DeclInteger, false, true),
				col("name", types.DeclText, false, false),
				col("age", types.DeclReal, true, false),
			},
			Indexes: []introspect.Index{nameIndex},
		})
		require.NoError(t, err)
		assert.True(t, plan.Rebuild)
		assert.Contains(t, plan.Statements, `INSERT INTO "Person_new" ("id", "name", "age") SELECT "id", "name", "age" FROM "Person"`)
	})

	t.Run("dropping a unique column", func(t *testing.T) {
		plan, err := s.Plan(person, &introspect.Snapshot{
			Table:  "Person",
			Exists: true,
			Columns: []introspect.Column{
				col("id", types.DeclInteger, false, true),
				col("name", types.DeclText, false, false),
				col("email", types.DeclText, false, false),
				col("age", types.DeclReal, true, false),
				col("code", types.DeclText, false, false),
			},
			Indexes: []introspect.Index{
				emailUnique,
				nameIndex,
				{Name: "sqlite_autoindex_Person_2", Unique: true, Origin: introspect.OriginUnique, Columns: []string{"code"}},
			},
		})
		require.NoError(t, err)
		assert.True(t, plan.Rebuild)
	})

	t.Run("primary key change", func(t *testing.T) {
		plan, err := s.Plan(person, &introspect.Snapshot{
			Table:  "Person",
			Exists: true,
			Columns: []introspect.Column{
				col("id", types.DeclInteger, false, false),
				col("name", types.DeclText, false, false),
				col("email", types.DeclText, false, false),
				col("age", types.DeclReal, true, false),
			},
			Indexes: []introspect.Index{emailUnique, nameIndex},
		})
		require.NoError(t, err)
		assert.True(t, plan.Rebuild)
		assert.Equal(t, ColumnChanges{PrimaryKeyChanged: true}, plan.Changes["id"])
	})

	_, err := s.Diff(person, nil)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}
