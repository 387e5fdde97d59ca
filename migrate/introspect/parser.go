package introspect

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// sqlLexer tokenizes the subset of SQL used by CREATE INDEX statements.
var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `(?i)\b(CREATE|UNIQUE|INDEX|IF|NOT|EXISTS|ON|ASC|DESC|COLLATE|WHERE)\b`},
	{Name: "Quoted", Pattern: `"(?:""|[^"])*"|\[[^\]]*\]|` + "`(?:``|[^`])*`"},
	{Name: "String", Pattern: `'(?:''|[^'])*'`},
	{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_$]*`},
	{Name: "Number", Pattern: `\d+(?:\.\d+)?`},
	{Name: "Punct", Pattern: `[(),.;=<>!+*/%|-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// IndexDef is a parsed CREATE INDEX statement.
type IndexDef struct {
	Unique      bool           `"CREATE" @"UNIQUE"? "INDEX"`
	IfNotExists bool           `@("IF" "NOT" "EXISTS")?`
	Name        *QualifiedName `@@`
	Table       *QualifiedName `"ON" @@`
	Columns     []*IndexColumn `"(" @@ ( "," @@ )* ")"`
	Partial     bool           `@"WHERE"?`
}

// QualifiedName is an optionally schema-qualified identifier.
type QualifiedName struct {
	Parts []string `@(Ident | Quoted) ( "." @(Ident | Quoted) )*`
}

// Last returns the unqualified name.
func (q *QualifiedName) Last() string { return q.Parts[len(q.Parts)-1] }

// IndexColumn is one indexed column.
type IndexColumn struct {
	Name    string `@(Ident | Quoted)`
	Collate string `( "COLLATE" @(Ident | Quoted) )?`
	Desc    bool   `( @"DESC" | "ASC" )?`
}

var indexParser = participle.MustBuild[IndexDef](
	participle.Lexer(sqlLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Keyword"),
	participle.Map(unquoteIdent, "Quoted"),
)

// ParseIndex parses a CREATE INDEX statement. Expression indexes are not
// supported; callers fall back to PRAGMA index_info for them.
func ParseIndex(sql string) (*IndexDef, error) {
	def, err := indexParser.ParseString("", sql, participle.AllowTrailing(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIndexSQL, err)
	}
	return def, nil
}

// ColumnNames returns the indexed column names in order.
func (d *IndexDef) ColumnNames() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

func unquoteIdent(tok lexer.Token) (lexer.Token, error) {
	v := tok.Value
	if len(v) < 2 {
		return tok, nil
	}
	switch v[0] {
	case '"':
		v = strings.ReplaceAll(v[1:len(v)-1], `""`, `"`)
	case '`':
		v = strings.ReplaceAll(v[1:len(v)-1], "``", "`")
	case '[':
		v = v[1 : len(v)-1]
	}
	tok.Value = v
	return tok, nil
}
