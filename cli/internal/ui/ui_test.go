package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/libsql-go/runtime/types"
)

func TestMain(m *testing.M) {
	DisableColor()
	m.Run()
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		v    types.Value
		decl types.DeclType
		want string
	}{
		{"null", types.Null(), types.DeclText, "NULL"},
		{"integer", types.Integer(42), types.DeclInteger, "42"},
		{"float", types.Float(1.5), types.DeclReal, "1.5"},
		{"text", types.Text("hi"), types.DeclText, "hi"},
		{"blob", types.Blob([]byte{0xde, 0xad}), types.DeclBlob, "x'DEAD' (2 bytes)"},
		{"long blob", types.Blob(make([]byte, 10)), types.DeclBlob, "x'0000000000000000…' (10 bytes)"},
		{"vector", types.Blob(types.Vector{1, 2}.Bytes()), types.VectorDecl(2), "[1 2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.v, tt.decl))
		})
	}
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, []string{"id", "name"}, [][]string{{"1", "ada"}, {"2", "bob"}}))
	out := buf.String()
	assert.Contains(t, out, "name")
	assert.Contains(t, out, "ada")
	assert.Contains(t, out, "bob")
}

func TestMessages(t *testing.T) {
	var buf bytes.Buffer
	PrintSuccess(&buf, "applied %d statements", 3)
	PrintWarning(&buf, "careful")
	assert.Contains(t, buf.String(), "✓ applied 3 statements")
	assert.Contains(t, buf.String(), "⚠ careful")
}
