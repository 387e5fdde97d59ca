package types

import (
	"fmt"
	"strconv"
	"strings"
)

// DeclType is a declared column type as reported by the server or declared
// by the schema, normalised to upper case.
type DeclType string

const (
	DeclNone    DeclType = ""
	DeclInteger DeclType = "INTEGER"
	DeclInt     DeclType = "INT"
	DeclBigint  DeclType = "BIGINT"
	DeclBoolean DeclType = "BOOLEAN"
	DeclReal    DeclType = "REAL"
	DeclText    DeclType = "TEXT"
	DeclBlob    DeclType = "BLOB"
)

const vectorPrefix = "F32_BLOB"

// Family groups declared types by how their values are interpreted.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyInteger
	FamilyReal
	FamilyText
	FamilyBlob
	FamilyVector
)

// ParseDeclType normalises a declared type: upper case, single spaces, no
// spaces around parentheses.
func ParseDeclType(s string) DeclType {
	s = strings.ToUpper(strings.Join(strings.Fields(s), " "))
	s = strings.NewReplacer(" (", "(", "( ", "(", " )", ")").Replace(s)
	return DeclType(s)
}

// VectorDecl returns the declared type of a float32 vector column of the
// given dimension.
func VectorDecl(dims int) DeclType {
	return DeclType(fmt.Sprintf("%s(%d)", vectorPrefix, dims))
}

// Family classifies the declared type using SQLite's affinity rules, with
// vector blobs and booleans split out.
func (d DeclType) Family() Family {
	s := string(ParseDeclType(string(d)))
	switch {
	case s == "":
		return FamilyUnknown
	case strings.HasPrefix(s, vectorPrefix):
		return FamilyVector
	case strings.Contains(s, "INT"), strings.Contains(s, "BOOL"):
		return FamilyInteger
	case strings.Contains(s, "CHAR"), strings.Contains(s, "CLOB"), strings.Contains(s, "TEXT"):
		return FamilyText
	case strings.Contains(s, "BLOB"):
		return FamilyBlob
	case strings.Contains(s, "REAL"), strings.Contains(s, "FLOA"), strings.Contains(s, "DOUB"):
		return FamilyReal
	default:
		return FamilyUnknown
	}
}

// VectorDims returns the dimension of an F32_BLOB(n) declared type.
func (d DeclType) VectorDims() (int, bool) {
	s := string(ParseDeclType(string(d)))
	if !strings.HasPrefix(s, vectorPrefix+"(") || !strings.HasSuffix(s, ")") {
		return 0, false
	}
	n, err := strconv.Atoi(s[len(vectorPrefix)+1 : len(s)-1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Equal compares two declared types after normalisation.
func (d DeclType) Equal(o DeclType) bool {
	return ParseDeclType(string(d)) == ParseDeclType(string(o))
}
