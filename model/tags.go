package model

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const tagKey = "libsql"

// fieldTag is the parsed form of a `libsql:"..."` struct tag.
type fieldTag struct {
	name      string
	skip      bool
	key       bool
	notNull   bool
	null      bool
	index     bool
	indexName string
	unique    bool
	fk        string
	size      int

	auto    bool
	m2m     string
	joinCol string
}

func parseTag(raw string) (fieldTag, error) {
	var t fieldTag
	if raw == "-" {
		t.skip = true
		return t, nil
	}
	if raw == "" {
		return t, nil
	}

	parts := strings.Split(raw, ",")
	t.name = strings.TrimSpace(parts[0])
	for _, p := range parts[1:] {
		opt, val, hasVal := strings.Cut(strings.TrimSpace(p), "=")
		switch opt {
		case "":
		case "key":
			t.key = true
		case "notnull":
			t.notNull = true
		case "null":
			t.null = true
		case "index":
			t.index = true
			t.indexName = val
		case "unique":
			t.unique = true
		case "fk":
			t.fk = val
		case "size":
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return t, fmt.Errorf("%w: size %q", ErrInvalidTag, val)
			}
			t.size = n
		case "auto":
			t.auto = true
		case "m2m":
			t.m2m = val
		case "join":
			t.joinCol = val
		default:
			return t, fmt.Errorf("%w: unknown option %q", ErrInvalidTag, opt)
		}
		if hasVal && val == "" && opt != "index" {
			return t, fmt.Errorf("%w: option %q needs a value", ErrInvalidTag, opt)
		}
	}
	if t.notNull && t.null {
		return t, fmt.Errorf("%w: notnull and null together", ErrInvalidTag)
	}
	return t, nil
}

// SnakeCase converts a Go identifier to snake_case, keeping acronyms
// together: PersonID -> person_id, HTTPServer -> http_server.
func SnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
