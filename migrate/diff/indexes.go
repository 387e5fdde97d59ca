package diff

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/libsql-go/model"
)

// IndexPlan is one desired single-column index.
type IndexPlan struct {
	Name   string
	Column string
}

// planIndexes collects the non-unique indexed columns of e and the join
// columns legacy navigations of registered entities point at.
func (s *Synchronizer) planIndexes(e *model.Entity) []IndexPlan {
	var out []IndexPlan
	seen := make(map[string]bool)
	add := func(name, column string) {
		if key := strings.ToLower(name); !seen[key] {
			seen[key] = true
			out = append(out, IndexPlan{Name: name, Column: column})
		}
	}

	for _, c := range e.Columns {
		if c.Indexed && !c.Unique && !c.Key {
			add(c.IndexName, c.Name)
		}
	}

	if s.registry == nil {
		return out
	}
	for _, other := range s.registry.Entities() {
		for _, nav := range other.Navigations {
			if nav.JoinColumn == "" {
				continue
			}
			target, err := s.registry.Entity(nav.Target)
			if err != nil || target != e {
				continue
			}
			if c := e.Column(nav.JoinColumn); c != nil {
				add(fmt.Sprintf("idx_%s_%s", e.Table, c.Name), c.Name)
			}
		}
	}
	return out
}

func createIndexes(table string, indexes []IndexPlan) []string {
	out := make([]string, len(indexes))
	for i, ix := range indexes {
		out[i] = fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", quote(ix.Name), quote(table), quote(ix.Column))
	}
	return out
}

func dropIndex(name string) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s", quote(name))
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
