// Package compiler resolves entity queries into executable plans.
package compiler

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/satishbabariya/libsql-go/internal/debug"
	"github.com/satishbabariya/libsql-go/model"
	"github.com/satishbabariya/libsql-go/query/ast"
	"github.com/satishbabariya/libsql-go/query/cache"
	"github.com/satishbabariya/libsql-go/query/sqlgen"
)

// Compiler compiles query AST into SQL
type Compiler struct {
	registry *model.Registry
	cache    *cache.Cache[[]sqlgen.PlanJoin]
	logger   *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the compiler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// WithCacheSize bounds the number of cached join layouts.
func WithCacheSize(n int64) Option {
	return func(c *Compiler) {
		if jc, err := cache.New[[]sqlgen.PlanJoin](n); err == nil {
			c.cache = jc
		}
	}
}

// New creates a compiler over registry.
func New(registry *model.Registry, opts ...Option) (*Compiler, error) {
	c := &Compiler{registry: registry}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		jc, err := cache.New[[]sqlgen.PlanJoin](cache.DefaultMaxEntries)
		if err != nil {
			return nil, err
		}
		c.cache = jc
	}
	return c, nil
}

// Registry returns the registry the compiler resolves models against.
func (c *Compiler) Registry() *model.Registry { return c.registry }

// Close releases the join cache.
func (c *Compiler) Close() { c.cache.Close() }

// Compile resolves q's model and include tree and translates it.
func (c *Compiler) Compile(q *ast.Query) (*sqlgen.Plan, error) {
	if q == nil || q.Model == "" {
		return nil, fmt.Errorf("%w: missing model", ErrInvalidQuery)
	}
	base, ok := c.registry.Lookup(q.Model)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, q.Model)
	}
	return c.CompileFor(base, q)
}

// CompileFor compiles q against a known base entity.
func (c *Compiler) CompileFor(base *model.Entity, q *ast.Query) (*sqlgen.Plan, error) {
	var joins []sqlgen.PlanJoin
	switch {
	case q.Operation == ast.OpCount || q.Operation == ast.OpAggregate:
	case len(q.Select) > 0:
		// Projections load no related entities.
		if len(q.Include) > 0 {
			return nil, fmt.Errorf("%w: select together with include", sqlgen.ErrUnsupportedQuery)
		}
	default:
		var err error
		if joins, err = c.joins(base, q); err != nil {
			return nil, err
		}
	}

	plan, err := sqlgen.Translate(q, base, joins)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", base.Name, err)
	}
	debug.Or(c.logger).Debug("compiled query", "model", base.Name, "sql", plan.SQL, "joins", len(plan.Joins))
	return plan, nil
}

// joins returns a private copy of the join layout of q, resolving and
// caching it on first use. Layouts are keyed by entity identity, since
// distinct types may share a name.
func (c *Compiler) joins(base *model.Entity, q *ast.Query) ([]sqlgen.PlanJoin, error) {
	key := fmt.Sprintf("%p#%s", base, q.Fingerprint())
	if cached, ok := c.cache.Get(key); ok {
		return append([]sqlgen.PlanJoin(nil), cached...), nil
	}

	hops, err := c.registry.AutoIncludes(base)
	if err != nil {
		return nil, err
	}
	for _, path := range q.Include {
		resolved, err := c.registry.Resolve(base, path)
		if err != nil {
			return nil, err
		}
		hops = append(hops, resolved...)
	}

	joins := layout(hops)
	c.cache.Set(key, joins)
	return append([]sqlgen.PlanJoin(nil), joins...), nil
}

// layout numbers the segments of hops in order, skipping repeated paths.
// Segment 0 is the base entity.
func layout(hops []model.Hop) []sqlgen.PlanJoin {
	var joins []sqlgen.PlanJoin
	segments := map[string]int{"": 0}
	for _, hop := range hops {
		path := strings.ToLower(hop.Path)
		if _, seen := segments[path]; seen {
			continue
		}
		source := segments[strings.ToLower(hop.Parent)]
		left := source
		for _, j := range hop.Joins {
			pj := sqlgen.PlanJoin{Join: j, Source: left, Owner: -1}
			if j.Attach != nil {
				pj.Path = hop.Path
				pj.Owner = source
			}
			joins = append(joins, pj)
			left = len(joins)
		}
		segments[path] = left
	}
	return joins
}
