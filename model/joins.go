package model

import (
	"fmt"
	"strings"
)

// Join links rows of Left to rows of Right where Left.LeftKey equals
// Right.RightKey. Attach names the navigation on Owner that receives the
// Right instance; connector hops of a many-to-many chain have no Attach.
type Join struct {
	Left     *Entity
	Right    *Entity
	LeftKey  *Column
	RightKey *Column
	Owner    *Entity
	Attach   *Navigation
}

// Hop is one resolved navigation of an include tree.
type Hop struct {
	// Path is the dotted navigation path from the root entity.
	Path string
	// Parent is the path of the hop the navigation starts from; empty for
	// the root.
	Parent string
	From   *Entity
	Nav    *Navigation
	Joins  []Join
}

// Joins resolves one navigation of from into joins: one for a foreign key
// relationship, two (through the connector) for many-to-many.
func (r *Registry) Joins(from *Entity, nav *Navigation) ([]Join, error) {
	target, err := r.Entity(nav.Target)
	if err != nil {
		return nil, err
	}

	if nav.Through != "" {
		return r.manyToMany(from, target, nav)
	}

	if nav.JoinColumn != "" {
		col := target.Column(nav.JoinColumn)
		if col == nil {
			return nil, fmt.Errorf("%w: %s has no column %q for %s.%s", ErrNoForeignKey, target.Name, nav.JoinColumn, from.Name, nav.Name)
		}
		return []Join{{Left: from, Right: target, LeftKey: from.Key, RightKey: col, Owner: from, Attach: nav}}, nil
	}

	hasMany := func() []Join {
		if refs := referencesTo(target, from); len(refs) > 0 {
			return []Join{{Left: from, Right: target, LeftKey: from.Key, RightKey: refs[0], Owner: from, Attach: nav}}
		}
		return nil
	}
	belongsTo := func() []Join {
		if refs := referencesTo(from, target); len(refs) > 0 {
			return []Join{{Left: from, Right: target, LeftKey: refs[0], RightKey: target.Key, Owner: from, Attach: nav}}
		}
		return nil
	}

	order := []func() []Join{hasMany, belongsTo}
	if !nav.Collection {
		order = []func() []Join{belongsTo, hasMany}
	}
	for _, resolve := range order {
		if joins := resolve(); joins != nil {
			return joins, nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s -> %s", ErrNoForeignKey, from.Name, nav.Name, target.Name)
}

func (r *Registry) manyToMany(from, target *Entity, nav *Navigation) ([]Join, error) {
	conn, ok := r.Lookup(nav.Through)
	if !ok {
		return nil, fmt.Errorf("%w: connector %q of %s.%s is not registered", ErrUnknownEntity, nav.Through, from.Name, nav.Name)
	}

	leftRefs := referencesTo(conn, from)
	rightRefs := referencesTo(conn, target)
	if len(leftRefs) == 0 || len(rightRefs) == 0 {
		return nil, fmt.Errorf("%w: connector %s needs fk columns for %s and %s", ErrNoForeignKey, conn.Name, from.Name, target.Name)
	}
	leftFK, rightFK := leftRefs[0], rightRefs[0]
	if from == target {
		if len(leftRefs) < 2 {
			return nil, fmt.Errorf("%w: self many-to-many connector %s needs two fk columns", ErrNoForeignKey, conn.Name)
		}
		rightFK = leftRefs[1]
	}

	return []Join{
		{Left: from, Right: conn, LeftKey: from.Key, RightKey: leftFK},
		{Left: conn, Right: target, LeftKey: rightFK, RightKey: target.Key, Owner: from, Attach: nav},
	}, nil
}

func referencesTo(holder, target *Entity) []*Column {
	refs := holder.References(target.Name)
	if len(refs) == 0 && target.Table != target.Name {
		refs = holder.References(target.Table)
	}
	return refs
}

// Resolve turns a dotted include path into one hop per navigation.
func (r *Registry) Resolve(root *Entity, path string) ([]Hop, error) {
	var hops []Hop
	current := root
	prefix := ""
	for _, name := range strings.Split(path, ".") {
		nav := current.Navigation(name)
		if nav == nil {
			return nil, fmt.Errorf("%w: %s has no navigation %q", ErrUnknownNavigation, current.Name, name)
		}
		joins, err := r.Joins(current, nav)
		if err != nil {
			return nil, err
		}
		hopPath := joinPath(prefix, nav.Name)
		hops = append(hops, Hop{Path: hopPath, Parent: prefix, From: current, Nav: nav, Joins: joins})

		if current, err = r.Entity(nav.Target); err != nil {
			return nil, err
		}
		prefix = hopPath
	}
	return hops, nil
}

// AutoIncludes walks the auto-include navigations reachable from root,
// depth first. A navigation leading back to an entity already on the
// current path is a cycle.
func (r *Registry) AutoIncludes(root *Entity) ([]Hop, error) {
	var hops []Hop

	var walk func(e *Entity, path string, ancestors []*Entity) error
	walk = func(e *Entity, path string, ancestors []*Entity) error {
		for _, nav := range e.Navigations {
			if !nav.AutoInclude {
				continue
			}
			target, err := r.Entity(nav.Target)
			if err != nil {
				return err
			}
			for _, a := range ancestors {
				if a == target {
					return fmt.Errorf("%w: %s.%s leads back to %s", ErrAutoIncludeCycle, e.Name, nav.Name, target.Name)
				}
			}

			joins, err := r.Joins(e, nav)
			if err != nil {
				return err
			}
			hopPath := joinPath(path, nav.Name)
			hops = append(hops, Hop{Path: hopPath, Parent: path, From: e, Nav: nav, Joins: joins})

			next := append(ancestors[:len(ancestors):len(ancestors)], target)
			if err := walk(target, hopPath, next); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root, "", []*Entity{root}); err != nil {
		return nil, err
	}
	return hops, nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
