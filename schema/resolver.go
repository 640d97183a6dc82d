package schema

import (
	lru "github.com/hashicorp/golang-lru"
)

// DefaultCacheSize bounds the resolved-variant cache of one connection.
const DefaultCacheSize = 256

// Resolved is the immutable field list selected for one
// (kind, version, discriminant) triple.
type Resolved struct {
	Variant *Variant
	Version int32
	// Case is empty when no discriminant was considered.
	Case string
	plan *plan
}

// Fields returns the resolved fields in wire order.
func (r *Resolved) Fields() []*Field {
	return r.plan.fields
}

type cacheKey struct {
	kind    Kind
	version int32
	disc    string
	hasDisc bool
}

// Resolver picks variants from a Table and memoizes the result. One resolver
// belongs to one connection.
type Resolver struct {
	table *Table
	cache *lru.Cache
}

func NewResolver(table *Table, size int) (*Resolver, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Resolver{table: table, cache: cache}, nil
}

func (r *Resolver) Table() *Table {
	return r.table
}

// Resolve selects the variant of kind for version. For polymorphic variants
// the result holds only the base fields and the discriminant.
func (r *Resolver) Resolve(kind Kind, version int32) (*Resolved, error) {
	key := cacheKey{kind: kind, version: version}
	if v, ok := r.cache.Get(key); ok {
		return v.(*Resolved), nil
	}
	variant, err := r.table.Lookup(kind, version)
	if err != nil {
		return nil, err
	}
	res := &Resolved{Variant: variant, Version: version, plan: variant.Schema.base}
	r.cache.Add(key, res)
	return res, nil
}

// ResolveCase selects the case of a polymorphic variant by discriminant.
func (r *Resolver) ResolveCase(kind Kind, version int32, disc string) (*Resolved, error) {
	key := cacheKey{kind: kind, version: version, disc: disc, hasDisc: true}
	if v, ok := r.cache.Get(key); ok {
		return v.(*Resolved), nil
	}
	variant, err := r.table.Lookup(kind, version)
	if err != nil {
		return nil, err
	}
	s := variant.Schema
	if s.Poly == nil {
		res := &Resolved{Variant: variant, Version: version, plan: s.base}
		r.cache.Add(key, res)
		return res, nil
	}
	caseKey, p, ok := s.selectCase(disc)
	if !ok {
		return nil, &Error{Class: ErrUnsupportedVariant, Kind: kind, Version: version, Field: s.Poly.Tag.Name, Discriminant: disc}
	}
	res := &Resolved{Variant: variant, Version: version, Case: caseKey, plan: p}
	r.cache.Add(key, res)
	return res, nil
}
