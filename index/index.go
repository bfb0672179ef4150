// Copyright 2022 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package index selects, per relation, a minimal set of sorted indices
// able to serve every query shape the compiled program needs (spec
// §4.3). It is the third stage of the pipeline.
package index

import (
	"fmt"
	"sort"
	"strings"
)

// diagonalSet is a canonical, comparable representation of a set of
// positions-that-must-be-equal sets: each inner slice sorted, the
// outer slice sorted lexicographically. Two QuerySpecs/IndexSpecs with
// the same diagonals compare equal regardless of construction order.
type diagonalSet [][]int

func newDiagonalSet(groups [][]int) diagonalSet {
	out := make(diagonalSet, len(groups))
	for i, g := range groups {
		gc := append([]int(nil), g...)
		sort.Ints(gc)
		out[i] = gc
	}
	sort.Slice(out, func(i, j int) bool { return lessIntSlice(out[i], out[j]) })
	return out
}

func lessIntSlice(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func (d diagonalSet) key() string {
	var sb strings.Builder
	for _, g := range d {
		for _, p := range g {
			fmt.Fprintf(&sb, "%d,", p)
		}
		sb.WriteByte(';')
	}
	return sb.String()
}

func (d diagonalSet) equal(o diagonalSet) bool { return d.key() == o.key() }

// QuerySpec describes one observed query shape against a relation:
// which positions are already bound (projections), which sets of
// positions must hold equal values (diagonals), and whether only the
// dirty subset of tuples is being scanned.
type QuerySpec struct {
	Projections map[int]bool
	Diagonals   [][]int
	OnlyDirty   bool
}

// All is the QuerySpec every relation is always queried with (a full
// unfiltered scan).
func All() QuerySpec { return QuerySpec{Projections: map[int]bool{}, OnlyDirty: false} }

// AllDirty is the QuerySpec for a full scan restricted to dirty tuples.
func AllDirty() QuerySpec { return QuerySpec{Projections: map[int]bool{}, OnlyDirty: true} }

func (q QuerySpec) projSet() []int {
	ps := make([]int, 0, len(q.Projections))
	for p := range q.Projections {
		ps = append(ps, p)
	}
	sort.Ints(ps)
	return ps
}

func (q QuerySpec) diag() diagonalSet { return newDiagonalSet(q.Diagonals) }

func (q QuerySpec) key() string {
	var sb strings.Builder
	for _, p := range q.projSet() {
		fmt.Fprintf(&sb, "%d,", p)
	}
	sb.WriteByte('|')
	sb.WriteString(q.diag().key())
	fmt.Fprintf(&sb, "|%v", q.OnlyDirty)
	return sb.String()
}

// LeRestrictive reports whether q is at most as restrictive as other:
// same diagonals, same only_dirty, and q's projections are a subset of
// other's (spec §3.4's restrictiveness partial order).
func (q QuerySpec) LeRestrictive(other QuerySpec) bool {
	if q.OnlyDirty != other.OnlyDirty || !q.diag().equal(other.diag()) {
		return false
	}
	for p := range q.Projections {
		if !other.Projections[p] {
			return false
		}
	}
	return true
}

// IndexSpec describes one realized index: a sorted set of tuples
// permuted by order, filtered by diagonals, restricted to dirty tuples
// if OnlyDirty.
type IndexSpec struct {
	Order     []int
	Diagonals [][]int
	OnlyDirty bool
}

func isPrefix(proj map[int]bool, order []int) bool {
	count := 0
	for _, p := range order {
		if !proj[p] {
			break
		}
		count++
	}
	return count == len(proj)
}

// CanServe reports whether this index can answer the given query:
// matching diagonals and only_dirty, and the query's projections form
// a prefix of the index's order (spec §3.4).
func (ix IndexSpec) CanServe(q QuerySpec) bool {
	if ix.OnlyDirty != q.OnlyDirty {
		return false
	}
	if !newDiagonalSet(ix.Diagonals).equal(q.diag()) {
		return false
	}
	return isPrefix(q.Projections, ix.Order)
}

// fromChain synthesizes a single IndexSpec from a chain of
// increasingly-restrictive QuerySpecs (spec §4.3 step 3): the chain's
// projection sets, interleaved with the empty set and the full
// position set, produce successive differences that are concatenated
// into the index's position order.
func fromChain(arity int, chain []QuerySpec) IndexSpec {
	full := make(map[int]bool, arity)
	for i := 0; i < arity; i++ {
		full[i] = true
	}

	bound := []map[int]bool{{}}
	for _, q := range chain {
		bound = append(bound, q.Projections)
	}
	bound = append(bound, full)

	var order []int
	seen := make(map[int]bool, arity)
	for i := 1; i < len(bound); i++ {
		prev, next := bound[i-1], bound[i]
		var diff []int
		for p := range next {
			if !prev[p] {
				diff = append(diff, p)
			}
		}
		sort.Ints(diff)
		for _, p := range diff {
			if !seen[p] {
				seen[p] = true
				order = append(order, p)
			}
		}
	}

	last := chain[len(chain)-1]
	return IndexSpec{Order: order, Diagonals: last.Diagonals, OnlyDirty: last.OnlyDirty}
}

// chains groups a set of query specs into the minimum number of chains
// the greedy algorithm below can find, each chain coverable by one
// IndexSpec.
//
// The greedy only ever appends a spec to the tail of an existing chain
// that it is comparable with; it never splices into the middle of a
// chain. This can miss an opportunity when a spec is comparable with
// an interior element but not the tail, producing more indices than
// strictly necessary. This mirrors the reference eqlog compiler's own
// known sub-optimality (Dilworth's theorem guarantees a
// minimum-size chain partition exists; computing it was judged not
// worth the added complexity — see spec §9's first Open Question).
func chains(specs []QuerySpec) [][]QuerySpec {
	ordered := append([]QuerySpec(nil), specs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Projections) < len(ordered[j].Projections)
	})

	var result [][]QuerySpec
	for _, spec := range ordered {
		placed := false
		for i := range result {
			tail := result[i][len(result[i])-1]
			if tail.LeRestrictive(spec) {
				result[i] = append(result[i], spec)
				placed = true
				break
			}
		}
		if !placed {
			result = append(result, []QuerySpec{spec})
		}
	}
	return result
}

// Selection maps a relation name and query spec to the index chosen to
// serve it.
type Selection struct {
	byRelation map[string]map[string]IndexSpec
	specsOf    map[string][]QuerySpec
}

// IndexFor returns the index chosen to serve the given query against
// relation rel, and whether one was found.
func (s *Selection) IndexFor(rel string, q QuerySpec) (IndexSpec, bool) {
	m, ok := s.byRelation[rel]
	if !ok {
		return IndexSpec{}, false
	}
	ix, ok := m[q.key()]
	return ix, ok
}

// Indices returns the distinct set of indices chosen for a relation, in
// a deterministic order (sorted by a string key built from Order, then
// Diagonals, then OnlyDirty).
func (s *Selection) Indices(rel string) []IndexSpec {
	seen := make(map[string]IndexSpec)
	for _, ix := range s.byRelation[rel] {
		seen[indexKey(ix)] = ix
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]IndexSpec, 0, len(keys))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	return out
}

// Relations returns the relation names with a non-empty selection, in
// sorted order.
func (s *Selection) Relations() []string {
	names := make([]string, 0, len(s.byRelation))
	for r := range s.byRelation {
		names = append(names, r)
	}
	sort.Strings(names)
	return names
}

func indexKey(ix IndexSpec) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%v|", ix.Order)
	sb.WriteString(newDiagonalSet(ix.Diagonals).key())
	fmt.Fprintf(&sb, "|%v", ix.OnlyDirty)
	return sb.String()
}

// RelationArity is the minimal per-relation shape information the
// selector needs: its tuple width.
type RelationArity interface {
	Arity(relation string) (int, bool)
}

// Select runs the index-selection algorithm (spec §4.3) over every
// relation's observed query shapes (queryShapes) plus {All, AllDirty}
// for every declared relation, producing a Selection.
func Select(arities RelationArity, relations []string, queryShapes map[string][]QuerySpec) *Selection {
	sel := &Selection{
		byRelation: make(map[string]map[string]IndexSpec),
		specsOf:    make(map[string][]QuerySpec),
	}
	for _, rel := range relations {
		specs := map[string]QuerySpec{
			All().key():      All(),
			AllDirty().key(): AllDirty(),
		}
		for _, q := range queryShapes[rel] {
			specs[q.key()] = q
		}
		ordered := make([]QuerySpec, 0, len(specs))
		for _, q := range specs {
			ordered = append(ordered, q)
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].key() < ordered[j].key() })
		sel.specsOf[rel] = ordered

		arity, ok := arities.Arity(rel)
		if !ok {
			continue
		}

		m := make(map[string]IndexSpec, len(ordered))
		for _, chain := range chains(ordered) {
			ix := fromChain(arity, chain)
			for _, q := range chain {
				m[q.key()] = ix
			}
		}
		sel.byRelation[rel] = m
	}
	return sel
}
