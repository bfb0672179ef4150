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

package closure

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eqlogc/eqc/index"
)

// Tuple is a row of element ids, one per position of a relation's
// arity.
type Tuple []Element

func (t Tuple) key() string {
	var sb strings.Builder
	for _, e := range t {
		fmt.Fprintf(&sb, "%d,", e)
	}
	return sb.String()
}

// sortedIndex is one materialized IndexSpec: the relation's tuples,
// stored as a sorted slice keyed by the index's position order so that
// any query whose bound positions form a prefix of that order can
// binary-search into it (spec §4.3's "single sorted index" rationale).
type sortedIndex struct {
	spec index.IndexSpec
	rows []Tuple // each row permuted into spec.Order
}

func permute(t Tuple, order []int) Tuple {
	out := make(Tuple, len(order))
	for i, p := range order {
		out[i] = t[p]
	}
	return out
}

func unpermute(row Tuple, order []int, width int) Tuple {
	out := make(Tuple, width)
	for i, p := range order {
		out[p] = row[i]
	}
	return out
}

func (ix *sortedIndex) insert(t Tuple) {
	row := permute(t, ix.spec.Order)
	i := sort.Search(len(ix.rows), func(i int) bool { return !rowLess(ix.rows[i], row) })
	if i < len(ix.rows) && rowEqual(ix.rows[i], row) {
		return
	}
	ix.rows = append(ix.rows, nil)
	copy(ix.rows[i+1:], ix.rows[i:])
	ix.rows[i] = row
}

func rowLess(a, b Tuple) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func rowEqual(a, b Tuple) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// scan returns every row whose bound prefix positions match bound, in
// index order, unpermuted back to relation argument order.
func (ix *sortedIndex) scan(width int, bound map[int]Element) []Tuple {
	lo, hi := 0, len(ix.rows)
	permuted := permuteBound(bound, ix.spec.Order)
	// Rows are sorted lexicographically by index position, so the prefix
	// binary search below is only valid when positions are narrowed in
	// ascending order; ranging over permuted directly would visit them in
	// random map order.
	positions := make([]int, 0, len(permuted))
	for pos := range permuted {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	for _, pos := range positions {
		v := permuted[pos]
		lo = lo + sort.Search(hi-lo, func(i int) bool { return ix.rows[lo+i][pos] >= v })
		hi = lo + sort.Search(hi-lo, func(i int) bool { return ix.rows[lo+i][pos] > v })
		if lo >= hi {
			break
		}
	}
	out := make([]Tuple, 0, hi-lo)
	for _, row := range ix.rows[lo:hi] {
		out = append(out, unpermute(row, ix.spec.Order, width))
	}
	return out
}

func permuteBound(bound map[int]Element, order []int) map[int]Element {
	out := make(map[int]Element, len(bound))
	for pos, orig := range order {
		if v, ok := bound[orig]; ok {
			out[pos] = v
		}
	}
	return out
}

// table is a relation's full storage: one sortedIndex per IndexSpec the
// index package selected for it, plus a dirty set (read by scans that
// ask for dirty tuples only, and cleared by drop_dirt).
type table struct {
	name    string
	arity   []string // sort per position
	indices []*sortedIndex
	dirty   map[string]bool
}

// newTable materializes one sortedIndex per distinct (Order,
// Diagonals) shape among specs. OnlyDirty is not a storage dimension
// here: a "dirty" view is a filter over a table's dirty set applied at
// scan time (see table.dirty), not a separately maintained index, so
// an all/all_dirty IndexSpec pair sharing the same Order collapses
// onto one sortedIndex.
func newTable(name string, arity []string, specs []index.IndexSpec) *table {
	t := &table{
		name:  name,
		arity: arity,
		dirty: make(map[string]bool),
	}
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		key := shapeKey(spec)
		if seen[key] {
			continue
		}
		seen[key] = true
		t.indices = append(t.indices, &sortedIndex{spec: spec})
	}
	return t
}

func shapeKey(spec index.IndexSpec) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%v|", spec.Order)
	for _, g := range spec.Diagonals {
		fmt.Fprintf(&sb, "%v,", g)
	}
	return sb.String()
}

// find returns the materialized index matching spec's Order and
// Diagonals, ignoring OnlyDirty (see newTable).
func (t *table) find(spec index.IndexSpec) *sortedIndex {
	key := shapeKey(spec)
	for _, ix := range t.indices {
		if shapeKey(ix.spec) == key {
			return ix
		}
	}
	return nil
}

// weight is the teacher's WEIGHT constant for a relation: one unit of
// element-reference upkeep per index, per argument (spec §4.4.4's
// weight bookkeeping, mirrored from rust_gen.rs's write_table_weight).
func (t *table) weight() int { return len(t.arity) * len(t.indices) }

// contains reports whether tup (already canonicalized) is present.
func (t *table) contains(tup Tuple) bool {
	if len(t.indices) == 0 {
		return false
	}
	ix := t.indices[0]
	bound := make(map[int]Element, len(tup))
	for i, e := range tup {
		bound[i] = e
	}
	return len(ix.scan(len(t.arity), bound)) > 0
}

// lookupGraph finds a stored tuple whose first len(domArgs) positions
// equal domArgs, used by define_F's function-graph lookup (spec
// §4.4.6). Prefers an index whose Order is exactly the natural prefix
// 0..len(domArgs)-1 when one was selected; otherwise falls back to a
// linear scan of the full tuple set, since the index-selection chains
// are not guaranteed to produce that exact shape for every function.
func (t *table) lookupGraph(domArgs []Element) (Tuple, bool) {
	for _, ix := range t.indices {
		if len(ix.spec.Order) < len(domArgs) {
			continue
		}
		isPrefix := true
		for i, p := range ix.spec.Order[:len(domArgs)] {
			if p != i {
				isPrefix = false
				break
			}
		}
		if !isPrefix {
			continue
		}
		bound := make(map[int]Element, len(domArgs))
		for i, e := range domArgs {
			bound[i] = e
		}
		rows := ix.scan(len(t.arity), bound)
		if len(rows) > 0 {
			return rows[0], true
		}
		return nil, false
	}

	for _, row := range t.all(false) {
		match := true
		for i, e := range domArgs {
			if row[i] != e {
				match = false
				break
			}
		}
		if match {
			return row, true
		}
	}
	return nil, false
}

// lookupGraphAll finds every stored tuple whose first len(domArgs)
// positions equal domArgs (spec §4.4's functionality enforcement: a
// function may temporarily hold more than one tuple for the same
// domain prefix before the codomains are equated).
func (t *table) lookupGraphAll(domArgs []Element) []Tuple {
	for _, ix := range t.indices {
		if len(ix.spec.Order) < len(domArgs) {
			continue
		}
		isPrefix := true
		for i, p := range ix.spec.Order[:len(domArgs)] {
			if p != i {
				isPrefix = false
				break
			}
		}
		if !isPrefix {
			continue
		}
		bound := make(map[int]Element, len(domArgs))
		for i, e := range domArgs {
			bound[i] = e
		}
		return ix.scan(len(t.arity), bound)
	}

	var out []Tuple
	for _, row := range t.all(false) {
		match := true
		for i, e := range domArgs {
			if row[i] != e {
				match = false
				break
			}
		}
		if match {
			out = append(out, row)
		}
	}
	return out
}

// insert adds tup to every materialized index, returning true if it
// was new.
func (t *table) insert(tup Tuple) bool {
	if t.contains(tup) {
		return false
	}
	for _, ix := range t.indices {
		ix.insert(tup)
	}
	t.dirty[tup.key()] = true
	return true
}

// drainWithElement removes and returns every tuple mentioning e from
// every index (spec §4.4.4's per-element drain during canonicalize).
func (t *table) drainWithElement(e Element) []Tuple {
	var out []Tuple
	width := len(t.arity)
	for _, ix := range t.indices {
		var kept []Tuple
		for _, row := range ix.rows {
			full := unpermute(row, ix.spec.Order, width)
			mentions := false
			for _, v := range full {
				if v == e {
					mentions = true
					break
				}
			}
			if mentions {
				out = append(out, full)
			} else {
				kept = append(kept, row)
			}
		}
		ix.rows = kept
	}
	return dedupTuples(out)
}

func dedupTuples(ts []Tuple) []Tuple {
	seen := make(map[string]bool, len(ts))
	var out []Tuple
	for _, t := range ts {
		k := t.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}

func (t *table) dropDirt() { t.dirty = make(map[string]bool) }

// all returns the full tuple set, unpermuted to argument order, from
// the first index (every index holds the same set of tuples).
func (t *table) all(onlyDirty bool) []Tuple {
	if len(t.indices) == 0 {
		return nil
	}
	ix := t.indices[0]
	width := len(t.arity)
	out := make([]Tuple, 0, len(ix.rows))
	for _, row := range ix.rows {
		full := unpermute(row, ix.spec.Order, width)
		if onlyDirty && !t.dirty[full.key()] {
			continue
		}
		out = append(out, full)
	}
	return out
}
