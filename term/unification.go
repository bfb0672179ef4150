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

package term

import (
	"fmt"
	"strings"
)

// MergeFn combines the bookkeeping values of two term classes that are
// being unioned. Union always passes the surviving (lower-numbered)
// root's value first, so a MergeFn need not be commutative: flatten's
// mergeOptVar, for one, keeps its first argument when that is set.
type MergeFn[T any] func(a, b T) T

// Unification is a union-find over term ids of one Universe, carrying
// one bookkeeping value of type T per equivalence class, and able to
// re-close itself under congruence: whenever two Application terms
// share a function symbol and their arguments are pairwise equivalent,
// the terms themselves are unioned too. This mirrors the union-find
// that unionfind.UnionFind performs over ast.BaseTerm in the teacher,
// generalized to the flattener's three distinct bookkeeping overlays
// (FlatName, Added, Constrained; see package flatten).
type Unification[T any] struct {
	universe *Universe
	parent   []Term
	data     []T
	merge    MergeFn[T]
}

// NewUnification returns a Unification where every term starts in its
// own singleton class holding the corresponding entry of initial.
func NewUnification[T any](u *Universe, initial []T, merge MergeFn[T]) *Unification[T] {
	if len(initial) != u.Len() {
		panic("term: initial data length must match universe length")
	}
	parent := make([]Term, u.Len())
	for i := range parent {
		parent[i] = Term(i)
	}
	return &Unification[T]{
		universe: u,
		parent:   parent,
		data:     append([]T(nil), initial...),
		merge:    merge,
	}
}

// Find returns the canonical representative of t's class, compressing
// the path to it.
func (uf *Unification[T]) Find(t Term) Term {
	for uf.parent[t] != t {
		uf.parent[t] = uf.parent[uf.parent[t]]
		t = uf.parent[t]
	}
	return t
}

// Get returns the bookkeeping value attached to t's class.
func (uf *Unification[T]) Get(t Term) T {
	return uf.data[uf.Find(t)]
}

// Set overwrites the bookkeeping value attached to t's class.
func (uf *Unification[T]) Set(t Term, v T) {
	uf.data[uf.Find(t)] = v
}

// Union merges a's and b's classes, combining their bookkeeping values
// with merge. The lower-numbered root always survives, so the result is
// independent of call order (two different orders of the same set of
// unions reach the same final roots).
func (uf *Unification[T]) Union(a, b Term) {
	ra, rb := uf.Find(a), uf.Find(b)
	if ra == rb {
		return
	}
	if ra > rb {
		ra, rb = rb, ra
	}
	uf.data[ra] = uf.merge(uf.data[ra], uf.data[rb])
	uf.parent[rb] = ra
}

// CongruenceClose unions any two Application terms that share a
// function symbol and whose arguments are already pairwise equivalent,
// repeating until no more merges are possible (merging two terms can
// make their parents' arguments equivalent too).
func (uf *Unification[T]) CongruenceClose() {
	for {
		groups := make(map[string][]Term)
		for i := 0; i < uf.universe.Len(); i++ {
			t := Term(i)
			d := uf.universe.Data(t)
			if d.Kind != KindApplication {
				continue
			}
			groups[uf.congruenceKey(d)] = append(groups[uf.congruenceKey(d)], t)
		}
		changed := false
		for _, members := range groups {
			for i := 1; i < len(members); i++ {
				if uf.Find(members[0]) != uf.Find(members[i]) {
					uf.Union(members[0], members[i])
					changed = true
				}
			}
		}
		if !changed {
			return
		}
	}
}

func (uf *Unification[T]) congruenceKey(d Data) string {
	var sb strings.Builder
	sb.WriteString(d.Func)
	for _, a := range d.Args {
		fmt.Fprintf(&sb, "/%d", uf.Find(a))
	}
	return sb.String()
}
