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

import "sort"

// Element identifies one member of a sort's domain. Elements are
// allocated densely starting at 0 by new_S.
type Element int

// sortState is the per-sort bookkeeping the closure scheme threads
// through equate/canonicalize (spec §4.4.4/§4.4.5): a weighted
// union-find plus the all/dirty/uprooted sets it maintains alongside.
type sortState struct {
	name    string
	parent  []Element
	weight  []int
	all     map[Element]bool
	dirty   map[Element]bool
	uprooted []Element
}

func newSortState(name string) *sortState {
	return &sortState{
		name:  name,
		all:   make(map[Element]bool),
		dirty: make(map[Element]bool),
	}
}

func (s *sortState) newElement() Element {
	el := Element(len(s.parent))
	s.parent = append(s.parent, el)
	s.weight = append(s.weight, 0)
	s.all[el] = true
	s.dirty[el] = true
	return el
}

// root returns the canonical representative of el's equivalence class,
// path-compressing along the way.
func (s *sortState) root(el Element) Element {
	if int(el) >= len(s.parent) {
		return el
	}
	for s.parent[el] != el {
		s.parent[el] = s.parent[s.parent[el]]
		el = s.parent[el]
	}
	return el
}

func (s *sortState) areEqual(a, b Element) bool { return s.root(a) == s.root(b) }

// equate unions a and b, the heavier element (by tuple-reference
// weight) surviving as root so canonicalize rewrites fewer tuples
// (spec §4.4.5). Returns the child that was uprooted, or -1 if a and b
// were already equal.
func (s *sortState) equate(a, b Element) Element {
	a, b = s.root(a), s.root(b)
	if a == b {
		return -1
	}
	root, child := a, b
	if s.weight[a] < s.weight[b] {
		root, child = b, a
	}
	s.parent[child] = root
	delete(s.all, child)
	delete(s.dirty, child)
	s.uprooted = append(s.uprooted, child)
	return child
}

func (s *sortState) isDirty() bool { return len(s.dirty) > 0 }

func (s *sortState) dropDirt() { s.dirty = make(map[Element]bool) }

// iter returns the sort's elements (canonical roots only) in a
// deterministic order, restricted to dirty if onlyDirty.
func (s *sortState) iter(onlyDirty bool) []Element {
	set := s.all
	if onlyDirty {
		set = s.dirty
	}
	out := make([]Element, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
