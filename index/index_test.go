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

package index

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fixedArity map[string]int

func (f fixedArity) Arity(name string) (int, bool) {
	a, ok := f[name]
	return a, ok
}

func proj(positions ...int) map[int]bool {
	m := make(map[int]bool, len(positions))
	for _, p := range positions {
		m[p] = true
	}
	return m
}

// TestSelectChain is scenario S5: relation R, arity 3, observed
// projection sets {}, {0}, {0,1}, all with empty diagonals and
// only_dirty=false. Select always also adds the {} all_dirty baseline
// (spec §4.3), which cannot share a chain with the only_dirty=false
// specs, so the minimal cover is two chains: the {},{0},{0,1} chain
// (order=[0,1,2]) and the singleton all_dirty chain (also [0,1,2], but
// a distinct index since it serves a different OnlyDirty).
func TestSelectChain(t *testing.T) {
	shapes := map[string][]QuerySpec{
		"R": {
			{Projections: proj()},
			{Projections: proj(0)},
			{Projections: proj(0, 1)},
		},
	}
	sel := Select(fixedArity{"R": 3}, []string{"R"}, shapes)

	indices := sel.Indices("R")
	if len(indices) != 2 {
		t.Fatalf("Indices(R) = %d indices, want 2 (the {},{0},{0,1} chain plus the singleton all_dirty chain); got %+v", len(indices), indices)
	}
	for _, q := range shapes["R"] {
		ix, ok := sel.IndexFor("R", q)
		if !ok {
			t.Fatalf("IndexFor(R, %+v) not found", q)
		}
		if !ix.CanServe(q) {
			t.Errorf("chosen index %+v cannot serve its own query shape %+v", ix, q)
		}
		want := IndexSpec{Order: []int{0, 1, 2}}
		if diff := cmp.Diff(want, ix); diff != "" {
			t.Errorf("synthesized IndexSpec mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestSelectIncompatibleDiagonalsSplitChains(t *testing.T) {
	shapes := map[string][]QuerySpec{
		"R": {
			{Projections: proj(0)},
			{Projections: proj(0), Diagonals: [][]int{{1, 2}}},
		},
	}
	sel := Select(fixedArity{"R": 3}, []string{"R"}, shapes)
	indices := sel.Indices("R")
	if len(indices) < 2 {
		t.Fatalf("Indices(R) = %d, want at least 2 (incompatible diagonals cannot share a chain)", len(indices))
	}
}

func TestCanServeRequiresProjectionPrefix(t *testing.T) {
	ix := IndexSpec{Order: []int{2, 0, 1}}
	if !ix.CanServe(QuerySpec{Projections: proj(2)}) {
		t.Error("CanServe({2}) = false, want true: {2} is a prefix of [2,0,1]")
	}
	if ix.CanServe(QuerySpec{Projections: proj(0)}) {
		t.Error("CanServe({0}) = true, want false: {0} is not a prefix of [2,0,1]")
	}
	if !ix.CanServe(QuerySpec{Projections: proj(2, 0)}) {
		t.Error("CanServe({2,0}) = false, want true: {2,0} is a prefix of [2,0,1]")
	}
}

func TestLeRestrictive(t *testing.T) {
	small := QuerySpec{Projections: proj(0)}
	big := QuerySpec{Projections: proj(0, 1)}
	if !small.LeRestrictive(big) {
		t.Error("{0}.LeRestrictive({0,1}) = false, want true")
	}
	if big.LeRestrictive(small) {
		t.Error("{0,1}.LeRestrictive({0}) = true, want false")
	}
	dirty := QuerySpec{Projections: proj(0), OnlyDirty: true}
	if small.LeRestrictive(dirty) {
		t.Error("specs differing in OnlyDirty should never compare restrictive")
	}
}
