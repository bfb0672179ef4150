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

import "testing"

func orBool(a, b bool) bool { return a || b }

func TestUnionFindBasic(t *testing.T) {
	u := NewUniverse()
	a := u.Add(Variable("a"), "obj")
	b := u.Add(Variable("b"), "obj")
	c := u.Add(Variable("c"), "obj")

	uf := NewUnification(u, make([]bool, u.Len()), orBool)
	if uf.Find(a) == uf.Find(b) {
		t.Fatal("a and b start in the same class")
	}
	uf.Union(a, b)
	if uf.Find(a) != uf.Find(b) {
		t.Fatal("a and b were not merged by Union")
	}
	if uf.Find(a) == uf.Find(c) {
		t.Fatal("c was unexpectedly merged")
	}
}

func TestUnionFindMergeCommutativity(t *testing.T) {
	u := NewUniverse()
	a := u.Add(Variable("a"), "obj")
	b := u.Add(Variable("b"), "obj")

	initial := []bool{true, false}
	uf1 := NewUnification(u, initial, orBool)
	uf1.Union(a, b)

	uf2 := NewUnification(u, initial, orBool)
	uf2.Union(b, a)

	if uf1.Get(a) != uf2.Get(a) {
		t.Errorf("Union order changed the merged value: %v vs %v", uf1.Get(a), uf2.Get(a))
	}
	if uf1.Find(a) != uf2.Find(a) {
		t.Errorf("Union order changed the surviving root")
	}
}

func TestCongruenceClose(t *testing.T) {
	u := NewUniverse()
	a := u.Add(Variable("a"), "obj")
	b := u.Add(Variable("b"), "obj")
	fa := u.Add(Application("f", a), "obj")
	fb := u.Add(Application("f", b), "obj")

	uf := NewUnification(u, make([]bool, u.Len()), orBool)
	uf.CongruenceClose()
	if uf.Find(fa) == uf.Find(fb) {
		t.Fatal("f(a) and f(b) merged before a and b were unified")
	}

	uf.Union(a, b)
	uf.CongruenceClose()
	if uf.Find(fa) != uf.Find(fb) {
		t.Error("f(a) and f(b) should merge once a = b by congruence")
	}
}

func TestCongruenceCloseChained(t *testing.T) {
	// f(g(a)) and f(g(b)) should merge transitively once a = b: g(a) =
	// g(b) by congruence, then f(g(a)) = f(g(b)) by congruence again.
	u := NewUniverse()
	a := u.Add(Variable("a"), "obj")
	b := u.Add(Variable("b"), "obj")
	ga := u.Add(Application("g", a), "obj")
	gb := u.Add(Application("g", b), "obj")
	fga := u.Add(Application("f", ga), "obj")
	fgb := u.Add(Application("f", gb), "obj")

	uf := NewUnification(u, make([]bool, u.Len()), orBool)
	uf.Union(a, b)
	uf.CongruenceClose()

	if uf.Find(fga) != uf.Find(fgb) {
		t.Error("f(g(a)) and f(g(b)) should merge transitively")
	}
}
