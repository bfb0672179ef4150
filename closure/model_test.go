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
	"testing"

	"github.com/eqlogc/eqc/flatten"
	"github.com/eqlogc/eqc/index"
	"github.com/eqlogc/eqc/llam"
)

// unaryFuncSpec builds a ModelSpec for a single function of one sort to
// itself (e.g. f: obj -> obj), enough to exercise functionality
// enforcement and the basic Model lifecycle without a compiler.Compile
// round-trip.
func unaryFuncSpec(name, sort string) *ModelSpec {
	spec := &ModelSpec{
		Sorts:     []string{sort},
		Relations: []RelationSpec{{Name: name, Kind: KindFunction, Dom: []string{sort}, Cod: sort}},
	}
	spec.Indices = index.Select(spec, []string{name}, map[string][]index.QuerySpec{})
	return spec
}

// TestFunctionalityEnforcement is scenario S6: in a model containing
// f(a) = b and f(a') = c, calling equate_S(a, a'); close() must yield
// are_equal_S(b, c) = true, even with no rules at all -- functionality
// is a built-in closure step (spec §9), not a compiled rule.
func TestFunctionalityEnforcement(t *testing.T) {
	spec := unaryFuncSpec("f", "obj")
	m := New(spec)

	a := m.NewS("obj")
	aPrime := m.NewS("obj")
	b := m.NewS("obj")
	c := m.NewS("obj")
	m.InsertR("f", a, b)
	m.InsertR("f", aPrime, c)

	m.EquateS("obj", a, aPrime)
	m.Close()

	if !m.AreEqualS("obj", b, c) {
		t.Error("AreEqualS(b, c) = false after equate_S(a, a') and close(), want true")
	}
}

func TestInsertRIdempotent(t *testing.T) {
	spec := unaryFuncSpec("f", "obj")
	m := New(spec)
	a := m.NewS("obj")
	b := m.NewS("obj")
	m.InsertR("f", a, b)
	m.InsertR("f", a, b)
	if got := len(m.IterR("f")); got != 1 {
		t.Errorf("IterR(f) has %d tuples after inserting the same tuple twice, want 1", got)
	}
}

func TestDefineFReturnsSameElement(t *testing.T) {
	spec := unaryFuncSpec("f", "obj")
	m := New(spec)
	a := m.NewS("obj")
	r1 := m.DefineF("f", a)
	r2 := m.DefineF("f", a)
	if r1 != r2 {
		t.Errorf("DefineF(f, a) returned %v then %v, want the same element both times", r1, r2)
	}
}

func TestCloseIdempotent(t *testing.T) {
	spec := unaryFuncSpec("f", "obj")
	m := New(spec)
	a := m.NewS("obj")
	aPrime := m.NewS("obj")
	b := m.NewS("obj")
	c := m.NewS("obj")
	m.InsertR("f", a, b)
	m.InsertR("f", aPrime, c)
	m.EquateS("obj", a, aPrime)
	m.Close()

	before := len(m.IterR("f"))
	m.Close()
	after := len(m.IterR("f"))
	if before != after {
		t.Errorf("a second Close() changed relation f's tuple count: %d -> %d", before, after)
	}
}

// TestCloseUntilStopsEarly checks that close_until's predicate is
// evaluated at safe points and halts the loop as soon as it holds.
func TestCloseUntilStopsEarly(t *testing.T) {
	spec := unaryFuncSpec("f", "obj")
	m := New(spec)
	a := m.NewS("obj")
	b := m.NewS("obj")
	m.InsertR("f", a, b)

	ran := false
	stopped := m.CloseUntil(func(*Model) bool {
		ran = true
		return true
	})
	if !stopped {
		t.Error("CloseUntil() = false, want true: predicate returns true immediately")
	}
	if !ran {
		t.Error("predicate was never evaluated")
	}
}

// A rule with no scanning queries at all (a bare fact) must fire
// exactly once across a close(), gated by empty_join_is_dirty.
func TestEmptyJoinFiresOnce(t *testing.T) {
	spec := &ModelSpec{
		Sorts:     []string{"obj"},
		Relations: []RelationSpec{{Name: "p", Kind: KindPredicate}},
	}
	spec.Indices = index.Select(spec, []string{"p"}, map[string][]index.QuerySpec{})
	spec.Rules = []RuleSpec{{
		Name: "bare-fact",
		QueryAction: &llam.QueryAction{
			Actions: []llam.Action{{Kind: llam.ActionAddTuple, Rel: "p", RelArgs: []flatten.Var{}}},
		},
	}}
	m := New(spec)
	m.Close()
	if got := len(m.IterR("p")); got != 1 {
		t.Errorf("IterR(p) has %d tuples, want 1 (the nullary fact p())", got)
	}
}
