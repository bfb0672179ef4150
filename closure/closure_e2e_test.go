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

// Package closure_test exercises Model.Close against a compiled,
// multi-atom join rule end to end -- the scenarios in model_test.go
// build ModelSpecs by hand and never drive a real semi-naive join
// through solve, so they cannot see a broken relation-query index
// lookup.
package closure_test

import (
	"testing"

	"github.com/eqlogc/eqc/closure"
	"github.com/eqlogc/eqc/compiler"
	"github.com/eqlogc/eqc/symtab"
	"github.com/eqlogc/eqc/term"
	"github.com/eqlogc/eqc/theory"
)

// composableTheory compiles scenario S2:
// signature(x, f, y) & signature(y, g, z) =>
//
//	comp(g, f)! & signature(x, comp(g, f), z).
//
// The two signature premises share y, so firing this rule requires a
// QueryRelation lookup on signature bound at position 0 by a value
// produced from the first premise's match -- exactly the join shape
// the broken OnlyDirty-keyed index lookup (and an unsorted bound-prefix
// scan) would miss or scramble.
func composableTheory() *theory.Theory {
	u := term.NewUniverse()
	x := u.Add(term.Variable("x"), "obj")
	f := u.Add(term.Variable("f"), "mor")
	y := u.Add(term.Variable("y"), "obj")
	g := u.Add(term.Variable("g"), "mor")
	z := u.Add(term.Variable("z"), "obj")
	gf := u.Add(term.Application("comp", g, f), "mor")

	return &theory.Theory{
		Sorts: []string{"obj", "mor"},
		Funcs: []symtab.FuncDecl{{Name: "comp", Dom: []string{"mor", "mor"}, Cod: "mor"}},
		Preds: []symtab.PredDecl{{Name: "signature", Dom: []string{"obj", "mor", "obj"}}},
		Rules: []*theory.Rule{{
			Name: "composable",
			Sequent: &term.Sequent{
				Universe: u,
				Premise: []term.Atom{
					term.Predicate("signature", x, f, y),
					term.Predicate("signature", y, g, z),
				},
				Conclusion: []term.Atom{
					term.Defined(gf, "mor"),
					term.Predicate("signature", x, gf, z),
				},
			},
		}},
	}
}

// TestCloseDerivesJoinedComposite saturates a model seeded with
// signature(a, f, b) and signature(b, g, c) and checks that close()
// derives comp(g, f) and signature(a, comp(g, f), c): the join rule
// must fire even though the second signature premise's match is bound
// entirely from the first's result, with no other query preceding it.
func TestCloseDerivesJoinedComposite(t *testing.T) {
	spec, err := compiler.Compile(composableTheory())
	if err != nil {
		t.Fatalf("compiler.Compile() error = %v", err)
	}
	m := closure.New(spec)

	a := m.NewS("obj")
	b := m.NewS("obj")
	c := m.NewS("obj")
	f := m.NewS("mor")
	g := m.NewS("mor")
	m.InsertR("signature", a, f, b)
	m.InsertR("signature", b, g, c)

	m.Close()

	gf := m.DefineF("comp", g, f)
	if !m.HoldsR("signature", a, gf, c) {
		t.Errorf("HoldsR(signature, a, comp(g,f), c) = false after Close(), want true")
	}

	found := false
	for _, tup := range m.IterR("signature") {
		if tup[0] == m.RootS("obj", a) && tup[2] == m.RootS("obj", c) {
			found = true
			if tup[1] != m.RootS("mor", gf) {
				t.Errorf("signature(a, ?, c) stored morphism %v, want comp(g,f) = %v", tup[1], m.RootS("mor", gf))
			}
		}
	}
	if !found {
		t.Error("no signature(a, _, c) tuple found after Close(); the join rule never fired")
	}
}

// TestCloseDerivesJoinWithThirdPartyTuple checks that the join fires
// for every matching pair when a third signature tuple chains on from
// c: both comp(g,f) from a to c and comp(h,g) from b to d are derived.
func TestCloseDerivesJoinWithThirdPartyTuple(t *testing.T) {
	spec, err := compiler.Compile(composableTheory())
	if err != nil {
		t.Fatalf("compiler.Compile() error = %v", err)
	}
	m := closure.New(spec)

	a := m.NewS("obj")
	b := m.NewS("obj")
	c := m.NewS("obj")
	d := m.NewS("obj")
	f := m.NewS("mor")
	g := m.NewS("mor")
	h := m.NewS("mor")
	m.InsertR("signature", a, f, b)
	m.InsertR("signature", b, g, c)
	m.InsertR("signature", c, h, d) // pairs with (b, g, c) as a second match

	m.Close()

	gf := m.DefineF("comp", g, f)
	hg := m.DefineF("comp", h, g)
	if !m.HoldsR("signature", a, gf, c) {
		t.Error("HoldsR(signature, a, comp(g,f), c) = false after Close(), want true")
	}
	if !m.HoldsR("signature", b, hg, d) {
		t.Error("HoldsR(signature, b, comp(h,g), d) = false after Close(), want true")
	}
}
