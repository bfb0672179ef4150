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

package compiler

import (
	"testing"

	"go.uber.org/multierr"

	"github.com/eqlogc/eqc/symtab"
	"github.com/eqlogc/eqc/term"
	"github.com/eqlogc/eqc/theory"
)

func categoryTheory() *theory.Theory {
	return &theory.Theory{
		Sorts: []string{"obj", "mor"},
		Funcs: []symtab.FuncDecl{{Name: "comp", Dom: []string{"mor", "mor"}, Cod: "mor"}},
		Preds: []symtab.PredDecl{{Name: "signature", Dom: []string{"obj", "mor", "obj"}}},
	}
}

func errorKinds(t *testing.T, err error) []ErrorKind {
	t.Helper()
	var kinds []ErrorKind
	for _, e := range multierr.Errors(err) {
		ce, ok := e.(*Error)
		if !ok {
			t.Fatalf("Validate() produced a non-*compiler.Error: %v (%T)", e, e)
		}
		kinds = append(kinds, ce.Kind)
	}
	return kinds
}

func hasKind(kinds []ErrorKind, want ErrorKind) bool {
	for _, k := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

// associativityRule is scenario S1:
// comp(h, comp(g, f)) ~> comp(comp(h, g), f), over sort mor.
func associativityRule() *theory.Rule {
	u := term.NewUniverse()
	h := u.Add(term.Variable("h"), "mor")
	g := u.Add(term.Variable("g"), "mor")
	f := u.Add(term.Variable("f"), "mor")
	gf := u.Add(term.Application("comp", g, f), "mor")
	hg := u.Add(term.Application("comp", h, g), "mor")
	hgf := u.Add(term.Application("comp", hg, f), "mor")
	hgf2 := u.Add(term.Application("comp", h, gf), "mor")
	return &theory.Rule{
		Name: "assoc",
		Sequent: &term.Sequent{
			Universe: u,
			Premise: []term.Atom{
				term.Defined(gf, "mor"),
				term.Defined(hgf, "mor"),
			},
			Conclusion: []term.Atom{
				term.Equal(hgf2, hgf),
			},
		},
	}
}

// composableRule is scenario S2:
// signature(x, f, y) & signature(y, g, z) => comp(g, f)! & signature(x, comp(g, f), z).
func composableRule() *theory.Rule {
	u := term.NewUniverse()
	x := u.Add(term.Variable("x"), "obj")
	f := u.Add(term.Variable("f"), "mor")
	y := u.Add(term.Variable("y"), "obj")
	g := u.Add(term.Variable("g"), "mor")
	z := u.Add(term.Variable("z"), "obj")
	gf := u.Add(term.Application("comp", g, f), "mor")
	return &theory.Rule{
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
	}
}

func TestValidateAcceptsWellFormedTheory(t *testing.T) {
	th := categoryTheory()
	th.Rules = []*theory.Rule{associativityRule(), composableRule()}
	if err := Validate(th); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidateVariableCase(t *testing.T) {
	u := term.NewUniverse()
	a := u.Add(term.Variable("Bad"), "obj")
	b := u.Add(term.Variable("bad2"), "obj")
	th := categoryTheory()
	th.Rules = []*theory.Rule{{
		Name: "r",
		Sequent: &term.Sequent{
			Universe:   u,
			Premise:    []term.Atom{term.Defined(a, "obj")},
			Conclusion: []term.Atom{term.Equal(a, b)},
		},
	}}
	kinds := errorKinds(t, Validate(th))
	if !hasKind(kinds, VariableCase) {
		t.Errorf("Validate() kinds = %v, want VariableCase", kinds)
	}
}

func TestValidateVariableOccursOnce(t *testing.T) {
	u := term.NewUniverse()
	a := u.Add(term.Variable("a"), "obj")
	lonely := u.Add(term.Variable("lonely"), "obj")
	th := categoryTheory()
	th.Rules = []*theory.Rule{{
		Name: "r",
		Sequent: &term.Sequent{
			Universe:   u,
			Premise:    []term.Atom{term.Defined(a, "obj"), term.Defined(lonely, "obj")},
			Conclusion: []term.Atom{term.Equal(a, a)},
		},
	}}
	kinds := errorKinds(t, Validate(th))
	if !hasKind(kinds, VariableOccursOnce) {
		t.Errorf("Validate() kinds = %v, want VariableOccursOnce", kinds)
	}
}

func TestValidateArityMismatch(t *testing.T) {
	u := term.NewUniverse()
	x := u.Add(term.Variable("x"), "obj")
	y := u.Add(term.Variable("y"), "obj")
	th := categoryTheory()
	th.Rules = []*theory.Rule{{
		Name: "r",
		Sequent: &term.Sequent{
			Universe:   u,
			Premise:    []term.Atom{term.Predicate("signature", x, y)}, // declared arity 3
			Conclusion: nil,
		},
	}}
	kinds := errorKinds(t, Validate(th))
	if !hasKind(kinds, ArityMismatch) {
		t.Errorf("Validate() kinds = %v, want ArityMismatch", kinds)
	}
}

func TestValidateUnknownSymbol(t *testing.T) {
	u := term.NewUniverse()
	x := u.Add(term.Variable("x"), "obj")
	y := u.Add(term.Variable("y"), "obj")
	th := categoryTheory()
	th.Rules = []*theory.Rule{{
		Name: "r",
		Sequent: &term.Sequent{
			Universe:   u,
			Premise:    []term.Atom{term.Predicate("nonesuch", x, y)},
			Conclusion: nil,
		},
	}}
	kinds := errorKinds(t, Validate(th))
	if !hasKind(kinds, UnknownSymbol) {
		t.Errorf("Validate() kinds = %v, want UnknownSymbol", kinds)
	}
}

func TestValidateDefinedInConclusionAsApplication(t *testing.T) {
	u := term.NewUniverse()
	f := u.Add(term.Variable("f"), "mor")
	g := u.Add(term.Variable("g"), "mor")
	gf := u.Add(term.Application("comp", g, f), "mor")
	th := categoryTheory()
	th.Rules = []*theory.Rule{{
		Name: "r",
		Sequent: &term.Sequent{
			Universe:   u,
			Premise:    []term.Atom{term.Defined(f, "mor"), term.Defined(g, "mor")},
			Conclusion: []term.Atom{term.Defined(gf, "mor")},
		},
	}}
	kinds := errorKinds(t, Validate(th))
	if !hasKind(kinds, DefinedInConclusionAsApplication) {
		t.Errorf("Validate() kinds = %v, want DefinedInConclusionAsApplication", kinds)
	}
}

// TestCompileEndToEnd runs the whole pipeline over the two category-theory
// scenario rules (S1, S2) and checks the resulting ModelSpec's shape: both
// relations declared, both rules lowered, and an index synthesized for
// every relation mentioned.
func TestCompileEndToEnd(t *testing.T) {
	th := categoryTheory()
	th.Rules = []*theory.Rule{associativityRule(), composableRule()}

	spec, err := Compile(th)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(spec.Rules) != 2 {
		t.Errorf("Compile() produced %d rules, want 2", len(spec.Rules))
	}
	gotRels := map[string]bool{}
	for _, r := range spec.Relations {
		gotRels[r.Name] = true
	}
	if !gotRels["comp"] || !gotRels["signature"] {
		t.Errorf("Compile() relations = %+v, want comp and signature both present", spec.Relations)
	}
	if len(spec.Indices.Indices("comp")) == 0 {
		t.Error("Compile() synthesized no index for comp")
	}
	if len(spec.Indices.Indices("signature")) == 0 {
		t.Error("Compile() synthesized no index for signature")
	}
}

func TestCompileRejectsInvalidTheory(t *testing.T) {
	u := term.NewUniverse()
	x := u.Add(term.Variable("x"), "obj")
	y := u.Add(term.Variable("y"), "obj")
	th := categoryTheory()
	th.Rules = []*theory.Rule{{
		Name: "bad",
		Sequent: &term.Sequent{
			Universe:   u,
			Premise:    []term.Atom{term.Predicate("nonesuch", x, y)},
			Conclusion: nil,
		},
	}}
	if _, err := Compile(th); err == nil {
		t.Error("Compile() = nil error, want a validation error for the undeclared predicate")
	}
}
