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

package parse

import (
	"strings"
	"testing"

	"github.com/eqlogc/eqc/compiler"
	"github.com/eqlogc/eqc/term"
)

const categorySrc = `
sort obj.
sort mor.
func comp(mor, mor): mor.
pred signature(obj, mor, obj).

// composability of morphisms, scenario S2.
signature(x:obj, f:mor, y:obj) & signature(y, g:mor, z:obj) then
  comp(g, f)! & signature(x, comp(g, f), z).
`

func TestParseDeclarations(t *testing.T) {
	th, err := Parse(categorySrc, "test.eq")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(th.Sorts) != 2 {
		t.Errorf("len(Sorts) = %d, want 2", len(th.Sorts))
	}
	if len(th.Funcs) != 1 || th.Funcs[0].Name != "comp" {
		t.Errorf("Funcs = %+v, want a single comp declaration", th.Funcs)
	}
	if len(th.Preds) != 1 || th.Preds[0].Name != "signature" {
		t.Errorf("Preds = %+v, want a single signature declaration", th.Preds)
	}
	if len(th.Rules) != 1 {
		t.Fatalf("len(Rules) = %d, want 1", len(th.Rules))
	}
}

func TestParseRuleShape(t *testing.T) {
	th, err := Parse(categorySrc, "test.eq")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	rule := th.Rules[0]
	if len(rule.Premise) != 2 {
		t.Errorf("len(Premise) = %d, want 2", len(rule.Premise))
	}
	if len(rule.Conclusion) != 2 {
		t.Errorf("len(Conclusion) = %d, want 2", len(rule.Conclusion))
	}
	if rule.Conclusion[0].Kind != term.AtomDefined {
		t.Errorf("Conclusion[0].Kind = %v, want AtomDefined (comp(g, f)!)", rule.Conclusion[0].Kind)
	}
	if rule.Conclusion[1].Kind != term.AtomPredicate || rule.Conclusion[1].Name != "signature" {
		t.Errorf("Conclusion[1] = %+v, want a signature predicate atom", rule.Conclusion[1])
	}
	if !strings.Contains(rule.Source, "comp(g, f)!") {
		t.Errorf("Rule.Source = %q, want it to capture the rule's own text", rule.Source)
	}
}

// TestParsedTheoryCompiles feeds the parsed category theory straight
// into the compiler, exercising the parser as the CLI's actual front
// end would.
func TestParsedTheoryCompiles(t *testing.T) {
	th, err := Parse(categorySrc, "test.eq")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, err := compiler.Compile(th); err != nil {
		t.Errorf("Compile(parsed theory) error = %v", err)
	}
}

func TestParseUndeclaredSort(t *testing.T) {
	src := `
sort obj.
func id(obj): obj.

id(x:nope)! then .
`
	if _, err := Parse(src, "test.eq"); err == nil {
		t.Error("Parse() = nil error, want an error for the undeclared sort")
	}
}

func TestParseUndeclaredFunction(t *testing.T) {
	src := `
sort obj.

nope(x:obj)! then .
`
	if _, err := Parse(src, "test.eq"); err == nil {
		t.Error("Parse() = nil error, want an error for the undeclared function")
	}
}

func TestParseMissingThen(t *testing.T) {
	src := `
sort obj.
func id(obj): obj.

id(x:obj)! .
`
	if _, err := Parse(src, "test.eq"); err == nil {
		t.Error("Parse() = nil error, want an error for a rule missing 'then'")
	}
}

func TestParseVariableReuseAcrossAtoms(t *testing.T) {
	src := `
sort obj.
func id(obj): obj.

id(x:obj)! then id(x) = id(x).
`
	th, err := Parse(src, "test.eq")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	rule := th.Rules[0]
	eq := rule.Conclusion[0]
	if eq.Kind != term.AtomEqual {
		t.Fatalf("Conclusion[0].Kind = %v, want AtomEqual", eq.Kind)
	}
	u := rule.Universe
	// The two id(x) applications are distinct term-universe entries (the
	// parser never deduplicates application terms), but both must
	// reference the very same "x", since "x" was already bound by the
	// premise.
	left, right := u.Data(eq.Left), u.Data(eq.Right)
	if left.Func != "id" || right.Func != "id" {
		t.Fatalf("Conclusion atom sides = %+v, %+v, want both id(...) applications", left, right)
	}
	if left.Args[0] != right.Args[0] {
		t.Errorf("id(x) = id(x) bound x to distinct term ids %d and %d, want the same id", left.Args[0], right.Args[0])
	}
}
