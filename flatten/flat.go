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

// Package flatten rewrites a sequent over a term.Universe into a flat
// sequent over dense numeric variables: the first stage of the
// compiler pipeline (Universe -> Flattener -> LLAM -> Index Selector
// -> Closure Scheme).
package flatten

import "fmt"

// Var is a dense nonnegative flat-variable id, numbered in the order
// sub-terms are first emitted.
type Var int

// AtomKind distinguishes the three flat atom shapes.
type AtomKind int

const (
	// Rel is tuple membership: a relation (predicate or function graph)
	// applied to flat variables.
	Rel AtomKind = iota
	// Eq asserts two already-bound variables are equal.
	Eq
	// Unconstrained declares a premise variable touched by no relation.
	Unconstrained
)

// Atom is one premise or conclusion literal of a FlatSequent.
type Atom struct {
	Kind AtomKind

	// Rel
	Name string
	Vars []Var

	// Eq
	A, B Var

	// Unconstrained
	V    Var
	Sort string
}

// NewRel constructs a Rel flat atom.
func NewRel(name string, vars ...Var) Atom {
	return Atom{Kind: Rel, Name: name, Vars: append([]Var(nil), vars...)}
}

// NewEq constructs an Eq flat atom.
func NewEq(a, b Var) Atom { return Atom{Kind: Eq, A: a, B: b} }

// NewUnconstrained constructs an Unconstrained flat atom.
func NewUnconstrained(v Var, sort string) Atom {
	return Atom{Kind: Unconstrained, V: v, Sort: sort}
}

func (a Atom) String() string {
	switch a.Kind {
	case Rel:
		return fmt.Sprintf("%s%v", a.Name, a.Vars)
	case Eq:
		return fmt.Sprintf("v%d = v%d", a.A, a.B)
	case Unconstrained:
		return fmt.Sprintf("v%d!: %s", a.V, a.Sort)
	}
	return "<invalid flat atom>"
}

// Sequent is a flattened premise/conclusion pair over dense Vars.
type Sequent struct {
	Premise    []Atom
	Conclusion []Atom
}

// InvalidSequentError reports that a FlatSequent violates one of the
// structural invariants of spec §3.2. A rule whose conclusion
// introduces a new element anywhere but the last argument of a function
// application produces one; compiler.Compile reports it as EPIC.
type InvalidSequentError struct {
	Reason string
}

func (e *InvalidSequentError) Error() string {
	return fmt.Sprintf("flatten: invalid flat sequent: %s", e.Reason)
}

// Check verifies the structural invariants of spec §3.2:
//   - no Eq in premise, no Unconstrained in conclusion;
//   - in a conclusion Rel, every argument but (possibly) the last must
//     already have occurred;
//   - in a conclusion Eq, both sides must already have occurred and
//     must differ.
func (s *Sequent) Check() error {
	occurred := make(map[Var]bool)
	for _, atom := range s.Premise {
		switch atom.Kind {
		case Eq:
			return &InvalidSequentError{"Eq in premise"}
		case Rel:
			for _, v := range atom.Vars {
				occurred[v] = true
			}
		case Unconstrained:
			occurred[atom.V] = true
		}
	}
	for _, atom := range s.Conclusion {
		switch atom.Kind {
		case Unconstrained:
			return &InvalidSequentError{"Unconstrained in conclusion"}
		case Rel:
			if n := len(atom.Vars); n > 0 {
				for _, v := range atom.Vars[:n-1] {
					if !occurred[v] {
						return &InvalidSequentError{fmt.Sprintf("argument v%d of conclusion relation %q must occur earlier", v, atom.Name)}
					}
				}
			}
			for _, v := range atom.Vars {
				occurred[v] = true
			}
		case Eq:
			if atom.A == atom.B {
				return &InvalidSequentError{"Eq with equal arguments in conclusion"}
			}
			if !occurred[atom.A] || !occurred[atom.B] {
				return &InvalidSequentError{fmt.Sprintf("Eq(v%d, v%d) in conclusion references a variable that has not occurred", atom.A, atom.B)}
			}
			occurred[atom.A] = true
			occurred[atom.B] = true
		}
	}
	return nil
}
