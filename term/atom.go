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

// AtomKind distinguishes the three atom shapes a sequent is built from.
type AtomKind int

const (
	// AtomEqual is an equality between two terms.
	AtomEqual AtomKind = iota
	// AtomDefined asserts that a term's value is defined (in a sort).
	AtomDefined
	// AtomPredicate is a predicate applied to a list of terms.
	AtomPredicate
)

// Atom is one premise or conclusion literal of a sequent.
type Atom struct {
	Kind AtomKind

	// Equal
	Left, Right Term

	// Defined
	Subject Term
	Sort    string

	// Predicate
	Name string
	Args []Term
}

// Equal constructs an equality atom.
func Equal(l, r Term) Atom { return Atom{Kind: AtomEqual, Left: l, Right: r} }

// Defined constructs a "defined in sort" atom.
func Defined(t Term, sort string) Atom { return Atom{Kind: AtomDefined, Subject: t, Sort: sort} }

// Predicate constructs a predicate atom.
func Predicate(name string, args ...Term) Atom {
	return Atom{Kind: AtomPredicate, Name: name, Args: append([]Term(nil), args...)}
}

// Subterms returns the top-level term(s) an atom directly mentions, in
// the order the flattener should visit them.
func (a Atom) Subterms() []Term {
	switch a.Kind {
	case AtomEqual:
		return []Term{a.Left, a.Right}
	case AtomDefined:
		return []Term{a.Subject}
	case AtomPredicate:
		return a.Args
	}
	return nil
}

// IterSubterms returns every sub-term of the atom (recursively, via the
// given universe), each exactly once, in post-order.
func (a Atom) IterSubterms(u *Universe) []Term {
	return u.IterSubterms(a.Subterms()...)
}

// Sequent is a premise/conclusion pair sharing one term universe.
type Sequent struct {
	Universe   *Universe
	Premise    []Atom
	Conclusion []Atom
}
