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

// Package term holds the surface term universe that sequents are built
// over: an append-only DAG of variables, wildcards and function
// applications, plus the congruence-closing union-find used to unify
// terms within it.
package term

import "fmt"

// Term is an index into a Universe. Sub-terms always have a smaller
// index than the terms that reference them.
type Term int

// Kind distinguishes the three shapes a Universe entry can take.
type Kind int

const (
	// KindVariable is a named binder scoped to its sequent.
	KindVariable Kind = iota
	// KindWildcard is an anonymous placeholder.
	KindWildcard
	// KindApplication is a function symbol applied to earlier terms.
	KindApplication
)

// Data is the payload of a single Universe entry.
type Data struct {
	Kind Kind
	// Name holds the variable name when Kind == KindVariable.
	Name string
	// Func holds the function symbol when Kind == KindApplication.
	Func string
	// Args holds the argument term ids when Kind == KindApplication.
	Args []Term
}

// Variable constructs variable term data.
func Variable(name string) Data { return Data{Kind: KindVariable, Name: name} }

// Wildcard constructs wildcard term data.
func Wildcard() Data { return Data{Kind: KindWildcard} }

// Application constructs function-application term data.
func Application(fn string, args ...Term) Data {
	return Data{Kind: KindApplication, Func: fn, Args: append([]Term(nil), args...)}
}

// Universe is an append-only sequence of term entries, shared by one
// sequent's premise and conclusion.
type Universe struct {
	entries []Data
	sorts   []string
}

// NewUniverse returns an empty term universe.
func NewUniverse() *Universe {
	return &Universe{}
}

// Add appends a new term entry and records its sort, returning its id.
// All ids referenced by args (for an Application) must already exist.
func (u *Universe) Add(d Data, sort string) Term {
	for _, a := range d.Args {
		if int(a) >= len(u.entries) {
			panic(fmt.Sprintf("term: argument %d references unborn term %d", a, a))
		}
	}
	id := Term(len(u.entries))
	u.entries = append(u.entries, d)
	u.sorts = append(u.sorts, sort)
	return id
}

// Len returns the number of terms in the universe.
func (u *Universe) Len() int { return len(u.entries) }

// Data returns the payload of a term.
func (u *Universe) Data(t Term) Data { return u.entries[t] }

// Sort returns the declared sort of a term.
func (u *Universe) Sort(t Term) string { return u.sorts[t] }

// Subterms returns t's argument terms in original (post-order-friendly)
// order; empty for Variable/Wildcard.
func (u *Universe) Subterms(t Term) []Term {
	return u.entries[t].Args
}

// IterSubterms visits every term reachable from the given roots, each
// exactly once, children before parents (post-order), including the
// roots themselves. This is the traversal order the flattener relies
// on to emit a sub-term's structure before its parent's.
func (u *Universe) IterSubterms(roots ...Term) []Term {
	seen := make(map[Term]bool, len(roots)*2)
	var order []Term
	var visit func(Term)
	visit = func(t Term) {
		if seen[t] {
			return
		}
		seen[t] = true
		for _, a := range u.entries[t].Args {
			visit(a)
		}
		order = append(order, t)
	}
	for _, r := range roots {
		visit(r)
	}
	return order
}
