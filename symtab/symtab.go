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

// Package symtab maps the symbol ids used by a theory (sorts,
// functions, predicates) to printable names and declared arities —
// the "identifier tables" and "typing environment" spec §4.2 and §6.1
// take as given, produced here from a theory's own declarations.
package symtab

import "bitbucket.org/creachadair/stringset"

// FuncDecl is a function declaration: a domain sort list and a
// codomain sort.
type FuncDecl struct {
	Name string
	Dom  []string
	Cod  string
}

// PredDecl is a predicate declaration: an argument sort list.
type PredDecl struct {
	Name string
	Dom  []string
}

// Table is the symbol table consumed by compiler.Validate, llam and
// index.
type Table struct {
	sorts stringset.Set
	funcs map[string]FuncDecl
	preds map[string]PredDecl
}

// New builds a Table from explicit declarations.
func New(sorts []string, funcs []FuncDecl, preds []PredDecl) *Table {
	t := &Table{
		sorts: stringset.New(sorts...),
		funcs: make(map[string]FuncDecl, len(funcs)),
		preds: make(map[string]PredDecl, len(preds)),
	}
	for _, f := range funcs {
		t.funcs[f.Name] = f
	}
	for _, p := range preds {
		t.preds[p.Name] = p
	}
	return t
}

// Sorts returns the declared sort names, unordered.
func (t *Table) Sorts() []string { return t.sorts.Elements() }

// HasSort reports whether sort is declared.
func (t *Table) HasSort(sort string) bool { return t.sorts.Contains(sort) }

// IsFunction reports whether name is a declared function.
func (t *Table) IsFunction(name string) bool {
	_, ok := t.funcs[name]
	return ok
}

// IsPredicate reports whether name is a declared predicate.
func (t *Table) IsPredicate(name string) bool {
	_, ok := t.preds[name]
	return ok
}

// FuncArity returns a declared function's domain and codomain sorts.
func (t *Table) FuncArity(name string) (dom []string, cod string, ok bool) {
	f, ok := t.funcs[name]
	if !ok {
		return nil, "", false
	}
	return f.Dom, f.Cod, true
}

// PredArity returns a declared predicate's argument sorts.
func (t *Table) PredArity(name string) (dom []string, ok bool) {
	p, ok := t.preds[name]
	if !ok {
		return nil, false
	}
	return p.Dom, true
}

// RelationArity returns the full tuple arity of a relation: a
// predicate's argument sorts, or a function's domain followed by its
// codomain (the graph-relation arity used throughout flatten/llam).
func (t *Table) RelationArity(name string) ([]string, bool) {
	if f, ok := t.funcs[name]; ok {
		return append(append([]string(nil), f.Dom...), f.Cod), true
	}
	if p, ok := t.preds[name]; ok {
		return p.Dom, true
	}
	return nil, false
}

// Arity returns the tuple width of a relation, satisfying
// index.RelationArity.
func (t *Table) Arity(name string) (int, bool) {
	arity, ok := t.RelationArity(name)
	if !ok {
		return 0, false
	}
	return len(arity), true
}

// IsRelation reports whether name is either a function or a predicate.
func (t *Table) IsRelation(name string) bool {
	return t.IsFunction(name) || t.IsPredicate(name)
}

// Relations returns every declared function and predicate name (names
// only; see RelationArity for a tuple arity): functions first, then
// predicates, each group in unspecified order.
func (t *Table) Relations() []string {
	names := make([]string, 0, len(t.funcs)+len(t.preds))
	for name := range t.funcs {
		names = append(names, name)
	}
	for name := range t.preds {
		names = append(names, name)
	}
	return names
}
