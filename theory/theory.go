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

// Package theory holds the compiler's external input: a set of sorts,
// partial function and predicate declarations, and sequents built from
// surface terms (spec §6.1). Parsing surface syntax into a Theory is
// the job of the sibling package theory/parse; type inference assigning
// a sort to every surface term is assumed to have already happened (the
// term.Universe entries a Theory's rules reference already carry their
// sort, see package term).
package theory

import (
	"github.com/eqlogc/eqc/symtab"
	"github.com/eqlogc/eqc/term"
)

// Rule is one named sequent together with the source text it came from
// (set by theory/parse; empty if built programmatically). The compiler
// does not read Source.
type Rule struct {
	Name   string
	Source string
	*term.Sequent
}

// Theory is a complete compiler input: declarations plus rules.
type Theory struct {
	Sorts []string
	Funcs []symtab.FuncDecl
	Preds []symtab.PredDecl
	Rules []*Rule
}

// Table builds the symbol table that compiler.Validate, llam and index
// consume.
func (t *Theory) Table() *symtab.Table {
	return symtab.New(t.Sorts, t.Funcs, t.Preds)
}
