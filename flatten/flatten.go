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

package flatten

import (
	"fmt"

	"github.com/eqlogc/eqc/term"
)

type optVar struct {
	v  Var
	ok bool
}

func mergeOptVar(a, b optVar) optVar {
	if a.ok {
		return a
	}
	return b
}

func mergeOr(a, b bool) bool { return a || b }

// emitter carries the three congruence-closed bookkeeping overlays
// described in spec §4.1 (FlatName, Added, Constrained) plus the
// counter handing out fresh flat variables.
type emitter struct {
	universe    *term.Universe
	flatNames   *term.Unification[optVar]
	added       *term.Unification[bool]
	constrained *term.Unification[bool]
	nextVar     Var
}

func newEmitter(u *term.Universe) *emitter {
	flatNames := term.NewUnification(u, make([]optVar, u.Len()), mergeOptVar)
	flatNames.CongruenceClose()
	added := term.NewUnification(u, make([]bool, u.Len()), mergeOr)
	added.CongruenceClose()
	constrained := term.NewUnification(u, make([]bool, u.Len()), mergeOr)
	constrained.CongruenceClose()
	return &emitter{universe: u, flatNames: flatNames, added: added, constrained: constrained}
}

// setupPremiseTerm marks terms constrained based on the structure of a
// single term (not its sub-terms): an Application marks itself and its
// direct arguments constrained.
func (e *emitter) setupPremiseTerm(t term.Term) {
	d := e.universe.Data(t)
	if d.Kind == term.KindApplication {
		for _, a := range d.Args {
			e.constrained.Set(a, true)
		}
		e.constrained.Set(t, true)
	}
	e.constrained.CongruenceClose()
}

// setupPremiseAtom marks terms constrained (or unifies flat names)
// based on a premise atom's own shape.
func (e *emitter) setupPremiseAtom(atom term.Atom) {
	switch atom.Kind {
	case term.AtomEqual:
		e.flatNames.Union(atom.Left, atom.Right)
		e.constrained.Union(atom.Left, atom.Right)
	case term.AtomDefined:
		// Inert at this stage.
	case term.AtomPredicate:
		for _, a := range atom.Args {
			e.constrained.Set(a, true)
		}
	}
	e.constrained.CongruenceClose()
	e.flatNames.CongruenceClose()
}

// emitTermStructure emits the flat atom corresponding to term t's own
// structure, if any, assigning it a fresh flat variable if it does not
// already have one. All of t's sub-terms must already be added.
func (e *emitter) emitTermStructure(t term.Term, out *[]Atom) {
	if e.added.Get(t) {
		return
	}
	e.added.Set(t, true)

	name := e.flatNames.Get(t)
	var v Var
	if name.ok {
		v = name.v
	} else {
		v = e.nextVar
		e.nextVar++
		e.flatNames.Set(t, optVar{v, true})
	}

	d := e.universe.Data(t)
	switch d.Kind {
	case term.KindVariable, term.KindWildcard:
		if !e.constrained.Get(t) {
			*out = append(*out, NewUnconstrained(v, e.universe.Sort(t)))
		}
	case term.KindApplication:
		vars := make([]Var, 0, len(d.Args)+1)
		for _, a := range d.Args {
			an := e.flatNames.Get(a)
			if !an.ok {
				panic(fmt.Sprintf("flatten: argument term %d of %q has no flat name yet", a, d.Func))
			}
			vars = append(vars, an.v)
		}
		vars = append(vars, v)
		*out = append(*out, NewRel(d.Func, vars...))
	}
}

// emitAtom emits the flat atoms corresponding to a surface atom and its
// sub-terms, in source order.
func (e *emitter) emitAtom(atom term.Atom, out *[]Atom) {
	switch atom.Kind {
	case term.AtomEqual:
		lhs, rhs := atom.Left, atom.Right
		lhsName := e.flatNames.Get(lhs)
		rhsName := e.flatNames.Get(rhs)
		var pendingEq *[2]Var
		if lhsName.ok && rhsName.ok && lhsName.v != rhsName.v {
			pendingEq = &[2]Var{lhsName.v, rhsName.v}
		}

		// Unify names before emitting sub-terms: if a name did not yet
		// exist on one side, it joins the other's class and emission
		// below will share it, avoiding a redundant Eq.
		e.flatNames.Union(lhs, rhs)
		for _, tm := range atom.IterSubterms(e.universe) {
			e.emitTermStructure(tm, out)
		}

		if pendingEq != nil {
			*out = append(*out, NewEq(pendingEq[0], pendingEq[1]))
		}

		e.added.Union(lhs, rhs)
		e.added.CongruenceClose()
		e.flatNames.CongruenceClose()

	case term.AtomDefined:
		for _, tm := range atom.IterSubterms(e.universe) {
			e.emitTermStructure(tm, out)
		}

	case term.AtomPredicate:
		for _, tm := range atom.IterSubterms(e.universe) {
			e.emitTermStructure(tm, out)
		}
		vars := make([]Var, 0, len(atom.Args))
		for _, a := range atom.Args {
			an := e.flatNames.Get(a)
			if !an.ok {
				panic(fmt.Sprintf("flatten: predicate argument term %d has no flat name yet", a))
			}
			vars = append(vars, an.v)
		}
		*out = append(*out, NewRel(atom.Name, vars...))
	}
}

// Flatten compiles a sequent over a term universe into a FlatSequent,
// per spec §4.1. It panics with an *InvalidSequentError if the result
// fails its own internal consistency check. Besides a flattener bug, a
// conclusion that introduces a new element anywhere but the last
// argument of a function application fails that check; compiler.Validate
// does not look for this, and compiler.Compile recovers the panic and
// reports it as an EPIC error.
func Flatten(seq *term.Sequent) *Sequent {
	e := newEmitter(seq.Universe)

	for _, atom := range seq.Premise {
		for _, tm := range atom.IterSubterms(seq.Universe) {
			e.setupPremiseTerm(tm)
		}
		e.setupPremiseAtom(atom)
	}

	var premise []Atom
	for _, atom := range seq.Premise {
		e.emitAtom(atom, &premise)
	}
	var conclusion []Atom
	for _, atom := range seq.Conclusion {
		e.emitAtom(atom, &conclusion)
	}

	fs := &Sequent{Premise: premise, Conclusion: conclusion}
	if err := fs.Check(); err != nil {
		panic(err)
	}
	return fs
}
