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

// Package closure is the fourth and final pipeline stage: it turns a
// ModelSpec (sorts, relation arities, and lowered QueryActions) into a
// runnable Model implementing the fixed-point closure operation
// (spec §4.4). Where the reference eqlog compiler emits Rust source
// for this stage, eqc interprets the same QueryAction program directly
// against an in-memory Model — there is no target-language back end in
// scope (spec §1, Non-goals), so the Model here stands in for the
// generated module a real target-language emitter would produce.
package closure

import (
	"fmt"
	"sort"

	"github.com/golang/glog"

	"github.com/eqlogc/eqc/flatten"
	"github.com/eqlogc/eqc/index"
	"github.com/eqlogc/eqc/llam"
)

// RelationKind distinguishes predicates from function graphs.
type RelationKind int

const (
	KindPredicate RelationKind = iota
	KindFunction
)

// RelationSpec declares one relation's shape.
type RelationSpec struct {
	Name string
	Kind RelationKind
	Dom  []string // predicate argument sorts, or function domain sorts
	Cod  string    // function codomain sort; unused for predicates
}

// Arity returns the full tuple width: Dom, plus Cod for functions.
func (r RelationSpec) Arity() []string {
	if r.Kind == KindFunction {
		return append(append([]string(nil), r.Dom...), r.Cod)
	}
	return r.Dom
}

// RuleSpec names one lowered rule.
type RuleSpec struct {
	Name        string
	QueryAction *llam.QueryAction
}

// ModelSpec is the compiler's final output (spec §6.2): enough to
// construct a Model and run it to closure.
type ModelSpec struct {
	Sorts     []string
	Relations []RelationSpec
	Rules     []RuleSpec
	Indices   *index.Selection
}

func (s *ModelSpec) relation(name string) (RelationSpec, bool) {
	for _, r := range s.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return RelationSpec{}, false
}

// Arity implements index.RelationArity against a ModelSpec directly,
// so the compiler can call index.Select before any Model exists.
func (s *ModelSpec) Arity(name string) (int, bool) {
	r, ok := s.relation(name)
	if !ok {
		return 0, false
	}
	return len(r.Arity()), true
}

type compiledRule struct {
	name      string
	qa        *llam.QueryAction
	scanning  []int // indices into qa.Queries that are QueryRelation/QuerySort
}

// Model is the live, closeable structure the compiled rules run
// against (spec §4.4's public surface).
type Model struct {
	spec  *ModelSpec
	sorts map[string]*sortState
	tabs  map[string]*table
	rules []*compiledRule

	// emptyJoinIsDirty gates rules with zero scanning queries (pure
	// equality guards, or bare facts): they have no dirty view of
	// their own to retrigger them, so they fire exactly once, on the
	// first close_until pass (rust_gen.rs's empty_join_is_dirty).
	emptyJoinIsDirty bool
}

// New builds an empty Model from a ModelSpec.
func New(spec *ModelSpec) *Model {
	m := &Model{
		spec:             spec,
		sorts:            make(map[string]*sortState, len(spec.Sorts)),
		tabs:             make(map[string]*table, len(spec.Relations)),
		emptyJoinIsDirty: true,
	}
	for _, s := range spec.Sorts {
		m.sorts[s] = newSortState(s)
	}
	for _, r := range spec.Relations {
		specs := spec.Indices.Indices(r.Name)
		m.tabs[r.Name] = newTable(r.Name, r.Arity(), specs)
	}
	for _, rs := range spec.Rules {
		cr := &compiledRule{name: rs.Name, qa: rs.QueryAction}
		for i, q := range rs.QueryAction.Queries {
			if q.Kind == llam.QueryRelation || q.Kind == llam.QuerySort {
				cr.scanning = append(cr.scanning, i)
			}
		}
		m.rules = append(m.rules, cr)
	}
	return m
}

// NewS adjoins a fresh element of sort name.
func (m *Model) NewS(name string) Element {
	s, ok := m.sorts[name]
	if !ok {
		panic(fmt.Sprintf("closure: unknown sort %q", name))
	}
	return s.newElement()
}

// RootS returns the canonical representative of el's class.
func (m *Model) RootS(name string, el Element) Element {
	return m.sorts[name].root(el)
}

// AreEqualS reports whether a and b are in the same class.
func (m *Model) AreEqualS(name string, a, b Element) bool {
	return m.sorts[name].areEqual(a, b)
}

// EquateS enforces a = b (spec §4.4.5). Takes effect immediately; a
// canonicalize call is still needed to rewrite already-stored tuples.
func (m *Model) EquateS(name string, a, b Element) {
	m.sorts[name].equate(a, b)
}

// IterS yields the canonical elements of sort name.
func (m *Model) IterS(name string) []Element {
	return m.sorts[name].iter(false)
}

// InsertR canonicalizes args and inserts the tuple into relation name,
// idempotently (spec §4.4.6).
func (m *Model) InsertR(name string, args ...Element) {
	t := m.tabs[name]
	canon := m.canonTuple(name, args)
	if t.insert(canon) {
		m.bumpWeights(name, canon, t.weight())
	}
}

// HoldsR reports whether the canonicalized tuple is present.
func (m *Model) HoldsR(name string, args ...Element) bool {
	return m.tabs[name].contains(m.canonTuple(name, args))
}

// DefineF returns F(args); allocating a fresh codomain element if this
// is the first call with these (canonicalized) arguments (spec
// §4.4.6).
func (m *Model) DefineF(name string, args ...Element) Element {
	r, _ := m.spec.relation(name)
	t := m.tabs[name]
	canonArgs := m.canonArgs(r.Dom, args)

	if existing, ok := t.lookupGraph(canonArgs); ok {
		return existing[len(canonArgs)]
	}

	result := m.NewS(r.Cod)
	full := append(append(Tuple(nil), canonArgs...), result)
	if t.insert(full) {
		m.bumpWeights(name, full, t.weight())
	}
	return result
}

// IterR yields every stored tuple of relation name (canonical args).
func (m *Model) IterR(name string) []Tuple { return m.tabs[name].all(false) }

func (m *Model) canonArgs(dom []string, args []Element) []Element {
	out := make([]Element, len(args))
	for i, e := range args {
		out[i] = m.sorts[dom[i]].root(e)
	}
	return out
}

func (m *Model) canonTuple(name string, args []Element) Tuple {
	r, ok := m.spec.relation(name)
	if !ok {
		panic(fmt.Sprintf("closure: unknown relation %q", name))
	}
	arity := r.Arity()
	out := make(Tuple, len(args))
	for i, e := range args {
		out[i] = m.sorts[arity[i]].root(e)
	}
	return out
}

func (m *Model) bumpWeights(name string, tup Tuple, weight int) {
	r, _ := m.spec.relation(name)
	arity := r.Arity()
	for i, e := range tup {
		s := m.sorts[arity[i]]
		s.weight[e] += weight
	}
}

// isDirty reports whether any sort or relation still carries dirt.
func (m *Model) isDirty() bool {
	if m.emptyJoinIsDirty {
		return true
	}
	for _, s := range m.sorts {
		if s.isDirty() {
			return true
		}
	}
	for _, t := range m.tabs {
		if len(t.dirty) > 0 {
			return true
		}
	}
	return false
}

func (m *Model) dropDirt() {
	m.emptyJoinIsDirty = false
	for _, t := range m.tabs {
		t.dropDirt()
	}
	for _, s := range m.sorts {
		s.dropDirt()
	}
}

// Canonicalize rewrites every stored tuple mentioning an uprooted
// element to its current root, keeping per-sort weights in sync (spec
// §4.4.4).
func (m *Model) canonicalize() {
	for sortName, s := range m.sorts {
		for _, el := range s.uprooted {
			for relName, t := range m.tabs {
				if !mentionsSort(t.arity, sortName) {
					continue
				}
				tuples := t.drainWithElement(el)
				for _, tup := range tuples {
					m.bumpWeights(relName, tup, -t.weight())
					canon := m.canonTuple(relName, tup)
					if t.insert(canon) {
						m.bumpWeights(relName, canon, t.weight())
					}
				}
			}
		}
	}
	for _, s := range m.sorts {
		s.uprooted = nil
	}
}

func mentionsSort(arity []string, sort string) bool {
	for _, s := range arity {
		if s == sort {
			return true
		}
	}
	return false
}

// ModelDelta aggregates pending rule-firing output (spec §4.4.2):
// matchers push into it, applications drain it. Keeping match
// iteration and mutation non-interleaved matters because the
// union-find and indices are shared mutable state.
type ModelDelta struct {
	newTuples     map[string][]Tuple
	newEqualities map[string][][2]Element
	newDefs       map[string][][]Element
}

func newModelDelta() *ModelDelta {
	return &ModelDelta{
		newTuples:     make(map[string][]Tuple),
		newEqualities: make(map[string][][2]Element),
		newDefs:       make(map[string][][]Element),
	}
}

func (d *ModelDelta) applySurjective(m *Model) {
	d.applyEqualities(m)
	d.applyTuples(m)
}

func (d *ModelDelta) applyNonSurjective(m *Model) {
	d.applyDefs(m)
}

func (d *ModelDelta) applyEqualities(m *Model) {
	for sort, pairs := range d.newEqualities {
		for _, p := range pairs {
			m.EquateS(sort, p[0], p[1])
		}
		d.newEqualities[sort] = nil
	}
}

func (d *ModelDelta) applyTuples(m *Model) {
	for rel, tuples := range d.newTuples {
		for _, t := range tuples {
			m.InsertR(rel, t...)
		}
		d.newTuples[rel] = nil
	}
}

func (d *ModelDelta) applyDefs(m *Model) {
	for rel, defs := range d.newDefs {
		for _, args := range defs {
			m.DefineF(rel, args...)
		}
		d.newDefs[rel] = nil
	}
}

// matchRule runs one semi-naive variant of rule against the model,
// pushing its conclusion into delta for every match found. variant
// selects which of rule's scanning queries (in order) is restricted to
// the dirty view; the rest scan the all view. variant == -1 is used
// only for rules with no scanning queries at all, gated instead by
// emptyJoinIsDirty.
func (m *Model) matchRule(rule *compiledRule, variant int, delta *ModelDelta) {
	onlyDirtyAt := make(map[int]bool, len(rule.scanning))
	for rank, qidx := range rule.scanning {
		onlyDirtyAt[qidx] = rank == variant
	}
	bound := make(map[flatten.Var]Element)
	m.solve(rule.qa, onlyDirtyAt, 0, bound, delta)
}

func (m *Model) solve(qa *llam.QueryAction, onlyDirtyAt map[int]bool, pos int, bound map[flatten.Var]Element, delta *ModelDelta) {
	if pos == len(qa.Queries) {
		m.apply(qa.Actions, bound, delta)
		return
	}
	q := qa.Queries[pos]
	switch q.Kind {
	case llam.QueryEq:
		a, aok := bound[q.A]
		b, bok := bound[q.B]
		if !aok || !bok {
			panic(fmt.Sprintf("closure: Eq query on unbound variable v%d/v%d", q.A, q.B))
		}
		if m.sorts[q.Sort].areEqual(a, b) {
			m.solve(qa, onlyDirtyAt, pos+1, bound, delta)
		}

	case llam.QuerySort:
		for _, el := range m.sorts[q.Sort].iter(onlyDirtyAt[pos]) {
			bound[q.Result] = el
			m.solve(qa, onlyDirtyAt, pos+1, bound, delta)
		}

	case llam.QueryRelation:
		t := m.tabs[q.Name]
		scanBound := make(map[int]Element, len(q.Projections))
		proj := make(map[int]bool, len(q.Projections))
		for posArg, v := range q.Projections {
			e, ok := bound[v]
			if !ok {
				panic(fmt.Sprintf("closure: relation query %q position %d projects unbound v%d", q.Name, posArg, v))
			}
			scanBound[posArg] = e
			proj[posArg] = true
		}
		dirtyOnly := onlyDirtyAt[pos]
		// The table never keeps a separate dirty index (see newTable at
		// table.go): dirtiness is always the post-scan filter below, so the
		// lookup itself must always ask for the all-index for this
		// projection, regardless of dirtyOnly.
		qspec := index.QuerySpec{Projections: proj, Diagonals: q.Diagonals, OnlyDirty: false}
		var rows []Tuple
		if spec, ok := m.spec.Indices.IndexFor(q.Name, qspec); ok {
			if ix := t.find(spec); ix != nil {
				rows = ix.scan(len(t.arity), scanBound)
			}
		}
		if dirtyOnly {
			filtered := rows[:0:0]
			for _, row := range rows {
				if t.dirty[row.key()] {
					filtered = append(filtered, row)
				}
			}
			rows = filtered
		}
		for _, row := range rows {
			if !satisfiesDiagonals(row, q.Diagonals) {
				continue
			}
			for posArg, v := range q.Results {
				bound[v] = row[posArg]
			}
			m.solve(qa, onlyDirtyAt, pos+1, bound, delta)
		}
	}
}

func satisfiesDiagonals(row Tuple, diagonals [][]int) bool {
	for _, group := range diagonals {
		for i := 1; i < len(group); i++ {
			if row[group[i]] != row[group[0]] {
				return false
			}
		}
	}
	return true
}

func (m *Model) apply(actions []llam.Action, bound map[flatten.Var]Element, delta *ModelDelta) {
	for _, a := range actions {
		switch a.Kind {
		case llam.ActionEquate:
			delta.newEqualities[a.EqSort] = append(delta.newEqualities[a.EqSort], [2]Element{bound[a.Lhs], bound[a.Rhs]})
		case llam.ActionAddTuple:
			tup := make(Tuple, len(a.RelArgs))
			for i, v := range a.RelArgs {
				tup[i] = bound[v]
			}
			delta.newTuples[a.Rel] = append(delta.newTuples[a.Rel], tup)
		case llam.ActionAddTerm:
			args := make([]Element, len(a.Args))
			for i, v := range a.Args {
				args[i] = bound[v]
			}
			delta.newDefs[a.Func] = append(delta.newDefs[a.Func], args)
		}
	}
}

// enforceFunctionality is the closure scheme's built-in replacement for
// compiling a rule "R(x, y) & R(x, z) => y = z" per function (spec §9,
// "Closure under functionality"): it walks each function's dirty tuples
// and, for every other tuple sharing the same domain prefix, pushes an
// equate of their codomains into delta. Matching dirty-against-all
// guarantees at most one pass per semi-naive iteration, the same
// discipline rule firing uses.
func (m *Model) enforceFunctionality(delta *ModelDelta) {
	for _, r := range m.spec.Relations {
		if r.Kind != KindFunction {
			continue
		}
		t := m.tabs[r.Name]
		n := len(r.Dom)
		for _, dirty := range t.all(true) {
			domArgs := dirty[:n]
			for _, other := range t.lookupGraphAll(domArgs) {
				if rowEqual(other, dirty) {
					continue
				}
				a, b := dirty[n], other[n]
				if a == b {
					continue
				}
				delta.newEqualities[r.Cod] = append(delta.newEqualities[r.Cod], [2]Element{a, b})
			}
		}
	}
}

// CloseUntil runs the fixed-point loop (spec §4.4.3) until cond(m)
// holds or the model has fully saturated. Returns whether cond ever
// held.
func (m *Model) CloseUntil(cond func(*Model) bool) bool {
	delta := newModelDelta()

	m.canonicalize()
	if cond(m) {
		return true
	}

	for m.isDirty() {
		for {
			for _, rule := range m.rules {
				if len(rule.scanning) == 0 {
					if m.emptyJoinIsDirty {
						m.matchRule(rule, -1, delta)
					}
					continue
				}
				for variant := range rule.scanning {
					m.matchRule(rule, variant, delta)
				}
			}
			m.enforceFunctionality(delta)

			m.dropDirt()
			delta.applySurjective(m)
			m.canonicalize()

			if cond(m) {
				return true
			}
			if !m.isDirty() {
				break
			}
		}

		delta.applyNonSurjective(m)
		if cond(m) {
			return true
		}
	}

	return false
}

// Close runs CloseUntil with a predicate that never holds: the model
// saturates fully.
func (m *Model) Close() {
	glog.V(1).Info("closure: saturating model")
	m.CloseUntil(func(*Model) bool { return false })
	glog.V(1).Info("closure: model saturated")
}

// Sorts returns the declared sort names, sorted.
func (m *Model) Sorts() []string {
	out := make([]string, 0, len(m.sorts))
	for s := range m.sorts {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
