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

// Package llam lowers a flat sequent to the Low-Level Algebraic
// Machine form: each premise atom becomes a Query, each conclusion atom
// becomes an Action, classified as tuple-insert, term-create or
// equate. This is the second stage of the pipeline (spec §4.2).
package llam

import (
	"fmt"
	"sort"

	"github.com/eqlogc/eqc/flatten"
	"github.com/eqlogc/eqc/symtab"
)

// QueryKind distinguishes the three Query shapes.
type QueryKind int

const (
	// QueryEq is a filter: two already-bound variables must be equal.
	QueryEq QueryKind = iota
	// QueryRelation iterates tuples of a relation, projecting already
	// bound positions and binding the rest.
	QueryRelation
	// QuerySort iterates every element of a sort.
	QuerySort
)

// Query is one premise step of a lowered rule.
type Query struct {
	Kind QueryKind

	// Eq
	A, B flatten.Var

	// Relation
	Name        string
	Diagonals   [][]int             // sets of positions required equal, each of size >= 2
	Projections map[int]flatten.Var // position -> already-bound var (input)
	Results     map[int]flatten.Var // position -> var being bound (output)

	// Sort. Also doubles as the sort A and B belong to when Kind is
	// QueryEq (both must already be bound at the same sort; flatten's
	// Check rejects Eq atoms in a premise, so flattener output never
	// yields one).
	Sort   string
	Result flatten.Var
}

// ActionKind distinguishes the three Action shapes.
type ActionKind int

const (
	// ActionAddTerm allocates a new element if the graph tuple is not
	// already present (a function application whose result was fresh).
	ActionAddTerm ActionKind = iota
	// ActionAddTuple inserts a complete tuple (predicate assertion, or a
	// function graph edge whose result was already bound).
	ActionAddTuple
	// ActionEquate merges two elements of the same sort.
	ActionEquate
)

// Action is one conclusion step of a lowered rule.
type Action struct {
	Kind ActionKind

	// AddTerm
	Func   string
	Args   []flatten.Var
	Result flatten.Var

	// AddTuple
	Rel      string
	RelArgs  []flatten.Var

	// Equate
	EqSort string
	Lhs    flatten.Var
	Rhs    flatten.Var
}

// QueryAction is a fully lowered rule: its premise as a query program,
// its conclusion as an action program.
type QueryAction struct {
	Queries []Query
	Actions []Action
}

// IsSurjective reports whether the rule introduces no new elements —
// its conclusion consists only of equalities and tuple inserts.
func (qa *QueryAction) IsSurjective() bool {
	for _, a := range qa.Actions {
		if a.Kind == ActionAddTerm {
			return false
		}
	}
	return true
}

func diagonals(args []flatten.Var) [][]int {
	groups := make(map[flatten.Var][]int)
	for i, v := range args {
		groups[v] = append(groups[v], i)
	}
	var out [][]int
	for _, positions := range groups {
		if len(positions) > 1 {
			sort.Ints(positions)
			out = append(out, positions)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func projectionsAndResults(fixed map[flatten.Var]string, args []flatten.Var) (proj, res map[int]flatten.Var) {
	proj = make(map[int]flatten.Var)
	res = make(map[int]flatten.Var)
	for i, v := range args {
		if _, ok := fixed[v]; ok {
			proj[i] = v
		} else {
			res[i] = v
		}
	}
	return proj, res
}

// Lower translates a FlatSequent into a QueryAction, given the symbol
// table describing relation arities (spec §4.2).
func Lower(table *symtab.Table, seq *flatten.Sequent) (*QueryAction, error) {
	fixed := make(map[flatten.Var]string)

	queries, err := translatePremise(table, fixed, seq.Premise)
	if err != nil {
		return nil, err
	}
	actions, err := translateConclusion(table, fixed, seq.Conclusion)
	if err != nil {
		return nil, err
	}
	return &QueryAction{Queries: queries, Actions: actions}, nil
}

func translatePremise(table *symtab.Table, fixed map[flatten.Var]string, premise []flatten.Atom) ([]Query, error) {
	queries := make([]Query, 0, len(premise))
	for _, atom := range premise {
		switch atom.Kind {
		case flatten.Eq:
			sort, ok := fixed[atom.A]
			if !ok {
				return nil, fmt.Errorf("llam: Eq query on unbound variable v%d", atom.A)
			}
			queries = append(queries, Query{Kind: QueryEq, A: atom.A, B: atom.B, Sort: sort})
		case flatten.Unconstrained:
			fixed[atom.V] = atom.Sort
			queries = append(queries, Query{Kind: QuerySort, Sort: atom.Sort, Result: atom.V})
		case flatten.Rel:
			arity, ok := table.RelationArity(atom.Name)
			if !ok {
				return nil, fmt.Errorf("llam: unknown relation %q", atom.Name)
			}
			if len(arity) != len(atom.Vars) {
				return nil, fmt.Errorf("llam: relation %q used with %d arguments, declared with %d", atom.Name, len(atom.Vars), len(arity))
			}
			proj, res := projectionsAndResults(fixed, atom.Vars)
			queries = append(queries, Query{
				Kind:        QueryRelation,
				Name:        atom.Name,
				Diagonals:   diagonals(atom.Vars),
				Projections: proj,
				Results:     res,
			})
			for i, v := range atom.Vars {
				fixed[v] = arity[i]
			}
		}
	}
	return queries, nil
}

func translateConclusion(table *symtab.Table, fixed map[flatten.Var]string, conclusion []flatten.Atom) ([]Action, error) {
	actions := make([]Action, 0, len(conclusion))
	for _, atom := range conclusion {
		switch atom.Kind {
		case flatten.Eq:
			sa, ok := fixed[atom.A]
			if !ok {
				return nil, fmt.Errorf("llam: Equate on unbound variable v%d", atom.A)
			}
			sb, ok := fixed[atom.B]
			if !ok {
				return nil, fmt.Errorf("llam: Equate on unbound variable v%d", atom.B)
			}
			if sa != sb {
				return nil, fmt.Errorf("llam: Equate sort mismatch: %s vs %s", sa, sb)
			}
			actions = append(actions, Action{Kind: ActionEquate, EqSort: sa, Lhs: atom.A, Rhs: atom.B})

		case flatten.Unconstrained:
			return nil, fmt.Errorf("llam: Unconstrained in conclusion")

		case flatten.Rel:
			if len(atom.Vars) == 0 {
				actions = append(actions, Action{Kind: ActionAddTuple, Rel: atom.Name})
				continue
			}
			if table.IsPredicate(atom.Name) {
				for _, v := range atom.Vars {
					if _, ok := fixed[v]; !ok {
						return nil, fmt.Errorf("llam: predicate %q argument v%d is unbound", atom.Name, v)
					}
				}
				actions = append(actions, Action{Kind: ActionAddTuple, Rel: atom.Name, RelArgs: append([]flatten.Var(nil), atom.Vars...)})
				continue
			}
			if !table.IsFunction(atom.Name) {
				return nil, fmt.Errorf("llam: unknown relation %q", atom.Name)
			}
			args := atom.Vars[:len(atom.Vars)-1]
			for _, v := range args {
				if _, ok := fixed[v]; !ok {
					return nil, fmt.Errorf("llam: function %q argument v%d must occur earlier", atom.Name, v)
				}
			}
			result := atom.Vars[len(atom.Vars)-1]
			if _, ok := fixed[result]; ok {
				actions = append(actions, Action{Kind: ActionAddTuple, Rel: atom.Name, RelArgs: append([]flatten.Var(nil), atom.Vars...)})
				continue
			}
			_, cod, _ := table.FuncArity(atom.Name)
			fixed[result] = cod
			actions = append(actions, Action{
				Kind:   ActionAddTerm,
				Func:   atom.Name,
				Args:   append([]flatten.Var(nil), args...),
				Result: result,
			})
		}
	}
	return actions, nil
}

// QueryTermsUsedInActions returns the flat variables that some action
// needs but does not itself freshly produce — the bindings a matched
// premise must carry into the action phase (spec §4.2).
func (qa *QueryAction) QueryTermsUsedInActions(table *symtab.Table) map[flatten.Var]string {
	newTerms := make(map[flatten.Var]bool)
	queryTerms := make(map[flatten.Var]string)
	record := func(v flatten.Var, sort string) {
		if !newTerms[v] {
			queryTerms[v] = sort
		}
	}
	for _, a := range qa.Actions {
		switch a.Kind {
		case ActionAddTerm:
			newTerms[a.Result] = true
			dom, _, _ := table.FuncArity(a.Func)
			for i, v := range a.Args {
				record(v, dom[i])
			}
		case ActionAddTuple:
			arity, _ := table.RelationArity(a.Rel)
			for i, v := range a.RelArgs {
				if i < len(arity) {
					record(v, arity[i])
				}
			}
		case ActionEquate:
			record(a.Lhs, a.EqSort)
			record(a.Rhs, a.EqSort)
		}
	}
	return queryTerms
}
