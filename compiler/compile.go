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
	"sort"

	"github.com/golang/glog"
	"go.uber.org/multierr"

	"github.com/eqlogc/eqc/closure"
	"github.com/eqlogc/eqc/flatten"
	"github.com/eqlogc/eqc/index"
	"github.com/eqlogc/eqc/llam"
	"github.com/eqlogc/eqc/theory"
)

// Compile runs the whole pipeline (Universe -> Flattener -> LLAM ->
// Index Selector -> Closure Scheme, spec §2) over a theory, producing a
// *closure.ModelSpec ready to drive a closure.Model, or a non-nil error
// if the theory fails validation (only the first error Validate
// collected is returned). Compile is a pure function of its input (spec
// §8.1's Determinism invariant): identical theories yield identical
// ModelSpecs, since every slice built along the way is filled in a fixed
// order; the position maps inside llam.Query values stay maps, and
// compiler/protoout writes them in ascending position order.
func Compile(th *theory.Theory) (spec *closure.ModelSpec, err error) {
	glog.V(1).Infof("compiler: compiling theory with %d rules", len(th.Rules))
	if verr := Validate(th); verr != nil {
		return nil, multierr.Errors(verr)[0]
	}
	table := th.Table()

	defer func() {
		if r := recover(); r != nil {
			fe, ok := r.(*flatten.InvalidSequentError)
			if !ok {
				panic(r)
			}
			err = &Error{Kind: EPIC, Message: fe.Reason}
			spec = nil
		}
	}()

	rules := make([]closure.RuleSpec, 0, len(th.Rules))
	queryShapes := make(map[string][]index.QuerySpec)

	for _, rule := range th.Rules {
		flat := flatten.Flatten(rule.Sequent)
		qa, lerr := llam.Lower(table, flat)
		if lerr != nil {
			return nil, &Error{Kind: InvalidFlatSequent, Rule: rule.Name, Message: lerr.Error()}
		}
		rules = append(rules, closure.RuleSpec{Name: rule.Name, QueryAction: qa})
		collectQueryShapes(qa, queryShapes)
	}

	relNames := table.Relations()
	sort.Strings(relNames)
	relations := make([]closure.RelationSpec, 0, len(relNames))
	for _, name := range relNames {
		if dom, cod, ok := table.FuncArity(name); ok {
			relations = append(relations, closure.RelationSpec{Name: name, Kind: closure.KindFunction, Dom: dom, Cod: cod})
			continue
		}
		dom, _ := table.PredArity(name)
		relations = append(relations, closure.RelationSpec{Name: name, Kind: closure.KindPredicate, Dom: dom})
	}

	sel := index.Select(table, relNames, queryShapes)

	glog.V(1).Infof("compiler: compiled %d relations, %d rules", len(relations), len(rules))
	return &closure.ModelSpec{
		Sorts:     append([]string(nil), th.Sorts...),
		Relations: relations,
		Rules:     rules,
		Indices:   sel,
	}, nil
}

// collectQueryShapes records the query shapes a lowered rule needs
// against every relation it touches: each premise Relation query, plus
// the implicit "is this tuple already present" shape every AddTuple
// action requires and the implicit domain-prefix graph-lookup shape
// every AddTerm action requires (spec §4.3's index-selector input).
func collectQueryShapes(qa *llam.QueryAction, shapes map[string][]index.QuerySpec) {
	for _, q := range qa.Queries {
		if q.Kind != llam.QueryRelation {
			continue
		}
		proj := make(map[int]bool, len(q.Projections))
		for pos := range q.Projections {
			proj[pos] = true
		}
		shapes[q.Name] = append(shapes[q.Name], index.QuerySpec{Projections: proj, Diagonals: q.Diagonals})
	}
	for _, a := range qa.Actions {
		switch a.Kind {
		case llam.ActionAddTuple:
			if len(a.RelArgs) == 0 {
				continue
			}
			proj := make(map[int]bool, len(a.RelArgs))
			for i := range a.RelArgs {
				proj[i] = true
			}
			shapes[a.Rel] = append(shapes[a.Rel], index.QuerySpec{Projections: proj, Diagonals: diagonalsOf(a.RelArgs)})
		case llam.ActionAddTerm:
			proj := make(map[int]bool, len(a.Args))
			for i := range a.Args {
				proj[i] = true
			}
			shapes[a.Func] = append(shapes[a.Func], index.QuerySpec{Projections: proj, Diagonals: diagonalsOf(a.Args)})
		}
	}
}

func diagonalsOf(vars []flatten.Var) [][]int {
	groups := make(map[flatten.Var][]int)
	for i, v := range vars {
		groups[v] = append(groups[v], i)
	}
	var out [][]int
	for _, positions := range groups {
		if len(positions) > 1 {
			out = append(out, positions)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
