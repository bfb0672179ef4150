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

// Package parse provides a small hand-written recursive-descent reader
// for theory source text, turning it into a *theory.Theory that the
// compiler package can consume.
//
// Surface grammar parsing, symbol-table building and sort inference are
// all out of scope for the compiler itself (they are "external
// collaborators"), so the concrete syntax here is this package's own
// invention rather than anything the specification mandates. It exists
// to give the CLI and REPL something to parse, and is kept deliberately
// small:
//
//	sort obj.
//	sort mor.
//	func comp(mor, mor): mor.
//	pred signature(obj, mor, obj).
//
//	signature(x:obj, f:mor, y:obj) & signature(y, g:mor, z:obj) then
//	  comp(g, f)! & signature(x, comp(g, f), z).
//
// Declarations must precede the rules that use their names. A variable
// is introduced the first time it is written, annotated with its sort
// (`name:sort`); every later mention in the same rule is bare. A
// wildcard is always written `_:sort`, fresh at every occurrence.
// `then` separates a rule's premise from its conclusion; either side
// may be empty. Atoms are `term = term` (equality), `term!`
// (definedness — this is also how an unconstrained premise variable,
// spec §3.2's Unconstrained, is written: `x:obj!`), or `name(args)`
// where name is a declared predicate.
package parse

import (
	"fmt"
	"strings"
	"text/scanner"

	"github.com/eqlogc/eqc/symtab"
	"github.com/eqlogc/eqc/term"
	"github.com/eqlogc/eqc/theory"
)

// Error is a parse failure with its source position.
type Error struct {
	Pos     scanner.Position
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

type parser struct {
	sc  scanner.Scanner
	src string
	tok rune
}

// Parse reads theory source text into a *theory.Theory. filename is
// used only for error positions.
func Parse(src, filename string) (*theory.Theory, error) {
	p := &parser{src: src}
	p.sc.Init(strings.NewReader(src))
	p.sc.Filename = filename
	p.sc.Mode = scanner.ScanIdents | scanner.ScanComments | scanner.SkipComments
	p.next()

	th := &theory.Theory{}
	ruleIdx := 0
	for p.tok != scanner.EOF {
		switch {
		case p.atKeyword("sort"):
			name, err := p.parseSortDecl()
			if err != nil {
				return nil, err
			}
			th.Sorts = append(th.Sorts, name)
		case p.atKeyword("func"):
			fd, err := p.parseFuncDecl()
			if err != nil {
				return nil, err
			}
			th.Funcs = append(th.Funcs, fd)
		case p.atKeyword("pred"):
			pd, err := p.parsePredDecl()
			if err != nil {
				return nil, err
			}
			th.Preds = append(th.Preds, pd)
		default:
			ruleIdx++
			table := th.Table()
			startOffset := p.sc.Position.Offset
			rule, err := p.parseRule(ruleIdx, table)
			if err != nil {
				return nil, err
			}
			rule.Source = strings.TrimSpace(p.src[startOffset:p.sc.Position.Offset])
			th.Rules = append(th.Rules, rule)
		}
	}
	return th, nil
}

func (p *parser) next() {
	p.tok = p.sc.Scan()
}

func (p *parser) errorf(format string, args ...any) error {
	return &Error{Pos: p.sc.Position, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) atKeyword(kw string) bool {
	return p.tok == scanner.Ident && p.sc.TokenText() == kw
}

func (p *parser) atPunct(r rune) bool { return p.tok == r }

func (p *parser) expectPunct(r rune) error {
	if p.tok != r {
		return p.errorf("expected %q, got %q", string(r), p.sc.TokenText())
	}
	p.next()
	return nil
}

func (p *parser) expectIdent() (string, error) {
	if p.tok != scanner.Ident {
		return "", p.errorf("expected an identifier, got %q", p.sc.TokenText())
	}
	name := p.sc.TokenText()
	p.next()
	return name, nil
}

// parseSortDecl parses `sort name.` (the leading keyword is already
// current).
func (p *parser) parseSortDecl() (string, error) {
	p.next() // "sort"
	name, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	if err := p.expectPunct('.'); err != nil {
		return "", err
	}
	return name, nil
}

// parseFuncDecl parses `func name(sort, sort, ...): sort.`.
func (p *parser) parseFuncDecl() (symtab.FuncDecl, error) {
	p.next() // "func"
	name, err := p.expectIdent()
	if err != nil {
		return symtab.FuncDecl{}, err
	}
	dom, err := p.parseSortList()
	if err != nil {
		return symtab.FuncDecl{}, err
	}
	if err := p.expectPunct(':'); err != nil {
		return symtab.FuncDecl{}, err
	}
	cod, err := p.expectIdent()
	if err != nil {
		return symtab.FuncDecl{}, err
	}
	if err := p.expectPunct('.'); err != nil {
		return symtab.FuncDecl{}, err
	}
	return symtab.FuncDecl{Name: name, Dom: dom, Cod: cod}, nil
}

// parsePredDecl parses `pred name(sort, sort, ...).`.
func (p *parser) parsePredDecl() (symtab.PredDecl, error) {
	p.next() // "pred"
	name, err := p.expectIdent()
	if err != nil {
		return symtab.PredDecl{}, err
	}
	dom, err := p.parseSortList()
	if err != nil {
		return symtab.PredDecl{}, err
	}
	if err := p.expectPunct('.'); err != nil {
		return symtab.PredDecl{}, err
	}
	return symtab.PredDecl{Name: name, Dom: dom}, nil
}

// parseSortList parses `( name, name, ... )`, possibly empty.
func (p *parser) parseSortList() ([]string, error) {
	if err := p.expectPunct('('); err != nil {
		return nil, err
	}
	if p.atPunct(')') {
		p.next()
		return nil, nil
	}
	var names []string
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if p.atPunct(',') {
			p.next()
			continue
		}
		break
	}
	if err := p.expectPunct(')'); err != nil {
		return nil, err
	}
	return names, nil
}

// parseRule parses `[premise] then [conclusion].`.
func (p *parser) parseRule(idx int, table *symtab.Table) (*theory.Rule, error) {
	u := term.NewUniverse()
	vars := make(map[string]term.Term)

	premise, err := p.parseAtomList(u, vars, table)
	if err != nil {
		return nil, err
	}
	if !p.atKeyword("then") {
		return nil, p.errorf("expected %q, got %q", "then", p.sc.TokenText())
	}
	p.next()
	conclusion, err := p.parseAtomList(u, vars, table)
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct('.'); err != nil {
		return nil, err
	}
	return &theory.Rule{
		Name: fmt.Sprintf("rule%d", idx),
		Sequent: &term.Sequent{
			Universe:   u,
			Premise:    premise,
			Conclusion: conclusion,
		},
	}, nil
}

// parseAtomList parses an ampersand-separated atom list, which may be
// empty if the next token ends it (the "then" keyword or the closing
// '.').
func (p *parser) parseAtomList(u *term.Universe, vars map[string]term.Term, table *symtab.Table) ([]term.Atom, error) {
	if p.atKeyword("then") || p.atPunct('.') {
		return nil, nil
	}
	var atoms []term.Atom
	for {
		a, err := p.parseAtom(u, vars, table)
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, a)
		if p.atPunct('&') {
			p.next()
			continue
		}
		break
	}
	return atoms, nil
}

// parseAtom parses one premise or conclusion atom: a predicate
// application, or a term followed by '=' (Equal) or '!' (Defined).
func (p *parser) parseAtom(u *term.Universe, vars map[string]term.Term, table *symtab.Table) (term.Atom, error) {
	if p.tok == scanner.Ident && p.sc.TokenText() != "_" && table.IsPredicate(p.sc.TokenText()) {
		name := p.sc.TokenText()
		p.next()
		args, err := p.parseTermArgs(u, vars, table)
		if err != nil {
			return term.Atom{}, err
		}
		return term.Predicate(name, args...), nil
	}

	t, err := p.parseTerm(u, vars, table)
	if err != nil {
		return term.Atom{}, err
	}
	switch {
	case p.atPunct('='):
		p.next()
		r, err := p.parseTerm(u, vars, table)
		if err != nil {
			return term.Atom{}, err
		}
		return term.Equal(t, r), nil
	case p.atPunct('!'):
		p.next()
		return term.Defined(t, u.Sort(t)), nil
	}
	return term.Atom{}, p.errorf("expected '=' or '!' after a term, got %q", p.sc.TokenText())
}

// parseTerm parses a wildcard, a variable (first occurrence annotated
// with its sort, later occurrences bare), or a function application.
func (p *parser) parseTerm(u *term.Universe, vars map[string]term.Term, table *symtab.Table) (term.Term, error) {
	if p.tok != scanner.Ident {
		return 0, p.errorf("expected a term, got %q", p.sc.TokenText())
	}
	name := p.sc.TokenText()

	if name == "_" {
		p.next()
		sort, err := p.parseSortAnnotation()
		if err != nil {
			return 0, err
		}
		if !table.HasSort(sort) {
			return 0, p.errorf("undeclared sort %q", sort)
		}
		return u.Add(term.Wildcard(), sort), nil
	}

	p.next()
	if p.atPunct('(') {
		args, err := p.parseTermArgs(u, vars, table)
		if err != nil {
			return 0, err
		}
		_, cod, ok := table.FuncArity(name)
		if !ok {
			return 0, p.errorf("undeclared function %q", name)
		}
		return u.Add(term.Application(name, args...), cod), nil
	}

	if t, ok := vars[name]; ok {
		return t, nil
	}
	sort, err := p.parseSortAnnotation()
	if err != nil {
		return 0, p.errorf("variable %q used before its first, sort-annotated occurrence (%s:sort)", name, name)
	}
	if !table.HasSort(sort) {
		return 0, p.errorf("undeclared sort %q", sort)
	}
	t := u.Add(term.Variable(name), sort)
	vars[name] = t
	return t, nil
}

func (p *parser) parseSortAnnotation() (string, error) {
	if err := p.expectPunct(':'); err != nil {
		return "", err
	}
	return p.expectIdent()
}

// parseTermArgs parses `( term, term, ... )`, possibly empty.
func (p *parser) parseTermArgs(u *term.Universe, vars map[string]term.Term, table *symtab.Table) ([]term.Term, error) {
	if err := p.expectPunct('('); err != nil {
		return nil, err
	}
	if p.atPunct(')') {
		p.next()
		return nil, nil
	}
	var args []term.Term
	for {
		t, err := p.parseTerm(u, vars, table)
		if err != nil {
			return nil, err
		}
		args = append(args, t)
		if p.atPunct(',') {
			p.next()
			continue
		}
		break
	}
	if err := p.expectPunct(')'); err != nil {
		return nil, err
	}
	return args, nil
}
