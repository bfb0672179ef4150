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

package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"github.com/eqlogc/eqc/closure"
	"github.com/eqlogc/eqc/compiler"
	"github.com/eqlogc/eqc/theory"
	"github.com/eqlogc/eqc/theory/parse"
)

// session is the shell's interactive state: a loaded theory, its
// compiled spec, a live Model, and named element bindings so a user
// can refer to "a" and "b" instead of raw element ids.
type session struct {
	out      io.Writer
	th       *theory.Theory
	spec     *closure.ModelSpec
	model    *closure.Model
	elements map[string]map[string]closure.Element // sort -> name -> element
}

func newSession(out io.Writer) *session {
	return &session{out: out, elements: make(map[string]map[string]closure.Element)}
}

func (s *session) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	th, err := parse.Parse(string(data), path)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	spec, err := compiler.Compile(th)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	s.th = th
	s.spec = spec
	s.model = closure.New(spec)
	s.elements = make(map[string]map[string]closure.Element)
	fmt.Fprintf(s.out, "loaded %d sorts, %d relations, %d rules\n", len(spec.Sorts), len(spec.Relations), len(spec.Rules))
	return nil
}

func (s *session) bind(sortName, name string, el closure.Element) {
	if s.elements[sortName] == nil {
		s.elements[sortName] = make(map[string]closure.Element)
	}
	s.elements[sortName][name] = el
}

func (s *session) lookup(sortName, name string) (closure.Element, bool) {
	el, ok := s.elements[sortName][name]
	return el, ok
}

const (
	normalPrompt    = "eq> "
	continuedPrompt = " .> "
)

func nextLine(prompt string) (string, error) {
	rl, err := readline.New(prompt)
	if err != nil {
		return "", err
	}
	line, err := rl.Readline()
	if err != nil {
		return "", err
	}
	readline.AddHistory(line)
	return strings.TrimSpace(line), nil
}

// loop reads shell commands from stdin until EOF.
func (s *session) loop() error {
	s.showHelp()
	for {
		line, err := nextLine(normalPrompt)
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}
		switch {
		case line == "::help":
			s.showHelp()
		case line == "::show":
			s.show()
		case line == "::close":
			if s.model == nil {
				fmt.Fprintln(s.out, "no model loaded; use ::load <path> first")
				continue
			}
			s.model.Close()
			fmt.Fprintln(s.out, "closed")
		case strings.HasPrefix(line, "::load "):
			if err := s.load(strings.TrimSpace(strings.TrimPrefix(line, "::load "))); err != nil {
				fmt.Fprintf(s.out, "load failed: %v\n", err)
			}
		case strings.HasPrefix(line, "::new "):
			s.cmdNew(strings.Fields(strings.TrimPrefix(line, "::new ")))
		case strings.HasPrefix(line, "::insert "):
			s.cmdInsert(strings.Fields(strings.TrimPrefix(line, "::insert ")))
		case strings.HasPrefix(line, "::equate "):
			s.cmdEquate(strings.Fields(strings.TrimPrefix(line, "::equate ")))
		case strings.HasPrefix(line, "::iter "):
			s.cmdIter(strings.TrimSpace(strings.TrimPrefix(line, "::iter ")))
		default:
			fmt.Fprintf(s.out, "unrecognized command %q; ::help for a list\n", line)
		}
	}
}

func (s *session) showHelp() {
	fmt.Fprint(s.out, `eqcomp interactive shell
  ::load <path>                  parse and compile a theory file, starting a fresh Model
  ::show                         list declared sorts and relations
  ::new <sort> <name>            adjoin a fresh element of sort, bound to name
  ::insert <rel> <name...>       insert_R over named elements
  ::equate <sort> <a> <b>        equate_S(a, b)
  ::close                        saturate the model
  ::iter <rel>                   print every stored tuple of rel
  ::help                         show this text
  <Ctrl-D>                       quit
`)
}

func (s *session) show() {
	if s.th == nil {
		fmt.Fprintln(s.out, "no theory loaded")
		return
	}
	sorts := append([]string(nil), s.th.Sorts...)
	sort.Strings(sorts)
	fmt.Fprintf(s.out, "sorts: %s\n", strings.Join(sorts, ", "))
	for _, r := range s.spec.Relations {
		kind := "pred"
		if r.Kind == closure.KindFunction {
			kind = "func"
		}
		fmt.Fprintf(s.out, "  %s %s%v\n", kind, r.Name, r.Arity())
	}
}

func (s *session) requireModel() bool {
	if s.model == nil {
		fmt.Fprintln(s.out, "no model loaded; use ::load <path> first")
		return false
	}
	return true
}

func (s *session) cmdNew(args []string) {
	if !s.requireModel() || len(args) != 2 {
		fmt.Fprintln(s.out, "usage: ::new <sort> <name>")
		return
	}
	el := s.model.NewS(args[0])
	s.bind(args[0], args[1], el)
	fmt.Fprintf(s.out, "%s = %v : %s\n", args[1], el, args[0])
}

func (s *session) relationDom(name string) ([]string, bool) {
	for _, r := range s.spec.Relations {
		if r.Name == name {
			return r.Arity(), true
		}
	}
	return nil, false
}

func (s *session) resolveArgs(dom []string, names []string) ([]closure.Element, error) {
	if len(names) != len(dom) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(dom), len(names))
	}
	args := make([]closure.Element, len(names))
	for i, n := range names {
		el, ok := s.lookup(dom[i], n)
		if !ok {
			return nil, fmt.Errorf("no element %q of sort %q bound (use ::new first)", n, dom[i])
		}
		args[i] = el
	}
	return args, nil
}

func (s *session) cmdInsert(args []string) {
	if !s.requireModel() || len(args) < 1 {
		fmt.Fprintln(s.out, "usage: ::insert <rel> <name...>")
		return
	}
	rel := args[0]
	dom, ok := s.relationDom(rel)
	if !ok {
		fmt.Fprintf(s.out, "unknown relation %q\n", rel)
		return
	}
	elems, err := s.resolveArgs(dom, args[1:])
	if err != nil {
		fmt.Fprintf(s.out, "insert failed: %v\n", err)
		return
	}
	s.model.InsertR(rel, elems...)
	fmt.Fprintln(s.out, "inserted")
}

func (s *session) cmdEquate(args []string) {
	if !s.requireModel() || len(args) != 3 {
		fmt.Fprintln(s.out, "usage: ::equate <sort> <a> <b>")
		return
	}
	sortName := args[0]
	a, ok := s.lookup(sortName, args[1])
	if !ok {
		fmt.Fprintf(s.out, "no element %q of sort %q bound\n", args[1], sortName)
		return
	}
	b, ok := s.lookup(sortName, args[2])
	if !ok {
		fmt.Fprintf(s.out, "no element %q of sort %q bound\n", args[2], sortName)
		return
	}
	s.model.EquateS(sortName, a, b)
	fmt.Fprintln(s.out, "equated")
}

func (s *session) cmdIter(rel string) {
	if !s.requireModel() {
		return
	}
	if _, ok := s.relationDom(rel); !ok {
		fmt.Fprintf(s.out, "unknown relation %q\n", rel)
		return
	}
	for _, tup := range s.model.IterR(rel) {
		fmt.Fprintf(s.out, "%s%v\n", rel, tup)
	}
}
