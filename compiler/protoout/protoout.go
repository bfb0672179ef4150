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

// Package protoout serializes a compiled *closure.ModelSpec to a
// protobuf-wire-format artifact, standing in for "source code
// describing the Model" (spec §6.2) in a structured, tool-consumable
// form rather than a specific target language's syntax. There is no
// .proto/protoc code-generation step in this build, so the message
// shapes below are encoded and decoded directly against the low-level
// protowire API; the field layout they implement is:
//
//	message ModelSpec {
//	  repeated string sorts = 1;
//	  repeated Relation relations = 2;
//	  repeated Rule rules = 3;
//	  repeated RelationIndices indices = 4;
//	}
//	message Relation { string name=1; int32 kind=2; repeated string dom=3; string cod=4; }
//	message Rule { string name=1; repeated Query queries=2; repeated Action actions=3; }
//	message Binding { int32 position=1; uint64 var=2; }
//	message Diagonal { repeated int32 positions=1; }
//	message Query {
//	  int32 kind=1; uint64 a=2; uint64 b=3; string name=4;
//	  repeated Diagonal diagonals=5; repeated Binding projections=6;
//	  repeated Binding results=7; string sort=8; uint64 result=9;
//	}
//	message Action {
//	  int32 kind=1; string func=2; repeated uint64 args=3; uint64 result=4;
//	  string rel=5; repeated uint64 rel_args=6;
//	  string eq_sort=7; uint64 lhs=8; uint64 rhs=9;
//	}
//	message RelationIndices { string relation=1; repeated IndexSpec indices=2; }
//	message IndexSpec { repeated int32 order=1; repeated Diagonal diagonals=2; bool only_dirty=3; }
package protoout

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/eqlogc/eqc/closure"
	"github.com/eqlogc/eqc/flatten"
	"github.com/eqlogc/eqc/index"
	"github.com/eqlogc/eqc/llam"
)

const (
	fieldModelSorts     = 1
	fieldModelRelations = 2
	fieldModelRules     = 3
	fieldModelIndices   = 4

	fieldRelName = 1
	fieldRelKind = 2
	fieldRelDom  = 3
	fieldRelCod  = 4

	fieldRuleName    = 1
	fieldRuleQueries = 2
	fieldRuleActions = 3

	fieldBindingPosition = 1
	fieldBindingVar      = 2

	fieldDiagonalPositions = 1

	fieldQueryKind        = 1
	fieldQueryA           = 2
	fieldQueryB           = 3
	fieldQueryName        = 4
	fieldQueryDiagonals   = 5
	fieldQueryProjections = 6
	fieldQueryResults     = 7
	fieldQuerySort        = 8
	fieldQueryResult      = 9

	fieldActionKind    = 1
	fieldActionFunc    = 2
	fieldActionArgs    = 3
	fieldActionResult  = 4
	fieldActionRel     = 5
	fieldActionRelArgs = 6
	fieldActionEqSort  = 7
	fieldActionLhs     = 8
	fieldActionRhs     = 9

	fieldRelIdxRelation = 1
	fieldRelIdxIndices  = 2

	fieldIndexOrder     = 1
	fieldIndexDiagonals = 2
	fieldIndexOnlyDirty = 3
)

// Marshal encodes a compiled ModelSpec to its protobuf-wire-format
// artifact.
func Marshal(spec *closure.ModelSpec) []byte {
	var b []byte
	for _, s := range spec.Sorts {
		b = protowire.AppendTag(b, fieldModelSorts, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	for _, r := range spec.Relations {
		b = protowire.AppendTag(b, fieldModelRelations, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalRelation(r))
	}
	for _, r := range spec.Rules {
		b = protowire.AppendTag(b, fieldModelRules, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalRule(r))
	}
	if spec.Indices != nil {
		for _, rel := range spec.Indices.Relations() {
			b = protowire.AppendTag(b, fieldModelIndices, protowire.BytesType)
			b = protowire.AppendBytes(b, marshalRelationIndices(rel, spec.Indices.Indices(rel)))
		}
	}
	return b
}

func marshalRelation(r closure.RelationSpec) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldRelName, protowire.BytesType)
	b = protowire.AppendString(b, r.Name)
	b = protowire.AppendTag(b, fieldRelKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Kind))
	for _, d := range r.Dom {
		b = protowire.AppendTag(b, fieldRelDom, protowire.BytesType)
		b = protowire.AppendString(b, d)
	}
	if r.Kind == closure.KindFunction {
		b = protowire.AppendTag(b, fieldRelCod, protowire.BytesType)
		b = protowire.AppendString(b, r.Cod)
	}
	return b
}

func marshalRule(r closure.RuleSpec) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldRuleName, protowire.BytesType)
	b = protowire.AppendString(b, r.Name)
	if r.QueryAction != nil {
		for _, q := range r.QueryAction.Queries {
			b = protowire.AppendTag(b, fieldRuleQueries, protowire.BytesType)
			b = protowire.AppendBytes(b, marshalQuery(q))
		}
		for _, a := range r.QueryAction.Actions {
			b = protowire.AppendTag(b, fieldRuleActions, protowire.BytesType)
			b = protowire.AppendBytes(b, marshalAction(a))
		}
	}
	return b
}

func marshalBinding(position int, v flatten.Var) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldBindingPosition, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(position))
	b = protowire.AppendTag(b, fieldBindingVar, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v))
	return b
}

func marshalDiagonal(positions []int) []byte {
	var b []byte
	for _, p := range positions {
		b = protowire.AppendTag(b, fieldDiagonalPositions, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p))
	}
	return b
}

func marshalQuery(q llam.Query) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldQueryKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(q.Kind))
	b = protowire.AppendTag(b, fieldQueryA, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(q.A))
	b = protowire.AppendTag(b, fieldQueryB, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(q.B))
	b = protowire.AppendTag(b, fieldQueryName, protowire.BytesType)
	b = protowire.AppendString(b, q.Name)
	for _, d := range q.Diagonals {
		b = protowire.AppendTag(b, fieldQueryDiagonals, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalDiagonal(d))
	}
	projPos := make([]int, 0, len(q.Projections))
	for pos := range q.Projections {
		projPos = append(projPos, pos)
	}
	sort.Ints(projPos)
	for _, pos := range projPos {
		b = protowire.AppendTag(b, fieldQueryProjections, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalBinding(pos, q.Projections[pos]))
	}
	resPos := make([]int, 0, len(q.Results))
	for pos := range q.Results {
		resPos = append(resPos, pos)
	}
	sort.Ints(resPos)
	for _, pos := range resPos {
		b = protowire.AppendTag(b, fieldQueryResults, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalBinding(pos, q.Results[pos]))
	}
	b = protowire.AppendTag(b, fieldQuerySort, protowire.BytesType)
	b = protowire.AppendString(b, q.Sort)
	b = protowire.AppendTag(b, fieldQueryResult, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(q.Result))
	return b
}

func marshalAction(a llam.Action) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldActionKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(a.Kind))
	b = protowire.AppendTag(b, fieldActionFunc, protowire.BytesType)
	b = protowire.AppendString(b, a.Func)
	for _, v := range a.Args {
		b = protowire.AppendTag(b, fieldActionArgs, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v))
	}
	b = protowire.AppendTag(b, fieldActionResult, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(a.Result))
	b = protowire.AppendTag(b, fieldActionRel, protowire.BytesType)
	b = protowire.AppendString(b, a.Rel)
	for _, v := range a.RelArgs {
		b = protowire.AppendTag(b, fieldActionRelArgs, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v))
	}
	b = protowire.AppendTag(b, fieldActionEqSort, protowire.BytesType)
	b = protowire.AppendString(b, a.EqSort)
	b = protowire.AppendTag(b, fieldActionLhs, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(a.Lhs))
	b = protowire.AppendTag(b, fieldActionRhs, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(a.Rhs))
	return b
}

func marshalRelationIndices(rel string, indices []index.IndexSpec) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldRelIdxRelation, protowire.BytesType)
	b = protowire.AppendString(b, rel)
	for _, ix := range indices {
		b = protowire.AppendTag(b, fieldRelIdxIndices, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalIndexSpec(ix))
	}
	return b
}

func marshalIndexSpec(ix index.IndexSpec) []byte {
	var b []byte
	for _, p := range ix.Order {
		b = protowire.AppendTag(b, fieldIndexOrder, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p))
	}
	for _, d := range ix.Diagonals {
		b = protowire.AppendTag(b, fieldIndexDiagonals, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalDiagonal(d))
	}
	b = protowire.AppendTag(b, fieldIndexOnlyDirty, protowire.VarintType)
	b = protowire.AppendVarint(b, boolVarint(ix.OnlyDirty))
	return b
}

func boolVarint(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// Artifact is the decoded form of a Marshal'd ModelSpec: a read-only
// description, not a re-runnable compiler output (index.Selection's
// per-query-shape routing table is not itself serialized; Artifact
// carries only the realized IndexSpec set per relation, enough to
// describe the artifact, not to reconstruct a live closure.Model).
type Artifact struct {
	Sorts     []string
	Relations []RelationInfo
	Rules     []RuleInfo
	Indices   []RelationIndicesInfo
}

// RelationInfo mirrors closure.RelationSpec.
type RelationInfo struct {
	Name string
	Kind closure.RelationKind
	Dom  []string
	Cod  string
}

// RuleInfo mirrors closure.RuleSpec with its QueryAction inlined.
type RuleInfo struct {
	Name    string
	Queries []llam.Query
	Actions []llam.Action
}

// RelationIndicesInfo is the realized index set chosen for one
// relation.
type RelationIndicesInfo struct {
	Relation string
	Indices  []index.IndexSpec
}

// Unmarshal decodes a Marshal'd artifact.
func Unmarshal(data []byte) (*Artifact, error) {
	art := &Artifact{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case fieldModelSorts:
			s, rest, err := consumeString(data, typ)
			if err != nil {
				return nil, err
			}
			art.Sorts = append(art.Sorts, s)
			data = rest
		case fieldModelRelations:
			sub, rest, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			r, err := unmarshalRelation(sub)
			if err != nil {
				return nil, err
			}
			art.Relations = append(art.Relations, r)
			data = rest
		case fieldModelRules:
			sub, rest, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			r, err := unmarshalRule(sub)
			if err != nil {
				return nil, err
			}
			art.Rules = append(art.Rules, r)
			data = rest
		case fieldModelIndices:
			sub, rest, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			r, err := unmarshalRelationIndices(sub)
			if err != nil {
				return nil, err
			}
			art.Indices = append(art.Indices, r)
			data = rest
		default:
			rest, err := skipField(data, typ)
			if err != nil {
				return nil, err
			}
			data = rest
		}
	}
	return art, nil
}

func consumeString(data []byte, typ protowire.Type) (string, []byte, error) {
	if typ != protowire.BytesType {
		return "", nil, fmt.Errorf("protoout: expected a length-delimited string field, got wire type %d", typ)
	}
	s, n := protowire.ConsumeString(data)
	if n < 0 {
		return "", nil, protowire.ParseError(n)
	}
	return s, data[n:], nil
}

func consumeBytes(data []byte, typ protowire.Type) ([]byte, []byte, error) {
	if typ != protowire.BytesType {
		return nil, nil, fmt.Errorf("protoout: expected a length-delimited field, got wire type %d", typ)
	}
	b, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, nil, protowire.ParseError(n)
	}
	return b, data[n:], nil
}

func consumeVarint(data []byte, typ protowire.Type) (uint64, []byte, error) {
	if typ != protowire.VarintType {
		return 0, nil, fmt.Errorf("protoout: expected a varint field, got wire type %d", typ)
	}
	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return 0, nil, protowire.ParseError(n)
	}
	return v, data[n:], nil
}

func skipField(data []byte, typ protowire.Type) ([]byte, error) {
	n := protowire.ConsumeFieldValue(0, typ, data)
	if n < 0 {
		return nil, protowire.ParseError(n)
	}
	return data[n:], nil
}

func unmarshalRelation(data []byte) (RelationInfo, error) {
	var r RelationInfo
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return r, protowire.ParseError(n)
		}
		data = data[n:]
		var err error
		switch num {
		case fieldRelName:
			r.Name, data, err = consumeString(data, typ)
		case fieldRelKind:
			var v uint64
			v, data, err = consumeVarint(data, typ)
			r.Kind = closure.RelationKind(v)
		case fieldRelDom:
			var d string
			d, data, err = consumeString(data, typ)
			r.Dom = append(r.Dom, d)
		case fieldRelCod:
			r.Cod, data, err = consumeString(data, typ)
		default:
			data, err = skipField(data, typ)
		}
		if err != nil {
			return r, err
		}
	}
	return r, nil
}

func unmarshalRule(data []byte) (RuleInfo, error) {
	var r RuleInfo
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return r, protowire.ParseError(n)
		}
		data = data[n:]
		var err error
		switch num {
		case fieldRuleName:
			r.Name, data, err = consumeString(data, typ)
		case fieldRuleQueries:
			var sub []byte
			sub, data, err = consumeBytes(data, typ)
			if err == nil {
				var q llam.Query
				q, err = unmarshalQuery(sub)
				r.Queries = append(r.Queries, q)
			}
		case fieldRuleActions:
			var sub []byte
			sub, data, err = consumeBytes(data, typ)
			if err == nil {
				var a llam.Action
				a, err = unmarshalAction(sub)
				r.Actions = append(r.Actions, a)
			}
		default:
			data, err = skipField(data, typ)
		}
		if err != nil {
			return r, err
		}
	}
	return r, nil
}

func unmarshalBinding(data []byte) (int, flatten.Var, error) {
	var pos int
	var v flatten.Var
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return 0, 0, protowire.ParseError(n)
		}
		data = data[n:]
		var err error
		var raw uint64
		switch num {
		case fieldBindingPosition:
			raw, data, err = consumeVarint(data, typ)
			pos = int(raw)
		case fieldBindingVar:
			raw, data, err = consumeVarint(data, typ)
			v = flatten.Var(raw)
		default:
			data, err = skipField(data, typ)
		}
		if err != nil {
			return 0, 0, err
		}
	}
	return pos, v, nil
}

func unmarshalDiagonal(data []byte) ([]int, error) {
	var positions []int
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		var err error
		switch num {
		case fieldDiagonalPositions:
			var raw uint64
			raw, data, err = consumeVarint(data, typ)
			positions = append(positions, int(raw))
		default:
			data, err = skipField(data, typ)
		}
		if err != nil {
			return nil, err
		}
	}
	return positions, nil
}

func unmarshalQuery(data []byte) (llam.Query, error) {
	q := llam.Query{Projections: map[int]flatten.Var{}, Results: map[int]flatten.Var{}}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return q, protowire.ParseError(n)
		}
		data = data[n:]
		var err error
		switch num {
		case fieldQueryKind:
			var v uint64
			v, data, err = consumeVarint(data, typ)
			q.Kind = llam.QueryKind(v)
		case fieldQueryA:
			var v uint64
			v, data, err = consumeVarint(data, typ)
			q.A = flatten.Var(v)
		case fieldQueryB:
			var v uint64
			v, data, err = consumeVarint(data, typ)
			q.B = flatten.Var(v)
		case fieldQueryName:
			q.Name, data, err = consumeString(data, typ)
		case fieldQueryDiagonals:
			var sub []byte
			sub, data, err = consumeBytes(data, typ)
			if err == nil {
				var d []int
				d, err = unmarshalDiagonal(sub)
				q.Diagonals = append(q.Diagonals, d)
			}
		case fieldQueryProjections:
			var sub []byte
			sub, data, err = consumeBytes(data, typ)
			if err == nil {
				var pos int
				var v flatten.Var
				pos, v, err = unmarshalBinding(sub)
				q.Projections[pos] = v
			}
		case fieldQueryResults:
			var sub []byte
			sub, data, err = consumeBytes(data, typ)
			if err == nil {
				var pos int
				var v flatten.Var
				pos, v, err = unmarshalBinding(sub)
				q.Results[pos] = v
			}
		case fieldQuerySort:
			q.Sort, data, err = consumeString(data, typ)
		case fieldQueryResult:
			var v uint64
			v, data, err = consumeVarint(data, typ)
			q.Result = flatten.Var(v)
		default:
			data, err = skipField(data, typ)
		}
		if err != nil {
			return q, err
		}
	}
	return q, nil
}

func unmarshalAction(data []byte) (llam.Action, error) {
	var a llam.Action
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return a, protowire.ParseError(n)
		}
		data = data[n:]
		var err error
		switch num {
		case fieldActionKind:
			var v uint64
			v, data, err = consumeVarint(data, typ)
			a.Kind = llam.ActionKind(v)
		case fieldActionFunc:
			a.Func, data, err = consumeString(data, typ)
		case fieldActionArgs:
			var v uint64
			v, data, err = consumeVarint(data, typ)
			a.Args = append(a.Args, flatten.Var(v))
		case fieldActionResult:
			var v uint64
			v, data, err = consumeVarint(data, typ)
			a.Result = flatten.Var(v)
		case fieldActionRel:
			a.Rel, data, err = consumeString(data, typ)
		case fieldActionRelArgs:
			var v uint64
			v, data, err = consumeVarint(data, typ)
			a.RelArgs = append(a.RelArgs, flatten.Var(v))
		case fieldActionEqSort:
			a.EqSort, data, err = consumeString(data, typ)
		case fieldActionLhs:
			var v uint64
			v, data, err = consumeVarint(data, typ)
			a.Lhs = flatten.Var(v)
		case fieldActionRhs:
			var v uint64
			v, data, err = consumeVarint(data, typ)
			a.Rhs = flatten.Var(v)
		default:
			data, err = skipField(data, typ)
		}
		if err != nil {
			return a, err
		}
	}
	return a, nil
}

func unmarshalRelationIndices(data []byte) (RelationIndicesInfo, error) {
	var r RelationIndicesInfo
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return r, protowire.ParseError(n)
		}
		data = data[n:]
		var err error
		switch num {
		case fieldRelIdxRelation:
			r.Relation, data, err = consumeString(data, typ)
		case fieldRelIdxIndices:
			var sub []byte
			sub, data, err = consumeBytes(data, typ)
			if err == nil {
				var ix index.IndexSpec
				ix, err = unmarshalIndexSpec(sub)
				r.Indices = append(r.Indices, ix)
			}
		default:
			data, err = skipField(data, typ)
		}
		if err != nil {
			return r, err
		}
	}
	return r, nil
}

func unmarshalIndexSpec(data []byte) (index.IndexSpec, error) {
	var ix index.IndexSpec
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ix, protowire.ParseError(n)
		}
		data = data[n:]
		var err error
		switch num {
		case fieldIndexOrder:
			var v uint64
			v, data, err = consumeVarint(data, typ)
			ix.Order = append(ix.Order, int(v))
		case fieldIndexDiagonals:
			var sub []byte
			sub, data, err = consumeBytes(data, typ)
			if err == nil {
				var d []int
				d, err = unmarshalDiagonal(sub)
				ix.Diagonals = append(ix.Diagonals, d)
			}
		case fieldIndexOnlyDirty:
			var v uint64
			v, data, err = consumeVarint(data, typ)
			ix.OnlyDirty = v != 0
		default:
			data, err = skipField(data, typ)
		}
		if err != nil {
			return ix, err
		}
	}
	return ix, nil
}
