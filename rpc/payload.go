/* Copyright 2018 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package rpc implements §6's wire protocol: XML-RPC over HTTP, with
// structured payloads (substitutions, claim lists, terms) carried as JSON
// strings inside XML-RPC string arguments, using tag-discriminated objects
// (`{"__Var": name}`, `{"__Subst": [[var,value], ...]}`, `{"__Claim": ...}`).
package rpc

import (
	"encoding/json"
	"fmt"

	"etb/claims"
	"etb/core"
	"etb/parser"
)

// TermToJSON renders t as a plain Go value ready for json.Marshal, using
// the tag-discriminated shapes §6 names for variables ("__Var") and file
// references (the bare `{"file":..., "sha1":...}` object), and a natural
// generalization of the same convention for the term kinds §6 leaves
// unstated (atoms, compounds, lists): every non-leaf kind gets one
// "__Kind" tag, mirroring the two the spec does name.
func TermToJSON(t *core.Term) interface{} {
	if t == nil {
		return nil
	}
	switch t.Kind() {
	case core.KindVar:
		return map[string]interface{}{"__Var": t.VarName()}
	case core.KindConst:
		switch t.ConstKind() {
		case core.ConstString:
			return t.StringVal()
		case core.ConstInt:
			return t.IntVal()
		case core.ConstBool:
			return t.BoolVal()
		case core.ConstAtom:
			return map[string]interface{}{"__Atom": t.StringVal()}
		}
	case core.KindCompound:
		args := t.Args()
		jargs := make([]interface{}, len(args))
		for i, a := range args {
			jargs[i] = TermToJSON(a)
		}
		return map[string]interface{}{"__Compound": map[string]interface{}{
			"functor": t.Functor(),
			"args":    jargs,
		}}
	case core.KindList:
		elems := t.ListElems()
		jelems := make([]interface{}, len(elems))
		for i, e := range elems {
			jelems[i] = TermToJSON(e)
		}
		return map[string]interface{}{"__List": jelems}
	case core.KindFileRef:
		return map[string]interface{}{"file": t.FilePath(), "sha1": t.FileSHA1()}
	}
	return nil
}

// TermFromJSON is TermToJSON's inverse, decoding a value produced by
// json.Unmarshal into interface{} (so numbers arrive as float64, objects as
// map[string]interface{}).
func TermFromJSON(v interface{}) (*core.Term, error) {
	switch x := v.(type) {
	case nil:
		return nil, fmt.Errorf("rpc: nil term")
	case string:
		return core.StringConst(x), nil
	case float64:
		return core.IntConst(int64(x)), nil
	case bool:
		return core.BoolConst(x), nil
	case []interface{}:
		elems := make([]*core.Term, len(x))
		for i, e := range x {
			t, err := TermFromJSON(e)
			if err != nil {
				return nil, err
			}
			elems[i] = t
		}
		return core.List(elems...), nil
	case map[string]interface{}:
		if name, ok := x["__Var"]; ok {
			return core.Var(fmt.Sprint(name)), nil
		}
		if name, ok := x["__Atom"]; ok {
			return core.AtomConst(fmt.Sprint(name)), nil
		}
		if list, ok := x["__List"]; ok {
			return TermFromJSON(list)
		}
		if compound, ok := x["__Compound"]; ok {
			cm, ok := compound.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("rpc: malformed __Compound payload")
			}
			functor, _ := cm["functor"].(string)
			rawArgs, _ := cm["args"].([]interface{})
			args := make([]*core.Term, len(rawArgs))
			for i, a := range rawArgs {
				t, err := TermFromJSON(a)
				if err != nil {
					return nil, err
				}
				args[i] = t
			}
			return core.Compound(functor, args...), nil
		}
		if path, ok := x["file"]; ok {
			sha1, _ := x["sha1"].(string)
			return core.FileRef(fmt.Sprint(path), sha1), nil
		}
		return nil, fmt.Errorf("rpc: unrecognized term payload %#v", x)
	default:
		return nil, fmt.Errorf("rpc: unrecognized term payload %#v", x)
	}
}

// SubstToJSON renders s as the `{"__Subst": [[var, value], ...]}` shape
// named by §6, with bindings ordered by variable name for a deterministic
// wire encoding.
func SubstToJSON(s core.Subst) interface{} {
	pairs := make([][2]interface{}, 0, len(s))
	for _, k := range s.SortedKeys() {
		pairs = append(pairs, [2]interface{}{k, TermToJSON(s[k])})
	}
	return map[string]interface{}{"__Subst": pairs}
}

// SubstFromJSON is SubstToJSON's inverse.
func SubstFromJSON(v interface{}) (core.Subst, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("rpc: malformed substitution payload")
	}
	raw, ok := m["__Subst"]
	if !ok {
		return nil, fmt.Errorf("rpc: payload is not a __Subst object")
	}
	pairs, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("rpc: malformed __Subst pair list")
	}
	s := core.NewSubst()
	for _, p := range pairs {
		pair, ok := p.([]interface{})
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("rpc: malformed __Subst pair %#v", p)
		}
		name, ok := pair[0].(string)
		if !ok {
			return nil, fmt.Errorf("rpc: __Subst variable name must be a string")
		}
		t, err := TermFromJSON(pair[1])
		if err != nil {
			return nil, err
		}
		s.Extend(name, t)
	}
	return s, nil
}

// wireClaim is a claim's JSON shape inside a "__Claim" object: the literal
// is carried as its rendered goal-string form (reparsed with
// parser.ParseLiteral on the way back in), following claims/store.go's own
// string-plus-digests durability-log shape.
type wireClaim struct {
	Literal    string      `json:"literal"`
	Edge       claims.Edge `json:"edge"`
	QueryId    string      `json:"query_id"`
	LitDigest  string      `json:"lit_digest"`
	EdgeDigest string      `json:"edge_digest"`
}

// ClaimToJSON renders c as the `{"__Claim": ...}` shape named by §6.
func ClaimToJSON(c *claims.Claim) interface{} {
	return map[string]interface{}{"__Claim": wireClaim{
		Literal:    c.Literal.String(),
		Edge:       c.Edge,
		QueryId:    c.QueryId,
		LitDigest:  c.LitDigest,
		EdgeDigest: c.EdgeDigest,
	}}
}

// ClaimFromJSON is ClaimToJSON's inverse, reparsing the literal's rendered
// goal-string form and recomputing it as a Claim rather than trusting the
// wire-carried digests blindly.
func ClaimFromJSON(v interface{}) (*claims.Claim, error) {
	// v must be a map[string]interface{} as decoded by json.Unmarshal into
	// interface{}; its "__Claim" value is round-tripped through
	// json.Marshal/Unmarshal into wireClaim. Any other type is rejected.
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("rpc: malformed claim payload")
	}
	raw, ok := m["__Claim"]
	if !ok {
		return nil, fmt.Errorf("rpc: payload is not a __Claim object")
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var wc wireClaim
	if err := json.Unmarshal(buf, &wc); err != nil {
		return nil, err
	}
	lit, err := parser.ParseLiteral(wc.Literal)
	if err != nil {
		return nil, fmt.Errorf("rpc: reparsing claim literal %q: %w", wc.Literal, err)
	}
	return claims.NewClaim(lit, wc.Edge, wc.QueryId), nil
}
