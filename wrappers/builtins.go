/* Copyright 2013 SRI International
 * Copyright 2018 Comcast Cable Communications Management, LLC
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

// Package wrappers holds the small set of builtin wrapper predicates used
// for the engine's own self-tests and for spec.md §8's worked scenarios:
// ping/pong (dynamic subgoals), in_range (substitutions), verycomposite/comp
// (lemmata), and less_than (an external predicate kept from the original's
// datalog/externals.py unit-test fixture).
package wrappers

import (
	"context"
	"fmt"

	"etb/core"
	"etb/wrapper"
)

// RegisterPingPong registers the mutually recursive ping/pong predicates
// from original_source/etb/wrappers/{ping,pong}_wrapper.py. ping(0) and
// pong(0) succeed directly; ping(n) (n>0) emits the subgoal pong(n-1), and
// symmetrically for pong, via the queries outcome (§4.3).
func RegisterPingPong(reg *wrapper.Registry) {
	reg.Register(
		&wrapper.Signature{Name: "ping", Args: []wrapper.ArgSpec{{Mode: wrapper.ModeIn, Kind: wrapper.KindValue}}},
		wrapper.ResolverFunc(func(ctx context.Context, lit *core.Literal) (wrapper.Outcome, error) {
			return pingPong(lit, "pong")
		}),
	)
	reg.Register(
		&wrapper.Signature{Name: "pong", Args: []wrapper.ArgSpec{{Mode: wrapper.ModeIn, Kind: wrapper.KindValue}}},
		wrapper.ResolverFunc(func(ctx context.Context, lit *core.Literal) (wrapper.Outcome, error) {
			return pingPong(lit, "ping")
		}),
	)
}

func pingPong(lit *core.Literal, other string) (wrapper.Outcome, error) {
	n := lit.Args()[0]
	if n.ConstKind() != core.ConstInt {
		return wrapper.NewErrors(fmt.Sprintf("%s: argument must be an integer", lit.Functor())), nil
	}
	if n.IntVal() == 0 {
		return wrapper.NewSuccess(), nil
	}
	sub := core.Compound(other, core.IntConst(n.IntVal()-1))
	return wrapper.NewQueries([]core.Subst{core.NewSubst()}, []*core.Literal{sub}), nil
}

// RegisterInRange registers in_range(+low,+up,-res), which produces one
// substitution per integer in [low, up], per spec.md §8 scenario 2 and
// tests/in_range.py.
func RegisterInRange(reg *wrapper.Registry) {
	reg.Register(
		&wrapper.Signature{Name: "in_range", Args: []wrapper.ArgSpec{
			{Mode: wrapper.ModeIn, Kind: wrapper.KindValue},
			{Mode: wrapper.ModeIn, Kind: wrapper.KindValue},
			{Mode: wrapper.ModeOut, Kind: wrapper.KindValue},
		}},
		wrapper.ResolverFunc(func(ctx context.Context, lit *core.Literal) (wrapper.Outcome, error) {
			args := lit.Args()
			low, up := args[0], args[1]
			if low.ConstKind() != core.ConstInt || up.ConstKind() != core.ConstInt {
				return wrapper.NewErrors("in_range: low and up must be integers"), nil
			}
			resVar := args[2].VarName()
			var substs []core.Subst
			for v := low.IntVal(); v <= up.IntVal(); v++ {
				substs = append(substs, core.NewSubst().Extend(resVar, core.IntConst(v)))
			}
			return wrapper.NewSubstitutions(substs), nil
		}),
	)
}

// RegisterVeryComposite registers verycomposite(+n,+m), which emits lemmata
// [comp(n), comp(n+1), ..., comp(n+m-1)], per spec.md §8 scenario 3 and
// original_source/etb/demos/vc/wrappers/vc.py's range(n, n+m). comp/1
// (succeeds when its argument is composite, fails otherwise) is registered
// separately.
func RegisterVeryComposite(reg *wrapper.Registry) {
	reg.Register(
		&wrapper.Signature{Name: "verycomposite", Args: []wrapper.ArgSpec{
			{Mode: wrapper.ModeIn, Kind: wrapper.KindValue},
			{Mode: wrapper.ModeIn, Kind: wrapper.KindValue},
		}},
		wrapper.ResolverFunc(func(ctx context.Context, lit *core.Literal) (wrapper.Outcome, error) {
			args := lit.Args()
			n, m := args[0], args[1]
			if n.ConstKind() != core.ConstInt || m.ConstKind() != core.ConstInt {
				return wrapper.NewErrors("verycomposite: n and m must be integers"), nil
			}
			body := make([]*core.Literal, 0, m.IntVal())
			for i := int64(0); i < m.IntVal(); i++ {
				body = append(body, core.Compound("comp", core.IntConst(n.IntVal()+i)))
			}
			return wrapper.NewLemmata([]core.Subst{core.NewSubst()}, [][]*core.Literal{body}), nil
		}),
	)

	reg.Register(
		&wrapper.Signature{Name: "comp", Args: []wrapper.ArgSpec{{Mode: wrapper.ModeIn, Kind: wrapper.KindValue}}},
		wrapper.ResolverFunc(func(ctx context.Context, lit *core.Literal) (wrapper.Outcome, error) {
			n := lit.Args()[0]
			if n.ConstKind() != core.ConstInt {
				return wrapper.NewErrors("comp: argument must be an integer"), nil
			}
			if isComposite(n.IntVal()) {
				return wrapper.NewSuccess(), nil
			}
			return wrapper.NewFailure(), nil
		}),
	)
}

func isComposite(n int64) bool {
	if n < 4 {
		return false
	}
	for i := int64(2); i*i <= n; i++ {
		if n%i == 0 {
			return true
		}
	}
	return false
}

// RegisterLessThan registers less_than(+a,+b), kept as a trivial external
// predicate for engine self-tests, the same role it plays in
// original_source/etb/datalog/externals.py.
func RegisterLessThan(reg *wrapper.Registry) {
	reg.Register(
		&wrapper.Signature{Name: "less_than", Args: []wrapper.ArgSpec{
			{Mode: wrapper.ModeIn, Kind: wrapper.KindValue},
			{Mode: wrapper.ModeIn, Kind: wrapper.KindValue},
		}},
		wrapper.ResolverFunc(func(ctx context.Context, lit *core.Literal) (wrapper.Outcome, error) {
			args := lit.Args()
			a, b := args[0], args[1]
			if a.ConstKind() != core.ConstInt || b.ConstKind() != core.ConstInt {
				return wrapper.NewErrors("less_than: arguments must be integers"), nil
			}
			if a.IntVal() < b.IntVal() {
				return wrapper.NewSuccess(), nil
			}
			return wrapper.NewFailure(), nil
		}),
	)
}

// RegisterAll registers every builtin wrapper on reg.
func RegisterAll(reg *wrapper.Registry) {
	RegisterPingPong(reg)
	RegisterInRange(reg)
	RegisterVeryComposite(reg)
	RegisterLessThan(reg)
}
