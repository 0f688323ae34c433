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

package wrapper

import (
	"context"
	"testing"

	"etb/core"
)

type stubFileResolver struct {
	resolvable bool
	err        error
}

func (s *stubFileResolver) Resolvable(ctx context.Context, ref *core.Term) (bool, error) {
	return s.resolvable, s.err
}

func TestRegistryResolveDispatchesToResolver(t *testing.T) {
	r := NewRegistry()
	sig := &Signature{Name: "double", Args: []ArgSpec{
		{Mode: ModeIn, Kind: KindValue},
		{Mode: ModeOut, Kind: KindValue},
	}}
	r.Register(sig, ResolverFunc(func(ctx context.Context, lit *core.Literal) (Outcome, error) {
		n := lit.Args()[0].IntVal()
		return NewSubstitutions([]core.Subst{
			core.NewSubst().Extend(lit.Args()[1].VarName(), core.IntConst(n*2)),
		}), nil
	}))

	lit := core.Compound("double", core.IntConst(21), core.Var("Y"))
	out, err := r.Resolve(context.Background(), lit)
	if err != nil {
		t.Fatalf("Resolve: %s", err)
	}
	if out.Tag != Substitutions || len(out.Substs) != 1 || out.Substs[0]["Y"].IntVal() != 42 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestRegistryResolveUnknownPredicate(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve(context.Background(), core.Compound("nope", core.IntConst(1)))
	if err == nil {
		t.Fatal("expected an error for an unregistered predicate")
	}
}

func TestRegistryResolveModeViolationYieldsErrorsOutcomeNotErr(t *testing.T) {
	r := NewRegistry()
	sig := &Signature{Name: "double", Args: []ArgSpec{
		{Mode: ModeIn, Kind: KindValue},
		{Mode: ModeOut, Kind: KindValue},
	}}
	r.Register(sig, ResolverFunc(func(ctx context.Context, lit *core.Literal) (Outcome, error) {
		t.Fatal("resolver should not be invoked on a mode violation")
		return Outcome{}, nil
	}))

	lit := core.Compound("double", core.Var("X"), core.Var("Y"))
	out, err := r.Resolve(context.Background(), lit)
	if err != nil {
		t.Fatalf("expected a nil error alongside an errors outcome, got %s", err)
	}
	if out.Tag != Errors || len(out.Messages) == 0 {
		t.Fatalf("expected an errors outcome, got %+v", out)
	}
}

func TestRegistryResolveUnresolvableFileYieldsErrorsOutcome(t *testing.T) {
	r := NewRegistry()
	r.Files = &stubFileResolver{resolvable: false}
	sig := &Signature{Name: "markdown", Args: []ArgSpec{
		{Mode: ModeIn, Kind: KindFile},
		{Mode: ModeOut, Kind: KindFile},
	}}
	r.Register(sig, ResolverFunc(func(ctx context.Context, lit *core.Literal) (Outcome, error) {
		t.Fatal("resolver should not run when a required file is unresolvable")
		return Outcome{}, nil
	}))

	lit := core.Compound("markdown", core.FileRef("/tmp/in.md", "abc"), core.Var("Out"))
	out, err := r.Resolve(context.Background(), lit)
	if err != nil {
		t.Fatalf("expected a nil error alongside an errors outcome, got %s", err)
	}
	if out.Tag != Errors {
		t.Fatalf("expected an errors outcome, got %+v", out)
	}
}

func TestRegistryNamesAndHas(t *testing.T) {
	r := NewRegistry()
	sig := &Signature{Name: "ping", Args: []ArgSpec{{Mode: ModeIn, Kind: KindValue}}}
	r.Register(sig, ResolverFunc(func(ctx context.Context, lit *core.Literal) (Outcome, error) {
		return NewSuccess(), nil
	}))
	pi := core.PredIndicator{Symbol: "ping", Arity: 1}
	if !r.Has(pi) {
		t.Fatal("expected Has to report the registered predicate")
	}
	names := r.Names()
	if len(names) != 1 || names[0] != pi {
		t.Fatalf("Names() = %v, want [%v]", names, pi)
	}
}
