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

package core

import "testing"

func TestGroundAndEqual(t *testing.T) {
	ground := Compound("parent", AtomConst("bill"), AtomConst("mary"))
	if !ground.Ground() {
		t.Fatal("expected ground compound")
	}
	notGround := Compound("parent", AtomConst("bill"), Var("Y"))
	if notGround.Ground() {
		t.Fatal("expected non-ground compound")
	}
	if !ground.Equal(Compound("parent", AtomConst("bill"), AtomConst("mary"))) {
		t.Fatal("expected structural equality")
	}
	if ground.Equal(Compound("parent", AtomConst("bill"), AtomConst("john"))) {
		t.Fatal("expected structural inequality")
	}
}

func TestFileRefEqualityIsByHash(t *testing.T) {
	a := FileRef("/tmp/a.txt", "deadbeef")
	b := FileRef("/tmp/b.txt", "deadbeef")
	if !a.Equal(b) {
		t.Fatal("file refs with the same sha1 should be equal regardless of path")
	}
	c := FileRef("/tmp/a.txt", "cafebabe")
	if a.Equal(c) {
		t.Fatal("file refs with different sha1 should not be equal")
	}
}

func TestUnifyBindsVariables(t *testing.T) {
	lit := Compound("parent", Var("X"), AtomConst("mary"))
	fact := Compound("parent", AtomConst("bill"), AtomConst("mary"))
	s, ok := Unify(lit, fact, nil)
	if !ok {
		t.Fatal("expected unification to succeed")
	}
	if got := s.Apply(Var("X")); got.StringVal() != "bill" {
		t.Fatalf("X = %s, want bill", got)
	}
}

func TestUnifyFailsOnClashingConstants(t *testing.T) {
	a := Compound("parent", AtomConst("bill"), AtomConst("mary"))
	b := Compound("parent", AtomConst("bill"), AtomConst("john"))
	if _, ok := Unify(a, b, nil); ok {
		t.Fatal("expected unification to fail on clashing constants")
	}
}

func TestUnifyOccursCheck(t *testing.T) {
	x := Var("X")
	cyclic := Compound("f", x)
	if _, ok := Unify(x, cyclic, nil); ok {
		t.Fatal("expected occurs check to reject binding X to f(X)")
	}
}

func TestRenameProducesDistinctVariablesPerSuffix(t *testing.T) {
	rule := Compound("ancestor", Var("X"), Var("Y"))
	r1 := Rename(rule, "1")
	r2 := Rename(rule, "2")
	if r1.Equal(r2) {
		t.Fatal("expected renamed copies with different suffixes to differ")
	}
	if r1.Args()[0].VarName() != "X#1" || r1.Args()[1].VarName() != "Y#1" {
		t.Fatalf("unexpected renamed vars: %+v", r1.Args())
	}
}

func TestSubstApplyToFixpoint(t *testing.T) {
	s := NewSubst()
	s.Extend("X", Var("Y"))
	s.Extend("Y", AtomConst("bill"))
	got := s.Apply(Var("X"))
	if got.StringVal() != "bill" {
		t.Fatalf("Apply(X) = %s, want bill (chained through Y)", got)
	}
}

func TestSubstRestrict(t *testing.T) {
	s := NewSubst()
	s.Extend("X", AtomConst("bill"))
	s.Extend("Y", AtomConst("mary"))
	r := s.Restrict([]string{"X"})
	if len(r) != 1 || r["X"].StringVal() != "bill" {
		t.Fatalf("unexpected restriction: %+v", r)
	}
}

func TestVarsInFirstOccurrenceOrder(t *testing.T) {
	lit := Compound("ancestor", Var("X"), Compound("f", Var("Y"), Var("X")))
	vars := Vars(lit)
	if len(vars) != 2 || vars[0] != "X" || vars[1] != "Y" {
		t.Fatalf("Vars() = %v, want [X Y]", vars)
	}
}

func TestIndicator(t *testing.T) {
	lit := Compound("ancestor", Var("X"), Var("Y"))
	pi := Indicator(lit)
	if pi.String() != "ancestor/2" {
		t.Fatalf("Indicator().String() = %s, want ancestor/2", pi.String())
	}
}
