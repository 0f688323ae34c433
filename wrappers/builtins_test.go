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

package wrappers

import (
	"context"
	"testing"

	"etb/core"
	"etb/wrapper"
)

func TestPingZeroSucceeds(t *testing.T) {
	reg := wrapper.NewRegistry()
	RegisterPingPong(reg)
	out, err := reg.Resolve(context.Background(), core.Compound("ping", core.IntConst(0)))
	if err != nil {
		t.Fatalf("Resolve: %s", err)
	}
	if out.Tag != wrapper.Success {
		t.Fatalf("ping(0) outcome = %+v, want Success", out)
	}
}

func TestPingPositiveEmitsPongSubgoal(t *testing.T) {
	reg := wrapper.NewRegistry()
	RegisterPingPong(reg)
	out, err := reg.Resolve(context.Background(), core.Compound("ping", core.IntConst(3)))
	if err != nil {
		t.Fatalf("Resolve: %s", err)
	}
	if out.Tag != wrapper.Queries || len(out.Goals) != 1 {
		t.Fatalf("ping(3) outcome = %+v, want a single queries goal", out)
	}
	sub := out.Goals[0]
	if sub.Functor() != "pong" || sub.Args()[0].IntVal() != 2 {
		t.Fatalf("expected subgoal pong(2), got %s", sub)
	}
}

func TestInRangeProducesOneSubstitutionPerInteger(t *testing.T) {
	reg := wrapper.NewRegistry()
	RegisterInRange(reg)
	lit := core.Compound("in_range", core.IntConst(1), core.IntConst(4), core.Var("X"))
	out, err := reg.Resolve(context.Background(), lit)
	if err != nil {
		t.Fatalf("Resolve: %s", err)
	}
	if out.Tag != wrapper.Substitutions || len(out.Substs) != 4 {
		t.Fatalf("expected 4 substitutions, got %+v", out)
	}
	if out.Substs[0]["X"].IntVal() != 1 || out.Substs[3]["X"].IntVal() != 4 {
		t.Fatalf("unexpected substitution range: %+v", out.Substs)
	}
}

func TestVeryCompositeEmitsLemmataAcrossRange(t *testing.T) {
	reg := wrapper.NewRegistry()
	RegisterVeryComposite(reg)
	lit := core.Compound("verycomposite", core.IntConst(10), core.IntConst(2))
	out, err := reg.Resolve(context.Background(), lit)
	if err != nil {
		t.Fatalf("Resolve: %s", err)
	}
	if out.Tag != wrapper.Lemmata || len(out.Bodies) != 1 || len(out.Bodies[0]) != 2 {
		t.Fatalf("unexpected lemmata outcome: %+v", out)
	}
	for i, want := range []int64{10, 11} {
		if out.Bodies[0][i].Args()[0].IntVal() != want {
			t.Fatalf("body[%d] = %s, want comp(%d)", i, out.Bodies[0][i], want)
		}
	}
}

// TestVeryCompositeMatchesSpecScenario reproduces spec.md §8 scenario 3's
// literal numbers: verycomposite(8,3) must emit exactly comp(8), comp(9),
// comp(10) (three lemmata, not four), all of which are composite.
func TestVeryCompositeMatchesSpecScenario(t *testing.T) {
	reg := wrapper.NewRegistry()
	RegisterVeryComposite(reg)
	lit := core.Compound("verycomposite", core.IntConst(8), core.IntConst(3))
	out, err := reg.Resolve(context.Background(), lit)
	if err != nil {
		t.Fatalf("Resolve: %s", err)
	}
	if out.Tag != wrapper.Lemmata || len(out.Bodies) != 1 || len(out.Bodies[0]) != 3 {
		t.Fatalf("unexpected lemmata outcome: %+v", out)
	}
	for i, want := range []int64{8, 9, 10} {
		if out.Bodies[0][i].Args()[0].IntVal() != want {
			t.Fatalf("body[%d] = %s, want comp(%d)", i, out.Bodies[0][i], want)
		}
		if !isComposite(want) {
			t.Fatalf("comp(%d) expected to be composite", want)
		}
	}
}

func TestCompDetectsCompositeNumbers(t *testing.T) {
	reg := wrapper.NewRegistry()
	RegisterVeryComposite(reg)
	out, err := reg.Resolve(context.Background(), core.Compound("comp", core.IntConst(9)))
	if err != nil {
		t.Fatalf("Resolve: %s", err)
	}
	if out.Tag != wrapper.Success {
		t.Fatalf("comp(9) = %+v, want Success (9 is composite)", out)
	}
	out, err = reg.Resolve(context.Background(), core.Compound("comp", core.IntConst(7)))
	if err != nil {
		t.Fatalf("Resolve: %s", err)
	}
	if out.Tag != wrapper.Failure {
		t.Fatalf("comp(7) = %+v, want Failure (7 is prime)", out)
	}
}

func TestLessThan(t *testing.T) {
	reg := wrapper.NewRegistry()
	RegisterLessThan(reg)
	out, err := reg.Resolve(context.Background(), core.Compound("less_than", core.IntConst(2), core.IntConst(5)))
	if err != nil {
		t.Fatalf("Resolve: %s", err)
	}
	if out.Tag != wrapper.Success {
		t.Fatalf("less_than(2, 5) = %+v, want Success", out)
	}
	out, err = reg.Resolve(context.Background(), core.Compound("less_than", core.IntConst(5), core.IntConst(2)))
	if err != nil {
		t.Fatalf("Resolve: %s", err)
	}
	if out.Tag != wrapper.Failure {
		t.Fatalf("less_than(5, 2) = %+v, want Failure", out)
	}
}
