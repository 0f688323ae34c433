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
	"testing"

	"etb/core"
)

func TestCheckModesInAndOut(t *testing.T) {
	sig := &Signature{Name: "in_range", Args: []ArgSpec{
		{Mode: ModeIn, Kind: KindValue},
		{Mode: ModeIn, Kind: KindValue},
		{Mode: ModeOut, Kind: KindValue},
	}}
	ok, _ := sig.CheckModes(core.Compound("in_range", core.IntConst(1), core.IntConst(5), core.Var("X")))
	if !ok {
		t.Fatal("expected mode check to pass with two ground args and one variable")
	}

	ok, bad := sig.CheckModes(core.Compound("in_range", core.Var("Low"), core.IntConst(5), core.Var("X")))
	if ok || bad != 0 {
		t.Fatalf("expected a ModeIn violation at index 0, got ok=%v bad=%d", ok, bad)
	}

	ok, bad = sig.CheckModes(core.Compound("in_range", core.IntConst(1), core.IntConst(5), core.IntConst(3)))
	if ok || bad != 2 {
		t.Fatalf("expected a ModeOut violation at index 2, got ok=%v bad=%d", ok, bad)
	}
}

func TestCheckModesRejectsArityMismatch(t *testing.T) {
	sig := &Signature{Name: "ping", Args: []ArgSpec{{Mode: ModeIn, Kind: KindValue}}}
	ok, bad := sig.CheckModes(core.Compound("ping", core.IntConst(1), core.IntConst(2)))
	if ok || bad != -1 {
		t.Fatalf("expected arity mismatch to fail with badIndex -1, got ok=%v bad=%d", ok, bad)
	}
}

func TestFileArgIndices(t *testing.T) {
	sig := &Signature{Name: "markdown", Args: []ArgSpec{
		{Mode: ModeIn, Kind: KindFile},
		{Mode: ModeOut, Kind: KindFile},
		{Mode: ModeIn, Kind: KindValue},
	}}
	idx := sig.FileArgIndices()
	if len(idx) != 2 || idx[0] != 0 || idx[1] != 1 {
		t.Fatalf("FileArgIndices() = %v, want [0 1]", idx)
	}
}
