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

package rpc

import (
	"encoding/json"
	"testing"

	"etb/claims"
	"etb/core"
)

func TestTermJSONRoundTripCompound(t *testing.T) {
	orig := core.Compound("parent", core.AtomConst("bill"), core.Var("Y"), core.List(core.IntConst(1), core.IntConst(2)))
	buf, err := json.Marshal(TermToJSON(orig))
	if err != nil {
		t.Fatalf("Marshal: %s", err)
	}
	var decoded interface{}
	if err := json.Unmarshal(buf, &decoded); err != nil {
		t.Fatalf("Unmarshal: %s", err)
	}
	back, err := TermFromJSON(decoded)
	if err != nil {
		t.Fatalf("TermFromJSON: %s", err)
	}
	if !back.Equal(orig) {
		t.Fatalf("round trip mismatch: got %s, want %s", back, orig)
	}
}

func TestTermJSONRoundTripFileRef(t *testing.T) {
	orig := core.FileRef("docs/a.md", "deadbeef")
	back, err := TermFromJSON(TermToJSON(orig))
	if err != nil {
		t.Fatalf("TermFromJSON: %s", err)
	}
	if !back.Equal(orig) {
		t.Fatalf("round trip mismatch: got %s, want %s", back, orig)
	}
}

func TestSubstJSONRoundTrip(t *testing.T) {
	s := core.NewSubst()
	s.Extend("X", core.AtomConst("bill"))
	s.Extend("Y", core.IntConst(42))

	buf, err := json.Marshal(SubstToJSON(s))
	if err != nil {
		t.Fatalf("Marshal: %s", err)
	}
	var decoded interface{}
	if err := json.Unmarshal(buf, &decoded); err != nil {
		t.Fatalf("Unmarshal: %s", err)
	}
	back, err := SubstFromJSON(decoded)
	if err != nil {
		t.Fatalf("SubstFromJSON: %s", err)
	}
	if len(back) != 2 || back["X"].StringVal() != "bill" || back["Y"].IntVal() != 42 {
		t.Fatalf("unexpected round trip: %+v", back)
	}
}

func TestClaimJSONRoundTrip(t *testing.T) {
	lit := core.Compound("parent", core.AtomConst("bill"), core.AtomConst("mary"))
	c := claims.NewClaim(lit, claims.Edge{Kind: claims.EdgeFact}, "q1")

	buf, err := json.Marshal(ClaimToJSON(c))
	if err != nil {
		t.Fatalf("Marshal: %s", err)
	}
	var decoded interface{}
	if err := json.Unmarshal(buf, &decoded); err != nil {
		t.Fatalf("Unmarshal: %s", err)
	}
	back, err := ClaimFromJSON(decoded)
	if err != nil {
		t.Fatalf("ClaimFromJSON: %s", err)
	}
	if !back.Literal.Equal(lit) || back.QueryId != "q1" || back.LitDigest != c.LitDigest {
		t.Fatalf("unexpected round trip: %+v", back)
	}
}
