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

// Package claims implements the append-only claims table of §4.6: ground
// literals tagged with a derivation edge, indexed by literal and by
// originating query.
package claims

import (
	"crypto/sha1"
	"fmt"

	"etb/core"
)

// EdgeKind discriminates the four derivation-edge variants of §3.
type EdgeKind int

const (
	EdgeFact EdgeKind = iota
	EdgeWrapper
	EdgeRuleInstance
	EdgeRemote
)

// Edge is a ground literal's derivation edge, a tagged sum per §9's design
// note, mirroring wrapper.Outcome's own tagged-sum shape.
type Edge struct {
	Kind EdgeKind

	// EdgeFact: no further fields.

	// EdgeWrapper.
	WrapperName string
	ArgDigest   string
	SubstDigest string

	// EdgeRuleInstance.
	RuleId   string
	Children []string // claim digests discharging each body literal

	// EdgeRemote.
	PeerId        string
	RemoteClaimId string
}

// Digest returns a stable hash of the edge, used together with the
// literal's own digest to detect duplicate (literal, edge) pairs (§3
// invariant).
func (e Edge) Digest() string {
	var s string
	switch e.Kind {
	case EdgeFact:
		s = "fact"
	case EdgeWrapper:
		s = fmt.Sprintf("wrapper:%s:%s:%s", e.WrapperName, e.ArgDigest, e.SubstDigest)
	case EdgeRuleInstance:
		s = fmt.Sprintf("rule:%s:%v", e.RuleId, e.Children)
	case EdgeRemote:
		s = fmt.Sprintf("remote:%s:%s", e.PeerId, e.RemoteClaimId)
	}
	h := sha1.Sum([]byte(s))
	return fmt.Sprintf("%x", h)
}

// Claim is a ground literal asserted by the engine, with a derivation edge
// (§3). A claim is immutable once appended.
type Claim struct {
	Literal    *core.Literal
	Edge       Edge
	QueryId    string
	LitDigest  string
	EdgeDigest string
}

// NewClaim builds a Claim and computes its digests. lit must be ground
// (§3 invariant: "every claim is ground").
func NewClaim(lit *core.Literal, edge Edge, queryId string) *Claim {
	return &Claim{
		Literal:    lit,
		Edge:       edge,
		QueryId:    queryId,
		LitDigest:  core.Digest(lit),
		EdgeDigest: edge.Digest(),
	}
}

// IsError reports whether this claim is an error(...) claim (§7).
func (c *Claim) IsError() bool {
	return c.Literal.Functor() == "error"
}
