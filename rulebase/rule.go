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

// Package rulebase stores Horn clauses indexed by head predicate symbol and
// arity, with support for dynamic (ephemeral) insertion tagged by an owning
// goal, for later garbage collection.
package rulebase

import (
	"etb/core"
)

// Rule is a pair (head literal, body = ordered sequence of body literals).
// A fact is a Rule with an empty Body. Rules are identified by content hash
// (§3).
type Rule struct {
	Head *core.Literal
	Body []*core.Literal

	// Id is the content hash of (Head, Body).
	Id string

	// OwnerGoal, if non-empty, names the goal fingerprint that produced this
	// rule dynamically (§4.2, §9 "rule epoch"). Empty for rules loaded from
	// rule files, which are permanent.
	OwnerGoal string

	// Epoch is the rulebase-global epoch at which this rule became visible.
	Epoch uint64

	// retracted marks a rule invisible to new matches without physically
	// removing it (§9 "rule epoch alongside each rule").
	retracted bool
}

// Permanent reports whether the rule survives goal closure.
func (r *Rule) Permanent() bool {
	return r.OwnerGoal == ""
}

// NewRule builds a Rule and computes its content-hash Id.
func NewRule(head *core.Literal, body []*core.Literal) *Rule {
	return &Rule{
		Head: head,
		Body: body,
		Id:   core.DigestPair(head, body),
	}
}

// NewFact builds a fact: a Rule with an empty body.
func NewFact(head *core.Literal) *Rule {
	return NewRule(head, nil)
}
