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

import "etb/core"

// OutcomeTag discriminates the six outcome variants of §4.3's table.
// Expressed as a tagged sum (per §9's design note) rather than an interface
// hierarchy, directly following original_source/etb/wrapper.py's
// Success/Failure/Substitutions/Queries/Lemmata/Errors classes.
type OutcomeTag int

const (
	Success OutcomeTag = iota
	Failure
	Substitutions
	Queries
	Lemmata
	Errors
)

// Outcome is the result of resolving a wrapper literal.
type Outcome struct {
	Tag OutcomeTag

	// Substitutions: each σ must only bind output (-) variables.
	Substs []core.Subst

	// Queries: for each σ in Substs and each q in Goals, add
	// σ(head) :- σ(q) ephemerally.
	Goals []*core.Literal

	// Lemmata: for each σ_i (Substs[i]) and its body list Bodies[i], add
	// ephemeral rule σ_i(head) :- σ_i(body). len(Substs) == len(Bodies).
	Bodies [][]*core.Literal

	// Errors: message list for an errors outcome.
	Messages []string
}

// NewSuccess builds a success outcome.
func NewSuccess() Outcome { return Outcome{Tag: Success} }

// NewFailure builds a failure outcome.
func NewFailure() Outcome { return Outcome{Tag: Failure} }

// NewSubstitutions builds a substitutions outcome.
func NewSubstitutions(substs []core.Subst) Outcome {
	return Outcome{Tag: Substitutions, Substs: substs}
}

// NewQueries builds a queries outcome: for each σ in substs and each goal in
// goals, add σ(head) :- σ(goal).
func NewQueries(substs []core.Subst, goals []*core.Literal) Outcome {
	return Outcome{Tag: Queries, Substs: substs, Goals: goals}
}

// NewLemmata builds a lemmata outcome. len(substs) must equal len(bodies).
func NewLemmata(substs []core.Subst, bodies [][]*core.Literal) Outcome {
	return Outcome{Tag: Lemmata, Substs: substs, Bodies: bodies}
}

// NewErrors builds an errors outcome.
func NewErrors(messages ...string) Outcome {
	return Outcome{Tag: Errors, Messages: messages}
}
