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

// Package engine implements the goal-directed SLD evaluator of §4.4: a
// tabled, answer-incremental Datalog evaluator over rules, facts, and
// wrapper predicates.
package engine

import (
	"sync"

	"etb/claims"
	"etb/core"
)

// State is a goal's position in its lifecycle (§3: "open, pending, resolved,
// closed").
type State int

const (
	StateOpen State = iota
	StatePending
	StateResolved
	StateClosed
)

// AnswerFunc receives one incremental answer for a goal, per §4.4's
// "answers are pushed incrementally to consumers", paired with the claim (if
// any) that witnesses it so a consuming rule-body join can cite it as a
// derivation-edge child without a second lookup.
type AnswerFunc func(core.Subst, *claims.Claim)

// Goal is the engine's evaluation record for a literal (§3, §9's "represent
// the graph by goal ids ... never by direct owning pointers").
//
// Following crew/crew.go's RWMutex-plus-Copy()-before-read convention,
// generalized from a crew snapshot to a per-goal answer-set snapshot.
type Goal struct {
	Literal     *core.Literal
	Fingerprint string
	QueryId     string

	mu          sync.Mutex
	state       State
	answers     map[string]core.Subst        // digest -> substitution, dedup per §5 "sees each answer exactly once"
	claimFor    map[string]*claims.Claim     // answer digest -> witnessing claim, if ground
	answerOrder []string
	subs        []AnswerFunc
	dispatched  map[string]bool // rule ids (plus "#wrapper"/"#fallback" sentinels) already dispatched for this goal (§4.4 step 4: additive tabling)

	pending uint64 // count of in-flight dispatched actions, for quiescence (§4.4)

	// UnknownPredicate marks a goal that failed because no rule, wrapper, or
	// peer offered its predicate, for the stuck-goal re-check (SPEC_FULL §3).
	UnknownPredicate bool

	consumersMu sync.Mutex
	consumers   map[string]*Goal // fingerprint -> consuming goal, per §4.5 cancellation ("consumer graph")
}

// NewGoal returns a fresh, open goal for lit.
func NewGoal(lit *core.Literal, queryId string) *Goal {
	return &Goal{
		Literal:     lit,
		Fingerprint: core.Fingerprint(lit),
		QueryId:     queryId,
		answers:     map[string]core.Subst{},
		claimFor:    map[string]*claims.Claim{},
		consumers:   map[string]*Goal{},
		dispatched:  map[string]bool{},
	}
}

// markDispatched records id (a rule id, or a fixed sentinel such as
// "#wrapper") as having been dispatched for this goal, returning false if it
// already was. Guards against re-dispatching the same action when a
// wrapper's queries/lemmata outcome grows the rule base and the engine
// rescans candidates (§4.4 step 4: "the table is additive").
func (g *Goal) markDispatched(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dispatched[id] {
		return false
	}
	g.dispatched[id] = true
	return true
}

// State returns the goal's current lifecycle state.
func (g *Goal) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// setState transitions the goal's state.
func (g *Goal) setState(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

// AddConsumer registers consumer as depending on g's answers, per §4.4 step
// 1 ("attach G to it as a consumer"). Safe to call after g already has
// answers; the caller is expected to separately replay existing answers via
// Subscribe if it wants them.
func (g *Goal) AddConsumer(consumer *Goal) {
	g.consumersMu.Lock()
	defer g.consumersMu.Unlock()
	g.consumers[consumer.Fingerprint] = consumer
}

// RemoveConsumer detaches consumer from g's consumer set, used once the
// consumer's own subtree has been closed (§4.5 cancellation).
func (g *Goal) RemoveConsumer(consumer *Goal) {
	g.consumersMu.Lock()
	delete(g.consumers, consumer.Fingerprint)
	g.consumersMu.Unlock()
}

// Consumers returns a snapshot of g's current consumer set.
func (g *Goal) Consumers() []*Goal {
	g.consumersMu.Lock()
	defer g.consumersMu.Unlock()
	acc := make([]*Goal, 0, len(g.consumers))
	for _, c := range g.consumers {
		acc = append(acc, c)
	}
	return acc
}

// Subscribe registers fn to receive every future answer, and immediately
// replays every answer already recorded, in insertion order (§5: "answers
// are delivered to consumers in the order they were inserted").
func (g *Goal) Subscribe(fn AnswerFunc) {
	g.mu.Lock()
	existing := make([]core.Subst, len(g.answerOrder))
	existingClaims := make([]*claims.Claim, len(g.answerOrder))
	for i, d := range g.answerOrder {
		existing[i] = g.answers[d]
		existingClaims[i] = g.claimFor[d]
	}
	g.subs = append(g.subs, fn)
	g.mu.Unlock()

	for i, s := range existing {
		fn(s, existingClaims[i])
	}
}

// AddAnswer records a new answer if its digest has not already been seen
// (table dedup, §5: "a consumer sees each answer exactly once"), and fans it
// out to every subscriber along with the claim (if any) witnessing it.
// Returns true if the answer was new.
func (g *Goal) AddAnswer(s core.Subst, c *claims.Claim) bool {
	digest := core.SubstDigest(s)
	g.mu.Lock()
	if _, have := g.answers[digest]; have {
		g.mu.Unlock()
		return false
	}
	g.answers[digest] = s
	g.claimFor[digest] = c
	g.answerOrder = append(g.answerOrder, digest)
	subs := append([]AnswerFunc(nil), g.subs...)
	g.mu.Unlock()

	for _, fn := range subs {
		fn(s, c)
	}
	return true
}

// Answers returns a snapshot of every answer recorded so far.
func (g *Goal) Answers() []core.Subst {
	g.mu.Lock()
	defer g.mu.Unlock()
	acc := make([]core.Subst, len(g.answerOrder))
	for i, d := range g.answerOrder {
		acc[i] = g.answers[d]
	}
	return acc
}

// EnterPending and LeavePending track in-flight dispatched actions for
// quiescence detection (§4.4 "Termination detection"). Every Dispatcher
// implementation -- InlineDispatcher here, the scheduler package's bounded
// pool elsewhere -- must bracket each unit of work it runs with these two
// calls so Quiescent reflects reality.
func (g *Goal) EnterPending() {
	g.mu.Lock()
	g.pending++
	if g.state == StateOpen {
		g.state = StatePending
	}
	g.mu.Unlock()
}

// LeavePending returns the number of actions still pending after this one
// completes.
func (g *Goal) LeavePending() uint64 {
	g.mu.Lock()
	g.pending--
	p := g.pending
	g.mu.Unlock()
	return p
}

// Quiescent reports whether every dispatched action has returned (§4.4).
func (g *Goal) Quiescent() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending == 0
}

// Close transitions g to StateClosed, used by the scheduler's cancellation
// sweep (§4.5) once g is confirmed exclusively reachable from a closing
// query's root.
func (g *Goal) Close() {
	g.setState(StateClosed)
}
