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

package engine

import (
	"context"
	"fmt"
	"sync"

	"etb/claims"
	"etb/core"
	"etb/rulebase"
	"etb/util"
	"etb/wrapper"
)

// Engine ties the rule base, wrapper registry, claims table, and goal table
// together into the SLD evaluator of §4.4. One Engine per node (§9: "each
// node is a single process-wide instance").
type Engine struct {
	Rules      *rulebase.Index
	Wrappers   *wrapper.Registry
	Claims     *claims.Table
	Table      *Table
	Dispatcher Dispatcher
	Delegate   Delegate // nil if this node has no fabric peers configured
}

// New returns an Engine over the given rule base, wrapper registry, and
// claims table, dispatching tasks inline unless overridden.
func New(rules *rulebase.Index, wrappers *wrapper.Registry, cl *claims.Table) *Engine {
	return &Engine{
		Rules:      rules,
		Wrappers:   wrappers,
		Claims:     cl,
		Table:      NewTable(),
		Dispatcher: InlineDispatcher{},
	}
}

// Resolve admits lit as a goal under queryId, aliasing it to an existing
// tabled goal if one with an equivalent fingerprint already exists (§4.4
// step 1), and registering consumer (if non-nil) as a consumer of its
// answers. Ground literals already present in the claims table take the
// is_entailed fast path (SPEC_FULL §3) instead of spawning fresh evaluation.
func (e *Engine) Resolve(ctx context.Context, lit *core.Literal, queryId string, consumer *Goal) *Goal {
	if c, ok := e.IsEntailed(lit); ok {
		g, created := e.Table.GetOrCreate(lit, queryId)
		if consumer != nil {
			g.AddConsumer(consumer)
		}
		if created {
			g.setState(StateResolved)
			g.AddAnswer(core.NewSubst(), c)
		}
		return g
	}

	g, created := e.Table.GetOrCreate(lit, queryId)
	if consumer != nil {
		g.AddConsumer(consumer)
	}
	if created {
		e.step(ctx, g)
	}
	return g
}

// step dispatches every currently-visible action for an open goal: matching
// facts/rules, a wrapper invocation, or (failing both) remote delegation or
// an unknown-predicate error (§4.4 steps 2-5).
func (e *Engine) step(ctx context.Context, g *Goal) {
	pi := core.Indicator(g.Literal)
	candidates := e.Rules.Candidates(g.Literal)
	for _, r := range candidates {
		e.considerRule(ctx, g, r)
	}

	haveWrapper := e.Wrappers.Has(pi)
	if haveWrapper && g.markDispatched("#wrapper") {
		e.dispatchWrapper(ctx, g)
	}

	if len(candidates) == 0 && !haveWrapper {
		e.tryDelegateOrFail(ctx, g, pi)
	}
}

// rescan re-examines the rule base for newly-visible candidates matching g's
// literal, dispatching only those not already dispatched for g (§4.4 step 4:
// "previously computed answers are not re-derived -- the table is
// additive"). Called after a wrapper's queries/lemmata outcome grows the
// rule base.
func (e *Engine) rescan(ctx context.Context, g *Goal) {
	for _, r := range e.Rules.Candidates(g.Literal) {
		e.considerRule(ctx, g, r)
	}
}

func (e *Engine) considerRule(ctx context.Context, g *Goal, r *rulebase.Rule) {
	if !g.markDispatched(r.Id) {
		return
	}
	e.Dispatcher.Go(ctx, g, func(ctx context.Context) {
		e.evalRule(ctx, g, r)
	})
}

// evalRule renames r apart for this (goal, rule) pairing and unifies its
// head against g's literal; a fact contributes one answer directly, a
// clause spawns subgoals for its body and joins their answer streams
// (§4.4 step 3).
func (e *Engine) evalRule(ctx context.Context, g *Goal, r *rulebase.Rule) {
	suffix := r.Id + "#" + g.Fingerprint
	head := core.Rename(r.Head, suffix)
	s, ok := core.Unify(head, g.Literal, core.NewSubst())
	if !ok {
		return
	}
	if len(r.Body) == 0 {
		e.commitAnswer(g, s, claims.Edge{Kind: claims.EdgeFact})
		return
	}
	body := make([]*core.Literal, len(r.Body))
	for i, b := range r.Body {
		body[i] = s.Apply(core.Rename(b, suffix))
	}
	e.joinRuleBody(ctx, g, r, s, body)
}

// posAnswer is one accepted answer at a body position, paired with the
// claim (if any) witnessing it.
type posAnswer struct {
	subst core.Subst
	claim *claims.Claim
}

// joinState accumulates each body position's answer stream for one rule
// instantiation, performing an unoptimized nested-loop join: every new
// answer at any position triggers a full cross-product recomputation,
// de-duplicated against combinations already tried. Acceptable per §1's
// "no optimiser for conjunctive-query planning" non-goal.
type joinState struct {
	mu   sync.Mutex
	pos  [][]posAnswer
	seen map[string]bool
}

func (js *joinState) pendingCombos() [][]int {
	js.mu.Lock()
	defer js.mu.Unlock()
	n := len(js.pos)
	for _, p := range js.pos {
		if len(p) == 0 {
			return nil
		}
	}
	var out [][]int
	idx := make([]int, n)
	var rec func(pos int)
	rec = func(pos int) {
		if pos == n {
			key := fmt.Sprint(idx)
			if !js.seen[key] {
				js.seen[key] = true
				out = append(out, append([]int(nil), idx...))
			}
			return
		}
		for i := 0; i < len(js.pos[pos]); i++ {
			idx[pos] = i
			rec(pos + 1)
		}
	}
	rec(0)
	return out
}

// mergeSubst unifies every binding of add into base, detecting conflicts
// between independently-produced body answers that share renamed-apart
// variables (e.g. a shared Z between two body literals of the same clause).
func mergeSubst(base core.Subst, add core.Subst) (core.Subst, bool) {
	cur := base
	for _, k := range add.SortedKeys() {
		ns, ok := core.Unify(core.Var(k), add[k], cur)
		if !ok {
			return base, false
		}
		cur = ns
	}
	return cur, true
}

// joinRuleBody resolves each body literal to its (possibly table-aliased)
// goal and joins their answer streams. A body literal aliasing to an
// already-tabled goal shares that goal's own variable names, not the body
// literal's own -- xlate is the unifier between the two, established once
// per position, that translates an aliased goal's answers back into the
// rule instantiation's variable space before they are merged (§4.4 step 1:
// tabling is transparent to callers).
func (e *Engine) joinRuleBody(ctx context.Context, g *Goal, r *rulebase.Rule, headSubst core.Subst, body []*core.Literal) {
	n := len(body)
	subgoals := make([]*Goal, n)
	xlate := make([]core.Subst, n)
	for i, lit := range body {
		subgoals[i] = e.Resolve(ctx, lit, g.QueryId, g)
		x, ok := core.Unify(lit, subgoals[i].Literal, core.NewSubst())
		if !ok {
			// Fingerprint aliasing guarantees lit and the tabled goal's
			// literal agree up to variable renaming; this should be
			// unreachable.
			util.Logf("engine: %s does not unify with tabled goal %s", lit, subgoals[i].Literal)
			x = core.NewSubst()
		}
		xlate[i] = x
	}

	js := &joinState{pos: make([][]posAnswer, n), seen: map[string]bool{}}

	for i := range body {
		i := i
		localVars := core.Vars(body[i])
		subgoals[i].Subscribe(func(s core.Subst, c *claims.Claim) {
			translated := xlate[i].Compose(s).Restrict(localVars)
			js.mu.Lock()
			js.pos[i] = append(js.pos[i], posAnswer{subst: translated, claim: c})
			js.mu.Unlock()
			for _, combo := range js.pendingCombos() {
				e.tryCombo(g, r, headSubst, js, combo)
			}
		})
	}
}

func (e *Engine) tryCombo(g *Goal, r *rulebase.Rule, headSubst core.Subst, js *joinState, combo []int) {
	cur := headSubst
	children := make([]string, len(combo))
	js.mu.Lock()
	ok := true
	for i, idx := range combo {
		pa := js.pos[i][idx]
		var merged core.Subst
		merged, ok = mergeSubst(cur, pa.subst)
		if !ok {
			break
		}
		cur = merged
		if pa.claim != nil {
			children[i] = pa.claim.LitDigest + ":" + pa.claim.EdgeDigest
		}
	}
	js.mu.Unlock()
	if !ok {
		return
	}
	e.commitAnswer(g, cur, claims.Edge{Kind: claims.EdgeRuleInstance, RuleId: r.Id, Children: children})
}

// commitAnswer restricts s to g's literal's variables, records it as a new
// answer, and -- if the instantiated literal is ground -- appends a claim
// for it (§3: "every claim is ground").
func (e *Engine) commitAnswer(g *Goal, s core.Subst, edge claims.Edge) {
	restricted := s.Restrict(core.Vars(g.Literal))
	lit := s.Apply(g.Literal)
	var claim *claims.Claim
	if lit.Ground() {
		claim = claims.NewClaim(lit, edge, g.QueryId)
		if _, err := e.Claims.Append(claim); err != nil {
			util.Logf("engine: recording claim for %s: %s", lit, err)
		}
	}
	g.AddAnswer(restricted, claim)
}

// dispatchWrapper invokes the wrapper registered for g's literal and
// processes the resulting outcome per §4.3's table.
func (e *Engine) dispatchWrapper(ctx context.Context, g *Goal) {
	e.Dispatcher.Go(ctx, g, func(ctx context.Context) {
		outcome, err := e.Wrappers.Resolve(ctx, g.Literal)
		if err != nil {
			e.recordError(g, err.Error())
			return
		}
		pi := core.Indicator(g.Literal)
		switch outcome.Tag {
		case wrapper.Success:
			e.commitAnswer(g, core.NewSubst(), claims.Edge{
				Kind: claims.EdgeWrapper, WrapperName: pi.Symbol, ArgDigest: core.Digest(g.Literal),
			})
		case wrapper.Failure:
			// No claim: the literal does not hold (§4.3).
		case wrapper.Substitutions:
			for _, s := range outcome.Substs {
				e.commitAnswer(g, s, claims.Edge{
					Kind: claims.EdgeWrapper, WrapperName: pi.Symbol,
					ArgDigest: core.Digest(g.Literal), SubstDigest: core.SubstDigest(s),
				})
			}
		case wrapper.Queries:
			for _, s := range outcome.Substs {
				head := s.Apply(g.Literal)
				for _, q := range outcome.Goals {
					rule := rulebase.NewRule(head, []*core.Literal{s.Apply(q)})
					rule.OwnerGoal = g.Fingerprint
					e.Rules.Add(rule)
				}
			}
			e.rescan(ctx, g)
		case wrapper.Lemmata:
			for i, s := range outcome.Substs {
				head := s.Apply(g.Literal)
				bodyLits := make([]*core.Literal, len(outcome.Bodies[i]))
				for j, b := range outcome.Bodies[i] {
					bodyLits[j] = s.Apply(b)
				}
				rule := rulebase.NewRule(head, bodyLits)
				rule.OwnerGoal = g.Fingerprint
				e.Rules.Add(rule)
			}
			e.rescan(ctx, g)
		case wrapper.Errors:
			e.recordErrors(g, outcome.Messages)
		}
	})
}

// tryDelegateOrFail consults Delegate for a peer offering pi; failing that,
// the goal fails with an unknown-predicate error claim (§4.4 step 5, §7).
func (e *Engine) tryDelegateOrFail(ctx context.Context, g *Goal, pi core.PredIndicator) {
	if !g.markDispatched("#fallback") {
		return
	}
	if e.Delegate != nil {
		if peerId, ok := e.Delegate.Offers(ctx, pi); ok {
			e.Dispatcher.Go(ctx, g, func(ctx context.Context) {
				if err := e.Delegate.Delegate(ctx, peerId, g); err != nil {
					e.recordError(g, fmt.Sprintf("remote delegation to %s for %s failed: %s", peerId, pi, err))
				}
			})
			return
		}
	}
	e.recordUnknownPredicate(g, pi)
}

func (e *Engine) recordUnknownPredicate(g *Goal, pi core.PredIndicator) {
	e.Table.MarkStuck(g)
	errLit := core.Compound("error", core.AtomConst("unknown_predicate"), core.AtomConst(pi.String()))
	if _, err := e.Claims.Append(claims.NewClaim(errLit, claims.Edge{Kind: claims.EdgeFact}, g.QueryId)); err != nil {
		util.Logf("engine: recording unknown-predicate claim: %s", err)
	}
	g.setState(StateResolved)
}

func (e *Engine) recordErrors(g *Goal, msgs []string) {
	for _, m := range msgs {
		errLit := core.Compound("error", core.AtomConst("wrapper_error"), core.StringConst(m))
		if _, err := e.Claims.Append(claims.NewClaim(errLit, claims.Edge{Kind: claims.EdgeFact}, g.QueryId)); err != nil {
			util.Logf("engine: recording wrapper-error claim: %s", err)
		}
	}
}

func (e *Engine) recordError(g *Goal, msg string) {
	e.recordErrors(g, []string{msg})
}

// RecheckStuckGoals re-probes every goal parked on an unknown-predicate
// failure, per SPEC_FULL §3's stuck-goal re-check: if the rule base or
// wrapper registry has since gained that predicate, the goal is unstuck and
// re-stepped. It runs only when called: neither the engine nor the
// scheduler calls it when the rule base's predicate set grows.
func (e *Engine) RecheckStuckGoals(ctx context.Context) {
	for _, g := range e.Table.StuckGoals() {
		pi := core.Indicator(g.Literal)
		if e.Rules.HasPredicate(pi) || e.Wrappers.Has(pi) {
			e.Table.Unstick(g)
			g.UnknownPredicate = false
			g.setState(StateOpen)
			e.step(ctx, g)
		}
	}
}
