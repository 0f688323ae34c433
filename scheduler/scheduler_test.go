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

package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"etb/claims"
	"etb/core"
	"etb/engine"
	"etb/rulebase"
	"etb/wrapper"
	"etb/wrappers"
)

type fakePeers struct {
	peerId      string
	unreachable []string
}

func (f *fakePeers) Offers(pi core.PredIndicator) (string, bool) { return f.peerId, true }
func (f *fakePeers) MarkUnreachable(id string)                   { f.unreachable = append(f.unreachable, id) }

type fakeCaller struct {
	calls     int
	failUntil int // fail this many calls before succeeding
}

func (f *fakeCaller) RemoteQuery(ctx context.Context, peerId string, lit *core.Literal, correlationId string, onAnswer func(core.Subst, string)) error {
	f.calls++
	if f.calls <= f.failUntil {
		return errors.New("transport boom")
	}
	onAnswer(core.NewSubst(), "remote-digest")
	return nil
}

func TestQuiescentUnknownQueryIsVacuouslyTrue(t *testing.T) {
	s := New(rulebase.NewIndex(), claims.NewTable(), engine.NewTable(), 4)
	if !s.Quiescent("no-such-query") {
		t.Fatalf("expected Quiescent(unregistered query) to be true")
	}
}

func TestSubmitAndWaitQuiescentResolvesAncestorQuery(t *testing.T) {
	idx := rulebase.NewIndex()
	idx.Add(rulebase.NewFact(core.Compound("parent", core.AtomConst("john"), core.AtomConst("mary"))))
	idx.Add(rulebase.NewRule(
		core.Compound("ancestor", core.Var("X"), core.Var("Y")),
		[]*core.Literal{core.Compound("parent", core.Var("X"), core.Var("Y"))},
	))

	cl := claims.NewTable()
	e := engine.New(idx, wrapper.NewRegistry(), cl)
	s := New(idx, cl, e.Table, 4)
	e.Dispatcher = s

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	lit := core.Compound("ancestor", core.AtomConst("john"), core.Var("X"))
	g := s.Submit(ctx, e, lit, "q1")
	if err := s.WaitQuiescent(ctx, "q1", time.Millisecond); err != nil {
		t.Fatalf("WaitQuiescent: %s", err)
	}
	if len(g.Answers()) != 1 {
		t.Fatalf("got %d answers, want 1", len(g.Answers()))
	}
}

func TestCancelRetractsEphemeralRulesFromWrapperQueries(t *testing.T) {
	idx := rulebase.NewIndex()
	reg := wrapper.NewRegistry()
	wrappers.RegisterPingPong(reg)
	cl := claims.NewTable()
	e := engine.New(idx, reg, cl)
	s := New(idx, cl, e.Table, 4)
	e.Dispatcher = s

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	lit := core.Compound("ping", core.IntConst(2))
	g := s.Submit(ctx, e, lit, "q1")
	if err := s.WaitQuiescent(ctx, "q1", time.Millisecond); err != nil {
		t.Fatalf("WaitQuiescent: %s", err)
	}
	if len(g.Answers()) == 0 {
		t.Fatalf("expected ping(2) to succeed")
	}
	if len(idx.Candidates(lit)) == 0 {
		t.Fatalf("expected an ephemeral rule for ping(2) before cancellation")
	}

	if err := s.Cancel("q1"); err != nil {
		t.Fatalf("Cancel: %s", err)
	}
	if len(idx.Candidates(lit)) != 0 {
		t.Fatalf("expected ephemeral rules for ping(2) to be retracted after Cancel")
	}
}

func TestCancelUnknownQueryErrors(t *testing.T) {
	s := New(rulebase.NewIndex(), claims.NewTable(), engine.NewTable(), 4)
	if err := s.Cancel("no-such-query"); err == nil {
		t.Fatalf("expected an error cancelling an unregistered query")
	}
}

func TestDelegateRetriesThenSucceeds(t *testing.T) {
	idx := rulebase.NewIndex()
	cl := claims.NewTable()
	tbl := engine.NewTable()
	s := New(idx, cl, tbl, 4)
	caller := &fakeCaller{failUntil: 2}
	s.Caller = caller
	s.RemoteMaxRetries = 3
	s.RemoteTimeout = time.Second

	lit := core.Compound("remote_pred", core.AtomConst("x"))
	g := engine.NewGoal(lit, "q1")

	if err := s.Delegate(context.Background(), "peer-1", g); err != nil {
		t.Fatalf("Delegate: %s", err)
	}
	if caller.calls != 3 {
		t.Fatalf("RemoteQuery called %d times, want 3", caller.calls)
	}
	if len(g.Answers()) != 1 {
		t.Fatalf("got %d answers, want 1", len(g.Answers()))
	}
	if !cl.Has(lit) {
		t.Fatalf("expected a claim for %s with a remote derivation edge", lit)
	}
}

func TestDelegateExhaustsRetriesAndMarksPeerUnreachable(t *testing.T) {
	idx := rulebase.NewIndex()
	cl := claims.NewTable()
	tbl := engine.NewTable()
	s := New(idx, cl, tbl, 4)
	peers := &fakePeers{peerId: "peer-1"}
	s.Peers = peers
	s.Caller = &fakeCaller{failUntil: 100}
	s.RemoteMaxRetries = 2
	s.RemoteTimeout = time.Second

	lit := core.Compound("remote_pred", core.AtomConst("x"))
	g := engine.NewGoal(lit, "q1")

	if err := s.Delegate(context.Background(), "peer-1", g); err == nil {
		t.Fatalf("expected Delegate to fail after exhausting retries")
	}
	if len(peers.unreachable) != 1 || peers.unreachable[0] != "peer-1" {
		t.Fatalf("expected peer-1 to be marked unreachable, got %v", peers.unreachable)
	}
}

func TestGoBoundsConcurrencyAndTracksPending(t *testing.T) {
	idx := rulebase.NewIndex()
	cl := claims.NewTable()
	tbl := engine.NewTable()
	s := New(idx, cl, tbl, 2)

	g := engine.NewGoal(core.Compound("dummy"), "q1")
	done := make(chan struct{})
	s.Go(context.Background(), g, func(ctx context.Context) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("dispatched task never ran")
	}

	deadline := time.Now().Add(time.Second)
	for !g.Quiescent() {
		if time.Now().After(deadline) {
			t.Fatalf("goal never became quiescent after its only task finished")
		}
		time.Sleep(time.Millisecond)
	}
}
