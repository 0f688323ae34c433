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

// Package scheduler owns everything §4.5 assigns to "the scheduler" rather
// than the engine: a bounded worker pool dispatching the engine's tasks,
// per-goal serialization, remote delegation with deadlines and retries, and
// the quiescence/cancellation sweeps that walk a query's consumer graph.
// The engine never imports this package; it depends only on the
// engine.Dispatcher and engine.Delegate interfaces Scheduler implements.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"etb/claims"
	"etb/core"
	"etb/engine"
	"etb/rulebase"
	"etb/util"
)

// PeerTable is consulted to find a peer advertising a predicate (§4.8's
// handshake/advertisement gossip), and to record transport failures.
// Implemented by fabric.Peers.
type PeerTable interface {
	Offers(pi core.PredIndicator) (peerId string, ok bool)
	MarkUnreachable(peerId string)
}

// RemoteCaller issues the remote_query leg of the delegation protocol
// (§4.5 steps 2-3), invoking onAnswer for each deliver_answer the peer
// sends before the remote goal closes. Implemented by the rpc client.
type RemoteCaller interface {
	RemoteQuery(ctx context.Context, peerId string, lit *core.Literal, correlationId string, onAnswer func(core.Subst, string)) error
}

// Scheduler implements engine.Dispatcher and engine.Delegate. One per node,
// sharing its rule base, claims table, and goal table with the Engine it
// drives.
type Scheduler struct {
	sem chan struct{}

	mu        sync.Mutex
	goalLocks map[string]*sync.Mutex // fingerprint -> per-goal mutex (§5 "a single owner worker at a time")

	Rules  *rulebase.Index
	Claims *claims.Table
	Table  *engine.Table

	Peers  PeerTable    // nil if this node has no fabric configured
	Caller RemoteCaller // nil if this node has no remote surface configured

	RemoteTimeout    time.Duration
	RemoteMaxRetries int

	queriesMu sync.Mutex
	queries   map[string]*engine.Goal // query id -> root goal
}

// New returns a Scheduler bounding concurrent task execution to maxWorkers
// (0 or negative selects a sensible default).
func New(rules *rulebase.Index, cl *claims.Table, tbl *engine.Table, maxWorkers int) *Scheduler {
	if maxWorkers <= 0 {
		maxWorkers = 32
	}
	return &Scheduler{
		sem:              make(chan struct{}, maxWorkers),
		goalLocks:        map[string]*sync.Mutex{},
		Rules:            rules,
		Claims:           cl,
		Table:            tbl,
		RemoteTimeout:    30 * time.Second,
		RemoteMaxRetries: 3,
		queries:          map[string]*engine.Goal{},
	}
}

func (s *Scheduler) goalLock(fp string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.goalLocks[fp]
	if !ok {
		m = &sync.Mutex{}
		s.goalLocks[fp] = m
	}
	return m
}

// Go implements engine.Dispatcher. It acquires a pool slot and the target
// goal's mutex on a fresh goroutine -- never blocking the caller -- so a
// task dispatched from inside another task's fn (e.g. rescan after a
// queries/lemmata outcome) can never deadlock against the pool.
func (s *Scheduler) Go(ctx context.Context, g *engine.Goal, fn func(ctx context.Context)) {
	g.EnterPending()
	go func() {
		defer g.LeavePending()
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-s.sem }()

		lock := s.goalLock(g.Fingerprint)
		lock.Lock()
		defer lock.Unlock()
		fn(ctx)
	}()
}

// Offers implements engine.Delegate, consulting the peer table if one is
// configured.
func (s *Scheduler) Offers(ctx context.Context, pi core.PredIndicator) (string, bool) {
	if s.Peers == nil {
		return "", false
	}
	return s.Peers.Offers(pi)
}

// Delegate implements engine.Delegate's remote half of §4.5's protocol:
// issue remote_query, feed every deliver_answer into g as a local answer
// with a remote derivation edge, and retry up to RemoteMaxRetries times on
// a transport failure before giving up and marking the peer unreachable
// (§7 "a recoverable event in the peer table"). Each attempt carries its
// own deadline, following sio/timers.go's select-on-a-deadline-channel
// idiom generalized from a wall-clock fire to a context timeout.
func (s *Scheduler) Delegate(ctx context.Context, peerId string, g *engine.Goal) error {
	if s.Caller == nil {
		return fmt.Errorf("scheduler: no remote caller configured")
	}
	correlationId := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt <= s.RemoteMaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.RemoteTimeout)
		err := s.Caller.RemoteQuery(callCtx, peerId, g.Literal, correlationId, func(subst core.Subst, remoteClaimDigest string) {
			s.integrateRemoteAnswer(g, peerId, subst, remoteClaimDigest)
		})
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		util.Logf("scheduler: remote_query to %s attempt %d/%d failed: %s", peerId, attempt+1, s.RemoteMaxRetries+1, err)
	}
	if s.Peers != nil {
		s.Peers.MarkUnreachable(peerId)
	}
	return lastErr
}

// integrateRemoteAnswer records a peer's answer as if produced locally,
// with a remote(P, claim digest) derivation edge (§4.5 step 4).
func (s *Scheduler) integrateRemoteAnswer(g *engine.Goal, peerId string, subst core.Subst, remoteClaimDigest string) {
	lit := subst.Apply(g.Literal)
	var claim *claims.Claim
	if lit.Ground() {
		claim = claims.NewClaim(lit, claims.Edge{Kind: claims.EdgeRemote, PeerId: peerId, RemoteClaimId: remoteClaimDigest}, g.QueryId)
		if _, err := s.Claims.Append(claim); err != nil {
			util.Logf("scheduler: recording remote claim: %s", err)
		}
	}
	g.AddAnswer(subst.Restrict(core.Vars(g.Literal)), claim)
}

// Submit resolves lit as queryId's root goal under e and registers it for
// later Quiescent/Cancel calls.
func (s *Scheduler) Submit(ctx context.Context, e *engine.Engine, lit *core.Literal, queryId string) *engine.Goal {
	g := e.Resolve(ctx, lit, queryId, nil)
	s.queriesMu.Lock()
	s.queries[queryId] = g
	s.queriesMu.Unlock()
	return g
}

// Root returns queryId's registered root goal, if any, for the remote
// surface's query_answers/query_claims (§4.9).
func (s *Scheduler) Root(queryId string) (*engine.Goal, bool) {
	s.queriesMu.Lock()
	defer s.queriesMu.Unlock()
	g, ok := s.queries[queryId]
	return g, ok
}

// ActiveQueries returns the ids of every registered query not yet
// quiescent, the implementation behind the remote surface's
// active_queries() (§4.9).
func (s *Scheduler) ActiveQueries() []string {
	ids := s.queryIds()
	acc := make([]string, 0, len(ids))
	for _, id := range ids {
		if !s.Quiescent(id) {
			acc = append(acc, id)
		}
	}
	return acc
}

// DoneQueries returns the ids of every registered query that is quiescent,
// the implementation behind the remote surface's done_queries() (§4.9).
func (s *Scheduler) DoneQueries() []string {
	ids := s.queryIds()
	acc := make([]string, 0, len(ids))
	for _, id := range ids {
		if s.Quiescent(id) {
			acc = append(acc, id)
		}
	}
	return acc
}

func (s *Scheduler) queryIds() []string {
	s.queriesMu.Lock()
	defer s.queriesMu.Unlock()
	acc := make([]string, 0, len(s.queries))
	for id := range s.queries {
		acc = append(acc, id)
	}
	return acc
}

// subtreeReachableFromRoot returns every tabled goal reachable from root by
// following the consumer graph upward: a goal g belongs to root's subtree
// if some chain of g's consumers eventually reaches root. Shared
// (re-tabled) goals consumed by more than one query are included here --
// exclusivity is only required for cancellation, not for quiescence.
func (s *Scheduler) subtreeReachableFromRoot(root *engine.Goal) map[string]*engine.Goal {
	reachable := map[string]*engine.Goal{root.Fingerprint: root}
	for {
		grew := false
		for _, g := range s.Table.AllGoals() {
			if _, in := reachable[g.Fingerprint]; in {
				continue
			}
			for _, c := range g.Consumers() {
				if _, in := reachable[c.Fingerprint]; in {
					reachable[g.Fingerprint] = g
					grew = true
					break
				}
			}
		}
		if !grew {
			break
		}
	}
	return reachable
}

// Quiescent reports whether queryId's root goal and every goal transitively
// reachable via the consumer graph are quiescent (§4.4: "A root query is
// completed when its root goal and every goal transitively reachable via
// the consumer graph are quiescent").
func (s *Scheduler) Quiescent(queryId string) bool {
	s.queriesMu.Lock()
	root, ok := s.queries[queryId]
	s.queriesMu.Unlock()
	if !ok {
		return true
	}
	for _, g := range s.subtreeReachableFromRoot(root) {
		if !g.Quiescent() {
			return false
		}
	}
	return true
}

// WaitQuiescent blocks until Quiescent(queryId) or ctx is done, the
// implementation behind the remote surface's query_wait (§4.9).
func (s *Scheduler) WaitQuiescent(ctx context.Context, queryId string, poll time.Duration) error {
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		if s.Quiescent(queryId) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cancel closes queryId's root goal and every goal exclusively reachable
// from it -- i.e. every goal all of whose consumers are themselves being
// closed -- retracting their ephemeral rules atomically with respect to new
// matches (§4.5 "Cancellation"; rulebase.Index.RetractOwnedBy holds its
// write lock for the whole retraction scan). A goal with a consumer outside
// the closing set is left open, per the same section.
func (s *Scheduler) Cancel(queryId string) error {
	s.queriesMu.Lock()
	root, ok := s.queries[queryId]
	delete(s.queries, queryId)
	s.queriesMu.Unlock()
	if !ok {
		return &core.UnknownQuery{QueryId: queryId}
	}

	closing := map[string]*engine.Goal{root.Fingerprint: root}
	for {
		grew := false
		for _, g := range s.Table.AllGoals() {
			if _, already := closing[g.Fingerprint]; already {
				continue
			}
			consumers := g.Consumers()
			if len(consumers) == 0 {
				continue
			}
			exclusive := true
			for _, c := range consumers {
				if _, in := closing[c.Fingerprint]; !in {
					exclusive = false
					break
				}
			}
			if exclusive {
				closing[g.Fingerprint] = g
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	fps := make(map[string]bool, len(closing))
	for fp, g := range closing {
		g.Close()
		s.Table.Remove(fp)
		fps[fp] = true
	}
	s.Rules.RetractOwnedBy(fps)
	return nil
}
