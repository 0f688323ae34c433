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
	"sync"

	"etb/core"
)

// Table maps goal fingerprints to goal records (§4.4: "at most one
// evaluation per fingerprint on a node"), plus a small side-registry of
// goals stuck on an unknown predicate, for the re-check described in
// SPEC_FULL §3 ("Stuck-goal re-check on new predicate arrival").
type Table struct {
	mu    sync.RWMutex
	byFP  map[string]*Goal
	stuck map[string]*Goal // fingerprint -> goal, only while UnknownPredicate
}

// NewTable returns an empty goal table.
func NewTable() *Table {
	return &Table{
		byFP:  map[string]*Goal{},
		stuck: map[string]*Goal{},
	}
}

// GetOrCreate returns the existing goal for lit's fingerprint, or creates and
// registers a new one. created reports whether the goal was newly created.
func (t *Table) GetOrCreate(lit *core.Literal, queryId string) (g *Goal, created bool) {
	fp := core.Fingerprint(lit)
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, have := t.byFP[fp]; have {
		return existing, false
	}
	g = NewGoal(lit, queryId)
	t.byFP[fp] = g
	return g, true
}

// Lookup returns the goal for fingerprint fp, if any.
func (t *Table) Lookup(fp string) (*Goal, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	g, ok := t.byFP[fp]
	return g, ok
}

// MarkStuck records g as stuck on an unknown predicate, eligible for the
// re-check when the rule base's predicate set grows.
func (t *Table) MarkStuck(g *Goal) {
	g.UnknownPredicate = true
	t.mu.Lock()
	t.stuck[g.Fingerprint] = g
	t.mu.Unlock()
}

// Unstick removes g from the stuck registry, e.g. once it has been re-probed.
func (t *Table) Unstick(g *Goal) {
	t.mu.Lock()
	delete(t.stuck, g.Fingerprint)
	t.mu.Unlock()
}

// StuckGoals returns a snapshot of every currently-stuck goal.
func (t *Table) StuckGoals() []*Goal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	acc := make([]*Goal, 0, len(t.stuck))
	for _, g := range t.stuck {
		acc = append(acc, g)
	}
	return acc
}

// Remove deletes a goal's table entry, used by cancellation (§4.5) once a
// goal's closure has propagated.
func (t *Table) Remove(fp string) {
	t.mu.Lock()
	delete(t.byFP, fp)
	delete(t.stuck, fp)
	t.mu.Unlock()
}

// Size returns the number of tabled goals, mainly for tests and metrics.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byFP)
}

// AllGoals returns a snapshot of every tabled goal, used by the scheduler's
// cancellation sweep (§4.5) to find goals exclusively reachable from a
// closing query's root via the consumer graph.
func (t *Table) AllGoals() []*Goal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	acc := make([]*Goal, 0, len(t.byFP))
	for _, g := range t.byFP {
		acc = append(acc, g)
	}
	return acc
}
