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

package rulebase

import (
	"sync"

	"etb/core"
)

// Index stores rules indexed by head (symbol, arity), following the
// teacher's map-indexed-by-name convention in core.Spec.Nodes, generalized
// to a predicate key. Retraction is a single-writer operation (§9 "a
// single-writer operation on the index").
type Index struct {
	mu    sync.RWMutex
	byPI  map[core.PredIndicator][]*Rule
	byId  map[string]*Rule
	epoch uint64
}

// NewIndex returns an empty rule index.
func NewIndex() *Index {
	return &Index{
		byPI: make(map[core.PredIndicator][]*Rule, 64),
		byId: make(map[string]*Rule, 64),
	}
}

// Add inserts r, tagging it with the index's current epoch. Re-adding a
// rule with an Id already present is a no-op (content-hash dedup).
func (idx *Index) Add(r *Rule) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, have := idx.byId[r.Id]; have {
		return
	}
	idx.epoch++
	r.Epoch = idx.epoch
	idx.byId[r.Id] = r
	pi := core.Indicator(r.Head)
	idx.byPI[pi] = append(idx.byPI[pi], r)
}

// Candidates returns the currently-visible (non-retracted) rules whose head
// matches lit's predicate indicator, in insertion order, per §4.4's
// "rule-matching order follows insertion order".
func (idx *Index) Candidates(lit *core.Literal) []*Rule {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	pi := core.Indicator(lit)
	rs := idx.byPI[pi]
	acc := make([]*Rule, 0, len(rs))
	for _, r := range rs {
		if !r.retracted {
			acc = append(acc, r)
		}
	}
	return acc
}

// HasPredicate reports whether the index has any rule (retracted or not,
// since a retracted head still means the predicate is locally known) for
// the given predicate indicator, used by the engine to decide between
// "unknown predicate" and delegating to a peer (§4.4 step 5).
func (idx *Index) HasPredicate(pi core.PredIndicator) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byPI[pi]) > 0
}

// Predicates returns the set of predicate indicators with at least one
// visible rule, used for fabric predicate advertisement (§4.8).
func (idx *Index) Predicates() []core.PredIndicator {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	acc := make([]core.PredIndicator, 0, len(idx.byPI))
	for pi, rs := range idx.byPI {
		for _, r := range rs {
			if !r.retracted {
				acc = append(acc, pi)
				break
			}
		}
	}
	return acc
}

// RetractOwnedBy retracts every rule owned by one of the given goal
// fingerprints (§4.5 cancellation, §9 "rule epoch"). Retraction is atomic
// with respect to Candidates: a resolution step reading Candidates either
// sees all of the retracted set or none, because RetractOwnedBy holds the
// write lock for its whole scan (§5 "a resolution step either sees all of a
// cancelled rule set or none").
func (idx *Index) RetractOwnedBy(goalFingerprints map[string]bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, r := range idx.byId {
		if r.OwnerGoal != "" && goalFingerprints[r.OwnerGoal] {
			r.retracted = true
		}
	}
}

// Epoch returns the index's current epoch counter.
func (idx *Index) Epoch() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.epoch
}

// CurrentPredicateSet returns a snapshot of known predicate indicators
// (those with at least one visible rule).
func (idx *Index) CurrentPredicateSet() map[core.PredIndicator]bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	acc := make(map[core.PredIndicator]bool, len(idx.byPI))
	for pi, rs := range idx.byPI {
		for _, r := range rs {
			if !r.retracted {
				acc[pi] = true
				break
			}
		}
	}
	return acc
}
