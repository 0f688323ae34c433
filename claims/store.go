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

package claims

import (
	"encoding/json"
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"

	"etb/core"
	"etb/parser"
)

var (
	bucketClaims  = []byte("claims")
	bucketByLit   = []byte("by_literal")
	bucketByQuery = []byte("by_query")
	bucketErrors  = []byte("errors")
)

// wireClaim is Claim's on-disk JSON shape; core.Term isn't itself
// JSON-serializable (its fields are private), so claims are persisted as
// their rendered literal string plus edge/index metadata and rehydrated
// by reparsing that string during OpenPersistent's replay -- the in-memory Table is always the source of truth for
// unification, bbolt is a durability log replayed at startup (§4.6, mirrors
// crew/crew.go's store-state-separately-from-live-structures approach).
type wireClaim struct {
	LitString  string
	Edge       Edge
	QueryId    string
	LitDigest  string
	EdgeDigest string
}

// Table is the append-only, in-memory claims table of §4.6, optionally
// mirrored to a bbolt-backed log for durability across restarts.
type Table struct {
	mu       sync.RWMutex
	byLit    map[string][]*Claim // literal digest -> claims
	byQuery  map[string][]*Claim // query id -> claims
	errs     []*Claim
	seen     map[string]bool // litDigest+edgeDigest -> present, dedup guard
	db       *bolt.DB
}

// NewTable returns an empty in-memory claims table with no persistence.
func NewTable() *Table {
	return &Table{
		byLit:   map[string][]*Claim{},
		byQuery: map[string][]*Claim{},
		seen:    map[string]bool{},
	}
}

// OpenPersistent returns a Table backed by a bbolt database at path,
// replaying any claims previously logged there (§4.6's durability note:
// "a node that restarts need not re-derive what it has already proved").
func OpenPersistent(path string) (*Table, error) {
	db, err := bolt.Open(path, 0644, nil)
	if err != nil {
		return nil, err
	}
	t := NewTable()
	t.db = db
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketClaims, bucketByLit, bucketByQuery, bucketErrors} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	if err := t.replay(); err != nil {
		db.Close()
		return nil, err
	}
	return t, nil
}

// replay rehydrates every index a live Table maintains, not just the
// duplicate-detection guard: a claim logged before a restart must remain
// retrievable via ByLiteral/ByQuery/Errors/All afterward, per §4.6's "a node
// that restarts need not re-derive what it has already proved" -- if a
// restart quietly dropped a claim from those indexes while still rejecting
// its re-derivation as a duplicate, the claim would become permanently
// unqueryable. The literal is reconstructed by parsing the rendered
// LitString back through the same grammar goals arrive in.
func (t *Table) replay() error {
	return t.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClaims)
		return b.ForEach(func(k, v []byte) error {
			var wc wireClaim
			if err := json.Unmarshal(v, &wc); err != nil {
				return err
			}
			lit, err := parser.ParseLiteral(wc.LitString)
			if err != nil {
				return fmt.Errorf("replaying claim %s: parsing literal %q: %w", k, wc.LitString, err)
			}
			c := &Claim{
				Literal:    lit,
				Edge:       wc.Edge,
				QueryId:    wc.QueryId,
				LitDigest:  wc.LitDigest,
				EdgeDigest: wc.EdgeDigest,
			}
			key := c.LitDigest + c.EdgeDigest
			t.seen[key] = true
			t.byLit[c.LitDigest] = append(t.byLit[c.LitDigest], c)
			if c.QueryId != "" {
				t.byQuery[c.QueryId] = append(t.byQuery[c.QueryId], c)
			}
			if c.IsError() {
				t.errs = append(t.errs, c)
			}
			return nil
		})
	})
}

// Close releases the persistence handle, if any.
func (t *Table) Close() error {
	if t.db == nil {
		return nil
	}
	return t.db.Close()
}

// Append adds c to the table if its (literal, edge) pair has not already
// been recorded (§3 invariant: "no duplicate (literal, derivation-edge)
// pair"). Returns true if c was newly added.
func (t *Table) Append(c *Claim) (bool, error) {
	key := c.LitDigest + c.EdgeDigest
	t.mu.Lock()
	if t.seen[key] {
		t.mu.Unlock()
		return false, nil
	}
	t.seen[key] = true
	t.byLit[c.LitDigest] = append(t.byLit[c.LitDigest], c)
	if c.QueryId != "" {
		t.byQuery[c.QueryId] = append(t.byQuery[c.QueryId], c)
	}
	if c.IsError() {
		t.errs = append(t.errs, c)
	}
	t.mu.Unlock()

	if t.db == nil {
		return true, nil
	}
	wc := wireClaim{
		LitString:  c.Literal.String(),
		Edge:       c.Edge,
		QueryId:    c.QueryId,
		LitDigest:  c.LitDigest,
		EdgeDigest: c.EdgeDigest,
	}
	buf, err := json.Marshal(wc)
	if err != nil {
		return true, err
	}
	err = t.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClaims).Put([]byte(key), buf)
	})
	return true, err
}

// ByLiteral returns every claim recorded for lit's ground digest.
func (t *Table) ByLiteral(lit *core.Literal) []*Claim {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Claim(nil), t.byLit[core.Digest(lit)]...)
}

// ByQuery returns every claim recorded under queryId, in append order.
func (t *Table) ByQuery(queryId string) []*Claim {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Claim(nil), t.byQuery[queryId]...)
}

// Errors returns every error(...) claim recorded so far (§7).
func (t *Table) Errors() []*Claim {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Claim(nil), t.errs...)
}

// All returns every claim recorded across every literal, the implementation
// behind the remote surface's get_all_claims() (§4.9).
func (t *Table) All() []*Claim {
	t.mu.RLock()
	defer t.mu.RUnlock()
	acc := make([]*Claim, 0)
	for _, cs := range t.byLit {
		acc = append(acc, cs...)
	}
	return acc
}

// Has reports whether lit has already been claimed by some edge.
func (t *Table) Has(lit *core.Literal) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byLit[core.Digest(lit)]) > 0
}

// ById looks up a single claim by its edge digest within a literal's claim
// set, used to resolve RuleInstance.Children references.
func (t *Table) ById(litDigest, edgeDigest string) (*Claim, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, c := range t.byLit[litDigest] {
		if c.EdgeDigest == edgeDigest {
			return c, true
		}
	}
	return nil, false
}

// Count returns the total number of distinct claims recorded.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, cs := range t.byLit {
		n += len(cs)
	}
	return n
}
