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

import (
	"context"
	"fmt"
	"sync"

	"etb/core"
)

// Resolver is implemented by every wrapper predicate's body, whether it is a
// native Go function or a compiled script (see interpreters/goja).
// Analogous to the teacher's core.Action (core/actions.go), generalized from
// "returns bindings" to "returns a tagged Outcome".
type Resolver interface {
	Resolve(ctx context.Context, lit *core.Literal) (Outcome, error)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(ctx context.Context, lit *core.Literal) (Outcome, error)

func (f ResolverFunc) Resolve(ctx context.Context, lit *core.Literal) (Outcome, error) {
	return f(ctx, lit)
}

// FileResolver is implemented by file store adapters the registry consults
// to check and fetch blobs for KindFile/KindFiles arguments before dispatch
// (§4.3, §4.7).
type FileResolver interface {
	// Resolvable reports whether the blob for the given file-ref term is
	// locally available, fetching it from a peer first if not.
	Resolvable(ctx context.Context, fileRefTerm *core.Term) (bool, error)
}

// Entry is one registered wrapper predicate: its signature plus body.
type Entry struct {
	Sig      *Signature
	Resolver Resolver
}

// Registry maps predicate symbols to Entries, mirroring the design note in
// §9 ("A registry maps predicate symbols to capability objects").
type Registry struct {
	mu      sync.RWMutex
	entries map[core.PredIndicator]*Entry
	Files   FileResolver
}

// NewRegistry returns an empty wrapper registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[core.PredIndicator]*Entry, 16)}
}

// Register adds a wrapper predicate with the given signature and resolver.
func (r *Registry) Register(sig *Signature, resolver Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[core.PredIndicator{Symbol: sig.Name, Arity: sig.Arity()}] = &Entry{Sig: sig, Resolver: resolver}
}

// Has reports whether pi names a registered wrapper.
func (r *Registry) Has(pi core.PredIndicator) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[pi]
	return ok
}

// Names returns the set of registered predicate indicators, for fabric
// advertisement (§4.8).
func (r *Registry) Names() []core.PredIndicator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc := make([]core.PredIndicator, 0, len(r.entries))
	for pi := range r.entries {
		acc = append(acc, pi)
	}
	return acc
}

// Resolve checks the signature's mode constraints and KindFile
// resolvability, then dispatches to the entry's Resolver. A mode or kind
// violation produces an Errors outcome rather than an error return, per
// §4.3 ("A mode violation produces an errors outcome, not a crash").
func (r *Registry) Resolve(ctx context.Context, lit *core.Literal) (Outcome, error) {
	pi := core.Indicator(lit)
	r.mu.RLock()
	entry, ok := r.entries[pi]
	r.mu.RUnlock()
	if !ok {
		return Outcome{}, fmt.Errorf("no wrapper registered for %s", pi)
	}

	if ok, badIndex := entry.Sig.CheckModes(lit); !ok {
		return NewErrors((&core.ModeViolation{Predicate: pi, ArgIndex: badIndex}).Error()), nil
	}

	if r.Files != nil {
		args := lit.Args()
		for _, i := range entry.Sig.FileArgIndices() {
			avail, err := r.Files.Resolvable(ctx, args[i])
			if err != nil {
				return NewErrors(fmt.Sprintf("file resolution failed for argument %d: %s", i, err)), nil
			}
			if !avail {
				return NewErrors(fmt.Sprintf("file for argument %d is not resolvable on any reachable peer", i)), nil
			}
		}
	}

	return entry.Resolver.Resolve(ctx, lit)
}
