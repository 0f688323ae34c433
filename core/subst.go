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

package core

import "sort"

// Subst is a finite mapping from variable names to terms.
//
// Analogous to the teacher's core.Bindings (core/match.go), but keyed by a
// spec-grammar variable name rather than a leading-'?' pattern key.
type Subst map[string]*Term

// NewSubst returns an empty substitution.
func NewSubst() Subst {
	return make(Subst, 4)
}

// Copy makes a shallow copy, following Bindings.Copy's convention.
func (s Subst) Copy() Subst {
	acc := make(Subst, len(s))
	for k, v := range s {
		acc[k] = v
	}
	return acc
}

// Extend binds name to t, returning the (mutated) substitution.
func (s Subst) Extend(name string, t *Term) Subst {
	s[name] = t
	return s
}

// Apply recursively substitutes bound variables in t until a fixpoint,
// per spec.md §3 ("applying a substitution is recursive until a fixpoint").
func (s Subst) Apply(t *Term) *Term {
	if t == nil {
		return nil
	}
	switch t.kind {
	case KindVar:
		if bound, ok := s[t.varName]; ok {
			if bound.Equal(t) {
				return bound
			}
			return s.Apply(bound)
		}
		return t
	case KindCompound:
		args := make([]*Term, len(t.args))
		changed := false
		for i, a := range t.args {
			na := s.Apply(a)
			args[i] = na
			if na != a {
				changed = true
			}
		}
		if !changed {
			return t
		}
		return &Term{kind: KindCompound, functor: t.functor, args: args}
	case KindList:
		elems := make([]*Term, len(t.elems))
		changed := false
		for i, e := range t.elems {
			ne := s.Apply(e)
			elems[i] = ne
			if ne != e {
				changed = true
			}
		}
		if !changed {
			return t
		}
		return &Term{kind: KindList, elems: elems}
	default:
		return t
	}
}

// Compose returns the left-to-right composition of s followed by other:
// applying the result to a term is the same as applying s then other.
func (s Subst) Compose(other Subst) Subst {
	acc := make(Subst, len(s)+len(other))
	for k, v := range s {
		acc[k] = other.Apply(v)
	}
	for k, v := range other {
		if _, have := acc[k]; !have {
			acc[k] = v
		}
	}
	return acc
}

// Restrict returns the sub-mapping of s whose keys are in vars.
func (s Subst) Restrict(vars []string) Subst {
	acc := make(Subst, len(vars))
	for _, v := range vars {
		if t, ok := s[v]; ok {
			acc[v] = t
		}
	}
	return acc
}

// Vars returns the variable names appearing in t, in first-occurrence order.
func Vars(t *Term) []string {
	seen := map[string]bool{}
	var order []string
	var walk func(*Term)
	walk = func(t *Term) {
		if t == nil {
			return
		}
		switch t.kind {
		case KindVar:
			if !seen[t.varName] {
				seen[t.varName] = true
				order = append(order, t.varName)
			}
		case KindCompound:
			for _, a := range t.args {
				walk(a)
			}
		case KindList:
			for _, e := range t.elems {
				walk(e)
			}
		}
	}
	walk(t)
	return order
}

// SortedKeys returns the substitution's variable names in sorted order, used
// when a deterministic iteration order is needed (e.g. canonical printing).
func (s Subst) SortedKeys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
