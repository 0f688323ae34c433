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

// Unify attempts to unify a and b under the given substitution, returning
// the extended substitution on success. The engine never builds cyclic
// terms, so a bound-variable occurs check would always fail to trigger in
// practice; we still guard against it explicitly per §4.1 rather than assume
// the invariant holds.
func Unify(a, b *Term, s Subst) (Subst, bool) {
	if s == nil {
		s = NewSubst()
	}
	return unify(s.Apply(a), s.Apply(b), s)
}

func unify(a, b *Term, s Subst) (Subst, bool) {
	switch {
	case a.kind == KindVar && b.kind == KindVar && a.varName == b.varName:
		return s, true
	case a.kind == KindVar:
		if occurs(a.varName, b) {
			return s, false
		}
		ns := s.Copy()
		ns[a.varName] = b
		return ns, true
	case b.kind == KindVar:
		return unify(b, a, s)
	case a.kind != b.kind:
		return s, false
	}

	switch a.kind {
	case KindConst:
		return s, a.Equal(b)
	case KindFileRef:
		return s, a.Equal(b)
	case KindCompound:
		if a.functor != b.functor || len(a.args) != len(b.args) {
			return s, false
		}
		cur := s
		for i := range a.args {
			ns, ok := unify(cur.Apply(a.args[i]), cur.Apply(b.args[i]), cur)
			if !ok {
				return s, false
			}
			cur = ns
		}
		return cur, true
	case KindList:
		if len(a.elems) != len(b.elems) {
			return s, false
		}
		cur := s
		for i := range a.elems {
			ns, ok := unify(cur.Apply(a.elems[i]), cur.Apply(b.elems[i]), cur)
			if !ok {
				return s, false
			}
			cur = ns
		}
		return cur, true
	}
	return s, false
}

func occurs(name string, t *Term) bool {
	switch t.kind {
	case KindVar:
		return t.varName == name
	case KindCompound:
		for _, a := range t.args {
			if occurs(name, a) {
				return true
			}
		}
		return false
	case KindList:
		for _, e := range t.elems {
			if occurs(name, e) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Rename returns a copy of t with every variable renamed using suffix,
// producing rule variables that are "renamed apart" before each resolution
// step, per §4.1. suffix is typically a goal- or resolution-step id.
func Rename(t *Term, suffix string) *Term {
	seen := map[string]*Term{}
	var walk func(*Term) *Term
	walk = func(t *Term) *Term {
		switch t.kind {
		case KindVar:
			if nv, ok := seen[t.varName]; ok {
				return nv
			}
			nv := Var(t.varName + "#" + suffix)
			seen[t.varName] = nv
			return nv
		case KindCompound:
			args := make([]*Term, len(t.args))
			for i, a := range t.args {
				args[i] = walk(a)
			}
			return &Term{kind: KindCompound, functor: t.functor, args: args}
		case KindList:
			elems := make([]*Term, len(t.elems))
			for i, e := range t.elems {
				elems[i] = walk(e)
			}
			return &Term{kind: KindList, elems: elems}
		default:
			return t
		}
	}
	return walk(t)
}
