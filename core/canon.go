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

import (
	"crypto/sha1"
	"fmt"
	"sort"
	"strings"
)

// Canonicalize returns a string form of t suitable for content hashing:
// variables are renamed to positional placeholders ("_1", "_2", ...) in
// first-occurrence order, so that alpha-equivalent terms (equal modulo
// variable renaming, per §3) canonicalize identically. This underlies goal
// fingerprinting (§4.4) and rule/claim content hashes (§3).
func Canonicalize(t *Term) string {
	names := map[string]string{}
	counter := 0
	var walk func(*Term) string
	walk = func(t *Term) string {
		switch t.kind {
		case KindVar:
			n, ok := names[t.varName]
			if !ok {
				counter++
				n = fmt.Sprintf("_%d", counter)
				names[t.varName] = n
			}
			return n
		case KindConst:
			switch t.constKind {
			case ConstString:
				return fmt.Sprintf("s%q", t.strVal)
			case ConstInt:
				return fmt.Sprintf("i%d", t.intVal)
			case ConstBool:
				return fmt.Sprintf("b%t", t.boolVal)
			case ConstAtom:
				return fmt.Sprintf("a%q", t.strVal)
			}
			return ""
		case KindCompound:
			parts := make([]string, len(t.args))
			for i, a := range t.args {
				parts[i] = walk(a)
			}
			return t.functor + "(" + strings.Join(parts, ",") + ")"
		case KindList:
			parts := make([]string, len(t.elems))
			for i, e := range t.elems {
				parts[i] = walk(e)
			}
			return "[" + strings.Join(parts, ",") + "]"
		case KindFileRef:
			return fmt.Sprintf("f%q#%s", t.filePath, t.fileSHA1)
		}
		return ""
	}
	return walk(t)
}

// Fingerprint returns the canonical form of lit with a consistent renaming
// of its variables, the key used by the goal table (§4.4) to detect
// equivalent goals.
func Fingerprint(lit *Literal) string {
	return Canonicalize(lit)
}

// Digest returns a stable hex-encoded SHA-1 content hash of t's canonical
// form, used for rule identity (§3: "rules are identified by content hash")
// and for ground-claim identity in the claims table.
func Digest(t *Term) string {
	h := sha1.Sum([]byte(Canonicalize(t)))
	return fmt.Sprintf("%x", h)
}

// DigestPair hashes a (head, body) pair, used for rule-instance derivation
// edges and for detecting duplicate (head, body) rule instances (§3
// invariant: "never produce duplicate derivation edges for the same ground
// instance").
func DigestPair(head *Term, body []*Term) string {
	parts := make([]string, len(body)+1)
	parts[0] = Canonicalize(head)
	for i, b := range body {
		parts[i+1] = Canonicalize(b)
	}
	h := sha1.Sum([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", h)
}

// SubstDigest hashes a substitution (sorted by key) for use as an argument
// digest in wrapper derivation edges (§3: "wrapper (name + argument digest
// + produced binding)").
func SubstDigest(s Subst) string {
	keys := s.SortedKeys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+Canonicalize(s[k]))
	}
	sort.Strings(parts)
	h := sha1.Sum([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", h)
}
