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

// Package wrapper implements the wrapper registry (§4.3): predicates backed
// by external code, each with a mode/kind signature, producing one of a
// fixed set of outcomes when resolved against a literal.
package wrapper

import (
	"etb/core"
)

// Mode constrains how an argument must relate to the caller's bindings.
type Mode int

const (
	// ModeIn requires the argument to be bound ("+").
	ModeIn Mode = iota
	// ModeOut requires the argument to be a variable ("-").
	ModeOut
	// ModeEither imposes no binding constraint.
	ModeEither
)

// Kind drives file synchronisation and handle-validity checks.
type Kind int

const (
	KindValue Kind = iota
	KindFile
	KindFiles
	KindHandle
)

// ArgSpec is one argument's (mode, kind) pair.
type ArgSpec struct {
	Mode Mode
	Kind Kind
}

// Signature is a wrapper predicate's full argument signature.
type Signature struct {
	Name string
	Args []ArgSpec
}

func (sig *Signature) Arity() int { return len(sig.Args) }

// CheckModes reports whether lit's arguments satisfy the signature's mode
// constraints against the current bindings. It never panics on arity
// mismatch; it simply reports false.
func (sig *Signature) CheckModes(lit *core.Literal) (ok bool, badIndex int) {
	if lit.Arity() != len(sig.Args) {
		return false, -1
	}
	args := lit.Args()
	for i, spec := range sig.Args {
		a := args[i]
		switch spec.Mode {
		case ModeIn:
			if !a.Ground() {
				return false, i
			}
		case ModeOut:
			if !a.IsVar() {
				return false, i
			}
		}
	}
	return true, -1
}

// FileArgIndices returns the indices of arguments whose kind requires a
// locally-resolvable file blob (KindFile or KindFiles), used by the
// registry to trigger file synchronisation before invocation (§4.3, §4.7).
func (sig *Signature) FileArgIndices() []int {
	var idx []int
	for i, spec := range sig.Args {
		if spec.Kind == KindFile || spec.Kind == KindFiles {
			idx = append(idx, i)
		}
	}
	return idx
}
