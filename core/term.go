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

// Package core implements the term model and unifier underlying goals,
// rules, and claims: variables, constants, compounds, lists, and file
// references, plus substitution composition and structural unification.
package core

import (
	"fmt"
	"strings"
	"unicode"
)

// Kind discriminates the variants of Term.
type Kind int

const (
	KindVar Kind = iota
	KindConst
	KindCompound
	KindList
	KindFileRef
)

// ConstKind discriminates the primitive types a Const can hold.
type ConstKind int

const (
	ConstString ConstKind = iota
	ConstInt
	ConstBool
	ConstAtom
)

// Term is an immutable node in the term tree. Exactly one of the fields
// relevant to Kind is populated; callers should use the Kind accessors
// (Var, Const*, Functor/Args, ListElems, FileRef) rather than field access.
type Term struct {
	kind Kind

	varName string

	constKind ConstKind
	strVal    string
	intVal    int64
	boolVal   bool

	functor string
	args    []*Term

	elems []*Term // KindList: explicit element sequence; lists have no tail

	filePath string
	fileSHA1 string
}

// IsVariableName reports whether s names a variable: it starts with an
// uppercase letter, per spec.md's term grammar (unlike the teacher's
// leading-'?' convention in core/match.go, which this package intentionally
// departs from to match the goal-string grammar of §6).
func IsVariableName(s string) bool {
	if s == "" {
		return false
	}
	r := []rune(s)[0]
	return unicode.IsUpper(r)
}

// Var returns a fresh variable term with the given name.
func Var(name string) *Term {
	return &Term{kind: KindVar, varName: name}
}

func (t *Term) IsVar() bool { return t.kind == KindVar }

// VarName returns the variable's name; valid only when IsVar().
func (t *Term) VarName() string { return t.varName }

// StringConst, IntConst, BoolConst, AtomConst build primitive constants.
func StringConst(s string) *Term { return &Term{kind: KindConst, constKind: ConstString, strVal: s} }
func IntConst(i int64) *Term     { return &Term{kind: KindConst, constKind: ConstInt, intVal: i} }
func BoolConst(b bool) *Term     { return &Term{kind: KindConst, constKind: ConstBool, boolVal: b} }
func AtomConst(s string) *Term   { return &Term{kind: KindConst, constKind: ConstAtom, strVal: s} }

func (t *Term) IsConst() bool { return t.kind == KindConst }

func (t *Term) ConstKind() ConstKind { return t.constKind }
func (t *Term) StringVal() string    { return t.strVal }
func (t *Term) IntVal() int64        { return t.intVal }
func (t *Term) BoolVal() bool        { return t.boolVal }

// Compound builds a compound term: a functor symbol applied to ordered args.
// A Literal is simply a Compound whose functor names a predicate.
func Compound(functor string, args ...*Term) *Term {
	return &Term{kind: KindCompound, functor: functor, args: args}
}

func (t *Term) IsCompound() bool { return t.kind == KindCompound }
func (t *Term) Functor() string  { return t.functor }
func (t *Term) Args() []*Term    { return t.args }
func (t *Term) Arity() int       { return len(t.args) }

// List builds an explicit-sequence list term.
func List(elems ...*Term) *Term {
	return &Term{kind: KindList, elems: elems}
}

func (t *Term) IsList() bool    { return t.kind == KindList }
func (t *Term) ListElems() []*Term { return t.elems }

// FileRef builds a file-reference term: a structured {file, sha1} value.
func FileRef(path, sha1 string) *Term {
	return &Term{kind: KindFileRef, filePath: path, fileSHA1: sha1}
}

func (t *Term) IsFileRef() bool { return t.kind == KindFileRef }
func (t *Term) FilePath() string { return t.filePath }
func (t *Term) FileSHA1() string { return t.fileSHA1 }

func (t *Term) Kind() Kind { return t.kind }

// Ground reports whether t contains no variables.
func (t *Term) Ground() bool {
	switch t.kind {
	case KindVar:
		return false
	case KindCompound:
		for _, a := range t.args {
			if !a.Ground() {
				return false
			}
		}
		return true
	case KindList:
		for _, e := range t.elems {
			if !e.Ground() {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Equal reports structural equality. Two file references are equal iff
// their hashes match, per spec.md §3 ("equality is by hash").
func (t *Term) Equal(o *Term) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil {
		return false
	}
	if t.kind != o.kind {
		return false
	}
	switch t.kind {
	case KindVar:
		return t.varName == o.varName
	case KindConst:
		if t.constKind != o.constKind {
			return false
		}
		switch t.constKind {
		case ConstString, ConstAtom:
			return t.strVal == o.strVal
		case ConstInt:
			return t.intVal == o.intVal
		case ConstBool:
			return t.boolVal == o.boolVal
		}
		return false
	case KindCompound:
		if t.functor != o.functor || len(t.args) != len(o.args) {
			return false
		}
		for i := range t.args {
			if !t.args[i].Equal(o.args[i]) {
				return false
			}
		}
		return true
	case KindList:
		if len(t.elems) != len(o.elems) {
			return false
		}
		for i := range t.elems {
			if !t.elems[i].Equal(o.elems[i]) {
				return false
			}
		}
		return true
	case KindFileRef:
		return t.fileSHA1 == o.fileSHA1
	}
	return false
}

// String renders t in the goal-string surface syntax (see parser package).
func (t *Term) String() string {
	switch t.kind {
	case KindVar:
		return t.varName
	case KindConst:
		switch t.constKind {
		case ConstString:
			return fmt.Sprintf("%q", t.strVal)
		case ConstInt:
			return fmt.Sprintf("%d", t.intVal)
		case ConstBool:
			return fmt.Sprintf("%t", t.boolVal)
		case ConstAtom:
			return t.strVal
		}
		return ""
	case KindCompound:
		parts := make([]string, len(t.args))
		for i, a := range t.args {
			parts[i] = a.String()
		}
		return t.functor + "(" + strings.Join(parts, ", ") + ")"
	case KindList:
		parts := make([]string, len(t.elems))
		for i, e := range t.elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindFileRef:
		return fmt.Sprintf("{file: %q, sha1: %q}", t.filePath, t.fileSHA1)
	}
	return "?"
}

// Literal is a Term known to be a Compound headed by a predicate symbol.
type Literal = Term

// PredIndicator identifies a predicate by symbol and arity, the key used
// throughout rulebase and wrapper for indexing.
type PredIndicator struct {
	Symbol string
	Arity  int
}

func (p PredIndicator) String() string {
	return fmt.Sprintf("%s/%d", p.Symbol, p.Arity)
}

// Indicator returns the PredIndicator of a literal.
func Indicator(lit *Literal) PredIndicator {
	return PredIndicator{Symbol: lit.Functor(), Arity: lit.Arity()}
}
