/* Copyright 2019 Comcast Cable Communications Management, LLC
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

// Package goja implements scripted wrapper bodies: a wrapper predicate
// whose outcome logic is a small JavaScript function, evaluated with
// dop251/goja. Adapted from the teacher's interpreters/goja package, which
// compiles core.ActionSource bodies the same way but returns machine
// bindings instead of a wrapper.Outcome.
package goja

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/gorhill/cronexpr"

	"etb/core"
	"etb/wrapper"
)

// ScriptedResolver compiles and runs a JS body against a literal's
// arguments. The script must set a global function `resolve(args)` that
// returns an object of the shape { tag: "success"|"failure"|"substitutions"
// |"queries"|"lemmata"|"errors", ... } mirroring wrapper.Outcome. Only
// success, failure, substitutions and errors are decoded; a queries or
// lemmata result is rejected as an unknown tag.
type ScriptedResolver struct {
	Name    string
	Source  string
	program *goja.Program
}

// NewScriptedResolver compiles src once, following the teacher's
// Interpreter.Compile/Exec split (compile once, execute many times).
func NewScriptedResolver(name, src string) (*ScriptedResolver, error) {
	p, err := goja.Compile(name, src, true)
	if err != nil {
		return nil, fmt.Errorf("compiling scripted wrapper %q: %w", name, err)
	}
	return &ScriptedResolver{Name: name, Source: src, program: p}, nil
}

// Resolve implements wrapper.Resolver.
func (s *ScriptedResolver) Resolve(ctx context.Context, lit *core.Literal) (wrapper.Outcome, error) {
	vm := goja.New()

	args := make([]interface{}, lit.Arity())
	for i, a := range lit.Args() {
		args[i] = wrapper.ToPlain(a)
	}

	vm.Set("args", args)
	vm.Set("gensym", func() string { return fmt.Sprintf("g%d", time.Now().UnixNano()) })
	vm.Set("cronNext", func(expr string) (string, error) {
		c, err := cronexpr.Parse(expr)
		if err != nil {
			return "", err
		}
		return c.Next(time.Now()).UTC().Format(time.RFC3339Nano), nil
	})

	if _, err := vm.RunProgram(s.program); err != nil {
		return wrapper.Outcome{}, fmt.Errorf("running scripted wrapper %q: %w", s.Name, err)
	}

	resolveFn, ok := goja.AssertFunction(vm.Get("resolve"))
	if !ok {
		return wrapper.Outcome{}, fmt.Errorf("scripted wrapper %q does not define resolve(args)", s.Name)
	}

	result, err := resolveFn(goja.Undefined(), vm.ToValue(args))
	if err != nil {
		return wrapper.Outcome{}, fmt.Errorf("executing scripted wrapper %q: %w", s.Name, err)
	}

	return decodeOutcome(result.Export())
}

func decodeOutcome(v interface{}) (wrapper.Outcome, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return wrapper.Outcome{}, fmt.Errorf("scripted wrapper returned non-object %T", v)
	}
	tag, _ := m["tag"].(string)
	switch tag {
	case "success":
		return wrapper.NewSuccess(), nil
	case "failure":
		return wrapper.NewFailure(), nil
	case "substitutions":
		substs, err := decodeSubsts(m["substs"])
		if err != nil {
			return wrapper.Outcome{}, err
		}
		return wrapper.NewSubstitutions(substs), nil
	case "errors":
		msgs, _ := m["messages"].([]interface{})
		ss := make([]string, len(msgs))
		for i, mm := range msgs {
			ss[i], _ = mm.(string)
		}
		return wrapper.NewErrors(ss...), nil
	default:
		return wrapper.Outcome{}, fmt.Errorf("unknown scripted wrapper outcome tag %q", tag)
	}
}

func decodeSubsts(v interface{}) ([]core.Subst, error) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("substs field must be an array")
	}
	out := make([]core.Subst, len(arr))
	for i, e := range arr {
		em, ok := e.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("subst entry %d must be an object", i)
		}
		s := core.NewSubst()
		for k, val := range em {
			t, err := wrapper.FromPlain(val)
			if err != nil {
				return nil, err
			}
			s[k] = t
		}
		out[i] = s
	}
	return out, nil
}
