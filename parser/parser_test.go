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

package parser

import "testing"

func TestParseLiteralAtomsVarsAndNumbers(t *testing.T) {
	lit, err := ParseLiteral(`parent(bill, X, 3, -4, true, "hi")`)
	if err != nil {
		t.Fatalf("ParseLiteral: %s", err)
	}
	if lit.Functor() != "parent" || lit.Arity() != 6 {
		t.Fatalf("unexpected literal: %s", lit)
	}
	args := lit.Args()
	if args[0].StringVal() != "bill" {
		t.Errorf("arg0 = %s, want atom bill", args[0])
	}
	if !args[1].IsVar() || args[1].VarName() != "X" {
		t.Errorf("arg1 = %s, want var X", args[1])
	}
	if args[2].IntVal() != 3 {
		t.Errorf("arg2 = %s, want 3", args[2])
	}
	if args[3].IntVal() != -4 {
		t.Errorf("arg3 = %s, want -4", args[3])
	}
	if !args[4].BoolVal() {
		t.Errorf("arg4 = %s, want true", args[4])
	}
	if args[5].StringVal() != "hi" {
		t.Errorf("arg5 = %s, want hi", args[5])
	}
}

func TestParseLiteralNestedCompoundsAndLists(t *testing.T) {
	lit, err := ParseLiteral(`f(g(X), [1, 2, Y])`)
	if err != nil {
		t.Fatalf("ParseLiteral: %s", err)
	}
	inner := lit.Args()[0]
	if !inner.IsCompound() || inner.Functor() != "g" {
		t.Fatalf("expected nested compound g(X), got %s", inner)
	}
	list := lit.Args()[1]
	if !list.IsList() || len(list.ListElems()) != 3 {
		t.Fatalf("expected 3-element list, got %s", list)
	}
}

func TestParseLiteralRejectsBareTerm(t *testing.T) {
	if _, err := ParseLiteral("bill"); err == nil {
		t.Fatal("expected error: a goal must be a compound literal")
	}
}

func TestParseLiteralRejectsTrailingInput(t *testing.T) {
	if _, err := ParseLiteral("parent(bill, mary) extra"); err == nil {
		t.Fatal("expected error on trailing input")
	}
}

func TestParseLiteralRejectsUnterminatedString(t *testing.T) {
	if _, err := ParseLiteral(`f("unterminated)`); err == nil {
		t.Fatal("expected error on unterminated string")
	}
}

func TestParseRuleFileFactsAndClauses(t *testing.T) {
	rules, err := ParseRuleFile(`
parent(bill, mary).
parent(mary, john).
ancestor(X, Y) :- parent(X, Y).
ancestor(X, Y) :- parent(X, Z), ancestor(Z, Y).
`)
	if err != nil {
		t.Fatalf("ParseRuleFile: %s", err)
	}
	if len(rules) != 4 {
		t.Fatalf("got %d rules, want 4", len(rules))
	}
	if len(rules[0].Body) != 0 {
		t.Fatalf("expected fact with empty body, got %+v", rules[0])
	}
	if len(rules[3].Body) != 2 {
		t.Fatalf("expected 2-literal body, got %+v", rules[3].Body)
	}
	if rules[3].Body[0].Functor() != "parent" || rules[3].Body[1].Functor() != "ancestor" {
		t.Fatalf("unexpected body order: %+v", rules[3].Body)
	}
}

func TestSplitLiteralsIgnoresNestedCommas(t *testing.T) {
	lits, err := splitLiterals(`parent(X, Z), f([1, 2], Y)`)
	if err != nil {
		t.Fatalf("splitLiterals: %s", err)
	}
	if len(lits) != 2 {
		t.Fatalf("got %d literals, want 2: %v", len(lits), lits)
	}
}

func TestParseRuleStatementRejectsMalformedBody(t *testing.T) {
	if _, err := ParseRuleStatement("ancestor(X, Y) :- parent(X, Y"); err == nil {
		t.Fatal("expected parse error for unbalanced parens")
	}
}
