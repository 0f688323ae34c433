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

import (
	"strings"

	"etb/core"
	"etb/rulebase"
)

// ParseRuleFile parses a small Prolog-like rule file: one fact or clause per
// statement, terminated by '.'. Facts are "head." and clauses are
// "head :- b1, b2, ...."; see original_source/etb/parser.py's
// fact/clause/inference_rule productions, restated here over our grammar.
func ParseRuleFile(text string) ([]*rulebase.Rule, error) {
	var rules []*rulebase.Rule
	for _, stmt := range splitStatements(text) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		r, err := ParseRuleStatement(stmt)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// ParseRuleStatement parses a single "head." or "head :- b1, b2." statement
// (without the trailing '.').
func ParseRuleStatement(stmt string) (*rulebase.Rule, error) {
	if idx := strings.Index(stmt, ":-"); idx >= 0 {
		headStr := strings.TrimSpace(stmt[:idx])
		bodyStr := strings.TrimSpace(stmt[idx+2:])
		head, err := ParseLiteral(headStr)
		if err != nil {
			return nil, err
		}
		bodyLits, err := splitLiterals(bodyStr)
		if err != nil {
			return nil, err
		}
		return rulebase.NewRule(head, bodyLits), nil
	}
	head, err := ParseLiteral(stmt)
	if err != nil {
		return nil, err
	}
	return rulebase.NewFact(head), nil
}

// splitStatements splits on '.' that are not inside quotes or parens.
func splitStatements(text string) []string {
	var out []string
	depth := 0
	inStr := false
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '"' && (i == 0 || text[i-1] != '\\'):
			inStr = !inStr
		case inStr:
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == '.' && depth == 0:
			out = append(out, text[start:i])
			start = i + 1
		}
	}
	if strings.TrimSpace(text[start:]) != "" {
		out = append(out, text[start:])
	}
	return out
}

// splitLiterals splits a comma-separated literal list at top level (commas
// nested inside literal argument lists are skipped).
func splitLiterals(text string) ([]*core.Literal, error) {
	var parts []string
	depth := 0
	inStr := false
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '"' && (i == 0 || text[i-1] != '\\'):
			inStr = !inStr
		case inStr:
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, text[start:i])
			start = i + 1
		}
	}
	parts = append(parts, text[start:])

	lits := make([]*core.Literal, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lit, err := ParseLiteral(p)
		if err != nil {
			return nil, err
		}
		lits = append(lits, lit)
	}
	return lits, nil
}
