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

// Command etbsh is a thin, non-interactive companion to etbd: it drives the
// remote surface (§4.9) from a script, one literal per line, optionally
// binding a name to a query's answers with "name = literal" (§6's
// goal-string grammar). The interactive REPL, its expression language, and
// everything else §1 scopes to "the interactive command shell" are out of
// scope here (SPEC_FULL §4) -- this is the daemon/companion-CLI split the
// teacher uses throughout its cmd/ tree (e.g. cmd/mcrew plus cmd/mexpect),
// generalized to one thin script runner.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"etb/core"
	"etb/parser"
	"etb/rpc"
)

// renderSubst formats a substitution as "X=foo, Y=3", in a stable key order,
// for the script runner's stdout -- etbsh has no expression language to
// hand these values back into (SPEC_FULL §4), so printing is all it does.
func renderSubst(s core.Subst) string {
	keys := s.SortedKeys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, s[k].String())
	}
	return strings.Join(parts, ", ")
}

var bindingRE = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.+)$`)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("etbsh", flag.ContinueOnError)
	host := fs.String("host", "127.0.0.1", "daemon host")
	port := fs.Int("port", 9090, "daemon port")
	_ = fs.Bool("batch", true, "run non-interactively (always true; etbsh has no REPL)")
	timeout := fs.Duration("timeout", 30*time.Second, "per-query wait timeout")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "etbsh: %s\n", err)
		return 1
	}

	var in io.Reader = os.Stdin
	if args := fs.Args(); len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "etbsh: %s\n", err)
			return 1
		}
		defer f.Close()
		in = f
	}

	client := rpc.NewClient(fmt.Sprintf("%s:%d", *host, *port), nil)
	bindings := map[string][]string{}

	scanner := bufio.NewScanner(in)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		name, goalStr := "", line
		if m := bindingRE.FindStringSubmatch(line); m != nil {
			name, goalStr = m[1], m[2]
		}

		if _, err := parser.ParseLiteral(goalStr); err != nil {
			fmt.Fprintf(os.Stderr, "etbsh: line %d: %s\n", lineNo, err)
			return 1
		}

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		queryId, err := client.Query(ctx, goalStr)
		if err != nil {
			cancel()
			fmt.Fprintf(os.Stderr, "etbsh: line %d: query: %s\n", lineNo, err)
			return 1
		}
		if err := client.QueryWait(ctx, queryId); err != nil {
			cancel()
			fmt.Fprintf(os.Stderr, "etbsh: line %d: query_wait: %s\n", lineNo, err)
			return 1
		}
		answers, err := client.QueryAnswers(ctx, queryId)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "etbsh: line %d: query_answers: %s\n", lineNo, err)
			return 1
		}

		rendered := make([]string, len(answers))
		for i, a := range answers {
			rendered[i] = renderSubst(a)
		}
		if name != "" {
			bindings[name] = rendered
			fmt.Printf("%s = %s\n", name, strings.Join(rendered, " | "))
		} else {
			fmt.Printf("%s => %s\n", goalStr, strings.Join(rendered, " | "))
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "etbsh: reading script: %s\n", err)
		return 1
	}
	return 0
}
