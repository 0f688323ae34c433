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

package engine

import (
	"etb/claims"
	"etb/core"
)

// IsEntailed reports whether lit is already a proven ground fact in the
// claims table, mirroring original_source/etb/datalog/inference.py's
// is_entailed: a shortcut supplementing §4.4 step 1's tabling for the
// common "goal is already a proven ground fact" case, so a repeat query for
// a ground literal that already has a claim is answered from that claim
// without evaluating the literal again (Resolve still records a resolved
// goal for it).
func (e *Engine) IsEntailed(lit *core.Literal) (*claims.Claim, bool) {
	if !lit.Ground() {
		return nil, false
	}
	cs := e.Claims.ByLiteral(lit)
	if len(cs) == 0 {
		return nil, false
	}
	return cs[0], true
}
