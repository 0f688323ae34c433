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

import "fmt"

// These are the typed errors a caller might want to distinguish by type
// rather than by matching a message string, following errors.go's own
// convention of one struct per distinguishable failure.

// UnknownPredicate occurs when a goal's predicate has no matching rule,
// wrapper, or fabric peer able to resolve it (§4.4 step 5, §7).
type UnknownPredicate struct {
	Predicate PredIndicator
}

func (e *UnknownPredicate) Error() string {
	return `predicate "` + e.Predicate.String() + `" is not known to any rule, wrapper, or peer`
}

// ModeViolation occurs when a wrapper literal's argument doesn't satisfy
// its signature's mode (+, -, either) at dispatch time (§4.3, §7).
type ModeViolation struct {
	Predicate PredIndicator
	ArgIndex  int
}

func (e *ModeViolation) Error() string {
	return fmt.Sprintf(`mode violation for "%s" at argument %d`, e.Predicate, e.ArgIndex)
}

// FileIntegrityError occurs when a transferred blob's recomputed hash
// doesn't match a file reference's expected digest (§4.7, §7).
type FileIntegrityError struct {
	Expected, Got string
}

func (e *FileIntegrityError) Error() string {
	return `file integrity mismatch: expected sha1 "` + e.Expected + `", got "` + e.Got + `"`
}

// UnknownQuery occurs when a client names a query id the node has never
// registered, or one already cancelled and forgotten (§4.9).
type UnknownQuery struct {
	QueryId string
}

func (e *UnknownQuery) Error() string {
	return `query "` + e.QueryId + `" is not known to this node`
}
