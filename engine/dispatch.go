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
	"context"

	"etb/core"
)

// Dispatcher runs a unit of work attributed to a goal, for the worker-pool
// and quiescence accounting owned by the scheduler package (§4.5: "A work
// queue of tasks"). The engine never spawns its own goroutines directly; it
// hands every rule expansion, wrapper invocation, and delegation attempt to
// the Dispatcher, which is free to bound concurrency however it likes.
type Dispatcher interface {
	Go(ctx context.Context, g *Goal, fn func(ctx context.Context))
}

// InlineDispatcher runs each task on its own unmanaged goroutine, tracking
// only the per-goal pending count. Useful for engine self-tests and for
// single-node deployments that don't need the scheduler's bounded pool.
type InlineDispatcher struct{}

func (InlineDispatcher) Go(ctx context.Context, g *Goal, fn func(ctx context.Context)) {
	g.EnterPending()
	go func() {
		defer g.LeavePending()
		fn(ctx)
	}()
}

// Delegate offers remote-peer lookup and delegation for predicates this node
// cannot resolve locally (§4.4 step 5, §4.5's remote delegation protocol).
// Implemented by the scheduler/fabric glue in the node package.
type Delegate interface {
	// Offers reports whether some peer advertises pi, and if so which one.
	Offers(ctx context.Context, pi core.PredIndicator) (peerId string, ok bool)
	// Delegate admits g's literal as a remote_query on peerId and arranges
	// for deliver_answer/closed callbacks to feed g.AddAnswer and eventually
	// mark g resolved. Blocks the calling task until the remote goal closes
	// or ctx is done.
	Delegate(ctx context.Context, peerId string, g *Goal) error
}
