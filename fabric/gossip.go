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

package fabric

import (
	"context"
	"time"

	"github.com/gorhill/cronexpr"

	"etb/core"
	"etb/util"
)

// RunGossipSweep periodically pings every known peer and re-advertises this
// node's current predicate set, on the schedule described by cronSpec
// (a gorhill/cronexpr expression, which may carry a leading seconds field
// as the default "*/10 * * * * *" does). §4.8 gossips "on membership
// change"; this generalizes that to a steady heartbeat so a peer that
// missed a change still converges, and so LastPing/Reachable stay current
// for the scheduler's unreachable-marking (§7). Runs until ctx is done.
func (p *Peers) RunGossipSweep(ctx context.Context, cronSpec string, predicates func() []core.PredIndicator) error {
	expr, err := cronexpr.Parse(cronSpec)
	if err != nil {
		return err
	}
	for {
		wait := time.Until(expr.Next(time.Now()))
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		p.sweepOnce(ctx, predicates())
	}
}

func (p *Peers) sweepOnce(ctx context.Context, predicates []core.PredIndicator) {
	if p.Transport == nil {
		return
	}
	for _, peer := range p.List() {
		addr := p.Rewriter.RewriteOutbound(peer.Address())
		if err := p.Transport.Ping(ctx, addr); err != nil {
			util.Logf("fabric: ping to %s (%s) failed: %s", peer.Id, addr, err)
			p.MarkUnreachable(peer.Id)
			continue
		}
		p.markReachable(peer.Id)
		if err := p.Transport.AdvertisePredicates(ctx, addr, p.self, predicates); err != nil {
			util.Logf("fabric: advertise to %s (%s) failed: %s", peer.Id, addr, err)
		}
	}
}
