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
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Rewriter implements §4.8's "Tunnels": a table consulted immediately
// before every outbound call (to redirect a peer's advertised port to a
// local relay port). It also records the relay's remote port, reported by
// SelfAdvertisedPort; inbound handshakes and advertisements do not consult
// the Rewriter, so the address this node announces to peers is not
// rewritten.
type Rewriter struct {
	mu sync.RWMutex

	// outboundByPort maps a peer's advertised port to the localPort this
	// node should dial instead.
	outboundByPort map[int]int

	// selfRemotePort, if set by the most recent Tunnel call, overrides the
	// port this node advertises itself as reachable on.
	selfRemotePort int
}

// NewRewriter returns a Rewriter with no tunnels installed.
func NewRewriter() *Rewriter {
	return &Rewriter{outboundByPort: map[int]int{}}
}

// Tunnel installs a pair of address-rewriting rules (§4.8): outbound calls
// that would otherwise dial remotePort are redirected to localPort, and
// SelfAdvertisedPort begins reporting remotePort.
func (r *Rewriter) Tunnel(localPort, remotePort int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outboundByPort[remotePort] = localPort
	r.selfRemotePort = remotePort
}

// RewriteOutbound rewrites a "host:port" dial address through any
// installed tunnel for that port, leaving addr untouched if none applies.
func (r *Rewriter) RewriteOutbound(addr string) string {
	host, portStr, ok := splitHostPort(addr)
	if !ok {
		return addr
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return addr
	}
	r.mu.RLock()
	local, tunneled := r.outboundByPort[port]
	r.mu.RUnlock()
	if !tunneled {
		return addr
	}
	return fmt.Sprintf("%s:%d", host, local)
}

// SelfAdvertisedPort returns the port this node should advertise itself as
// reachable on, honoring the most recently installed tunnel's remotePort.
func (r *Rewriter) SelfAdvertisedPort(actualPort int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.selfRemotePort != 0 {
		return r.selfRemotePort
	}
	return actualPort
}

func splitHostPort(addr string) (host, port string, ok bool) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return "", "", false
	}
	return addr[:i], addr[i+1:], true
}
