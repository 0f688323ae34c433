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

package node

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"etb/rpc"
	"etb/util"
)

// feedSnapshot is one message pushed down the introspection feed: a
// point-in-time summary of the node's goal/query/claim state, replacing the
// teacher's stdout-bound Emitted/Processing/Errors monitor channels
// (cmd/mcrew/main.go's monitor()) with a wire-visible equivalent (SPEC_FULL
// §2's domain-stack entry for gorilla/websocket).
type feedSnapshot struct {
	Time          time.Time `json:"time"`
	ActiveQueries []string  `json:"active_queries"`
	DoneQueries   []string  `json:"done_queries"`
	GoalCount     int       `json:"goal_count"`
	ClaimCount    int       `json:"claim_count"`
	ErrorCount    int       `json:"error_count"`
	PeerCount     int       `json:"peer_count"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// feedHandler upgrades to a websocket connection and pushes a feedSnapshot
// once per second until the client disconnects or the server shuts down.
func feedHandler(n *Node) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			util.Logf("node: feed upgrade failed: %s", err)
			return
		}
		defer conn.Close()

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		// A read pump is required so the connection notices client-initiated
		// closes promptly (gorilla/websocket's documented pattern); this feed
		// is push-only, so any inbound message is simply discarded.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case <-ticker.C:
				snap := feedSnapshot{
					Time:          time.Now(),
					ActiveQueries: n.Scheduler.ActiveQueries(),
					DoneQueries:   n.Scheduler.DoneQueries(),
					GoalCount:     n.Engine.Table.Size(),
					ClaimCount:    n.Claims.Count(),
					ErrorCount:    len(n.Claims.Errors()),
					PeerCount:     len(n.Peers.List()),
				}
				buf, err := json.Marshal(snap)
				if err != nil {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, buf); err != nil {
					return
				}
			}
		}
	}
}

// NewMux builds the node's HTTP surface: the XML-RPC remote surface (§4.9)
// at /RPC2, matching the path rpc.Client dials, plus the introspection feed
// at /_feed.
func NewMux(n *Node) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/RPC2", rpc.NewHandler(n.Service))
	mux.HandleFunc("/_feed", feedHandler(n))
	return mux
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
