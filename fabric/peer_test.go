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
	"errors"
	"io"
	"testing"

	"etb/core"
)

type fakeTransport struct {
	handshakeResponses map[string][]PeerInfo // addr -> remote peer table to return
	handshakeIds       map[string]string      // addr -> peer id to return
	pingErr            map[string]error
	advertised         map[string][]core.PredIndicator
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		handshakeResponses: map[string][]PeerInfo{},
		handshakeIds:       map[string]string{},
		pingErr:            map[string]error{},
		advertised:         map[string][]core.PredIndicator{},
	}
}

func (f *fakeTransport) Handshake(ctx context.Context, addr, selfId string) (string, []PeerInfo, error) {
	id, ok := f.handshakeIds[addr]
	if !ok {
		return "", nil, errors.New("no such peer: " + addr)
	}
	return id, f.handshakeResponses[addr], nil
}

func (f *fakeTransport) AdvertisePredicates(ctx context.Context, addr, selfId string, predicates []core.PredIndicator) error {
	f.advertised[addr] = predicates
	return nil
}

func (f *fakeTransport) Ping(ctx context.Context, addr string) error {
	return f.pingErr[addr]
}

func (f *fakeTransport) FetchFile(ctx context.Context, addr string, ref *core.Term) (io.ReadCloser, error) {
	return nil, errors.New("not implemented in fake")
}

func TestConnectHandshakeAddsPeer(t *testing.T) {
	transport := newFakeTransport()
	transport.handshakeIds["10.0.0.2:9000"] = "peer-b"

	peers := NewPeers("peer-a", transport)
	if err := peers.Connect(context.Background(), "10.0.0.2", 9000); err != nil {
		t.Fatalf("Connect: %s", err)
	}

	list := peers.List()
	if len(list) != 1 || list[0].Id != "peer-b" {
		t.Fatalf("List() = %+v, want a single peer-b entry", list)
	}
	if !list[0].Reachable {
		t.Fatalf("expected newly connected peer to be marked reachable")
	}
}

func TestConnectMergesTransitivelyAndContactsNewPeers(t *testing.T) {
	transport := newFakeTransport()
	transport.handshakeIds["host-b:9000"] = "peer-b"
	transport.handshakeResponses["host-b:9000"] = []PeerInfo{{Id: "peer-c", Host: "host-c", Port: 9001}}
	transport.handshakeIds["host-c:9001"] = "peer-c"

	peers := NewPeers("peer-a", transport)
	if err := peers.Connect(context.Background(), "host-b", 9000); err != nil {
		t.Fatalf("Connect: %s", err)
	}

	// The symmetric contact with peer-c happens on its own goroutine;
	// Connect itself only needs to have learned about peer-c via merge.
	found := false
	for _, p := range peers.List() {
		if p.Id == "peer-c" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected peer-c to be learned via transitive-closure merge")
	}
}

func TestOffersReportsOnlyReachablePeersWithThePredicate(t *testing.T) {
	peers := NewPeers("peer-a", newFakeTransport())
	peers.addOrUpdate(&Peer{Id: "peer-b", Reachable: true, Predicates: map[core.PredIndicator]bool{
		{Symbol: "in_range", Arity: 3}: true,
	}})
	peers.addOrUpdate(&Peer{Id: "peer-c", Reachable: false, Predicates: map[core.PredIndicator]bool{
		{Symbol: "ping", Arity: 1}: true,
	}})

	if id, ok := peers.Offers(core.PredIndicator{Symbol: "in_range", Arity: 3}); !ok || id != "peer-b" {
		t.Fatalf("Offers(in_range/3) = %q, %v; want peer-b, true", id, ok)
	}
	if _, ok := peers.Offers(core.PredIndicator{Symbol: "ping", Arity: 1}); ok {
		t.Fatalf("Offers(ping/1) = true for an unreachable peer, want false")
	}
	if _, ok := peers.Offers(core.PredIndicator{Symbol: "nope", Arity: 0}); ok {
		t.Fatalf("Offers(nope/0) = true, want false")
	}
}

func TestReceiveAdvertisementReplacesPredicateSet(t *testing.T) {
	peers := NewPeers("peer-a", newFakeTransport())
	peers.addOrUpdate(&Peer{Id: "peer-b", Reachable: true, Predicates: map[core.PredIndicator]bool{}})

	peers.ReceiveAdvertisement("peer-b", []core.PredIndicator{{Symbol: "comp", Arity: 1}})
	if _, ok := peers.Offers(core.PredIndicator{Symbol: "comp", Arity: 1}); !ok {
		t.Fatalf("expected comp/1 to be offered after ReceiveAdvertisement")
	}

	peers.ReceiveAdvertisement("peer-b", []core.PredIndicator{{Symbol: "verycomposite", Arity: 2}})
	if _, ok := peers.Offers(core.PredIndicator{Symbol: "comp", Arity: 1}); ok {
		t.Fatalf("expected comp/1 advertisement to be replaced, not merged")
	}
}

func TestPeerIdsAndMarkUnreachable(t *testing.T) {
	peers := NewPeers("peer-a", newFakeTransport())
	peers.addOrUpdate(&Peer{Id: "peer-b", Reachable: true, Files: map[string]bool{}})
	peers.RecordFileHolder("peer-b", "deadbeef")

	ref := core.FileRef("/tmp/x", "deadbeef")
	ids := peers.PeerIds(ref)
	if len(ids) != 1 || ids[0] != "peer-b" {
		t.Fatalf("PeerIds() = %v, want [peer-b]", ids)
	}

	peers.MarkUnreachable("peer-b")
	if ids := peers.PeerIds(ref); len(ids) != 0 {
		t.Fatalf("PeerIds() after MarkUnreachable = %v, want empty", ids)
	}
}
