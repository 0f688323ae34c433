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

// Package fabric implements the network fabric of §4.8: a peer table built
// by two-way handshake and transitive-closure merge, predicate-
// advertisement gossip, and tunnel address rewriting. This package knows
// nothing about the wire protocol; every outbound call goes through the
// Transport interface, implemented by the rpc client, keeping fabric free
// of a fabric <-> rpc import cycle (rpc's server handlers consult Peers
// too).
package fabric

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"etb/core"
	"etb/util"
)

// Peer is one entry in a node's peer table (§4.8: "{id, host, port,
// reachable-since, last-ping, advertised predicates}").
type Peer struct {
	Id             string
	Host           string
	Port           int
	ReachableSince time.Time
	LastPing       time.Time
	Reachable      bool
	Predicates     map[core.PredIndicator]bool
	Files          map[string]bool // sha1 -> advertised as held by this peer
}

// Address returns the peer's dial address in host:port form.
func (p *Peer) Address() string { return fmt.Sprintf("%s:%d", p.Host, p.Port) }

// PeerInfo is the wire shape of one peer-table row exchanged during a
// handshake or advertise_peers gossip (§4.8 step 1).
type PeerInfo struct {
	Id   string
	Host string
	Port int
}

// Transport issues the outbound half of the calls a peer table needs:
// handshake, predicate advertisement, health pings, and file transfer.
type Transport interface {
	Handshake(ctx context.Context, addr, selfId string) (peerId string, peers []PeerInfo, err error)
	AdvertisePredicates(ctx context.Context, addr, selfId string, predicates []core.PredIndicator) error
	Ping(ctx context.Context, addr string) error
	FetchFile(ctx context.Context, addr string, ref *core.Term) (io.ReadCloser, error)
}

// Peers is a node's peer table, grown by two-way handshake and
// transitive-closure merge (§4.8).
type Peers struct {
	mu   sync.RWMutex
	self string
	byId map[string]*Peer

	Transport Transport
	Rewriter  *Rewriter
}

// NewPeers returns an empty peer table for a node identified by selfId.
func NewPeers(selfId string, transport Transport) *Peers {
	return &Peers{
		self:      selfId,
		byId:      map[string]*Peer{},
		Transport: transport,
		Rewriter:  NewRewriter(),
	}
}

// Connect performs the two-way handshake of §4.8 step 1 against host:port,
// merges the peer's table into this one (transitive closure), and then
// symmetrically contacts every newly-learned peer per step 2.
func (p *Peers) Connect(ctx context.Context, host string, port int) error {
	addr := p.Rewriter.RewriteOutbound(fmt.Sprintf("%s:%d", host, port))
	peerId, remoteTable, err := p.Transport.Handshake(ctx, addr, p.self)
	if err != nil {
		return err
	}

	p.addOrUpdate(&Peer{
		Id: peerId, Host: host, Port: port,
		Reachable: true, ReachableSince: time.Now(), LastPing: time.Now(),
		Predicates: map[core.PredIndicator]bool{},
		Files:      map[string]bool{},
	})

	for _, info := range p.merge(remoteTable) {
		if info.Id == p.self {
			continue
		}
		go func(info PeerInfo) {
			if err := p.Connect(ctx, info.Host, info.Port); err != nil {
				util.Logf("fabric: symmetric connect to %s (%s:%d) failed: %s", info.Id, info.Host, info.Port, err)
			}
		}(info)
	}
	return nil
}

// ReceiveHandshake admits the inbound side of §4.8 step 1: a peer that has
// just dialed this node is recorded as reachable, so the merge this node
// will shortly answer with (and the symmetric re-Connect the caller
// performs) has a row to build on.
func (p *Peers) ReceiveHandshake(peerId, host string, port int) {
	p.addOrUpdate(&Peer{
		Id: peerId, Host: host, Port: port,
		Reachable: true, ReachableSince: time.Now(), LastPing: time.Now(),
		Predicates: map[core.PredIndicator]bool{},
		Files:      map[string]bool{},
	})
}

// merge folds remote's rows into this table (§4.8 "transitive closure --
// this yields a fully connected fabric"), returning the rows that were new.
func (p *Peers) merge(remote []PeerInfo) []PeerInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	var fresh []PeerInfo
	for _, info := range remote {
		if info.Id == p.self {
			continue
		}
		if _, have := p.byId[info.Id]; have {
			continue
		}
		p.byId[info.Id] = &Peer{
			Id: info.Id, Host: info.Host, Port: info.Port,
			Predicates: map[core.PredIndicator]bool{},
			Files:      map[string]bool{},
		}
		fresh = append(fresh, info)
	}
	return fresh
}

func (p *Peers) addOrUpdate(peer *Peer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, have := p.byId[peer.Id]; have {
		existing.Host, existing.Port = peer.Host, peer.Port
		existing.Reachable = true
		existing.LastPing = time.Now()
		return
	}
	p.byId[peer.Id] = peer
}

// Table returns the wire shape of this node's own peer table, for
// advertise_peers gossip and the handshake response.
func (p *Peers) Table() []PeerInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	acc := make([]PeerInfo, 0, len(p.byId))
	for _, peer := range p.byId {
		acc = append(acc, PeerInfo{Id: peer.Id, Host: peer.Host, Port: peer.Port})
	}
	return acc
}

// List returns a snapshot of every known peer.
func (p *Peers) List() []*Peer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	acc := make([]*Peer, 0, len(p.byId))
	for _, peer := range p.byId {
		acc = append(acc, peer)
	}
	return acc
}

// ReceiveAdvertisement records predicates as peerId's current advertised set,
// called by the rpc server on an inbound advertise_peers/advertise call
// (§4.8 step 3).
func (p *Peers) ReceiveAdvertisement(peerId string, predicates []core.PredIndicator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	peer, have := p.byId[peerId]
	if !have {
		return
	}
	peer.Predicates = make(map[core.PredIndicator]bool, len(predicates))
	for _, pi := range predicates {
		peer.Predicates[pi] = true
	}
}

// RecordFileHolder notes that peerId has answered for (or is now known to
// hold) the blob with the given sha1, feeding PeerIds for future fetches.
func (p *Peers) RecordFileHolder(peerId, sha1 string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	peer, have := p.byId[peerId]
	if !have {
		return
	}
	if peer.Files == nil {
		peer.Files = map[string]bool{}
	}
	peer.Files[sha1] = true
}

// Offers reports whether some reachable peer advertises pi, implementing
// the requester side of scheduler.PeerTable (§4.5).
func (p *Peers) Offers(pi core.PredIndicator) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, peer := range p.byId {
		if peer.Reachable && peer.Predicates[pi] {
			return peer.Id, true
		}
	}
	return "", false
}

// PeerIds returns the ids of peers advertised as holding ref's blob,
// implementing filestore.PeerSource's discovery half (§4.7).
func (p *Peers) PeerIds(ref *core.Term) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sha1 := ref.FileSHA1()
	var acc []string
	for _, peer := range p.byId {
		if peer.Reachable && peer.Files[sha1] {
			acc = append(acc, peer.Id)
		}
	}
	return acc
}

// FetchFrom streams ref's blob from peerId, implementing filestore.
// PeerSource's transfer half (§4.7).
func (p *Peers) FetchFrom(ctx context.Context, peerId string, ref *core.Term) (io.ReadCloser, error) {
	p.mu.RLock()
	peer, have := p.byId[peerId]
	p.mu.RUnlock()
	if !have {
		return nil, fmt.Errorf("fabric: unknown peer %q", peerId)
	}
	addr := p.Rewriter.RewriteOutbound(peer.Address())
	return p.Transport.FetchFile(ctx, addr, ref)
}

// MarkUnreachable marks peerId unreachable, implementing scheduler.
// PeerTable's failure-recording half (§7: "a recoverable event in the peer
// table").
func (p *Peers) MarkUnreachable(peerId string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if peer, have := p.byId[peerId]; have {
		peer.Reachable = false
	}
}

func (p *Peers) markReachable(peerId string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if peer, have := p.byId[peerId]; have {
		if !peer.Reachable {
			peer.ReachableSince = time.Now()
		}
		peer.Reachable = true
		peer.LastPing = time.Now()
	}
}
