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

package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"etb/claims"
	"etb/core"
	"etb/engine"
	"etb/fabric"
	"etb/filestore"
	"etb/parser"
	"etb/rulebase"
	"etb/scheduler"
	"etb/util"
	"etb/wrapper"
)

// pendingRemote tracks one outstanding remote_query this node issued as a
// requester, fulfilled by inbound DeliverAnswer/Closed calls from the
// provider (§4.5 steps 2-3). Shared between Service (which receives those
// inbound calls) and Client (which registers the entry before dialing out),
// since on one node both faces of the peer protocol share the same process.
type pendingRemote struct {
	onAnswer func(core.Subst, string)
	closed   chan struct{}
}

// Service implements the remote surface of §4.9, uniform for clients and
// peers (peer-only operations are simply additional exported methods; this
// node trusts its fabric to have only connected to intended peers, per §1's
// "no security model beyond reachability" non-goal). Every method follows
// gorilla/rpc's calling convention: (r *http.Request, args *ArgsT, reply
// *ReplyT) error.
type Service struct {
	Engine    *engine.Engine
	Scheduler *scheduler.Scheduler
	Claims    *claims.Table
	Rules     *rulebase.Index
	Wrappers  *wrapper.Registry
	Files     *filestore.Store
	Peers     *fabric.Peers

	SelfId   string
	SelfHost string
	SelfPort int

	WaitPoll time.Duration

	pendingMu sync.Mutex
	pending   map[string]*pendingRemote
}

// NewService returns a Service with its peer-correlation registry ready.
func NewService(selfId, selfHost string, selfPort int) *Service {
	return &Service{
		SelfId:   selfId,
		SelfHost: selfHost,
		SelfPort: selfPort,
		WaitPoll: 20 * time.Millisecond,
		pending:  map[string]*pendingRemote{},
	}
}

// --- Client-facing operations (§4.9) -----------------------------------

type PutFileArgs struct {
	DestPath string
	Body     string // base64, per §6
}

type PutFileReply struct {
	FileRef interface{}
}

func (s *Service) PutFile(r *http.Request, args *PutFileArgs, reply *PutFileReply) error {
	body, err := base64.StdEncoding.DecodeString(args.Body)
	if err != nil {
		return fmt.Errorf("rpc: put_file: decoding body: %w", err)
	}
	ref, err := s.Files.Put(args.DestPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	reply.FileRef = TermToJSON(ref)
	return nil
}

type GetFileArgs struct {
	FileRef interface{}
}

type GetFileReply struct {
	Body string
}

func (s *Service) GetFile(r *http.Request, args *GetFileArgs, reply *GetFileReply) error {
	ref, err := TermFromJSON(args.FileRef)
	if err != nil {
		return err
	}
	body, err := s.Files.ReadAll(ref)
	if err != nil {
		return err
	}
	reply.Body = base64.StdEncoding.EncodeToString(body)
	return nil
}

type LsArgs struct {
	Dir string
}

type LsReply struct {
	Dirs, InSync, Outdated, Untracked []string
}

func (s *Service) Ls(r *http.Request, args *LsArgs, reply *LsReply) error {
	l, err := s.Files.Ls(args.Dir)
	if err != nil {
		return err
	}
	reply.Dirs, reply.InSync, reply.Outdated, reply.Untracked = l.Dirs, l.InSync, l.Outdated, l.Untracked
	return nil
}

type QueryArgs struct {
	Goal string
}

type QueryReply struct {
	QueryId string
}

// Query admits args.Goal (in goal-string grammar, §6) as a fresh root goal,
// minting a client-visible query id distinct from the goal's own content
// hash (§3: "Query. A client-visible identity for a root goal"), since two
// clients querying the identical goal must be able to cancel independently.
func (s *Service) Query(r *http.Request, args *QueryArgs, reply *QueryReply) error {
	lit, err := parser.ParseLiteral(args.Goal)
	if err != nil {
		return err
	}
	queryId := uuid.NewString()
	s.Scheduler.Submit(context.Background(), s.Engine, lit, queryId)
	reply.QueryId = queryId
	return nil
}

type QueryWaitArgs struct {
	QueryId string
}

type QueryWaitReply struct{}

func (s *Service) QueryWait(r *http.Request, args *QueryWaitArgs, reply *QueryWaitReply) error {
	return s.Scheduler.WaitQuiescent(r.Context(), args.QueryId, s.WaitPoll)
}

type QueryDoneArgs struct {
	QueryId string
}

type QueryDoneReply struct {
	Done bool
}

func (s *Service) QueryDone(r *http.Request, args *QueryDoneArgs, reply *QueryDoneReply) error {
	reply.Done = s.Scheduler.Quiescent(args.QueryId)
	return nil
}

type QueryAnswersArgs struct {
	QueryId string
}

type QueryAnswersReply struct {
	Substitutions []interface{}
}

func (s *Service) QueryAnswers(r *http.Request, args *QueryAnswersArgs, reply *QueryAnswersReply) error {
	root, ok := s.Scheduler.Root(args.QueryId)
	if !ok {
		return &core.UnknownQuery{QueryId: args.QueryId}
	}
	for _, a := range root.Answers() {
		reply.Substitutions = append(reply.Substitutions, SubstToJSON(a))
	}
	return nil
}

type QueryClaimsArgs struct {
	QueryId string
}

type QueryClaimsReply struct {
	Claims []interface{}
}

func (s *Service) QueryClaims(r *http.Request, args *QueryClaimsArgs, reply *QueryClaimsReply) error {
	for _, c := range s.Claims.ByQuery(args.QueryId) {
		reply.Claims = append(reply.Claims, ClaimToJSON(c))
	}
	return nil
}

type GetAllClaimsArgs struct{}

type GetAllClaimsReply struct {
	Claims []interface{}
}

func (s *Service) GetAllClaims(r *http.Request, args *GetAllClaimsArgs, reply *GetAllClaimsReply) error {
	for _, c := range s.Claims.All() {
		reply.Claims = append(reply.Claims, ClaimToJSON(c))
	}
	return nil
}

type ActiveQueriesArgs struct{}

type ActiveQueriesReply struct {
	QueryIds []string
}

func (s *Service) ActiveQueries(r *http.Request, args *ActiveQueriesArgs, reply *ActiveQueriesReply) error {
	reply.QueryIds = s.Scheduler.ActiveQueries()
	return nil
}

type DoneQueriesArgs struct{}

type DoneQueriesReply struct {
	QueryIds []string
}

func (s *Service) DoneQueries(r *http.Request, args *DoneQueriesArgs, reply *DoneQueriesReply) error {
	reply.QueryIds = s.Scheduler.DoneQueries()
	return nil
}

type ConnectArgs struct {
	Host string
	Port int
}

type ConnectReply struct{}

func (s *Service) Connect(r *http.Request, args *ConnectArgs, reply *ConnectReply) error {
	return s.Peers.Connect(r.Context(), args.Host, args.Port)
}

type TunnelArgs struct {
	LocalPort, RemotePort int
}

type TunnelReply struct{}

func (s *Service) Tunnel(r *http.Request, args *TunnelArgs, reply *TunnelReply) error {
	s.Peers.Rewriter.Tunnel(args.LocalPort, args.RemotePort)
	return nil
}

// --- Peer-only operations (§4.8, §4.9) ----------------------------------

type HandshakeArgs struct {
	PeerId string
	Host   string
	Port   int
}

type HandshakeReply struct {
	PeerId string
	Peers  []fabric.PeerInfo
}

// Handshake admits the calling peer and returns this node's own id plus
// its current peer table, the two-way exchange of §4.8 step 1. Not named
// individually in §4.9's abbreviated surface listing (which folds the
// handshake into "connect"), but required as its own peer-to-peer call
// since "connect" is the client-facing op that triggers an outbound dial,
// while Handshake is what the dialed side answers with.
func (s *Service) Handshake(r *http.Request, args *HandshakeArgs, reply *HandshakeReply) error {
	s.Peers.ReceiveHandshake(args.PeerId, args.Host, args.Port)
	reply.PeerId = s.SelfId
	reply.Peers = s.Peers.Table()
	return nil
}

type PingArgs struct{}
type PingReply struct{}

func (s *Service) Ping(r *http.Request, args *PingArgs, reply *PingReply) error {
	return nil
}

type OffersArgs struct {
	Symbol string
	Arity  int
}

type OffersReply struct {
	Offer bool
}

func (s *Service) Offers(r *http.Request, args *OffersArgs, reply *OffersReply) error {
	pi := core.PredIndicator{Symbol: args.Symbol, Arity: args.Arity}
	reply.Offer = s.Rules.HasPredicate(pi) || s.Wrappers.Has(pi)
	return nil
}

// AdvertisePeersArgs carries a peer's current predicate advertisement set
// (§4.8's gossip payload); named advertise_peers by §4.9's abbreviated
// surface listing even though its content is predicates rather than peers --
// kept as named there.
type AdvertisePeersArgs struct {
	PeerId     string
	Predicates []string // "symbol/arity" strings
}

type AdvertisePeersReply struct{}

func (s *Service) AdvertisePeers(r *http.Request, args *AdvertisePeersArgs, reply *AdvertisePeersReply) error {
	pis := make([]core.PredIndicator, 0, len(args.Predicates))
	for _, p := range args.Predicates {
		pi, err := parsePredIndicator(p)
		if err != nil {
			return err
		}
		pis = append(pis, pi)
	}
	s.Peers.ReceiveAdvertisement(args.PeerId, pis)
	return nil
}

type RemoteQueryArgs struct {
	Literal       string
	CorrelationId string
	RequesterId   string
}

type RemoteQueryReply struct{}

// RemoteQuery admits args.Literal as a local root goal (§4.5 step 2),
// streaming every answer back to the requester via deliver_answer and
// announcing closed once the goal's subtree is quiescent.
func (s *Service) RemoteQuery(r *http.Request, args *RemoteQueryArgs, reply *RemoteQueryReply) error {
	lit, err := parser.ParseLiteral(args.Literal)
	if err != nil {
		return err
	}
	queryId := "remote:" + args.CorrelationId
	root := s.Scheduler.Submit(context.Background(), s.Engine, lit, queryId)

	client := s.clientFor(args.RequesterId)
	root.Subscribe(func(subst core.Subst, c *claims.Claim) {
		digest := ""
		if c != nil {
			digest = c.EdgeDigest
		}
		if client != nil {
			if err := client.DeliverAnswer(context.Background(), args.CorrelationId, subst, digest); err != nil {
				util.Logf("rpc: deliver_answer to %s failed: %s", args.RequesterId, err)
			}
		}
	})
	go func() {
		ctx := context.Background()
		_ = s.Scheduler.WaitQuiescent(ctx, queryId, s.WaitPoll)
		if client != nil {
			if err := client.Closed(ctx, args.CorrelationId); err != nil {
				util.Logf("rpc: closed to %s failed: %s", args.RequesterId, err)
			}
		}
	}()
	return nil
}

type DeliverAnswerArgs struct {
	CorrelationId string
	Subst         interface{}
	ClaimDigest   string
}

type DeliverAnswerReply struct{}

func (s *Service) DeliverAnswer(r *http.Request, args *DeliverAnswerArgs, reply *DeliverAnswerReply) error {
	subst, err := SubstFromJSON(args.Subst)
	if err != nil {
		return err
	}
	s.pendingMu.Lock()
	p, ok := s.pending[args.CorrelationId]
	s.pendingMu.Unlock()
	if !ok {
		return nil // closed or unknown correlation; nothing to feed
	}
	p.onAnswer(subst, args.ClaimDigest)
	return nil
}

type ClosedArgs struct {
	CorrelationId string
}

type ClosedReply struct{}

func (s *Service) Closed(r *http.Request, args *ClosedArgs, reply *ClosedReply) error {
	s.pendingMu.Lock()
	p, ok := s.pending[args.CorrelationId]
	delete(s.pending, args.CorrelationId)
	s.pendingMu.Unlock()
	if ok {
		close(p.closed)
	}
	return nil
}

// register installs a pending correlation before Client.RemoteQuery dials
// out, so an inbound DeliverAnswer/Closed racing the outbound call is never
// missed.
func (s *Service) register(correlationId string, onAnswer func(core.Subst, string)) *pendingRemote {
	p := &pendingRemote{onAnswer: onAnswer, closed: make(chan struct{})}
	s.pendingMu.Lock()
	s.pending[correlationId] = p
	s.pendingMu.Unlock()
	return p
}

func (s *Service) forget(correlationId string) {
	s.pendingMu.Lock()
	delete(s.pending, correlationId)
	s.pendingMu.Unlock()
}

// clientFor dials the given peer id's advertised address, or nil if the
// peer is unknown.
func (s *Service) clientFor(peerId string) *Client {
	for _, p := range s.Peers.List() {
		if p.Id == peerId {
			return NewClient(p.Address(), s.Peers.Rewriter)
		}
	}
	return nil
}

func parsePredIndicator(s string) (core.PredIndicator, error) {
	var symbol string
	var arity int
	if n, err := fmt.Sscanf(s, "%[^/]/%d", &symbol, &arity); n != 2 || err != nil {
		return core.PredIndicator{}, fmt.Errorf("rpc: malformed predicate indicator %q", s)
	}
	return core.PredIndicator{Symbol: symbol, Arity: arity}, nil
}
