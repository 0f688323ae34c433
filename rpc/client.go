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
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/divan/gorilla-xmlrpc/xml"
	"golang.org/x/net/http2"

	"etb/claims"
	"etb/core"
	"etb/fabric"
	"etb/util"
)

// sharedTransport is tuned once for every peer-to-peer call this node
// makes: modest idle-connection keep-alive, since a node typically talks
// to the same handful of fabric peers repeatedly, with HTTP/2 layered on
// by golang.org/x/net/http2 (a teacher dependency, reached transitively by
// gorilla/websocket, given a direct role here instead).
var sharedTransport = newTransport()

func newTransport() *http.Transport {
	t := &http.Transport{
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	}
	if err := http2.ConfigureTransport(t); err != nil {
		util.Logf("rpc: enabling http2 for peer transport: %s", err)
	}
	return t
}

// Client is this node's outbound face of the remote surface (§4.9):
// XML-RPC over HTTP via divan/gorilla-xmlrpc/xml's client-side encoder,
// against one peer address. Rewriter is consulted immediately before
// dialing, per §4.8's "Tunnels".
type Client struct {
	Addr     string
	Rewriter *fabric.Rewriter

	httpClient *http.Client

	// service owns the pending-correlation registry RemoteQuery waits on;
	// nil for a bare one-shot Client built only to issue client-facing
	// calls (put_file, query, ...), non-nil for the node's own peer-facing
	// Client returned by Service.clientFor.
	service *Service
}

// NewClient returns a Client dialing addr, with no pending-correlation
// registry attached (suitable for client-facing calls only).
func NewClient(addr string, rewriter *fabric.Rewriter) *Client {
	return &Client{
		Addr:       addr,
		Rewriter:   rewriter,
		httpClient: &http.Client{Transport: sharedTransport},
	}
}

// NewCaller returns a Client implementing scheduler.RemoteCaller against
// service's own peer table and pending-correlation registry: it resolves
// the peerId RemoteQuery is given through service.Peers rather than
// dialing a fixed address, since one node-wide caller must be able to
// delegate to any peer.
func NewCaller(service *Service) *Client {
	return &Client{service: service, httpClient: &http.Client{Transport: sharedTransport}}
}

func (c *Client) dialAddr() string {
	if c.Rewriter == nil {
		return c.Addr
	}
	return c.Rewriter.RewriteOutbound(c.Addr)
}

// call issues one XML-RPC request for method against c's address, decoding
// the response into reply.
func (c *Client) call(ctx context.Context, method string, args, reply interface{}) error {
	buf, err := xml.EncodeClientRequest(method, args)
	if err != nil {
		return fmt.Errorf("rpc: encoding %s request: %w", method, err)
	}
	url := "http://" + c.dialAddr() + "/RPC2"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc: %s to %s: %w", method, c.Addr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("rpc: %s to %s: HTTP %d: %s", method, c.Addr, resp.StatusCode, body)
	}
	return xml.DecodeClientResponse(resp.Body, reply)
}

// --- fabric.Transport -----------------------------------------------------
//
// addr here has already been passed through fabric's Rewriter by the
// caller (Peers.Connect / Peers.FetchFrom), so these targets dial it as
// given rather than rewriting it a second time.

func (c *Client) Handshake(ctx context.Context, addr, selfId string) (string, []fabric.PeerInfo, error) {
	target := &Client{Addr: addr, httpClient: c.httpClient}
	var reply HandshakeReply
	host, port := splitAddrForHandshake(addr)
	if err := target.call(ctx, "Service.Handshake", &HandshakeArgs{PeerId: selfId, Host: host, Port: port}, &reply); err != nil {
		return "", nil, err
	}
	return reply.PeerId, reply.Peers, nil
}

func (c *Client) AdvertisePredicates(ctx context.Context, addr, selfId string, predicates []core.PredIndicator) error {
	target := &Client{Addr: addr, httpClient: c.httpClient}
	strs := make([]string, len(predicates))
	for i, pi := range predicates {
		strs[i] = pi.String()
	}
	var reply AdvertisePeersReply
	return target.call(ctx, "Service.AdvertisePeers", &AdvertisePeersArgs{PeerId: selfId, Predicates: strs}, &reply)
}

func (c *Client) Ping(ctx context.Context, addr string) error {
	target := &Client{Addr: addr, httpClient: c.httpClient}
	var reply PingReply
	return target.call(ctx, "Service.Ping", &PingArgs{}, &reply)
}

func (c *Client) FetchFile(ctx context.Context, addr string, ref *core.Term) (io.ReadCloser, error) {
	target := &Client{Addr: addr, httpClient: c.httpClient}
	var reply GetFileReply
	if err := target.call(ctx, "Service.GetFile", &GetFileArgs{FileRef: TermToJSON(ref)}, &reply); err != nil {
		return nil, err
	}
	body, err := base64.StdEncoding.DecodeString(reply.Body)
	if err != nil {
		return nil, fmt.Errorf("rpc: decoding fetched file body: %w", err)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func splitAddrForHandshake(addr string) (host string, port int) {
	h, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	p, err := strconv.Atoi(portStr)
	if err != nil {
		return h, 0
	}
	return h, p
}

// --- scheduler.RemoteCaller -------------------------------------------------

// RemoteQuery issues remote_query against c's peer and blocks until the
// peer reports closed, feeding every deliver_answer to onAnswer as it
// arrives (§4.5 steps 2-4). Requires c.service, since the answers/close
// arrive as inbound calls to this node's own Service.
func (c *Client) RemoteQuery(ctx context.Context, peerId string, lit *core.Literal, correlationId string, onAnswer func(core.Subst, string)) error {
	if c.service == nil {
		return fmt.Errorf("rpc: RemoteQuery requires a peer-bound client")
	}
	target := c.service.clientFor(peerId)
	if target == nil {
		return fmt.Errorf("rpc: unknown peer %q", peerId)
	}

	pending := c.service.register(correlationId, onAnswer)
	defer c.service.forget(correlationId)

	var reply RemoteQueryReply
	if err := target.call(ctx, "Service.RemoteQuery", &RemoteQueryArgs{
		Literal:       lit.String(),
		CorrelationId: correlationId,
		RequesterId:   c.service.SelfId,
	}, &reply); err != nil {
		return err
	}

	select {
	case <-pending.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- peer-facing convenience wrappers, used by Service.RemoteQuery --------

// DeliverAnswer pushes one answer back to the requester that issued
// remote_query to this node (§4.5 step 3a).
func (c *Client) DeliverAnswer(ctx context.Context, correlationId string, subst core.Subst, claimDigest string) error {
	var reply DeliverAnswerReply
	return c.call(ctx, "Service.DeliverAnswer", &DeliverAnswerArgs{
		CorrelationId: correlationId,
		Subst:         SubstToJSON(subst),
		ClaimDigest:   claimDigest,
	}, &reply)
}

// Closed reports quiescence of the requester's delegated goal back to the
// requester (§4.5 step 3b).
func (c *Client) Closed(ctx context.Context, correlationId string) error {
	var reply ClosedReply
	return c.call(ctx, "Service.Closed", &ClosedArgs{CorrelationId: correlationId}, &reply)
}

// --- client-facing convenience wrappers, used by cmd/etbsh -----------------

func (c *Client) PutFile(ctx context.Context, destPath string, body []byte) (*core.Term, error) {
	var reply PutFileReply
	if err := c.call(ctx, "Service.PutFile", &PutFileArgs{DestPath: destPath, Body: base64.StdEncoding.EncodeToString(body)}, &reply); err != nil {
		return nil, err
	}
	return TermFromJSON(reply.FileRef)
}

func (c *Client) GetFile(ctx context.Context, ref *core.Term) ([]byte, error) {
	var reply GetFileReply
	if err := c.call(ctx, "Service.GetFile", &GetFileArgs{FileRef: TermToJSON(ref)}, &reply); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(reply.Body)
}

func (c *Client) Query(ctx context.Context, goal string) (string, error) {
	var reply QueryReply
	if err := c.call(ctx, "Service.Query", &QueryArgs{Goal: goal}, &reply); err != nil {
		return "", err
	}
	return reply.QueryId, nil
}

func (c *Client) QueryWait(ctx context.Context, queryId string) error {
	var reply QueryWaitReply
	return c.call(ctx, "Service.QueryWait", &QueryWaitArgs{QueryId: queryId}, &reply)
}

func (c *Client) QueryDone(ctx context.Context, queryId string) (bool, error) {
	var reply QueryDoneReply
	if err := c.call(ctx, "Service.QueryDone", &QueryDoneArgs{QueryId: queryId}, &reply); err != nil {
		return false, err
	}
	return reply.Done, nil
}

func (c *Client) QueryAnswers(ctx context.Context, queryId string) ([]core.Subst, error) {
	var reply QueryAnswersReply
	if err := c.call(ctx, "Service.QueryAnswers", &QueryAnswersArgs{QueryId: queryId}, &reply); err != nil {
		return nil, err
	}
	acc := make([]core.Subst, 0, len(reply.Substitutions))
	for _, raw := range reply.Substitutions {
		s, err := SubstFromJSON(raw)
		if err != nil {
			return nil, err
		}
		acc = append(acc, s)
	}
	return acc, nil
}

func (c *Client) QueryClaims(ctx context.Context, queryId string) ([]*claims.Claim, error) {
	var reply QueryClaimsReply
	if err := c.call(ctx, "Service.QueryClaims", &QueryClaimsArgs{QueryId: queryId}, &reply); err != nil {
		return nil, err
	}
	return decodeClaims(reply.Claims)
}

func (c *Client) GetAllClaims(ctx context.Context) ([]*claims.Claim, error) {
	var reply GetAllClaimsReply
	if err := c.call(ctx, "Service.GetAllClaims", &GetAllClaimsArgs{}, &reply); err != nil {
		return nil, err
	}
	return decodeClaims(reply.Claims)
}

func decodeClaims(raw []interface{}) ([]*claims.Claim, error) {
	acc := make([]*claims.Claim, 0, len(raw))
	for _, r := range raw {
		c, err := ClaimFromJSON(r)
		if err != nil {
			return nil, err
		}
		acc = append(acc, c)
	}
	return acc, nil
}

func (c *Client) ActiveQueries(ctx context.Context) ([]string, error) {
	var reply ActiveQueriesReply
	if err := c.call(ctx, "Service.ActiveQueries", &ActiveQueriesArgs{}, &reply); err != nil {
		return nil, err
	}
	return reply.QueryIds, nil
}

func (c *Client) DoneQueries(ctx context.Context) ([]string, error) {
	var reply DoneQueriesReply
	if err := c.call(ctx, "Service.DoneQueries", &DoneQueriesArgs{}, &reply); err != nil {
		return nil, err
	}
	return reply.QueryIds, nil
}

func (c *Client) Connect(ctx context.Context, host string, port int) error {
	var reply ConnectReply
	return c.call(ctx, "Service.Connect", &ConnectArgs{Host: host, Port: port}, &reply)
}

func (c *Client) Tunnel(ctx context.Context, localPort, remotePort int) error {
	var reply TunnelReply
	return c.call(ctx, "Service.Tunnel", &TunnelArgs{LocalPort: localPort, RemotePort: remotePort}, &reply)
}

func (c *Client) Ls(ctx context.Context, dir string) (dirs, inSync, outdated, untracked []string, err error) {
	var reply LsReply
	if err := c.call(ctx, "Service.Ls", &LsArgs{Dir: dir}, &reply); err != nil {
		return nil, nil, nil, nil, err
	}
	return reply.Dirs, reply.InSync, reply.Outdated, reply.Untracked, nil
}
