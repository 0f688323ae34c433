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

package filestore

import (
	"bytes"
	"context"
	"crypto/sha1"
	"fmt"
	"io"

	"etb/core"
)

// PeerSource is one candidate peer that might hold a blob, abstracting over
// the fabric/rpc client so this package stays free of network and wire
// concerns. Implemented by node's fabric glue.
type PeerSource interface {
	// PeerIds returns the ids of peers advertised as holding ref's blob.
	PeerIds(ref *core.Term) []string
	// FetchFrom streams the blob for ref from the named peer.
	FetchFrom(ctx context.Context, peerId string, ref *core.Term) (io.ReadCloser, error)
}

// EnsureLocal fetches ref's blob from the first peer (from src.PeerIds) to
// answer, per §4.7 ("the first peer to answer wins"), verifying the
// transferred bytes hash to ref's expected digest. A hash mismatch is
// ErrIntegrity and is fatal to that fetch (§4.7, §7); the file reference
// itself is left intact in any claim that named it.
func (s *Store) EnsureLocal(ctx context.Context, ref *core.Term, src PeerSource) error {
	if s.Has(ref) {
		return nil
	}
	if src == nil {
		return fmt.Errorf("file %s not local and no peer source configured", ref.FileSHA1())
	}

	type result struct {
		body []byte
		err  error
		peer string
	}
	peers := src.PeerIds(ref)
	if len(peers) == 0 {
		return fmt.Errorf("no peer advertises file %s", ref.FileSHA1())
	}

	resCh := make(chan result, len(peers))
	for _, p := range peers {
		go func(peerId string) {
			rc, err := src.FetchFrom(ctx, peerId, ref)
			if err != nil {
				resCh <- result{err: err, peer: peerId}
				return
			}
			defer rc.Close()
			body, err := io.ReadAll(rc)
			resCh <- result{body: body, err: err, peer: peerId}
		}(p)
	}

	var lastErr error
	for i := 0; i < len(peers); i++ {
		r := <-resCh
		if r.err != nil {
			lastErr = r.err
			continue
		}
		h := sha1.Sum(r.body)
		digest := fmt.Sprintf("%x", h)
		if digest != ref.FileSHA1() {
			return fmt.Errorf("%w: peer %s returned digest %s, expected %s", ErrIntegrity, r.peer, digest, ref.FileSHA1())
		}
		_, err := s.Put(ref.FilePath(), bytes.NewReader(r.body))
		return err
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("no peer could deliver file %s", ref.FileSHA1())
}
