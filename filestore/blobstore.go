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

// Package filestore implements the content-addressed file store of §4.7:
// every file reference's blob is stored once per node under a directory
// layout keyed by SHA-1, with a mirror of named paths rewritten to blob
// hashes, per §6's on-disk layout.
package filestore

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"etb/core"
)

// ErrIntegrity is returned when a transferred blob's recomputed hash does
// not match the expected reference, per §4.7 ("mismatch is fatal for that
// fetch").
var ErrIntegrity = errors.New("file integrity mismatch")

// Store is a node's local content-addressed blob store, laid out as
// two-level hex-prefix directories under Root/blobs, with Root/paths
// mirroring named paths to blob hashes (§6).
type Store struct {
	Root string
}

// NewStore returns a Store rooted at dir, creating the blob and path
// subdirectories if needed.
func NewStore(dir string) (*Store, error) {
	s := &Store{Root: dir}
	if err := os.MkdirAll(s.blobDir(), 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.pathDir(), 0755); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) blobDir() string { return filepath.Join(s.Root, "blobs") }
func (s *Store) pathDir() string { return filepath.Join(s.Root, "paths") }

func (s *Store) blobPath(sha1hex string) string {
	if len(sha1hex) < 4 {
		return filepath.Join(s.blobDir(), sha1hex)
	}
	return filepath.Join(s.blobDir(), sha1hex[:2], sha1hex[2:4], sha1hex)
}

// Put writes body's bytes under their SHA-1 digest, atomically
// (write-then-rename, per §5's "atomic at blob granularity"), and returns
// the resulting file reference. destPath names the logical path the blob is
// also mirrored under (Root/paths).
func (s *Store) Put(destPath string, body io.Reader) (*core.Term, error) {
	tmp, err := os.CreateTemp(s.blobDir(), "put-*")
	if err != nil {
		return nil, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	h := sha1.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), body); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	digest := fmt.Sprintf("%x", h.Sum(nil))
	final := s.blobPath(digest)
	if err := os.MkdirAll(filepath.Dir(final), 0755); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpName, final); err != nil {
		return nil, err
	}

	if destPath != "" {
		mirror := filepath.Join(s.pathDir(), destPath)
		if err := os.MkdirAll(filepath.Dir(mirror), 0755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(mirror, []byte(digest), 0644); err != nil {
			return nil, err
		}
	}

	return core.FileRef(destPath, digest), nil
}

// Get streams the blob for ref back to w. Returns ErrIntegrity-wrapping
// errors only on cross-node fetch (see fetch.go); a local Get trusts its own
// filesystem.
func (s *Store) Get(ref *core.Term, w io.Writer) error {
	f, err := os.Open(s.blobPath(ref.FileSHA1()))
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// Has reports whether the blob for ref is present locally.
func (s *Store) Has(ref *core.Term) bool {
	_, err := os.Stat(s.blobPath(ref.FileSHA1()))
	return err == nil
}

// ReadAll reads the entire blob for ref into memory; a convenience for small
// wrapper inputs (e.g. the markdown wrapper).
func (s *Store) ReadAll(ref *core.Term) ([]byte, error) {
	return os.ReadFile(s.blobPath(ref.FileSHA1()))
}

// Listing is one named path's entry under the remote surface's ls(dir)
// (§4.9): Dirs are subdirectories of dir; InSync are mirrored paths whose
// recorded blob is present locally; Outdated are mirrored paths whose
// recorded blob is not (a peer may still hold it, see §4.7's cross-node
// resolution); Untracked never occurs in this store, since every mirrored
// path is written through Put, but the category is kept so ls's reply
// shape matches §4.9's {dirs, in-sync, outdated, untracked} exactly.
type Listing struct {
	Dirs, InSync, Outdated, Untracked []string
}

// Ls lists the named-path mirror under dir (relative to Root/paths),
// classifying each entry per Listing's doc comment.
func (s *Store) Ls(dir string) (Listing, error) {
	var l Listing
	entries, err := os.ReadDir(filepath.Join(s.pathDir(), dir))
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return l, err
	}
	for _, e := range entries {
		name := filepath.Join(dir, e.Name())
		if e.IsDir() {
			l.Dirs = append(l.Dirs, name)
			continue
		}
		digest, err := os.ReadFile(filepath.Join(s.pathDir(), name))
		if err != nil {
			return l, err
		}
		if _, err := os.Stat(s.blobPath(string(digest))); err == nil {
			l.InSync = append(l.InSync, name)
		} else {
			l.Outdated = append(l.Outdated, name)
		}
	}
	return l, nil
}
