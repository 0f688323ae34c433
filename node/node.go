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

// Package node wires the term model, rule base, wrapper registry, goal
// engine, scheduler, claims table, file store, fabric, and remote surface
// into one running ETB node, with explicit New/Close and no implicit
// singletons (§9: "Each node is a single process-wide instance with an
// explicit init and shutdown").
package node

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"etb/claims"
	"etb/config"
	"etb/core"
	"etb/engine"
	"etb/fabric"
	"etb/filestore"
	"etb/interpreters/goja"
	"etb/parser"
	"etb/rpc"
	"etb/rulebase"
	"etb/scheduler"
	"etb/util"
	"etb/wrapper"
	"etb/wrappers"
)

// Node is one running ETB peer: everything §2's component list names,
// glued together. Grounded on cmd/mcrew/main.go's NewService/defer-Close
// shape, generalized from one service struct to the full component set
// this design splits across packages.
type Node struct {
	Config *config.Config
	SelfId string

	Rules     *rulebase.Index
	Wrappers  *wrapper.Registry
	Claims    *claims.Table
	Files     *filestore.Store
	Peers     *fabric.Peers
	Engine    *engine.Engine
	Scheduler *scheduler.Scheduler
	Service   *rpc.Service

	cancel context.CancelFunc
}

// fileResolver bridges the wrapper registry's file-argument checks (§4.3)
// to the local blob store and, failing that, a cross-node fetch (§4.7).
type fileResolver struct {
	files *filestore.Store
	peers *fabric.Peers
}

func (fr *fileResolver) Resolvable(ctx context.Context, ref *core.Term) (bool, error) {
	if !ref.IsFileRef() {
		return false, fmt.Errorf("argument is not a file reference")
	}
	if fr.files.Has(ref) {
		return true, nil
	}
	if fr.peers == nil {
		return false, nil
	}
	if err := fr.files.EnsureLocal(ctx, ref, fr.peers); err != nil {
		util.Logf("node: fetching %s: %s", ref.FileSHA1(), err)
		return false, nil
	}
	return true, nil
}

// New boots a Node from cfg: opens (or creates) its data directory, loads
// rule files and scripted wrapper manifests, and wires every component
// together, but does not yet listen on the network -- that is Serve's job.
func New(cfg *config.Config) (*Node, error) {
	selfId := cfg.NodeId
	if selfId == "" {
		selfId = uuid.NewString()
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("node: creating data directory: %w", err)
	}

	claimsTable, err := claims.OpenPersistent(filepath.Join(cfg.DataDir, "claims.db"))
	if err != nil {
		return nil, fmt.Errorf("node: opening claims store: %w", err)
	}

	files, err := filestore.NewStore(filepath.Join(cfg.DataDir, "files"))
	if err != nil {
		claimsTable.Close()
		return nil, fmt.Errorf("node: opening file store: %w", err)
	}

	rules := rulebase.NewIndex()
	reg := wrapper.NewRegistry()

	n := &Node{
		Config:   cfg,
		SelfId:   selfId,
		Rules:    rules,
		Wrappers: reg,
		Claims:   claimsTable,
		Files:    files,
	}

	n.Peers = fabric.NewPeers(selfId, rpc.NewClient("", nil))
	reg.Files = &fileResolver{files: files, peers: n.Peers}

	wrappers.RegisterAll(reg)
	wrappers.RegisterMarkdown(reg, files)
	wrappers.RegisterMQTTProbe(reg, time.Duration(cfg.MQTTDeadline)*time.Second)

	if cfg.WrappersDir != "" {
		if err := loadScriptedWrappers(reg, cfg.WrappersDir); err != nil {
			claimsTable.Close()
			return nil, err
		}
	}

	for _, path := range cfg.RuleFiles {
		if err := n.loadRuleFile(path); err != nil {
			claimsTable.Close()
			return nil, err
		}
	}

	eng := engine.New(rules, reg, claimsTable)
	sched := scheduler.New(rules, claimsTable, eng.Table, cfg.Workers)
	sched.RemoteTimeout = time.Duration(cfg.RemoteTimeout) * time.Second
	sched.Peers = n.Peers
	eng.Dispatcher = sched
	eng.Delegate = sched

	n.Engine = eng
	n.Scheduler = sched

	svc := rpc.NewService(selfId, cfg.Host, cfg.Port)
	svc.Engine = eng
	svc.Scheduler = sched
	svc.Claims = claimsTable
	svc.Rules = rules
	svc.Wrappers = reg
	svc.Files = files
	svc.Peers = n.Peers
	n.Service = svc
	sched.Caller = rpc.NewCaller(svc)

	return n, nil
}

// loadRuleFile parses and installs one rule file's clauses as permanent
// rules (§4.2: rules loaded from rule files, as opposed to wrapper-emitted
// ephemeral ones, are never garbage collected).
func (n *Node) loadRuleFile(path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("node: reading rule file %s: %w", path, err)
	}
	rs, err := parser.ParseRuleFile(string(body))
	if err != nil {
		return fmt.Errorf("node: parsing rule file %s: %w", path, err)
	}
	for _, r := range rs {
		n.Rules.Add(r)
	}
	return nil
}

// loadScriptedWrappers registers every {name}.yaml + {name}.js pair found
// directly under dir (§6's --wrappers-dir). Each YAML manifest names its own
// source file, so subdirectory layout and naming beyond that is up to the
// deployer.
func loadScriptedWrappers(reg *wrapper.Registry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("node: reading wrappers directory %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !(strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}
		manifestPath := filepath.Join(dir, e.Name())
		body, err := os.ReadFile(manifestPath)
		if err != nil {
			return fmt.Errorf("node: reading wrapper manifest %s: %w", manifestPath, err)
		}
		m, err := wrapper.ParseManifest(body)
		if err != nil {
			return fmt.Errorf("node: %s: %w", manifestPath, err)
		}
		sig, err := m.Signature()
		if err != nil {
			return fmt.Errorf("node: %s: %w", manifestPath, err)
		}
		srcPath := m.Source
		if !filepath.IsAbs(srcPath) {
			srcPath = filepath.Join(dir, srcPath)
		}
		src, err := os.ReadFile(srcPath)
		if err != nil {
			return fmt.Errorf("node: reading wrapper source %s: %w", srcPath, err)
		}
		resolver, err := goja.NewScriptedResolver(m.Name, string(src))
		if err != nil {
			return fmt.Errorf("node: %s: %w", manifestPath, err)
		}
		reg.Register(sig, resolver)
		util.Logf("node: registered scripted wrapper %s from %s", m.Name, manifestPath)
	}
	return nil
}

// Predicates returns this node's current predicate advertisement set (rule
// heads plus wrapper names), the payload of §4.8's gossip.
func (n *Node) Predicates() []core.PredIndicator {
	acc := append([]core.PredIndicator(nil), n.Rules.Predicates()...)
	acc = append(acc, n.Wrappers.Names()...)
	return acc
}

// Serve starts the node's gossip sweep (§4.8) and blocks serving the remote
// surface (§4.9) on cfg.Addr() until ctx is done.
func (n *Node) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	go func() {
		if err := n.Peers.RunGossipSweep(ctx, n.Config.GossipCron, n.Predicates); err != nil {
			util.Logf("node: gossip sweep stopped: %s", err)
		}
	}()

	mux := NewMux(n)

	srv := newHTTPServer(n.Config.Addr(), mux)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Close releases the node's persistent handles. Safe to call after Serve
// returns.
func (n *Node) Close() error {
	if n.cancel != nil {
		n.cancel()
	}
	return n.Claims.Close()
}
