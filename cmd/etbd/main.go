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

// Command etbd is the ETB daemon: it boots one node (§2) and serves its
// remote surface (§4.9) until signalled to stop. Flags and startup
// sequencing follow cmd/mcrew/main.go's shape: parse flags, boot, then
// start the listeners.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"etb/config"
	"etb/node"
	"etb/util"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("etbd", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "log lots of wonderful things")

	cfg, err := config.Load(fs, os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "etbd: %s\n", err)
		return 1
	}
	util.Logging = *verbose

	if cfg.Log != "" {
		f, err := os.OpenFile(cfg.Log, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "etbd: opening log file %s: %s\n", cfg.Log, err)
			return 1
		}
		defer f.Close()
		log.SetOutput(f)
	}

	n, err := node.New(cfg)
	if err != nil {
		log.Printf("etbd: startup failed: %s", err)
		return 1
	}
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("etbd: shutting down (%s)", n.SelfId)
		cancel()
	}()

	log.Printf("etbd: node %s listening on %s", n.SelfId, cfg.Addr())
	if err := n.Serve(ctx); err != nil {
		log.Printf("etbd: %s", err)
		return 1
	}
	return 0
}
