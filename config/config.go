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

// Package config implements the layered configuration of §6: an INI file
// with an [etb] section mirroring the CLI flag names ('-' replaced by '_'),
// read in the order user-home config -> current-directory config -> command
// line, with later layers overriding earlier ones.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// Config holds every setting the daemon needs to boot a node, whether it
// arrived from a flag, an INI file, or a built-in default.
type Config struct {
	Host        string
	Port        int
	Conf        string
	Log         string
	WrappersDir string
	RuleFiles   []string

	// Ambient settings not named individually in spec.md §6's CLI surface,
	// but needed to stand the node up (§6's on-disk layout, §4.5's remote
	// timeout, §4.8's gossip sweep): still mirrored into the [etb] section
	// under the same '-' -> '_' convention as the named flags.
	DataDir       string
	NodeId        string
	GossipCron    string
	Workers       int
	RemoteTimeout int // seconds
	MQTTDeadline  int // seconds
}

// Defaults returns a Config with every field set to its built-in default,
// the first (lowest-priority) layer in §6's read order.
func Defaults() *Config {
	return &Config{
		Host:          "127.0.0.1",
		Port:          9090,
		DataDir:       "etb-node",
		GossipCron:    "*/10 * * * * *",
		Workers:       32,
		RemoteTimeout: 30,
		MQTTDeadline:  5,
	}
}

// fields lists every layerable setting by its flag name, used both to
// register flags and to read the matching '_'-separated key back out of an
// INI file.
var fields = []string{
	"host", "port", "conf", "log", "wrappers-dir", "rule-files",
	"data-dir", "node-id", "gossip-cron", "workers", "remote-timeout", "mqtt-deadline",
}

// Load parses args against fs and layers in INI settings per §6: defaults,
// then the user-home config file, then the current-directory config file,
// then whichever flags were explicitly given on the command line (which
// always win, per §6: "command-line arguments override file settings").
// If --conf names a file explicitly, it replaces the home/cwd search with
// that single file.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	flagged := Defaults()

	fs.StringVar(&flagged.Host, "host", flagged.Host, "listen host")
	fs.IntVar(&flagged.Port, "port", flagged.Port, "listen port")
	fs.StringVar(&flagged.Conf, "conf", "", "path to an INI config file")
	fs.StringVar(&flagged.Log, "log", "", "log file path (empty logs to stderr)")
	fs.StringVar(&flagged.WrappersDir, "wrappers-dir", "", "directory of scripted wrapper manifests")
	var ruleFiles string
	fs.StringVar(&ruleFiles, "rule-files", "", "comma-separated list of rule files to load at boot")
	fs.StringVar(&flagged.DataDir, "data-dir", flagged.DataDir, "per-node working directory (§6 on-disk layout)")
	fs.StringVar(&flagged.NodeId, "node-id", "", "stable node id (random if empty)")
	fs.StringVar(&flagged.GossipCron, "gossip-cron", flagged.GossipCron, "cron expression for the fabric gossip sweep")
	fs.IntVar(&flagged.Workers, "workers", flagged.Workers, "bounded worker pool size")
	fs.IntVar(&flagged.RemoteTimeout, "remote-timeout", flagged.RemoteTimeout, "remote delegation deadline, in seconds")
	fs.IntVar(&flagged.MQTTDeadline, "mqtt-deadline", flagged.MQTTDeadline, "mqtt_probe wrapper deadline, in seconds")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	flagged.RuleFiles = splitList(ruleFiles)

	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	cfg := Defaults()

	var confPaths []string
	if explicit["conf"] {
		confPaths = []string{flagged.Conf}
	} else {
		confPaths = defaultConfPaths()
	}
	for _, path := range confPaths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue // §6 only says "read order"; a missing default file is not an error
		}
		if err := applyIniFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}
	if explicit["conf"] {
		cfg.Conf = flagged.Conf
	}

	applyExplicit(cfg, flagged, explicit)

	return cfg, nil
}

func defaultConfPaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".etb.ini"))
	}
	paths = append(paths, "etb.ini")
	return paths
}

func applyIniFile(cfg *Config, path string) error {
	f, err := ini.Load(path)
	if err != nil {
		return err
	}
	sec := f.Section("etb")

	if k := sec.Key("host"); k.String() != "" {
		cfg.Host = k.String()
	}
	if k := sec.Key("port"); k.String() != "" {
		v, err := k.Int()
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		cfg.Port = v
	}
	if k := sec.Key("log"); k.String() != "" {
		cfg.Log = k.String()
	}
	if k := sec.Key("wrappers_dir"); k.String() != "" {
		cfg.WrappersDir = k.String()
	}
	if k := sec.Key("rule_files"); k.String() != "" {
		cfg.RuleFiles = splitList(k.String())
	}
	if k := sec.Key("data_dir"); k.String() != "" {
		cfg.DataDir = k.String()
	}
	if k := sec.Key("node_id"); k.String() != "" {
		cfg.NodeId = k.String()
	}
	if k := sec.Key("gossip_cron"); k.String() != "" {
		cfg.GossipCron = k.String()
	}
	if k := sec.Key("workers"); k.String() != "" {
		v, err := k.Int()
		if err != nil {
			return fmt.Errorf("workers: %w", err)
		}
		cfg.Workers = v
	}
	if k := sec.Key("remote_timeout"); k.String() != "" {
		v, err := k.Int()
		if err != nil {
			return fmt.Errorf("remote_timeout: %w", err)
		}
		cfg.RemoteTimeout = v
	}
	if k := sec.Key("mqtt_deadline"); k.String() != "" {
		v, err := k.Int()
		if err != nil {
			return fmt.Errorf("mqtt_deadline: %w", err)
		}
		cfg.MQTTDeadline = v
	}
	return nil
}

// applyExplicit overwrites cfg's fields with flagged's, but only for flags
// the user actually named on the command line (§6: explicit flags win over
// file settings; unset flags must not clobber what the INI layers set).
func applyExplicit(cfg, flagged *Config, explicit map[string]bool) {
	if explicit["host"] {
		cfg.Host = flagged.Host
	}
	if explicit["port"] {
		cfg.Port = flagged.Port
	}
	if explicit["log"] {
		cfg.Log = flagged.Log
	}
	if explicit["wrappers-dir"] {
		cfg.WrappersDir = flagged.WrappersDir
	}
	if explicit["rule-files"] {
		cfg.RuleFiles = flagged.RuleFiles
	}
	if explicit["data-dir"] {
		cfg.DataDir = flagged.DataDir
	}
	if explicit["node-id"] {
		cfg.NodeId = flagged.NodeId
	}
	if explicit["gossip-cron"] {
		cfg.GossipCron = flagged.GossipCron
	}
	if explicit["workers"] {
		cfg.Workers = flagged.Workers
	}
	if explicit["remote-timeout"] {
		cfg.RemoteTimeout = flagged.RemoteTimeout
	}
	if explicit["mqtt-deadline"] {
		cfg.MQTTDeadline = flagged.MQTTDeadline
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Addr returns the host:port this node listens on.
func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
