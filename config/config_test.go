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

package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithNoConfOrFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := Load(fs, nil)
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if cfg.Host != "127.0.0.1" || cfg.Port != 9090 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadAppliesExplicitConfFile(t *testing.T) {
	dir := t.TempDir()
	confPath := filepath.Join(dir, "etb.ini")
	body := "[etb]\nhost = 10.0.0.5\nport = 4242\nrule_files = a.etb, b.etb\n"
	if err := os.WriteFile(confPath, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := Load(fs, []string{"--conf", confPath})
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if cfg.Host != "10.0.0.5" || cfg.Port != 4242 {
		t.Fatalf("ini values not applied: %+v", cfg)
	}
	if len(cfg.RuleFiles) != 2 || cfg.RuleFiles[0] != "a.etb" || cfg.RuleFiles[1] != "b.etb" {
		t.Fatalf("rule_files not split: %+v", cfg.RuleFiles)
	}
}

func TestExplicitFlagOverridesConfFile(t *testing.T) {
	dir := t.TempDir()
	confPath := filepath.Join(dir, "etb.ini")
	body := "[etb]\nhost = 10.0.0.5\nport = 4242\n"
	if err := os.WriteFile(confPath, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := Load(fs, []string{"--conf", confPath, "--port", "5555"})
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if cfg.Host != "10.0.0.5" {
		t.Fatalf("expected ini host to survive, got %q", cfg.Host)
	}
	if cfg.Port != 5555 {
		t.Fatalf("expected explicit flag to win, got %d", cfg.Port)
	}
}

func TestAddr(t *testing.T) {
	cfg := &Config{Host: "example.org", Port: 1234}
	if got := cfg.Addr(); got != "example.org:1234" {
		t.Fatalf("Addr() = %q", got)
	}
}
