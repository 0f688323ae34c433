/* Copyright 2019 Comcast Cable Communications Management, LLC
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

package wrapper

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

// manifestArg is one argument entry of a wrapper manifest file, using the
// spec's own mode vocabulary (§3: "must-be-bound (+), must-be-variable (-),
// either") rather than Go identifiers, so manifest authors write the same
// notation the design doc does.
type manifestArg struct {
	Mode string `yaml:"mode"`
	Kind string `yaml:"kind"`
}

// Manifest describes one scripted wrapper predicate: its signature plus the
// relative path of the JS source implementing it (§6's --wrappers-dir,
// loaded as YAML per SPEC_FULL §1's configuration section).
type Manifest struct {
	Name   string        `yaml:"name"`
	Source string        `yaml:"source"`
	Args   []manifestArg `yaml:"args"`
}

// ParseManifest decodes one wrapper manifest file's YAML body.
func ParseManifest(body []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("wrapper manifest: %w", err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("wrapper manifest: missing name")
	}
	if m.Source == "" {
		return nil, fmt.Errorf("wrapper manifest %q: missing source", m.Name)
	}
	return &m, nil
}

// Signature builds the wrapper.Signature m describes, validating every
// argument's mode/kind spelling.
func (m *Manifest) Signature() (*Signature, error) {
	sig := &Signature{Name: m.Name, Args: make([]ArgSpec, len(m.Args))}
	for i, a := range m.Args {
		mode, err := parseMode(a.Mode)
		if err != nil {
			return nil, fmt.Errorf("wrapper %q arg %d: %w", m.Name, i, err)
		}
		kind, err := parseKind(a.Kind)
		if err != nil {
			return nil, fmt.Errorf("wrapper %q arg %d: %w", m.Name, i, err)
		}
		sig.Args[i] = ArgSpec{Mode: mode, Kind: kind}
	}
	return sig, nil
}

func parseMode(s string) (Mode, error) {
	switch s {
	case "+", "in":
		return ModeIn, nil
	case "-", "out":
		return ModeOut, nil
	case "?", "either", "":
		return ModeEither, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "value", "":
		return KindValue, nil
	case "file":
		return KindFile, nil
	case "files":
		return KindFiles, nil
	case "handle":
		return KindHandle, nil
	}
	return 0, fmt.Errorf("unknown kind %q", s)
}
