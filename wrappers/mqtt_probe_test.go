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

package wrappers

import (
	"context"
	"testing"

	"etb/core"
	"etb/wrapper"
)

// These exercise only mqtt_probe's argument validation, since a genuine
// probe requires a reachable broker; the timeout/success paths are left to
// manual/integration testing against a real broker.

func TestMQTTProbeRejectsNonStringBroker(t *testing.T) {
	reg := wrapper.NewRegistry()
	RegisterMQTTProbe(reg, 0)
	lit := core.Compound("mqtt_probe", core.IntConst(1), core.StringConst("topic"), core.Var("Payload"))
	out, err := reg.Resolve(context.Background(), lit)
	if err != nil {
		t.Fatalf("Resolve: %s", err)
	}
	if out.Tag != wrapper.Errors {
		t.Fatalf("expected an errors outcome for a non-string broker, got %+v", out)
	}
}

func TestMQTTProbeRejectsNonStringTopic(t *testing.T) {
	reg := wrapper.NewRegistry()
	RegisterMQTTProbe(reg, 0)
	lit := core.Compound("mqtt_probe", core.StringConst("tcp://localhost:1883"), core.IntConst(1), core.Var("Payload"))
	out, err := reg.Resolve(context.Background(), lit)
	if err != nil {
		t.Fatalf("Resolve: %s", err)
	}
	if out.Tag != wrapper.Errors {
		t.Fatalf("expected an errors outcome for a non-string topic, got %+v", out)
	}
}
