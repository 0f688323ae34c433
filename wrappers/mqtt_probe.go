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
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"etb/core"
	"etb/wrapper"
)

// RegisterMQTTProbe registers mqtt_probe(+broker, +topic, -payload): a
// wrapper whose "external process" is a short-lived MQTT subscribe-and-read
// against broker/topic, bounded by deadline. Demonstrates a wrapper backed
// by genuine network I/O, exercising the errors outcome on timeout (§4.3,
// §5 "wrapper invocations may carry their own deadline").
func RegisterMQTTProbe(reg *wrapper.Registry, deadline time.Duration) {
	if deadline <= 0 {
		deadline = 5 * time.Second
	}
	reg.Register(
		&wrapper.Signature{Name: "mqtt_probe", Args: []wrapper.ArgSpec{
			{Mode: wrapper.ModeIn, Kind: wrapper.KindValue},
			{Mode: wrapper.ModeIn, Kind: wrapper.KindValue},
			{Mode: wrapper.ModeOut, Kind: wrapper.KindValue},
		}},
		wrapper.ResolverFunc(func(ctx context.Context, lit *core.Literal) (wrapper.Outcome, error) {
			args := lit.Args()
			broker, topic := args[0], args[1]
			if broker.ConstKind() != core.ConstString && broker.ConstKind() != core.ConstAtom {
				return wrapper.NewErrors("mqtt_probe: broker must be a string"), nil
			}
			if topic.ConstKind() != core.ConstString && topic.ConstKind() != core.ConstAtom {
				return wrapper.NewErrors("mqtt_probe: topic must be a string"), nil
			}

			opts := mqtt.NewClientOptions().AddBroker(broker.StringVal())
			client := mqtt.NewClient(opts)
			if tok := client.Connect(); !tok.WaitTimeout(deadline) || tok.Error() != nil {
				err := tok.Error()
				if err == nil {
					err = fmt.Errorf("connect timed out after %s", deadline)
				}
				return wrapper.NewErrors(fmt.Sprintf("mqtt_probe: connecting to %s: %s", broker.StringVal(), err)), nil
			}
			defer client.Disconnect(250)

			payloadCh := make(chan string, 1)
			tok := client.Subscribe(topic.StringVal(), 0, func(c mqtt.Client, m mqtt.Message) {
				select {
				case payloadCh <- string(m.Payload()):
				default:
				}
			})
			if !tok.WaitTimeout(deadline) || tok.Error() != nil {
				return wrapper.NewErrors(fmt.Sprintf("mqtt_probe: subscribing to %s: %s", topic.StringVal(), tok.Error())), nil
			}

			select {
			case payload := <-payloadCh:
				resVar := args[2].VarName()
				return wrapper.NewSubstitutions([]core.Subst{
					core.NewSubst().Extend(resVar, core.StringConst(payload)),
				}), nil
			case <-time.After(deadline):
				return wrapper.NewErrors(fmt.Sprintf("mqtt_probe: no message on %s within %s", topic.StringVal(), deadline)), nil
			case <-ctx.Done():
				return wrapper.NewErrors("mqtt_probe: cancelled"), nil
			}
		}),
	)
}
