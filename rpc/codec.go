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
	"net/http"

	"github.com/divan/gorilla-xmlrpc/xml"
	"github.com/gorilla/rpc"
)

// NewHandler returns an http.Handler that serves service's exported methods
// as XML-RPC over HTTP (§6: "All remote operations are XML-RPC over HTTP"),
// using gorilla/rpc's multi-codec server with the divan/gorilla-xmlrpc/xml
// codec -- the idiomatic pairing for hosting XML-RPC in Go, since nothing in
// the retrieved pack implements XML-RPC directly against net/rpc's
// ServerCodec interface. service's methods are registered under the empty
// prefix, so a method like Service.Query is invoked on the wire as
// "Service.Query".
func NewHandler(service interface{}) http.Handler {
	server := rpc.NewServer()
	server.RegisterCodec(xml.NewCodec(), "text/xml")
	if err := server.RegisterService(service, ""); err != nil {
		panic(err) // only fails for a malformed service -- a programmer error
	}
	return server
}
