// Copyright 2025 The Dagflow Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package response implements the "response" stock node type, the usual
// terminal node of a graph: it assembles a body and headers and either
// sends a full HTTP response or, if headers were already sent, replaces
// the outgoing body in place.
package response

import (
	"fmt"
	"sync"

	"dagflow/internal/dlog"
	"dagflow/internal/engine"
	"dagflow/payload"
)

func init() {
	engine.RegisterNodeType("response", factory{})
}

// Config holds a response node's parameters.
type Config struct {
	name            string
	status          int
	statusSet       bool
	warnHeadersSent bool
}

func (Config) nodeConfig() {}

func (Config) DefaultOutputs() []string { return []string{"response_body"} }

type node struct {
	engine.BaseNode
	config Config
	logger dlog.Logger

	mu       sync.Mutex
	warnedAt bool
}

// Run assembles headers from input[1] and body from input[0]. In the
// response-body phase headers are already committed, so it replaces the
// body in place and warns at most once; otherwise it sends the full
// response through the host.
func (n *node) Run(host engine.Host, in engine.Input) engine.State {
	var body, headers *payload.Payload
	if len(in.Data) > 0 {
		body = in.Data[0]
	}
	if len(in.Data) > 1 {
		headers = in.Data[1]
	}

	var headerPairs [][2]string
	if headers != nil {
		headerPairs = headers.ToHeaderPairs()
	}
	if body != nil {
		if ct, ok := body.ContentType(); ok {
			headerPairs = append(headerPairs, [2]string{"Content-Type", ct})
		}
	}

	var bodyBytes []byte
	if body != nil {
		b, err := body.ToBytes()
		if err != nil {
			return engine.Fail(payload.Error(fmt.Sprintf("response: encoding body: %v", err)))
		}
		bodyBytes = b
	}

	if in.Phase == engine.PhaseResponseBody {
		n.warnHeadersAlreadySent(headers != nil)
		if body != nil {
			host.SetHTTPResponseBody(bodyBytes)
		}
		return engine.Done(nil)
	}

	host.SendHTTPResponse(n.config.status, headerPairs, bodyBytes)
	return engine.Done(nil)
}

func (n *node) warnHeadersAlreadySent(setHeaders bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.warnedAt || !n.config.warnHeadersSent {
		return
	}
	n.warnedAt = true

	if !n.config.statusSet && !setHeaders {
		return
	}
	what := "headers"
	switch {
	case n.config.statusSet && setHeaders:
		what = "status or headers"
	case n.config.statusSet:
		what = "status"
	}
	n.logger.Warnf("response: node %q cannot set %s when processing response body, headers already sent; set 'warn_headers_sent' to false to silence this warning", n.config.name, what)
}

type factory struct{}

func (factory) NewConfig(name string, inputs []string, params map[string]any) (engine.NodeConfig, error) {
	_, statusSet := params["status"]
	return Config{
		name:            name,
		status:          engine.ParamInt(params, "status", 200),
		statusSet:       statusSet,
		warnHeadersSent: engine.ParamBool(params, "warn_headers_sent", true),
	}, nil
}

func (factory) NewNode(config engine.NodeConfig) engine.Node {
	return &node{config: config.(Config), logger: dlog.Default()}
}
