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

// Package call implements the "call" stock node type: it dispatches an
// HTTP subrequest through the transaction's Host and resumes with the
// response as its output payload.
package call

import (
	"fmt"
	"net/url"
	"time"

	"dagflow/internal/engine"
	"dagflow/payload"
)

func init() {
	engine.RegisterNodeType("call", factory{})
}

// Config holds a call node's dispatch parameters.
type Config struct {
	url     string
	method  string
	timeout time.Duration
}

func (Config) nodeConfig() {}

type node struct {
	config Config

	// tokenID is the subrequest token this instance is Waiting on, set by
	// Run and consulted nowhere else: Resume is only ever invoked for the
	// node the driver already matched against the token.
	tokenID uint32
}

// Run dispatches the subrequest described by config, binding input[0] to
// the request body and input[1] to the request headers, both optional.
func (n *node) Run(host engine.Host, in engine.Input) engine.State {
	var body, headers *payload.Payload
	if len(in.Data) > 0 {
		body = in.Data[0]
	}
	if len(in.Data) > 1 {
		headers = in.Data[1]
	}

	token, err := n.dispatch(host, body, headers)
	if err != nil {
		return engine.Fail(payload.Error(fmt.Sprintf("call: %v", err)))
	}

	n.tokenID = token
	return engine.Waiting(token)
}

func (n *node) dispatch(host engine.Host, body, headers *payload.Payload) (uint32, error) {
	callURL, err := url.Parse(n.config.url)
	if err != nil {
		return 0, fmt.Errorf("failed parsing URL from 'url' field: %w", err)
	}
	host4 := callURL.Hostname()
	if host4 == "" || callURL.Scheme == "" {
		return 0, fmt.Errorf("url %q has no scheme or host", n.config.url)
	}

	hostPort := host4
	if port := callURL.Port(); port != "" {
		hostPort = host4 + ":" + port
	}

	var headerPairs [][2]string
	if headers != nil {
		headerPairs = headers.ToHeaderPairs()
	}
	headerPairs = append(headerPairs,
		[2]string{":method", n.config.method},
		[2]string{":path", callURL.EscapedPath()},
	)

	var bodyBytes []byte
	if body != nil {
		bodyBytes, err = body.ToBytes()
		if err != nil {
			return 0, fmt.Errorf("encoding request body: %w", err)
		}
	}

	return host.DispatchHTTPCall(hostPort, headerPairs, bodyBytes, n.config.timeout)
}

// Resume reads the completed subrequest's response off the host and wraps
// it as this node's output payload.
func (n *node) Resume(host engine.Host, in engine.Input) engine.State {
	body := host.GetHTTPCallResponseBody()
	ct, _ := host.GetHTTPCallResponseHeader("Content-Type")

	p, ok := payload.FromBytes(body, ct)
	if !ok {
		return engine.Done(nil)
	}
	return engine.Done(p)
}

type factory struct{}

func (factory) NewConfig(name string, inputs []string, params map[string]any) (engine.NodeConfig, error) {
	return Config{
		url:     engine.ParamString(params, "url", ""),
		method:  engine.ParamString(params, "method", "GET"),
		timeout: time.Duration(engine.ParamInt(params, "timeout", 60)) * time.Second,
	}, nil
}

func (factory) NewNode(config engine.NodeConfig) engine.Node {
	return &node{config: config.(Config)}
}
