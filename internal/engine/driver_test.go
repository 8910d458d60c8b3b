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

package engine

import (
	"strings"
	"testing"

	"dagflow/payload"
)

// echoUpperNode delegates Run to the function its factory was registered
// with; the "driver_test_echo_upper" type renders its first input as a
// string and outputs it uppercased as Raw.
type echoUpperNode struct {
	BaseNode
	run func(host Host, in Input) State
}

func (n echoUpperNode) Run(host Host, in Input) State { return n.run(host, in) }

type echoUpperConfig struct{}

func (echoUpperConfig) nodeConfig() {}

type echoUpperFactory struct {
	run func(host Host, in Input) State
}

func (f echoUpperFactory) NewConfig(string, []string, map[string]any) (NodeConfig, error) {
	return echoUpperConfig{}, nil
}
func (f echoUpperFactory) NewNode(NodeConfig) Node { return echoUpperNode{run: f.run} }

// waitingNode returns Waiting(1) on Run, and on Resume turns the call
// response captured in its closure into Done/Fail.
type waitingNode struct {
	BaseNode
	resume func(host Host, in Input) State
}

func (waitingNode) Run(Host, Input) State { return Waiting(1) }
func (n waitingNode) Resume(host Host, in Input) State {
	if n.resume != nil {
		return n.resume(host, in)
	}
	return Done(nil)
}

type waitingConfig struct{}

func (waitingConfig) nodeConfig() {}

type waitingFactory struct{ resume func(host Host, in Input) State }

func (f waitingFactory) NewConfig(string, []string, map[string]any) (NodeConfig, error) {
	return waitingConfig{}, nil
}
func (f waitingFactory) NewNode(NodeConfig) Node { return waitingNode{resume: f.resume} }

type failingNode struct{ BaseNode }

func (failingNode) Run(Host, Input) State { return Fail(payload.Error("boom")) }

type failingConfig struct{}

func (failingConfig) nodeConfig() {}

type failingFactory struct{}

func (failingFactory) NewConfig(string, []string, map[string]any) (NodeConfig, error) {
	return failingConfig{}, nil
}
func (failingFactory) NewNode(NodeConfig) Node { return failingNode{} }

func init() {
	RegisterNodeType("driver_test_echo_upper", echoUpperFactory{run: func(host Host, in Input) State {
		if len(in.Data) == 0 || in.Data[0] == nil {
			return Done(nil)
		}
		s, err := in.Data[0].AsInputString()
		if err != nil {
			return Fail(payload.Error(err.Error()))
		}
		return Done(payload.Raw([]byte(strings.ToUpper(s))))
	}})
	RegisterNodeType("driver_test_waiting", waitingFactory{})
	RegisterNodeType("driver_test_failing", failingFactory{})
}

func TestDriverTemplateOnlyScenario(t *testing.T) {
	cfg, err := Load([]byte(`{"nodes": [
		{"type": "driver_test_echo_upper", "name": "t", "input": "request_headers", "output": "response_body"}
	]}`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	host := &fakeHost{requestHeaders: [][2]string{{"Host", "example.com"}}}
	d, err := NewDriver(cfg, host)
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}

	d.OnRequestHeaders(true)
	d.OnRequestBody(0, true)
	d.OnResponseHeaders(true)
	action := d.OnResponseBody(0, true)

	if action != ActionContinue {
		t.Errorf("OnResponseBody() action = %v, want Continue", action)
	}
	got := string(host.responseBody)
	if got == "" {
		t.Fatalf("response body empty")
	}
	if !strings.Contains(got, "EXAMPLE.COM") {
		t.Errorf("response body = %q, want to contain EXAMPLE.COM", got)
	}
}

func TestDriverWaitingThenResumeCompletesTransaction(t *testing.T) {
	cfg, err := Load([]byte(`{"nodes": [
		{"type": "driver_test_waiting", "name": "c", "input": "request_body", "output": "response_body"}
	]}`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	host := &fakeHost{requestBody: []byte(`{"x":1}`), responseHeaders: nil}
	d, err := NewDriver(cfg, host)
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}
	// The registered waiting factory has no resume function, so this checks
	// that the default Waiting -> Done(nil) resume unblocks the transaction.
	// The Content-Type header makes request_body a Json payload.
	host.requestHeaders = [][2]string{{"Content-Type", "application/json"}}

	action := d.OnRequestBody(len(host.requestBody), true)
	if action != ActionPause {
		t.Fatalf("OnRequestBody() action = %v, want Pause (c is Waiting)", action)
	}

	d.OnHTTPCallResponse(1)
	if !host.resumed {
		t.Errorf("ResumeHTTPRequest was not called")
	}

	st, ok := d.data.Get("c")
	if !ok || !st.IsDone() {
		t.Errorf("node c state = %#v, want Done after resume", st)
	}
}

func TestDriverFailShortCircuitsDependents(t *testing.T) {
	cfg, err := Load([]byte(`{"nodes": [
		{"type": "driver_test_failing", "name": "c", "output": "r"},
		{"type": "driver_test_echo_upper", "name": "r", "output": "response_body"}
	]}`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	host := &fakeHost{}
	d, err := NewDriver(cfg, host)
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}

	d.OnRequestHeaders(true)
	d.OnRequestBody(0, true)
	d.OnResponseHeaders(true)
	d.OnResponseBody(0, true)

	cState, _ := d.data.Get("c")
	if !cState.IsFail() {
		t.Errorf("c state = %#v, want Fail", cState)
	}
	if _, ok := d.data.Get("r"); ok {
		t.Errorf("r should never have run once c failed")
	}
	if host.sentHTTP {
		t.Errorf("no user node called SendHTTPResponse, but host recorded one")
	}
}

func TestDriverDebugTraceProducesJSONBody(t *testing.T) {
	cfg, err := Load([]byte(`{"nodes": [
		{"type": "driver_test_echo_upper", "name": "t", "input": "request_headers", "output": "response_body"}
	]}`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	host := &fakeHost{
		requestHeaders: [][2]string{{"Host", "example.com"}, {debugTraceHeader, "true"}},
	}
	d, err := NewDriver(cfg, host)
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}

	d.OnRequestHeaders(true)
	d.OnRequestBody(0, true)
	d.OnResponseHeaders(true)
	d.OnResponseBody(0, true)

	ct, ok := host.GetHTTPResponseHeader("Content-Type")
	if !ok || ct != "application/json" {
		t.Errorf("Content-Type = (%q, %v), want (application/json, true)", ct, ok)
	}
	if _, ok := host.GetHTTPResponseHeader("Content-Length"); ok {
		t.Errorf("Content-Length should be cleared while tracing")
	}
	if !strings.HasPrefix(string(host.responseBody), "[") {
		t.Errorf("response body = %q, want a JSON array", host.responseBody)
	}
}

func TestDriverDeclaredOrderTieBreak(t *testing.T) {
	var order []string
	RegisterNodeType("driver_test_order_a", echoUpperFactory{run: func(Host, Input) State {
		order = append(order, "a")
		return Done(nil)
	}})
	RegisterNodeType("driver_test_order_b", echoUpperFactory{run: func(Host, Input) State {
		order = append(order, "b")
		return Done(nil)
	}})

	cfg, err := Load([]byte(`{"nodes": [
		{"type": "driver_test_order_b", "name": "b", "input": "request_headers"},
		{"type": "driver_test_order_a", "name": "a", "input": "request_headers"}
	]}`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	host := &fakeHost{requestHeaders: [][2]string{{"Host", "x"}}}
	d, err := NewDriver(cfg, host)
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}
	d.OnRequestHeaders(true)

	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Errorf("fire order = %v, want [b a] (declared order)", order)
	}
}
