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

package response

import (
	"testing"
	"time"

	"dagflow/internal/engine"
	"dagflow/payload"
)

type fakeHost struct {
	sentStatus  int
	sentHeaders [][2]string
	sentBody    []byte
	sentHTTP    bool

	bodySet []byte
}

func (h *fakeHost) GetHTTPRequestHeaders() [][2]string          { return nil }
func (h *fakeHost) GetHTTPRequestHeader(string) (string, bool)  { return "", false }
func (h *fakeHost) GetHTTPRequestBody(int) ([]byte, bool)       { return nil, false }
func (h *fakeHost) SetHTTPRequestHeaders([][2]string)           {}
func (h *fakeHost) SetHTTPRequestHeader(string, string)         {}
func (h *fakeHost) SetHTTPRequestBody([]byte)                   {}
func (h *fakeHost) GetHTTPResponseHeaders() [][2]string         { return nil }
func (h *fakeHost) GetHTTPResponseHeader(string) (string, bool) { return "", false }
func (h *fakeHost) GetHTTPResponseBody(int) ([]byte, bool)      { return nil, false }
func (h *fakeHost) SetHTTPResponseHeaders([][2]string)          {}
func (h *fakeHost) SetHTTPResponseHeader(string, string)        {}
func (h *fakeHost) ResumeHTTPRequest()                          {}

func (h *fakeHost) DispatchHTTPCall(string, [][2]string, []byte, time.Duration) (uint32, error) {
	return 0, nil
}

func (h *fakeHost) GetHTTPCallResponseHeader(string) (string, bool) { return "", false }
func (h *fakeHost) GetHTTPCallResponseBody() []byte                 { return nil }

func (h *fakeHost) SetHTTPResponseBody(body []byte) { h.bodySet = body }

func (h *fakeHost) SendHTTPResponse(status int, headers [][2]string, body []byte) {
	h.sentHTTP = true
	h.sentStatus = status
	h.sentHeaders = headers
	h.sentBody = body
}

func newNode(t *testing.T, params map[string]any) engine.Node {
	t.Helper()
	cfg, err := (factory{}).NewConfig("r", nil, params)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	return (factory{}).NewNode(cfg)
}

func TestRunSendsFullResponseOutsideBodyPhase(t *testing.T) {
	host := &fakeHost{}
	n := newNode(t, map[string]any{"status": float64(201)})

	body := payload.JSON(map[string]any{"y": float64(2)})
	state := n.Run(host, engine.Input{Data: []*payload.Payload{body}, Phase: engine.PhaseResponseHeaders})

	if !state.IsDone() {
		t.Fatalf("state = %#v, want Done", state)
	}
	if !host.sentHTTP {
		t.Fatalf("SendHTTPResponse was not called")
	}
	if host.sentStatus != 201 {
		t.Errorf("sentStatus = %d, want 201", host.sentStatus)
	}
}

func TestRunReplacesBodyDuringBodyPhase(t *testing.T) {
	host := &fakeHost{}
	n := newNode(t, nil)

	body := payload.Raw([]byte("hi"))
	state := n.Run(host, engine.Input{Data: []*payload.Payload{body}, Phase: engine.PhaseResponseBody})

	if !state.IsDone() {
		t.Fatalf("state = %#v, want Done", state)
	}
	if host.sentHTTP {
		t.Errorf("SendHTTPResponse should not be called during the body phase")
	}
	if string(host.bodySet) != "hi" {
		t.Errorf("bodySet = %q, want %q", host.bodySet, "hi")
	}
}

func TestRunWarnsOnceWhenStatusSetDuringBodyPhase(t *testing.T) {
	host := &fakeHost{}
	n := newNode(t, map[string]any{"status": float64(500)})

	for i := 0; i < 2; i++ {
		state := n.Run(host, engine.Input{Phase: engine.PhaseResponseBody})
		if !state.IsDone() {
			t.Fatalf("state = %#v, want Done", state)
		}
	}

	rn := n.(*node)
	if !rn.warnedAt {
		t.Errorf("warnedAt = false, want true after first body-phase run")
	}
}
