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

// Package devhost implements the engine's Host ABI on top of net/http, so
// the scheduler can be driven by real HTTP traffic instead of a
// sandboxed proxy runtime. One Host is built per transaction by Handler
// and discarded once the response is written.
package devhost

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"dagflow/internal/engine"
)

// Host is the net/http-backed engine.Host for one transaction. Its
// request/response header and body fields start as whatever the
// downstream client sent and the upstream answered, and are mutated in
// place by SetHTTP* calls the way a sandboxed proxy host would apply them
// before forwarding.
type Host struct {
	client *http.Client

	mu          sync.Mutex
	reqHeaders  [][2]string
	reqBody     []byte
	respHeaders [][2]string
	respBody    []byte
	respStatus  int

	sent        bool
	sentStatus  int
	sentHeaders [][2]string
	sentBody    []byte

	driverMu sync.Mutex
	driver   *engine.Driver
	pauseCh  chan struct{}

	nextToken    uint32
	pending      map[uint32]callResult
	currentToken uint32
}

type callResult struct {
	headers [][2]string
	body    []byte
}

// New builds a Host seeded from r's headers and body, dispatching
// subrequests through client. client must not be nil; New does not
// supply a default so a caller can't forget to bound its timeouts.
func New(client *http.Client, r *http.Request) (*Host, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("devhost: reading request body: %w", err)
	}

	// net/http promotes the Host header into r.Host and strips it from
	// r.Header, so it has to be added back for nodes that read it like
	// any other request header.
	headers := headerPairs(r.Header)
	if r.Host != "" {
		headers = append([][2]string{{"Host", r.Host}}, headers...)
	}

	return &Host{
		client:     client,
		reqHeaders: headers,
		reqBody:    body,
		respStatus: http.StatusOK,
		pauseCh:    make(chan struct{}, 1),
		pending:    map[uint32]callResult{},
	}, nil
}

// Attach records the Driver this Host's subrequests resume, completing
// the construction cycle (the Driver itself needs a built Host to be
// constructed from). Must be called once before the first phase callback.
func (h *Host) Attach(d *engine.Driver) { h.driver = d }

// RunDriver serializes every entry into the transaction's Driver behind
// driverMu, so a subrequest landing on its own goroutine can never call
// OnHTTPCallResponse while a phase callback on the handler's goroutine is
// still recording the Waiting state that call is meant to resolve. A real
// proxy-wasm host gives this guarantee by construction (one callback
// active per VM at a time); a net/http harness has to earn it.
func (h *Host) RunDriver(fn func(d *engine.Driver)) {
	h.driverMu.Lock()
	defer h.driverMu.Unlock()
	fn(h.driver)
}

// Sent reports whether a node already terminated the transaction via
// SendHTTPResponse.
func (h *Host) Sent() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sent
}

// Response returns the final status, headers, and body to write to the
// downstream client: whatever a node sent via SendHTTPResponse, or
// otherwise the (possibly node-mutated) proxied response.
func (h *Host) Response() (status int, headers [][2]string, body []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sent {
		return h.sentStatus, h.sentHeaders, h.sentBody
	}
	return h.respStatus, h.respHeaders, h.respBody
}

// SetUpstreamResponse seeds the Host's response fields from the
// upstream's actual answer, ahead of the response phase callbacks.
func (h *Host) SetUpstreamResponse(status int, header http.Header, body []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.respStatus = status
	h.respHeaders = headerPairs(header)
	h.respBody = body
}

// RequestForUpstream builds the (possibly node-mutated) request to send
// upstream: method and URL from the original request, current headers
// and body from this Host's state.
func (h *Host) RequestForUpstream(method, rawURL string) (*http.Request, error) {
	h.mu.Lock()
	headers := h.reqHeaders
	body := h.reqBody
	h.mu.Unlock()

	req, err := http.NewRequest(method, rawURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	for _, kv := range headers {
		req.Header.Add(kv[0], kv[1])
	}
	return req, nil
}

func headerPairs(h http.Header) [][2]string {
	var out [][2]string
	for name, values := range h {
		for _, v := range values {
			out = append(out, [2]string{name, v})
		}
	}
	return out
}

func findHeader(pairs [][2]string, name string) (string, bool) {
	for _, kv := range pairs {
		if strings.EqualFold(kv[0], name) {
			return kv[1], true
		}
	}
	return "", false
}

// setHeader applies the SetHTTP*Header "empty value removes" convention
// to one of this Host's header slices.
func setHeader(pairs [][2]string, name, value string) [][2]string {
	out := pairs[:0:0]
	found := false
	for _, kv := range pairs {
		if strings.EqualFold(kv[0], name) {
			found = true
			if value == "" {
				continue
			}
			out = append(out, [2]string{name, value})
			continue
		}
		out = append(out, kv)
	}
	if !found && value != "" {
		out = append(out, [2]string{name, value})
	}
	return out
}

func (h *Host) GetHTTPRequestHeaders() [][2]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][2]string(nil), h.reqHeaders...)
}

func (h *Host) GetHTTPRequestHeader(name string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return findHeader(h.reqHeaders, name)
}

func (h *Host) GetHTTPRequestBody(size int) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if size <= 0 || size > len(h.reqBody) {
		size = len(h.reqBody)
	}
	return h.reqBody[:size], true
}

func (h *Host) SetHTTPRequestHeaders(headers [][2]string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reqHeaders = headers
}

func (h *Host) SetHTTPRequestHeader(name, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reqHeaders = setHeader(h.reqHeaders, name, value)
}

func (h *Host) SetHTTPRequestBody(body []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reqBody = body
}

func (h *Host) GetHTTPResponseHeaders() [][2]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][2]string(nil), h.respHeaders...)
}

func (h *Host) GetHTTPResponseHeader(name string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return findHeader(h.respHeaders, name)
}

func (h *Host) GetHTTPResponseBody(size int) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if size <= 0 || size > len(h.respBody) {
		size = len(h.respBody)
	}
	return h.respBody[:size], true
}

func (h *Host) SetHTTPResponseHeaders(headers [][2]string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.respHeaders = headers
}

func (h *Host) SetHTTPResponseHeader(name, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.respHeaders = setHeader(h.respHeaders, name, value)
}

func (h *Host) SetHTTPResponseBody(body []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.respBody = body
}

func (h *Host) SendHTTPResponse(status int, headers [][2]string, body []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = true
	h.sentStatus = status
	h.sentHeaders = headers
	h.sentBody = body
}

// DispatchHTTPCall fires the subrequest on a goroutine so the caller
// (running inside the scheduler's Run pass) never re-enters the driver
// before its own Waiting state is recorded; the goroutine calls back into
// OnHTTPCallResponse once the response lands, which is what actually
// unblocks ResumeHTTPRequest's waiter.
func (h *Host) DispatchHTTPCall(hostPort string, headers [][2]string, body []byte, timeout time.Duration) (uint32, error) {
	method, path := "GET", "/"
	var filtered [][2]string
	for _, kv := range headers {
		switch kv[0] {
		case ":method":
			method = kv[1]
		case ":path":
			path = kv[1]
		default:
			filtered = append(filtered, kv)
		}
	}

	h.mu.Lock()
	h.nextToken++
	token := h.nextToken
	h.mu.Unlock()

	url := "http://" + hostPort + path
	req, err := http.NewRequest(method, url, strings.NewReader(string(body)))
	if err != nil {
		return 0, fmt.Errorf("devhost: building subrequest: %w", err)
	}
	for _, kv := range filtered {
		req.Header.Add(kv[0], kv[1])
	}

	client := h.client
	if timeout > 0 {
		c := *h.client
		c.Timeout = timeout
		client = &c
	}

	go func() {
		resp, err := client.Do(req)
		var result callResult
		if err == nil {
			defer resp.Body.Close()
			result.headers = headerPairs(resp.Header)
			result.body, _ = io.ReadAll(resp.Body)
		}

		h.mu.Lock()
		h.pending[token] = result
		h.currentToken = token
		h.mu.Unlock()

		h.RunDriver(func(d *engine.Driver) { d.OnHTTPCallResponse(token) })
	}()

	return token, nil
}

func (h *Host) GetHTTPCallResponseHeader(name string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.pending[h.currentToken]
	return findHeader(r.headers, name)
}

func (h *Host) GetHTTPCallResponseBody() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending[h.currentToken].body
}

// ResumeHTTPRequest unblocks ServeHTTP's wait for the current phase.
func (h *Host) ResumeHTTPRequest() {
	select {
	case h.pauseCh <- struct{}{}:
	default:
	}
}

// awaitResume blocks until ResumeHTTPRequest is called. Called by Handler
// between phase callbacks whenever one returns engine.ActionPause.
func (h *Host) awaitResume() {
	<-h.pauseCh
}
