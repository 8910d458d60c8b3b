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

package devhost

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"dagflow/internal/dlog"
	"dagflow/internal/engine"
)

// Handler serves HTTP requests by running each one through a fresh
// engine.Driver built from a shared Config: one Host and one Driver per
// transaction, the graph config and upstream client shared across all of
// them.
type Handler struct {
	Config   *engine.Config
	Upstream string // base "scheme://host:port" a request is proxied to once node phases finish; empty skips proxying
	Client   *http.Client
	Logger   dlog.Logger

	// NewDriverOptions lets a caller attach tracing or other per-Driver
	// options (see engine.WithTraceSink) without Handler itself
	// depending on tracestore.
	NewDriverOptions func(txID string) []engine.DriverOption
}

// ServeHTTP drives one transaction: request-phase callbacks, an optional
// upstream round trip, response-phase callbacks, then writes whatever the
// Driver (or a Response node, via SendHTTPResponse) decided the client
// should see.
//
// Pausing assumes at most one node is Waiting on a subrequest at a time
// within a given phase; a graph with multiple concurrent Call nodes in
// the same pass can resume the transaction as soon as the first
// subrequest lands, before the others finish. The stock Call node's own
// tests never exercise more than one subrequest in flight at once.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	host, err := New(client, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var opts []engine.DriverOption
	if h.Logger != nil {
		opts = append(opts, engine.WithLogger(h.Logger))
	}
	if h.NewDriverOptions != nil {
		opts = append(opts, h.NewDriverOptions(txID(r))...)
	}

	driver, err := engine.NewDriver(h.Config, host, opts...)
	if err != nil {
		http.Error(w, fmt.Sprintf("building transaction: %v", err), http.StatusInternalServerError)
		return
	}
	host.Attach(driver)

	if h.runPhase(host, func(d *engine.Driver) engine.Action { return d.OnRequestHeaders(true) }) {
		host.awaitResume()
	}
	if h.runPhase(host, func(d *engine.Driver) engine.Action { return d.OnRequestBody(len(host.reqBody), true) }) {
		host.awaitResume()
	}

	if !host.Sent() && h.Upstream != "" {
		h.forward(host, r)
	}

	if h.runPhase(host, func(d *engine.Driver) engine.Action { return d.OnResponseHeaders(true) }) {
		host.awaitResume()
	}
	_, _, body := host.Response()
	if h.runPhase(host, func(d *engine.Driver) engine.Action { return d.OnResponseBody(len(body), true) }) {
		host.awaitResume()
	}

	h.write(w, host)
}

// runPhase calls fn through the Host's RunDriver serialization and
// reports whether the transaction should now pause for a subrequest.
func (h *Handler) runPhase(host *Host, fn func(d *engine.Driver) engine.Action) bool {
	var action engine.Action
	host.RunDriver(func(d *engine.Driver) { action = fn(d) })
	return action == engine.ActionPause
}

// forward sends the (possibly node-mutated) request upstream and seeds
// the Host's response fields from the answer. A transport failure
// becomes a 502 written directly, bypassing response-phase nodes, since
// there is no upstream response for them to process.
func (h *Handler) forward(host *Host, r *http.Request) {
	req, err := host.RequestForUpstream(r.Method, h.Upstream+r.URL.RequestURI())
	if err != nil {
		host.SendHTTPResponse(http.StatusBadGateway, nil, []byte(err.Error()))
		return
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		host.SendHTTPResponse(http.StatusBadGateway, nil, []byte(err.Error()))
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		host.SendHTTPResponse(http.StatusBadGateway, nil, []byte(err.Error()))
		return
	}

	host.SetUpstreamResponse(resp.StatusCode, resp.Header, body)
}

func (h *Handler) write(w http.ResponseWriter, host *Host) {
	status, headers, body := host.Response()
	for _, kv := range headers {
		w.Header().Add(kv[0], kv[1])
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(body) > 0 {
		w.Write(body)
	}
}

// txID derives a transaction id for trace archival from the request,
// falling back to a header the embedding deployment can set at its edge;
// a demo harness has no distributed tracing id generator of its own.
func txID(r *http.Request) string {
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	return fmt.Sprintf("%s-%d", r.RemoteAddr, time.Now().UnixNano())
}
