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
	"context"
	"strconv"
	"time"

	"dagflow/internal/dlog"
	"dagflow/internal/telemetry"
	"dagflow/payload"
)

const debugTraceHeader = "X-DataKit-Debug-Trace"

// implicit node names the driver itself seeds or drains; see Config's
// reservedNodeNames, which this must stay in sync with.
const (
	nodeRequestHeaders        = "request_headers"
	nodeRequestBody           = "request_body"
	nodeServiceRequestHeaders = "service_request_headers"
	nodeServiceRequestBody    = "service_request_body"
	nodeServiceResponseHeads  = "service_response_headers"
	nodeServiceResponseBody   = "service_response_body"
	nodeResponseHeaders       = "response_headers"
	nodeResponseBody          = "response_body"
)

// TraceSink archives a finished trace; tracestore.Sink satisfies this
// without the engine importing that package directly.
type TraceSink interface {
	Save(ctx context.Context, txID string, trace []byte) error
}

// DriverOption configures optional Driver behavior.
type DriverOption func(*Driver)

// WithLogger overrides the driver's logger, which otherwise discards
// everything.
func WithLogger(l dlog.Logger) DriverOption {
	return func(d *Driver) { d.logger = l }
}

// WithTraceSink arranges for the rendered debug trace to be archived
// under txID when tracing was enabled for this transaction.
func WithTraceSink(sink TraceSink, txID string) DriverOption {
	return func(d *Driver) {
		d.traceSink = sink
		d.txID = txID
	}
}

// Driver runs one transaction's worth of the node graph against a Host,
// coupling the implicit node names to the HTTP phase callbacks that drive
// the scheduler. One Driver is created per transaction; the Config it is
// built from is shared, read-only, across every transaction.
type Driver struct {
	config *Config
	nodes  map[string]Node
	data   *Data
	host   Host
	trace  *Trace
	logger dlog.Logger

	traceSink TraceSink
	txID      string

	debugResponseBodyContentType string
	waitStarted                  map[uint32]time.Time

	doRequestHeaders        bool
	doRequestBody           bool
	doServiceRequestHeaders bool
	doServiceRequestBody    bool
	doServiceResponseHeads  bool
	doServiceResponseBody   bool
	doResponseHeaders       bool
	doResponseBody          bool
}

// NewDriver builds a transaction-scoped Driver from a shared Config and a
// Host. It instantiates a fresh Node for every configured node and
// precomputes which implicit edges are actually wired, so phase callbacks
// can skip host calls for sources/sinks nobody connected to.
func NewDriver(config *Config, host Host, opts ...DriverOption) (*Driver, error) {
	nodes, err := config.BuildNodes()
	if err != nil {
		return nil, err
	}

	graph := config.Graph()
	d := &Driver{
		config:       config,
		nodes:        nodes,
		data:         NewData(graph),
		host:         host,
		trace:        NewTrace(config.NodeTypes()),
		logger:       dlog.Nop{},
		waitStarted:  map[uint32]time.Time{},

		doRequestHeaders:        graph.HasDependents(nodeRequestHeaders),
		doRequestBody:           graph.HasDependents(nodeRequestBody),
		doServiceRequestHeaders: graph.HasProviders(nodeServiceRequestHeaders),
		doServiceRequestBody:    graph.HasProviders(nodeServiceRequestBody),
		doServiceResponseHeads:  graph.HasDependents(nodeServiceResponseHeads),
		doServiceResponseBody:   graph.HasDependents(nodeServiceResponseBody),
		doResponseHeaders:       graph.HasProviders(nodeResponseHeaders),
		doResponseBody:          graph.HasProviders(nodeResponseBody),
	}

	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func headerEnabled(value string, ok bool) bool {
	if !ok {
		return false
	}
	return value != "off" && value != "false" && value != "0"
}

func (d *Driver) setData(name string, s State) {
	d.trace.recordState(name, s)
	d.data.Set(name, s)
}

// OnRequestHeaders handles the host's request-headers phase callback.
func (d *Driver) OnRequestHeaders(eof bool) Action {
	if v, ok := d.host.GetHTTPRequestHeader(debugTraceHeader); headerEnabled(v, ok) {
		d.trace.Enable(true)
		d.doResponseBody = true
	}

	if d.doRequestHeaders {
		d.setData(nodeRequestHeaders, Done(payload.FromHeaderPairs(d.host.GetHTTPRequestHeaders())))
	}

	return d.runNodes(PhaseRequestHeaders)
}

// OnRequestBody handles the host's request-body phase callback. size is
// the number of bytes available so far; eof marks the final chunk. A
// non-EOF chunk pauses the transaction without seeding or draining
// anything; the driver waits for the final chunk.
func (d *Driver) OnRequestBody(size int, eof bool) Action {
	if !eof {
		return ActionPause
	}

	if d.doRequestBody {
		if bytes, ok := d.host.GetHTTPRequestBody(size); ok {
			ct, _ := d.host.GetHTTPRequestHeader("Content-Type")
			d.setData(nodeRequestBody, Done(fromBytesOrNil(bytes, ct)))
		}
	}

	action := d.runNodes(PhaseRequestBody)

	if d.doServiceRequestHeaders {
		if p := d.data.FirstInputFor(nodeServiceRequestHeaders); p != nil {
			d.host.SetHTTPRequestHeaders(p.ToHeaderPairs())
		}
	}
	if d.doServiceRequestBody {
		if p := d.data.FirstInputFor(nodeServiceRequestBody); p != nil {
			if b, err := p.ToBytes(); err == nil {
				d.host.SetHTTPRequestBody(b)
			}
		}
	}

	return action
}

// OnResponseHeaders handles the host's response-headers phase callback.
func (d *Driver) OnResponseHeaders(eof bool) Action {
	if d.doServiceResponseHeads {
		d.setData(nodeServiceResponseHeads, Done(payload.FromHeaderPairs(d.host.GetHTTPResponseHeaders())))
	}

	action := d.runNodes(PhaseResponseHeaders)

	if d.doResponseHeaders {
		if p := d.data.FirstInputFor(nodeResponseHeaders); p != nil {
			d.host.SetHTTPResponseHeaders(p.ToHeaderPairs())
		}
	}
	if d.doResponseBody {
		if p := d.data.FirstInputFor(nodeResponseBody); p != nil {
			if n, ok := p.Len(); ok {
				d.host.SetHTTPResponseHeader("Content-Length", strconv.Itoa(n))
			}
			d.host.SetHTTPResponseHeader("Content-Encoding", "")
			if ct, ok := p.ContentType(); ok {
				d.host.SetHTTPResponseHeader("Content-Type", ct)
			}
		}
	}

	d.debugDoneHeaders()
	return action
}

// OnResponseBody handles the host's response-body phase callback. A
// non-EOF chunk pauses the transaction without seeding or draining
// anything; the driver waits for the final chunk.
func (d *Driver) OnResponseBody(size int, eof bool) Action {
	if !eof {
		return ActionPause
	}

	if d.doServiceResponseBody {
		if bytes, ok := d.host.GetHTTPResponseBody(size); ok {
			ct, _ := d.host.GetHTTPResponseHeader("Content-Type")
			d.setData(nodeServiceResponseBody, Done(fromBytesOrNil(bytes, ct)))
		}
	}

	action := d.runNodes(PhaseResponseBody)

	if d.doResponseBody {
		if p := d.data.FirstInputFor(nodeResponseBody); p != nil {
			if b, err := p.ToBytes(); err == nil {
				d.host.SetHTTPResponseBody(b)
			} else {
				d.host.SetHTTPResponseBody(nil)
			}
		} else if d.trace.Enabled() {
			if bytes, ok := d.host.GetHTTPResponseBody(size); ok {
				d.setData(nodeResponseBody, Done(fromBytesOrNil(bytes, d.debugResponseBodyContentType)))
			}
		}
	}

	d.debugDone()
	return action
}

// OnHTTPCallResponse handles the host's notification that a subrequest
// dispatched via Host.DispatchHTTPCall has completed. It resumes the one
// node Waiting on token (if any; an unmatched token is logged at warn
// level and otherwise ignored), runs the scheduler to quiescence, then
// unblocks the paused transaction.
func (d *Driver) OnHTTPCallResponse(token uint32) {
	nodeTypes := d.config.NodeTypes()
	matched := false
	for _, name := range d.config.NodeNames() {
		inputs, ok := d.data.ResumeInputsFor(name, token)
		if !ok {
			continue
		}

		node := d.nodes[name]
		state := node.Resume(d.host, Input{Data: inputs, Phase: PhaseCallResponse})
		d.trace.Run(name, RunModeResume, state)
		d.recordOutcome(nodeTypes[name], state)

		if started, ok := d.waitStarted[token]; ok {
			telemetry.ObserveResumeLatency(time.Since(started))
			delete(d.waitStarted, token)
		}

		d.data.Set(name, state)
		matched = true
		break
	}
	if !matched {
		d.logger.Warnf("dagflow: no node is waiting on call response token %d", token)
	}

	d.runNodes(PhaseCallResponse)
	d.host.ResumeHTTPRequest()
}

// runNodes drives the scheduler to quiescence: repeated passes over the
// declared node order until a pass fires nothing.
func (d *Driver) runNodes(phase Phase) Action {
	action := ActionContinue
	nodeTypes := d.config.NodeTypes()

	for {
		telemetry.SchedulerPass(phase.String())
		anyRan := false

		for _, name := range d.config.NodeNames() {
			inputs, ok := d.data.InputsFor(name)
			if !ok {
				continue
			}
			anyRan = true

			node := d.nodes[name]
			state := node.Run(d.host, Input{Data: inputs, Phase: phase})
			d.trace.Run(name, RunModeRun, state)
			telemetry.NodeRun(nodeTypes[name])
			d.recordOutcome(nodeTypes[name], state)

			if state.IsWaiting() {
				action = ActionPause
				d.waitStarted[state.Token()] = time.Now()
			}
			d.data.Set(name, state)
		}

		if !anyRan {
			break
		}
	}

	return action
}

func (d *Driver) recordOutcome(nodeType string, state State) {
	switch {
	case state.IsWaiting():
		telemetry.NodeWait(nodeType)
	case state.IsFail():
		telemetry.NodeFail(nodeType)
	}
}

func (d *Driver) debugDoneHeaders() {
	if !d.trace.Enabled() {
		return
	}
	ct, _ := d.host.GetHTTPResponseHeader("Content-Type")
	d.debugResponseBodyContentType = ct
	d.host.SetHTTPResponseHeader("Content-Type", "application/json")
	d.host.SetHTTPResponseHeader("Content-Length", "")
	d.host.SetHTTPResponseHeader("Content-Encoding", "")
}

func (d *Driver) debugDone() {
	if !d.trace.Enabled() {
		return
	}
	trace, err := d.trace.JSON()
	if err != nil {
		d.logger.Errorf("dagflow: rendering debug trace: %v", err)
		return
	}
	d.host.SetHTTPResponseBody(trace)

	if d.traceSink != nil {
		if err := d.traceSink.Save(context.Background(), d.txID, trace); err != nil {
			d.logger.Warnf("dagflow: archiving debug trace for %s: %v", d.txID, err)
		}
	}
}

// fromBytesOrNil adapts payload.FromBytes's (value, ok) result to a
// possibly-nil payload, matching the Rust Option<Payload> that
// Payload::from_bytes returns when no content type was given.
func fromBytesOrNil(b []byte, contentType string) *payload.Payload {
	p, ok := payload.FromBytes(b, contentType)
	if !ok {
		return nil
	}
	return p
}
