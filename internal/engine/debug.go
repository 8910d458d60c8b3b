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
	"encoding/json"

	"dagflow/payload"
)

// RunMode distinguishes a node's first invocation from a resume when
// recording a trace action.
type RunMode int

const (
	RunModeRun RunMode = iota
	RunModeResume
)

// traceAction is one entry of a recorded trace, matching the historical
// {action, name, type, value} shape: "run"/"resume" record an invocation,
// "value"/"wait"/"fail" record the resulting state.
type traceAction struct {
	Action string `json:"action"`
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`
	Value  any    `json:"value,omitempty"`
}

// Trace is an append-only recorder of every node invocation and state
// transition within one transaction, owned exclusively by its Driver.
// Recording is a no-op until Enable is called, so a Driver can always hold
// a Trace and only pay for it on the transactions that asked for tracing.
type Trace struct {
	enabled   bool
	nodeTypes map[string]string
	actions   []traceAction
}

// NewTrace builds a Trace aware of nodeTypes (name -> type tag), used to
// annotate "run"/"resume" actions with the node's type.
func NewTrace(nodeTypes map[string]string) *Trace {
	return &Trace{nodeTypes: nodeTypes}
}

// Enable turns tracing on or off for the rest of the transaction.
func (t *Trace) Enable(on bool) { t.enabled = on }

// Enabled reports whether tracing is currently recording.
func (t *Trace) Enabled() bool { return t.enabled }

// Run records a node invocation followed by the resulting state.
func (t *Trace) Run(name string, mode RunMode, state State) {
	if !t.enabled {
		return
	}
	action := "run"
	if mode == RunModeResume {
		action = "resume"
	}
	t.actions = append(t.actions, traceAction{
		Action: action,
		Name:   name,
		Type:   t.nodeTypes[name],
	})
	t.recordState(name, state)
}

func (t *Trace) recordState(name string, state State) {
	if !t.enabled {
		return
	}
	switch {
	case state.IsWaiting():
		t.actions = append(t.actions, traceAction{Action: "wait", Name: name})
	case state.IsFail():
		dt, v := describePayload(state.Payload())
		t.actions = append(t.actions, traceAction{Action: "fail", Name: name, Type: dt, Value: v})
	case state.IsDone():
		dt, v := describePayload(state.Payload())
		t.actions = append(t.actions, traceAction{Action: "value", Name: name, Type: dt, Value: v})
	}
}

// describePayload reports a payload's trace "type" label and its decoded
// JSON value (best effort; a payload that can't be decoded to JSON, such
// as non-UTF-8 raw bytes, is reported with a nil value rather than
// failing the trace).
func describePayload(p *payload.Payload) (string, any) {
	if p == nil {
		return "none", nil
	}
	dt, ok := p.ContentType()
	if !ok {
		if p.IsError() {
			dt = "error"
		} else {
			dt = "raw"
		}
	}
	v, err := p.ToJSON()
	if err != nil {
		return dt, nil
	}
	return dt, v
}

// JSON renders the recorded trace as a compact JSON array, suitable to
// substitute directly as the downstream response body.
func (t *Trace) JSON() ([]byte, error) {
	return json.Marshal(t.actions)
}
