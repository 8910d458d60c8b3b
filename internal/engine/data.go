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

import "dagflow/payload"

// Data holds the per-transaction state of every node: the graph that says
// who feeds whom, and a state slot per node name. It has no notion of
// phases or HTTP; Driver is the layer that drives it through a request's
// lifecycle.
type Data struct {
	graph  *DependencyGraph
	states map[string]State
}

// NewData creates a transaction-scoped store bound to graph. graph is
// shared read-only across the life of the transaction; states is private
// to this Data.
func NewData(graph *DependencyGraph) *Data {
	return &Data{graph: graph, states: map[string]State{}}
}

// Set records name's current state, overwriting any previous one.
func (d *Data) Set(name string, s State) {
	d.states[name] = s
}

// Get returns name's current state and whether one has been recorded.
func (d *Data) Get(name string) (State, bool) {
	s, ok := d.states[name]
	return s, ok
}

// canTrigger reports whether name is eligible to run right now: it must
// not already be Done or Fail, it must either have no recorded state or be
// Waiting on exactly the given token (nil token means "not resuming"), and
// every one of its inputs must be Done.
func (d *Data) canTrigger(name string, waiting *uint32) bool {
	if s, ok := d.states[name]; ok {
		switch {
		case s.IsDone(), s.IsFail():
			return false
		case s.IsWaiting():
			if waiting == nil || s.Token() != *waiting {
				return false
			}
		}
	}

	ready := true
	d.graph.EachInput(name, func(provider string) {
		s, ok := d.states[provider]
		if !ok || !s.IsDone() {
			ready = false
		}
	})
	return ready
}

// CanTrigger reports whether name is eligible to run right now, without
// resuming from a prior Waiting state.
func (d *Data) CanTrigger(name string) bool {
	return d.canTrigger(name, nil)
}

// CanResume reports whether name, currently Waiting on token, is eligible
// to resume.
func (d *Data) CanResume(name string, token uint32) bool {
	return d.canTrigger(name, &token)
}

// InputsFor returns the Done payloads of name's inputs, in declared order,
// if name can trigger; the second result is false otherwise. A provider
// that is Done(nil) contributes a nil slot, not an omitted one, so callers
// can tell "no providers" from "only providers with nothing to say".
func (d *Data) InputsFor(name string) ([]*payload.Payload, bool) {
	return d.inputsFor(name, nil)
}

// ResumeInputsFor is InputsFor for a node resuming from Waiting(token).
func (d *Data) ResumeInputsFor(name string, token uint32) ([]*payload.Payload, bool) {
	return d.inputsFor(name, &token)
}

func (d *Data) inputsFor(name string, waiting *uint32) ([]*payload.Payload, bool) {
	if !d.canTrigger(name, waiting) {
		return nil, false
	}
	var out []*payload.Payload
	d.graph.EachInput(name, func(provider string) {
		if s, ok := d.states[provider]; ok && s.IsDone() {
			out = append(out, s.Payload())
		}
	})
	return out, true
}

// FirstInputFor returns the payload of the first Done input of an
// implicit node such as response_body, if the node can trigger. It does
// not distinguish "not triggerable" from "triggerable with a Done(nil)
// first input"; callers that need that distinction should use InputsFor.
func (d *Data) FirstInputFor(name string) *payload.Payload {
	inputs, ok := d.InputsFor(name)
	if !ok || len(inputs) == 0 {
		return nil
	}
	return inputs[0]
}
