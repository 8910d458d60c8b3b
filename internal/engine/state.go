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

// Phase identifies which point of the HTTP request/response lifecycle a
// scheduler pass is running in.
type Phase int

const (
	PhaseRequestHeaders Phase = iota
	PhaseRequestBody
	PhaseResponseHeaders
	PhaseResponseBody
	PhaseCallResponse
)

func (p Phase) String() string {
	switch p {
	case PhaseRequestHeaders:
		return "request_headers"
	case PhaseRequestBody:
		return "request_body"
	case PhaseResponseHeaders:
		return "response_headers"
	case PhaseResponseBody:
		return "response_body"
	case PhaseCallResponse:
		return "call_response"
	default:
		return "unknown"
	}
}

// stateKind discriminates the lifecycle of a single node's output slot.
type stateKind int

const (
	stateWaiting stateKind = iota
	stateDone
	stateFail
)

// State is the lifecycle of one node's output slot within a transaction:
// Waiting on an asynchronous operation identified by a token, Done with an
// optional result payload, or Fail with an optional diagnostic payload.
type State struct {
	kind    stateKind
	token   uint32
	payload *payload.Payload
}

// Waiting marks a node as suspended on an asynchronous operation. token
// must match the value later passed to Data.ResumeInputsFor/CanResume on
// resume, so a stale callback for a superseded call is ignored.
func Waiting(token uint32) State { return State{kind: stateWaiting, token: token} }

// Done marks a node as finished, optionally producing p for its
// dependents. p may be nil: the node ran but has nothing to hand
// downstream, which still satisfies dependents waiting on it.
func Done(p *payload.Payload) State { return State{kind: stateDone, payload: p} }

// Fail marks a node as having failed, optionally carrying a diagnostic
// payload. A failed node never satisfies its dependents; they remain
// untriggerable for the rest of the transaction.
func Fail(p *payload.Payload) State { return State{kind: stateFail, payload: p} }

// IsWaiting, IsDone, IsFail report the state's variant.
func (s State) IsWaiting() bool { return s.kind == stateWaiting }
func (s State) IsDone() bool    { return s.kind == stateDone }
func (s State) IsFail() bool    { return s.kind == stateFail }

// Token returns the wait token for a Waiting state; meaningless otherwise.
func (s State) Token() uint32 { return s.token }

// Payload returns the carried payload for Done/Fail states; nil otherwise.
func (s State) Payload() *payload.Payload { return s.payload }
