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

import "time"

// Action tells the embedding host whether the current phase callback
// should let the transaction proceed or hold it open (because a node is
// Waiting on an asynchronous subrequest, or a body phase isn't at EOF
// yet).
type Action int

const (
	ActionContinue Action = iota
	ActionPause
)

// Host is the sandboxed proxy host's ABI as seen by the engine: header and
// body accessors for both legs of the proxied request, the ability to
// dispatch an HTTP subrequest and be woken on its response, and the
// ability to short-circuit the transaction with a response of the
// filter's own making. An embedding program supplies one implementation
// per transaction; internal/devhost backs it with net/http for the
// reference demo harness.
// A SetHTTP*Header call with an empty value removes the header rather
// than setting it to empty, matching the clear-on-None convention of the
// proxy-wasm ABI this interface generalizes.
type Host interface {
	GetHTTPRequestHeaders() [][2]string
	GetHTTPRequestHeader(name string) (string, bool)
	GetHTTPRequestBody(size int) ([]byte, bool)
	SetHTTPRequestHeaders(headers [][2]string)
	SetHTTPRequestHeader(name string, value string)
	SetHTTPRequestBody(body []byte)

	GetHTTPResponseHeaders() [][2]string
	GetHTTPResponseHeader(name string) (string, bool)
	GetHTTPResponseBody(size int) ([]byte, bool)
	SetHTTPResponseHeaders(headers [][2]string)
	SetHTTPResponseHeader(name string, value string)
	SetHTTPResponseBody(body []byte)

	// DispatchHTTPCall sends hostPort (a "host:port" authority; the method
	// and path travel as the ":method" and ":path" pseudo-headers) a
	// subrequest and returns a token identifying it;
	// the host later calls the driver's OnHTTPCallResponse with that
	// token once the subrequest completes or times out.
	DispatchHTTPCall(hostPort string, headers [][2]string, body []byte, timeout time.Duration) (uint32, error)
	GetHTTPCallResponseHeader(name string) (string, bool)
	GetHTTPCallResponseBody() []byte

	// SendHTTPResponse terminates the transaction immediately with the
	// filter's own response, bypassing the proxied upstream entirely.
	SendHTTPResponse(status int, headers [][2]string, body []byte)

	// ResumeHTTPRequest unblocks a transaction that was left Paused
	// awaiting a subrequest.
	ResumeHTTPRequest()
}
