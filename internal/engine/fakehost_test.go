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
	"time"
)

// fakeHost is a minimal, single-transaction Host test double. It records
// every host call it receives and lets a test script a canned subrequest
// response for DispatchHTTPCall.
type fakeHost struct {
	requestHeaders  [][2]string
	requestBody     []byte
	responseHeaders [][2]string
	responseBody    []byte

	sentStatus  int
	sentHeaders [][2]string
	sentBody    []byte
	sentHTTP    bool

	resumed bool

	dispatchErr      error
	callResponseBody []byte
	callResponseCT   string
	nextToken        uint32
}

func (h *fakeHost) GetHTTPRequestHeaders() [][2]string { return h.requestHeaders }

func (h *fakeHost) GetHTTPRequestHeader(name string) (string, bool) {
	for _, kv := range h.requestHeaders {
		if strings.EqualFold(kv[0], name) {
			return kv[1], true
		}
	}
	return "", false
}

func (h *fakeHost) GetHTTPRequestBody(int) ([]byte, bool) { return h.requestBody, h.requestBody != nil }

func (h *fakeHost) SetHTTPRequestHeaders(headers [][2]string) { h.requestHeaders = headers }

func (h *fakeHost) SetHTTPRequestHeader(name, value string) {
	h.requestHeaders = setHeader(h.requestHeaders, name, value)
}

func (h *fakeHost) SetHTTPRequestBody(body []byte) { h.requestBody = body }

func (h *fakeHost) GetHTTPResponseHeaders() [][2]string { return h.responseHeaders }

func (h *fakeHost) GetHTTPResponseHeader(name string) (string, bool) {
	for _, kv := range h.responseHeaders {
		if strings.EqualFold(kv[0], name) {
			return kv[1], true
		}
	}
	return "", false
}

func (h *fakeHost) GetHTTPResponseBody(int) ([]byte, bool) {
	return h.responseBody, h.responseBody != nil
}

func (h *fakeHost) SetHTTPResponseHeaders(headers [][2]string) { h.responseHeaders = headers }

func (h *fakeHost) SetHTTPResponseHeader(name, value string) {
	h.responseHeaders = setHeader(h.responseHeaders, name, value)
}

func (h *fakeHost) SetHTTPResponseBody(body []byte) { h.responseBody = body }

func (h *fakeHost) DispatchHTTPCall(string, [][2]string, []byte, time.Duration) (uint32, error) {
	if h.dispatchErr != nil {
		return 0, h.dispatchErr
	}
	h.nextToken++
	return h.nextToken, nil
}

func (h *fakeHost) GetHTTPCallResponseHeader(name string) (string, bool) {
	if strings.EqualFold(name, "Content-Type") && h.callResponseCT != "" {
		return h.callResponseCT, true
	}
	return "", false
}

func (h *fakeHost) GetHTTPCallResponseBody() []byte { return h.callResponseBody }

func (h *fakeHost) SendHTTPResponse(status int, headers [][2]string, body []byte) {
	h.sentHTTP = true
	h.sentStatus = status
	h.sentHeaders = headers
	h.sentBody = body
}

func (h *fakeHost) ResumeHTTPRequest() { h.resumed = true }

func setHeader(headers [][2]string, name, value string) [][2]string {
	out := make([][2]string, 0, len(headers)+1)
	found := false
	for _, kv := range headers {
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
