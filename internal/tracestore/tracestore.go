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

// Package tracestore archives debug traces for transactions that opted
// into tracing (see the X-DataKit-Debug-Trace request header), keyed by a
// transaction id. The engine itself never depends on this package: a
// Driver hands its rendered trace to whichever Sink the embedding program
// wired up, or to none at all.
package tracestore

import (
	"context"
	"sync"
)

// Sink archives one transaction's rendered trace.
type Sink interface {
	Save(ctx context.Context, txID string, trace []byte) error
}

// MemorySink keeps traces in process memory, useful for tests and for a
// demo harness that doesn't want an external dependency.
type MemorySink struct {
	mu     sync.RWMutex
	traces map[string][]byte
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{traces: map[string][]byte{}}
}

// Save stores trace under txID, overwriting any previous entry.
func (s *MemorySink) Save(_ context.Context, txID string, trace []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]byte(nil), trace...)
	s.traces[txID] = cp
	return nil
}

// Get returns the trace saved under txID, if any, for tests and
// inspection endpoints.
func (s *MemorySink) Get(txID string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.traces[txID]
	return b, ok
}
