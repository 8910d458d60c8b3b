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
	"fmt"
	"sync"
)

// registry is the process-wide map from node type tag to the factory that
// builds it. Stock node packages (template, call, jq, response) populate
// it from their own init(), the way database/sql drivers register
// themselves; a host program that never imports one of those packages
// simply never offers that node type.
var registry = struct {
	mu    sync.RWMutex
	types map[string]NodeFactory
}{types: map[string]NodeFactory{}}

// RegisterNodeType adds factory under name, overwriting any previous
// registration for the same name. It is meant to be called from an
// init() function at program startup; it is safe to call at any time.
func RegisterNodeType(name string, factory NodeFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.types[name] = factory
}

func lookupNodeType(name string) (NodeFactory, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	f, ok := registry.types[name]
	return f, ok
}

// NewNodeConfig validates params for nodeType and returns the resulting
// config, or an error if nodeType was never registered.
func NewNodeConfig(nodeType, name string, inputs []string, params map[string]any) (NodeConfig, error) {
	f, ok := lookupNodeType(nodeType)
	if !ok {
		return nil, fmt.Errorf("no such node type: %s", nodeType)
	}
	return f.NewConfig(name, inputs, params)
}

// NewNode builds a fresh Node of nodeType from config, or an error if
// nodeType was never registered.
func NewNode(nodeType string, config NodeConfig) (Node, error) {
	f, ok := lookupNodeType(nodeType)
	if !ok {
		return nil, fmt.Errorf("no such node type: %s", nodeType)
	}
	return f.NewNode(config), nil
}
