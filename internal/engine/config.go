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
	"fmt"
)

// reservedNodeNames are the implicit node names the driver wires to HTTP
// lifecycle phases; a user config may read or write them as inputs/outputs
// but may never declare a node under one of these names.
var reservedNodeNames = map[string]bool{
	"request_headers":          true,
	"request_body":             true,
	"service_request_headers":  true,
	"service_request_body":     true,
	"service_response_headers": true,
	"service_response_body":    true,
	"response_headers":         true,
	"response_body":            true,
}

// userNodeConfig is one entry of the "nodes" array in a graph config file.
// type/name/input(s)/output(s) are pulled out of the raw object; anything
// else is left in Params for the node type's own factory to interpret.
type userNodeConfig struct {
	Type    string
	Name    string
	Inputs  []string
	Outputs []string
	Params  map[string]any
}

func (u *userNodeConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	u.Params = map[string]any{}
	for key, value := range raw {
		switch key {
		case "type":
			if err := json.Unmarshal(value, &u.Type); err != nil {
				return fmt.Errorf("node %q: %w", key, err)
			}
		case "name":
			if err := json.Unmarshal(value, &u.Name); err != nil {
				return fmt.Errorf("node %q: %w", key, err)
			}
		case "input":
			var s string
			if err := json.Unmarshal(value, &s); err == nil {
				u.Inputs = append(u.Inputs, s)
			}
		case "inputs":
			var list []string
			if err := json.Unmarshal(value, &list); err == nil {
				u.Inputs = list
			}
		case "output":
			var s string
			if err := json.Unmarshal(value, &s); err == nil {
				u.Outputs = append(u.Outputs, s)
			}
		case "outputs":
			var list []string
			if err := json.Unmarshal(value, &list); err == nil {
				u.Outputs = list
			}
		default:
			var v any
			if err := json.Unmarshal(value, &v); err == nil {
				u.Params[key] = v
			}
		}
	}

	if u.Type == "" {
		return fmt.Errorf("node config missing required field \"type\"")
	}
	return nil
}

type userConfig struct {
	Nodes []userNodeConfig `json:"nodes"`
}

type nodeInfo struct {
	name     string
	nodeType string
	config   NodeConfig
}

// Config is a parsed, validated graph: the dependency edges between nodes
// and the per-node factories ready to build a fresh Node for each new
// transaction.
type Config struct {
	nodeNames []string
	graph     *DependencyGraph
	nodes     []nodeInfo
}

// NodeNames returns the declared node names, in config file order.
func (c *Config) NodeNames() []string { return append([]string(nil), c.nodeNames...) }

// NodeTypes returns the type tag each declared node was configured with,
// keyed by name. Used to annotate debug traces.
func (c *Config) NodeTypes() map[string]string {
	out := make(map[string]string, len(c.nodes))
	for _, info := range c.nodes {
		out[info.name] = info.nodeType
	}
	return out
}

// Graph returns the dependency graph built from every node's inputs and
// outputs, including implicit phase edges.
func (c *Config) Graph() *DependencyGraph { return c.graph }

// Load parses a graph config document and validates it against the
// registry of node types that have been registered (typically via each
// stock node package's init()) by the time Load runs. It resolves
// input/output aliasing, applies registered defaults for nodes that left
// inputs or outputs unset, rejects reserved node names and unknown types,
// and assigns an auto-generated name to any node that didn't specify one.
func Load(data []byte) (*Config, error) {
	var uc userConfig
	if err := json.Unmarshal(data, &uc); err != nil {
		return nil, fmt.Errorf("failed parsing configuration: %w", err)
	}

	graph := NewDependencyGraph()
	names := make([]string, 0, len(uc.Nodes))

	for i := range uc.Nodes {
		unc := &uc.Nodes[i]
		if unc.Name == "" {
			unc.Name = fmt.Sprintf("node#%d", i)
		}
		if reservedNodeNames[unc.Name] {
			return nil, fmt.Errorf("cannot use reserved node name '%s'", unc.Name)
		}
		names = append(names, unc.Name)
	}

	// A preliminary config pass lets default_inputs/default_outputs see
	// their own params before edges are recorded, the same two-pass shape
	// config.rs uses: build per-node config first, then fold its declared
	// edges (now including defaults) into the graph.
	nodes := make([]nodeInfo, 0, len(uc.Nodes))
	for i := range uc.Nodes {
		unc := &uc.Nodes[i]

		inputs := unc.Inputs
		outputs := unc.Outputs

		cfg, err := NewNodeConfig(unc.Type, unc.Name, inputs, unc.Params)
		if err != nil {
			return nil, err
		}

		if len(inputs) == 0 {
			if p, ok := cfg.(DefaultInputsProvider); ok {
				inputs = p.DefaultInputs()
			}
		}
		if len(outputs) == 0 {
			if p, ok := cfg.(DefaultOutputsProvider); ok {
				outputs = p.DefaultOutputs()
			}
		}

		for _, in := range inputs {
			graph.Add(in, unc.Name)
		}
		for _, out := range outputs {
			graph.Add(unc.Name, out)
		}

		// Re-resolve the config now that defaulted inputs are known to the
		// graph, so a node's NewConfig sees its true provider list.
		resolvedInputs := graph.InputNames(unc.Name)
		cfg, err = NewNodeConfig(unc.Type, unc.Name, resolvedInputs, unc.Params)
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, nodeInfo{name: unc.Name, nodeType: unc.Type, config: cfg})
	}

	return &Config{nodeNames: names, graph: graph, nodes: nodes}, nil
}

// BuildNodes instantiates a fresh Node for every configured node,
// keyed by name. It is called once per transaction so that stateful node
// types (Call's in-flight token, for instance) never leak across
// requests.
func (c *Config) BuildNodes() (map[string]Node, error) {
	out := make(map[string]Node, len(c.nodes))
	for _, info := range c.nodes {
		n, err := NewNode(info.nodeType, info.config)
		if err != nil {
			return nil, err
		}
		out[info.name] = n
	}
	return out, nil
}
