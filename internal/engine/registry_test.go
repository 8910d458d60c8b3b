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

import "testing"

type fakeConfig struct{ echo string }

func (fakeConfig) nodeConfig() {}

type fakeNode struct {
	BaseNode
	echo string
}

func (n fakeNode) Run(Host, Input) State { return Done(nil) }

type fakeFactory struct{}

func (fakeFactory) NewConfig(name string, inputs []string, params map[string]any) (NodeConfig, error) {
	echo, _ := params["echo"].(string)
	return fakeConfig{echo: echo}, nil
}

func (fakeFactory) NewNode(config NodeConfig) Node {
	c := config.(fakeConfig)
	return fakeNode{echo: c.echo}
}

func TestRegistryRoundTrip(t *testing.T) {
	RegisterNodeType("fake_test_node", fakeFactory{})

	cfg, err := NewNodeConfig("fake_test_node", "n1", nil, map[string]any{"echo": "hi"})
	if err != nil {
		t.Fatalf("NewNodeConfig() error = %v", err)
	}

	node, err := NewNode("fake_test_node", cfg)
	if err != nil {
		t.Fatalf("NewNode() error = %v", err)
	}
	fn, ok := node.(fakeNode)
	if !ok || fn.echo != "hi" {
		t.Errorf("NewNode() = %#v, want fakeNode{echo: hi}", node)
	}
}

func TestRegistryUnknownType(t *testing.T) {
	if _, err := NewNodeConfig("does_not_exist", "n1", nil, nil); err == nil {
		t.Errorf("NewNodeConfig() error = nil, want error for unregistered type")
	}
	if _, err := NewNode("does_not_exist", fakeConfig{}); err == nil {
		t.Errorf("NewNode() error = nil, want error for unregistered type")
	}
}
