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

// Package template implements the "template" stock node type: it renders a
// Mustache template against its declared inputs, bound by name.
package template

import (
	"fmt"

	"github.com/cbroglie/mustache"

	"dagflow/internal/engine"
	"dagflow/payload"
)

func init() {
	engine.RegisterNodeType("template", factory{})
}

// Config holds a template node's rendering parameters.
type Config struct {
	inputNames  []string
	template    string
	contentType string
}

func (Config) nodeConfig() {}

type node struct {
	engine.BaseNode
	config Config
	tmpl   *mustache.Template
}

// Run binds each declared input name to its payload value and renders the
// template, producing a payload interpreted per the node's content_type.
func (n *node) Run(host engine.Host, in engine.Input) engine.State {
	ctx := make(map[string]any, len(n.config.inputNames))
	for i, name := range n.config.inputNames {
		if i >= len(in.Data) || in.Data[i] == nil {
			continue
		}
		v, err := bind(in.Data[i])
		if err != nil {
			return engine.Fail(payload.Error(fmt.Sprintf("template: binding input %q: %v", name, err)))
		}
		ctx[name] = v
	}

	rendered, err := n.tmpl.Render(ctx)
	if err != nil {
		return engine.Fail(payload.Error(fmt.Sprintf("template: rendering: %v", err)))
	}

	p, ok := payload.FromBytes([]byte(rendered), n.config.contentType)
	if !ok {
		p = payload.Raw([]byte(rendered))
	}
	return engine.Done(p)
}

// bind renders a payload into the value a Mustache context exposes for it:
// a Json tree as-is, Raw as its UTF-8 string, Error as its message.
func bind(p *payload.Payload) (any, error) {
	if p.IsJSON() {
		return p.JSONValue(), nil
	}
	return p.AsInputString()
}

type factory struct{}

func (factory) NewConfig(name string, inputs []string, params map[string]any) (engine.NodeConfig, error) {
	source := engine.ParamString(params, "template", "")
	if _, err := mustache.ParseString(source); err != nil {
		return nil, fmt.Errorf("template %q: parsing template: %w", name, err)
	}
	return Config{
		inputNames:  inputs,
		template:    source,
		contentType: engine.ParamString(params, "content_type", "application/json"),
	}, nil
}

func (factory) NewNode(config engine.NodeConfig) engine.Node {
	c := config.(Config)
	tmpl, _ := mustache.ParseString(c.template)
	return &node{config: c, tmpl: tmpl}
}
