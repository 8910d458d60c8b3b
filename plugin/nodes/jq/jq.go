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

// Package jq implements the "jq" stock node type: it binds its declared
// inputs as named jq variables and evaluates a filter expression against
// them.
package jq

import (
	"fmt"
	"strings"

	"github.com/itchyny/gojq"

	"dagflow/internal/dlog"
	"dagflow/internal/engine"
	"dagflow/payload"
)

func init() {
	engine.RegisterNodeType("jq", factory{})
}

// Config holds a compiled jq filter and the input names it was compiled
// against.
type Config struct {
	inputNames []string
	code       *gojq.Code
}

func (Config) nodeConfig() {}

type node struct {
	engine.BaseNode
	config Config
	logger dlog.Logger
}

// Run binds each declared input as a named variable (Json passed through,
// Raw as a UTF-8 string, Error as null with a warning, a missing slot as
// null); the first input also becomes the filter's "." context. It then
// evaluates the compiled filter and wraps the result: zero results as
// Done(nil), one result unwrapped, more than one as a JSON array.
func (n *node) Run(host engine.Host, in engine.Input) engine.State {
	if len(in.Data) != len(n.config.inputNames) {
		return engine.Fail(payload.Error(fmt.Sprintf(
			"jq: invalid number of inputs, expected: %d, got: %d",
			len(n.config.inputNames), len(in.Data))))
	}

	values := make([]any, len(n.config.inputNames))
	var bindErrs []string
	for i, name := range n.config.inputNames {
		v, err := bindVar(in.Data[i])
		if err != nil {
			bindErrs = append(bindErrs, fmt.Sprintf("jq: input for %s is not valid UTF-8: %v", name, err))
		}
		if in.Data[i] != nil && in.Data[i].IsError() {
			n.logger.Warnf("jq: input error from previous node: %s", in.Data[i].ErrorMessage())
		}
		values[i] = v
	}
	if len(bindErrs) > 0 {
		return engine.Fail(payload.Error(strings.Join(bindErrs, ", ")))
	}

	// The first declared input doubles as the filter's "." context, so a
	// single-input filter can use plain field access (".a + .b") instead of
	// requiring every reference to go through its $-prefixed variable name.
	var mainInput any
	if len(values) > 0 {
		mainInput = values[0]
	}
	iter := n.config.code.Run(mainInput, values...)

	var results []any
	var runErrs []string
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			runErrs = append(runErrs, err.Error())
			continue
		}
		results = append(results, v)
	}
	if len(runErrs) > 0 {
		return engine.Fail(payload.Error(strings.Join(runErrs, ", ")))
	}

	switch len(results) {
	case 0:
		return engine.Done(nil)
	case 1:
		return engine.Done(payload.JSON(results[0]))
	default:
		return engine.Done(payload.JSON(results))
	}
}

// bindVar converts an input payload into the value bound to its jq
// variable: Json passes through as-is, Raw becomes its UTF-8 string, Error
// and missing slots become nil (jq null).
func bindVar(p *payload.Payload) (any, error) {
	if p == nil {
		return nil, nil
	}
	if p.IsJSON() {
		return p.JSONValue(), nil
	}
	if p.IsError() {
		return nil, nil
	}
	s, err := p.AsInputString()
	if err != nil {
		return nil, err
	}
	return s, nil
}

type factory struct{}

func (factory) NewConfig(name string, inputs []string, params map[string]any) (engine.NodeConfig, error) {
	filter := engine.ParamString(params, "filter", "")
	if filter == "" {
		return nil, fmt.Errorf("jq %q: no filter specified", name)
	}

	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("jq %q: invalid filter: %w", name, err)
	}

	varNames := make([]string, len(inputs))
	copy(varNames, inputs)

	dollarNames := make([]string, len(varNames))
	for i, n := range varNames {
		dollarNames[i] = "$" + n
	}

	code, err := gojq.Compile(query, gojq.WithVariables(dollarNames))
	if err != nil {
		return nil, fmt.Errorf("jq %q: compiling filter: %w", name, err)
	}

	return Config{inputNames: varNames, code: code}, nil
}

func (factory) NewNode(config engine.NodeConfig) engine.Node {
	c := config.(Config)
	return &node{config: c, logger: dlog.Default()}
}
