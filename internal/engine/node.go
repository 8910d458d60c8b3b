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

// Input is what a node sees when the driver calls Run or Resume: the Done
// payload of each of its declared inputs, in declared order, and the
// lifecycle phase the call is happening in.
type Input struct {
	Data  []*payload.Payload
	Phase Phase
}

// Node is the behavior a registered node type implements. Run is called
// once all of a node's inputs are Done; Resume is called when a node that
// previously returned Waiting is woken by a matching completion (for
// example an HTTP call response). Both receive the transaction's Host so
// a node like Call can dispatch a subrequest or read one's response. Go
// has no default interface methods, so a node type that never suspends
// embeds BaseNode to get a Done(nil) Resume for free.
type Node interface {
	Run(host Host, in Input) State
	Resume(host Host, in Input) State
}

// BaseNode is embedded by node implementations that don't need Resume,
// giving them a Done(nil) no-op for it without repeating the method body
// in every node type.
type BaseNode struct{}

// Resume is the no-op default; node types that can be left Waiting (Call)
// override it.
func (BaseNode) Resume(Host, Input) State { return Done(nil) }

// NodeConfig is the validated, per-instance configuration produced by a
// NodeFactory from user JSON. Concrete node packages define their own
// config struct; the engine only ever holds it behind this marker so a
// NodeFactory can hand it back to its own NewNode unchanged.
type NodeConfig interface {
	nodeConfig()
}

// DefaultInputsProvider and DefaultOutputsProvider are implemented by a
// NodeConfig that wants its node wired to implicit edges (for example a
// Response node's output defaulting to response_body) when the user
// config left inputs/outputs unset. Load checks for them with a
// type assertion; a NodeConfig that doesn't need this simply doesn't
// implement the interface.
type DefaultInputsProvider interface {
	DefaultInputs() []string
}

type DefaultOutputsProvider interface {
	DefaultOutputs() []string
}

// NodeFactory is what a node type registers under its type name: it turns
// user JSON into a NodeConfig, and a NodeConfig into a running Node.
type NodeFactory interface {
	// NewConfig validates raw node parameters (the node's JSON object with
	// type/name/input(s)/output(s) already stripped) and returns the
	// config a later NewNode call will receive. inputs is the node's
	// resolved list of provider names, already computed from the graph.
	NewConfig(name string, inputs []string, params map[string]any) (NodeConfig, error)

	// NewNode builds a fresh Node instance from a validated config. Called
	// once per node per transaction graph build; implementations must not
	// share mutable state across instances beyond what the config itself
	// carries.
	NewNode(config NodeConfig) Node
}
