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
	"testing"

	"dagflow/payload"
)

func TestTraceDisabledByDefault(t *testing.T) {
	tr := NewTrace(map[string]string{"a": "template"})
	tr.Run("a", RunModeRun, Done(nil))
	b, err := tr.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if string(b) != "null" {
		t.Errorf("JSON() = %s, want null (no actions recorded while disabled)", b)
	}
}

func TestTraceRecordsRunAndValue(t *testing.T) {
	tr := NewTrace(map[string]string{"a": "template"})
	tr.Enable(true)
	tr.Run("a", RunModeRun, Done(payload.JSON(map[string]any{"x": 1.0})))

	b, err := tr.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}

	var actions []map[string]any
	if err := json.Unmarshal(b, &actions); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("len(actions) = %d, want 2", len(actions))
	}
	if actions[0]["action"] != "run" || actions[0]["type"] != "template" {
		t.Errorf("actions[0] = %v, want run/template", actions[0])
	}
	if actions[1]["action"] != "value" {
		t.Errorf("actions[1] = %v, want value", actions[1])
	}
}

func TestTraceRecordsWaitAndFail(t *testing.T) {
	tr := NewTrace(map[string]string{"c": "call"})
	tr.Enable(true)

	tr.Run("c", RunModeRun, Waiting(1))
	tr.Run("c", RunModeResume, Fail(payload.Error("boom")))

	b, _ := tr.JSON()
	var actions []map[string]any
	_ = json.Unmarshal(b, &actions)

	if len(actions) != 4 {
		t.Fatalf("len(actions) = %d, want 4", len(actions))
	}
	if actions[1]["action"] != "wait" {
		t.Errorf("actions[1] = %v, want wait", actions[1])
	}
	if actions[2]["action"] != "resume" {
		t.Errorf("actions[2] = %v, want resume", actions[2])
	}
	if actions[3]["action"] != "fail" {
		t.Errorf("actions[3] = %v, want fail", actions[3])
	}
}
