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

// Package payload defines the typed value that flows between the nodes of
// a data-transformation graph: a JSON tree, an opaque byte string, or an
// error. It is immutable once constructed; producers hand out borrows to
// consumers for the lifetime of a single scheduler pass.
package payload

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// kind discriminates the one-of held by a Payload.
type kind int

const (
	kindJSON kind = iota
	kindRaw
	kindError
)

// Payload is a tagged union of a JSON tree, raw bytes, or an error message.
// The zero value is not valid; construct one with New*/From* functions.
type Payload struct {
	kind           kind
	json           any
	raw            []byte
	rawContentType string
	err            string
}

// JSON wraps an already-decoded JSON tree (as produced by encoding/json,
// e.g. map[string]any, []any, string, float64, bool, nil).
func JSON(v any) *Payload {
	return &Payload{kind: kindJSON, json: v}
}

// Raw wraps an opaque byte string with no interpreted content type.
func Raw(b []byte) *Payload {
	return &Payload{kind: kindRaw, raw: b}
}

// Error wraps a human-readable failure message.
func Error(msg string) *Payload {
	return &Payload{kind: kindError, err: msg}
}

// IsJSON, IsRaw, IsError report the payload's concrete variant.
func (p *Payload) IsJSON() bool  { return p != nil && p.kind == kindJSON }
func (p *Payload) IsRaw() bool   { return p != nil && p.kind == kindRaw }
func (p *Payload) IsError() bool { return p != nil && p.kind == kindError }

// JSONValue returns the decoded tree for a Json payload, or nil otherwise.
func (p *Payload) JSONValue() any {
	if p == nil || p.kind != kindJSON {
		return nil
	}
	return p.json
}

// ErrorMessage returns the message for an Error payload, or "" otherwise.
func (p *Payload) ErrorMessage() string {
	if p == nil || p.kind != kindError {
		return ""
	}
	return p.err
}

// ContentType returns "application/json" for Json payloads, the
// content type FromBytes was given for a Raw payload built from it (or
// false if Raw was constructed directly, bypassing FromBytes), and is
// always undefined for Error.
func (p *Payload) ContentType() (string, bool) {
	if p == nil {
		return "", false
	}
	switch p.kind {
	case kindJSON:
		return "application/json", true
	case kindRaw:
		if p.rawContentType != "" {
			return p.rawContentType, true
		}
	}
	return "", false
}

// FromBytes interprets bytes per contentType: application/json is parsed
// into a tree (a parse failure becomes an Error payload, not a Go error);
// anything else is wrapped as Raw, remembering contentType so ContentType
// can hand it back to a node that wants to propagate it (Template's
// content_type param relies on this). An empty contentType means the
// caller declined to interpret the bytes, reported as (nil, false).
func FromBytes(b []byte, contentType string) (*Payload, bool) {
	if contentType == "" {
		return nil, false
	}
	if contentType == "application/json" {
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return Error(err.Error()), true
		}
		return JSON(v), true
	}
	return &Payload{kind: kindRaw, raw: b, rawContentType: contentType}, true
}

// ToBytes serializes the payload: Json is compact JSON, Raw is returned
// as a copy, Error fails with its own message.
func (p *Payload) ToBytes() ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	switch p.kind {
	case kindJSON:
		return json.Marshal(p.json)
	case kindRaw:
		return append([]byte(nil), p.raw...), nil
	case kindError:
		return nil, fmt.Errorf("%s", p.err)
	default:
		return nil, fmt.Errorf("payload: unknown kind")
	}
}

// ToJSON returns the payload as a decoded JSON value: Json as-is, Raw
// wrapped as a JSON string if it is valid UTF-8 (fails otherwise), Error
// always fails.
func (p *Payload) ToJSON() (any, error) {
	if p == nil {
		return nil, nil
	}
	switch p.kind {
	case kindJSON:
		return p.json, nil
	case kindRaw:
		if !utf8.Valid(p.raw) {
			return nil, fmt.Errorf("payload: raw bytes are not valid UTF-8")
		}
		return string(p.raw), nil
	case kindError:
		return nil, fmt.Errorf("%s", p.err)
	default:
		return nil, fmt.Errorf("payload: unknown kind")
	}
}

// Len returns the byte length for Raw and Error payloads. It is undefined
// for Json, since the serialized length isn't known without serializing;
// callers must omit a length header in that case.
func (p *Payload) Len() (int, bool) {
	if p == nil {
		return 0, false
	}
	switch p.kind {
	case kindRaw:
		return len(p.raw), true
	case kindError:
		return len(p.err), true
	default:
		return 0, false
	}
}

// AsInputString renders the payload the way the Template and JQ nodes bind
// it to a named input: Json trees pass through untouched, Raw becomes its
// UTF-8 string form, Error becomes its message.
func (p *Payload) AsInputString() (string, error) {
	if p == nil {
		return "", nil
	}
	switch p.kind {
	case kindRaw:
		return string(p.raw), nil
	case kindError:
		return p.err, nil
	case kindJSON:
		b, err := json.Marshal(p.json)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("payload: unknown kind")
	}
}

// ToHeaderPairs converts a Json payload whose root is an object into an
// ordered list of (name, value) pairs: string values become one pair,
// arrays of strings become one pair per element in order, any other shape
// is skipped. Defined only for Json; any other variant yields nil.
func (p *Payload) ToHeaderPairs() [][2]string {
	if p == nil || p.kind != kindJSON {
		return nil
	}
	obj, ok := p.json.(map[string]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(obj))
	for k := range obj {
		names = append(names, k)
	}
	sort.Strings(names)

	var out [][2]string
	for _, name := range names {
		switch v := obj[name].(type) {
		case string:
			out = append(out, [2]string{name, v})
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					out = append(out, [2]string{name, s})
				}
			}
		}
	}
	return out
}

// FromHeaderPairs builds a Json payload from an ordered list of (name,
// value) pairs, the way headers arrive from the host. Names are
// lowercased; each name's values become a JSON array in arrival order,
// even for a name seen once, so a template can always index a header by
// position (e.g. "host.0").
func FromHeaderPairs(pairs [][2]string) *Payload {
	obj := map[string]any{}
	for _, kv := range pairs {
		name := strings.ToLower(kv[0])
		value := kv[1]
		if existing, ok := obj[name]; ok {
			obj[name] = append(existing.([]any), value)
			continue
		}
		obj[name] = []any{value}
	}
	return JSON(obj)
}
