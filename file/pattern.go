// Copyright 2025 The Rivaas Authors
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

package file

import (
	"fmt"
	"strings"

	"rivaas.dev/guard"
	"rivaas.dev/guard/inspect"
)

// ContentTypePattern is an allowed media type: either exact ("image/png")
// or a whole top-level type ("image/*").
type ContentTypePattern struct {
	typ string
	sub string
}

// ParseContentTypePattern parses "type/subtype", "type/*" or "*/*".
func ParseContentTypePattern(s string) (ContentTypePattern, error) {
	norm := inspect.Normalize(s)
	if norm == "*" {
		norm = "*/*"
	}

	typ, sub, ok := strings.Cut(norm, "/")
	if !ok || typ == "" || sub == "" || strings.Contains(sub, "/") {
		return ContentTypePattern{}, fmt.Errorf("%w: content type pattern %q", guard.ErrInvalidConfig, s)
	}
	if typ == "*" && sub != "*" {
		return ContentTypePattern{}, fmt.Errorf("%w: content type pattern %q", guard.ErrInvalidConfig, s)
	}

	return ContentTypePattern{typ: typ, sub: sub}, nil
}

// Match reports whether contentType is covered by the pattern.
// Parameters and case are ignored.
func (p ContentTypePattern) Match(contentType string) bool {
	typ, sub, ok := strings.Cut(inspect.Normalize(contentType), "/")
	if !ok {
		return false
	}
	if p.typ == "*" {
		return true
	}
	if p.typ != typ {
		return false
	}

	return p.sub == "*" || p.sub == sub
}

// String returns the pattern text.
func (p ContentTypePattern) String() string {
	return p.typ + "/" + p.sub
}
