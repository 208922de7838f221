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

package param

import (
	"maps"
	"regexp"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
)

var tagValidator = validator.New()

// format checks a raw value against a named format.
type format func(raw string) bool

func tagFormat(tag string) format {
	return func(raw string) bool {
		return tagValidator.Var(raw, tag) == nil
	}
}

func regexpFormat(pattern string) format {
	re := regexp.MustCompile(pattern)
	return re.MatchString
}

var formats = map[string]format{
	"uuid4":        tagFormat("uuid4"),
	"email":        tagFormat("email"),
	"datetime":     tagFormat("datetime=" + time.RFC3339),
	"jwt":          tagFormat("jwt"),
	"alphanumeric": tagFormat("alphanum"),
	"bearer_token": regexpFormat(`^(?i:bearer) [A-Za-z0-9\-._~+/]+=*$`),
	"api_key":      regexpFormat(`^[A-Za-z0-9]{32,}$`),
	"session_id":   regexpFormat(`^[A-Za-z0-9_-]{16,128}$`),
}

// Formats returns the names accepted by [WithFormat], sorted.
func Formats() []string {
	return slices.Sorted(maps.Keys(formats))
}
