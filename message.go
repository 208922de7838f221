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

package guard

// Message is a failure message template. It is either fixed text ([Static])
// or computed from the offending value ([Dynamic]), and is resolved only
// when an [Error] is built.
type Message interface {
	Resolve(observed any) string
}

// Static is a fixed message.
type Static string

// Resolve returns the text unchanged.
func (s Static) Resolve(any) string {
	return string(s)
}

// Dynamic builds a message from the offending value.
//
//	guard.Dynamic(func(v any) string {
//		return fmt.Sprintf("%v is not a supported region", v)
//	})
type Dynamic func(observed any) string

// Resolve calls the function. A nil Dynamic resolves to "".
func (d Dynamic) Resolve(observed any) string {
	if d == nil {
		return ""
	}

	return d(observed)
}

// resolve is nil-safe.
func resolve(m Message, observed any) string {
	if m == nil {
		return ""
	}

	return m.Resolve(observed)
}
