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

// Outcome is the result of evaluating a rule: either a pass or a failure
// carrying its kind, the offending value and a message.
// Outcomes are values; the With* methods return modified copies.
type Outcome struct {
	Kind     Kind    // KindNone on pass
	Observed any     // Offending value
	Message  string  // Message built by the rule itself
	Override Message // Per-rule message configured by the user, if any
	Status   int     // Rule-specific status; 0 lets the surface decide
	Err      error   // Underlying cause, if any
}

// Pass returns a passing outcome.
func Pass() Outcome {
	return Outcome{}
}

// Fail returns a failing outcome of the given kind.
func Fail(kind Kind, observed any, msg string) Outcome {
	return Outcome{Kind: kind, Observed: observed, Message: msg}
}

// Passed reports whether the outcome is a pass.
func (o Outcome) Passed() bool {
	return o.Kind == KindNone
}

// WithStatus sets a rule-specific status code.
func (o Outcome) WithStatus(status int) Outcome {
	o.Status = status
	return o
}

// WithOverride attaches a user-configured message. A nil message is ignored.
func (o Outcome) WithOverride(m Message) Outcome {
	if m != nil {
		o.Override = m
	}

	return o
}

// WithCause records the error that caused the failure.
func (o Outcome) WithCause(err error) Outcome {
	o.Err = err
	return o
}
