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

import "net/http"

// Surface turns failing outcomes into [*Error] values.
// It holds the validator-wide defaults.
type Surface struct {
	Name    string  // Validator name, copied to Error.Validator
	Status  int     // Default status; 400 when zero
	Message Message // Default message, used when a rule supplies none
}

// Error builds the error for a failing outcome, or returns nil on pass.
//
// The message is the rule's override when configured, else the rule's own
// message, else the surface default. The status is the rule's status when
// set, else the surface status, else 400.
func (s Surface) Error(o Outcome) *Error {
	if o.Passed() {
		return nil
	}

	msg := resolve(o.Override, o.Observed)
	if msg == "" {
		msg = o.Message
	}
	if msg == "" {
		msg = resolve(s.Message, o.Observed)
	}
	if msg == "" {
		msg = o.Kind.Sentinel().Error()
	}

	status := o.Status
	if status == 0 {
		status = s.Status
	}
	if status == 0 {
		status = http.StatusBadRequest
	}

	return &Error{
		Kind:      o.Kind,
		Status:    status,
		Message:   msg,
		Validator: s.Name,
		Observed:  o.Observed,
		Err:       o.Err,
	}
}
