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

// Package guard provides the building blocks shared by the request validators
// in this module: rules, outcomes, messages and the HTTP-style [Error] they
// surface as.
//
// A validator owns an ordered list of [Rule] values. [Evaluate] runs them in
// configuration order and stops at the first failure. The failing [Outcome]
// is turned into an [*Error] by a [Surface], which resolves the message and
// status code:
//
//	outcome, err := guard.Evaluate(ctx, value, rules...)
//	if err != nil {
//		return err // context cancelled
//	}
//	if !outcome.Passed() {
//		return surface.Error(outcome)
//	}
//
// [*Error] implements the rivaas.dev/errors ErrorType, ErrorCode and
// ErrorDetails interfaces, so any rivaas.dev/errors formatter can render it.
//
// The concrete validators live in subpackages:
//
//   - rivaas.dev/guard/file: size, content type and filename checks on uploads
//   - rivaas.dev/guard/image: image format, resolution and aspect ratio
//   - rivaas.dev/guard/csvfile: CSV encoding, columns and row counts
//   - rivaas.dev/guard/param: query, header, cookie and path parameters
//   - rivaas.dev/guard/middleware: rivaas.dev/router handlers
package guard
