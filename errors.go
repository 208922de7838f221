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

import (
	"errors"
	"fmt"
	"net/http"

	"rivaas.dev/guard/size"
)

// Configuration errors returned by validator constructors.
var (
	// ErrInvalidConfig is returned when validator options are inconsistent
	// or invalid, e.g. an unparsable regular expression.
	ErrInvalidConfig = errors.New("invalid validator configuration")

	// ErrMalformedSize is returned when a size specification cannot be parsed.
	ErrMalformedSize = size.ErrMalformed

	// ErrFeatureUnavailable is returned when a validator requires a feature,
	// such as an image decoder, that has not been registered.
	ErrFeatureUnavailable = errors.New("feature unavailable")
)

// Sentinel errors for each failure [Kind].
// Use errors.Is on an [*Error] to test its kind.
var (
	ErrSizeBound       = errors.New("size bound violation")
	ErrContentType     = errors.New("content type violation")
	ErrFilename        = errors.New("filename pattern violation")
	ErrCustomPredicate = errors.New("custom predicate violation")
	ErrStructural      = errors.New("structural violation")
	ErrTypeCoercion    = errors.New("type coercion error")
	ErrRequired        = errors.New("required value missing")
	ErrAllowedValue    = errors.New("allowed value violation")
	ErrNumericBound    = errors.New("numeric bound violation")
	ErrLength          = errors.New("length violation")
	ErrPattern         = errors.New("pattern violation")
	ErrUnexpected      = errors.New("unexpected validation failure")
)

// Kind classifies a validation failure.
type Kind uint8

// Failure kinds. KindNone marks a passing outcome.
const (
	KindNone Kind = iota
	KindSizeBound
	KindContentType
	KindFilename
	KindCustomPredicate
	KindStructural
	KindTypeCoercion
	KindRequired
	KindAllowedValue
	KindNumericBound
	KindLength
	KindPattern
	KindUnexpected
)

var kindInfo = [...]struct {
	code     string
	sentinel error
}{
	KindNone:            {"none", nil},
	KindSizeBound:       {"size_bound_violation", ErrSizeBound},
	KindContentType:     {"content_type_violation", ErrContentType},
	KindFilename:        {"filename_pattern_violation", ErrFilename},
	KindCustomPredicate: {"custom_predicate_violation", ErrCustomPredicate},
	KindStructural:      {"structural_violation", ErrStructural},
	KindTypeCoercion:    {"type_coercion_error", ErrTypeCoercion},
	KindRequired:        {"required_value_missing", ErrRequired},
	KindAllowedValue:    {"allowed_value_violation", ErrAllowedValue},
	KindNumericBound:    {"numeric_bound_violation", ErrNumericBound},
	KindLength:          {"length_violation", ErrLength},
	KindPattern:         {"pattern_violation", ErrPattern},
	KindUnexpected:      {"unexpected_error", ErrUnexpected},
}

// String returns the machine-readable code of the kind,
// e.g. "size_bound_violation".
func (k Kind) String() string {
	if int(k) >= len(kindInfo) {
		return fmt.Sprintf("kind(%d)", k)
	}

	return kindInfo[k].code
}

// Sentinel returns the sentinel error matching the kind, or nil for [KindNone].
func (k Kind) Sentinel() error {
	if int(k) >= len(kindInfo) {
		return ErrUnexpected
	}

	return kindInfo[k].sentinel
}

// Error is a validation failure ready to be written as an HTTP response.
// It implements the rivaas.dev/errors ErrorType, ErrorCode and ErrorDetails
// interfaces.
//
// Example:
//
//	var gerr *guard.Error
//	if errors.As(err, &gerr) {
//		fmt.Println(gerr.HTTPStatus(), gerr.Message)
//	}
type Error struct {
	Kind      Kind   // Failure classification
	Status    int    // HTTP status code
	Message   string // Resolved, human-readable message
	Validator string // Name of the validator that failed, if any
	Observed  any    // Offending value (size, content type, parameter value, ...)
	Err       error  // Underlying cause, e.g. the error returned by a predicate
}

// Error returns the resolved message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes both the kind sentinel and the underlying cause,
// so errors.Is works for either.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.Sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}

// HTTPStatus implements rivaas.dev/errors.ErrorType.
func (e *Error) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}

	return e.Status
}

// Code implements rivaas.dev/errors.ErrorCode.
func (e *Error) Code() string {
	return e.Kind.String()
}

// Detail is the structured payload exposed through [Error.Details].
type Detail struct {
	Validator string `json:"validator,omitempty"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

// Details implements rivaas.dev/errors.ErrorDetails.
// The observed value is left out since it may carry user input.
func (e *Error) Details() any {
	return []Detail{{
		Validator: e.Validator,
		Kind:      e.Kind.String(),
		Message:   e.Message,
	}}
}
