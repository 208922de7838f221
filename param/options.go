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
	"fmt"
	"net/http"

	"rivaas.dev/guard"
)

// Option configures a [Validator].
type Option func(*config)

type config struct {
	name        string
	typ         Type
	required    *bool
	defaultVal  any
	hasDefault  bool
	allowed     []any
	gt, ge      *float64
	lt, le      *float64
	minLength   int
	maxLength   int
	pattern     string
	format      string
	predicates  []guard.Predicate[Value]
	status      int
	message     guard.Message
	requiredMsg guard.Message
	typeMsg     guard.Message
	allowedMsg  guard.Message
	boundMsg    guard.Message
	lengthMsg   guard.Message
	patternMsg  guard.Message
	predMsg     guard.Message
	inst        *guard.Instrumentation
	errs        []error
}

func defaultConfig() *config {
	return &config{
		typ:       String,
		minLength: -1,
		maxLength: -1,
		status:    http.StatusBadRequest,
	}
}

func (c *config) hasBounds() bool {
	return c.gt != nil || c.ge != nil || c.lt != nil || c.le != nil
}

// WithName names the validator in errors, logs, spans and metrics.
// Defaults to "<source>.<param>", for example "query.page".
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithType sets the type the raw value is coerced to. Defaults to [String],
// or [Float] when numeric bounds are set.
func WithType(t Type) Option {
	return func(c *config) {
		c.typ = t
	}
}

// WithRequired marks the parameter as required or optional, overriding the
// source default. Path and header parameters are required by default.
func WithRequired(required bool) Option {
	return func(c *config) {
		c.required = &required
	}
}

// WithDefault sets the value used when the parameter is absent, and makes
// it optional. Strings are coerced to the parameter type.
func WithDefault(v any) Option {
	return func(c *config) {
		c.defaultVal = v
		c.hasDefault = true
	}
}

// WithAllowedValues restricts the coerced value to the given set.
// Values are coerced to the parameter type when the validator is built.
func WithAllowedValues(values ...any) Option {
	return func(c *config) {
		c.allowed = append(c.allowed, values...)
	}
}

// WithGT requires the value to be greater than n.
func WithGT(n float64) Option {
	return func(c *config) {
		c.gt = &n
	}
}

// WithGE requires the value to be greater than or equal to n.
func WithGE(n float64) Option {
	return func(c *config) {
		c.ge = &n
	}
}

// WithLT requires the value to be less than n.
func WithLT(n float64) Option {
	return func(c *config) {
		c.lt = &n
	}
}

// WithLE requires the value to be less than or equal to n.
func WithLE(n float64) Option {
	return func(c *config) {
		c.le = &n
	}
}

// WithMinLength sets the minimum length of the raw value, in characters.
func WithMinLength(n int) Option {
	return func(c *config) {
		if n < 0 {
			c.errs = append(c.errs, fmt.Errorf("negative min length %d", n))
			return
		}
		c.minLength = n
	}
}

// WithMaxLength sets the maximum length of the raw value, in characters.
func WithMaxLength(n int) Option {
	return func(c *config) {
		if n < 0 {
			c.errs = append(c.errs, fmt.Errorf("negative max length %d", n))
			return
		}
		c.maxLength = n
	}
}

// WithPattern requires the raw value to contain a match of the regular
// expression. Anchor it for a full match. Cannot be combined with
// [WithFormat].
func WithPattern(pattern string) Option {
	return func(c *config) {
		c.pattern = pattern
	}
}

// WithFormat requires the raw value to have a named format. See [Formats].
// Cannot be combined with [WithPattern].
func WithFormat(name string) Option {
	return func(c *config) {
		c.format = name
	}
}

// WithPredicate adds a custom check, run after the built-in ones in the
// order added.
func WithPredicate(p guard.Predicate[Value]) Option {
	return func(c *config) {
		c.predicates = append(c.predicates, p)
	}
}

// WithStatus sets the status for constraint violations. Missing and
// uncoercible values keep their own status. Defaults to 400.
func WithStatus(status int) Option {
	return func(c *config) {
		c.status = status
	}
}

// WithMessage sets the fallback message.
func WithMessage(m guard.Message) Option {
	return func(c *config) {
		c.message = m
	}
}

// WithRequiredMessage overrides the message for a missing value.
func WithRequiredMessage(m guard.Message) Option {
	return func(c *config) {
		c.requiredMsg = m
	}
}

// WithTypeMessage overrides the message for a value that cannot be coerced.
func WithTypeMessage(m guard.Message) Option {
	return func(c *config) {
		c.typeMsg = m
	}
}

// WithAllowedMessage overrides the message for a value outside the allowed set.
func WithAllowedMessage(m guard.Message) Option {
	return func(c *config) {
		c.allowedMsg = m
	}
}

// WithBoundMessage overrides the message for numeric bound violations.
func WithBoundMessage(m guard.Message) Option {
	return func(c *config) {
		c.boundMsg = m
	}
}

// WithLengthMessage overrides the message for length violations.
func WithLengthMessage(m guard.Message) Option {
	return func(c *config) {
		c.lengthMsg = m
	}
}

// WithPatternMessage overrides the message for pattern and format violations.
func WithPatternMessage(m guard.Message) Option {
	return func(c *config) {
		c.patternMsg = m
	}
}

// WithPredicateMessage overrides the message for custom predicate failures.
func WithPredicateMessage(m guard.Message) Option {
	return func(c *config) {
		c.predMsg = m
	}
}

// WithInstrumentation sets the tracing, metrics and logging used by the
// validator. Defaults to [guard.DefaultInstrumentation].
func WithInstrumentation(inst *guard.Instrumentation) Option {
	return func(c *config) {
		c.inst = inst
	}
}
