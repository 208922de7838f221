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
	"net/http"

	"rivaas.dev/guard"
	"rivaas.dev/guard/inspect"
	"rivaas.dev/guard/size"
)

// Option configures a [Validator].
type Option func(*config)

type config struct {
	name            string
	maxSize         *size.Limit
	minSize         *size.Limit
	contentTypes    []string
	filenamePattern string
	steps           []step
	chunkSize       int
	sniffPolicy     inspect.SniffPolicy
	replay          inspect.ReplayMode
	spoolDir        string
	status          int
	message         guard.Message
	sizeMessage     guard.Message
	typeMessage     guard.Message
	filenameMessage guard.Message
	predMessage     guard.Message
	inst            *guard.Instrumentation
	errs            []error
}

// builtin names a check configured by options rather than supplied as a rule.
type builtin uint8

const (
	custom builtin = iota
	contentTypeCheck
	filenameCheck
	sizeCheck
)

// step is one entry of the rule list in configuration order: a built-in
// check, placed where its option first appeared, or a predicate or rule.
type step struct {
	builtin   builtin
	rule      guard.Rule[*Checked]
	predicate guard.Predicate[*Checked]
	message   guard.Message
}

// place records the position of a built-in check the first time one of
// its options is applied.
func (c *config) place(b builtin) {
	for _, s := range c.steps {
		if s.builtin == b {
			return
		}
	}
	c.steps = append(c.steps, step{builtin: b})
}

func defaultConfig() *config {
	return &config{
		name:        "file",
		chunkSize:   inspect.DefaultChunkSize,
		sniffPolicy: inspect.PreferSniffed,
		replay:      inspect.ReplayAuto,
		status:      http.StatusBadRequest,
	}
}

// WithName names the validator in errors, logs, spans and metrics.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithMaxSize sets the maximum size, as a size string ("10MB") or a byte
// count. Larger uploads fail with 413.
func WithMaxSize(v any) Option {
	return func(c *config) {
		l, err := size.FromAny(v)
		if err != nil {
			c.errs = append(c.errs, fmt.Errorf("max size: %w", err))
			return
		}
		c.maxSize = &l
		c.place(sizeCheck)
	}
}

// WithMinSize sets the minimum size, as a size string or a byte count.
// Smaller uploads fail with 400.
func WithMinSize(v any) Option {
	return func(c *config) {
		l, err := size.FromAny(v)
		if err != nil {
			c.errs = append(c.errs, fmt.Errorf("min size: %w", err))
			return
		}
		c.minSize = &l
		c.place(sizeCheck)
	}
}

// WithContentTypes sets the allowed media types. Wildcards such as
// "image/*" are supported. Other types fail with 415.
func WithContentTypes(types ...string) Option {
	return func(c *config) {
		c.contentTypes = append(c.contentTypes, types...)
		c.place(contentTypeCheck)
	}
}

// WithFilenamePattern requires the whole filename to match the regular
// expression.
func WithFilenamePattern(pattern string) Option {
	return func(c *config) {
		c.filenamePattern = pattern
		c.place(filenameCheck)
	}
}

// WithPredicate adds a custom check. A returned error fails validation with
// the error text as message, or msg when given.
func WithPredicate(p guard.Predicate[*Checked], msg ...guard.Message) Option {
	return func(c *config) {
		st := step{predicate: p}
		if len(msg) > 0 {
			st.message = msg[0]
		}
		c.steps = append(c.steps, st)
	}
}

// WithRule appends a rule, evaluated after the checks configured by
// earlier options.
func WithRule(r guard.Rule[*Checked]) Option {
	return func(c *config) {
		c.steps = append(c.steps, step{rule: r})
	}
}

// WithChunkSize sets the read size used to count bytes. Defaults to 64 KiB.
func WithChunkSize(n int) Option {
	return func(c *config) {
		c.chunkSize = n
	}
}

// WithSniffPolicy sets how declared and sniffed content types are
// reconciled. Defaults to [inspect.PreferSniffed].
func WithSniffPolicy(p inspect.SniffPolicy) Option {
	return func(c *config) {
		c.sniffPolicy = p
	}
}

// WithReplay sets how the content is replayed after inspection.
func WithReplay(m inspect.ReplayMode) Option {
	return func(c *config) {
		c.replay = m
	}
}

// WithSpoolDir sets the directory for spool files.
func WithSpoolDir(dir string) Option {
	return func(c *config) {
		c.spoolDir = dir
	}
}

// WithStatus sets the default status code for failures that have no
// specific one. Defaults to 400.
func WithStatus(status int) Option {
	return func(c *config) {
		c.status = status
	}
}

// WithMessage sets the validator-wide default message.
func WithMessage(m guard.Message) Option {
	return func(c *config) {
		c.message = m
	}
}

// WithSizeMessage overrides the size failure message.
func WithSizeMessage(m guard.Message) Option {
	return func(c *config) {
		c.sizeMessage = m
	}
}

// WithTypeMessage overrides the content type failure message.
func WithTypeMessage(m guard.Message) Option {
	return func(c *config) {
		c.typeMessage = m
	}
}

// WithFilenameMessage overrides the filename failure message.
func WithFilenameMessage(m guard.Message) Option {
	return func(c *config) {
		c.filenameMessage = m
	}
}

// WithPredicateMessage overrides the message of every predicate that has
// no message of its own.
func WithPredicateMessage(m guard.Message) Option {
	return func(c *config) {
		c.predMessage = m
	}
}

// WithInstrumentation sets the tracing, metrics and logging sink.
// Defaults to [guard.DefaultInstrumentation].
func WithInstrumentation(inst *guard.Instrumentation) Option {
	return func(c *config) {
		c.inst = inst
	}
}
