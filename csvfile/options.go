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

package csvfile

import (
	"rivaas.dev/guard"
	"rivaas.dev/guard/file"
)

// DefaultContentTypes are the media types accepted when none are configured.
var DefaultContentTypes = []string{
	"text/csv",
	"text/plain",
	"application/csv",
	"application/vnd.ms-excel",
}

// DefaultEncodings are tried when [WithEncodings] is not given.
var DefaultEncodings = []string{"utf-8"}

// Option configures a [Validator].
type Option func(*config)

type config struct {
	name          string
	fileOpts      []file.Option
	contentTypes  []string
	encodings     []string
	delimiter     rune
	required      []string
	exact         []string
	disallowed    []string
	minRows       int
	maxRows       int
	headerOnly    bool
	columnMessage guard.Message
	rowMessage    guard.Message
	encodingMsg   guard.Message
	parseMessage  guard.Message
	inst          *guard.Instrumentation
}

func defaultConfig() *config {
	return &config{
		name:         "csv",
		contentTypes: DefaultContentTypes,
		delimiter:    ',',
		minRows:      -1,
		maxRows:      -1,
	}
}

// WithName names the validator.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithFile passes options to the underlying file validator.
func WithFile(opts ...file.Option) Option {
	return func(c *config) {
		c.fileOpts = append(c.fileOpts, opts...)
	}
}

// WithContentTypes replaces [DefaultContentTypes].
func WithContentTypes(types ...string) Option {
	return func(c *config) {
		c.contentTypes = types
	}
}

// WithEncodings sets the accepted encodings, tried in order, e.g. "utf-8",
// "ascii", "latin-1" or any IANA name. UTF-8 and ASCII are checked strictly;
// single-byte charsets accept any input. Replaces [DefaultEncodings].
func WithEncodings(names ...string) Option {
	return func(c *config) {
		c.encodings = append(c.encodings, names...)
	}
}

// WithDelimiter sets the field delimiter. Defaults to ','.
func WithDelimiter(r rune) Option {
	return func(c *config) {
		c.delimiter = r
	}
}

// WithRequiredColumns requires the header to contain these columns.
func WithRequiredColumns(cols ...string) Option {
	return func(c *config) {
		c.required = append(c.required, cols...)
	}
}

// WithExactColumns requires the header to be exactly these columns, in order.
func WithExactColumns(cols ...string) Option {
	return func(c *config) {
		c.exact = append(c.exact, cols...)
	}
}

// WithDisallowedColumns rejects headers containing any of these columns.
func WithDisallowedColumns(cols ...string) Option {
	return func(c *config) {
		c.disallowed = append(c.disallowed, cols...)
	}
}

// WithMinRows sets the minimum number of data rows, excluding the header.
func WithMinRows(n int) Option {
	return func(c *config) {
		c.minRows = n
	}
}

// WithMaxRows sets the maximum number of data rows, excluding the header.
func WithMaxRows(n int) Option {
	return func(c *config) {
		c.maxRows = n
	}
}

// WithHeaderOnly parses only the header. Data rows are counted as non-empty
// lines, so quoted fields spanning lines are counted once per line.
func WithHeaderOnly(enabled bool) Option {
	return func(c *config) {
		c.headerOnly = enabled
	}
}

// WithColumnMessage overrides the message of column failures.
func WithColumnMessage(m guard.Message) Option {
	return func(c *config) {
		c.columnMessage = m
	}
}

// WithRowMessage overrides the message of row count failures.
func WithRowMessage(m guard.Message) Option {
	return func(c *config) {
		c.rowMessage = m
	}
}

// WithEncodingMessage overrides the message of encoding failures.
func WithEncodingMessage(m guard.Message) Option {
	return func(c *config) {
		c.encodingMsg = m
	}
}

// WithParseMessage overrides the message of malformed CSV failures.
func WithParseMessage(m guard.Message) Option {
	return func(c *config) {
		c.parseMessage = m
	}
}

// WithInstrumentation sets the tracing, metrics and logging sink.
func WithInstrumentation(inst *guard.Instrumentation) Option {
	return func(c *config) {
		c.inst = inst
	}
}
