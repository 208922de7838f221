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

package middleware

import (
	"log/slog"

	riverrors "rivaas.dev/errors"
)

// DefaultMaxMemory is the part of a multipart form kept in memory before
// file parts spill to disk.
const DefaultMaxMemory = 32 << 20

// DefaultFormOverhead is the room left for multipart boundaries, part
// headers and other form fields on top of a validator's maximum file size.
const DefaultFormOverhead = 1 << 20

// Option configures the middleware.
type Option func(*config)

type config struct {
	formatter riverrors.Formatter
	maxMemory int64
	overhead  int64
	optional  bool
	logger    *slog.Logger
}

func defaultConfig() *config {
	return &config{
		formatter: riverrors.NewRFC9457(""),
		maxMemory: DefaultMaxMemory,
		overhead:  DefaultFormOverhead,
		logger:    slog.Default(),
	}
}

// WithFormatter sets how validation errors are rendered.
// Defaults to RFC 9457 problem details.
func WithFormatter(f riverrors.Formatter) Option {
	return func(c *config) {
		if f != nil {
			c.formatter = f
		}
	}
}

// WithMaxMemory sets the multipart memory limit passed to
// [http.Request.ParseMultipartForm].
func WithMaxMemory(n int64) Option {
	return func(c *config) {
		c.maxMemory = n
	}
}

// WithFormOverhead sets how many bytes a multipart body may exceed the
// validator's maximum file size by before it is cut off. Negative values
// are ignored.
func WithFormOverhead(n int64) Option {
	return func(c *config) {
		if n >= 0 {
			c.overhead = n
		}
	}
}

// WithOptional lets requests without the upload through. Validators on a
// present upload still apply.
func WithOptional() Option {
	return func(c *config) {
		c.optional = true
	}
}

// WithLogger sets the logger for rejected requests.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithoutLogging disables logging.
func WithoutLogging() Option {
	return func(c *config) {
		c.logger = slog.New(slog.DiscardHandler)
	}
}
