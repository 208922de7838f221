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

package image

import (
	"fmt"
	"strconv"
	"strings"

	"rivaas.dev/guard"
	"rivaas.dev/guard/file"
)

// DefaultAspectRatioTolerance is the absolute difference allowed between an
// image's width/height ratio and an allowed ratio.
const DefaultAspectRatioTolerance = 0.05

// DefaultContentTypes are the media types accepted when none are configured.
var DefaultContentTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/bmp",
	"image/tiff",
}

// Option configures a [Validator].
type Option func(*config)

type config struct {
	name          string
	fileOpts      []file.Option
	contentTypes  []string
	formats       []string
	minRes        *Resolution
	maxRes        *Resolution
	exactRes      *Resolution
	ratios        []string
	tolerance     float64
	formatMessage guard.Message
	resMessage    guard.Message
	ratioMessage  guard.Message
	inst          *guard.Instrumentation
}

func defaultConfig() *config {
	return &config{
		name:         "image",
		contentTypes: DefaultContentTypes,
		tolerance:    DefaultAspectRatioTolerance,
	}
}

// WithName names the validator.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithFile passes options to the underlying file validator, e.g. size
// bounds or a filename pattern.
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

// WithFormats restricts decoded formats, e.g. "JPEG", "PNG". Names are
// case-insensitive. Each format needs a registered decoder.
func WithFormats(formats ...string) Option {
	return func(c *config) {
		c.formats = append(c.formats, formats...)
	}
}

// WithMinResolution sets the minimum width and height.
func WithMinResolution(width, height int) Option {
	return func(c *config) {
		c.minRes = &Resolution{Width: width, Height: height}
	}
}

// WithMaxResolution sets the maximum width and height.
func WithMaxResolution(width, height int) Option {
	return func(c *config) {
		c.maxRes = &Resolution{Width: width, Height: height}
	}
}

// WithExactResolution requires exact dimensions.
func WithExactResolution(width, height int) Option {
	return func(c *config) {
		c.exactRes = &Resolution{Width: width, Height: height}
	}
}

// WithAspectRatios sets the allowed ratios as "W:H" strings, e.g. "16:9".
func WithAspectRatios(ratios ...string) Option {
	return func(c *config) {
		c.ratios = append(c.ratios, ratios...)
	}
}

// WithAspectRatioTolerance sets the allowed absolute deviation.
// Defaults to [DefaultAspectRatioTolerance].
func WithAspectRatioTolerance(tol float64) Option {
	return func(c *config) {
		c.tolerance = tol
	}
}

// WithFormatMessage overrides the message for undecodable images and
// disallowed formats.
func WithFormatMessage(m guard.Message) Option {
	return func(c *config) {
		c.formatMessage = m
	}
}

// WithResolutionMessage overrides the resolution failure message.
func WithResolutionMessage(m guard.Message) Option {
	return func(c *config) {
		c.resMessage = m
	}
}

// WithAspectRatioMessage overrides the aspect ratio failure message.
func WithAspectRatioMessage(m guard.Message) Option {
	return func(c *config) {
		c.ratioMessage = m
	}
}

// WithInstrumentation sets the tracing, metrics and logging sink.
func WithInstrumentation(inst *guard.Instrumentation) Option {
	return func(c *config) {
		c.inst = inst
	}
}

// Resolution is an image size in pixels.
type Resolution struct {
	Width  int
	Height int
}

// String returns "WxH".
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// aspectRatio is a parsed "W:H" ratio.
type aspectRatio struct {
	text  string
	value float64
}

func parseAspectRatio(s string) (aspectRatio, error) {
	w, h, ok := strings.Cut(strings.TrimSpace(s), ":")
	if ok {
		wf, werr := strconv.ParseFloat(strings.TrimSpace(w), 64)
		hf, herr := strconv.ParseFloat(strings.TrimSpace(h), 64)
		if werr == nil && herr == nil && wf > 0 && hf > 0 {
			return aspectRatio{text: strings.TrimSpace(s), value: wf / hf}, nil
		}
	}

	return aspectRatio{}, fmt.Errorf("%w: invalid aspect ratio %q, expected 'W:H' (e.g. '16:9')",
		guard.ErrInvalidConfig, s)
}

// canonicalFormat maps a format name to the upper-case name reported by
// the decoders.
func canonicalFormat(name string) string {
	f := strings.ToUpper(strings.TrimSpace(name))
	switch f {
	case "JPG":
		return "JPEG"
	case "TIF":
		return "TIFF"
	}

	return f
}

// FeatureName returns the capability name under which the decoder for a
// format is registered, e.g. "image/png".
func FeatureName(format string) string {
	return "image/" + strings.ToLower(canonicalFormat(format))
}
