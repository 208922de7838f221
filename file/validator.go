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

// Package file validates uploaded files: size bounds, content type,
// filename and custom predicates.
//
// Content is streamed in chunks, so size checks never buffer the whole
// upload; when the transport already knows the size (multipart parts) that
// size is trusted and only the first chunk is read, for content sniffing.
//
//	avatars := file.MustNew(
//		file.WithMaxSize("2MB"),
//		file.WithContentTypes("image/*"),
//		file.WithFilenamePattern(`[\w\s-]+\.(jpg|jpeg|png)`),
//	)
//
//	checked, err := avatars.Validate(ctx, upload)
//	if err != nil {
//		return err // *guard.Error
//	}
//	defer checked.Close()
//	io.Copy(dst, checked.Reader())
//
// Checks run in this order: content type (415), filename (400), size
// (413 above the maximum, 400 below the minimum), then predicates and extra
// rules in the order they were configured. The first failure is reported.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"rivaas.dev/guard"
	"rivaas.dev/guard/inspect"
	"rivaas.dev/guard/size"
)

const unexpectedMessage = "An unexpected error occurred during file validation."

// Checked is an upload that went through inspection.
type Checked struct {
	Upload     *Upload
	Inspection *inspect.Result
}

// Size returns the size in bytes. For uploads larger than the maximum whose
// size was not known in advance, it is only a lower bound.
func (c *Checked) Size() int64 {
	return c.Inspection.TotalBytes
}

// ContentType returns the effective content type.
func (c *Checked) ContentType() string {
	return c.Inspection.ContentType
}

// Reader returns the content positioned at its start.
func (c *Checked) Reader() io.Reader {
	return c.Inspection.Payload()
}

// Rewind positions [Checked.Reader] back at the start.
func (c *Checked) Rewind() error {
	return c.Inspection.Rewind()
}

// Close releases inspection resources. It does not close the upload.
func (c *Checked) Close() error {
	if c == nil {
		return nil
	}

	return c.Inspection.Close()
}

// Validator checks uploads against a fixed configuration.
// It is safe for concurrent use.
type Validator struct {
	cfg      *config
	rules    []guard.Rule[*Checked]
	surface  guard.Surface
	inspects []inspect.Option
}

// New creates a validator. It returns an error wrapping
// [guard.ErrInvalidConfig] or [guard.ErrMalformedSize] when the options are
// inconsistent.
func New(opts ...Option) (*Validator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.errs) > 0 {
		return nil, fmt.Errorf("%w: %w", guard.ErrInvalidConfig, errors.Join(cfg.errs...))
	}
	if cfg.minSize != nil && cfg.maxSize != nil && cfg.minSize.Bytes() > cfg.maxSize.Bytes() {
		return nil, fmt.Errorf("%w: min size %s is greater than max size %s",
			guard.ErrInvalidConfig, cfg.minSize, cfg.maxSize)
	}
	if cfg.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", guard.ErrInvalidConfig, cfg.chunkSize)
	}
	if cfg.inst == nil {
		cfg.inst = guard.DefaultInstrumentation()
	}

	v := &Validator{
		cfg: cfg,
		surface: guard.Surface{
			Name:    cfg.name,
			Status:  cfg.status,
			Message: cfg.message,
		},
		inspects: []inspect.Option{
			inspect.WithChunkSize(cfg.chunkSize),
			inspect.WithSniffPolicy(cfg.sniffPolicy),
			inspect.WithReplay(cfg.replay),
			inspect.WithSpoolDir(cfg.spoolDir),
		},
	}
	if cfg.maxSize != nil {
		v.inspects = append(v.inspects, inspect.WithMaxBytes(cfg.maxSize.Bytes()))
	}

	for _, st := range cfg.steps {
		r, err := cfg.rule(st)
		if err != nil {
			return nil, err
		}
		if r != nil {
			v.rules = append(v.rules, r)
		}
	}

	return v, nil
}

// rule builds the rule for one configuration step. Built-in checks whose
// options ended up empty yield no rule.
func (cfg *config) rule(st step) (guard.Rule[*Checked], error) {
	switch st.builtin {
	case contentTypeCheck:
		if len(cfg.contentTypes) == 0 {
			return nil, nil
		}
		patterns := make([]ContentTypePattern, 0, len(cfg.contentTypes))
		for _, ct := range cfg.contentTypes {
			p, err := ParseContentTypePattern(ct)
			if err != nil {
				return nil, err
			}
			patterns = append(patterns, p)
		}
		return contentTypeRule(patterns, cfg.typeMessage), nil
	case filenameCheck:
		if cfg.filenamePattern == "" {
			return nil, nil
		}
		re, err := regexp.Compile(`^(?:` + cfg.filenamePattern + `)$`)
		if err != nil {
			return nil, fmt.Errorf("%w: filename pattern: %w", guard.ErrInvalidConfig, err)
		}
		return filenameRule(re, cfg.filenameMessage), nil
	case sizeCheck:
		return sizeRule(cfg.minSize, cfg.maxSize, cfg.sizeMessage), nil
	}

	if st.rule != nil {
		return st.rule, nil
	}
	msg := st.message
	if msg == nil {
		msg = cfg.predMessage
	}

	return guard.PredicateRule(st.predicate, msg), nil
}

// MustNew is like [New] but panics on error.
func MustNew(opts ...Option) *Validator {
	v, err := New(opts...)
	if err != nil {
		panic(err)
	}

	return v
}

// Name returns the validator name.
func (v *Validator) Name() string {
	return v.cfg.name
}

// MaxSize returns the configured maximum, if any.
func (v *Validator) MaxSize() (size.Limit, bool) {
	if v.cfg.maxSize == nil {
		return size.Limit{}, false
	}

	return *v.cfg.maxSize, true
}

// Replay returns how the content is replayed after inspection.
func (v *Validator) Replay() inspect.ReplayMode {
	return v.cfg.replay
}

// Surface returns the defaults used to build errors. Validators composing
// this one use it so that failures share name, status and message.
func (v *Validator) Surface() guard.Surface {
	return v.surface
}

// Instrumentation returns the instrumentation in use.
func (v *Validator) Instrumentation() *guard.Instrumentation {
	return v.cfg.inst
}

// Validate inspects the upload and runs every check.
//
// On success the returned [Checked] gives access to the content from its
// start; the caller must Close it. On failure the error is a [*guard.Error],
// or the context error when ctx was cancelled.
func (v *Validator) Validate(ctx context.Context, up *Upload) (*Checked, error) {
	var checked *Checked
	err := v.cfg.inst.Observe(ctx, v.cfg.name, func(ctx context.Context) error {
		var err error
		checked, err = v.Check(ctx, up)
		return err
	})

	return checked, err
}

// Check is [Validator.Validate] without instrumentation. Validators that
// embed this one call it inside their own observation.
func (v *Validator) Check(ctx context.Context, up *Upload) (*Checked, error) {
	if up == nil || up.Content == nil {
		return nil, v.unexpected(errors.New("no file content"))
	}

	opts := append([]inspect.Option{inspect.WithDeclaredType(up.ContentType)}, v.inspects...)
	if up.Size >= 0 {
		opts = append(opts, inspect.WithKnownSize(up.Size))
	}

	res, err := inspect.Inspect(ctx, up.Content, opts...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		return nil, v.unexpected(err)
	}
	v.cfg.inst.RecordInspected(ctx, v.cfg.name, res.TotalBytes)

	checked := &Checked{Upload: up, Inspection: res}
	outcome, err := guard.Evaluate(ctx, checked, v.rules...)
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	if rerr := res.Rewind(); rerr != nil && !errors.Is(rerr, inspect.ErrNotReplayable) {
		_ = res.Close()
		return nil, v.unexpected(rerr)
	}
	if !outcome.Passed() {
		_ = res.Close()
		return nil, v.surface.Error(outcome)
	}

	return checked, nil
}

func (v *Validator) unexpected(err error) *guard.Error {
	return &guard.Error{
		Kind:      guard.KindUnexpected,
		Status:    http.StatusBadRequest,
		Message:   unexpectedMessage,
		Validator: v.cfg.name,
		Err:       err,
	}
}

func contentTypeRule(patterns []ContentTypePattern, override guard.Message) guard.Rule[*Checked] {
	allowed := make([]string, len(patterns))
	for i, p := range patterns {
		allowed[i] = p.String()
	}
	list := strings.Join(allowed, ", ")

	return guard.RuleFunc[*Checked](func(_ context.Context, c *Checked) guard.Outcome {
		ct := c.ContentType()
		for _, p := range patterns {
			if p.Match(ct) {
				return guard.Pass()
			}
		}

		msg := fmt.Sprintf("File has an unsupported media type: '%s'. Allowed types are: %s", ct, list)

		return guard.Fail(guard.KindContentType, ct, msg).
			WithStatus(http.StatusUnsupportedMediaType).
			WithOverride(override)
	})
}

func filenameRule(re *regexp.Regexp, override guard.Message) guard.Rule[*Checked] {
	return guard.RuleFunc[*Checked](func(_ context.Context, c *Checked) guard.Outcome {
		name := c.Upload.Name
		if re.MatchString(name) {
			return guard.Pass()
		}

		msg := fmt.Sprintf("Filename '%s' does not match the required pattern.", name)

		return guard.Fail(guard.KindFilename, name, msg).WithOverride(override)
	})
}

func sizeRule(minSize, maxSize *size.Limit, override guard.Message) guard.Rule[*Checked] {
	return guard.RuleFunc[*Checked](func(_ context.Context, c *Checked) guard.Outcome {
		n := c.Size()

		if maxSize != nil && (c.Inspection.Truncated || n > maxSize.Bytes()) {
			amount := fmt.Sprintf("%d bytes", n)
			if c.Inspection.Truncated && c.Upload.Size < 0 {
				amount = "at least " + amount
			}
			msg := fmt.Sprintf("File size (%s) exceeds the maximum limit of %s.", amount, maxSize)

			return guard.Fail(guard.KindSizeBound, n, msg).
				WithStatus(http.StatusRequestEntityTooLarge).
				WithOverride(override)
		}

		if minSize != nil && n < minSize.Bytes() {
			msg := fmt.Sprintf("File size (%d bytes) is less than the minimum requirement of %s.", n, minSize)

			return guard.Fail(guard.KindSizeBound, n, msg).WithOverride(override)
		}

		return guard.Pass()
	})
}
