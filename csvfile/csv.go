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

// Package csvfile validates uploaded CSV files: encoding, header columns
// and data row counts, on top of the checks of package file.
//
// The content is streamed record by record; it is never held in memory
// as a whole.
//
//	reports := csvfile.MustNew(
//		csvfile.WithFile(file.WithMaxSize("5MB")),
//		csvfile.WithEncodings("utf-8"),
//		csvfile.WithRequiredColumns("id", "email"),
//		csvfile.WithMaxRows(10000),
//	)
//
// Checks run after the file checks, in this order: encoding, CSV syntax,
// exact columns, required columns, disallowed columns, minimum rows, then
// maximum rows. All failures are reported with status 400 unless the file
// validator was configured otherwise.
package csvfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/text/transform"

	"rivaas.dev/guard"
	"rivaas.dev/guard/file"
	"rivaas.dev/guard/inspect"
)

// cancelCheckEvery is how many records are read between context checks.
const cancelCheckEvery = 1024

// Table is an upload that passed the file checks and was parsed as CSV.
type Table struct {
	*file.Checked

	// Encoding is the configured encoding that decoded the content,
	// or "" when no encoding was configured.
	Encoding string

	// Header is the first record, with surrounding spaces trimmed.
	Header []string

	// Rows is the number of data rows, excluding the header.
	Rows int
}

// Validator checks CSV uploads. It is safe for concurrent use.
type Validator struct {
	cfg     *config
	file    *file.Validator
	codecs  []codec
	rules   []guard.Rule[*Table]
	surface guard.Surface
	inst    *guard.Instrumentation
}

// New creates a CSV validator.
func New(opts ...Option) (*Validator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.delimiter == '\r' || cfg.delimiter == '\n' || cfg.delimiter == '"' || cfg.delimiter == 0xFFFD {
		return nil, fmt.Errorf("%w: invalid delimiter %q", guard.ErrInvalidConfig, cfg.delimiter)
	}
	if cfg.minRows >= 0 && cfg.maxRows >= 0 && cfg.minRows > cfg.maxRows {
		return nil, fmt.Errorf("%w: min rows %d is greater than max rows %d",
			guard.ErrInvalidConfig, cfg.minRows, cfg.maxRows)
	}
	for _, col := range cfg.required {
		if slices.Contains(cfg.disallowed, col) {
			return nil, fmt.Errorf("%w: column %q is both required and disallowed", guard.ErrInvalidConfig, col)
		}
	}

	fileOpts := []file.Option{file.WithName(cfg.name)}
	if len(cfg.contentTypes) > 0 {
		fileOpts = append(fileOpts, file.WithContentTypes(cfg.contentTypes...))
	}
	if cfg.inst != nil {
		fileOpts = append(fileOpts, file.WithInstrumentation(cfg.inst))
	}
	fileOpts = append(fileOpts, cfg.fileOpts...)

	fv, err := file.New(fileOpts...)
	if err != nil {
		return nil, err
	}
	if fv.Replay() == inspect.ReplayNone {
		return nil, fmt.Errorf("%w: CSV decoding needs the content replayed", guard.ErrInvalidConfig)
	}

	v := &Validator{
		cfg:     cfg,
		file:    fv,
		surface: fv.Surface(),
		inst:    fv.Instrumentation(),
	}

	encodings := cfg.encodings
	if len(encodings) == 0 {
		encodings = DefaultEncodings
	}
	for _, name := range encodings {
		c, err := lookupCodec(name)
		if err != nil {
			return nil, err
		}
		v.codecs = append(v.codecs, c)
	}

	if len(cfg.exact) > 0 {
		v.rules = append(v.rules, exactColumnsRule(cfg.exact, cfg.columnMessage))
	}
	if len(cfg.required) > 0 {
		v.rules = append(v.rules, requiredColumnsRule(cfg.required, cfg.columnMessage))
	}
	if len(cfg.disallowed) > 0 {
		v.rules = append(v.rules, disallowedColumnsRule(cfg.disallowed, cfg.columnMessage))
	}
	if cfg.minRows >= 0 || cfg.maxRows >= 0 {
		v.rules = append(v.rules, rowsRule(cfg.minRows, cfg.maxRows, cfg.rowMessage))
	}

	return v, nil
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

// File returns the underlying file validator.
func (v *Validator) File() *file.Validator {
	return v.file
}

// Validate runs the file checks, parses the CSV and runs the CSV checks.
// On success the caller must Close the returned table.
func (v *Validator) Validate(ctx context.Context, up *file.Upload) (*Table, error) {
	var table *Table
	err := v.inst.Observe(ctx, v.cfg.name, func(ctx context.Context) error {
		var err error
		table, err = v.check(ctx, up)
		return err
	})

	return table, err
}

func (v *Validator) check(ctx context.Context, up *file.Upload) (*Table, error) {
	checked, err := v.file.Check(ctx, up)
	if err != nil {
		return nil, err
	}

	table, outcome, err := v.analyze(ctx, checked)
	if rerr := checked.Rewind(); err == nil && rerr != nil {
		err = rerr
	}
	if err != nil {
		_ = checked.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		return nil, &guard.Error{
			Kind:      guard.KindUnexpected,
			Status:    http.StatusBadRequest,
			Message:   "An unexpected error occurred during CSV validation.",
			Validator: v.cfg.name,
			Err:       err,
		}
	}
	if outcome.Passed() {
		outcome, err = guard.Evaluate(ctx, table, v.rules...)
		if err != nil {
			_ = checked.Close()
			return nil, err
		}
	}
	if !outcome.Passed() {
		_ = checked.Close()
		return nil, v.surface.Error(outcome)
	}

	return table, nil
}

// analyze reads the content with each configured encoding in turn until one
// decodes it. A failing outcome reports an encoding or syntax problem; a
// non-nil error is an I/O failure or cancellation.
func (v *Validator) analyze(ctx context.Context, checked *file.Checked) (*Table, guard.Outcome, error) {
	names := make([]string, len(v.codecs))
	for i, c := range v.codecs {
		names[i] = c.name

		if i > 0 {
			if err := checked.Rewind(); err != nil {
				return nil, guard.Outcome{}, err
			}
		}

		r := transform.NewReader(checked.Reader(), c.newTransformer())
		table, parseErr, err := v.scan(ctx, r)
		if isEncodingError(err) || isEncodingError(parseErr) {
			continue
		}
		if err != nil {
			return nil, guard.Outcome{}, err
		}
		table.Checked = checked
		table.Encoding = c.name

		return table, v.parseOutcome(parseErr), nil
	}

	msg := fmt.Sprintf("File encoding is not one of the allowed encodings: %s.", strings.Join(names, ", "))
	o := guard.Fail(guard.KindStructural, checked.Upload.Name, msg).WithOverride(v.cfg.encodingMsg)

	return nil, o, nil
}

func (v *Validator) parseOutcome(parseErr error) guard.Outcome {
	if parseErr == nil {
		return guard.Pass()
	}

	return guard.Fail(guard.KindStructural, parseErr.Error(), "Failed to parse CSV file: "+parseErr.Error()).
		WithOverride(v.cfg.parseMessage).
		WithCause(parseErr)
}

// scan parses r. Malformed CSV is returned as parseErr; read failures and
// cancellation as err.
func (v *Validator) scan(ctx context.Context, r io.Reader) (table *Table, parseErr, err error) {
	if v.cfg.headerOnly {
		return v.scanHeaderOnly(ctx, r)
	}

	cr := csv.NewReader(r)
	cr.Comma = v.cfg.delimiter
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	table = &Table{}
	for n := 0; ; n++ {
		if n%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}

		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return table, nil, nil
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return table, err, nil
			}

			return nil, nil, err
		}

		if table.Header == nil {
			table.Header = trimAll(rec)
			continue
		}
		table.Rows++
	}
}

func (v *Validator) scanHeaderOnly(ctx context.Context, r io.Reader) (*Table, error, error) {
	br := bufio.NewReader(r)
	table := &Table{}

	// Skip blank lines before the header, as encoding/csv does.
	var line []byte
	for {
		l, err := br.ReadBytes('\n')
		if len(bytes.TrimSpace(l)) > 0 {
			line = l
			break
		}
		if errors.Is(err, io.EOF) {
			return table, nil, nil
		}
		if err != nil {
			return nil, nil, err
		}
	}

	cr := csv.NewReader(bytes.NewReader(line))
	cr.Comma = v.cfg.delimiter
	cr.FieldsPerRecord = -1
	rec, err := cr.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return table, err, nil
		}

		return nil, nil, err
	}
	table.Header = trimAll(rec)

	blank := true
	for n := 0; ; n++ {
		if n%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}

		chunk, err := br.ReadSlice('\n')
		if len(bytes.TrimSpace(chunk)) > 0 {
			blank = false
		}
		// A full line ends with '\n' or at EOF.
		if len(chunk) > 0 && (chunk[len(chunk)-1] == '\n' || errors.Is(err, io.EOF)) {
			if !blank {
				table.Rows++
			}
			blank = true
		}
		if errors.Is(err, io.EOF) {
			return table, nil, nil
		}
		if err != nil && !errors.Is(err, bufio.ErrBufferFull) {
			return nil, nil, err
		}
	}
}

func trimAll(rec []string) []string {
	out := make([]string, len(rec))
	for i, s := range rec {
		out[i] = strings.TrimSpace(s)
	}

	return out
}

func exactColumnsRule(cols []string, override guard.Message) guard.Rule[*Table] {
	return guard.RuleFunc[*Table](func(_ context.Context, t *Table) guard.Outcome {
		if slices.Equal(t.Header, cols) {
			return guard.Pass()
		}

		msg := fmt.Sprintf("CSV columns do not match exactly. Expected: %s. Got: %s.",
			strings.Join(cols, ", "), strings.Join(t.Header, ", "))

		return guard.Fail(guard.KindStructural, t.Header, msg).WithOverride(override)
	})
}

func requiredColumnsRule(cols []string, override guard.Message) guard.Rule[*Table] {
	return guard.RuleFunc[*Table](func(_ context.Context, t *Table) guard.Outcome {
		var missing []string
		for _, c := range cols {
			if !slices.Contains(t.Header, c) {
				missing = append(missing, c)
			}
		}
		if len(missing) == 0 {
			return guard.Pass()
		}

		msg := fmt.Sprintf("CSV is missing required columns: %s.", strings.Join(missing, ", "))

		return guard.Fail(guard.KindStructural, missing, msg).WithOverride(override)
	})
}

func disallowedColumnsRule(cols []string, override guard.Message) guard.Rule[*Table] {
	return guard.RuleFunc[*Table](func(_ context.Context, t *Table) guard.Outcome {
		var found []string
		for _, c := range cols {
			if slices.Contains(t.Header, c) {
				found = append(found, c)
			}
		}
		if len(found) == 0 {
			return guard.Pass()
		}

		msg := fmt.Sprintf("CSV contains disallowed columns: %s.", strings.Join(found, ", "))

		return guard.Fail(guard.KindStructural, found, msg).WithOverride(override)
	})
}

func rowsRule(minRows, maxRows int, override guard.Message) guard.Rule[*Table] {
	return guard.RuleFunc[*Table](func(_ context.Context, t *Table) guard.Outcome {
		switch {
		case minRows >= 0 && t.Rows < minRows:
			msg := fmt.Sprintf("CSV has %d data rows, below the minimum required rows of %d.", t.Rows, minRows)
			return guard.Fail(guard.KindStructural, t.Rows, msg).WithOverride(override)
		case maxRows >= 0 && t.Rows > maxRows:
			msg := fmt.Sprintf("CSV has %d data rows, which exceeds maximum allowed rows of %d.", t.Rows, maxRows)
			return guard.Fail(guard.KindStructural, t.Rows, msg).WithOverride(override)
		}

		return guard.Pass()
	})
}
