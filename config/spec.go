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

package config

import (
	"fmt"

	"rivaas.dev/guard"
	"rivaas.dev/guard/csvfile"
	"rivaas.dev/guard/file"
	"rivaas.dev/guard/image"
	"rivaas.dev/guard/inspect"
	"rivaas.dev/guard/param"
	"rivaas.dev/guard/size"
)

// Document is the decoded form of a configuration file.
type Document struct {
	Files  map[string]FileSpec  `config:"files" validate:"dive"`
	Images map[string]ImageSpec `config:"images" validate:"dive"`
	CSV    map[string]CSVSpec   `config:"csv" validate:"dive"`
	Params map[string]ParamSpec `config:"params" validate:"dive"`
}

// FileSpec configures a file validator.
type FileSpec struct {
	MaxSize         *size.Limit `config:"max_size"`
	MinSize         *size.Limit `config:"min_size"`
	ContentTypes    []string    `config:"content_types" validate:"dive,required"`
	FilenamePattern string      `config:"filename_pattern"`
	ChunkSize       *size.Limit `config:"chunk_size"`
	SniffPolicy     string      `config:"sniff_policy" validate:"omitempty,oneof=prefer-sniffed prefer-declared declared-only"`
	Replay          string      `config:"replay" validate:"omitempty,oneof=auto memory spool none"`
	SpoolDir        string      `config:"spool_dir"`
	Status          int         `config:"status" validate:"omitempty,min=400,max=599"`
	Message         string      `config:"message"`
	SizeMessage     string      `config:"size_message"`
	TypeMessage     string      `config:"type_message"`
	FilenameMessage string      `config:"filename_message"`
}

// Resolution is a width and height in pixels.
type Resolution struct {
	Width  int `config:"width" validate:"required,gt=0"`
	Height int `config:"height" validate:"required,gt=0"`
}

// ImageSpec configures an image validator.
type ImageSpec struct {
	FileSpec `config:",squash"`

	Formats              []string    `config:"formats" validate:"dive,required"`
	MinResolution        *Resolution `config:"min_resolution"`
	MaxResolution        *Resolution `config:"max_resolution"`
	ExactResolution      *Resolution `config:"exact_resolution"`
	AspectRatios         []string    `config:"aspect_ratios" validate:"dive,required"`
	AspectRatioTolerance *float64    `config:"aspect_ratio_tolerance" validate:"omitempty,gte=0"`
	FormatMessage        string      `config:"format_message"`
	ResolutionMessage    string      `config:"resolution_message"`
	AspectRatioMessage   string      `config:"aspect_ratio_message"`
}

// CSVSpec configures a CSV validator.
type CSVSpec struct {
	FileSpec `config:",squash"`

	Encodings         []string `config:"encodings" validate:"dive,required"`
	Delimiter         string   `config:"delimiter" validate:"omitempty,len=1"`
	RequiredColumns   []string `config:"required_columns"`
	ExactColumns      []string `config:"exact_columns"`
	DisallowedColumns []string `config:"disallowed_columns"`
	MinRows           *int     `config:"min_rows" validate:"omitempty,gte=0"`
	MaxRows           *int     `config:"max_rows" validate:"omitempty,gte=0"`
	HeaderOnly        bool     `config:"header_only"`
	ColumnMessage     string   `config:"column_message"`
	RowMessage        string   `config:"row_message"`
	EncodingMessage   string   `config:"encoding_message"`
	ParseMessage      string   `config:"parse_message"`
}

// ParamSpec configures a parameter validator. Name defaults to the key
// the entry is listed under.
type ParamSpec struct {
	Source          string   `config:"source" validate:"required,oneof=query header cookie path"`
	Name            string   `config:"name"`
	Type            string   `config:"type"`
	Required        *bool    `config:"required"`
	Default         any      `config:"default"`
	AllowedValues   []any    `config:"allowed_values"`
	GT              *float64 `config:"gt"`
	GE              *float64 `config:"ge"`
	LT              *float64 `config:"lt"`
	LE              *float64 `config:"le"`
	MinLength       *int     `config:"min_length" validate:"omitempty,gte=0"`
	MaxLength       *int     `config:"max_length" validate:"omitempty,gte=0"`
	Pattern         string   `config:"pattern" validate:"excluded_with=Format"`
	Format          string   `config:"format"`
	Status          int      `config:"status" validate:"omitempty,min=400,max=599"`
	Message         string   `config:"message"`
	RequiredMessage string   `config:"required_message"`
	TypeMessage     string   `config:"type_message"`
	AllowedMessage  string   `config:"allowed_message"`
	BoundMessage    string   `config:"bound_message"`
	LengthMessage   string   `config:"length_message"`
	PatternMessage  string   `config:"pattern_message"`
}

func (d *Document) build(o *options) (*Set, error) {
	set := &Set{
		Files:  make(map[string]*file.Validator, len(d.Files)),
		Images: make(map[string]*image.Validator, len(d.Images)),
		CSV:    make(map[string]*csvfile.Validator, len(d.CSV)),
		Params: make(map[string]*param.Validator, len(d.Params)),
	}

	for _, name := range sortedKeys(d.Files) {
		opts, err := d.Files[name].options(true)
		if err != nil {
			return nil, fmt.Errorf("files.%s: %w", name, err)
		}
		opts = append(opts, file.WithName(name))
		if o.inst != nil {
			opts = append(opts, file.WithInstrumentation(o.inst))
		}

		v, err := file.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("files.%s: %w", name, err)
		}
		set.Files[name] = v
	}

	for _, name := range sortedKeys(d.Images) {
		v, err := d.Images[name].build(name, o)
		if err != nil {
			return nil, fmt.Errorf("images.%s: %w", name, err)
		}
		set.Images[name] = v
	}

	for _, name := range sortedKeys(d.CSV) {
		v, err := d.CSV[name].build(name, o)
		if err != nil {
			return nil, fmt.Errorf("csv.%s: %w", name, err)
		}
		set.CSV[name] = v
	}

	for _, name := range sortedKeys(d.Params) {
		v, err := d.Params[name].build(name, o)
		if err != nil {
			return nil, fmt.Errorf("params.%s: %w", name, err)
		}
		set.Params[name] = v
	}

	return set, nil
}

// options converts the entry to file options. Content types are left out
// when the caller passes them to a validator with its own defaults.
func (s FileSpec) options(withTypes bool) ([]file.Option, error) {
	var opts []file.Option

	// Checks run in option order: content type, filename, then size.
	if withTypes && len(s.ContentTypes) > 0 {
		opts = append(opts, file.WithContentTypes(s.ContentTypes...))
	}
	if s.FilenamePattern != "" {
		opts = append(opts, file.WithFilenamePattern(s.FilenamePattern))
	}
	if s.MaxSize != nil {
		opts = append(opts, file.WithMaxSize(*s.MaxSize))
	}
	if s.MinSize != nil {
		opts = append(opts, file.WithMinSize(*s.MinSize))
	}
	if s.ChunkSize != nil {
		opts = append(opts, file.WithChunkSize(int(s.ChunkSize.Bytes())))
	}
	if s.SniffPolicy != "" {
		p, ok := inspect.ParseSniffPolicy(s.SniffPolicy)
		if !ok {
			return nil, fmt.Errorf("%w: unknown sniff policy %q", guard.ErrInvalidConfig, s.SniffPolicy)
		}
		opts = append(opts, file.WithSniffPolicy(p))
	}
	if s.Replay != "" {
		m, ok := inspect.ParseReplayMode(s.Replay)
		if !ok {
			return nil, fmt.Errorf("%w: unknown replay mode %q", guard.ErrInvalidConfig, s.Replay)
		}
		opts = append(opts, file.WithReplay(m))
	}
	if s.SpoolDir != "" {
		opts = append(opts, file.WithSpoolDir(s.SpoolDir))
	}
	if s.Status != 0 {
		opts = append(opts, file.WithStatus(s.Status))
	}
	if m := message(s.Message); m != nil {
		opts = append(opts, file.WithMessage(m))
	}
	if m := message(s.SizeMessage); m != nil {
		opts = append(opts, file.WithSizeMessage(m))
	}
	if m := message(s.TypeMessage); m != nil {
		opts = append(opts, file.WithTypeMessage(m))
	}
	if m := message(s.FilenameMessage); m != nil {
		opts = append(opts, file.WithFilenameMessage(m))
	}

	return opts, nil
}

func (s ImageSpec) build(name string, o *options) (*image.Validator, error) {
	fileOpts, err := s.FileSpec.options(false)
	if err != nil {
		return nil, err
	}

	opts := []image.Option{image.WithName(name), image.WithFile(fileOpts...)}
	if len(s.ContentTypes) > 0 {
		opts = append(opts, image.WithContentTypes(s.ContentTypes...))
	}
	if len(s.Formats) > 0 {
		opts = append(opts, image.WithFormats(s.Formats...))
	}
	if r := s.MinResolution; r != nil {
		opts = append(opts, image.WithMinResolution(r.Width, r.Height))
	}
	if r := s.MaxResolution; r != nil {
		opts = append(opts, image.WithMaxResolution(r.Width, r.Height))
	}
	if r := s.ExactResolution; r != nil {
		opts = append(opts, image.WithExactResolution(r.Width, r.Height))
	}
	if len(s.AspectRatios) > 0 {
		opts = append(opts, image.WithAspectRatios(s.AspectRatios...))
	}
	if s.AspectRatioTolerance != nil {
		opts = append(opts, image.WithAspectRatioTolerance(*s.AspectRatioTolerance))
	}
	if m := message(s.FormatMessage); m != nil {
		opts = append(opts, image.WithFormatMessage(m))
	}
	if m := message(s.ResolutionMessage); m != nil {
		opts = append(opts, image.WithResolutionMessage(m))
	}
	if m := message(s.AspectRatioMessage); m != nil {
		opts = append(opts, image.WithAspectRatioMessage(m))
	}
	if o.inst != nil {
		opts = append(opts, image.WithInstrumentation(o.inst))
	}

	return image.New(opts...)
}

func (s CSVSpec) build(name string, o *options) (*csvfile.Validator, error) {
	fileOpts, err := s.FileSpec.options(false)
	if err != nil {
		return nil, err
	}

	opts := []csvfile.Option{csvfile.WithName(name), csvfile.WithFile(fileOpts...)}
	if len(s.ContentTypes) > 0 {
		opts = append(opts, csvfile.WithContentTypes(s.ContentTypes...))
	}
	if len(s.Encodings) > 0 {
		opts = append(opts, csvfile.WithEncodings(s.Encodings...))
	}
	if s.Delimiter != "" {
		opts = append(opts, csvfile.WithDelimiter([]rune(s.Delimiter)[0]))
	}
	if len(s.RequiredColumns) > 0 {
		opts = append(opts, csvfile.WithRequiredColumns(s.RequiredColumns...))
	}
	if len(s.ExactColumns) > 0 {
		opts = append(opts, csvfile.WithExactColumns(s.ExactColumns...))
	}
	if len(s.DisallowedColumns) > 0 {
		opts = append(opts, csvfile.WithDisallowedColumns(s.DisallowedColumns...))
	}
	if s.MinRows != nil {
		opts = append(opts, csvfile.WithMinRows(*s.MinRows))
	}
	if s.MaxRows != nil {
		opts = append(opts, csvfile.WithMaxRows(*s.MaxRows))
	}
	if s.HeaderOnly {
		opts = append(opts, csvfile.WithHeaderOnly(true))
	}
	if m := message(s.ColumnMessage); m != nil {
		opts = append(opts, csvfile.WithColumnMessage(m))
	}
	if m := message(s.RowMessage); m != nil {
		opts = append(opts, csvfile.WithRowMessage(m))
	}
	if m := message(s.EncodingMessage); m != nil {
		opts = append(opts, csvfile.WithEncodingMessage(m))
	}
	if m := message(s.ParseMessage); m != nil {
		opts = append(opts, csvfile.WithParseMessage(m))
	}
	if o.inst != nil {
		opts = append(opts, csvfile.WithInstrumentation(o.inst))
	}

	return csvfile.New(opts...)
}

func (s ParamSpec) build(key string, o *options) (*param.Validator, error) {
	source, err := param.ParseSource(s.Source)
	if err != nil {
		return nil, err
	}
	typ, err := param.ParseType(s.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", guard.ErrInvalidConfig, err)
	}

	name := s.Name
	if name == "" {
		name = key
	}

	opts := []param.Option{param.WithName(key), param.WithType(typ)}
	if s.Required != nil {
		opts = append(opts, param.WithRequired(*s.Required))
	}
	if s.Default != nil {
		opts = append(opts, param.WithDefault(s.Default))
	}
	if len(s.AllowedValues) > 0 {
		opts = append(opts, param.WithAllowedValues(s.AllowedValues...))
	}
	if s.GT != nil {
		opts = append(opts, param.WithGT(*s.GT))
	}
	if s.GE != nil {
		opts = append(opts, param.WithGE(*s.GE))
	}
	if s.LT != nil {
		opts = append(opts, param.WithLT(*s.LT))
	}
	if s.LE != nil {
		opts = append(opts, param.WithLE(*s.LE))
	}
	if s.MinLength != nil {
		opts = append(opts, param.WithMinLength(*s.MinLength))
	}
	if s.MaxLength != nil {
		opts = append(opts, param.WithMaxLength(*s.MaxLength))
	}
	if s.Pattern != "" {
		opts = append(opts, param.WithPattern(s.Pattern))
	}
	if s.Format != "" {
		opts = append(opts, param.WithFormat(s.Format))
	}
	if s.Status != 0 {
		opts = append(opts, param.WithStatus(s.Status))
	}
	messages := []struct {
		text string
		with func(guard.Message) param.Option
	}{
		{s.Message, param.WithMessage},
		{s.RequiredMessage, param.WithRequiredMessage},
		{s.TypeMessage, param.WithTypeMessage},
		{s.AllowedMessage, param.WithAllowedMessage},
		{s.BoundMessage, param.WithBoundMessage},
		{s.LengthMessage, param.WithLengthMessage},
		{s.PatternMessage, param.WithPatternMessage},
	}
	for _, m := range messages {
		if msg := message(m.text); msg != nil {
			opts = append(opts, m.with(msg))
		}
	}
	if o.inst != nil {
		opts = append(opts, param.WithInstrumentation(o.inst))
	}

	return param.New(source, name, opts...)
}

// message returns nil for empty text so the built-in message applies.
func message(text string) guard.Message {
	if text == "" {
		return nil
	}

	return guard.Static(text)
}
