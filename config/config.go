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

// Package config builds validator sets from YAML, TOML or JSON documents.
//
// A document names validators in four sections:
//
//	files:
//	  report:
//	    max_size: 10MB
//	    content_types: [application/pdf]
//	images:
//	  avatar:
//	    max_size: 2MB
//	    formats: [JPEG, PNG]
//	    max_resolution: {width: 1024, height: 1024}
//	    aspect_ratios: ["1:1"]
//	csv:
//	  contacts:
//	    encodings: [utf-8]
//	    required_columns: [id, email]
//	params:
//	  page:
//	    source: query
//	    type: int
//	    default: 1
//	    ge: 1
//
// Loading checks the document against an embedded JSON Schema, decodes it,
// validates the decoded structure, and then builds every validator, so a
// bad size string, regular expression or unavailable image format is
// reported before any request is served.
package config

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"rivaas.dev/validation"

	"rivaas.dev/guard"
	"rivaas.dev/guard/csvfile"
	"rivaas.dev/guard/file"
	"rivaas.dev/guard/image"
	"rivaas.dev/guard/param"
	"rivaas.dev/guard/size"
)

// ErrInvalidDocument is returned when a document cannot be parsed, does
// not match the schema, or fails validation.
var ErrInvalidDocument = errors.New("config: invalid document")

// Format is a document syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatFromPath returns the format implied by the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	}

	return "", fmt.Errorf("%w: unknown format for %q", ErrInvalidDocument, path)
}

//go:embed schema.json
var schemaJSON []byte

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, err
	}

	const name = "guard.schema.json"
	compiler := jsonschema.NewCompiler()
	if err = compiler.AddResource(name, doc); err != nil {
		return nil, err
	}

	return compiler.Compile(name)
})

// Option configures loading.
type Option func(*options)

type options struct {
	inst *guard.Instrumentation
}

// WithInstrumentation sets the instrumentation shared by every validator
// in the set.
func WithInstrumentation(inst *guard.Instrumentation) Option {
	return func(o *options) {
		o.inst = inst
	}
}

// Set holds the validators of one document, by name.
type Set struct {
	Files  map[string]*file.Validator
	Images map[string]*image.Validator
	CSV    map[string]*csvfile.Validator
	Params map[string]*param.Validator
}

// Len returns the number of validators.
func (s *Set) Len() int {
	return len(s.Files) + len(s.Images) + len(s.CSV) + len(s.Params)
}

// Names returns "section.name" for every validator, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, s.Len())
	for name := range s.Files {
		names = append(names, "files."+name)
	}
	for name := range s.Images {
		names = append(names, "images."+name)
	}
	for name := range s.CSV {
		names = append(names, "csv."+name)
	}
	for name := range s.Params {
		names = append(names, "params."+name)
	}
	slices.Sort(names)

	return names
}

// Load reads a document from path. The format follows the extension.
func Load(path string, opts ...Option) (*Set, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data, format, opts...)
}

// Parse builds a set from a document.
func Parse(data []byte, format Format, opts ...Option) (*Set, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	values, err := decode(data, format)
	if err != nil {
		return nil, err
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	if err = schema.Validate(values); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	var doc Document
	if err = bind(values, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if err = validation.Validate(context.Background(), &doc, validation.WithStrategy(validation.StrategyTags)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return doc.build(o)
}

// decode parses data and normalizes it to JSON values, as the schema
// validator expects.
func decode(data []byte, format Format) (any, error) {
	var raw map[string]any

	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	case FormatTOML:
		err = toml.Unmarshal(data, &raw)
	case FormatJSON:
		err = json.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidDocument, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDocument, format, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return jsonschema.UnmarshalJSON(bytes.NewReader(normalized))
}

func bind(values any, doc *Document) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "config",
		WeaklyTypedInput: true,
		DecodeHook:       sizeHook(),
		Result:           doc,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err = decoder.Decode(values); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}

	return nil
}

// sizeHook decodes size strings and byte counts into [size.Limit].
func sizeHook() mapstructure.DecodeHookFuncType {
	limitType := reflect.TypeFor[size.Limit]()

	return func(_, to reflect.Type, data any) (any, error) {
		if to != limitType {
			return data, nil
		}

		return size.FromAny(data)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
