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

//go:build !integration

package config

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/guard"
	"rivaas.dev/guard/file"
	"rivaas.dev/guard/param"
)

const yamlDoc = `
files:
  report:
    max_size: 10MB
    min_size: 1
    content_types: [application/pdf]
    filename_pattern: '[\w-]+\.pdf'
    sniff_policy: prefer-declared
    replay: memory
    size_message: Report is too big.
images:
  avatar:
    max_size: 2MB
    formats: [JPEG, PNG]
    max_resolution: {width: 1024, height: 1024}
    aspect_ratios: ["1:1"]
csv:
  contacts:
    encodings: [utf-8, latin-1]
    delimiter: ";"
    required_columns: [id, email]
    max_rows: 1000
params:
  page:
    source: query
    type: int
    default: 1
    ge: 1
  tenant:
    source: header
    name: X-Tenant
    allowed_values: [acme, globex]
`

const tomlDoc = `
[files.report]
max_size = 1048576
content_types = ["application/pdf"]

[params.id]
source = "path"
type = "uuid"
`

const jsonDoc = `{
  "params": {
    "status": {"source": "query", "allowed_values": ["active", "pending"], "required": true}
  }
}`

func TestParse_YAML(t *testing.T) {
	t.Parallel()

	set, err := Parse([]byte(yamlDoc), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, 5, set.Len())
	assert.Equal(t, []string{"csv.contacts", "files.report", "images.avatar", "params.page", "params.tenant"}, set.Names())

	report := set.Files["report"]
	require.NotNil(t, report)
	assert.Equal(t, "report", report.Name())
	limit, ok := report.MaxSize()
	require.True(t, ok)
	assert.Equal(t, int64(10<<20), limit.Bytes())

	up := file.NewUpload("q3.pdf", "application/pdf", bytes.NewReader([]byte("%PDF-1.4 tiny")))
	checked, err := report.Validate(t.Context(), up)
	require.NoError(t, err)
	require.NoError(t, checked.Close())

	up = file.NewUpload("q3.txt", "application/pdf", bytes.NewReader([]byte("%PDF-1.4 tiny")))
	_, err = report.Validate(t.Context(), up)
	require.ErrorIs(t, err, guard.ErrFilename)

	page := set.Params["page"]
	require.NotNil(t, page)
	assert.Equal(t, param.SourceQuery, page.Source())
	v, err := page.Validate(t.Context(), "", false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Value)

	tenant := set.Params["tenant"]
	require.NotNil(t, tenant)
	assert.Equal(t, "X-Tenant", tenant.Param())
	_, err = tenant.Validate(t.Context(), "initech", true)
	require.ErrorIs(t, err, guard.ErrAllowedValue)

	assert.NotNil(t, set.Images["avatar"])
	assert.NotNil(t, set.CSV["contacts"])
}

func TestParse_TOML(t *testing.T) {
	t.Parallel()

	set, err := Parse([]byte(tomlDoc), FormatTOML)
	require.NoError(t, err)

	limit, ok := set.Files["report"].MaxSize()
	require.True(t, ok)
	assert.Equal(t, int64(1<<20), limit.Bytes())

	id := set.Params["id"]
	require.NotNil(t, id)
	assert.True(t, id.Required())
	_, err = id.Validate(t.Context(), "not-a-uuid", true)
	require.ErrorIs(t, err, guard.ErrTypeCoercion)
}

func TestParse_JSON(t *testing.T) {
	t.Parallel()

	set, err := Parse([]byte(jsonDoc), FormatJSON)
	require.NoError(t, err)

	status := set.Params["status"]
	require.NotNil(t, status)

	_, err = status.Validate(t.Context(), "", false)
	var gerr *guard.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusUnprocessableEntity, gerr.HTTPStatus())
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	set, err := Parse(nil, FormatYAML)
	require.NoError(t, err)
	assert.Zero(t, set.Len())
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		doc    string
		format Format
		want   error
	}{
		{
			name:   "syntax",
			doc:    "files: [",
			format: FormatYAML,
			want:   ErrInvalidDocument,
		},
		{
			name:   "unknown section",
			doc:    "videos: {}",
			format: FormatYAML,
			want:   ErrInvalidDocument,
		},
		{
			name:   "unknown field",
			doc:    "files: {report: {max_bytes: 10}}",
			format: FormatYAML,
			want:   ErrInvalidDocument,
		},
		{
			name:   "malformed size",
			doc:    "files: {report: {max_size: lots}}",
			format: FormatYAML,
			want:   ErrInvalidDocument,
		},
		{
			name:   "missing source",
			doc:    `{"params": {"page": {"type": "int"}}}`,
			format: FormatJSON,
			want:   ErrInvalidDocument,
		},
		{
			name:   "pattern with format",
			doc:    "params: {key: {source: header, pattern: '^a', format: api_key}}",
			format: FormatYAML,
			want:   ErrInvalidDocument,
		},
		{
			name:   "bad regex",
			doc:    "files: {report: {filename_pattern: '('}}",
			format: FormatYAML,
			want:   guard.ErrInvalidConfig,
		},
		{
			name:   "unavailable format",
			doc:    "images: {banner: {formats: [WEBP]}}",
			format: FormatYAML,
			want:   guard.ErrFeatureUnavailable,
		},
		{
			name:   "unknown param format",
			doc:    "params: {key: {source: header, format: ssn}}",
			format: FormatYAML,
			want:   guard.ErrInvalidConfig,
		},
		{
			name:   "unknown syntax",
			doc:    "{}",
			format: Format("ini"),
			want:   ErrInvalidDocument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.doc), tt.format)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "guard.yml")
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	set, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, set.Len())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(filepath.Join(dir, "guard.ini"))
	require.ErrorIs(t, err, ErrInvalidDocument)
}

func TestLoad_Instrumentation(t *testing.T) {
	t.Parallel()

	inst := guard.MustNewInstrumentation(guard.WithoutLogging())
	set, err := Parse([]byte(tomlDoc), FormatTOML, WithInstrumentation(inst))
	require.NoError(t, err)
	assert.Same(t, inst, set.Files["report"].Instrumentation())
}

func TestFormatFromPath(t *testing.T) {
	t.Parallel()

	tests := map[string]Format{
		"guard.yaml": FormatYAML,
		"guard.YML":  FormatYAML,
		"guard.toml": FormatTOML,
		"guard.json": FormatJSON,
	}
	for path, want := range tests {
		got, err := FormatFromPath(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := FormatFromPath("guard")
	require.ErrorIs(t, err, ErrInvalidDocument)
}
