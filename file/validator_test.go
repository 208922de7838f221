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

package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/guard"
	"rivaas.dev/guard/inspect"
)

// stream hides Seek so inspection has to count and spool.
type stream struct {
	io.Reader
}

// countingStream is a non-seekable reader that records how much was read.
type countingStream struct {
	r    io.Reader
	read int64
}

func (c *countingStream) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	return n, err
}

func requireGuardError(t *testing.T, err error) *guard.Error {
	t.Helper()

	var gerr *guard.Error
	require.ErrorAs(t, err, &gerr)

	return gerr
}

func TestValidate_Scenarios(t *testing.T) {
	t.Parallel()

	t.Run("oversized png with known size", func(t *testing.T) {
		t.Parallel()

		v := MustNew(WithMaxSize("10MB"))
		up := &Upload{Name: "big.png", ContentType: "image/png", Size: 12582912, Content: bytes.NewReader(make([]byte, 12582912))}

		_, err := v.Validate(t.Context(), up)
		gerr := requireGuardError(t, err)
		assert.Equal(t, guard.KindSizeBound, gerr.Kind)
		assert.Equal(t, int64(12582912), gerr.Observed)
		assert.Equal(t, http.StatusRequestEntityTooLarge, gerr.HTTPStatus())
		assert.Equal(t, "File size (12582912 bytes) exceeds the maximum limit of 10MB.", gerr.Message)
	})

	t.Run("oversized stream of unknown size", func(t *testing.T) {
		t.Parallel()

		v := MustNew(WithMaxSize("10MB"), WithSpoolDir(t.TempDir()))
		up := NewUpload("big.png", "image/png", stream{bytes.NewReader(make([]byte, 12582912))})

		_, err := v.Validate(t.Context(), up)
		gerr := requireGuardError(t, err)
		assert.Equal(t, guard.KindSizeBound, gerr.Kind)
		observed, ok := gerr.Observed.(int64)
		require.True(t, ok)
		assert.Greater(t, observed, int64(10*1024*1024))
		assert.LessOrEqual(t, observed, int64(10*1024*1024+inspect.DefaultChunkSize))
		assert.Contains(t, gerr.Message, "at least")
		assert.Contains(t, gerr.Message, "exceeds the maximum limit of 10MB")
	})

	t.Run("zero max size reads one chunk", func(t *testing.T) {
		t.Parallel()

		v := MustNew(WithMaxSize("0B"), WithChunkSize(1024), WithSpoolDir(t.TempDir()))
		src := &countingStream{r: bytes.NewReader(make([]byte, 1<<20))}

		_, err := v.Validate(t.Context(), NewUpload("any.bin", "", src))
		gerr := requireGuardError(t, err)
		assert.Equal(t, guard.KindSizeBound, gerr.Kind)
		assert.LessOrEqual(t, src.read, int64(1024))

		checked, err := v.Validate(t.Context(), NewUpload("empty.bin", "", strings.NewReader("")))
		require.NoError(t, err)
		require.NoError(t, checked.Close())
	})

	t.Run("pdf against image wildcard", func(t *testing.T) {
		t.Parallel()

		v := MustNew(WithContentTypes("image/*"))
		up := NewUpload("doc.pdf", "application/pdf", bytes.NewReader(make([]byte, 1<<20)))

		_, err := v.Validate(t.Context(), up)
		gerr := requireGuardError(t, err)
		assert.Equal(t, guard.KindContentType, gerr.Kind)
		assert.Equal(t, http.StatusUnsupportedMediaType, gerr.HTTPStatus())
		assert.Equal(t, "File has an unsupported media type: 'application/pdf'. Allowed types are: image/*", gerr.Message)
	})

	t.Run("filename matches", func(t *testing.T) {
		t.Parallel()

		v := MustNew(WithFilenamePattern(`[\w\s-]+\.(jpg|png)`))
		checked, err := v.Validate(t.Context(), NewUpload("photo.png", "image/png", strings.NewReader("img")))
		require.NoError(t, err)
		require.NoError(t, checked.Close())
	})

	t.Run("predicate rejects", func(t *testing.T) {
		t.Parallel()

		v := MustNew(WithPredicate(func(_ context.Context, c *Checked) error {
			if c.Size()%1024 != 0 {
				return errors.New("size must be a multiple of 1024 bytes")
			}
			return nil
		}))

		_, err := v.Validate(t.Context(), NewUpload("blob.bin", "", bytes.NewReader(make([]byte, 1000))))
		gerr := requireGuardError(t, err)
		assert.Equal(t, guard.KindCustomPredicate, gerr.Kind)
		assert.Equal(t, http.StatusBadRequest, gerr.HTTPStatus())
		assert.Equal(t, "size must be a multiple of 1024 bytes", gerr.Message)
	})
}

func TestValidate_Rules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		opts       []Option
		upload     func() *Upload
		wantKind   guard.Kind
		wantStatus int
		wantMsg    string
	}{
		{
			name: "within bounds",
			opts: []Option{WithMinSize("1KB"), WithMaxSize(4096), WithContentTypes("text/plain")},
			upload: func() *Upload {
				return NewUpload("notes.txt", "text/plain", strings.NewReader(strings.Repeat("a", 2048)))
			},
		},
		{
			name: "below minimum",
			opts: []Option{WithMinSize("1KB")},
			upload: func() *Upload {
				return NewUpload("tiny.txt", "text/plain", strings.NewReader("hi"))
			},
			wantKind:   guard.KindSizeBound,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "File size (2 bytes) is less than the minimum requirement of 1KB.",
		},
		{
			name: "exactly at maximum",
			opts: []Option{WithMaxSize("20B")},
			upload: func() *Upload {
				return NewUpload("a.csv", "text/csv", stream{strings.NewReader(strings.Repeat("x", 20))})
			},
		},
		{
			name: "content type configured before size",
			opts: []Option{WithContentTypes("image/png"), WithMaxSize("1B")},
			upload: func() *Upload {
				return NewUpload("a.txt", "text/plain", strings.NewReader("too long and wrong type"))
			},
			wantKind:   guard.KindContentType,
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name: "size configured before content type",
			opts: []Option{WithMaxSize("1B"), WithContentTypes("image/png")},
			upload: func() *Upload {
				return NewUpload("a.txt", "text/plain", strings.NewReader("too long and wrong type"))
			},
			wantKind:   guard.KindSizeBound,
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name: "predicate configured before filename",
			opts: []Option{
				WithPredicate(func(context.Context, *Checked) error { return errors.New("rejected first") }),
				WithFilenamePattern(`.+\.png`),
			},
			upload: func() *Upload {
				return NewUpload("a.gif", "image/gif", strings.NewReader("x"))
			},
			wantKind:   guard.KindCustomPredicate,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "rejected first",
		},
		{
			name: "filename configured before size",
			opts: []Option{WithFilenamePattern(`.+\.png`), WithMaxSize("1B")},
			upload: func() *Upload {
				return NewUpload("a.gif", "image/gif", strings.NewReader("too long"))
			},
			wantKind:   guard.KindFilename,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Filename 'a.gif' does not match the required pattern.",
		},
		{
			name: "filename must match entirely",
			opts: []Option{WithFilenamePattern(`\w+\.png`)},
			upload: func() *Upload {
				return NewUpload("photo.png.exe", "", strings.NewReader("x"))
			},
			wantKind:   guard.KindFilename,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "sniffed type beats declared type",
			opts: []Option{WithContentTypes("text/plain")},
			upload: func() *Upload {
				return NewUpload("x.txt", "text/plain", bytes.NewReader([]byte("%PDF-1.7\n%âãÏÓ\n1 0 obj\n")))
			},
			wantKind:   guard.KindContentType,
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name: "declared type when sniffing disabled",
			opts: []Option{WithContentTypes("text/plain"), WithSniffPolicy(inspect.DeclaredOnly)},
			upload: func() *Upload {
				return NewUpload("x.txt", "text/plain", bytes.NewReader([]byte("%PDF-1.7\n")))
			},
		},
		{
			name: "size override message",
			opts: []Option{WithMaxSize("4B"), WithSizeMessage(guard.Static("File size is not within the allowed range."))},
			upload: func() *Upload {
				return NewUpload("a", "", strings.NewReader("12345"))
			},
			wantKind:   guard.KindSizeBound,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantMsg:    "File size is not within the allowed range.",
		},
		{
			name: "type override message",
			opts: []Option{WithContentTypes("image/*"), WithTypeMessage(guard.Dynamic(func(v any) string {
				return fmt.Sprintf("%v uploads are not accepted", v)
			}))},
			upload: func() *Upload {
				return NewUpload("a.json", "application/json", strings.NewReader(`{"a":1}`))
			},
			wantKind:   guard.KindContentType,
			wantStatus: http.StatusUnsupportedMediaType,
			wantMsg:    "application/json uploads are not accepted",
		},
		{
			name: "custom default status applies to predicates",
			opts: []Option{
				WithStatus(http.StatusUnprocessableEntity),
				WithPredicate(func(context.Context, *Checked) error { return errors.New("nope") }),
				WithPredicateMessage(guard.Static("rejected")),
			},
			upload: func() *Upload {
				return NewUpload("a", "", strings.NewReader("x"))
			},
			wantKind:   guard.KindCustomPredicate,
			wantStatus: http.StatusUnprocessableEntity,
			wantMsg:    "rejected",
		},
		{
			name: "extra rule runs last",
			opts: []Option{WithRule(guard.RuleFunc[*Checked](func(_ context.Context, c *Checked) guard.Outcome {
				return guard.Fail(guard.KindStructural, c.Upload.Name, "structure is broken")
			}))},
			upload: func() *Upload {
				return NewUpload("a", "", strings.NewReader("x"))
			},
			wantKind:   guard.KindStructural,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "structure is broken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := append([]Option{WithSpoolDir(t.TempDir())}, tt.opts...)
			v, err := New(opts...)
			require.NoError(t, err)

			checked, err := v.Validate(t.Context(), tt.upload())
			if tt.wantKind == guard.KindNone {
				require.NoError(t, err)
				require.NoError(t, checked.Close())
				return
			}

			gerr := requireGuardError(t, err)
			assert.Equal(t, tt.wantKind, gerr.Kind)
			assert.Equal(t, tt.wantStatus, gerr.HTTPStatus())
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, gerr.Message)
			}
		})
	}
}

func TestValidate_ContentIsRewound(t *testing.T) {
	t.Parallel()

	payload := strings.Repeat("payload-", 50_000)

	tests := []struct {
		name    string
		content io.Reader
	}{
		{name: "seekable", content: strings.NewReader(payload)},
		{name: "stream", content: stream{strings.NewReader(payload)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := MustNew(WithMaxSize("1MB"), WithChunkSize(1024), WithSpoolDir(t.TempDir()))
			checked, err := v.Validate(t.Context(), NewUpload("p.txt", "text/plain", tt.content))
			require.NoError(t, err)
			defer checked.Close()

			assert.Equal(t, int64(len(payload)), checked.Size())
			got, err := io.ReadAll(checked.Reader())
			require.NoError(t, err)
			assert.Equal(t, payload, string(got))
		})
	}
}

func TestValidate_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	v := MustNew(WithMaxSize("1MB"))
	_, err := v.Validate(ctx, NewUpload("a", "", strings.NewReader("x")))
	require.ErrorIs(t, err, context.Canceled)

	var gerr *guard.Error
	assert.False(t, errors.As(err, &gerr), "no outcome is reported for a cancelled validation")
}

func TestValidate_MissingContent(t *testing.T) {
	t.Parallel()

	v := MustNew()
	_, err := v.Validate(t.Context(), nil)
	gerr := requireGuardError(t, err)
	assert.Equal(t, guard.KindUnexpected, gerr.Kind)
	assert.Equal(t, "An unexpected error occurred during file validation.", gerr.Message)
}

func TestValidate_Concurrent(t *testing.T) {
	t.Parallel()

	v := MustNew(WithMaxSize("1KB"), WithContentTypes("text/*"), WithSpoolDir(t.TempDir()))

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Go(func() {
			body := strings.Repeat("z", i*64)
			checked, err := v.Validate(context.Background(), NewUpload("a.txt", "text/plain", stream{strings.NewReader(body)}))
			if i*64 > 1024 {
				assert.ErrorIs(t, err, guard.ErrSizeBound)
				return
			}
			if assert.NoError(t, err) {
				assert.NoError(t, checked.Close())
			}
		})
	}
	wg.Wait()
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    []Option
		wantErr error
	}{
		{name: "malformed max size", opts: []Option{WithMaxSize("ten megs")}, wantErr: guard.ErrMalformedSize},
		{name: "negative min size", opts: []Option{WithMinSize(-1)}, wantErr: guard.ErrMalformedSize},
		{name: "min above max", opts: []Option{WithMinSize("2KB"), WithMaxSize("1KB")}, wantErr: guard.ErrInvalidConfig},
		{name: "bad regex", opts: []Option{WithFilenamePattern("([")}, wantErr: guard.ErrInvalidConfig},
		{name: "bad content type", opts: []Option{WithContentTypes("png")}, wantErr: guard.ErrInvalidConfig},
		{name: "zero chunk size", opts: []Option{WithChunkSize(0)}, wantErr: guard.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.opts...)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Panics(t, func() { MustNew(tt.opts...) })
		})
	}
}

func TestContentTypePattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		ct      string
		want    bool
	}{
		{pattern: "image/*", ct: "image/png", want: true},
		{pattern: "image/*", ct: "IMAGE/JPEG; q=1", want: true},
		{pattern: "image/*", ct: "video/png", want: false},
		{pattern: "image/png", ct: "image/png", want: true},
		{pattern: "image/png", ct: "image/jpeg", want: false},
		{pattern: "*/*", ct: "application/zip", want: true},
		{pattern: "*", ct: "text/csv", want: true},
		{pattern: "image/*", ct: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.ct, func(t *testing.T) {
			t.Parallel()

			p, err := ParseContentTypePattern(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Match(tt.ct))
		})
	}

	for _, bad := range []string{"", "image", "*/png", "a/b/c", "/png"} {
		_, err := ParseContentTypePattern(bad)
		assert.ErrorIs(t, err, guard.ErrInvalidConfig, bad)
	}
}

func TestFromHeader(t *testing.T) {
	t.Parallel()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("not really a png"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	up, err := FromHeader(req.MultipartForm.File["avatar"][0])
	require.NoError(t, err)
	defer up.Close()

	assert.Equal(t, "me.png", up.Name)
	assert.Equal(t, "application/octet-stream", up.ContentType)
	assert.Equal(t, int64(16), up.Size)

	checked, err := MustNew(WithMaxSize("16B")).Validate(t.Context(), up)
	require.NoError(t, err)
	require.NoError(t, checked.Close())

	_, err = FromHeader(nil)
	require.Error(t, err)
}

func TestFromRequest(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPut, "/raw", strings.NewReader("a,b\n1,2\n"))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Content-Disposition", `attachment; filename="report.csv"`)

	up := FromRequest(req)
	assert.Equal(t, "report.csv", up.Name)
	assert.Equal(t, "text/csv", up.ContentType)
	assert.Equal(t, int64(8), up.Size)
	assert.NoError(t, up.Close())
}
