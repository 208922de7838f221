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

package image

import (
	"bytes"
	"fmt"
	stdimage "image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/guard"
	"rivaas.dev/guard/file"
	"rivaas.dev/guard/inspect"
)

func encode(t *testing.T, format string, w, h int) []byte {
	t.Helper()

	img := stdimage.NewRGBA(stdimage.Rect(0, 0, w, h))
	var buf bytes.Buffer
	switch format {
	case "png":
		require.NoError(t, png.Encode(&buf, img))
	case "jpeg":
		require.NoError(t, jpeg.Encode(&buf, img, nil))
	case "gif":
		require.NoError(t, gif.Encode(&buf, img, nil))
	default:
		t.Fatalf("unknown format %s", format)
	}

	return buf.Bytes()
}

func upload(name, contentType string, data []byte) *file.Upload {
	return file.NewUpload(name, contentType, bytes.NewReader(data))
}

func TestValidate_Pass(t *testing.T) {
	t.Parallel()

	data := encode(t, "png", 1920, 1080)
	v := MustNew(
		WithFormats("jpeg", "PNG"),
		WithMinResolution(640, 480),
		WithMaxResolution(3840, 2160),
		WithAspectRatios("16:9"),
	)

	img, err := v.Validate(t.Context(), upload("wide.png", "image/png", data))
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, "PNG", img.Format)
	assert.Equal(t, Resolution{Width: 1920, Height: 1080}, img.Resolution)
	assert.Equal(t, int64(len(data)), img.Size())

	got, err := io.ReadAll(img.Reader())
	require.NoError(t, err)
	assert.Equal(t, data, got, "content is readable from the start after validation")
}

func TestValidate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		opts       []Option
		upload     func(t *testing.T) *file.Upload
		wantKind   guard.Kind
		wantStatus int
		wantMsg    string
	}{
		{
			name: "format not allowed",
			opts: []Option{WithFormats("JPEG", "PNG")},
			upload: func(t *testing.T) *file.Upload {
				return upload("a.gif", "image/gif", encode(t, "gif", 10, 10))
			},
			wantKind:   guard.KindContentType,
			wantStatus: http.StatusUnsupportedMediaType,
			wantMsg:    "Unsupported image format: 'GIF'. Allowed formats are: JPEG, PNG",
		},
		{
			name: "corrupted image",
			upload: func(*testing.T) *file.Upload {
				return upload("a.png", "image/png", []byte("definitely not an image"))
			},
			wantKind:   guard.KindStructural,
			wantStatus: http.StatusUnsupportedMediaType,
			wantMsg:    "File is not a valid image or is corrupted.",
		},
		{
			name: "corrupted image with format message",
			opts: []Option{WithFormatMessage(guard.Static("Only JPEG and PNG images are allowed."))},
			upload: func(*testing.T) *file.Upload {
				return upload("a.png", "image/png", []byte("\x89PNG\r\n\x1a\ntruncated"))
			},
			wantKind:   guard.KindStructural,
			wantStatus: http.StatusUnsupportedMediaType,
			wantMsg:    "Only JPEG and PNG images are allowed.",
		},
		{
			name: "not an image content type",
			upload: func(*testing.T) *file.Upload {
				return upload("a.txt", "text/plain", []byte("hello"))
			},
			wantKind:   guard.KindContentType,
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name: "exact resolution",
			opts: []Option{WithExactResolution(100, 100), WithMinResolution(500, 500)},
			upload: func(t *testing.T) *file.Upload {
				return upload("a.png", "image/png", encode(t, "png", 120, 100))
			},
			wantKind:   guard.KindStructural,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Image resolution must be exactly 100x100. Got 120x100.",
		},
		{
			name: "below minimum",
			opts: []Option{WithMinResolution(640, 480)},
			upload: func(t *testing.T) *file.Upload {
				return upload("a.jpg", "image/jpeg", encode(t, "jpeg", 800, 400))
			},
			wantKind:   guard.KindStructural,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Image resolution (800x400) is below the minimum of 640x480.",
		},
		{
			name: "above maximum",
			opts: []Option{WithMaxResolution(100, 100)},
			upload: func(t *testing.T) *file.Upload {
				return upload("a.png", "image/png", encode(t, "png", 101, 50))
			},
			wantKind:   guard.KindStructural,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Image resolution (101x50) exceeds the maximum of 100x100.",
		},
		{
			name: "resolution message override",
			opts: []Option{
				WithMaxResolution(100, 100),
				WithResolutionMessage(guard.Dynamic(func(v any) string { return fmt.Sprintf("%v is too large", v) })),
			},
			upload: func(t *testing.T) *file.Upload {
				return upload("a.png", "image/png", encode(t, "png", 200, 200))
			},
			wantKind:   guard.KindStructural,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "200x200 is too large",
		},
		{
			name: "aspect ratio",
			opts: []Option{WithAspectRatios("16:9", "4:3")},
			upload: func(t *testing.T) *file.Upload {
				return upload("a.png", "image/png", encode(t, "png", 100, 100))
			},
			wantKind:   guard.KindStructural,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Image aspect ratio (100:100 ≈ 1.00) is not allowed. Allowed ratios are: 16:9, 4:3",
		},
		{
			name: "file size checked first",
			opts: []Option{WithFile(file.WithMaxSize("10B")), WithFormats("GIF")},
			upload: func(t *testing.T) *file.Upload {
				return upload("a.png", "image/png", encode(t, "png", 50, 50))
			},
			wantKind:   guard.KindSizeBound,
			wantStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v, err := New(tt.opts...)
			require.NoError(t, err)

			_, err = v.Validate(t.Context(), tt.upload(t))
			var gerr *guard.Error
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, tt.wantKind, gerr.Kind)
			assert.Equal(t, tt.wantStatus, gerr.HTTPStatus())
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, gerr.Message)
			}
		})
	}
}

func TestValidate_AspectRatioTolerance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		w, h      int
		tolerance float64
		pass      bool
	}{
		{name: "exact", w: 1600, h: 900, tolerance: DefaultAspectRatioTolerance, pass: true},
		{name: "close enough", w: 1000, h: 560, tolerance: DefaultAspectRatioTolerance, pass: true},
		{name: "outside default", w: 1000, h: 600, tolerance: DefaultAspectRatioTolerance, pass: false},
		{name: "inside wide tolerance", w: 1000, h: 600, tolerance: 0.2, pass: true},
		{name: "zero tolerance", w: 1000, h: 560, tolerance: 0, pass: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := MustNew(WithAspectRatios("16:9"), WithAspectRatioTolerance(tt.tolerance))
			img, err := v.Validate(t.Context(), upload("a.png", "image/png", encode(t, "png", tt.w, tt.h)))
			if tt.pass {
				require.NoError(t, err)
				require.NoError(t, img.Close())
				return
			}
			require.ErrorIs(t, err, guard.ErrStructural)
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    []Option
		wantErr error
	}{
		{name: "bad ratio", opts: []Option{WithAspectRatios("16x9")}, wantErr: guard.ErrInvalidConfig},
		{name: "zero ratio side", opts: []Option{WithAspectRatios("16:0")}, wantErr: guard.ErrInvalidConfig},
		{name: "negative tolerance", opts: []Option{WithAspectRatios("1:1"), WithAspectRatioTolerance(-1)}, wantErr: guard.ErrInvalidConfig},
		{name: "min above max", opts: []Option{WithMinResolution(200, 200), WithMaxResolution(100, 300)}, wantErr: guard.ErrInvalidConfig},
		{name: "negative resolution", opts: []Option{WithExactResolution(-1, 10)}, wantErr: guard.ErrInvalidConfig},
		{name: "decoder not registered", opts: []Option{WithFormats("WEBP")}, wantErr: guard.ErrFeatureUnavailable},
		{name: "bad file option", opts: []Option{WithFile(file.WithMaxSize("huge"))}, wantErr: guard.ErrMalformedSize},
		{name: "content not replayed", opts: []Option{WithFile(file.WithReplay(inspect.ReplayNone))}, wantErr: guard.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.opts...)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFeatureName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/jpeg", FeatureName("jpg"))
	assert.Equal(t, "image/tiff", FeatureName("TIF"))
	assert.Equal(t, "image/png", FeatureName(" png "))
	assert.True(t, guard.HasFeature(FeatureName("GIF")))
}

func TestContentTypesOverride(t *testing.T) {
	t.Parallel()

	v := MustNew(WithContentTypes("image/png"))
	_, err := v.Validate(t.Context(), upload("a.gif", "image/gif", encode(t, "gif", 5, 5)))
	require.ErrorIs(t, err, guard.ErrContentType)

	img, err := v.Validate(t.Context(), upload("a.png", "image/png", encode(t, "png", 5, 5)))
	require.NoError(t, err)
	assert.NoError(t, img.Close())

	assert.True(t, strings.HasPrefix(v.Name(), "image"))
}
