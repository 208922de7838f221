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

package file

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
)

// Upload is a file-like value to validate.
type Upload struct {
	// Name is the client-supplied filename. It may be empty.
	Name string

	// ContentType is the client-declared media type. It may be empty.
	ContentType string

	// Size is the size computed by the transport, or -1 when unknown.
	// When known, validation trusts it instead of counting bytes.
	Size int64

	// Content is the file data.
	Content io.Reader

	closer io.Closer
}

// NewUpload returns an upload of unknown size.
func NewUpload(name, contentType string, content io.Reader) *Upload {
	return &Upload{
		Name:        name,
		ContentType: contentType,
		Size:        -1,
		Content:     content,
	}
}

// FromHeader opens a multipart file part. The caller must Close the upload.
func FromHeader(fh *multipart.FileHeader) (*Upload, error) {
	if fh == nil {
		return nil, errors.New("file: nil file header")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}

	return &Upload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Content:     f,
		closer:      f,
	}, nil
}

// FromRequest treats the raw request body as the upload.
// The filename is taken from a Content-Disposition header when present.
func FromRequest(r *http.Request) *Upload {
	up := &Upload{
		ContentType: r.Header.Get("Content-Type"),
		Size:        r.ContentLength,
		Content:     r.Body,
	}
	if up.Size < 0 {
		up.Size = -1
	}
	if cd := r.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			up.Name = params["filename"]
		}
	}

	return up
}

// Close releases the underlying file when the upload owns one.
func (u *Upload) Close() error {
	if u == nil || u.closer == nil {
		return nil
	}

	return u.closer.Close()
}
