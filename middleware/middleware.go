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

// Package middleware runs guard validators as rivaas.dev/router middleware.
//
// Validated uploads and parameters are stored on the request context for
// the handlers that follow. Failures are rendered with a rivaas.dev/errors
// formatter and abort the chain.
//
//	avatars := image.MustNew(
//		image.WithFile(file.WithMaxSize("2MB")),
//		image.WithMaxResolution(1024, 1024),
//	)
//
//	r := router.MustNew()
//	r.POST("/users/:id/avatar",
//		middleware.Params(param.MustPath("id", param.WithType(param.Int))),
//		middleware.File(avatars, "avatar"),
//		func(c *router.Context) {
//			img, _ := middleware.UploadFrom[*image.Image](c.RequestContext(), "avatar")
//			id, _ := middleware.ParamFrom(c.RequestContext(), "id")
//			// ...
//		},
//	)
//
// Uploads are closed once the rest of the chain returns; handlers must not
// keep their readers.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/http"

	"rivaas.dev/router"

	"rivaas.dev/guard"
	"rivaas.dev/guard/file"
	"rivaas.dev/guard/param"
	"rivaas.dev/guard/size"
)

// Result is a validated upload. [*file.Checked] satisfies it, and so do
// the image and csvfile results that embed it.
type Result interface {
	Reader() io.Reader
	Close() error
}

// Validator validates uploads. The file, image and csvfile validators
// implement it.
type Validator[T Result] interface {
	Name() string
	Validate(ctx context.Context, up *file.Upload) (T, error)
}

type uploadKey string

type paramsKey struct{}

// UploadFrom returns the upload validated for field.
func UploadFrom[T Result](ctx context.Context, field string) (T, bool) {
	v, ok := ctx.Value(uploadKey(field)).(T)
	return v, ok
}

// ParamFrom returns the parameter validated under name.
func ParamFrom(ctx context.Context, name string) (param.Value, bool) {
	m, _ := ctx.Value(paramsKey{}).(map[string]param.Value)
	v, ok := m[name]

	return v, ok
}

// File validates the multipart file part named field.
func File[T Result](v Validator[T], field string, opts ...Option) router.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	maxSize, bounded := maxSizeOf(v)

	return func(c *router.Context) {
		if bounded {
			limit := maxSize.Bytes() + cfg.overhead
			if c.Request.ContentLength > limit {
				cfg.fail(c, bodyTooLarge(v.Name(), maxSize, c.Request.ContentLength, nil))
				return
			}
			if c.Request.Body != nil {
				c.Request.Body = http.MaxBytesReader(c.Response, c.Request.Body, limit)
			}
		}

		err := c.Request.ParseMultipartForm(cfg.maxMemory)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			cfg.fail(c, bodyTooLarge(v.Name(), maxSize, tooLarge.Limit, err))
			return
		}
		if err != nil && !errors.Is(err, http.ErrNotMultipart) {
			cfg.fail(c, &guard.Error{
				Kind:      guard.KindStructural,
				Status:    http.StatusBadRequest,
				Message:   "Failed to parse multipart form.",
				Validator: v.Name(),
				Err:       err,
			})
			return
		}

		var headers []*multipart.FileHeader
		if form := c.Request.MultipartForm; form != nil {
			headers = form.File[field]
		}
		if len(headers) == 0 {
			if cfg.optional {
				c.Next()
				return
			}
			cfg.fail(c, &guard.Error{
				Kind:      guard.KindRequired,
				Status:    http.StatusUnprocessableEntity,
				Message:   fmt.Sprintf("File field '%s' is required.", field),
				Validator: v.Name(),
			})
			return
		}

		up, err := file.FromHeader(headers[0])
		if err != nil {
			cfg.fail(c, &guard.Error{
				Kind:      guard.KindUnexpected,
				Status:    http.StatusBadRequest,
				Message:   "An unexpected error occurred during file validation.",
				Validator: v.Name(),
				Err:       err,
			})
			return
		}
		defer up.Close()

		validated(c, cfg, v, field, up)
	}
}

// maxSizeOf returns the maximum file size of a file validator, or of the
// file validator an image or CSV validator wraps.
func maxSizeOf(v any) (size.Limit, bool) {
	switch x := v.(type) {
	case interface{ MaxSize() (size.Limit, bool) }:
		return x.MaxSize()
	case interface{ File() *file.Validator }:
		return x.File().MaxSize()
	}

	return size.Limit{}, false
}

// bodyTooLarge reports a multipart body cut off before its file part was
// fully read, so only a lower bound of the size is known.
func bodyTooLarge(validator string, maxSize size.Limit, observed int64, cause error) *guard.Error {
	return &guard.Error{
		Kind:      guard.KindSizeBound,
		Status:    http.StatusRequestEntityTooLarge,
		Message:   fmt.Sprintf("File size exceeds the maximum limit of %s.", maxSize),
		Validator: validator,
		Observed:  observed,
		Err:       cause,
	}
}

// Body validates the raw request body as one upload, for clients that
// send the file itself rather than a multipart form. The body is replaced
// by the validated content, and the result is stored under the empty
// field name.
func Body[T Result](v Validator[T], opts ...Option) router.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *router.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			if cfg.optional {
				c.Next()
				return
			}
			cfg.fail(c, &guard.Error{
				Kind:      guard.KindRequired,
				Status:    http.StatusUnprocessableEntity,
				Message:   "Request body is required.",
				Validator: v.Name(),
			})
			return
		}

		validated(c, cfg, v, "", file.FromRequest(c.Request))
	}
}

func validated[T Result](c *router.Context, cfg *config, v Validator[T], field string, up *file.Upload) {
	ctx := c.RequestContext()

	res, err := v.Validate(ctx, up)
	if err != nil {
		cfg.fail(c, err)
		return
	}
	defer res.Close()

	if field == "" {
		c.Request.Body = io.NopCloser(res.Reader())
	}
	c.Request = c.Request.WithContext(context.WithValue(ctx, uploadKey(field), res))
	c.Next()
}

// Params validates request parameters. Path parameters are read from the
// matched route.
func Params(validators ...*param.Validator) router.HandlerFunc {
	return ParamsWith(nil, validators...)
}

// ParamsWith is like [Params] with options.
func ParamsWith(opts []Option, validators ...*param.Validator) router.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *router.Context) {
		ctx := c.RequestContext()

		values := make(map[string]param.Value, len(validators))
		if prev, ok := ctx.Value(paramsKey{}).(map[string]param.Value); ok {
			maps.Copy(values, prev)
		}

		for _, v := range validators {
			val, err := v.ValidateRequest(ctx, c.Request, c.Param)
			if err != nil {
				cfg.fail(c, err)
				return
			}
			values[v.Param()] = val
		}

		c.Request = c.Request.WithContext(context.WithValue(ctx, paramsKey{}, values))
		c.Next()
	}
}

// fail writes err and aborts the chain. Cancelled requests get no response.
func (cfg *config) fail(c *router.Context, err error) {
	defer c.Abort()

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		cfg.logger.Debug("request cancelled during validation",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		return
	}

	var gerr *guard.Error
	if !errors.As(err, &gerr) {
		gerr = &guard.Error{
			Kind:    guard.KindUnexpected,
			Status:  http.StatusInternalServerError,
			Message: "An unexpected error occurred during validation.",
			Err:     err,
		}
		err = gerr
	}

	response := cfg.formatter.Format(c.Request, err)

	cfg.logger.Info("request rejected",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"validator", gerr.Validator,
		"kind", gerr.Kind.String(),
		"status", response.Status,
	)

	body, jsonErr := json.Marshal(response.Body)
	if jsonErr != nil {
		cfg.logger.Error("failed to encode error response", "err", jsonErr)
		c.WriteErrorResponse(response.Status, gerr.Message)
		return
	}

	for key, values := range response.Headers {
		for _, value := range values {
			c.Header(key, value)
		}
	}
	if writeErr := c.Data(response.Status, response.ContentType, body); writeErr != nil {
		cfg.logger.Error("failed to write error response", "err", writeErr)
	}
}
