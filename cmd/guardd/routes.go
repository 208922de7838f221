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

package main

import (
	"net/http"

	"rivaas.dev/router"

	"rivaas.dev/guard/config"
	"rivaas.dev/guard/csvfile"
	"rivaas.dev/guard/file"
	"rivaas.dev/guard/image"
	"rivaas.dev/guard/middleware"
	"rivaas.dev/guard/param"
)

// uploadField is the multipart part every upload route reads.
const uploadField = "file"

// newRouter mounts one route per validator in set. A nil metrics handler
// leaves /metrics unmounted.
func newRouter(set *config.Set, metrics http.Handler, opts ...middleware.Option) *router.Router {
	r := router.MustNew()

	r.GET("/healthz", func(c *router.Context) {
		_ = c.JSON(http.StatusOK, map[string]any{"status": "ok", "validators": set.Len()})
	})
	if metrics != nil {
		r.GET("/metrics", func(c *router.Context) {
			metrics.ServeHTTP(c.Response, c.Request)
		})
	}

	for name, v := range set.Files {
		r.POST("/files/"+name, middleware.File(v, uploadField, opts...), func(c *router.Context) {
			res, _ := middleware.UploadFrom[*file.Checked](c.Request.Context(), uploadField)
			_ = c.JSON(http.StatusOK, uploadSummary(v.Name(), res))
		})
	}

	for name, v := range set.Images {
		r.POST("/images/"+name, middleware.File(v, uploadField, opts...), func(c *router.Context) {
			res, _ := middleware.UploadFrom[*image.Image](c.Request.Context(), uploadField)
			body := uploadSummary(v.Name(), res.Checked)
			body["format"] = res.Format
			body["width"] = res.Width
			body["height"] = res.Height
			_ = c.JSON(http.StatusOK, body)
		})
	}

	for name, v := range set.CSV {
		r.POST("/csv/"+name, middleware.File(v, uploadField, opts...), func(c *router.Context) {
			res, _ := middleware.UploadFrom[*csvfile.Table](c.Request.Context(), uploadField)
			body := uploadSummary(v.Name(), res.Checked)
			body["encoding"] = res.Encoding
			body["columns"] = res.Header
			body["rows"] = res.Rows
			_ = c.JSON(http.StatusOK, body)
		})
	}

	for name, v := range set.Params {
		path := "/params/" + name
		if v.Source() == param.SourcePath {
			path += "/:" + v.Param()
		}
		r.GET(path, middleware.ParamsWith(opts, v), func(c *router.Context) {
			val, _ := middleware.ParamFrom(c.Request.Context(), v.Param())
			_ = c.JSON(http.StatusOK, map[string]any{
				"validator": v.Name(),
				"source":    val.Source.String(),
				"present":   val.Present,
				"value":     val.Value,
			})
		})
	}

	return r
}

func uploadSummary(validator string, res *file.Checked) map[string]any {
	return map[string]any{
		"validator":    validator,
		"filename":     res.Upload.Name,
		"size":         res.Size(),
		"content_type": res.ContentType(),
	}
}
