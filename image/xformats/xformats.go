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

// Package xformats registers the BMP, TIFF and WebP decoders from
// golang.org/x/image so the image validator can accept those formats.
//
//	import _ "rivaas.dev/guard/image/xformats"
package xformats

import (
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"rivaas.dev/guard"
)

// Features lists the capabilities registered by this package.
var Features = []string{"image/bmp", "image/tiff", "image/webp"}

func init() {
	guard.RegisterFeature(Features...)
}
