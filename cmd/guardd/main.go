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

// Command guardd serves the validators declared in a guard configuration
// file over HTTP.
//
//	guardd check --config guard.yaml
//	guardd serve --config guard.yaml --addr :8080
//
// Every file, image and CSV validator gets a POST route under /files,
// /images or /csv that accepts a multipart form with a "file" part.
// Parameter validators are mounted under /params. Validation metrics are
// exported on /metrics in the Prometheus text format.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
