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

package guard

import (
	"fmt"
	"slices"
	"sync"
)

// features is the process-wide capability registry. Packages that provide
// optional functionality, such as image decoders, register what they
// support from init; validators check it at construction time.
var features = struct {
	mu  sync.RWMutex
	set map[string]struct{}
}{set: make(map[string]struct{})}

// RegisterFeature records that the named features are available.
// It is safe to call concurrently and more than once.
//
//	func init() {
//		guard.RegisterFeature("image/webp")
//	}
func RegisterFeature(names ...string) {
	features.mu.Lock()
	defer features.mu.Unlock()

	for _, n := range names {
		features.set[n] = struct{}{}
	}
}

// HasFeature reports whether the named feature has been registered.
func HasFeature(name string) bool {
	features.mu.RLock()
	defer features.mu.RUnlock()

	_, ok := features.set[name]

	return ok
}

// RequireFeature returns an error wrapping [ErrFeatureUnavailable] for the
// first named feature that is not registered.
func RequireFeature(names ...string) error {
	features.mu.RLock()
	defer features.mu.RUnlock()

	for _, n := range names {
		if _, ok := features.set[n]; !ok {
			return fmt.Errorf("%w: %s", ErrFeatureUnavailable, n)
		}
	}

	return nil
}

// Features returns the registered feature names, sorted.
func Features() []string {
	features.mu.RLock()
	defer features.mu.RUnlock()

	names := make([]string, 0, len(features.set))
	for n := range features.set {
		names = append(names, n)
	}
	slices.Sort(names)

	return names
}
