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

package inspect

// SniffPolicy decides between the declared and the sniffed content type.
type SniffPolicy uint8

const (
	// PreferSniffed uses the sniffed type unless it is inconclusive
	// (application/octet-stream or text/plain), then the declared type.
	PreferSniffed SniffPolicy = iota

	// PreferDeclared uses the declared type, and the sniffed type only when
	// nothing was declared.
	PreferDeclared

	// DeclaredOnly never sniffs.
	DeclaredOnly
)

// String returns the policy name.
func (p SniffPolicy) String() string {
	switch p {
	case PreferSniffed:
		return "prefer-sniffed"
	case PreferDeclared:
		return "prefer-declared"
	case DeclaredOnly:
		return "declared-only"
	default:
		return "unknown"
	}
}

// ParseSniffPolicy parses the output of [SniffPolicy.String].
func ParseSniffPolicy(s string) (SniffPolicy, bool) {
	for _, p := range []SniffPolicy{PreferSniffed, PreferDeclared, DeclaredOnly} {
		if p.String() == s {
			return p, true
		}
	}

	return 0, false
}

// ReplayMode selects how the payload is made readable again after inspection.
type ReplayMode uint8

const (
	// ReplayAuto seeks seekable sources back and spools the others.
	ReplayAuto ReplayMode = iota

	// ReplayMemory records consumed bytes in memory.
	ReplayMemory

	// ReplaySpool records consumed bytes in a temporary file.
	ReplaySpool

	// ReplayNone leaves the source consumed.
	ReplayNone
)

var replayNames = [...]string{
	ReplayAuto:   "auto",
	ReplayMemory: "memory",
	ReplaySpool:  "spool",
	ReplayNone:   "none",
}

// String returns the mode name.
func (m ReplayMode) String() string {
	if int(m) < len(replayNames) {
		return replayNames[m]
	}

	return "unknown"
}

// ParseReplayMode parses the output of [ReplayMode.String].
func ParseReplayMode(s string) (ReplayMode, bool) {
	for i, name := range replayNames {
		if name == s {
			return ReplayMode(i), true
		}
	}

	return 0, false
}

// Option configures an inspection.
type Option func(*config)

type config struct {
	chunkSize int
	maxBytes  int64
	knownSize int64
	declared  string
	policy    SniffPolicy
	replay    ReplayMode
	spoolDir  string
}

func defaultConfig() *config {
	return &config{
		chunkSize: DefaultChunkSize,
		maxBytes:  NoLimit,
		knownSize: -1,
		policy:    PreferSniffed,
		replay:    ReplayAuto,
	}
}

// WithChunkSize sets the read size. Non-positive values are ignored.
func WithChunkSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// NoLimit disables the byte budget.
const NoLimit int64 = -1

// WithMaxBytes stops reading once more than n bytes were seen. Zero is a
// real budget: any content truncates. A negative value means [NoLimit].
func WithMaxBytes(n int64) Option {
	return func(c *config) {
		c.maxBytes = max(n, NoLimit)
	}
}

// WithKnownSize supplies a size computed by the transport, such as the size
// of a multipart part. Only the first chunk is then read, for sniffing.
// A negative value means unknown.
func WithKnownSize(n int64) Option {
	return func(c *config) {
		c.knownSize = n
	}
}

// WithDeclaredType supplies the content type label sent by the client.
func WithDeclaredType(contentType string) Option {
	return func(c *config) {
		c.declared = contentType
	}
}

// WithSniffPolicy sets how declared and sniffed types are reconciled.
func WithSniffPolicy(p SniffPolicy) Option {
	return func(c *config) {
		c.policy = p
	}
}

// WithReplay sets the replay mode.
func WithReplay(m ReplayMode) Option {
	return func(c *config) {
		c.replay = m
	}
}

// WithSpoolDir sets the directory for spool files. Defaults to os.TempDir().
func WithSpoolDir(dir string) Option {
	return func(c *config) {
		c.spoolDir = dir
	}
}
