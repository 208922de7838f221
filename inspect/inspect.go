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

// Package inspect reads an upload stream incrementally to measure its size
// and detect its content type without holding the whole payload in memory.
//
// Reading stops as soon as the running total exceeds the configured maximum,
// so at most one chunk past the limit is ever read. After inspection the
// payload is positioned back at its start: seekable sources are rewound,
// other sources are replayed from a memory buffer or a temporary spool file.
//
//	res, err := inspect.Inspect(ctx, file,
//		inspect.WithMaxBytes(10<<20),
//		inspect.WithDeclaredType(header.Get("Content-Type")),
//	)
//	if err != nil {
//		return err
//	}
//	defer res.Close()
//
//	if res.Truncated {
//		// larger than 10MB
//	}
//	io.Copy(dst, res.Payload())
package inspect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultChunkSize is the read size used when none is configured.
const DefaultChunkSize = 64 * 1024

var (
	// ErrNilSource is returned when Inspect is called without a reader.
	ErrNilSource = errors.New("inspect: nil source")

	// ErrNotReplayable is returned by [Result.Rewind] when replay was disabled.
	ErrNotReplayable = errors.New("inspect: payload cannot be replayed")
)

// Result describes an inspected stream.
type Result struct {
	// TotalBytes is the number of bytes counted, or the known size when one
	// was supplied. When Truncated is set it is only a lower bound.
	TotalBytes int64

	// Declared is the normalized content type supplied by the transport.
	Declared string

	// Sniffed is the normalized content type detected from the first chunk.
	Sniffed string

	// ContentType is the effective content type according to the sniff policy.
	ContentType string

	// Truncated reports that the stream is larger than the maximum and that
	// reading stopped early.
	Truncated bool

	replay replay
}

// Payload returns the stream positioned at its start.
// Bytes read through it are recorded, so [Result.Rewind] can be called
// again afterwards.
func (r *Result) Payload() io.Reader {
	return r.replay
}

// Rewind positions the payload back at its start.
func (r *Result) Rewind() error {
	return r.replay.rewind()
}

// Close releases the replay store. The payload must not be used afterwards.
func (r *Result) Close() error {
	if r == nil || r.replay == nil {
		return nil
	}

	return r.replay.close()
}

// Inspect reads src in chunks, counting bytes and sniffing the content type
// from the first chunk.
//
// The context is checked before each chunk; when it is done the replay store
// is released and the context error is returned without a result.
func Inspect(ctx context.Context, src io.Reader, opts ...Option) (*Result, error) {
	if src == nil {
		return nil, ErrNilSource
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rp, err := newReplay(src, cfg)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Declared: Normalize(cfg.declared),
		replay:   rp,
	}

	buf := make([]byte, cfg.chunkSize)
	var total int64
	for first := true; ; first = false {
		if err := ctx.Err(); err != nil {
			_ = rp.close()
			return nil, err
		}

		n, err := io.ReadFull(rp, buf)
		total += int64(n)
		if first && n > 0 && cfg.policy != DeclaredOnly {
			res.Sniffed = sniff(buf[:n])
		}

		if cfg.maxBytes >= 0 && total > cfg.maxBytes {
			res.Truncated = true
			break
		}
		if cfg.knownSize >= 0 {
			break
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			_ = rp.close()
			return nil, fmt.Errorf("inspect: read: %w", err)
		}
	}

	res.TotalBytes = total
	if cfg.knownSize >= 0 {
		res.TotalBytes = cfg.knownSize
		res.Truncated = cfg.maxBytes >= 0 && cfg.knownSize > cfg.maxBytes
	}
	res.ContentType = effectiveType(cfg.policy, res.Declared, res.Sniffed)

	if err := rp.rewind(); err != nil && !errors.Is(err, ErrNotReplayable) {
		_ = rp.close()
		return nil, fmt.Errorf("inspect: rewind: %w", err)
	}

	return res, nil
}

// Normalize lower-cases a media type and strips its parameters,
// e.g. "Text/CSV; charset=utf-8" becomes "text/csv".
func Normalize(contentType string) string {
	base, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// Inconclusive reports whether a sniffed type is too generic to contradict
// a declared one.
func Inconclusive(contentType string) bool {
	switch Normalize(contentType) {
	case "", "application/octet-stream", "text/plain":
		return true
	}

	return false
}

func sniff(head []byte) string {
	return Normalize(mimetype.Detect(head).String())
}

func effectiveType(policy SniffPolicy, declared, sniffed string) string {
	switch policy {
	case DeclaredOnly:
		return declared
	case PreferDeclared:
		if declared != "" {
			return declared
		}

		return sniffed
	default:
		if !Inconclusive(sniffed) {
			return sniffed
		}
		if declared != "" {
			return declared
		}

		return sniffed
	}
}
