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

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// replay is the reader an inspection consumes, able to go back to the start.
type replay interface {
	io.Reader
	rewind() error
	close() error
}

func newReplay(src io.Reader, cfg *config) (replay, error) {
	switch cfg.replay {
	case ReplayNone:
		return noReplay{src}, nil
	case ReplayMemory:
		return &teeReplay{src: src, store: &memStore{}}, nil
	case ReplaySpool:
		return newSpoolReplay(src, cfg.spoolDir)
	}

	if rs, ok := src.(io.ReadSeeker); ok {
		// Pipes and terminals implement Seek but fail on it.
		if start, err := rs.Seek(0, io.SeekCurrent); err == nil {
			return &seekReplay{rs: rs, start: start}, nil
		}
	}

	return newSpoolReplay(src, cfg.spoolDir)
}

func newSpoolReplay(src io.Reader, dir string) (replay, error) {
	f, err := os.CreateTemp(dir, "guard-spool-*")
	if err != nil {
		return nil, fmt.Errorf("inspect: create spool file: %w", err)
	}

	return &teeReplay{src: src, store: &fileStore{f: f}}, nil
}

type noReplay struct {
	io.Reader
}

func (noReplay) rewind() error { return ErrNotReplayable }
func (noReplay) close() error  { return nil }

type seekReplay struct {
	rs    io.ReadSeeker
	start int64
}

func (s *seekReplay) Read(p []byte) (int, error) {
	return s.rs.Read(p)
}

func (s *seekReplay) rewind() error {
	_, err := s.rs.Seek(s.start, io.SeekStart)
	return err
}

func (s *seekReplay) close() error {
	return nil
}

// teeReplay serves recorded bytes first, then reads on from the source
// while recording, so any prefix read so far can be replayed.
type teeReplay struct {
	src   io.Reader
	store store
	pos   int64
}

func (t *teeReplay) Read(p []byte) (int, error) {
	if size := t.store.size(); t.pos < size {
		if avail := size - t.pos; int64(len(p)) > avail {
			p = p[:avail]
		}
		n, err := t.store.ReadAt(p, t.pos)
		t.pos += int64(n)
		if errors.Is(err, io.EOF) && n > 0 {
			err = nil
		}

		return n, err
	}

	n, err := t.src.Read(p)
	if n > 0 {
		if _, werr := t.store.Write(p[:n]); werr != nil {
			return 0, fmt.Errorf("inspect: record: %w", werr)
		}
		t.pos += int64(n)
	}

	return n, err
}

func (t *teeReplay) rewind() error {
	t.pos = 0
	return nil
}

func (t *teeReplay) close() error {
	return t.store.close()
}

type store interface {
	io.Writer
	io.ReaderAt
	size() int64
	close() error
}

type memStore struct {
	b []byte
}

func (m *memStore) Write(p []byte) (int, error) {
	m.b = append(m.b, p...)
	return len(p), nil
}

func (m *memStore) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.b)) {
		return 0, io.EOF
	}
	n := copy(p, m.b[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

func (m *memStore) size() int64  { return int64(len(m.b)) }
func (m *memStore) close() error { m.b = nil; return nil }

type fileStore struct {
	f *os.File
	n int64
}

func (s *fileStore) Write(p []byte) (int, error) {
	n, err := s.f.WriteAt(p, s.n)
	s.n += int64(n)
	return n, err
}

func (s *fileStore) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

func (s *fileStore) size() int64 { return s.n }

func (s *fileStore) close() error {
	name := s.f.Name()
	err := s.f.Close()
	if rerr := os.Remove(name); rerr != nil && !errors.Is(rerr, os.ErrNotExist) && err == nil {
		err = rerr
	}

	return err
}
