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

// Package size parses and formats human-readable byte sizes such as "10MB".
//
// Units are binary (base 1024) and case-insensitive: B, KB, MB, GB and TB.
// A bare number is a byte count.
//
//	limit, err := size.Parse("10MB")
//	if err != nil {
//		return err
//	}
//	limit.Bytes() // 10485760
//	size.Format(limit.Bytes()) // "10MB"
package size

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// ErrMalformed is returned when a size string or value cannot be interpreted
// as a non-negative whole number of bytes.
var ErrMalformed = errors.New("malformed size")

// Byte multipliers.
const (
	B  int64 = 1
	KB       = 1024 * B
	MB       = 1024 * KB
	GB       = 1024 * MB
	TB       = 1024 * GB
)

var pattern = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*([KMGT]?B)?$`)

var units = map[string]int64{
	"B":  B,
	"KB": KB,
	"MB": MB,
	"GB": GB,
	"TB": TB,
}

// unitOrder lists units from largest to smallest for [Format].
var unitOrder = []struct {
	name string
	mult int64
}{
	{"TB", TB},
	{"GB", GB},
	{"MB", MB},
	{"KB", KB},
}

// Limit is an exact byte count together with the text it was built from.
// The zero value is a zero-byte limit.
type Limit struct {
	bytes int64
	text  string
}

// Parse converts a size string into a [Limit].
// Whitespace around the number and between the number and unit is allowed.
// Fractional numbers are accepted only when they resolve to whole bytes,
// so "1.5KB" is 1536 bytes but "1.5B" is malformed.
func Parse(s string) (Limit, error) {
	text := strings.TrimSpace(s)
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return Limit{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	mult := B
	if m[2] != "" {
		mult = units[strings.ToUpper(m[2])]
	}

	n, ok := new(big.Rat).SetString(m[1])
	if !ok {
		return Limit{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	n.Mul(n, new(big.Rat).SetInt64(mult))
	if !n.IsInt() {
		return Limit{}, fmt.Errorf("%w: %q is not a whole number of bytes", ErrMalformed, s)
	}
	if !n.Num().IsInt64() {
		return Limit{}, fmt.Errorf("%w: %q overflows int64", ErrMalformed, s)
	}

	return Limit{bytes: n.Num().Int64(), text: text}, nil
}

// MustParse is like [Parse] but panics on error.
// Use it for package-level limits and in tests.
func MustParse(s string) Limit {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return l
}

// FromBytes builds a [Limit] from a byte count.
func FromBytes(n int64) (Limit, error) {
	if n < 0 {
		return Limit{}, fmt.Errorf("%w: negative byte count %d", ErrMalformed, n)
	}

	return Limit{bytes: n, text: Format(n)}, nil
}

// FromAny builds a [Limit] from a size string, an integer, or a [Limit].
// Floating point values are accepted only when they are whole numbers.
// It exists for configuration decoding where the source type is not known.
func FromAny(v any) (Limit, error) {
	switch val := v.(type) {
	case Limit:
		return val, nil
	case *Limit:
		if val == nil {
			return Limit{}, fmt.Errorf("%w: nil limit", ErrMalformed)
		}

		return *val, nil
	case string:
		return Parse(val)
	case []byte:
		return Parse(string(val))
	case float32:
		return fromFloat(float64(val))
	case float64:
		return fromFloat(val)
	case nil:
		return Limit{}, fmt.Errorf("%w: nil value", ErrMalformed)
	}

	n, err := cast.ToInt64E(v)
	if err != nil {
		return Limit{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return FromBytes(n)
}

func fromFloat(f float64) (Limit, error) {
	if f != float64(int64(f)) {
		return Limit{}, fmt.Errorf("%w: %v is not a whole number of bytes", ErrMalformed, f)
	}

	return FromBytes(int64(f))
}

// Bytes returns the exact byte count.
func (l Limit) Bytes() int64 {
	return l.bytes
}

// String returns the text the limit was parsed from, or its canonical
// [Format] when it was built from a number.
func (l Limit) String() string {
	if l.text == "" {
		return Format(l.bytes)
	}

	return l.text
}

// MarshalText implements encoding.TextMarshaler.
func (l Limit) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Limit) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*l = parsed

	return nil
}

// Format renders n using the largest unit that divides it exactly,
// so that Parse(Format(n)) yields n for every n >= 0.
//
//	Format(10485760) // "10MB"
//	Format(1536)     // "1536B"
func Format(n int64) string {
	if n > 0 {
		for _, u := range unitOrder {
			if n%u.mult == 0 {
				return fmt.Sprintf("%d%s", n/u.mult, u.name)
			}
		}
	}

	return fmt.Sprintf("%dB", n)
}
