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

package param

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// Type is the Go type a raw parameter is coerced to.
type Type uint8

const (
	String   Type = iota // string
	Int                  // int64
	Float                // float64
	Bool                 // bool
	Duration             // time.Duration
	Time                 // time.Time
	UUID                 // uuid.UUID
)

var typeNames = [...]string{
	String:   "string",
	Int:      "integer",
	Float:    "number",
	Bool:     "boolean",
	Duration: "duration",
	Time:     "time",
	UUID:     "UUID",
}

// String returns the name used in error messages.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}

	return "type(" + strconv.Itoa(int(t)) + ")"
}

// ParseType returns the type with the given name. It accepts the names
// returned by [Type.String] and the Go names int, float and uuid.
func ParseType(s string) (Type, error) {
	switch s {
	case "", "string":
		return String, nil
	case "int", "integer":
		return Int, nil
	case "float", "number":
		return Float, nil
	case "bool", "boolean":
		return Bool, nil
	case "duration":
		return Duration, nil
	case "time":
		return Time, nil
	case "uuid", "UUID":
		return UUID, nil
	}

	return 0, fmt.Errorf("unknown parameter type %q", s)
}

func (t Type) numeric() bool {
	return t == Int || t == Float
}

// coerce converts v, usually the raw string, to t.
func (t Type) coerce(v any) (any, error) {
	switch t {
	case String:
		return cast.ToStringE(v)
	case Int:
		// Raw input is decimal only; cast would accept 0x, 0b and leading-zero octal.
		if s, ok := v.(string); ok {
			return strconv.ParseInt(s, 10, 64)
		}
		return cast.ToInt64E(v)
	case Float:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) {
			return nil, errors.New("NaN is not a number")
		}
		return f, nil
	case Bool:
		return cast.ToBoolE(v)
	case Duration:
		// A bare number would be read as nanoseconds.
		if s, ok := v.(string); ok {
			return time.ParseDuration(s)
		}
		return cast.ToDurationE(v)
	case Time:
		return cast.ToTimeE(v)
	case UUID:
		switch x := v.(type) {
		case uuid.UUID:
			return x, nil
		case string:
			return uuid.Parse(x)
		}
		return nil, fmt.Errorf("unable to cast %#v of type %T to uuid.UUID", v, v)
	}

	return nil, fmt.Errorf("unknown parameter type %d", t)
}

// asFloat returns a numeric value as float64 for bound checks.
func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}

	return 0, false
}

// equal compares coerced values.
func equal(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}

	return a == b
}
