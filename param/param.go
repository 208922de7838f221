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

// Package param validates scalar request parameters: query string values,
// headers, cookies and path segments.
//
// A validator looks the raw value up, checks presence, coerces it to the
// configured [Type] and then applies its constraints in a fixed order:
// allowed values, numeric bounds, length, pattern or format, and custom
// predicates. The first failure is returned as a [*guard.Error].
//
//	page := param.MustQuery("page",
//		param.WithType(param.Int),
//		param.WithDefault(1),
//		param.WithGE(1),
//	)
//
//	v, err := page.ValidateRequest(ctx, r, nil)
//	if err != nil {
//		// err is a *guard.Error
//	}
//	n := v.Value.(int64)
//
// A missing required value fails with 422 for query and path parameters
// and 400 for headers and cookies. A value that cannot be coerced fails
// with 422. Other violations use the validator status, 400 by default.
package param

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"rivaas.dev/guard"
)

// Source is where a parameter is read from.
type Source uint8

const (
	SourceQuery Source = iota
	SourceHeader
	SourceCookie
	SourcePath
)

var sourceNames = [...]string{
	SourceQuery:  "query",
	SourceHeader: "header",
	SourceCookie: "cookie",
	SourcePath:   "path",
}

func (s Source) String() string {
	if int(s) < len(sourceNames) {
		return sourceNames[s]
	}

	return "source(" + strconv.Itoa(int(s)) + ")"
}

// ParseSource returns the source with the given name.
func ParseSource(s string) (Source, error) {
	for i, name := range sourceNames {
		if strings.EqualFold(s, name) {
			return Source(i), nil
		}
	}

	return 0, fmt.Errorf("%w: unknown parameter source %q", guard.ErrInvalidConfig, s)
}

// Value is a validated parameter.
type Value struct {
	Name    string
	Source  Source
	Raw     string // as received; empty when absent
	Present bool
	Value   any // coerced value, the default, or nil
}

// Validator checks one parameter. It is safe for concurrent use.
type Validator struct {
	cfg      *config
	param    string
	source   Source
	required bool
	def      any
	allowed  []any
	rules    []guard.Rule[Value]
	surface  guard.Surface
	inst     *guard.Instrumentation
}

// New creates a validator for the parameter name read from source.
func New(source Source, name string, opts ...Option) (*Validator, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty parameter name", guard.ErrInvalidConfig)
	}
	if int(source) >= len(sourceNames) {
		return nil, fmt.Errorf("%w: unknown parameter source %d", guard.ErrInvalidConfig, source)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.name == "" {
		cfg.name = source.String() + "." + name
	}
	if cfg.inst == nil {
		cfg.inst = guard.DefaultInstrumentation()
	}

	v := &Validator{
		cfg:     cfg,
		param:   name,
		source:  source,
		surface: guard.Surface{Name: cfg.name, Status: cfg.status, Message: cfg.message},
		inst:    cfg.inst,
	}
	if err := v.compile(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", guard.ErrInvalidConfig, cfg.name, err)
	}

	return v, nil
}

// compile checks the configuration and builds the rule list.
func (v *Validator) compile() error {
	cfg := v.cfg
	if len(cfg.errs) > 0 {
		return errors.Join(cfg.errs...)
	}

	if cfg.hasBounds() {
		switch {
		case cfg.typ == String:
			cfg.typ = Float
		case !cfg.typ.numeric():
			return fmt.Errorf("numeric bounds on %s parameter", cfg.typ)
		}
	}
	if cfg.minLength >= 0 && cfg.maxLength >= 0 && cfg.minLength > cfg.maxLength {
		return fmt.Errorf("min length %d is greater than max length %d", cfg.minLength, cfg.maxLength)
	}
	if cfg.pattern != "" && cfg.format != "" {
		return errors.New("pattern and format cannot be combined")
	}

	v.required = v.source == SourcePath || v.source == SourceHeader
	if cfg.hasDefault {
		v.required = false
	}
	if cfg.required != nil {
		v.required = *cfg.required
	}

	if cfg.hasDefault && cfg.defaultVal != nil {
		def, err := cfg.typ.coerce(cfg.defaultVal)
		if err != nil {
			return fmt.Errorf("default value: %w", err)
		}
		v.def = def
	}

	var allowedText []string
	for _, a := range cfg.allowed {
		av, err := cfg.typ.coerce(a)
		if err != nil {
			return fmt.Errorf("allowed value %v: %w", a, err)
		}
		v.allowed = append(v.allowed, av)
		allowedText = append(allowedText, fmt.Sprint(a))
	}

	if len(v.allowed) > 0 {
		v.rules = append(v.rules, allowedRule(v.allowed, allowedText, cfg.allowedMsg))
	}
	if cfg.hasBounds() {
		v.rules = append(v.rules, boundsRule(cfg.gt, cfg.ge, cfg.lt, cfg.le, cfg.boundMsg))
	}
	if cfg.minLength >= 0 || cfg.maxLength >= 0 {
		v.rules = append(v.rules, lengthRule(cfg.minLength, cfg.maxLength, cfg.lengthMsg))
	}
	switch {
	case cfg.pattern != "":
		re, err := regexp.Compile(cfg.pattern)
		if err != nil {
			return fmt.Errorf("pattern: %w", err)
		}
		v.rules = append(v.rules, patternRule(re, cfg.patternMsg))
	case cfg.format != "":
		f, ok := formats[cfg.format]
		if !ok {
			return fmt.Errorf("unknown format %q, available formats: %s",
				cfg.format, strings.Join(Formats(), ", "))
		}
		v.rules = append(v.rules, formatRule(cfg.format, f, cfg.patternMsg))
	}
	for _, p := range cfg.predicates {
		v.rules = append(v.rules, guard.PredicateRule(p, cfg.predMsg))
	}

	return nil
}

// MustNew is like [New] but panics on error.
func MustNew(source Source, name string, opts ...Option) *Validator {
	v, err := New(source, name, opts...)
	if err != nil {
		panic(err)
	}

	return v
}

// Query creates a validator for a query string parameter.
func Query(name string, opts ...Option) (*Validator, error) {
	return New(SourceQuery, name, opts...)
}

// Header creates a validator for a request header. Headers are required
// unless configured otherwise, and an empty header counts as absent.
func Header(name string, opts ...Option) (*Validator, error) {
	return New(SourceHeader, http.CanonicalHeaderKey(name), opts...)
}

// Cookie creates a validator for a cookie. An empty cookie counts as absent.
func Cookie(name string, opts ...Option) (*Validator, error) {
	return New(SourceCookie, name, opts...)
}

// Path creates a validator for a path parameter. Path parameters are
// required unless configured otherwise.
func Path(name string, opts ...Option) (*Validator, error) {
	return New(SourcePath, name, opts...)
}

// MustQuery is like [Query] but panics on error.
func MustQuery(name string, opts ...Option) *Validator {
	return MustNew(SourceQuery, name, opts...)
}

// MustHeader is like [Header] but panics on error.
func MustHeader(name string, opts ...Option) *Validator {
	return MustNew(SourceHeader, http.CanonicalHeaderKey(name), opts...)
}

// MustCookie is like [Cookie] but panics on error.
func MustCookie(name string, opts ...Option) *Validator {
	return MustNew(SourceCookie, name, opts...)
}

// MustPath is like [Path] but panics on error.
func MustPath(name string, opts ...Option) *Validator {
	return MustNew(SourcePath, name, opts...)
}

// Name returns the validator name.
func (v *Validator) Name() string {
	return v.cfg.name
}

// Param returns the parameter name.
func (v *Validator) Param() string {
	return v.param
}

// Source returns where the parameter is read from.
func (v *Validator) Source() Source {
	return v.source
}

// Required reports whether the parameter must be present.
func (v *Validator) Required() bool {
	return v.required
}

// Lookup reads the raw parameter from r. Path parameters are read with
// pathValue when it is non-nil, else with [http.Request.PathValue].
func (v *Validator) Lookup(r *http.Request, pathValue func(string) string) (raw string, present bool) {
	switch v.source {
	case SourceQuery:
		values, ok := r.URL.Query()[v.param]
		if !ok || len(values) == 0 {
			return "", false
		}
		return values[0], true
	case SourceHeader:
		raw = r.Header.Get(v.param)
		return raw, raw != ""
	case SourceCookie:
		c, err := r.Cookie(v.param)
		if err != nil || c.Value == "" {
			return "", false
		}
		return c.Value, true
	case SourcePath:
		if pathValue != nil {
			raw = pathValue(v.param)
		} else {
			raw = r.PathValue(v.param)
		}
		return raw, raw != ""
	}

	return "", false
}

// ValidateRequest looks the parameter up in r and validates it.
func (v *Validator) ValidateRequest(ctx context.Context, r *http.Request, pathValue func(string) string) (Value, error) {
	raw, present := v.Lookup(r, pathValue)
	return v.Validate(ctx, raw, present)
}

// Validate checks a raw value. present is false when the parameter was
// not sent; the default is then returned, or an error when the parameter
// is required.
func (v *Validator) Validate(ctx context.Context, raw string, present bool) (Value, error) {
	var val Value
	err := v.inst.Observe(ctx, v.cfg.name, func(ctx context.Context) error {
		var err error
		val, err = v.check(ctx, raw, present)
		return err
	})

	return val, err
}

func (v *Validator) check(ctx context.Context, raw string, present bool) (Value, error) {
	val := Value{Name: v.param, Source: v.source, Raw: raw, Present: present}

	if !present {
		if !v.required {
			val.Raw = ""
			val.Value = v.def
			return val, nil
		}

		return val, v.surface.Error(v.missing(val))
	}

	coerced, err := v.cfg.typ.coerce(raw)
	if err != nil {
		msg := fmt.Sprintf("Value '%s' is not a valid %s.", raw, v.cfg.typ)
		o := guard.Fail(guard.KindTypeCoercion, val, msg).
			WithStatus(http.StatusUnprocessableEntity).
			WithOverride(v.cfg.typeMsg).
			WithCause(err)
		return val, v.surface.Error(o)
	}
	val.Value = coerced

	o, err := guard.Evaluate(ctx, val, v.rules...)
	if err != nil {
		return val, err
	}
	if !o.Passed() {
		return val, v.surface.Error(o)
	}

	return val, nil
}

func (v *Validator) missing(val Value) guard.Outcome {
	var (
		msg    string
		status int
	)
	switch v.source {
	case SourceQuery:
		msg, status = fmt.Sprintf("Query parameter '%s' is required.", v.param), http.StatusUnprocessableEntity
	case SourceHeader:
		msg, status = "Required header is missing.", http.StatusBadRequest
	case SourceCookie:
		msg, status = "Cookie is required.", http.StatusBadRequest
	case SourcePath:
		msg, status = fmt.Sprintf("Path parameter '%s' is required.", v.param), http.StatusUnprocessableEntity
	}

	return guard.Fail(guard.KindRequired, val, msg).
		WithStatus(status).
		WithOverride(v.cfg.requiredMsg)
}

func allowedRule(allowed []any, text []string, override guard.Message) guard.Rule[Value] {
	return guard.RuleFunc[Value](func(_ context.Context, val Value) guard.Outcome {
		for _, a := range allowed {
			if equal(val.Value, a) {
				return guard.Pass()
			}
		}

		msg := fmt.Sprintf("Value '%s' is not allowed. Allowed values are: %s", val.Raw, strings.Join(text, ", "))

		return guard.Fail(guard.KindAllowedValue, val, msg).WithOverride(override)
	})
}

func boundsRule(gt, ge, lt, le *float64, override guard.Message) guard.Rule[Value] {
	return guard.RuleFunc[Value](func(_ context.Context, val Value) guard.Outcome {
		n, ok := asFloat(val.Value)
		if !ok {
			return guard.Pass()
		}

		var msg string
		switch {
		case gt != nil && n <= *gt:
			msg = "Value must be greater than " + formatFloat(*gt)
		case ge != nil && n < *ge:
			msg = "Value must be greater than or equal to " + formatFloat(*ge)
		case lt != nil && n >= *lt:
			msg = "Value must be less than " + formatFloat(*lt)
		case le != nil && n > *le:
			msg = "Value must be less than or equal to " + formatFloat(*le)
		default:
			return guard.Pass()
		}

		return guard.Fail(guard.KindNumericBound, val, msg).WithOverride(override)
	})
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func lengthRule(minLen, maxLen int, override guard.Message) guard.Rule[Value] {
	return guard.RuleFunc[Value](func(_ context.Context, val Value) guard.Outcome {
		n := utf8.RuneCountInString(val.Raw)

		var msg string
		switch {
		case minLen >= 0 && n < minLen:
			msg = fmt.Sprintf("Value '%s' is too short. Minimum length is %d characters.", val.Raw, minLen)
		case maxLen >= 0 && n > maxLen:
			msg = fmt.Sprintf("Value '%s' is too long. Maximum length is %d characters.", val.Raw, maxLen)
		default:
			return guard.Pass()
		}

		return guard.Fail(guard.KindLength, val, msg).WithOverride(override)
	})
}

func patternRule(re *regexp.Regexp, override guard.Message) guard.Rule[Value] {
	return guard.RuleFunc[Value](func(_ context.Context, val Value) guard.Outcome {
		if re.MatchString(val.Raw) {
			return guard.Pass()
		}

		msg := fmt.Sprintf("Value '%s' does not match the required pattern: %s", val.Raw, re)

		return guard.Fail(guard.KindPattern, val, msg).WithOverride(override)
	})
}

func formatRule(name string, f format, override guard.Message) guard.Rule[Value] {
	return guard.RuleFunc[Value](func(_ context.Context, val Value) guard.Outcome {
		if f(val.Raw) {
			return guard.Pass()
		}

		msg := fmt.Sprintf("Value does not match the required format: '%s'", name)

		return guard.Fail(guard.KindPattern, val, msg).WithOverride(override)
	})
}
