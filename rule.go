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
	"context"
	"errors"
)

// Rule is a single configured constraint on a value of type T.
type Rule[T any] interface {
	Evaluate(ctx context.Context, observed T) Outcome
}

// RuleFunc adapts a function to the [Rule] interface.
type RuleFunc[T any] func(ctx context.Context, observed T) Outcome

// Evaluate calls f.
func (f RuleFunc[T]) Evaluate(ctx context.Context, observed T) Outcome {
	return f(ctx, observed)
}

// Evaluate runs rules in order and returns the first failing outcome,
// or a pass when every rule succeeds. Later rules are not evaluated
// once one fails.
//
// A non-nil error is returned only when ctx is done; no outcome is
// reported in that case.
func Evaluate[T any](ctx context.Context, observed T, rules ...Rule[T]) (Outcome, error) {
	for _, r := range rules {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		o := r.Evaluate(ctx, observed)
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		if !o.Passed() {
			return o, nil
		}
	}

	return Pass(), nil
}

// Predicate is a user-supplied check. It returns nil when the value is
// acceptable. It may block, and should honour ctx.
type Predicate[T any] func(ctx context.Context, observed T) error

// PredicateRule wraps a predicate as a [Rule].
//
// A predicate error becomes a custom predicate failure whose message is the
// error text, unless override is set. A predicate returning an [*Error]
// keeps that error's kind, status and message.
func PredicateRule[T any](p Predicate[T], override Message) Rule[T] {
	return RuleFunc[T](func(ctx context.Context, observed T) Outcome {
		err := p(ctx, observed)
		if err == nil {
			return Pass()
		}

		var gerr *Error
		if errors.As(err, &gerr) && gerr.Kind != KindNone {
			return Fail(gerr.Kind, observed, gerr.Message).
				WithStatus(gerr.Status).
				WithOverride(override).
				WithCause(err)
		}

		return Fail(KindCustomPredicate, observed, err.Error()).
			WithOverride(override).
			WithCause(err)
	})
}
