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

//go:build !integration

package guard

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "size_bound_violation", KindSizeBound.String())
	assert.Equal(t, "content_type_violation", KindContentType.String())
	assert.Equal(t, "type_coercion_error", KindTypeCoercion.String())
	assert.Equal(t, "kind(200)", Kind(200).String())
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("checksum mismatch")
	err := error(&Error{Kind: KindCustomPredicate, Message: "bad file", Err: cause})

	require.ErrorIs(t, err, ErrCustomPredicate)
	require.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrSizeBound)

	wrapped := fmt.Errorf("upload: %w", err)
	var gerr *Error
	require.ErrorAs(t, wrapped, &gerr)
	assert.Equal(t, "bad file", gerr.Error())
}

func TestError_HTTPInterfaces(t *testing.T) {
	t.Parallel()

	err := &Error{Kind: KindContentType, Status: http.StatusUnsupportedMediaType, Message: "nope", Validator: "avatar"}
	assert.Equal(t, http.StatusUnsupportedMediaType, err.HTTPStatus())
	assert.Equal(t, "content_type_violation", err.Code())
	assert.Equal(t, []Detail{{Validator: "avatar", Kind: "content_type_violation", Message: "nope"}}, err.Details())

	assert.Equal(t, http.StatusBadRequest, (&Error{Kind: KindPattern}).HTTPStatus())
}

func TestMessage_Resolve(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "fixed", Static("fixed").Resolve(42))
	assert.Equal(t, "got 42", Dynamic(func(v any) string { return fmt.Sprintf("got %v", v) }).Resolve(42))
	assert.Empty(t, Dynamic(nil).Resolve(42))
	assert.Empty(t, resolve(nil, 42))
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	assert.True(t, Pass().Passed())

	o := Fail(KindLength, "abc", "too short").WithStatus(422).WithOverride(nil)
	assert.False(t, o.Passed())
	assert.Equal(t, 422, o.Status)
	assert.Nil(t, o.Override)

	o = o.WithOverride(Static("custom"))
	assert.Equal(t, Static("custom"), o.Override)
}
