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

package csvfile

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"rivaas.dev/guard"
)

// errNotASCII is returned by the ASCII validator on the first byte >= 0x80.
var errNotASCII = errors.New("csvfile: invalid ASCII")

// codec decodes one configured encoding to UTF-8.
// UTF-8 and ASCII fail on invalid input; other charsets substitute U+FFFD.
type codec struct {
	name           string
	newTransformer func() transform.Transformer
}

func lookupCodec(name string) (codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8", "utf-8-sig":
		return codec{name: "UTF-8", newTransformer: utf8Transformer}, nil
	case "ascii", "us-ascii":
		return codec{name: "ASCII", newTransformer: asciiTransformer}, nil
	case "latin-1", "latin1":
		name = "ISO-8859-1"
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return codec{}, fmt.Errorf("%w: unsupported encoding %q", guard.ErrInvalidConfig, name)
	}

	// MIME names are the familiar ones ("ISO-8859-1" rather than "ISO_8859-1:1987").
	if canonical, err := ianaindex.MIME.Name(enc); err == nil && canonical != "" {
		name = canonical
	} else if canonical, err := ianaindex.IANA.Name(enc); err == nil && canonical != "" {
		name = canonical
	}

	return codec{name: name, newTransformer: func() transform.Transformer { return enc.NewDecoder() }}, nil
}

// utf8Transformer rejects invalid UTF-8 and drops a leading byte order mark.
func utf8Transformer() transform.Transformer {
	return transform.Chain(encoding.UTF8Validator, unicode.UTF8BOM.NewDecoder())
}

func asciiTransformer() transform.Transformer {
	return asciiValidator{}
}

// isEncodingError reports whether err comes from a strict codec.
func isEncodingError(err error) bool {
	return errors.Is(err, encoding.ErrInvalidUTF8) || errors.Is(err, errNotASCII)
}

type asciiValidator struct {
	transform.NopResetter
}

func (asciiValidator) Transform(dst, src []byte, _ bool) (nDst, nSrc int, err error) {
	n := min(len(dst), len(src))
	for i := range n {
		if src[i] >= utf8.RuneSelf {
			return i, i, errNotASCII
		}
		dst[i] = src[i]
	}
	if n < len(src) {
		return n, n, transform.ErrShortDst
	}

	return n, n, nil
}
