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

// Package image validates uploaded images: format, resolution and aspect
// ratio, on top of the checks of package file.
//
// Only the image header is decoded, so dimensions are read without
// decoding pixel data. JPEG, PNG and GIF decoders are always available;
// import rivaas.dev/guard/image/xformats for BMP, TIFF and WebP.
//
//	thumbs := image.MustNew(
//		image.WithFile(file.WithMaxSize("5MB")),
//		image.WithFormats("JPEG", "PNG"),
//		image.WithMinResolution(640, 480),
//		image.WithAspectRatios("4:3", "16:9"),
//	)
//
// Checks run after the file checks, in this order: decodability and format
// (415), exact resolution, minimum resolution, maximum resolution, then
// aspect ratio (400).
package image

import (
	"context"
	"fmt"
	stdimage "image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"net/http"
	"strings"

	"rivaas.dev/guard"
	"rivaas.dev/guard/file"
	"rivaas.dev/guard/inspect"
)

func init() {
	guard.RegisterFeature("image/jpeg", "image/png", "image/gif")
}

const invalidImageMessage = "File is not a valid image or is corrupted."

// Image is an upload that passed the file checks and was decoded.
type Image struct {
	*file.Checked

	// Format is the upper-case format name, e.g. "PNG".
	Format string

	Resolution
}

// Validator checks image uploads. It is safe for concurrent use.
type Validator struct {
	name    string
	file    *file.Validator
	rules   []guard.Rule[*Image]
	surface guard.Surface
	inst    *guard.Instrumentation
	formatM guard.Message
}

// New creates an image validator.
func New(opts ...Option) (*Validator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	fileOpts := []file.Option{file.WithName(cfg.name)}
	if len(cfg.contentTypes) > 0 {
		fileOpts = append(fileOpts, file.WithContentTypes(cfg.contentTypes...))
	}
	if cfg.inst != nil {
		fileOpts = append(fileOpts, file.WithInstrumentation(cfg.inst))
	}
	fileOpts = append(fileOpts, cfg.fileOpts...)

	fv, err := file.New(fileOpts...)
	if err != nil {
		return nil, err
	}
	if fv.Replay() == inspect.ReplayNone {
		return nil, fmt.Errorf("%w: image decoding needs the content replayed", guard.ErrInvalidConfig)
	}

	v := &Validator{
		name:    cfg.name,
		file:    fv,
		surface: fv.Surface(),
		inst:    fv.Instrumentation(),
		formatM: cfg.formatMessage,
	}

	if len(cfg.formats) > 0 {
		formats := make([]string, 0, len(cfg.formats))
		for _, f := range cfg.formats {
			canon := canonicalFormat(f)
			if err := guard.RequireFeature(FeatureName(canon)); err != nil {
				return nil, fmt.Errorf("image format %s: %w", canon, err)
			}
			formats = append(formats, canon)
		}
		v.rules = append(v.rules, formatRule(formats, cfg.formatMessage))
	}

	for _, r := range []*Resolution{cfg.minRes, cfg.maxRes, cfg.exactRes} {
		if r != nil && (r.Width < 0 || r.Height < 0) {
			return nil, fmt.Errorf("%w: negative resolution %s", guard.ErrInvalidConfig, r)
		}
	}
	if cfg.minRes != nil && cfg.maxRes != nil &&
		(cfg.minRes.Width > cfg.maxRes.Width || cfg.minRes.Height > cfg.maxRes.Height) {
		return nil, fmt.Errorf("%w: min resolution %s exceeds max resolution %s",
			guard.ErrInvalidConfig, cfg.minRes, cfg.maxRes)
	}
	if cfg.exactRes != nil || cfg.minRes != nil || cfg.maxRes != nil {
		v.rules = append(v.rules, resolutionRule(cfg.exactRes, cfg.minRes, cfg.maxRes, cfg.resMessage))
	}

	if len(cfg.ratios) > 0 {
		if cfg.tolerance < 0 {
			return nil, fmt.Errorf("%w: negative aspect ratio tolerance %v", guard.ErrInvalidConfig, cfg.tolerance)
		}
		ratios := make([]aspectRatio, 0, len(cfg.ratios))
		for _, s := range cfg.ratios {
			r, err := parseAspectRatio(s)
			if err != nil {
				return nil, err
			}
			ratios = append(ratios, r)
		}
		v.rules = append(v.rules, aspectRatioRule(ratios, cfg.tolerance, cfg.ratioMessage))
	}

	return v, nil
}

// MustNew is like [New] but panics on error.
func MustNew(opts ...Option) *Validator {
	v, err := New(opts...)
	if err != nil {
		panic(err)
	}

	return v
}

// Name returns the validator name.
func (v *Validator) Name() string {
	return v.name
}

// File returns the underlying file validator.
func (v *Validator) File() *file.Validator {
	return v.file
}

// Validate runs the file checks, decodes the image header and runs the
// image checks. On success the caller must Close the returned image.
func (v *Validator) Validate(ctx context.Context, up *file.Upload) (*Image, error) {
	var img *Image
	err := v.inst.Observe(ctx, v.name, func(ctx context.Context) error {
		var err error
		img, err = v.check(ctx, up)
		return err
	})

	return img, err
}

func (v *Validator) check(ctx context.Context, up *file.Upload) (*Image, error) {
	checked, err := v.file.Check(ctx, up)
	if err != nil {
		return nil, err
	}

	cfg, format, decodeErr := stdimage.DecodeConfig(checked.Reader())
	if err := checked.Rewind(); err != nil {
		_ = checked.Close()
		return nil, &guard.Error{
			Kind:      guard.KindUnexpected,
			Status:    http.StatusBadRequest,
			Message:   "An unexpected error occurred during image validation.",
			Validator: v.name,
			Err:       err,
		}
	}
	if decodeErr != nil {
		_ = checked.Close()
		o := guard.Fail(guard.KindStructural, up.Name, invalidImageMessage).
			WithStatus(http.StatusUnsupportedMediaType).
			WithOverride(v.formatM).
			WithCause(decodeErr)

		return nil, v.surface.Error(o)
	}

	img := &Image{
		Checked:    checked,
		Format:     canonicalFormat(format),
		Resolution: Resolution{Width: cfg.Width, Height: cfg.Height},
	}

	outcome, err := guard.Evaluate(ctx, img, v.rules...)
	if err != nil {
		_ = checked.Close()
		return nil, err
	}
	if !outcome.Passed() {
		_ = checked.Close()
		return nil, v.surface.Error(outcome)
	}

	return img, nil
}

func formatRule(formats []string, override guard.Message) guard.Rule[*Image] {
	list := strings.Join(formats, ", ")

	return guard.RuleFunc[*Image](func(_ context.Context, img *Image) guard.Outcome {
		for _, f := range formats {
			if img.Format == f {
				return guard.Pass()
			}
		}

		msg := fmt.Sprintf("Unsupported image format: '%s'. Allowed formats are: %s", img.Format, list)

		return guard.Fail(guard.KindContentType, img.Format, msg).
			WithStatus(http.StatusUnsupportedMediaType).
			WithOverride(override)
	})
}

func resolutionRule(exact, minRes, maxRes *Resolution, override guard.Message) guard.Rule[*Image] {
	return guard.RuleFunc[*Image](func(_ context.Context, img *Image) guard.Outcome {
		got := img.Resolution

		var msg string
		switch {
		case exact != nil && got != *exact:
			msg = fmt.Sprintf("Image resolution must be exactly %s. Got %s.", exact, got)
		case minRes != nil && (got.Width < minRes.Width || got.Height < minRes.Height):
			msg = fmt.Sprintf("Image resolution (%s) is below the minimum of %s.", got, minRes)
		case maxRes != nil && (got.Width > maxRes.Width || got.Height > maxRes.Height):
			msg = fmt.Sprintf("Image resolution (%s) exceeds the maximum of %s.", got, maxRes)
		default:
			return guard.Pass()
		}

		return guard.Fail(guard.KindStructural, got.String(), msg).WithOverride(override)
	})
}

func aspectRatioRule(ratios []aspectRatio, tolerance float64, override guard.Message) guard.Rule[*Image] {
	names := make([]string, len(ratios))
	for i, r := range ratios {
		names[i] = r.text
	}
	list := strings.Join(names, ", ")

	return guard.RuleFunc[*Image](func(_ context.Context, img *Image) guard.Outcome {
		if img.Height == 0 {
			return guard.Fail(guard.KindStructural, img.Resolution.String(),
				"Image has zero height and aspect ratio cannot be calculated.").WithOverride(override)
		}

		actual := float64(img.Width) / float64(img.Height)
		for _, r := range ratios {
			if math.Abs(actual-r.value) <= tolerance {
				return guard.Pass()
			}
		}

		msg := fmt.Sprintf("Image aspect ratio (%d:%d ≈ %.2f) is not allowed. Allowed ratios are: %s",
			img.Width, img.Height, actual, list)

		return guard.Fail(guard.KindStructural, actual, msg).WithOverride(override)
	})
}
