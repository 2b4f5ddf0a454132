package backend

import (
	"context"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

type convertOptions struct {
	TargetFormat string  `json:"target_format"`
	Angle        float64 `json:"angle"`
	JPEGQuality  int     `json:"jpeg_quality"`
}

// FormatConvert re-encodes an image, optionally rotating it counter-clockwise
// by angle degrees first. The canvas grows to fit the rotated image and the
// uncovered corners are transparent (white for targets without alpha).
// The output extension must agree with target_format (jpg and jpeg are
// interchangeable, as are tif and tiff).
type FormatConvert struct{}

func NewFormatConvert() *FormatConvert { return &FormatConvert{} }

func (*FormatConvert) Operation() constants.Operation { return constants.OpFormatConvert }

func (*FormatConvert) Schema() string { return formatConvertSchema }

func (*FormatConvert) CheckJob(spec entity.JobSpec) error {
	var opts convertOptions
	if err := decodeOptions(spec.Options, &opts); err != nil {
		return err
	}
	want, ok := targetFormats[strings.ToLower(opts.TargetFormat)]
	if !ok {
		// the schema reports unknown formats
		return nil
	}
	got, ok := targetFormats[constants.NormalizeExt(filepath.Ext(spec.Output))]
	if !ok || got != want {
		return common.ValidationErrors{{
			Field:   "output",
			Value:   spec.Output,
			Message: "extension must match target_format " + opts.TargetFormat,
		}}
	}
	return nil
}

func (*FormatConvert) Execute(ctx context.Context, job entity.Job, progress ProgressFunc) (Result, error) {
	var opts convertOptions
	if err := decodeOptions(job.Options, &opts); err != nil {
		return Result{}, err
	}
	return imageTransform(job.Inputs[0], job.Output, opts.JPEGQuality, progress, func(src image.Image) (image.Image, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if math.Mod(opts.Angle, 360) == 0 {
			return src, nil
		}
		return imaging.Rotate(src, opts.Angle, color.Transparent), nil
	})
}
