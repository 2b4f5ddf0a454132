package backend

import (
	"context"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

// Filters lists the names accepted by the filter operation.
var Filters = []string{
	"blur", "sharpen", "smooth", "detail", "edge_enhance", "emboss", "contour",
	"grayscale", "sepia", "brightness_up", "brightness_down", "contrast_up", "contrast_down",
}

type kernel struct {
	k    [9]float64
	opts imaging.ConvolveOptions
}

// 3x3 kernels of the classic PIL filters; normalized ones divide by their sum.
var kernels = map[string]kernel{
	"sharpen":      {k: [9]float64{-2, -2, -2, -2, 32, -2, -2, -2, -2}, opts: imaging.ConvolveOptions{Normalize: true}},
	"smooth":       {k: [9]float64{1, 1, 1, 1, 5, 1, 1, 1, 1}, opts: imaging.ConvolveOptions{Normalize: true}},
	"detail":       {k: [9]float64{0, -1, 0, -1, 10, -1, 0, -1, 0}, opts: imaging.ConvolveOptions{Normalize: true}},
	"edge_enhance": {k: [9]float64{-1, -1, -1, -1, 10, -1, -1, -1, -1}, opts: imaging.ConvolveOptions{Normalize: true}},
	"emboss":       {k: [9]float64{-1, 0, 0, 0, 1, 0, 0, 0, 0}, opts: imaging.ConvolveOptions{Bias: 128}},
	"contour":      {k: [9]float64{-1, -1, -1, -1, 8, -1, -1, -1, -1}, opts: imaging.ConvolveOptions{Bias: 255}},
}

type filterOptions struct {
	Filter      string `json:"filter"`
	JPEGQuality int    `json:"jpeg_quality"`
}

// Filter applies one named effect to an image.
type Filter struct{}

func NewFilter() *Filter { return &Filter{} }

func (*Filter) Operation() constants.Operation { return constants.OpFilter }

func (*Filter) Schema() string { return filterSchema }

func (*Filter) CheckJob(spec entity.JobSpec) error {
	return checkImageOutput(spec.Output)
}

func (*Filter) Execute(ctx context.Context, job entity.Job, progress ProgressFunc) (Result, error) {
	var opts filterOptions
	if err := decodeOptions(job.Options, &opts); err != nil {
		return Result{}, err
	}
	return imageTransform(job.Inputs[0], job.Output, opts.JPEGQuality, progress, func(src image.Image) (image.Image, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return ApplyFilter(src, opts.Filter)
	})
}

// ApplyFilter runs the named filter over img.
func ApplyFilter(img image.Image, name string) (image.Image, error) {
	if k, ok := kernels[name]; ok {
		opts := k.opts
		return imaging.Convolve3x3(img, k.k, &opts), nil
	}
	switch name {
	case "blur":
		return imaging.Blur(img, 2), nil
	case "grayscale":
		return imaging.Grayscale(img), nil
	case "sepia":
		return imaging.AdjustFunc(imaging.Grayscale(img), func(c color.NRGBA) color.NRGBA {
			g := float64(c.R)
			return color.NRGBA{R: clamp8(g * 1.35), G: clamp8(g * 1.2), B: clamp8(g * 0.8), A: c.A}
		}), nil
	case "brightness_up":
		return scale(img, 1.3), nil
	case "brightness_down":
		return scale(img, 0.7), nil
	case "contrast_up":
		return imaging.AdjustContrast(img, 30), nil
	case "contrast_down":
		return imaging.AdjustContrast(img, -30), nil
	}
	return nil, common.Failuref(constants.FailureUnsupportedFormat, "unknown filter %q", name)
}

// scale multiplies every color channel by f.
func scale(img image.Image, f float64) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: clamp8(float64(c.R) * f), G: clamp8(float64(c.G) * f), B: clamp8(float64(c.B) * f), A: c.A}
	})
}

func clamp8(v float64) uint8 {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return uint8(v + 0.5)
}

// checkImageOutput rejects output paths no encoder can write.
func checkImageOutput(output string) error {
	if _, err := formatFor(output); err != nil {
		return common.ValidationErrors{{Field: "output", Value: output, Message: "unsupported image extension"}}
	}
	return nil
}
