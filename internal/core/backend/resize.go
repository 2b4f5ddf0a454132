package backend

import (
	"context"
	"image"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

type resizeOptions struct {
	Width          int   `json:"width"`
	Height         int   `json:"height"`
	MaintainAspect *bool `json:"maintain_aspect"`
	JPEGQuality    int   `json:"jpeg_quality"`
}

// Resize scales an image. With maintain_aspect (the default) the image is
// fit inside width x height and never enlarged.
type Resize struct{}

func NewResize() *Resize { return &Resize{} }

func (*Resize) Operation() constants.Operation { return constants.OpResize }

func (*Resize) Schema() string { return resizeSchema }

func (*Resize) CheckJob(spec entity.JobSpec) error {
	return checkImageOutput(spec.Output)
}

func (*Resize) Execute(ctx context.Context, job entity.Job, progress ProgressFunc) (Result, error) {
	var opts resizeOptions
	if err := decodeOptions(job.Options, &opts); err != nil {
		return Result{}, err
	}
	keep := opts.MaintainAspect == nil || *opts.MaintainAspect
	return imageTransform(job.Inputs[0], job.Output, opts.JPEGQuality, progress, func(src image.Image) (image.Image, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if keep {
			return imaging.Fit(src, opts.Width, opts.Height, imaging.Lanczos), nil
		}
		return imaging.Resize(src, opts.Width, opts.Height, imaging.Lanczos), nil
	})
}
