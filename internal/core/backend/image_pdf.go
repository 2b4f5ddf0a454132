package backend

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

type imageToPDFOptions struct {
	JPEGQuality int `json:"jpeg_quality"`
}

// ImageToPDF writes one page per input image, in input order. Images are
// re-encoded as JPEG over a white background before import.
type ImageToPDF struct {
	logger *slog.Logger
}

func NewImageToPDF(logger *slog.Logger) *ImageToPDF {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageToPDF{logger: logger}
}

func (*ImageToPDF) Operation() constants.Operation { return constants.OpImageToPDF }

func (*ImageToPDF) Schema() string { return imageToPDFSchema }

func (c *ImageToPDF) Execute(ctx context.Context, job entity.Job, progress ProgressFunc) (Result, error) {
	opts := imageToPDFOptions{JPEGQuality: 92}
	if err := decodeOptions(job.Options, &opts); err != nil {
		return Result{}, err
	}
	st, err := newStage(job.Output)
	if err != nil {
		return Result{}, err
	}
	defer st.Cleanup()

	pages := make([]string, 0, len(job.Inputs))
	for i, in := range job.Inputs {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		img, err := openImage(in)
		if err != nil {
			return Result{}, err
		}
		page := st.Path(fmt.Sprintf("page_%03d.jpg", i+1))
		if err := writeImage(img, page, imaging.JPEG, opts.JPEGQuality); err != nil {
			return Result{}, err
		}
		pages = append(pages, page)
		progress.step(0, 0.7, i+1, len(job.Inputs))
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	staged := st.Path(filepath.Base(job.Output))
	if err := api.ImportImagesFile(pages, staged, pdfcpu.DefaultImportConfig(), pdfConfig()); err != nil {
		return Result{}, classifyDecode(err, "build PDF from images")
	}
	progress.report(0.95)
	if err := st.Commit(staged, job.Output); err != nil {
		return Result{}, err
	}
	c.logger.Debug("images converted to pdf", "pages", len(pages), "output", job.Output)
	return Result{Artifact: job.Output, Metadata: map[string]string{"pages": fmt.Sprint(len(pages))}}, nil
}
