package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

// DPI presets for pdf-to-images.
var qualityDPI = map[string]int{
	"web":   72,
	"print": 150,
	"high":  300,
}

type renderOptions struct {
	Format  string `json:"format"`
	Quality string `json:"quality"`
	DPI     int    `json:"dpi"`
}

func (o renderOptions) dpi() int {
	if o.DPI > 0 {
		return o.DPI
	}
	if d, ok := qualityDPI[o.Quality]; ok {
		return d
	}
	return qualityDPI["web"]
}

// PDFToImages rasterizes every page of a PDF with pdftoppm, one page per call
// so progress and cancellation are observed between pages.
type PDFToImages struct {
	runner Runner
	bin    string
	logger *slog.Logger
}

func NewPDFToImages(runner Runner, bin string, logger *slog.Logger) *PDFToImages {
	if runner == nil {
		runner = ExecRunner{}
	}
	if bin == "" {
		bin = "pdftoppm"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFToImages{runner: runner, bin: bin, logger: logger}
}

func (*PDFToImages) Operation() constants.Operation { return constants.OpPDFToImages }

func (*PDFToImages) Schema() string { return pdfToImagesSchema }

func (r *PDFToImages) Execute(ctx context.Context, job entity.Job, progress ProgressFunc) (Result, error) {
	opts := renderOptions{Format: "png", Quality: "web"}
	if err := decodeOptions(job.Options, &opts); err != nil {
		return Result{}, err
	}
	in := job.Inputs[0]
	if err := checkPDF(in); err != nil {
		return Result{}, err
	}
	pages, err := pageCount(in)
	if err != nil {
		return Result{}, err
	}
	if pages == 0 {
		return Result{}, common.Failuref(constants.FailureCorruptInput, "%s has no pages", filepath.Base(in))
	}

	st, err := newStage(job.Output)
	if err != nil {
		return Result{}, err
	}
	defer st.Cleanup()

	ext, flag := "png", "-png"
	if opts.Format == "jpeg" {
		ext, flag = "jpg", "-jpeg"
	}
	dpi := strconv.Itoa(opts.dpi())
	base := baseName(in)
	logger := common.LoggerFrom(ctx, r.logger)

	staged := make([]string, 0, pages)
	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		prefix := st.Path(fmt.Sprintf("%s_page_%03d", base, page))
		n := strconv.Itoa(page)
		_, stderr, err := r.runner.Run(ctx, r.bin, logger,
			flag, "-r", dpi, "-f", n, "-l", n, "-singlefile", in, prefix)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			logger.Warn("pdftoppm failed", "page", page, "stderr", truncate(string(stderr), 512))
			return Result{}, classifyExec(err, r.bin, stderr)
		}
		out := prefix + "." + ext
		if _, err := os.Stat(out); err != nil {
			return Result{}, common.Failuref(constants.FailureInternal, "%s did not write page %d", r.bin, page)
		}
		staged = append(staged, out)
		progress.step(0, 0.95, page, pages)
	}

	written, err := st.commitDir(staged, job.Output)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Artifact:  job.Output,
		Artifacts: written,
		Metadata:  map[string]string{"pages": strconv.Itoa(pages), "dpi": dpi, "format": filepath.Ext(staged[0])[1:]},
	}, nil
}
