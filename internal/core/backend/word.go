package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

type wordOptions struct {
	PageBreaks *bool `json:"page_breaks"`
}

// PDFToWord extracts the text layer of one or more PDFs into a .docx file.
// Several inputs are merged first so the document follows input order.
type PDFToWord struct {
	logger *slog.Logger
}

func NewPDFToWord(logger *slog.Logger) *PDFToWord {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFToWord{logger: logger}
}

func (*PDFToWord) Operation() constants.Operation { return constants.OpPDFToWord }

func (*PDFToWord) Schema() string { return pdfToWordSchema }

func (w *PDFToWord) Execute(ctx context.Context, job entity.Job, progress ProgressFunc) (Result, error) {
	var opts wordOptions
	if err := decodeOptions(job.Options, &opts); err != nil {
		return Result{}, err
	}
	pageBreaks := opts.PageBreaks == nil || *opts.PageBreaks

	for _, in := range job.Inputs {
		if err := checkPDF(in); err != nil {
			return Result{}, err
		}
	}
	st, err := newStage(job.Output)
	if err != nil {
		return Result{}, err
	}
	defer st.Cleanup()

	src := job.Inputs[0]
	if len(job.Inputs) > 1 {
		src = st.Path("combined.pdf")
		if err := api.MergeCreateFile(job.Inputs, src, false, pdfConfig()); err != nil {
			return Result{}, classifyDecode(err, "merge inputs")
		}
	}
	progress.report(0.1)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	staged := st.Path(filepath.Base(job.Output))
	pages, err := w.convert(ctx, src, staged, pageBreaks, progress)
	if err != nil {
		return Result{}, err
	}
	if err := st.Commit(staged, job.Output); err != nil {
		return Result{}, err
	}
	return Result{Artifact: job.Output, Metadata: map[string]string{"pages": strconv.Itoa(pages)}}, nil
}

func (w *PDFToWord) convert(ctx context.Context, src, dst string, pageBreaks bool, progress ProgressFunc) (int, error) {
	f, r, err := pdf.Open(src)
	if err != nil {
		return 0, classifyDecode(err, "open "+filepath.Base(src))
	}
	defer f.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, classifyIO(err, "create document")
	}
	defer out.Close()

	doc, err := newDocxWriter(out)
	if err != nil {
		return 0, classifyIO(err, "write document")
	}

	total := r.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return 0, common.NewFailure(constants.FailureCorruptInput, fmt.Sprintf("extract text from page %d", i), err)
		}
		if i > 1 && pageBreaks {
			if err := doc.PageBreak(); err != nil {
				return 0, classifyIO(err, "write document")
			}
		}
		if err := doc.Paragraphs(normalizeText(text)); err != nil {
			return 0, classifyIO(err, "write document")
		}
		progress.step(0.1, 0.95, i, total)
	}
	if err := doc.Close(); err != nil {
		return 0, classifyIO(err, "finish document")
	}
	if err := out.Sync(); err != nil {
		return 0, classifyIO(err, "flush document")
	}
	w.logger.Debug("converted pdf to docx", "pages", total, "output", dst)
	return total, nil
}
