package backend

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

type mergeOptions struct {
	PageRanges  []string `json:"page_ranges"`
	DividerPage bool     `json:"divider_page"`
	PageOrder   []int    `json:"page_order"`
}

// Merge concatenates PDFs, optionally picking a page range from each.
// page_order then rearranges the combined pages: it lists 1-based pages of
// the merged document in the order they should appear, repeats allowed.
type Merge struct {
	logger *slog.Logger
}

func NewMerge(logger *slog.Logger) *Merge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merge{logger: logger}
}

func (*Merge) Operation() constants.Operation { return constants.OpMerge }

func (*Merge) Schema() string { return mergeSchema }

func (*Merge) CheckJob(spec entity.JobSpec) error {
	var opts mergeOptions
	if err := decodeOptions(spec.Options, &opts); err != nil {
		return err
	}
	if len(opts.PageRanges) > 0 && len(opts.PageRanges) != len(spec.Inputs) {
		return common.ValidationErrors{{
			Field:   "options.page_ranges",
			Value:   len(opts.PageRanges),
			Message: fmt.Sprintf("must have one entry per input (%d)", len(spec.Inputs)),
		}}
	}
	for i, r := range opts.PageRanges {
		if _, err := ParsePageRange(r, 1); err != nil {
			return common.ValidationErrors{{Field: fmt.Sprintf("options.page_ranges.%d", i), Value: r, Message: err.Error()}}
		}
	}
	return nil
}

func (m *Merge) Execute(ctx context.Context, job entity.Job, progress ProgressFunc) (Result, error) {
	var opts mergeOptions
	if err := decodeOptions(job.Options, &opts); err != nil {
		return Result{}, err
	}
	st, err := newStage(job.Output)
	if err != nil {
		return Result{}, err
	}
	defer st.Cleanup()

	sources := make([]string, 0, len(job.Inputs))
	for i, in := range job.Inputs {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := checkPDF(in); err != nil {
			return Result{}, err
		}
		src := in
		if len(opts.PageRanges) > 0 && strings.TrimSpace(opts.PageRanges[i]) != "" {
			if src, err = m.collect(in, opts.PageRanges[i], st.Path(fmt.Sprintf("part_%03d.pdf", i+1))); err != nil {
				return Result{}, err
			}
		}
		sources = append(sources, src)
		progress.step(0, 0.8, i+1, len(job.Inputs))
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	staged := st.Path(filepath.Base(job.Output))
	merged := staged
	if len(opts.PageOrder) > 0 {
		merged = st.Path("merged.pdf")
	}
	if err := api.MergeCreateFile(sources, merged, opts.DividerPage, pdfConfig()); err != nil {
		return Result{}, classifyDecode(err, "merge PDFs")
	}
	if len(opts.PageOrder) > 0 {
		progress.report(0.85)
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := reorder(merged, staged, opts.PageOrder); err != nil {
			return Result{}, err
		}
	}
	progress.report(0.95)
	if err := st.Commit(staged, job.Output); err != nil {
		return Result{}, err
	}
	m.logger.Debug("merged pdfs", "inputs", len(sources), "output", job.Output)
	return Result{Artifact: job.Output}, nil
}

// collect writes the selected pages of in to dst and returns dst.
func (m *Merge) collect(in, spec, dst string) (string, error) {
	total, err := pageCount(in)
	if err != nil {
		return "", err
	}
	pages, err := ParsePageRange(spec, total)
	if err != nil {
		return "", common.NewFailure(constants.FailureCorruptInput, "page range", err)
	}
	if len(pages) == 0 {
		return "", common.Failuref(constants.FailureCorruptInput, "%s: page range %q selects no pages (document has %d)", filepath.Base(in), spec, total)
	}
	if err := api.CollectFile(in, dst, pageSelection(pages), pdfConfig()); err != nil {
		return "", classifyDecode(err, "select pages from "+filepath.Base(in))
	}
	return dst, nil
}

// reorder writes the pages of src listed in order to dst, in that order.
func reorder(src, dst string, order []int) error {
	total, err := pageCount(src)
	if err != nil {
		return err
	}
	for _, p := range order {
		if p < 1 || p > total {
			return common.Failuref(constants.FailureCorruptInput, "page_order: page %d is out of range (merged document has %d)", p, total)
		}
	}
	if err := api.CollectFile(src, dst, pageSelection(order), pdfConfig()); err != nil {
		return classifyDecode(err, "reorder pages")
	}
	return nil
}
