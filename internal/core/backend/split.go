package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

type splitOptions struct {
	Span int `json:"span"`
}

// Split writes one PDF per page (or per span of pages) into the output directory.
type Split struct {
	logger *slog.Logger
}

func NewSplit(logger *slog.Logger) *Split {
	if logger == nil {
		logger = slog.Default()
	}
	return &Split{logger: logger}
}

func (*Split) Operation() constants.Operation { return constants.OpSplit }

func (*Split) Schema() string { return splitSchema }

func (s *Split) Execute(ctx context.Context, job entity.Job, progress ProgressFunc) (Result, error) {
	opts := splitOptions{Span: 1}
	if err := decodeOptions(job.Options, &opts); err != nil {
		return Result{}, err
	}
	in := job.Inputs[0]
	if err := checkPDF(in); err != nil {
		return Result{}, err
	}
	progress.report(0.1)

	st, err := newStage(job.Output)
	if err != nil {
		return Result{}, err
	}
	defer st.Cleanup()

	raw := st.Path("raw")
	if err := os.Mkdir(raw, 0o755); err != nil {
		return Result{}, classifyIO(err, "create split directory")
	}
	if err := api.SplitFile(in, raw, opts.Span, pdfConfig()); err != nil {
		return Result{}, classifyDecode(err, "split "+filepath.Base(in))
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	progress.report(0.5)

	parts, err := splitParts(raw)
	if err != nil {
		return Result{}, err
	}
	if len(parts) == 0 {
		return Result{}, common.Failuref(constants.FailureCorruptInput, "%s produced no pages", filepath.Base(in))
	}

	base := baseName(in)
	named := make([]string, 0, len(parts))
	for i, p := range parts {
		name := fmt.Sprintf("%s_page_%03d.pdf", base, p.first)
		if opts.Span > 1 {
			name = fmt.Sprintf("%s_pages_%03d-%03d.pdf", base, p.first, p.last)
		}
		dst := st.Path(name)
		if err := os.Rename(p.path, dst); err != nil {
			return Result{}, classifyIO(err, "rename split part")
		}
		named = append(named, dst)
		progress.step(0.5, 0.8, i+1, len(parts))
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	written, err := st.commitDir(named, job.Output)
	if err != nil {
		return Result{}, err
	}
	s.logger.Debug("split pdf", "input", in, "parts", len(written), "output_dir", job.Output)
	return Result{Artifact: job.Output, Artifacts: written}, nil
}

type splitPart struct {
	path        string
	first, last int
}

// splitParts lists pdfcpu's split output (<name>_<n>.pdf or <name>_<a>-<b>.pdf)
// ordered by first page.
func splitParts(dir string) ([]splitPart, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, classifyIO(err, "read split directory")
	}
	var parts []splitPart
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		idx := strings.LastIndex(stem, "_")
		if idx < 0 {
			continue
		}
		lo, hi, _ := strings.Cut(stem[idx+1:], "-")
		first, err := strconv.Atoi(lo)
		if err != nil {
			continue
		}
		last := first
		if hi != "" {
			if n, err := strconv.Atoi(hi); err == nil {
				last = n
			}
		}
		parts = append(parts, splitPart{path: filepath.Join(dir, e.Name()), first: first, last: last})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].first < parts[j].first })
	return parts, nil
}
