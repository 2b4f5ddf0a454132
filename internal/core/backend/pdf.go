package backend

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
)

func pdfConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

// checkPDF makes sure path is a readable, parseable PDF.
func checkPDF(path string) error {
	if err := requireExt(path, constants.PDFExtensions); err != nil {
		return err
	}
	if err := requireInput(path); err != nil {
		return err
	}
	if err := api.ValidateFile(path, pdfConfig()); err != nil {
		return common.NewFailure(constants.FailureCorruptInput, filepath.Base(path)+" is not a valid PDF", err)
	}
	return nil
}

func pageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, common.NewFailure(constants.FailureCorruptInput, "count pages of "+filepath.Base(path), err)
	}
	return n, nil
}

// ParsePageRange turns "1-3,5,7-9" into sorted, unique page numbers.
// Pages past total are dropped. An empty spec selects every page.
func ParsePageRange(spec string, total int) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		pages := make([]int, total)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages, nil
	}
	seen := map[int]struct{}{}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		lo, hi := part, part
		if a, b, ok := strings.Cut(part, "-"); ok {
			lo, hi = strings.TrimSpace(a), strings.TrimSpace(b)
		}
		start, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid page range %q", spec)
		}
		end, err := strconv.Atoi(hi)
		if err != nil {
			return nil, fmt.Errorf("invalid page range %q", spec)
		}
		if start < 1 || end < start {
			return nil, fmt.Errorf("invalid page range %q", spec)
		}
		for p := start; p <= end && p <= total; p++ {
			seen[p] = struct{}{}
		}
	}
	pages := make([]int, 0, len(seen))
	for p := range seen {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages, nil
}

// pageSelection formats pages for pdfcpu's page selection syntax.
func pageSelection(pages []int) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = strconv.Itoa(p)
	}
	return out
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
