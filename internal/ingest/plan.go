package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

// Plan turns a file list into JobSpecs writing under outDir. Multi-input
// operations get one job over every file; the rest get one job per file.
// Output names never collide within a plan.
func Plan(op constants.Operation, files []string, outDir string, options map[string]any) ([]entity.JobSpec, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files for %s", op)
	}
	switch op {
	case constants.OpMerge:
		return []entity.JobSpec{single(op, files, filepath.Join(outDir, "merged.pdf"), options)}, nil
	case constants.OpImageToPDF:
		return []entity.JobSpec{single(op, files, filepath.Join(outDir, "images.pdf"), options)}, nil
	case constants.OpPDFToWord:
		return []entity.JobSpec{single(op, files, filepath.Join(outDir, "document.docx"), options)}, nil
	}

	used := map[string]int{}
	specs := make([]entity.JobSpec, 0, len(files))
	for _, f := range files {
		name, err := outputName(op, f, options)
		if err != nil {
			return nil, err
		}
		specs = append(specs, single(op, []string{f}, filepath.Join(outDir, unique(used, name)), options))
	}
	return specs, nil
}

func single(op constants.Operation, inputs []string, output string, options map[string]any) entity.JobSpec {
	return entity.JobSpec{Operation: op, Inputs: inputs, Output: output, Options: options}
}

func outputName(op constants.Operation, path string, options map[string]any) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	switch op {
	case constants.OpSplit:
		return base + "_pages", nil
	case constants.OpPDFToImages:
		return base + "_images", nil
	case constants.OpResize:
		return base + "_resized" + ext, nil
	case constants.OpFilter:
		name, _ := options["filter"].(string)
		if name == "" {
			return "", fmt.Errorf("filter option is required")
		}
		return base + "_" + name + ext, nil
	case constants.OpFormatConvert:
		target, _ := options["target_format"].(string)
		if target == "" {
			return "", fmt.Errorf("target_format option is required")
		}
		return base + "." + fileExt(target), nil
	}
	return "", fmt.Errorf("operation %s has no per-file plan", op)
}

// fileExt turns a target format into the extension written on disk.
func fileExt(format string) string {
	ext := constants.NormalizeExt(format)
	if ext == "jpeg" {
		return "jpg"
	}
	return ext
}

// unique appends _2, _3 ... to repeated names, before the extension.
func unique(used map[string]int, name string) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n+1, ext)
}
