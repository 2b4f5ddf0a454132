package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/docbatch/constants"
)

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32
}

// ListFiles walks root and returns the sorted regular files whose extension
// is in exts (normalized, without the dot). Unreadable entries are skipped
// and counted.
func ListFiles(root string, exts map[string]struct{}, skipHidden bool) ([]string, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}
	if len(exts) == 0 {
		exts = allInputExts()
	}

	var files []string
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			stats.Skipped++
			return nil // continue walking
		}
		if path != root && skipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		// only files
		if !d.Type().IsRegular() {
			return nil
		}
		stats.Scanned++
		if !allowed(path, exts) {
			return nil
		}
		stats.Matched++
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("walk: %w", err)
	}
	sort.Strings(files)
	return files, stats, nil
}

func allInputExts() map[string]struct{} {
	out := make(map[string]struct{}, len(constants.PDFExtensions)+len(constants.ImageExtensions))
	for e := range constants.PDFExtensions {
		out[e] = struct{}{}
	}
	for e := range constants.ImageExtensions {
		out[e] = struct{}{}
	}
	return out
}
