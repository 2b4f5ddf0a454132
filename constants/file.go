package constants

import (
	"path/filepath"
	"strings"
)

// PDFExtensions are the extensions PDF operations accept (lowercase, no dot).
var PDFExtensions = map[string]struct{}{
	"pdf": {},
}

// ImageExtensions are the extensions image operations accept.
var ImageExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
	"bmp":  {},
	"tif":  {},
	"tiff": {},
	"webp": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsPDF reports whether path has a PDF extension.
func IsPDF(path string) bool {
	_, ok := PDFExtensions[NormalizeExt(filepath.Ext(path))]
	return ok
}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	_, ok := ImageExtensions[NormalizeExt(filepath.Ext(path))]
	return ok
}

// InputExtensions returns the extension set an operation reads.
func InputExtensions(op Operation) map[string]struct{} {
	if op.AcceptsPDF() {
		return PDFExtensions
	}
	return ImageExtensions
}
