package backend

import (
	"log/slog"

	"github.com/joseph-ayodele/docbatch/internal/common"
)

// Defaults builds the production registry with every operation wired.
func Defaults(cfg common.ToolsConfig, runner Runner, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return NewRegistry(
		NewMerge(logger),
		NewSplit(logger),
		NewPDFToWord(logger),
		NewPDFToImages(runner, cfg.Pdftoppm, logger),
		NewImageToPDF(logger),
		NewResize(),
		NewFormatConvert(),
		NewFilter(),
	)
}
