package backend

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

// writePNG writes a w x h gradient image.
func writePNG(t *testing.T, path string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 90, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

// writePDF builds a PDF with one page per generated image.
func writePDF(t *testing.T, path string, pages int) string {
	t.Helper()
	dir := t.TempDir()
	inputs := make([]string, pages)
	for i := range inputs {
		inputs[i] = writePNG(t, filepath.Join(dir, "p"+string(rune('a'+i))+".png"), 40, 30)
	}
	_, err := NewImageToPDF(nil).Execute(context.Background(), job(constants.OpImageToPDF, path, nil, inputs...), nil)
	require.NoError(t, err)
	return path
}

func job(op constants.Operation, output string, options map[string]any, inputs ...string) entity.Job {
	return entity.Job{
		ID:        uuid.New(),
		BatchID:   uuid.New(),
		Operation: op,
		Inputs:    inputs,
		Output:    output,
		Options:   options,
	}
}

// requireNoStage fails when a staging directory was left behind in dir.
func requireNoStage(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasPrefix(e.Name(), ".docbatch-"), "staging dir %s left behind", e.Name())
	}
}

// recorder collects progress fractions.
type recorder struct {
	seen []float64
}

func (r *recorder) fn() ProgressFunc {
	return func(f float64) { r.seen = append(r.seen, f) }
}
