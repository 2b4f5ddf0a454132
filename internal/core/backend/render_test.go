package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
)

// fakeRunner pretends to be pdftoppm: it writes <prefix>.<ext> for each call.
type fakeRunner struct {
	mu     sync.Mutex
	calls  [][]string
	err    error
	stderr string
	skip   bool
}

func (f *fakeRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	if f.err != nil {
		return nil, []byte(f.stderr), f.err
	}
	if f.skip {
		return nil, nil, nil
	}
	ext := ".png"
	if args[0] == "-jpeg" {
		ext = ".jpg"
	}
	prefix := args[len(args)-1]
	return nil, nil, os.WriteFile(prefix+ext, []byte("img"), 0o644)
}

// exitError returns the error of a process that exited with code.
func exitError(t *testing.T, code int) error {
	t.Helper()
	err := exec.Command("sh", "-c", fmt.Sprintf("exit %d", code)).Run()
	var ee *exec.ExitError
	require.ErrorAs(t, err, &ee)
	return err
}

func TestPDFToImages(t *testing.T) {
	dir := t.TempDir()
	in := writePDF(t, filepath.Join(dir, "scan.pdf"), 3)
	out := filepath.Join(dir, "scan_images")

	runner := &fakeRunner{}
	rec := &recorder{}
	res, err := NewPDFToImages(runner, "", nil).Execute(context.Background(),
		job(constants.OpPDFToImages, out, map[string]any{"quality": "print"}, in), rec.fn())
	require.NoError(t, err)

	require.Len(t, runner.calls, 3)
	assert.Equal(t, []string{"pdftoppm", "-png", "-r", "150", "-f", "2", "-l", "2", "-singlefile", in}, runner.calls[1][:10])
	assert.Equal(t, map[string]string{"pages": "3", "dpi": "150", "format": "png"}, res.Metadata)
	require.Len(t, res.Artifacts, 3)
	assert.Equal(t, filepath.Join(out, "scan_page_001.png"), res.Artifacts[0])
	for _, a := range res.Artifacts {
		assert.FileExists(t, a)
	}
	assert.IsNonDecreasing(t, rec.seen)
	requireNoStage(t, out)
	requireNoStage(t, dir)
}

func TestPDFToImagesJPEGAndDPI(t *testing.T) {
	dir := t.TempDir()
	in := writePDF(t, filepath.Join(dir, "scan.pdf"), 1)
	out := filepath.Join(dir, "imgs")

	runner := &fakeRunner{}
	res, err := NewPDFToImages(runner, "/opt/bin/pdftoppm", nil).Execute(context.Background(),
		job(constants.OpPDFToImages, out, map[string]any{"format": "jpeg", "quality": "high", "dpi": 96}, in), nil)
	require.NoError(t, err)
	assert.Equal(t, "/opt/bin/pdftoppm", runner.calls[0][0])
	assert.Equal(t, "-jpeg", runner.calls[0][1])
	assert.Equal(t, "96", res.Metadata["dpi"])
	assert.Equal(t, filepath.Join(out, "scan_page_001.jpg"), res.Artifacts[0])
}

func TestPDFToImagesToolFailures(t *testing.T) {
	tests := []struct {
		name   string
		runner *fakeRunner
		kind   constants.FailureKind
	}{
		{name: "not installed", runner: &fakeRunner{err: exec.ErrNotFound}, kind: constants.FailureInternal},
		{name: "unreadable input", runner: &fakeRunner{err: exitError(t, 1)}, kind: constants.FailureCorruptInput},
		{name: "unwritable output", runner: &fakeRunner{err: exitError(t, 2)}, kind: constants.FailureIO},
		{name: "permission exit", runner: &fakeRunner{err: exitError(t, 3)}, kind: constants.FailureInsufficientPermissions},
		{name: "permission stderr", runner: &fakeRunner{err: exitError(t, 99), stderr: "open: Permission denied"}, kind: constants.FailureInsufficientPermissions},
		{name: "other exit", runner: &fakeRunner{err: exitError(t, 99)}, kind: constants.FailureIO},
		{name: "start error", runner: &fakeRunner{err: errors.New("boom")}, kind: constants.FailureIO},
		{name: "no output", runner: &fakeRunner{skip: true}, kind: constants.FailureInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			in := writePDF(t, filepath.Join(dir, "scan.pdf"), 2)
			out := filepath.Join(dir, "imgs")

			_, err := NewPDFToImages(tt.runner, "", nil).Execute(context.Background(), job(constants.OpPDFToImages, out, nil, in), nil)
			f, ok := common.AsFailure(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.kind, f.Kind)

			_, err = os.Stat(out)
			assert.ErrorIs(t, err, fs.ErrNotExist, "output directory created by a failed job")
			requireNoStage(t, dir)
		})
	}
}

func TestPDFToImagesFailureKeepsExistingDirectory(t *testing.T) {
	dir := t.TempDir()
	in := writePDF(t, filepath.Join(dir, "scan.pdf"), 2)
	out := filepath.Join(dir, "imgs")
	require.NoError(t, os.Mkdir(out, 0o755))
	writePNG(t, filepath.Join(out, "keep.png"), 4, 4)

	_, err := NewPDFToImages(&fakeRunner{err: errors.New("boom")}, "", nil).Execute(context.Background(),
		job(constants.OpPDFToImages, out, nil, in), nil)
	require.Error(t, err)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep.png", entries[0].Name())
	requireNoStage(t, dir)
}
