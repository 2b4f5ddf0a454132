package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docbatch/constants"
)

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestListFiles(t *testing.T) {
	root := t.TempDir()
	b := touch(t, filepath.Join(root, "b.PDF"))
	a := touch(t, filepath.Join(root, "a.png"))
	nested := touch(t, filepath.Join(root, "sub", "c.jpg"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, ".hidden.png"))
	touch(t, filepath.Join(root, ".cache", "d.png"))

	files, stats, err := ListFiles(root, nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, nested}, files)
	assert.Equal(t, uint32(4), stats.Scanned)
	assert.Equal(t, uint32(3), stats.Matched)

	pdfs, _, err := ListFiles(root, constants.PDFExtensions, false)
	require.NoError(t, err)
	assert.Equal(t, []string{b}, pdfs)

	all, _, err := ListFiles(root, nil, false)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestListFilesErrors(t *testing.T) {
	_, _, err := ListFiles(" ", nil, true)
	assert.Error(t, err)
	_, _, err = ListFiles(filepath.Join(t.TempDir(), "missing"), nil, true)
	assert.Error(t, err)
}

func TestPlanMultiInput(t *testing.T) {
	files := []string{"/in/a.pdf", "/in/b.pdf"}
	specs, err := Plan(constants.OpMerge, files, "/out", nil)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, files, specs[0].Inputs)
	assert.Equal(t, filepath.Join("/out", "merged.pdf"), specs[0].Output)

	specs, err = Plan(constants.OpPDFToWord, files, "/out", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/out", "document.docx"), specs[0].Output)
}

func TestPlanPerFile(t *testing.T) {
	tests := []struct {
		op      constants.Operation
		options map[string]any
		want    []string
	}{
		{op: constants.OpSplit, want: []string{"a_pages", "a_pages_2"}},
		{op: constants.OpPDFToImages, want: []string{"a_images", "a_images_2"}},
		{op: constants.OpResize, options: map[string]any{"width": 10}, want: []string{"a_resized.png", "a_resized_2.png"}},
		{op: constants.OpFilter, options: map[string]any{"filter": "sepia"}, want: []string{"a_sepia.png", "a_sepia_2.png"}},
		{op: constants.OpFormatConvert, options: map[string]any{"target_format": "JPEG"}, want: []string{"a.jpg", "a_2.jpg"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			specs, err := Plan(tt.op, []string{"/x/a.png", "/y/a.png"}, "/out", tt.options)
			require.NoError(t, err)
			require.Len(t, specs, 2)
			for i, s := range specs {
				assert.Equal(t, filepath.Join("/out", tt.want[i]), s.Output)
				assert.Len(t, s.Inputs, 1)
				assert.Equal(t, tt.options, s.Options)
			}
		})
	}
}

func TestPlanErrors(t *testing.T) {
	_, err := Plan(constants.OpResize, nil, "/out", nil)
	assert.Error(t, err)
	_, err = Plan(constants.OpFilter, []string{"a.png"}, "/out", nil)
	assert.Error(t, err)
	_, err = Plan(constants.OpFormatConvert, []string{"a.png"}, "/out", map[string]any{})
	assert.Error(t, err)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/a/.b"))
	assert.False(t, IsHidden("/a/b.png"))
}

func receive(t *testing.T, ch <-chan string, n int) []string {
	t.Helper()
	var got []string
	timeout := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case p, ok := <-ch:
			require.True(t, ok, "channel closed early")
			got = append(got, p)
		case <-timeout:
			t.Fatalf("timed out after %d of %d paths: %v", len(got), n, got)
		}
	}
	return got
}

func TestWatcherInitialScanAndEvents(t *testing.T) {
	root := t.TempDir()
	existing := touch(t, filepath.Join(root, "existing.pdf"))
	out := filepath.Join(root, "out")
	require.NoError(t, os.Mkdir(out, 0o755))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, errs, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		Debounce:    20 * time.Millisecond,
		Ignore:      func(p string) bool { return strings.HasPrefix(p, out) },
	})
	require.NoError(t, err)
	require.NotNil(t, errs)

	assert.Equal(t, []string{existing}, receive(t, events, 1))

	touch(t, filepath.Join(out, "ignored.pdf"))
	touch(t, filepath.Join(root, ".tmp.pdf"))
	touch(t, filepath.Join(root, "skip.txt"))
	added := touch(t, filepath.Join(root, "new.png"))
	assert.Equal(t, []string{added}, receive(t, events, 1))

	cancel()
	for range events {
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}})
	require.NoError(t, err)

	sub := filepath.Join(root, "incoming")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// give the watcher a moment to register the new directory
	time.Sleep(100 * time.Millisecond)
	added := touch(t, filepath.Join(sub, "scan.pdf"))

	got := receive(t, events, 1)
	assert.Equal(t, added, got[0])
}

func TestWatcherNoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	assert.Error(t, err)
}
