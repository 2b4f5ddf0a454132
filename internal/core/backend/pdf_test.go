package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
)

func TestParsePageRange(t *testing.T) {
	tests := []struct {
		spec    string
		total   int
		want    []int
		wantErr bool
	}{
		{spec: "", total: 3, want: []int{1, 2, 3}},
		{spec: "1-3,5", total: 4, want: []int{1, 2, 3}},
		{spec: " 2 , 1-2 ", total: 5, want: []int{1, 2}},
		{spec: "4-6", total: 3, want: []int{}},
		{spec: "3-1", total: 5, wantErr: true},
		{spec: "0", total: 5, wantErr: true},
		{spec: "a-b", total: 5, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParsePageRange(tt.spec, tt.total)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImageToPDF(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.pdf")
	a := writePNG(t, filepath.Join(dir, "a.png"), 30, 20)
	b := writePNG(t, filepath.Join(dir, "b.png"), 20, 30)

	rec := &recorder{}
	res, err := NewImageToPDF(nil).Execute(context.Background(), job(constants.OpImageToPDF, out, nil, a, b), rec.fn())
	require.NoError(t, err)
	assert.Equal(t, out, res.Artifact)
	assert.Equal(t, "2", res.Metadata["pages"])

	n, err := api.PageCountFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotEmpty(t, rec.seen)
	requireNoStage(t, dir)
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	a := writePDF(t, filepath.Join(dir, "a.pdf"), 2)
	b := writePDF(t, filepath.Join(dir, "b.pdf"), 3)

	out := filepath.Join(dir, "merged.pdf")
	_, err := NewMerge(nil).Execute(context.Background(), job(constants.OpMerge, out, nil, a, b), nil)
	require.NoError(t, err)
	n, err := api.PageCountFile(out)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	ranged := filepath.Join(dir, "ranged.pdf")
	opts := map[string]any{"page_ranges": []any{"2", "1-2"}}
	_, err = NewMerge(nil).Execute(context.Background(), job(constants.OpMerge, ranged, opts, a, b), nil)
	require.NoError(t, err)
	n, err = api.PageCountFile(ranged)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	requireNoStage(t, dir)
}

func TestMergePageOrder(t *testing.T) {
	dir := t.TempDir()
	a := writePDF(t, filepath.Join(dir, "a.pdf"), 2)
	b := writePDF(t, filepath.Join(dir, "b.pdf"), 1)

	out := filepath.Join(dir, "reordered.pdf")
	opts := map[string]any{"page_order": []any{3, 1, 1, 2}}
	_, err := NewMerge(nil).Execute(context.Background(), job(constants.OpMerge, out, opts, a, b), nil)
	require.NoError(t, err)
	n, err := api.PageCountFile(out)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	requireNoStage(t, dir)
}

func TestMergePageOrderOutOfRange(t *testing.T) {
	dir := t.TempDir()
	a := writePDF(t, filepath.Join(dir, "a.pdf"), 1)
	b := writePDF(t, filepath.Join(dir, "b.pdf"), 1)
	out := filepath.Join(dir, "reordered.pdf")

	opts := map[string]any{"page_order": []any{1, 3}}
	_, err := NewMerge(nil).Execute(context.Background(), job(constants.OpMerge, out, opts, a, b), nil)
	f, ok := common.AsFailure(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, constants.FailureCorruptInput, f.Kind)
	assert.Contains(t, f.Message, "page 3 is out of range")
	assert.NoFileExists(t, out)
	requireNoStage(t, dir)
}

func TestMergeRangeSelectingNothing(t *testing.T) {
	dir := t.TempDir()
	a := writePDF(t, filepath.Join(dir, "a.pdf"), 1)
	b := writePDF(t, filepath.Join(dir, "b.pdf"), 1)
	out := filepath.Join(dir, "merged.pdf")

	opts := map[string]any{"page_ranges": []any{"5-9", ""}}
	_, err := NewMerge(nil).Execute(context.Background(), job(constants.OpMerge, out, opts, a, b), nil)
	f, ok := common.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, constants.FailureCorruptInput, f.Kind)
	assert.NoFileExists(t, out)
	requireNoStage(t, dir)
}

func TestMergeCorruptInput(t *testing.T) {
	dir := t.TempDir()
	a := writePDF(t, filepath.Join(dir, "a.pdf"), 1)
	bad := filepath.Join(dir, "bad.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("this is not a pdf"), 0o644))
	out := filepath.Join(dir, "merged.pdf")

	_, err := NewMerge(nil).Execute(context.Background(), job(constants.OpMerge, out, nil, a, bad), nil)
	f, ok := common.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, constants.FailureCorruptInput, f.Kind)
	assert.NoFileExists(t, out)
}

func TestMergeWrongExtension(t *testing.T) {
	dir := t.TempDir()
	a := writePDF(t, filepath.Join(dir, "a.pdf"), 1)
	img := writePNG(t, filepath.Join(dir, "b.png"), 4, 4)

	_, err := NewMerge(nil).Execute(context.Background(), job(constants.OpMerge, filepath.Join(dir, "m.pdf"), nil, a, img), nil)
	f, ok := common.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, constants.FailureUnsupportedFormat, f.Kind)
}

func TestSplit(t *testing.T) {
	dir := t.TempDir()
	in := writePDF(t, filepath.Join(dir, "report.pdf"), 3)
	out := filepath.Join(dir, "report_pages")

	res, err := NewSplit(nil).Execute(context.Background(), job(constants.OpSplit, out, nil, in), nil)
	require.NoError(t, err)
	assert.Equal(t, out, res.Artifact)
	require.Len(t, res.Artifacts, 3)
	for i, name := range []string{"report_page_001.pdf", "report_page_002.pdf", "report_page_003.pdf"} {
		assert.Equal(t, filepath.Join(out, name), res.Artifacts[i])
		assert.FileExists(t, res.Artifacts[i])
	}
	requireNoStage(t, out)
}

func TestSplitSpan(t *testing.T) {
	dir := t.TempDir()
	in := writePDF(t, filepath.Join(dir, "doc.pdf"), 4)
	out := filepath.Join(dir, "parts")

	res, err := NewSplit(nil).Execute(context.Background(), job(constants.OpSplit, out, map[string]any{"span": 2}, in), nil)
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 2)
	assert.Equal(t, filepath.Join(out, "doc_pages_001-002.pdf"), res.Artifacts[0])
	assert.Equal(t, filepath.Join(out, "doc_pages_003-004.pdf"), res.Artifacts[1])
}

func TestSplitCancelled(t *testing.T) {
	dir := t.TempDir()
	in := writePDF(t, filepath.Join(dir, "doc.pdf"), 2)
	out := filepath.Join(dir, "parts")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSplit(nil).Execute(ctx, job(constants.OpSplit, out, nil, in), nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, out)
	requireNoStage(t, dir)
}
