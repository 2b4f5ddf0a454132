package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

type stubBackend struct {
	op     constants.Operation
	schema string
}

func (s stubBackend) Operation() constants.Operation { return s.op }
func (s stubBackend) Schema() string                 { return s.schema }
func (stubBackend) Execute(context.Context, entity.Job, ProgressFunc) (Result, error) {
	return Result{}, nil
}

func TestDefaultsRegistersEveryOperation(t *testing.T) {
	reg, err := Defaults(common.ToolsConfig{}, nil, nil)
	require.NoError(t, err)

	assert.ElementsMatch(t, constants.Operations(), reg.Operations())
	for _, op := range constants.Operations() {
		b, ok := reg.Lookup(op)
		require.True(t, ok, op)
		assert.Equal(t, op, b.Operation())
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(stubBackend{op: constants.OpMerge}, stubBackend{op: constants.OpMerge})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "REGISTRY_ERROR", appErr.Code)
}

func TestNewRegistryRejectsUnknownOperation(t *testing.T) {
	_, err := NewRegistry(stubBackend{op: "rotate"})
	require.Error(t, err)
}

func TestNewRegistryRejectsBadSchema(t *testing.T) {
	_, err := NewRegistry(stubBackend{op: constants.OpMerge, schema: `{"type": 12}`})
	require.Error(t, err)
}

func TestValidateOptions(t *testing.T) {
	reg, err := Defaults(common.ToolsConfig{}, nil, nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		op      constants.Operation
		options map[string]any
		field   string
	}{
		{name: "resize ok", op: constants.OpResize, options: map[string]any{"width": 100, "height": 50}},
		{name: "resize missing height", op: constants.OpResize, options: map[string]any{"width": 100}, field: "options"},
		{name: "resize zero width", op: constants.OpResize, options: map[string]any{"width": 0, "height": 50}, field: "options.width"},
		{name: "resize unknown key", op: constants.OpResize, options: map[string]any{"width": 1, "height": 1, "crop": true}, field: "options"},
		{name: "split nil bag", op: constants.OpSplit},
		{name: "split span", op: constants.OpSplit, options: map[string]any{"span": 0}, field: "options.span"},
		{name: "filter unknown", op: constants.OpFilter, options: map[string]any{"filter": "posterize"}, field: "options.filter"},
		{name: "merge ranges ok", op: constants.OpMerge, options: map[string]any{"page_ranges": []string{"1-3,5", ""}}},
		{name: "merge ranges bad", op: constants.OpMerge, options: map[string]any{"page_ranges": []string{"one"}}, field: "options.page_ranges.0"},
		{name: "render dpi", op: constants.OpPDFToImages, options: map[string]any{"dpi": 10}, field: "options.dpi"},
		{name: "merge page order", op: constants.OpMerge, options: map[string]any{"page_order": []any{3, 1, 1}}},
		{name: "merge page order zero", op: constants.OpMerge, options: map[string]any{"page_order": []any{2, 0}}, field: "options.page_order.1"},
		{name: "convert upper case", op: constants.OpFormatConvert, options: map[string]any{"target_format": "JPEG"}},
		{name: "convert tif", op: constants.OpFormatConvert, options: map[string]any{"target_format": "Tif"}},
		{name: "convert webp", op: constants.OpFormatConvert, options: map[string]any{"target_format": "webp"}, field: "options.target_format"},
		{name: "convert angle", op: constants.OpFormatConvert, options: map[string]any{"target_format": "png", "angle": 90.5}},
		{name: "convert angle range", op: constants.OpFormatConvert, options: map[string]any{"target_format": "png", "angle": 400}, field: "options.angle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.ValidateOptions(tt.op, tt.options)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrValidation))
			ves, ok := common.AsValidationErrors(err)
			require.True(t, ok)
			require.NotEmpty(t, ves)
			assert.Equal(t, tt.field, ves[0].Field)
		})
	}
}

func TestMergeCheckJob(t *testing.T) {
	m := NewMerge(nil)
	spec := entity.JobSpec{
		Operation: constants.OpMerge,
		Inputs:    []string{"a.pdf", "b.pdf"},
		Output:    "out.pdf",
		Options:   map[string]any{"page_ranges": []any{"1-2"}},
	}
	err := m.CheckJob(spec)
	require.Error(t, err)
	ves, ok := common.AsValidationErrors(err)
	require.True(t, ok)
	assert.Equal(t, "options.page_ranges", ves[0].Field)

	spec.Options = map[string]any{"page_ranges": []any{"1-2", "3-1"}}
	ves, ok = common.AsValidationErrors(m.CheckJob(spec))
	require.True(t, ok)
	assert.Equal(t, "options.page_ranges.1", ves[0].Field)

	spec.Options = map[string]any{"page_ranges": []any{"1-2", ""}}
	assert.NoError(t, m.CheckJob(spec))
}

func TestFormatConvertCheckJob(t *testing.T) {
	c := NewFormatConvert()
	ok := entity.JobSpec{Output: "x.JPEG", Options: map[string]any{"target_format": "jpg"}}
	assert.NoError(t, c.CheckJob(ok))

	upper := entity.JobSpec{Output: "x.jpg", Options: map[string]any{"target_format": "JPEG"}}
	assert.NoError(t, c.CheckJob(upper))

	bad := entity.JobSpec{Output: "x.png", Options: map[string]any{"target_format": "jpeg"}}
	ves, isVal := common.AsValidationErrors(c.CheckJob(bad))
	require.True(t, isVal)
	assert.Equal(t, "output", ves[0].Field)
}

func TestImageBackendsCheckOutputExtension(t *testing.T) {
	for _, c := range []JobChecker{NewResize(), NewFilter()} {
		assert.NoError(t, c.CheckJob(entity.JobSpec{Output: "out.png"}))
		assert.Error(t, c.CheckJob(entity.JobSpec{Output: "out.webp"}))
	}
}
