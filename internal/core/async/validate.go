package async

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
	"github.com/joseph-ayodele/docbatch/internal/core/backend"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

// validate checks every job and returns all failures at once.
func (s *Scheduler) validate(spec entity.BatchSpec) error {
	v := common.NewValidator()
	v.Merge("", common.ValidateStruct(spec))

	for i, js := range spec.Jobs {
		s.validateJob(v, fmt.Sprintf("jobs[%d]", i), js)
	}
	return v.Error()
}

func (s *Scheduler) validateJob(v *common.Validator, field string, js entity.JobSpec) {
	op, ok := constants.ParseOperation(string(js.Operation))
	if !ok {
		if js.Operation != "" {
			v.Add(field+".operation", js.Operation, "unknown operation")
		}
		return
	}
	b, ok := s.registry.Lookup(op)
	if !ok {
		v.Add(field+".operation", op, "no backend registered")
		return
	}
	js.Operation = op

	arity := op.Arity()
	if !arity.Allows(len(js.Inputs)) {
		v.Add(field+".inputs", len(js.Inputs), "%s", arityMessage(arity))
	}
	for i, in := range js.Inputs {
		checkInput(v, fmt.Sprintf("%s.inputs[%d]", field, i), in)
	}
	if js.Output != "" {
		checkOutput(v, field+".output", js.Output, op.WritesDirectory())
		out := filepath.Clean(js.Output)
		for _, in := range js.Inputs {
			if in != "" && filepath.Clean(in) == out {
				v.Add(field+".output", js.Output, "must not overwrite an input")
				break
			}
		}
	}

	v.Merge(field, s.registry.ValidateOptions(op, js.Options))
	if c, ok := b.(backend.JobChecker); ok {
		v.Merge(field, c.CheckJob(js))
	}
}

func arityMessage(a constants.Arity) string {
	switch {
	case a.Max == constants.Unbounded:
		return fmt.Sprintf("requires at least %d input(s)", a.Min)
	case a.Min == a.Max:
		return fmt.Sprintf("requires exactly %d input(s)", a.Min)
	default:
		return fmt.Sprintf("requires between %d and %d inputs", a.Min, a.Max)
	}
}

func checkInput(v *common.Validator, field, path string) {
	if path == "" {
		v.Field(field, path, common.Required)
		return
	}
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		v.Add(field, path, "does not exist")
		return
	case err != nil:
		v.Add(field, path, "cannot be accessed: %v", err)
		return
	case info.IsDir():
		v.Add(field, path, "is a directory")
		return
	}
	f, err := os.Open(path)
	if err != nil {
		v.Add(field, path, "is not readable: %v", err)
		return
	}
	_ = f.Close()
}

// checkOutput requires a writable parent. Directory outputs may already
// exist as a directory.
func checkOutput(v *common.Validator, field, path string, isDir bool) {
	if info, err := os.Stat(path); err == nil {
		if isDir && !info.IsDir() {
			v.Add(field, path, "exists and is not a directory")
			return
		}
		if !isDir && info.IsDir() {
			v.Add(field, path, "is a directory")
			return
		}
		if isDir {
			checkWritable(v, field, path)
			return
		}
	}
	parent := filepath.Dir(path)
	info, err := os.Stat(parent)
	if err != nil || !info.IsDir() {
		v.Add(field, path, "parent directory %s does not exist", parent)
		return
	}
	checkWritable(v, field, parent)
}

func checkWritable(v *common.Validator, field, dir string) {
	f, err := os.CreateTemp(dir, ".docbatch-probe-*")
	if err != nil {
		v.Add(field, dir, "is not writable: %v", err)
		return
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
}

// buildJobs freezes the specs into Jobs. Inputs and options are copied so
// later changes by the caller are not observed.
func buildJobs(batchID uuid.UUID, specs []entity.JobSpec) []entity.Job {
	jobs := make([]entity.Job, len(specs))
	for i, js := range specs {
		op, _ := constants.ParseOperation(string(js.Operation))
		jobs[i] = entity.Job{
			ID:        uuid.New(),
			BatchID:   batchID,
			Seq:       i,
			Operation: op,
			Inputs:    slices.Clone(js.Inputs),
			Output:    js.Output,
			Options:   cloneOptions(js.Options),
		}
	}
	return jobs
}

func cloneOptions(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return in
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return in
	}
	return out
}
