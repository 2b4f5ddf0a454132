package backend

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
)

// stage is a private scratch directory next to a job's declared output.
// Backends write everything into it and only rename into place on success,
// so the declared path never holds a partial artifact.
type stage struct {
	dir string
}

// newStage creates the scratch directory beside output. Nothing is created
// at output itself until a commit succeeds.
func newStage(output string) (*stage, error) {
	dir, err := os.MkdirTemp(filepath.Dir(output), ".docbatch-")
	if err != nil {
		return nil, classifyIO(err, "create staging directory")
	}
	return &stage{dir: dir}, nil
}

// Path returns a path inside the stage.
func (s *stage) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Commit moves a staged file to dst, replacing anything already there.
func (s *stage) Commit(staged, dst string) error {
	if err := os.Rename(staged, dst); err != nil {
		return classifyIO(err, fmt.Sprintf("move %s into place", filepath.Base(dst)))
	}
	return nil
}

// Cleanup removes the stage and everything left in it.
func (s *stage) Cleanup() {
	_ = os.RemoveAll(s.dir)
}

// commitDir publishes staged files as the contents of dir, keeping their
// base names. A missing dir is assembled inside the stage and renamed into
// place in one step. An existing dir receives the files one by one, and the
// ones already moved are removed again if a later move fails.
func (s *stage) commitDir(staged []string, dir string) ([]string, error) {
	out := make([]string, len(staged))
	for i, p := range staged {
		out[i] = filepath.Join(dir, filepath.Base(p))
	}

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		assembled := s.Path(".out")
		if err := os.Mkdir(assembled, 0o755); err != nil {
			return nil, classifyIO(err, "create output directory")
		}
		for _, p := range staged {
			if err := os.Rename(p, filepath.Join(assembled, filepath.Base(p))); err != nil {
				return nil, classifyIO(err, "assemble output directory")
			}
		}
		if err := s.Commit(assembled, dir); err != nil {
			return nil, err
		}
		return out, nil
	}

	for i, p := range staged {
		if err := s.Commit(p, out[i]); err != nil {
			for _, done := range out[:i] {
				_ = os.Remove(done)
			}
			return nil, err
		}
	}
	return out, nil
}

// requireInput fails early with a typed failure when path cannot be read.
func requireInput(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return classifyIO(err, "open input "+filepath.Base(path))
	}
	_ = f.Close()
	return nil
}

// requireExt rejects inputs whose extension is outside exts.
func requireExt(path string, exts map[string]struct{}) error {
	ext := constants.NormalizeExt(filepath.Ext(path))
	if _, ok := exts[ext]; !ok {
		return common.Failuref(constants.FailureUnsupportedFormat, "%s: unsupported file type %q", filepath.Base(path), ext)
	}
	return nil
}
