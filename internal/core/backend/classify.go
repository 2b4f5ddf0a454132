package backend

import (
	"context"
	"errors"
	"image"
	"io/fs"
	"os/exec"
	"strings"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
)

// classifyIO maps filesystem errors onto failure kinds.
func classifyIO(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, fs.ErrPermission):
		return common.NewFailure(constants.FailureInsufficientPermissions, msg, err)
	}
	return common.NewFailure(constants.FailureIO, msg, err)
}

// classifyDecode maps image and PDF reader errors onto failure kinds.
func classifyDecode(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, fs.ErrPermission), errors.Is(err, fs.ErrNotExist):
		return classifyIO(err, msg)
	case errors.Is(err, image.ErrFormat):
		return common.NewFailure(constants.FailureUnsupportedFormat, msg, err)
	}
	if _, ok := common.AsFailure(err); ok {
		return err
	}
	return common.NewFailure(constants.FailureCorruptInput, msg, err)
}

// Exit codes shared by the poppler utilities.
const (
	popplerInputError      = 1
	popplerOutputError     = 2
	popplerPermissionError = 3
)

// classifyExec maps external tool errors onto failure kinds. Inputs reach a
// tool only after they parsed, so an unrecognized failure counts as IO.
func classifyExec(err error, tool string, stderr []byte) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, exec.ErrNotFound):
		return common.NewFailure(constants.FailureInternal, tool+" is not installed", err)
	}

	code := -1
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		code = ee.ExitCode()
	}
	detail := strings.TrimSpace(string(stderr))
	switch {
	case code == popplerPermissionError, strings.Contains(detail, "Permission denied"):
		return common.NewFailure(constants.FailureInsufficientPermissions, tool+" was denied access", err)
	case code == popplerInputError:
		return common.NewFailure(constants.FailureCorruptInput, tool+" could not read the input", err)
	case code == popplerOutputError:
		return common.NewFailure(constants.FailureIO, tool+" could not write its output", err)
	}
	return common.NewFailure(constants.FailureIO, tool+" failed", err)
}
