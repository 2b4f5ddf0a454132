package backend

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"time"

	"github.com/joseph-ayodele/docbatch/internal/common"
)

// stderrLogLimit caps how much tool output lands in a single log record.
const stderrLogLimit = 8 << 10

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, logger *slog.Logger, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec. The process is killed when ctx ends.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, logger *slog.Logger, args ...string) ([]byte, []byte, error) {
	log := common.LoggerFrom(ctx, logger).With("tool", name)
	log.Debug("tool.start", "args", args)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	began := time.Now()
	err := cmd.Run()
	elapsed := time.Since(began).Milliseconds()

	if ctx.Err() != nil {
		log.Debug("tool.killed", "duration_ms", elapsed)
		return stdout.Bytes(), stderr.Bytes(), ctx.Err()
	}
	if err != nil {
		exit := -1
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			exit = ee.ExitCode()
		}
		log.Error("tool.failed", "duration_ms", elapsed, "exit_code", exit, "error", err,
			"stderr", truncate(stderr.String(), stderrLogLimit))
		return stdout.Bytes(), stderr.Bytes(), err
	}
	log.Debug("tool.done", "duration_ms", elapsed, "stdout_bytes", stdout.Len())
	return stdout.Bytes(), stderr.Bytes(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
