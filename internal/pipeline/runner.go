package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"redads-automation/internal/core"
)

const (
	stderrTail = 20
	waitDelay  = 5 * time.Second
)

// Runner invokes the external report-processing pipeline
type Runner struct {
	command   string
	args      []string
	dir       string
	timeout   time.Duration
	waitDelay time.Duration
	logger    *zap.Logger
}

// NewRunner creates a runner. Args are split on whitespace.
func NewRunner(cfg core.PipelineConfig, logger *zap.Logger) *Runner {
	return &Runner{
		command: cfg.Command,
		args:    strings.Fields(cfg.Args),
		dir:     cfg.Dir,
		timeout:   cfg.Timeout,
		waitDelay: waitDelay,
		logger:    logger,
	}
}

// Run executes the pipeline and blocks until it exits. Output lines are
// streamed into the logger; a non-zero exit or a timeout is an error that
// carries the tail of stderr. Output held open by processes the pipeline
// left behind is abandoned after the wait delay.
func (r *Runner) Run(ctx context.Context) error {
	if r.command == "" {
		return errors.New("pipeline command not configured")
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.command, r.args...)
	cmd.Dir = r.dir
	cmd.WaitDelay = r.waitDelay

	// os/exec owns the copy into these writers, so WaitDelay can cut it off
	stdout, stdoutW := io.Pipe()
	stderr, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	r.logger.Info("Running pipeline",
		zap.String("command", r.command),
		zap.Strings("args", r.args),
		zap.String("dir", r.dir),
	)
	started := time.Now()

	if err := cmd.Start(); err != nil {
		stdoutW.Close()
		stderrW.Close()
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	tail := &lineTail{max: stderrTail}
	var streams errgroup.Group
	streams.Go(func() error { return r.stream(stdout, "stdout", nil) })
	streams.Go(func() error { return r.stream(stderr, "stderr", tail) })

	err := cmd.Wait()
	stdoutW.Close()
	stderrW.Close()
	if serr := streams.Wait(); serr != nil {
		r.logger.Warn("Failed to read pipeline output", zap.Error(serr))
	}
	elapsed := time.Since(started)

	switch {
	case err == nil:
		r.logger.Info("Pipeline finished", zap.Duration("elapsed", elapsed))
		return nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("pipeline timed out after %s: %w", r.timeout, ctx.Err())
	case ctx.Err() != nil:
		return fmt.Errorf("pipeline cancelled: %w", ctx.Err())
	case errors.Is(err, exec.ErrWaitDelay):
		// exited cleanly; a leftover child still held stdout or stderr
		r.logger.Warn("Pipeline output left open by a child process", zap.Duration("elapsed", elapsed))
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("pipeline exited with code %d: %w\n%s", exitErr.ExitCode(), err, tail.String())
	}
	return fmt.Errorf("pipeline failed: %w", err)
}

func (r *Runner) stream(pipe io.Reader, name string, tail *lineTail) error {
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if tail != nil {
			tail.add(line)
		}
		r.logger.Info("Pipeline output", zap.String("stream", name), zap.String("line", line))
	}
	if err := scanner.Err(); err != nil {
		// keep draining so the writer side never blocks
		_, _ = io.Copy(io.Discard, pipe)
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// lineTail keeps the last max lines written to it
type lineTail struct {
	max   int
	lines []string
}

func (t *lineTail) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *lineTail) String() string {
	return strings.Join(t.lines, "\n")
}
