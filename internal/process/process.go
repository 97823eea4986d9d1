// Package process wraps child-tool invocation (ffmpeg, ffprobe, a content
// downloader, and the RTMP publisher) behind a small, structured interface,
// generalizing the ad-hoc exec.Command call sites found throughout the
// reference broadcaster into one place that always captures stderr and
// always returns a typed error on non-zero exit.
package process

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/skywavefm/onair/internal/onairerr"
)

// Runner spawns and supervises child processes.
type Runner struct {
	log zerolog.Logger
}

// New builds a Runner logging under the given component logger.
func New(log zerolog.Logger) *Runner {
	return &Runner{log: log}
}

// Run executes program with args, waits for completion, and returns the
// captured stdout. On non-zero exit, returns an *onairerr.ProcessError
// carrying the captured stderr.
func (r *Runner) Run(ctx context.Context, program string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.log.Debug().
		Str("program", program).
		Strs("args", args).
		Dur("elapsed", time.Since(start)).
		Err(err).
		Msg("child process finished")

	if err != nil {
		exitCode := -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return nil, &onairerr.ProcessError{
			Program:  program,
			Args:     args,
			ExitCode: exitCode,
			Stderr:   stderr.String(),
			Err:      err,
		}
	}
	return stdout.Bytes(), nil
}

// Handle is a running, long-lived child process with a readable stdout
// pipe, used for the RTMP publisher and per-clip transcode subprocesses.
type Handle struct {
	cmd    *exec.Cmd
	Stdout io.ReadCloser

	mu   sync.Mutex
	done bool
	err  error
}

// Spawn starts program with args and returns a Handle whose Stdout can be
// read by the caller (used to pipe transcoded PCM into the sink FIFO).
// Stderr is logged line-by-line asynchronously.
func (r *Runner) Spawn(ctx context.Context, program string, args ...string) (*Handle, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("spawn %s: stdout pipe: %w", program, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("spawn %s: stderr pipe: %w", program, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, &onairerr.ProcessError{Program: program, Args: args, ExitCode: -1, Err: err}
	}

	h := &Handle{cmd: cmd, Stdout: stdout}
	go r.drainStderr(program, stderr)
	return h, nil
}

func (r *Runner) drainStderr(program string, stderr io.ReadCloser) {
	sc := bufio.NewScanner(stderr)
	for sc.Scan() {
		r.log.Debug().Str("program", program).Str("stderr", sc.Text()).Msg("child stderr")
	}
	// A line longer than the scanner's buffer stops Scan; keep draining so
	// the child never blocks on a full stderr pipe.
	_, _ = io.Copy(io.Discard, stderr)
}

// Wait blocks until the process exits, returning a ProcessError on non-zero
// exit (or the raw wait error on anything else).
func (h *Handle) Wait() error {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.done = true
	h.err = err
	h.mu.Unlock()
	if err == nil {
		return nil
	}
	exitCode := -1
	if ee, ok := err.(*exec.ExitError); ok {
		exitCode = ee.ExitCode()
	}
	return &onairerr.ProcessError{
		Program:  h.cmd.Path,
		Args:     h.cmd.Args,
		ExitCode: exitCode,
		Err:      err,
	}
}

// Terminate sends SIGTERM and, if the process has not exited within grace,
// sends SIGKILL.
func (h *Handle) Terminate(grace time.Duration) {
	if h.cmd.Process == nil {
		return
	}
	_ = h.cmd.Process.Signal(syscall.SIGTERM)

	timer := time.NewTimer(grace)
	defer timer.Stop()

	exited := make(chan struct{})
	go func() {
		_ = h.cmd.Wait()
		close(exited)
	}()

	select {
	case <-exited:
	case <-timer.C:
		_ = h.cmd.Process.Kill()
	}
}

// ExitCode returns the last known exit code, or -1 if the process has not
// finished or exited abnormally without a code.
func (h *Handle) ExitCode() int {
	if h.cmd.ProcessState == nil {
		return -1
	}
	return h.cmd.ProcessState.ExitCode()
}

// Resolve looks up a named binary on PATH, returning a DependencyMissing
// error with the given hint when it cannot be found.
func Resolve(name, hint string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", &onairerr.DependencyMissing{Name: name, Hint: hint}
	}
	return path, nil
}
