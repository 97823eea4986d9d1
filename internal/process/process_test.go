package process

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/skywavefm/onair/internal/onairerr"
)

func newTestRunner() *Runner {
	return New(zerolog.Nop())
}

func TestRunSuccess(t *testing.T) {
	r := newTestRunner()
	out, err := r.Run(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if string(out) != "hello\n" {
		t.Errorf("Run() output = %q, want %q", out, "hello\n")
	}
}

func TestRunNonZeroExit(t *testing.T) {
	r := newTestRunner()
	_, err := r.Run(context.Background(), "false")
	if err == nil {
		t.Fatal("Run() with `false` should return an error")
	}
	var procErr *onairerr.ProcessError
	if !errors.As(err, &procErr) {
		t.Fatalf("expected a *onairerr.ProcessError, got %T: %v", err, err)
	}
	if procErr.ExitCode == 0 {
		t.Errorf("ExitCode = 0, want non-zero")
	}
}

func TestResolveMissingBinary(t *testing.T) {
	_, err := Resolve("definitely-not-a-real-binary-xyz", "install it")
	if err == nil {
		t.Fatal("Resolve() of a nonexistent binary should fail")
	}
}

func TestSpawnAndWait(t *testing.T) {
	r := newTestRunner()
	h, err := r.Spawn(context.Background(), "sh", "-c", "echo hi")
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	if err := h.Wait(); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if h.ExitCode() != 0 {
		t.Errorf("ExitCode() = %d, want 0", h.ExitCode())
	}
}
