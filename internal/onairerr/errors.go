// Package onairerr defines the typed error taxonomy shared across the
// broadcast core so callers can branch on error kind with errors.As
// instead of string matching.
package onairerr

import "fmt"

// DependencyMissing is returned when a required external binary cannot be
// resolved on PATH or at a configured location.
type DependencyMissing struct {
	Name string
	Hint string
}

func (e *DependencyMissing) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("dependency missing: %s (%s)", e.Name, e.Hint)
	}
	return fmt.Sprintf("dependency missing: %s", e.Name)
}

// ProcessError wraps a non-zero exit from a child tool invocation.
type ProcessError struct {
	Program  string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s exited %d: %s", e.Program, e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// RenderError is returned when the timeline renderer fails to produce a mix.
type RenderError struct {
	Op  string
	Err error
}

func (e *RenderError) Error() string { return fmt.Sprintf("render %s: %v", e.Op, e.Err) }
func (e *RenderError) Unwrap() error { return e.Err }

// TtsError is returned for transport-level failures talking to the TTS endpoint.
type TtsError struct {
	Err error
}

func (e *TtsError) Error() string { return fmt.Sprintf("tts request failed: %v", e.Err) }
func (e *TtsError) Unwrap() error { return e.Err }

// TtsUnsupportedPayload is returned when a TTS JSON response carries none of
// the recognized audio-bearing keys.
type TtsUnsupportedPayload struct {
	KeysSeen []string
}

func (e *TtsUnsupportedPayload) Error() string {
	return fmt.Sprintf("tts response has no recognized audio payload, keys seen: %v", e.KeysSeen)
}

// CommentaryError is returned when the chat-completion call fails or returns
// an empty completion.
type CommentaryError struct {
	Err error
}

func (e *CommentaryError) Error() string { return fmt.Sprintf("commentary generation failed: %v", e.Err) }
func (e *CommentaryError) Unwrap() error { return e.Err }

// CatalogInvalid is returned when the catalog file is missing, malformed, or empty.
type CatalogInvalid struct {
	Path   string
	Reason string
}

func (e *CatalogInvalid) Error() string {
	return fmt.Sprintf("catalog %s invalid: %s", e.Path, e.Reason)
}

// QueueMiss is returned when a queue mutation targets an unknown segment ID.
type QueueMiss struct {
	ID string
}

func (e *QueueMiss) Error() string { return fmt.Sprintf("queue: no such segment %q", e.ID) }

// SchedulerRebuildError is returned when the scheduler cannot recompute the timeline.
type SchedulerRebuildError struct {
	Err error
}

func (e *SchedulerRebuildError) Error() string { return fmt.Sprintf("scheduler rebuild failed: %v", e.Err) }
func (e *SchedulerRebuildError) Unwrap() error { return e.Err }

// PublisherExited is returned when the RTMP ingest child process ends
// unexpectedly.
type PublisherExited struct {
	ExitCode int
}

func (e *PublisherExited) Error() string {
	return fmt.Sprintf("rtmp publisher exited with code %d", e.ExitCode)
}
