// Package ai exposes the text-generation capabilities used for task extraction and summaries.
//
// A Capabilities value is built once at startup and handed to the callers that need it.
// Each capability (prompt, multimodal prompt, summarizer, writer) is independently present or
// absent, and callers are expected to fall back to deterministic behaviour when one is nil.
package ai

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no backend can serve a request.
var ErrUnavailable = errors.New("ai: capability unavailable")

// Availability mirrors the readiness states reported by on-device model runtimes.
type Availability string

const (
	AvailabilityReadily       Availability = "readily"
	AvailabilityAfterDownload Availability = "after-download"
	AvailabilityNo            Availability = "no"
)

// Request is one completion call.
type Request struct {
	System      string
	Prompt      string
	Attachments []Attachment
	Temperature float64
	TopK        int
}

// Backend is the completion service the sessions are built on.
type Backend interface {
	Availability(ctx context.Context) (Availability, error)
	Complete(ctx context.Context, req Request) (string, error)
}

type LanguageModel interface {
	Prompt(ctx context.Context, text string, attachments ...Attachment) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type Writer interface {
	Write(ctx context.Context, text string) (string, error)
}
