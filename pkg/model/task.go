package model

import (
	"strings"
	"time"
)

// DefaultDurationMinutes is used wherever a task carries no usable estimate.
const DefaultDurationMinutes = 30

// GeneralProject is the project label for tasks captured without a page title.
const GeneralProject = "General"

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// NormalizePriority maps free text onto a known priority, defaulting to medium.
func NormalizePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Source records how a task was produced.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
	SourceImageAI  Source = "image-ai"
	SourceAudioAI  Source = "audio-ai"
)

// CaptureContext is the page metadata recorded when content was captured.
type CaptureContext struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source,omitempty"`
}

// Time returns the capture timestamp, or the zero time if it is missing or malformed.
func (c CaptureContext) Time() time.Time {
	if c.Timestamp == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, c.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Task is the persisted unit of captured work.
type Task struct {
	ID                string         `json:"id"`
	Task              string         `json:"task"`
	Priority          Priority       `json:"priority"`
	EstimatedDuration int            `json:"estimatedDuration"`
	Deadline          *time.Time     `json:"deadline"`
	Project           string         `json:"project"`
	Tags              []string       `json:"tags"`
	Source            Source         `json:"source"`
	OriginalText      string         `json:"originalText,omitempty"`
	ImageDataURL      string         `json:"imageDataUrl,omitempty"`
	Transcription     string         `json:"transcription,omitempty"`
	Context           CaptureContext `json:"context"`
	CreatedAt         time.Time      `json:"createdAt"`
	Status            Status         `json:"status"`
	Order             int64          `json:"order"`

	// Remote linkage, written only from sync results.
	GoogleCalendarID string `json:"googleCalendarId,omitempty"`
	GoogleTaskID     string `json:"googleTaskId,omitempty"`
	SyncedToGoogle   bool   `json:"syncedToGoogle"`
}

// Minutes returns the estimated duration, substituting the default for missing values.
func (t Task) Minutes() int {
	if t.EstimatedDuration > 0 {
		return t.EstimatedDuration
	}
	return DefaultDurationMinutes
}

// Duration is Minutes as a time.Duration.
func (t Task) Duration() time.Duration {
	return time.Duration(t.Minutes()) * time.Minute
}

// HasRemote reports whether any remote counterpart exists.
func (t Task) HasRemote() bool {
	return t.GoogleCalendarID != "" || t.GoogleTaskID != ""
}

// ProjectOrDefault returns the project label, or General when it is blank.
func (t Task) ProjectOrDefault() string {
	if p := strings.TrimSpace(t.Project); p != "" {
		return p
	}
	return GeneralProject
}
