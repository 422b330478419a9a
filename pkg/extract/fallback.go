package extract

import (
	"strings"
	"time"

	"github.com/harrisonrobin/gsd/pkg/model"
)

const (
	maxFallbackRunes = 100

	textFallbackMinutes  = 30
	imageFallbackMinutes = 15
	audioFallbackMinutes = 10

	voiceNotesProject = "Voice Notes"
	untitledTask      = "Untitled task"
	recordedAtLayout  = "Jan 2, 2006 3:04 PM"
)

// Truncate shortens s to 100 characters, appending "..." when something was cut.
func Truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxFallbackRunes {
		return s
	}
	return string(r[:maxFallbackRunes]) + "..."
}

func projectFromContext(c model.CaptureContext, otherwise string) string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	return otherwise
}

// FallbackText is the deterministic record for a text capture.
func FallbackText(text string, c model.CaptureContext) model.Task {
	summary := Truncate(text)
	if strings.TrimSpace(summary) == "" {
		summary = untitledTask
	}
	return model.Task{
		Task:              summary,
		Priority:          model.PriorityMedium,
		EstimatedDuration: textFallbackMinutes,
		Project:           projectFromContext(c, model.GeneralProject),
		Tags:              []string{},
		Source:            model.SourceFallback,
		OriginalText:      text,
		Context:           c,
	}
}

// FallbackImage is the deterministic record for a screenshot capture.
func FallbackImage(imageDataURL string, c model.CaptureContext) model.Task {
	desc := "Review screenshot"
	if t := strings.TrimSpace(c.Title); t != "" {
		desc += " from " + t
	}
	return model.Task{
		Task:              desc,
		Priority:          model.PriorityMedium,
		EstimatedDuration: imageFallbackMinutes,
		Project:           projectFromContext(c, model.GeneralProject),
		Tags:              []string{"screenshot"},
		Source:            model.SourceFallback,
		ImageDataURL:      imageDataURL,
		Context:           c,
	}
}

// FallbackAudio is the deterministic record for a voice memo.
func FallbackAudio(recordedAt time.Time, c model.CaptureContext) model.Task {
	return model.Task{
		Task:              "Review voice memo from " + recordedAt.Format(recordedAtLayout),
		Priority:          model.PriorityMedium,
		EstimatedDuration: audioFallbackMinutes,
		Project:           projectFromContext(c, voiceNotesProject),
		Tags:              []string{"audio", "voice-memo"},
		Source:            model.SourceFallback,
		Context:           c,
	}
}
