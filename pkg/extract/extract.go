// Package extract turns captured text, screenshots and voice memos into task records.
//
// Extraction never fails: every error path (AI disabled, no session, timeout, unparseable
// reply, empty result) ends in a deterministic fallback record.
package extract

import (
	"context"
	"strings"
	"time"

	"github.com/harrisonrobin/gsd/pkg/ai"
	"github.com/harrisonrobin/gsd/pkg/model"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds each completion call.
const DefaultTimeout = 8 * time.Second

type SettingsSource interface {
	Load(ctx context.Context) (model.Settings, error)
}

type Extractor struct {
	caps     *ai.Capabilities
	settings SettingsSource
	log      logrus.FieldLogger
	timeout  time.Duration
	loc      *time.Location
	now      func() time.Time
}

type Option func(*Extractor)

func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(e *Extractor) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

func New(caps *ai.Capabilities, settings SettingsSource, log logrus.FieldLogger, opts ...Option) *Extractor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &Extractor{
		caps:     caps,
		settings: settings,
		log:      log.WithField("component", "extract"),
		timeout:  DefaultTimeout,
		loc:      time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// rawTask is the loosely typed shape the model is asked to produce.
type rawTask struct {
	Task              string `json:"task"`
	Priority          string `json:"priority"`
	EstimatedDuration any    `json:"estimatedDuration"`
	Deadline          any    `json:"deadline"`
	Project           string `json:"project"`
	Tags              any    `json:"tags"`
}

type rawReply struct {
	rawTask
	Transcription string    `json:"transcription"`
	Tasks         []rawTask `json:"tasks"`
}

func (e *Extractor) loadSettings(ctx context.Context) model.Settings {
	if e.settings == nil {
		return model.DefaultSettings()
	}
	s, err := e.settings.Load(ctx)
	if err != nil {
		e.log.Warnf("Warning: could not load settings, assuming defaults: %v", err)
		return model.DefaultSettings()
	}
	return s
}

// session returns the requested handle, initializing capabilities once if it is missing.
func (e *Extractor) session(ctx context.Context, pick func(*ai.Capabilities) ai.LanguageModel) ai.LanguageModel {
	return lazyHandle(ctx, e.caps, pick)
}

// lazyHandle returns pick(caps), running caps.Init first when the handle is not there yet.
func lazyHandle[T comparable](ctx context.Context, caps *ai.Capabilities, pick func(*ai.Capabilities) T) T {
	var none T
	if h := pick(caps); h != none {
		return h
	}
	if caps == nil {
		return none
	}
	caps.Init(ctx)
	return pick(caps)
}

func (e *Extractor) prompt(ctx context.Context, lm ai.LanguageModel, text string, attachments ...ai.Attachment) (rawReply, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reply, err := lm.Prompt(ctx, text, attachments...)
	if err != nil {
		return rawReply{}, err
	}
	var parsed rawReply
	if err := DecodeJSONObject(reply, &parsed); err != nil {
		return rawReply{}, err
	}
	return parsed, nil
}

func (e *Extractor) normalize(r rawTask, c model.CaptureContext, source model.Source, cfg model.Settings) (model.Task, bool) {
	desc := strings.TrimSpace(r.Task)
	if desc == "" {
		return model.Task{}, false
	}
	t := model.Task{
		Task:     desc,
		Priority: model.NormalizePriority(r.Priority),
		Project:  strings.TrimSpace(r.Project),
		Source:   source,
		Context:  c,
	}
	if t.Project == "" {
		t.Project = projectFromContext(c, model.GeneralProject)
	}

	minutes, err := model.CoerceMinutes(r.EstimatedDuration)
	if err != nil {
		minutes = cfg.DefaultDuration
		if minutes <= 0 {
			minutes = model.DefaultDurationMinutes
		}
	}
	t.EstimatedDuration = minutes

	if deadline, err := model.CoerceDeadline(r.Deadline, e.loc); err != nil {
		e.log.Debugf("dropping unparseable deadline %v: %v", r.Deadline, err)
	} else {
		t.Deadline = deadline
	}

	tags, err := model.CoerceTags(r.Tags)
	if err != nil {
		tags = []string{}
	}
	t.Tags = tags
	return t, true
}

// FromText extracts a single task from highlighted or typed text.
func (e *Extractor) FromText(ctx context.Context, text string, c model.CaptureContext) model.Task {
	log := e.log.WithField("modality", "text")
	cfg := e.loadSettings(ctx)
	if !cfg.AIEnabled {
		log.Debug("AI disabled in settings, using fallback")
		return FallbackText(text, c)
	}

	lm := e.session(ctx, (*ai.Capabilities).Prompt)
	if lm == nil {
		log.Info("No language model session, using fallback")
		return FallbackText(text, c)
	}

	parsed, err := e.prompt(ctx, lm, textPrompt(text, c))
	if err != nil {
		log.Warnf("Task extraction failed, using fallback: %v", err)
		return FallbackText(text, c)
	}
	t, ok := e.normalize(parsed.rawTask, c, model.SourceAI, cfg)
	if !ok {
		log.Warn("Model reply had no task description, using fallback")
		return FallbackText(text, c)
	}
	t.OriginalText = text
	return t
}

// FromImage extracts one or more tasks from a screenshot data URL.
func (e *Extractor) FromImage(ctx context.Context, imageDataURL string, c model.CaptureContext) []model.Task {
	log := e.log.WithField("modality", "image")
	fallback := []model.Task{FallbackImage(imageDataURL, c)}

	cfg := e.loadSettings(ctx)
	if !cfg.AIEnabled {
		return fallback
	}
	lm := e.session(ctx, (*ai.Capabilities).Multimodal)
	if lm == nil {
		log.Info("No multimodal session, using fallback")
		return fallback
	}
	img, err := ai.AttachmentFromDataURL(ai.KindImage, imageDataURL)
	if err != nil {
		log.Warnf("Unreadable screenshot payload, using fallback: %v", err)
		return fallback
	}

	parsed, err := e.prompt(ctx, lm, imagePrompt(c), img)
	if err != nil {
		log.Warnf("Image task extraction failed, using fallback: %v", err)
		return fallback
	}

	var out []model.Task
	for _, r := range parsed.Tasks {
		t, ok := e.normalize(r, c, model.SourceImageAI, cfg)
		if !ok {
			continue
		}
		t.ImageDataURL = imageDataURL
		out = append(out, t)
	}
	if len(out) == 0 {
		log.Info("Model found no tasks in screenshot, using fallback")
		return fallback
	}
	return out
}

// FromAudio extracts one or more tasks from a recorded voice memo data URL.
func (e *Extractor) FromAudio(ctx context.Context, audioDataURL string, c model.CaptureContext) []model.Task {
	log := e.log.WithField("modality", "audio")
	recordedAt := c.Time()
	if recordedAt.IsZero() {
		recordedAt = e.now()
	}
	recordedAt = recordedAt.In(e.loc)
	fallback := []model.Task{FallbackAudio(recordedAt, c)}

	cfg := e.loadSettings(ctx)
	if !cfg.AIEnabled {
		return fallback
	}
	lm := e.session(ctx, (*ai.Capabilities).Multimodal)
	if lm == nil {
		log.Info("No multimodal session, using fallback")
		return fallback
	}
	audio, err := ai.AttachmentFromDataURL(ai.KindAudio, audioDataURL)
	if err != nil {
		log.Warnf("Unreadable audio payload, using fallback: %v", err)
		return fallback
	}

	parsed, err := e.prompt(ctx, lm, audioPrompt(c, recordedAt.Format(recordedAtLayout)), audio)
	if err != nil {
		log.Warnf("Audio task extraction failed, using fallback: %v", err)
		return fallback
	}

	var out []model.Task
	for _, r := range parsed.Tasks {
		t, ok := e.normalize(r, c, model.SourceAudioAI, cfg)
		if !ok {
			continue
		}
		t.Transcription = parsed.Transcription
		out = append(out, t)
	}
	if len(out) == 0 {
		log.Info("Model found no tasks in recording, using fallback")
		return fallback
	}
	return out
}

// Summarize condenses text with the summarizer capability, or truncates it.
func (e *Extractor) Summarize(ctx context.Context, text string) string {
	s := lazyHandle(ctx, e.caps, (*ai.Capabilities).Summarizer)
	if s == nil {
		return Truncate(text)
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	out, err := s.Summarize(ctx, text)
	if err != nil || strings.TrimSpace(out) == "" {
		e.log.Warnf("Summarization failed, truncating: %v", err)
		return Truncate(text)
	}
	return out
}
