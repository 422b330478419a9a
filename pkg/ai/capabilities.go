package ai

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	multimodalSystemPrompt = "You are a task extraction assistant. Extract actionable tasks from images and audio with deadlines, priorities, and context."
	summarizerSystemPrompt = "Summarize the text you are given as a few short key points. Reply in plain text only."
	writerSystemPrompt     = "You are a professional writer. Use a formal tone, plain text, and a medium length."

	noBackendMessage = "No completion service configured. Set ai.base_url and ai.model."
)

type Options struct {
	Temperature float64
	TopK        int

	DisablePrompt     bool
	DisableMultimodal bool
	DisableSummarizer bool
	DisableWriter     bool
}

// Status is the capability report returned to the UI.
type Status struct {
	Available     bool   `json:"available"`
	HasPrompt     bool   `json:"hasPrompt"`
	HasSummarizer bool   `json:"hasSummarizer"`
	HasWriter     bool   `json:"hasWriter"`
	HasMultimodal bool   `json:"hasMultimodal"`
	Error         string `json:"error,omitempty"`
}

// Capabilities holds the session handles. A nil *Capabilities behaves as if nothing is available.
type Capabilities struct {
	backend Backend
	opts    Options
	log     logrus.FieldLogger

	mu         sync.RWMutex
	prompt     LanguageModel
	multimodal LanguageModel
	summarizer Summarizer
	writer     Writer
	lastErr    string
}

func NewCapabilities(backend Backend, opts Options, log logrus.FieldLogger) *Capabilities {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Capabilities{backend: backend, opts: opts, log: log.WithField("component", "ai")}
}

// Init creates every session that is not yet initialized. It is safe to call repeatedly;
// failures are logged and leave the corresponding handle nil.
func (c *Capabilities) Init(ctx context.Context) Status {
	if c == nil {
		return Status{Error: noBackendMessage}
	}
	if c.backend == nil {
		st := c.Status()
		if !st.Available {
			st.Error = noBackendMessage
		}
		return st
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.prompt != nil && c.multimodal != nil && c.summarizer != nil && c.writer != nil {
		return c.statusLocked()
	}

	c.log.Debug("[AI Init] Checking completion service availability...")
	availability, err := c.backend.Availability(ctx)
	if err != nil {
		c.log.Warnf("[AI Init] Completion service availability check failed: %v", err)
		c.lastErr = err.Error()
		return c.statusLocked()
	}
	if availability != AvailabilityReadily {
		c.log.Infof("[AI Init] Completion service not readily available (%s)", availability)
		c.lastErr = "Language model is not ready (" + string(availability) + ")."
		return c.statusLocked()
	}
	c.lastErr = ""

	if c.prompt == nil && !c.opts.DisablePrompt {
		c.prompt = &promptSession{backend: c.backend, temperature: c.opts.Temperature, topK: c.opts.TopK}
	}
	if c.multimodal == nil && !c.opts.DisableMultimodal {
		c.multimodal = &promptSession{backend: c.backend, system: multimodalSystemPrompt, temperature: c.opts.Temperature, topK: c.opts.TopK}
	}
	if c.summarizer == nil && !c.opts.DisableSummarizer {
		c.summarizer = &summarizerSession{backend: c.backend}
	}
	if c.writer == nil && !c.opts.DisableWriter {
		c.writer = &writerSession{backend: c.backend}
	}

	st := c.statusLocked()
	c.log.WithFields(logrus.Fields{
		"prompt":     st.HasPrompt,
		"multimodal": st.HasMultimodal,
		"summarizer": st.HasSummarizer,
		"writer":     st.HasWriter,
	}).Info("[AI Init] Initialization complete")
	return st
}

func (c *Capabilities) statusLocked() Status {
	st := Status{
		HasPrompt:     c.prompt != nil,
		HasSummarizer: c.summarizer != nil,
		HasWriter:     c.writer != nil,
		HasMultimodal: c.multimodal != nil,
		Error:         c.lastErr,
	}
	st.Available = st.HasPrompt || st.HasSummarizer || st.HasWriter || st.HasMultimodal
	return st
}

// Status reports the current handles without attempting initialization.
func (c *Capabilities) Status() Status {
	if c == nil {
		return Status{Error: noBackendMessage}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.statusLocked()
}

func (c *Capabilities) Prompt() LanguageModel {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prompt
}

func (c *Capabilities) Multimodal() LanguageModel {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.multimodal
}

func (c *Capabilities) Summarizer() Summarizer {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.summarizer
}

func (c *Capabilities) Writer() Writer {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.writer
}

// Static builds Capabilities from fixed handles, bypassing the backend. Any handle may be nil.
func Static(prompt, multimodal LanguageModel, summarizer Summarizer, writer Writer) *Capabilities {
	return &Capabilities{
		log:        logrus.StandardLogger().WithField("component", "ai"),
		prompt:     prompt,
		multimodal: multimodal,
		summarizer: summarizer,
		writer:     writer,
	}
}

type promptSession struct {
	backend     Backend
	system      string
	temperature float64
	topK        int
}

func (s *promptSession) Prompt(ctx context.Context, text string, attachments ...Attachment) (string, error) {
	return s.backend.Complete(ctx, Request{
		System:      s.system,
		Prompt:      text,
		Attachments: attachments,
		Temperature: s.temperature,
		TopK:        s.topK,
	})
}

type summarizerSession struct {
	backend Backend
}

func (s *summarizerSession) Summarize(ctx context.Context, text string) (string, error) {
	return s.backend.Complete(ctx, Request{System: summarizerSystemPrompt, Prompt: text, Temperature: 0.2})
}

type writerSession struct {
	backend Backend
}

func (s *writerSession) Write(ctx context.Context, text string) (string, error) {
	return s.backend.Complete(ctx, Request{System: writerSystemPrompt, Prompt: text, Temperature: 0.7})
}
