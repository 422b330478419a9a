// Package jobs runs the periodic background work: the end-of-day summary and AI re-probing.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/harrisonrobin/gsd/pkg/ai"
	"github.com/harrisonrobin/gsd/pkg/store"
)

// Summarizer produces the daily work summary for the day containing ref.
type Summarizer interface {
	DailySummary(ctx context.Context, ref time.Time) (string, error)
}

// LastSummary is what the summary job stores under store.KeyLastSummary.
type LastSummary struct {
	Date        string    `json:"date"`
	Summary     string    `json:"summary"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type Scheduler struct {
	cron       *cron.Cron
	store      store.Store
	summarizer Summarizer
	caps       *ai.Capabilities
	log        logrus.FieldLogger
	now        func() time.Time
	timeout    time.Duration
}

type Option func(*Scheduler)

func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.cron = cron.New(cron.WithLocation(loc))
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(st store.Store, summarizer Summarizer, caps *ai.Capabilities, log logrus.FieldLogger, opts ...Option) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Scheduler{
		cron:       cron.New(),
		store:      st,
		summarizer: summarizer,
		caps:       caps,
		log:        log.WithField("component", "jobs"),
		now:        time.Now,
		timeout:    time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers both jobs. An empty spec leaves that job unscheduled.
func (s *Scheduler) Schedule(summarySpec, probeSpec string) error {
	if summarySpec != "" {
		if _, err := s.cron.AddFunc(summarySpec, func() { s.RunSummary(context.Background()) }); err != nil {
			return fmt.Errorf("error scheduling summary job %q: %w", summarySpec, err)
		}
		s.log.Infof("Daily summary scheduled: %s", summarySpec)
	}
	if probeSpec != "" && s.caps != nil {
		if _, err := s.cron.AddFunc(probeSpec, func() { s.RunProbe(context.Background()) }); err != nil {
			return fmt.Errorf("error scheduling AI probe %q: %w", probeSpec, err)
		}
		s.log.Infof("AI availability probe scheduled: %s", probeSpec)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("Warning: timed out waiting for running jobs")
	}
}

// RunSummary generates today's summary and stores it. Failures are logged.
func (s *Scheduler) RunSummary(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	text, err := s.summarizer.DailySummary(ctx, now)
	if err != nil {
		s.log.WithError(err).Error("Daily summary failed")
		return
	}
	last := LastSummary{Date: now.Format("2006-01-02"), Summary: text, GeneratedAt: now}
	if err := store.SetJSON(ctx, s.store, store.KeyLastSummary, last); err != nil {
		s.log.WithError(err).Error("Failed to store daily summary")
		return
	}
	s.log.WithField("date", last.Date).Info("Daily summary stored")
}

// RunProbe retries session creation for any AI capability that is still missing.
func (s *Scheduler) RunProbe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	st := s.caps.Init(ctx)
	s.log.WithFields(logrus.Fields{
		"available":  st.Available,
		"multimodal": st.HasMultimodal,
	}).Debug("AI capabilities probed")
}

// Last returns the most recently stored summary, if any.
func Last(ctx context.Context, st store.Store) (LastSummary, bool, error) {
	var last LastSummary
	ok, err := store.GetJSON(ctx, st, store.KeyLastSummary, &last)
	return last, ok, err
}
