package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harrisonrobin/gsd/pkg/ai"
	"github.com/harrisonrobin/gsd/pkg/store"
)

type fixedSummarizer struct {
	text string
	err  error
	refs []time.Time
}

func (f *fixedSummarizer) DailySummary(ctx context.Context, ref time.Time) (string, error) {
	f.refs = append(f.refs, ref)
	return f.text, f.err
}

type probeBackend struct {
	availability ai.Availability
	calls        int
}

func (b *probeBackend) Availability(ctx context.Context) (ai.Availability, error) {
	b.calls++
	return b.availability, nil
}

func (b *probeBackend) Complete(ctx context.Context, r ai.Request) (string, error) {
	return "", errors.New("not used")
}

func fixedClock() time.Time {
	return time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)
}

func TestRunSummaryStoresResult(t *testing.T) {
	st := store.NewMemory()
	sum := &fixedSummarizer{text: "Daily Work Summary - 5/4/2026"}
	s := New(st, sum, nil, nil, WithClock(fixedClock))

	s.RunSummary(context.Background())

	last, ok, err := Last(context.Background(), st)
	if err != nil || !ok {
		t.Fatalf("Last() = %v, %v", ok, err)
	}
	if last.Date != "2026-05-04" || last.Summary != sum.text {
		t.Errorf("stored summary = %+v", last)
	}
	if len(sum.refs) != 1 || !sum.refs[0].Equal(fixedClock()) {
		t.Errorf("summarizer called with %v", sum.refs)
	}
}

func TestRunSummaryFailureKeepsPrevious(t *testing.T) {
	st := store.NewMemory()
	prev := LastSummary{Date: "2026-05-03", Summary: "yesterday"}
	if err := store.SetJSON(context.Background(), st, store.KeyLastSummary, prev); err != nil {
		t.Fatal(err)
	}
	s := New(st, &fixedSummarizer{err: errors.New("boom")}, nil, nil, WithClock(fixedClock))

	s.RunSummary(context.Background())

	last, _, _ := Last(context.Background(), st)
	if last.Summary != "yesterday" {
		t.Errorf("summary overwritten: %+v", last)
	}
}

func TestRunProbeInitializesLateBackend(t *testing.T) {
	backend := &probeBackend{availability: ai.AvailabilityAfterDownload}
	caps := ai.NewCapabilities(backend, ai.Options{}, nil)
	s := New(store.NewMemory(), &fixedSummarizer{}, caps, nil)

	s.RunProbe(context.Background())
	if caps.Prompt() != nil {
		t.Fatal("prompt session created while backend was not ready")
	}

	backend.availability = ai.AvailabilityReadily
	s.RunProbe(context.Background())
	if caps.Prompt() == nil {
		t.Error("prompt session missing after backend became ready")
	}
	if backend.calls != 2 {
		t.Errorf("availability checked %d times, want 2", backend.calls)
	}
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	s := New(store.NewMemory(), &fixedSummarizer{}, nil, nil)
	if err := s.Schedule("not a cron spec", ""); err == nil {
		t.Error("expected an error for an invalid schedule")
	}
	if err := s.Schedule("0 18 * * *", "@every 10m"); err != nil {
		t.Errorf("Schedule: %v", err)
	}
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
