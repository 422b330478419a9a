package ai

import (
	"context"
	"errors"
	"testing"
)

type fakeBackend struct {
	availability Availability
	err          error
	checks       int
	lastRequest  Request
}

func (f *fakeBackend) Availability(ctx context.Context) (Availability, error) {
	f.checks++
	return f.availability, f.err
}

func (f *fakeBackend) Complete(ctx context.Context, req Request) (string, error) {
	f.lastRequest = req
	return "reply", nil
}

func TestInitCreatesSessionsOnce(t *testing.T) {
	backend := &fakeBackend{availability: AvailabilityReadily}
	caps := NewCapabilities(backend, Options{Temperature: 0.7, TopK: 3}, nil)

	st := caps.Init(context.Background())
	if !st.Available || !st.HasPrompt || !st.HasMultimodal || !st.HasSummarizer || !st.HasWriter {
		t.Fatalf("Expected all capabilities, got %+v", st)
	}
	caps.Init(context.Background())
	if backend.checks != 1 {
		t.Errorf("Expected a single availability check, got %d", backend.checks)
	}

	if _, err := caps.Multimodal().Prompt(context.Background(), "look"); err != nil {
		t.Fatalf("Prompt failed: %v", err)
	}
	if backend.lastRequest.System != multimodalSystemPrompt || backend.lastRequest.TopK != 3 {
		t.Errorf("Unexpected multimodal request %+v", backend.lastRequest)
	}
}

func TestInitLeavesHandlesNilWhenNotReady(t *testing.T) {
	backend := &fakeBackend{availability: AvailabilityAfterDownload}
	caps := NewCapabilities(backend, Options{}, nil)

	st := caps.Init(context.Background())
	if st.Available || caps.Prompt() != nil {
		t.Errorf("Expected nothing available, got %+v", st)
	}
	if st.Error == "" {
		t.Error("Expected a remediation message")
	}

	backend.availability = AvailabilityReadily
	if st := caps.Init(context.Background()); !st.HasPrompt {
		t.Errorf("Expected prompt after model became ready, got %+v", st)
	}
}

func TestInitSurvivesBackendError(t *testing.T) {
	caps := NewCapabilities(&fakeBackend{err: errors.New("connection refused")}, Options{}, nil)
	st := caps.Init(context.Background())
	if st.Available || st.Error != "connection refused" {
		t.Errorf("Unexpected status %+v", st)
	}
}

func TestDisabledCapabilities(t *testing.T) {
	caps := NewCapabilities(&fakeBackend{availability: AvailabilityReadily}, Options{DisableWriter: true}, nil)
	st := caps.Init(context.Background())
	if st.HasWriter || caps.Writer() != nil {
		t.Error("Expected writer to stay disabled")
	}
}

func TestNilCapabilities(t *testing.T) {
	var caps *Capabilities
	if caps.Prompt() != nil || caps.Writer() != nil {
		t.Error("Expected nil handles")
	}
	if st := caps.Init(context.Background()); st.Available {
		t.Error("Expected unavailable status")
	}
}
