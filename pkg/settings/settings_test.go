package settings

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/harrisonrobin/gsd/pkg/model"
	"github.com/harrisonrobin/gsd/pkg/store"
)

func TestLoadDefaultsWhenAbsent(t *testing.T) {
	svc := New(store.NewMemory())
	cfg, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg != model.DefaultSettings() {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	// Older records carry only these three fields.
	if err := s.Set(ctx, store.KeySettings, []byte(`{"calendarEnabled":true,"defaultDuration":45,"aiEnabled":false}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	cfg, err := New(s).Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AIEnabled || !cfg.CalendarEnabled || cfg.DefaultDuration != 45 {
		t.Errorf("Stored fields not applied: %+v", cfg)
	}
	if !cfg.GoogleSyncEnabled {
		t.Errorf("Expected googleSyncEnabled to default to true")
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := New(store.NewMemory())

	seeded, err := svc.Seed(ctx)
	if err != nil || !seeded {
		t.Fatalf("first Seed: seeded=%v err=%v", seeded, err)
	}
	if _, err := svc.Update(ctx, func(c *model.Settings) error {
		c.AIEnabled = false
		return nil
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	seeded, err = svc.Seed(ctx)
	if err != nil || seeded {
		t.Fatalf("second Seed: seeded=%v err=%v", seeded, err)
	}
	cfg, _ := svc.Load(ctx)
	if cfg.AIEnabled {
		t.Error("Seed overwrote existing settings")
	}
}

func TestMergeAndReset(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	svc := New(s)

	cfg, err := svc.Merge(ctx, json.RawMessage(`{"selectedCalendarId":"cal-1","defaultDuration":0}`))
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if cfg.SelectedCalendarID != "cal-1" {
		t.Errorf("Expected selectedCalendarId cal-1, got %q", cfg.SelectedCalendarID)
	}
	if cfg.DefaultDuration != model.DefaultDurationMinutes {
		t.Errorf("Expected non-positive duration to be reset, got %d", cfg.DefaultDuration)
	}

	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	cfg, _ = svc.Load(ctx)
	if cfg != model.DefaultSettings() {
		t.Errorf("Expected defaults after reset, got %+v", cfg)
	}
	raw, err := s.Get(ctx, store.KeyTasks)
	if err != nil || string(raw) != "[]" {
		t.Errorf("Expected empty task list after reset, got %s (%v)", raw, err)
	}
}
