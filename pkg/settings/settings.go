// Package settings owns the singleton Settings record in the local store.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harrisonrobin/gsd/pkg/model"
	"github.com/harrisonrobin/gsd/pkg/store"
)

type Service struct {
	store store.Store
}

func New(s store.Store) *Service {
	return &Service{store: s}
}

// Load returns the stored settings. Keys missing from the stored record keep their defaults,
// and an absent record yields DefaultSettings.
func (s *Service) Load(ctx context.Context) (model.Settings, error) {
	cfg := model.DefaultSettings()
	raw, err := s.store.Get(ctx, store.KeySettings)
	if errors.Is(err, store.ErrNotFound) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return model.DefaultSettings(), fmt.Errorf("failed to decode settings: %w", err)
	}
	return cfg, nil
}

// Seed writes the defaults if no settings record exists. It reports whether it wrote anything.
func (s *Service) Seed(ctx context.Context) (bool, error) {
	seeded := false
	err := store.UpdateJSON(ctx, s.store, store.KeySettings, func(v *model.Settings, exists bool) error {
		if exists {
			return store.ErrNoChange
		}
		*v = model.DefaultSettings()
		seeded = true
		return nil
	})
	return seeded, err
}

// Update applies fn to the current settings and stores the result.
func (s *Service) Update(ctx context.Context, fn func(*model.Settings) error) (model.Settings, error) {
	var out model.Settings
	err := s.store.Update(ctx, store.KeySettings, func(current []byte) ([]byte, error) {
		cfg := model.DefaultSettings()
		if current != nil {
			if err := json.Unmarshal(current, &cfg); err != nil {
				return nil, fmt.Errorf("failed to decode settings: %w", err)
			}
		}
		if err := fn(&cfg); err != nil {
			return nil, err
		}
		if cfg.DefaultDuration <= 0 {
			cfg.DefaultDuration = model.DefaultDurationMinutes
		}
		out = cfg
		return json.Marshal(cfg)
	})
	return out, err
}

// Merge overlays the JSON object patch onto the stored settings.
func (s *Service) Merge(ctx context.Context, patch json.RawMessage) (model.Settings, error) {
	return s.Update(ctx, func(cfg *model.Settings) error {
		if err := json.Unmarshal(patch, cfg); err != nil {
			return fmt.Errorf("invalid settings: %w", err)
		}
		return nil
	})
}

// Reset wipes the whole store and reseeds default settings.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	if err := store.SetJSON(ctx, s.store, store.KeyTasks, []model.Task{}); err != nil {
		return err
	}
	return store.SetJSON(ctx, s.store, store.KeySettings, model.DefaultSettings())
}
