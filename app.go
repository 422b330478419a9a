package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harrisonrobin/gsd/pkg/ai"
	"github.com/harrisonrobin/gsd/pkg/auth"
	"github.com/harrisonrobin/gsd/pkg/config"
	"github.com/harrisonrobin/gsd/pkg/extract"
	"github.com/harrisonrobin/gsd/pkg/google"
	"github.com/harrisonrobin/gsd/pkg/settings"
	"github.com/harrisonrobin/gsd/pkg/store"
	"github.com/harrisonrobin/gsd/pkg/syncer"
	"github.com/harrisonrobin/gsd/pkg/tasks"
)

// app is the wired set of components shared by the commands.
type app struct {
	cfg       *config.Config
	log       *logrus.Logger
	loc       *time.Location
	store     store.Store
	settings  *settings.Service
	ai        *ai.Capabilities
	extractor *extract.Extractor
	auth      *auth.Authenticator
	google    *google.Connector
	tasks     *tasks.Manager
}

func newApp(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*app, error) {
	loc := time.Local
	if cfg.Google.TimeZone != "" {
		l, err := time.LoadLocation(cfg.Google.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("invalid google.time_zone: %w", err)
		}
		loc = l
	}

	if cfg.Storage.Driver != "memory" {
		if err := config.EnsureDir(cfg.Storage.Path); err != nil {
			return nil, err
		}
	}
	st, err := store.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	cfgSvc := settings.New(st)
	if seeded, err := cfgSvc.Seed(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to seed settings: %w", err)
	} else if seeded {
		log.Info("Default settings created")
	}

	var backend ai.Backend
	if cfg.AI.BaseURL != "" {
		backend = ai.NewOpenAIClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.VisionModel, cfg.AI.Timeout)
	} else {
		log.Warn("Warning: ai.base_url is not set, captures will use basic extraction")
	}
	caps := ai.NewCapabilities(backend, ai.Options{Temperature: cfg.AI.Temperature, TopK: cfg.AI.TopK}, log)

	authenticator := auth.New(auth.Options{
		CredentialsFile: cfg.Google.CredentialsFile,
		TokenFile:       cfg.Google.TokenFile,
		AuthPort:        cfg.Google.AuthPort,
		Log:             log,
	})
	conn := google.NewConnector(authenticator, cfg.Google.TimeZone)
	mirror := syncer.New(authenticator, syncer.FromConnector(conn), log)

	return &app{
		cfg:       cfg,
		log:       log,
		loc:       loc,
		store:     st,
		settings:  cfgSvc,
		ai:        caps,
		extractor: extract.New(caps, cfgSvc, log, extract.WithTimeout(cfg.AI.Timeout), extract.WithLocation(loc)),
		auth:      authenticator,
		google:    conn,
		tasks: tasks.New(st, cfgSvc, log,
			tasks.WithMirror(mirror),
			tasks.WithCapabilities(caps),
			tasks.WithCompletionTimeout(cfg.AI.Timeout),
			tasks.WithLocation(loc)),
	}, nil
}

// Close waits for background syncs and closes the store.
func (a *app) Close() {
	a.tasks.Wait()
	if err := a.store.Close(); err != nil {
		a.log.Warnf("Warning: failed to close store: %v", err)
	}
}

// withApp loads the configuration, wires the components and runs fn.
func withApp(fn func(ctx context.Context, a *app) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
