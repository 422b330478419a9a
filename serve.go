package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/gsd/pkg/jobs"
	"github.com/harrisonrobin/gsd/pkg/server"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local service the browser extension talks to",
		Long: `Run the local capture service.

The extension posts runtime messages to /api/message. Tasks are stored locally and
mirrored to Google Calendar and Google Tasks in the background once you have signed in
with "gsd auth".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if addr == "" {
					addr = a.cfg.Server.Addr
				}
				return runServe(ctx, a, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context, a *app, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.tasks.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate tasks: %w", err)
	}
	go func() {
		st := a.ai.Init(ctx)
		if !st.Available {
			a.log.Infof("AI not available yet: %s", st.Error)
		}
	}()

	scheduler := jobs.New(a.store, a.tasks, a.ai, a.log, jobs.WithLocation(a.loc))
	if err := scheduler.Schedule(a.cfg.Jobs.SummarySchedule, a.cfg.Jobs.AIProbeSchedule); err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		scheduler.Stop(stopCtx)
	}()

	srv := server.New(server.Deps{
		Store:     a.store,
		Tasks:     a.tasks,
		Extractor: a.extractor,
		Settings:  a.settings,
		AI:        a.ai,
		Auth:      a.auth,
		Directory: a.google,
	}, server.Options{
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		Log:            a.log,
	})
	return srv.Run(ctx, addr)
}
