// Package syncer mirrors local tasks to Google Calendar and Google Tasks.
//
// Both sides are called concurrently and fail independently. Outcomes are reported as a
// model.SyncResult; nothing here returns an error to the caller.
package syncer

import (
	"context"
	"fmt"

	"github.com/harrisonrobin/gsd/pkg/google"
	"github.com/harrisonrobin/gsd/pkg/model"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/tasks/v1"
)

type CalendarAPI interface {
	CreateEvent(ctx context.Context, calendarID string, t model.Task) (*calendar.Event, error)
	SyncEvent(ctx context.Context, calendarID, eventID string, t model.Task) (*calendar.Event, error)
	UpdateEventStatus(ctx context.Context, calendarID, eventID string, st model.Status) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

type TasksAPI interface {
	CreateTask(ctx context.Context, listID string, t model.Task) (*tasks.Task, error)
	SyncTask(ctx context.Context, listID, remoteID string, t model.Task) (*tasks.Task, error)
	UpdateTaskStatus(ctx context.Context, listID, remoteID string, st model.Status) (*tasks.Task, error)
	DeleteTask(ctx context.Context, listID, remoteID string) error
}

// Services builds API clients for the signed-in account.
type Services interface {
	Calendar(ctx context.Context) (CalendarAPI, error)
	Tasks(ctx context.Context) (TasksAPI, error)
}

// SignInChecker is the part of the auth adapter sync depends on.
type SignInChecker interface {
	IsSignedIn(ctx context.Context) bool
}

type Syncer struct {
	auth     SignInChecker
	services Services
	log      logrus.FieldLogger
}

func New(auth SignInChecker, services Services, log logrus.FieldLogger) *Syncer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Syncer{auth: auth, services: services, log: log.WithField("component", "sync")}
}

// ready reports whether sync should run at all: enabled in settings and signed in.
func (s *Syncer) ready(ctx context.Context, cfg model.Settings, log logrus.FieldLogger) bool {
	if !cfg.GoogleSyncEnabled {
		log.Debug("Google sync disabled in settings, skipping")
		return false
	}
	if !s.auth.IsSignedIn(ctx) {
		log.Info("Not authenticated with Google, skipping sync")
		return false
	}
	return true
}

func calendarSelected(cfg model.Settings) bool {
	return cfg.CalendarEnabled && cfg.SelectedCalendarID != ""
}

// fanOut runs the calendar and task-list halves concurrently and returns each side's error.
// A failing side never cancels the other, so both errors are kept; Wait only says whether
// either side failed.
func fanOut(log logrus.FieldLogger, calendarSide, taskSide func() error) (calendarErr, taskErr error) {
	var g errgroup.Group
	if calendarSide != nil {
		g.Go(func() error {
			calendarErr = calendarSide()
			return calendarErr
		})
	}
	if taskSide != nil {
		g.Go(func() error {
			taskErr = taskSide()
			return taskErr
		})
	}
	if err := g.Wait(); err != nil {
		if calendarErr != nil {
			log.Warnf("Warning: calendar side failed: %v", calendarErr)
		}
		if taskErr != nil {
			log.Warnf("Warning: task-list side failed: %v", taskErr)
		}
	}
	return calendarErr, taskErr
}

// Sync creates the remote counterparts of a newly saved task.
func (s *Syncer) Sync(ctx context.Context, t model.Task, cfg model.Settings) model.SyncResult {
	log := s.log.WithFields(logrus.Fields{"operation": "sync", "task_id": t.ID})
	var res model.SyncResult
	if !s.ready(ctx, cfg, log) {
		return res
	}

	var calendarSide func() error
	if calendarSelected(cfg) {
		res.CalendarAttempted = true
		calendarSide = func() error {
			cal, err := s.services.Calendar(ctx)
			if err != nil {
				return err
			}
			ev, err := cal.CreateEvent(ctx, cfg.SelectedCalendarID, t)
			if err != nil {
				return err
			}
			res.CalendarEventID = ev.Id
			log.Infof("Calendar event created: %s", ev.Id)
			return nil
		}
	}

	res.TaskAttempted = true
	taskSide := func() error {
		tc, err := s.services.Tasks(ctx)
		if err != nil {
			return err
		}
		rt, err := tc.CreateTask(ctx, cfg.TaskListID(), t)
		if err != nil {
			return err
		}
		res.RemoteTaskID = rt.Id
		log.Infof("Google Task created: %s", rt.Id)
		return nil
	}

	res.CalendarErr, res.TaskErr = fanOut(log, calendarSide, taskSide)
	return res
}

// PushStatus updates the status markers of the remote counterparts that exist.
func (s *Syncer) PushStatus(ctx context.Context, t model.Task, cfg model.Settings) model.SyncResult {
	log := s.log.WithFields(logrus.Fields{"operation": "push_status", "task_id": t.ID, "status": t.Status})
	var res model.SyncResult
	if !t.HasRemote() || !s.ready(ctx, cfg, log) {
		return res
	}

	var calendarSide, taskSide func() error
	if t.GoogleCalendarID != "" && cfg.SelectedCalendarID != "" {
		res.CalendarAttempted = true
		calendarSide = func() error {
			cal, err := s.services.Calendar(ctx)
			if err != nil {
				return err
			}
			if _, err := cal.UpdateEventStatus(ctx, cfg.SelectedCalendarID, t.GoogleCalendarID, t.Status); err != nil {
				return err
			}
			res.CalendarEventID = t.GoogleCalendarID
			return nil
		}
	}
	if t.GoogleTaskID != "" {
		res.TaskAttempted = true
		taskSide = func() error {
			tc, err := s.services.Tasks(ctx)
			if err != nil {
				return err
			}
			if _, err := tc.UpdateTaskStatus(ctx, cfg.TaskListID(), t.GoogleTaskID, t.Status); err != nil {
				return err
			}
			res.RemoteTaskID = t.GoogleTaskID
			return nil
		}
	}

	res.CalendarErr, res.TaskErr = fanOut(log, calendarSide, taskSide)
	return res
}

// Resync pushes the task's current content, creating whichever side is missing.
func (s *Syncer) Resync(ctx context.Context, t model.Task, cfg model.Settings) model.SyncResult {
	log := s.log.WithFields(logrus.Fields{"operation": "resync", "task_id": t.ID})
	var res model.SyncResult
	if !s.ready(ctx, cfg, log) {
		return res
	}

	var calendarSide func() error
	if calendarSelected(cfg) {
		res.CalendarAttempted = true
		calendarSide = func() error {
			cal, err := s.services.Calendar(ctx)
			if err != nil {
				return err
			}
			ev, err := cal.SyncEvent(ctx, cfg.SelectedCalendarID, t.GoogleCalendarID, t)
			if err != nil {
				return err
			}
			res.CalendarEventID = ev.Id
			return nil
		}
	}

	res.TaskAttempted = true
	taskSide := func() error {
		tc, err := s.services.Tasks(ctx)
		if err != nil {
			return err
		}
		rt, err := tc.SyncTask(ctx, cfg.TaskListID(), t.GoogleTaskID, t)
		if err != nil {
			return err
		}
		res.RemoteTaskID = rt.Id
		return nil
	}

	res.CalendarErr, res.TaskErr = fanOut(log, calendarSide, taskSide)
	return res
}

// Remove deletes the remote counterparts. Failures are logged and otherwise ignored.
func (s *Syncer) Remove(ctx context.Context, t model.Task, cfg model.Settings) {
	log := s.log.WithFields(logrus.Fields{"operation": "remove", "task_id": t.ID})
	if !t.HasRemote() || !s.ready(ctx, cfg, log) {
		return
	}

	var calendarSide, taskSide func() error
	if t.GoogleCalendarID != "" && cfg.SelectedCalendarID != "" {
		calendarSide = func() error {
			cal, err := s.services.Calendar(ctx)
			if err != nil {
				return err
			}
			if err := cal.DeleteEvent(ctx, cfg.SelectedCalendarID, t.GoogleCalendarID); err != nil {
				return fmt.Errorf("could not delete calendar event %s: %w", t.GoogleCalendarID, err)
			}
			return nil
		}
	}
	if t.GoogleTaskID != "" {
		taskSide = func() error {
			tc, err := s.services.Tasks(ctx)
			if err != nil {
				return err
			}
			if err := tc.DeleteTask(ctx, cfg.TaskListID(), t.GoogleTaskID); err != nil {
				return fmt.Errorf("could not delete Google Task %s: %w", t.GoogleTaskID, err)
			}
			return nil
		}
	}
	fanOut(log, calendarSide, taskSide)
}

// FromConnector adapts a google.Connector to Services.
func FromConnector(c *google.Connector) Services {
	return connector{c}
}

type connector struct {
	c *google.Connector
}

func (c connector) Calendar(ctx context.Context) (CalendarAPI, error) {
	cal, err := c.c.Calendar(ctx)
	if err != nil {
		return nil, err
	}
	return cal, nil
}

func (c connector) Tasks(ctx context.Context) (TasksAPI, error) {
	tc, err := c.c.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	return tc, nil
}
