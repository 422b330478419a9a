// Package tasks manages the task collection in the local store: capture, edits, status,
// ordering, deletion and the daily report.
//
// Every mutation is a read-modify-write of the whole collection through store.UpdateJSON,
// which the store serializes per key. Remote mirroring is fire-and-forget: it starts after the
// local write is durable and its outcome is written back in a later, separate mutation.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harrisonrobin/gsd/pkg/ai"
	"github.com/harrisonrobin/gsd/pkg/model"
	"github.com/harrisonrobin/gsd/pkg/store"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyTask        = errors.New("task description cannot be empty")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrFieldNotEditable = errors.New("field is not editable")
	ErrInvalidValue     = errors.New("invalid value")
	ErrSyncUnavailable  = errors.New("remote sync is not configured")
)

const (
	// syncTimeout bounds one background mirroring round.
	syncTimeout = 30 * time.Second
	// defaultCompletionTimeout bounds each writer call.
	defaultCompletionTimeout = 8 * time.Second
)

// Mirror copies tasks to the remote services. Implementations report failures as data.
type Mirror interface {
	Sync(ctx context.Context, t model.Task, cfg model.Settings) model.SyncResult
	PushStatus(ctx context.Context, t model.Task, cfg model.Settings) model.SyncResult
	Resync(ctx context.Context, t model.Task, cfg model.Settings) model.SyncResult
	Remove(ctx context.Context, t model.Task, cfg model.Settings)
}

type SettingsSource interface {
	Load(ctx context.Context) (model.Settings, error)
}

type Manager struct {
	store    store.Store
	settings SettingsSource
	mirror   Mirror
	caps     *ai.Capabilities
	log      logrus.FieldLogger
	loc      *time.Location
	now      func() time.Time
	timeout  time.Duration

	wg sync.WaitGroup
}

type Option func(*Manager)

// WithMirror enables remote mirroring.
func WithMirror(m Mirror) Option {
	return func(mgr *Manager) { mgr.mirror = m }
}

// WithCapabilities provides the writer used to polish the daily summary.
func WithCapabilities(c *ai.Capabilities) Option {
	return func(mgr *Manager) { mgr.caps = c }
}

// WithCompletionTimeout bounds each call to the writer capability. Non-positive values keep
// the default.
func WithCompletionTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(mgr *Manager) {
		if loc != nil {
			mgr.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(mgr *Manager) { mgr.now = now }
}

func New(s store.Store, settings SettingsSource, log logrus.FieldLogger, opts ...Option) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	m := &Manager{
		store:    s,
		settings: settings,
		log:      log.WithField("component", "tasks"),
		loc:      time.Local,
		now:      time.Now,
		timeout:  defaultCompletionTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Wait blocks until every background sync started so far has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) loadSettings(ctx context.Context) model.Settings {
	cfg, err := m.settings.Load(ctx)
	if err != nil {
		m.log.Warnf("Warning: could not load settings, assuming defaults: %v", err)
		return model.DefaultSettings()
	}
	return cfg
}

// mutate runs fn over the migrated collection inside the store's critical section.
// Returning store.ErrNoChange from fn skips the write and is not reported as an error.
func (m *Manager) mutate(ctx context.Context, fn func(tasks *[]model.Task) error) error {
	err := store.UpdateJSON(ctx, m.store, store.KeyTasks, func(tasks *[]model.Task, _ bool) error {
		migrated := migrate(*tasks, m.now())
		err := fn(tasks)
		if errors.Is(err, store.ErrNoChange) && migrated {
			return nil
		}
		return err
	})
	if errors.Is(err, store.ErrNoChange) {
		return nil
	}
	return err
}

// List returns every task, oldest order first.
func (m *Manager) List(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if _, err := store.GetJSON(ctx, m.store, store.KeyTasks, &tasks); err != nil {
		return nil, err
	}
	if migrate(tasks, m.now()) {
		// Migration assigns ids, so only the persisted collection may be handed out.
		err := m.mutate(ctx, func(stored *[]model.Task) error {
			tasks = append([]model.Task(nil), (*stored)...)
			return store.ErrNoChange
		})
		if err != nil {
			return nil, fmt.Errorf("failed to persist migrated tasks: %w", err)
		}
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Order < tasks[j].Order })
	return tasks, nil
}

// Get returns the task with the given id, or store.ErrNotFound.
func (m *Manager) Get(ctx context.Context, id string) (model.Task, error) {
	tasks, err := m.List(ctx)
	if err != nil {
		return model.Task{}, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Task{}, fmt.Errorf("task %s: %w", id, store.ErrNotFound)
}

// Migrate rewrites legacy records in place. It is idempotent and cheap when nothing changes.
func (m *Manager) Migrate(ctx context.Context) error {
	return m.mutate(ctx, func(*[]model.Task) error { return store.ErrNoChange })
}

// SaveTask stores a new task built from candidate and starts a background sync.
func (m *Manager) SaveTask(ctx context.Context, candidate model.Task) (model.Task, error) {
	text := strings.TrimSpace(candidate.Task)
	if text == "" {
		return model.Task{}, ErrEmptyTask
	}
	cfg := m.loadSettings(ctx)

	t := candidate
	t.ID = uuid.NewString()
	t.Task = text
	t.CreatedAt = m.now()
	t.Status = model.StatusTodo
	t.Priority = model.NormalizePriority(string(t.Priority))
	t.GoogleCalendarID = ""
	t.GoogleTaskID = ""
	t.SyncedToGoogle = false
	if t.EstimatedDuration <= 0 {
		t.EstimatedDuration = cfg.DefaultDuration
		if t.EstimatedDuration <= 0 {
			t.EstimatedDuration = model.DefaultDurationMinutes
		}
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Source == "" {
		t.Source = model.SourceFallback
	}

	err := m.mutate(ctx, func(tasks *[]model.Task) error {
		t.Order = nextOrder(*tasks, t.CreatedAt)
		*tasks = append(*tasks, t)
		return nil
	})
	if err != nil {
		return model.Task{}, fmt.Errorf("failed to save task: %w", err)
	}
	m.log.WithFields(logrus.Fields{"operation": "save", "task_id": t.ID}).Infof("Saved task %q", t.Task)

	m.background(ctx, "sync", t, func(ctx context.Context) {
		res := m.mirror.Sync(ctx, t, cfg)
		m.recordSync(ctx, t.ID, res, true)
	})
	return t, nil
}

// background runs fn after the caller's write has completed, detached from the caller's
// cancellation. It is a no-op without a mirror.
func (m *Manager) background(ctx context.Context, op string, t model.Task, fn func(ctx context.Context)) {
	if m.mirror == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, syncTimeout)
		defer cancel()
		m.log.WithFields(logrus.Fields{"operation": op, "task_id": t.ID}).Debug("Starting remote sync")
		fn(ctx)
	}()
}

// recordSync stores the remote ids from res. Creation and explicit resyncs also set the
// synced flag; status pushes leave it as it was.
func (m *Manager) recordSync(ctx context.Context, id string, res model.SyncResult, setSynced bool) *model.Task {
	log := m.log.WithFields(logrus.Fields{"operation": "record_sync", "task_id": id})
	if res.CalendarErr != nil {
		log.Warnf("Warning: calendar sync failed: %v", res.CalendarErr)
	}
	if res.TaskErr != nil {
		log.Warnf("Warning: task list sync failed: %v", res.TaskErr)
	}
	if !res.Attempted() {
		return nil
	}

	var updated *model.Task
	err := m.mutate(ctx, func(tasks *[]model.Task) error {
		i := indexOf(*tasks, id)
		if i < 0 {
			return store.ErrNoChange
		}
		t := &(*tasks)[i]
		if res.CalendarEventID != "" {
			t.GoogleCalendarID = res.CalendarEventID
		}
		if res.RemoteTaskID != "" {
			t.GoogleTaskID = res.RemoteTaskID
		}
		if setSynced {
			t.SyncedToGoogle = res.FullySynced()
		}
		cp := *t
		updated = &cp
		return nil
	})
	if err != nil {
		log.Errorf("Failed to record sync result: %v", err)
		return nil
	}
	if updated == nil {
		log.Info("Task was deleted before its sync finished")
	}
	return updated
}

// Resync mirrors the current content of a task, creating missing remote entries and patching
// existing ones. Unlike the background syncs it waits for the outcome.
func (m *Manager) Resync(ctx context.Context, id string) (model.Task, model.SyncResult, error) {
	if m.mirror == nil {
		return model.Task{}, model.SyncResult{}, ErrSyncUnavailable
	}
	t, err := m.Get(ctx, id)
	if err != nil {
		return model.Task{}, model.SyncResult{}, err
	}
	res := m.mirror.Resync(ctx, t, m.loadSettings(ctx))
	if updated := m.recordSync(ctx, id, res, true); updated != nil {
		t = *updated
	}
	return t, res, nil
}

// SetStatus moves a task to another status without touching its order.
// A missing task is logged and ignored.
func (m *Manager) SetStatus(ctx context.Context, id, status string) (*model.Task, error) {
	st, ok := model.ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	log := m.log.WithFields(logrus.Fields{"operation": "set_status", "task_id": id})

	var updated *model.Task
	changed := false
	err := m.mutate(ctx, func(tasks *[]model.Task) error {
		i := indexOf(*tasks, id)
		if i < 0 {
			return store.ErrNoChange
		}
		t := &(*tasks)[i]
		cp := *t
		updated = &cp
		if t.Status == st {
			return store.ErrNoChange
		}
		t.Status = st
		updated.Status = st
		changed = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	if updated == nil {
		log.Info("Task not found, nothing to update")
		return nil, nil
	}
	if changed {
		log.Infof("Status changed to %s", st)
		m.pushStatus(ctx, *updated)
	}
	return updated, nil
}

func (m *Manager) pushStatus(ctx context.Context, t model.Task) {
	if !t.HasRemote() {
		return
	}
	cfg := m.loadSettings(ctx)
	m.background(ctx, "push_status", t, func(ctx context.Context) {
		res := m.mirror.PushStatus(ctx, t, cfg)
		m.recordSync(ctx, t.ID, res, false)
	})
}

// DeleteTask removes a task. Remote copies are deleted in the background.
func (m *Manager) DeleteTask(ctx context.Context, id string) error {
	var removed *model.Task
	err := m.mutate(ctx, func(tasks *[]model.Task) error {
		i := indexOf(*tasks, id)
		if i < 0 {
			return store.ErrNoChange
		}
		cp := (*tasks)[i]
		removed = &cp
		*tasks = append((*tasks)[:i], (*tasks)[i+1:]...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	log := m.log.WithFields(logrus.Fields{"operation": "delete", "task_id": id})
	if removed == nil {
		log.Info("Task not found, nothing to delete")
		return nil
	}
	log.Info("Deleted task")
	if removed.HasRemote() {
		cfg := m.loadSettings(ctx)
		t := *removed
		m.background(ctx, "remove", t, func(ctx context.Context) {
			m.mirror.Remove(ctx, t, cfg)
		})
	}
	return nil
}

func indexOf(tasks []model.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}
