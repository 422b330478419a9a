package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/harrisonrobin/gsd/pkg/ai"
	"github.com/harrisonrobin/gsd/pkg/model"
	"github.com/harrisonrobin/gsd/pkg/settings"
	"github.com/harrisonrobin/gsd/pkg/store"
	"github.com/sirupsen/logrus"
)

type fakeMirror struct {
	mu       sync.Mutex
	syncFn   func(model.Task) model.SyncResult
	status   []model.Task
	removed  []model.Task
	resynced []model.Task
}

func (f *fakeMirror) Sync(_ context.Context, t model.Task, _ model.Settings) model.SyncResult {
	if f.syncFn == nil {
		return model.SyncResult{}
	}
	return f.syncFn(t)
}

func (f *fakeMirror) PushStatus(_ context.Context, t model.Task, _ model.Settings) model.SyncResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = append(f.status, t)
	return model.SyncResult{}
}

func (f *fakeMirror) Resync(_ context.Context, t model.Task, _ model.Settings) model.SyncResult {
	f.mu.Lock()
	f.resynced = append(f.resynced, t)
	f.mu.Unlock()
	return f.Sync(context.Background(), t, model.Settings{})
}

func (f *fakeMirror) Remove(_ context.Context, t model.Task, _ model.Settings) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, t)
}

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, store.Store) {
	t.Helper()
	s := store.NewMemory()
	log := logrus.New()
	log.SetOutput(io.Discard)
	clock := &stepClock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now), WithLocation(time.UTC)}, opts...)
	return New(s, settings.New(s), log, opts...), s
}

func save(t *testing.T, m *Manager, text string) model.Task {
	t.Helper()
	task, err := m.SaveTask(context.Background(), model.Task{Task: text, Source: model.SourceFallback})
	if err != nil {
		t.Fatalf("SaveTask(%q): %v", text, err)
	}
	return task
}

func TestSaveTaskAssignsIdentity(t *testing.T) {
	m, _ := newTestManager(t)
	a := save(t, m, "  Write report  ")
	b := save(t, m, "Write report")

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("ids not unique: %q %q", a.ID, b.ID)
	}
	if !a.CreatedAt.Before(b.CreatedAt) {
		t.Error("createdAt should differ between saves")
	}
	if a.Task != "Write report" {
		t.Errorf("task = %q, want trimmed", a.Task)
	}
	if a.Status != model.StatusTodo || a.SyncedToGoogle {
		t.Errorf("unexpected initial state %+v", a)
	}
	if a.EstimatedDuration != 30 {
		t.Errorf("estimatedDuration = %d, want default 30", a.EstimatedDuration)
	}
	if b.Order <= a.Order {
		t.Errorf("order not monotonic: %d then %d", a.Order, b.Order)
	}
}

func TestSaveTaskRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	deadline := time.Date(2026, 5, 8, 0, 0, 0, 0, time.UTC)
	in := model.Task{
		Task:              "Ship release",
		Priority:          model.PriorityHigh,
		EstimatedDuration: 90,
		Deadline:          &deadline,
		Project:           "Launch",
		Tags:              []string{"release"},
		Source:            model.SourceAI,
		OriginalText:      "we need to ship the release",
		Context:           model.CaptureContext{URL: "https://example.com", Title: "Tracker"},
	}
	saved, err := m.SaveTask(context.Background(), in)
	if err != nil {
		t.Fatalf("SaveTask: %v", err)
	}
	got, err := m.Get(context.Background(), saved.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want, _ := json.Marshal(saved)
	have, _ := json.Marshal(got)
	if string(want) != string(have) {
		t.Errorf("round trip mismatch:\n got %s\nwant %s", have, want)
	}
}

func TestSaveTaskRejectsEmpty(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.SaveTask(context.Background(), model.Task{Task: "   "}); !errors.Is(err, ErrEmptyTask) {
		t.Errorf("err = %v, want ErrEmptyTask", err)
	}
}

func TestSaveTaskRecordsPartialSync(t *testing.T) {
	mirror := &fakeMirror{syncFn: func(model.Task) model.SyncResult {
		return model.SyncResult{
			CalendarAttempted: true,
			TaskAttempted:     true,
			CalendarEventID:   "evt-1",
			TaskErr:           errors.New("quota exceeded"),
		}
	}}
	m, _ := newTestManager(t, WithMirror(mirror))
	task := save(t, m, "Plan sprint")
	m.Wait()

	got, err := m.Get(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.GoogleCalendarID != "evt-1" || got.GoogleTaskID != "" {
		t.Errorf("remote ids = %q/%q", got.GoogleCalendarID, got.GoogleTaskID)
	}
	if got.SyncedToGoogle {
		t.Error("partial sync must not be marked fully synced")
	}
}

func TestSaveTaskRecordsFullSync(t *testing.T) {
	mirror := &fakeMirror{syncFn: func(model.Task) model.SyncResult {
		return model.SyncResult{TaskAttempted: true, RemoteTaskID: "gt-1"}
	}}
	m, _ := newTestManager(t, WithMirror(mirror))
	task := save(t, m, "Plan sprint")
	m.Wait()

	got, _ := m.Get(context.Background(), task.ID)
	if !got.SyncedToGoogle || got.GoogleTaskID != "gt-1" {
		t.Errorf("got %+v, want synced with gt-1", got)
	}
}

func TestSetStatus(t *testing.T) {
	mirror := &fakeMirror{syncFn: func(model.Task) model.SyncResult {
		return model.SyncResult{TaskAttempted: true, RemoteTaskID: "gt-1"}
	}}
	m, _ := newTestManager(t, WithMirror(mirror))
	task := save(t, m, "Review PR")
	m.Wait()

	updated, err := m.SetStatus(context.Background(), task.ID, "completed")
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if updated.Status != model.StatusDone {
		t.Errorf("status = %q, want done", updated.Status)
	}
	if updated.Order != task.Order {
		t.Error("SetStatus must not change order")
	}
	m.Wait()
	if len(mirror.status) != 1 || mirror.status[0].Status != model.StatusDone {
		t.Errorf("status pushes = %+v", mirror.status)
	}

	if _, err := m.SetStatus(context.Background(), task.ID, "archived"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestSetStatusMissingTask(t *testing.T) {
	m, s := newTestManager(t)
	save(t, m, "Only task")
	before, _ := s.Get(context.Background(), store.KeyTasks)

	got, err := m.SetStatus(context.Background(), "nope", "done")
	if err != nil || got != nil {
		t.Fatalf("SetStatus on missing task = %v, %v; want nil, nil", got, err)
	}
	after, _ := s.Get(context.Background(), store.KeyTasks)
	if string(before) != string(after) {
		t.Error("store changed for a missing task")
	}
}

func TestUpdateField(t *testing.T) {
	m, _ := newTestManager(t)
	task := save(t, m, "Draft proposal")
	ctx := context.Background()

	if _, err := m.UpdateField(ctx, task.ID, "estimatedDuration", "45"); err != nil {
		t.Fatalf("UpdateField duration: %v", err)
	}
	if _, err := m.UpdateField(ctx, task.ID, "deadline", "2026-06-01"); err != nil {
		t.Fatalf("UpdateField deadline: %v", err)
	}
	got, err := m.UpdateField(ctx, task.ID, "project", "  Sales ")
	if err != nil {
		t.Fatalf("UpdateField project: %v", err)
	}
	if got.EstimatedDuration != 45 || got.Project != "Sales" {
		t.Errorf("unexpected task %+v", got)
	}
	if got.Deadline == nil || got.Deadline.Format("2006-01-02") != "2026-06-01" {
		t.Errorf("deadline = %v", got.Deadline)
	}

	got, err = m.UpdateField(ctx, task.ID, "deadline", nil)
	if err != nil || got.Deadline != nil {
		t.Errorf("clearing deadline: %v %v", got, err)
	}
}

func TestUpdateFieldRejectsInvalid(t *testing.T) {
	m, _ := newTestManager(t)
	task := save(t, m, "Draft proposal")
	ctx := context.Background()

	cases := []struct {
		field string
		value any
		want  error
	}{
		{"task", "   ", ErrEmptyTask},
		{"estimatedDuration", -5.0, ErrInvalidValue},
		{"estimatedDuration", "soon", ErrInvalidValue},
		{"priority", "urgent", ErrInvalidValue},
		{"deadline", "next tuesday-ish", ErrInvalidValue},
		{"id", "x", ErrFieldNotEditable},
		{"status", "done", ErrFieldNotEditable},
		{"googleTaskId", "x", ErrFieldNotEditable},
	}
	for _, tc := range cases {
		if _, err := m.UpdateField(ctx, task.ID, tc.field, tc.value); !errors.Is(err, tc.want) {
			t.Errorf("UpdateField(%s, %v) err = %v, want %v", tc.field, tc.value, err, tc.want)
		}
	}

	got, _ := m.Get(ctx, task.ID)
	if got.Task != "Draft proposal" || got.EstimatedDuration != 30 || got.Priority != model.PriorityMedium {
		t.Errorf("prior values not retained: %+v", got)
	}
}

func TestUpdateFieldMissingTask(t *testing.T) {
	m, _ := newTestManager(t)
	got, err := m.UpdateField(context.Background(), "nope", "task", "x")
	if err != nil || got != nil {
		t.Errorf("got %v, %v; want nil, nil", got, err)
	}
}

func TestReorderIsSelfInverse(t *testing.T) {
	m, _ := newTestManager(t)
	a := save(t, m, "A")
	b := save(t, m, "B")
	ctx := context.Background()

	if err := m.Reorder(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	ga, _ := m.Get(ctx, a.ID)
	gb, _ := m.Get(ctx, b.ID)
	if ga.Order != b.Order || gb.Order != a.Order {
		t.Errorf("orders not swapped: %d %d", ga.Order, gb.Order)
	}

	if err := m.Reorder(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	ga, _ = m.Get(ctx, a.ID)
	gb, _ = m.Get(ctx, b.ID)
	if ga.Order != a.Order || gb.Order != b.Order {
		t.Errorf("orders not restored: %d %d", ga.Order, gb.Order)
	}

	if err := m.Reorder(ctx, a.ID, "missing"); err != nil {
		t.Errorf("Reorder with missing id: %v", err)
	}
}

func column(t *testing.T, m *Manager, st model.Status) []string {
	t.Helper()
	tasks, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var out []string
	for _, task := range tasks {
		if task.Status == st {
			out = append(out, task.Task)
		}
	}
	return out
}

func TestMoveTo(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	a := save(t, m, "A")
	save(t, m, "B")
	c := save(t, m, "C")

	if _, err := m.MoveTo(ctx, c.ID, "todo", 0); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	if got := column(t, m, model.StatusTodo); len(got) != 3 || got[0] != "C" || got[1] != "A" || got[2] != "B" {
		t.Errorf("todo column = %v, want [C A B]", got)
	}

	if _, err := m.MoveTo(ctx, c.ID, "todo", 2); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	if got := column(t, m, model.StatusTodo); got[0] != "A" || got[1] != "B" || got[2] != "C" {
		t.Errorf("todo column = %v, want [A B C]", got)
	}

	moved, err := m.MoveTo(ctx, a.ID, "in_progress", 5)
	if err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	if moved.Status != model.StatusInProgress {
		t.Errorf("status = %q", moved.Status)
	}
	if _, err := m.MoveTo(ctx, a.ID, "nowhere", 0); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestMoveToRenumbersWhenKeysExhausted(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	err := store.SetJSON(ctx, s, store.KeyTasks, []model.Task{
		{ID: "a", Task: "A", Status: model.StatusTodo, Order: 10, Tags: []string{}, Priority: model.PriorityMedium, CreatedAt: time.Now()},
		{ID: "b", Task: "B", Status: model.StatusTodo, Order: 11, Tags: []string{}, Priority: model.PriorityMedium, CreatedAt: time.Now()},
		{ID: "c", Task: "C", Status: model.StatusDone, Order: 5, Tags: []string{}, Priority: model.PriorityMedium, CreatedAt: time.Now()},
	})
	if err != nil {
		t.Fatalf("SetJSON: %v", err)
	}

	if _, err := m.MoveTo(ctx, "c", "todo", 1); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	if got := column(t, m, model.StatusTodo); len(got) != 3 || got[0] != "A" || got[1] != "C" || got[2] != "B" {
		t.Errorf("todo column = %v, want [A C B]", got)
	}
	b, _ := m.Get(ctx, "b")
	if b.Order != 10+2*orderGap {
		t.Errorf("b order = %d, want renumbered", b.Order)
	}
}

func TestDeleteTask(t *testing.T) {
	mirror := &fakeMirror{syncFn: func(model.Task) model.SyncResult {
		return model.SyncResult{TaskAttempted: true, RemoteTaskID: "gt-1"}
	}}
	m, _ := newTestManager(t, WithMirror(mirror))
	ctx := context.Background()
	task := save(t, m, "Throwaway")
	m.Wait()

	if err := m.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	m.Wait()
	if _, err := m.Get(ctx, task.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
	if len(mirror.removed) != 1 || mirror.removed[0].GoogleTaskID != "gt-1" {
		t.Errorf("remote removals = %+v", mirror.removed)
	}
	if err := m.DeleteTask(ctx, task.ID); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestResync(t *testing.T) {
	calls := 0
	mirror := &fakeMirror{syncFn: func(model.Task) model.SyncResult {
		calls++
		if calls == 1 {
			return model.SyncResult{CalendarAttempted: true, TaskAttempted: true, RemoteTaskID: "gt-1", CalendarErr: errors.New("offline")}
		}
		return model.SyncResult{CalendarAttempted: true, TaskAttempted: true, RemoteTaskID: "gt-1", CalendarEventID: "evt-1"}
	}}
	m, _ := newTestManager(t, WithMirror(mirror))
	task := save(t, m, "Retry me")
	m.Wait()

	got, res, err := m.Resync(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("Resync: %v", err)
	}
	if !res.FullySynced() || !got.SyncedToGoogle || got.GoogleCalendarID != "evt-1" {
		t.Errorf("after resync got %+v", got)
	}

	plain, _ := newTestManager(t)
	if _, _, err := plain.Resync(context.Background(), task.ID); !errors.Is(err, ErrSyncUnavailable) {
		t.Errorf("err = %v, want ErrSyncUnavailable", err)
	}
}

func TestLazyMigration(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	legacy := `[{"id":"old-1","task":"Legacy","priority":"medium","createdAt":"2026-05-01T10:00:00Z","status":"in-progress","tags":null},
		{"id":"old-2","task":"Older","createdAt":"2026-05-01T09:00:00Z","status":"pending"}]`
	if err := s.Set(ctx, store.KeyTasks, []byte(legacy)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	tasks, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks", len(tasks))
	}
	byID := map[string]model.Task{}
	for _, task := range tasks {
		byID[task.ID] = task
	}
	if byID["old-1"].Status != model.StatusInProgress || byID["old-2"].Status != model.StatusTodo {
		t.Errorf("statuses not migrated: %+v", tasks)
	}
	if byID["old-1"].Order == 0 || byID["old-2"].Priority != model.PriorityMedium || byID["old-1"].Tags == nil {
		t.Errorf("fields not migrated: %+v", tasks)
	}

	first, _ := s.Get(ctx, store.KeyTasks)
	if err := m.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	second, _ := s.Get(ctx, store.KeyTasks)
	if string(first) != string(second) {
		t.Error("migration is not idempotent")
	}
}

func TestLazyMigrationAssignsStoredIDs(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	legacy := `[{"task":"No id","priority":"high","createdAt":"2026-05-01T10:00:00Z","status":"pending"}]`
	if err := s.Set(ctx, store.KeyTasks, []byte(legacy)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	listed, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 || listed[0].ID == "" {
		t.Fatalf("listed = %+v", listed)
	}
	id := listed[0].ID

	got, err := m.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	if got.Task != "No id" {
		t.Errorf("Get returned %+v", got)
	}

	again, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if again[0].ID != id {
		t.Errorf("id changed between lists: %s then %s", id, again[0].ID)
	}

	updated, err := m.SetStatus(ctx, id, "done")
	if err != nil || updated == nil {
		t.Fatalf("SetStatus = %v, %v", updated, err)
	}
	if updated.Status != model.StatusDone {
		t.Errorf("status = %s", updated.Status)
	}
}

func TestConcurrentSaves(t *testing.T) {
	m, _ := newTestManager(t)
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.SaveTask(context.Background(), model.Task{Task: "parallel"}); err != nil {
				t.Errorf("SaveTask: %v", err)
			}
		}()
	}
	wg.Wait()
	tasks, _ := m.List(context.Background())
	if len(tasks) != 25 {
		t.Errorf("got %d tasks, want 25", len(tasks))
	}
}

type fixedWriter struct {
	out string
	err error
}

func (w fixedWriter) Write(context.Context, string) (string, error) { return w.out, w.err }

func TestDailySummaryUsesWriterWithFallback(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, WithCapabilities(ai.Static(nil, nil, nil, fixedWriter{out: "Polished"})))
	save(t, m, "Thing")
	day := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	got, err := m.DailySummary(ctx, day)
	if err != nil || got != "Polished" {
		t.Errorf("DailySummary = %q, %v", got, err)
	}

	m, _ = newTestManager(t, WithCapabilities(ai.Static(nil, nil, nil, fixedWriter{err: errors.New("down")})))
	save(t, m, "Thing")
	got, _ = m.DailySummary(ctx, day)
	want := "Daily Work Summary - 5/4/2026\n\nGeneral (0.5h):\n  - Thing\n\n\nTotal time: 0.5 hours\nTasks captured: 1"
	if got != want {
		t.Errorf("DailySummary = %q, want %q", got, want)
	}

	empty, _ := newTestManager(t)
	if got, _ := empty.DailySummary(ctx, day); got != NoTasksMessage {
		t.Errorf("empty day = %q", got)
	}
}

// blockingWriter never answers; it returns only when its context ends.
type blockingWriter struct{}

func (blockingWriter) Write(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestDailySummaryWriterTimeout(t *testing.T) {
	m, _ := newTestManager(t,
		WithCapabilities(ai.Static(nil, nil, nil, blockingWriter{})),
		WithCompletionTimeout(50*time.Millisecond))
	save(t, m, "Thing")
	day := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	done := make(chan string, 1)
	go func() {
		got, _ := m.DailySummary(context.Background(), day)
		done <- got
	}()

	select {
	case got := <-done:
		want := "Daily Work Summary - 5/4/2026\n\nGeneral (0.5h):\n  - Thing\n\n\nTotal time: 0.5 hours\nTasks captured: 1"
		if got != want {
			t.Errorf("DailySummary = %q, want the plain report", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("DailySummary did not return after the writer timed out")
	}
}
