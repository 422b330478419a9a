package google

import (
	"strings"
	"testing"
	"time"

	"github.com/harrisonrobin/gsd/pkg/model"
	"google.golang.org/api/calendar/v3"
)

func TestStatusTitle(t *testing.T) {
	cases := []struct {
		title string
		st    model.Status
		want  string
	}{
		{"Write docs", model.StatusTodo, "Write docs"},
		{"Write docs", model.StatusInProgress, "🔄 Write docs"},
		{"Write docs", model.StatusDone, "✅ Write docs"},
		{"🔄 Write docs", model.StatusDone, "✅ Write docs"},
		{"✅ Write docs", model.StatusTodo, "Write docs"},
		{"🔄 Write docs", model.StatusInProgress, "🔄 Write docs"},
	}
	for _, tc := range cases {
		if got := StatusTitle(tc.title, tc.st); got != tc.want {
			t.Errorf("StatusTitle(%q, %s) = %q, want %q", tc.title, tc.st, got, tc.want)
		}
	}
}

func TestTaskToEvent(t *testing.T) {
	deadline := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	task := model.Task{
		ID:                "12345678-1234-1234-1234-123456789012",
		Task:              "Test Task",
		Priority:          model.PriorityHigh,
		EstimatedDuration: 45,
		Deadline:          &deadline,
		Status:            model.StatusInProgress,
		CreatedAt:         deadline.Add(-48 * time.Hour),
	}

	event := TaskToEvent(task, "Europe/Berlin")
	if event.Summary != "🔄 Test Task" {
		t.Errorf("Summary = %q", event.Summary)
	}
	if event.ColorId != "11" {
		t.Errorf("ColorId = %q, want 11", event.ColorId)
	}
	if event.Start.DateTime != "2026-01-01T12:00:00Z" || event.End.DateTime != "2026-01-01T12:45:00Z" {
		t.Errorf("times = %s .. %s", event.Start.DateTime, event.End.DateTime)
	}
	if event.Start.TimeZone != "Europe/Berlin" {
		t.Errorf("TimeZone = %q", event.Start.TimeZone)
	}
	if event.ExtendedProperties == nil || event.ExtendedProperties.Private[TaskIDProperty] != task.ID {
		t.Errorf("missing task id property: %+v", event.ExtendedProperties)
	}
	if event.Reminders == nil || event.Reminders.UseDefault || len(event.Reminders.Overrides) != 2 {
		t.Fatalf("Reminders = %+v", event.Reminders)
	}
	if r := event.Reminders.Overrides[0]; r.Method != "popup" || r.Minutes != 10 {
		t.Errorf("first reminder = %+v", r)
	}
	if !strings.Contains(event.Description, "Captured from: Unknown") || !strings.Contains(event.Description, "Estimated duration: 45 minutes") {
		t.Errorf("Description = %q", event.Description)
	}
}

func TestTaskToEventWithoutDeadline(t *testing.T) {
	created := time.Date(2026, 2, 3, 8, 30, 0, 0, time.UTC)
	event := TaskToEvent(model.Task{Task: "Quick", CreatedAt: created}, "")
	if event.Start.DateTime != "2026-02-03T08:30:00Z" || event.End.DateTime != "2026-02-03T09:00:00Z" {
		t.Errorf("times = %s .. %s", event.Start.DateTime, event.End.DateTime)
	}
	if event.Start.TimeZone != "" {
		t.Errorf("TimeZone = %q, want empty", event.Start.TimeZone)
	}
}

func TestTaskNotes(t *testing.T) {
	deadline := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	task := model.Task{
		Task:              "Send invoice",
		OriginalText:      "remember to send the invoice",
		Priority:          model.PriorityLow,
		EstimatedDuration: 15,
		Project:           "Billing",
		Deadline:          &deadline,
		Context:           model.CaptureContext{URL: "https://mail.example.com"},
	}
	want := "Original text: remember to send the invoice\n" +
		"Source: https://mail.example.com\n" +
		"Priority: low\n" +
		"Estimated duration: 15 minutes\n" +
		"Project: Billing\n" +
		"Deadline: 3/9/2026"
	if got := TaskNotes(task, time.UTC); got != want {
		t.Errorf("TaskNotes =\n%s\nwant\n%s", got, want)
	}
}

func TestTaskToRemote(t *testing.T) {
	rt := TaskToRemote(model.Task{Task: " Ship it ", Status: model.StatusDone}, time.UTC)
	if rt.Title != "✅ Ship it" || rt.Status != "completed" {
		t.Errorf("got %+v", rt)
	}
	rt = TaskToRemote(model.Task{Task: "Ship it", Status: model.StatusTodo}, time.UTC)
	if rt.Status != "needsAction" || rt.Due != "" {
		t.Errorf("got %+v", rt)
	}
}

func TestEventPatch(t *testing.T) {
	base := func() *calendar.Event {
		return &calendar.Event{
			Summary:     "Title",
			Description: "Body",
			ColorId:     "5",
			Start:       &calendar.EventDateTime{DateTime: "2026-01-01T12:00:00Z"},
			End:         &calendar.EventDateTime{DateTime: "2026-01-01T12:30:00Z"},
		}
	}

	patch, err := EventPatch(base(), base())
	if err != nil || patch != nil {
		t.Fatalf("identical events: patch=%+v err=%v", patch, err)
	}

	target := base()
	target.Summary = "✅ Title"
	target.End = &calendar.EventDateTime{DateTime: "2026-01-01T13:00:00+01:00"}
	patch, err = EventPatch(base(), target)
	if err != nil {
		t.Fatalf("EventPatch: %v", err)
	}
	if patch == nil || patch.Summary != "✅ Title" {
		t.Fatalf("patch = %+v", patch)
	}
	if patch.Start != nil {
		t.Error("equal instants in different zones should not patch times")
	}

	target = base()
	target.Start = &calendar.EventDateTime{DateTime: "not a time"}
	if _, err := EventPatch(base(), target); err == nil {
		t.Error("expected an error for an unparseable time")
	}
}
