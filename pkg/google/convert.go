package google

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/gsd/pkg/model"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/tasks/v1"
)

// TaskIDProperty is the private extended property linking an event to its local task.
const TaskIDProperty = "gsd_task_id"

const (
	PrefixInProgress = "🔄 "
	PrefixDone       = "✅ "

	remoteNeedsAction = "needsAction"
	remoteCompleted   = "completed"
)

// StripStatusPrefix removes a leading status marker from a remote title.
func StripStatusPrefix(title string) string {
	for _, p := range []string{PrefixInProgress, PrefixDone} {
		if strings.HasPrefix(title, p) {
			return strings.TrimPrefix(title, p)
		}
	}
	return title
}

// StatusTitle renders a remote title for the given status: 🔄 for in progress, ✅ for done
// and no marker for todo. Any existing marker is replaced.
func StatusTitle(title string, st model.Status) string {
	title = StripStatusPrefix(title)
	switch st {
	case model.StatusInProgress:
		return PrefixInProgress + title
	case model.StatusDone:
		return PrefixDone + title
	default:
		return title
	}
}

// PriorityColorID maps a priority to a Calendar event colour (11 red, 5 yellow, 10 green).
func PriorityColorID(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "11"
	case model.PriorityMedium:
		return "5"
	case model.PriorityLow:
		return "10"
	default:
		return ""
	}
}

// EventDescription is the event body: capture source, original text, priority and duration.
func EventDescription(t model.Task) string {
	url := t.Context.URL
	if url == "" {
		url = "Unknown"
	}
	original := t.OriginalText
	if original == "" {
		original = t.Task
	}
	return fmt.Sprintf("Captured from: %s\n\nOriginal text: %s\n\nPriority: %s\nEstimated duration: %d minutes",
		url, original, model.NormalizePriority(string(t.Priority)), t.Minutes())
}

// TaskNotes builds the notes of a remote task entry, one "Label: value" line per known field.
func TaskNotes(t model.Task, loc *time.Location) string {
	var notes []string
	if t.OriginalText != "" && t.OriginalText != t.Task {
		notes = append(notes, "Original text: "+t.OriginalText)
	}
	if t.Context.URL != "" {
		notes = append(notes, "Source: "+t.Context.URL)
	}
	if t.Priority != "" {
		notes = append(notes, "Priority: "+string(t.Priority))
	}
	if t.EstimatedDuration > 0 {
		notes = append(notes, fmt.Sprintf("Estimated duration: %d minutes", t.EstimatedDuration))
	}
	if t.Project != "" {
		notes = append(notes, "Project: "+t.Project)
	}
	if t.Deadline != nil {
		notes = append(notes, "Deadline: "+t.Deadline.In(loc).Format("1/2/2006"))
	}
	return strings.Join(notes, "\n")
}

func eventTime(at time.Time, tz string) *calendar.EventDateTime {
	dt := &calendar.EventDateTime{DateTime: at.Format(time.RFC3339)}
	if tz != "" && tz != "Local" {
		dt.TimeZone = tz
	}
	return dt
}

// TaskToEvent converts a task to a Calendar event. The event starts at the deadline, or at
// capture time when there is none, and lasts the estimated duration.
func TaskToEvent(t model.Task, tz string) *calendar.Event {
	start := t.CreatedAt
	if t.Deadline != nil {
		start = *t.Deadline
	}
	end := start.Add(t.Duration())

	event := &calendar.Event{
		Summary:     StatusTitle(t.Task, t.Status),
		Description: EventDescription(t),
		Start:       eventTime(start, tz),
		End:         eventTime(end, tz),
		ColorId:     PriorityColorID(t.Priority),
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: 10},
				{Method: "email", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
	if t.ID != "" {
		event.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: map[string]string{TaskIDProperty: t.ID},
		}
	}
	return event
}

// RemoteStatus maps a local status to the task-list API's two states.
func RemoteStatus(st model.Status) string {
	if st == model.StatusDone {
		return remoteCompleted
	}
	return remoteNeedsAction
}

// TaskToRemote converts a task to a task-list entry.
func TaskToRemote(t model.Task, loc *time.Location) *tasks.Task {
	rt := &tasks.Task{
		Title:  StatusTitle(strings.TrimSpace(t.Task), t.Status),
		Notes:  TaskNotes(t, loc),
		Status: RemoteStatus(t.Status),
	}
	if t.Deadline != nil {
		rt.Due = t.Deadline.UTC().Format(time.RFC3339)
	}
	return rt
}

// EventPatch returns the fields of target that differ from existing, or nil when the event is
// already up to date.
func EventPatch(existing, target *calendar.Event) (*calendar.Event, error) {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		needsUpdate = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}

	same, err := sameTimes(existing, target)
	if err != nil {
		return nil, err
	}
	if !same {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch, nil
	}
	return nil, nil
}

func sameTimes(a, b *calendar.Event) (bool, error) {
	if a.Start == nil || a.End == nil {
		return false, nil
	}
	pairs := [][2]string{{a.Start.DateTime, b.Start.DateTime}, {a.End.DateTime, b.End.DateTime}}
	for _, p := range pairs {
		x, err := time.Parse(time.RFC3339, p[0])
		if err != nil {
			return false, fmt.Errorf("invalid event time %q: %w", p[0], err)
		}
		y, err := time.Parse(time.RFC3339, p[1])
		if err != nil {
			return false, fmt.Errorf("invalid event time %q: %w", p[1], err)
		}
		if !x.Equal(y) {
			return false, nil
		}
	}
	return true, nil
}
