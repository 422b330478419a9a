package google

import (
	"context"
	"fmt"

	"github.com/harrisonrobin/gsd/pkg/model"
	"google.golang.org/api/calendar/v3"
)

// Calendar is the listing entry shown in the calendar picker.
type Calendar struct {
	ID              string `json:"id"`
	Summary         string `json:"summary"`
	Primary         bool   `json:"primary"`
	AccessRole      string `json:"accessRole"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	ForegroundColor string `json:"foregroundColor,omitempty"`
}

// CalendarClient is a Google Calendar API client.
type CalendarClient struct {
	srv *calendar.Service
	tz  string
}

// NewCalendarClient creates a new Google Calendar client. Event times carry tz when it is set.
func NewCalendarClient(srv *calendar.Service, tz string) *CalendarClient {
	return &CalendarClient{srv: srv, tz: tz}
}

// ListCalendars returns the calendars of the signed-in user.
func (c *CalendarClient) ListCalendars(ctx context.Context) ([]Calendar, error) {
	list, err := c.srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	out := make([]Calendar, 0, len(list.Items))
	for _, item := range list.Items {
		out = append(out, Calendar{
			ID:              item.Id,
			Summary:         item.Summary,
			Primary:         item.Primary,
			AccessRole:      item.AccessRole,
			BackgroundColor: item.BackgroundColor,
			ForegroundColor: item.ForegroundColor,
		})
	}
	return out, nil
}

// CreateEvent inserts a new event for the task.
func (c *CalendarClient) CreateEvent(ctx context.Context, calendarID string, t model.Task) (*calendar.Event, error) {
	event, err := c.srv.Events.Insert(calendarID, TaskToEvent(t, c.tz)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to create event: %w", err)
	}
	return event, nil
}

// SyncEvent brings the task's event up to date. It looks the event up by eventID, then by the
// task id property, patches it when it differs and creates it when none exists.
func (c *CalendarClient) SyncEvent(ctx context.Context, calendarID, eventID string, t model.Task) (*calendar.Event, error) {
	target := TaskToEvent(t, c.tz)

	var existing *calendar.Event
	if eventID != "" {
		ev, err := c.srv.Events.Get(calendarID, eventID).Context(ctx).Do()
		if err == nil && ev.Status != "cancelled" {
			existing = ev
		}
	}
	if existing == nil {
		ev, err := c.GetEventByTaskID(ctx, calendarID, t.ID)
		if err != nil {
			return nil, fmt.Errorf("error searching for event: %w", err)
		}
		existing = ev
	}

	if existing == nil {
		return c.CreateEvent(ctx, calendarID, t)
	}
	patch, err := EventPatch(existing, target)
	if err != nil {
		return nil, fmt.Errorf("could not compare task with its calendar event: %w", err)
	}
	if patch == nil {
		return existing, nil
	}
	return c.PatchEvent(ctx, calendarID, existing.Id, patch)
}

// UpdateEventStatus rewrites the status marker at the start of the event title.
func (c *CalendarClient) UpdateEventStatus(ctx context.Context, calendarID, eventID string, st model.Status) (*calendar.Event, error) {
	current, err := c.srv.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve event %s: %w", eventID, err)
	}
	title := StatusTitle(current.Summary, st)
	if title == current.Summary {
		return current, nil
	}
	return c.PatchEvent(ctx, calendarID, eventID, &calendar.Event{Summary: title})
}

// PatchEvent performs a partial update on an event.
func (c *CalendarClient) PatchEvent(ctx context.Context, calendarID, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	event, err := c.srv.Events.Patch(calendarID, eventID, patch).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to update event %s: %w", eventID, err)
	}
	return event, nil
}

// DeleteEvent deletes an event from the calendar.
func (c *CalendarClient) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := c.srv.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to delete event %s: %w", eventID, err)
	}
	return nil
}

// GetEventByTaskID searches for an event carrying the given task id in its private
// extended properties.
func (c *CalendarClient) GetEventByTaskID(ctx context.Context, calendarID, taskID string) (*calendar.Event, error) {
	if taskID == "" {
		return nil, nil
	}
	events, err := c.srv.Events.List(calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", TaskIDProperty, taskID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}
