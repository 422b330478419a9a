package google

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"
)

// ClientSource hands out authenticated HTTP clients. interactive=false must never prompt.
type ClientSource interface {
	Client(ctx context.Context, interactive bool) (*http.Client, error)
}

// Connector builds API clients for the currently signed-in account.
type Connector struct {
	auth ClientSource
	tz   string
	loc  *time.Location
	opts []option.ClientOption
}

// NewConnector returns a Connector. tz is the IANA zone written on events; opts are appended
// to every service constructor.
func NewConnector(auth ClientSource, tz string, opts ...option.ClientOption) *Connector {
	loc := time.Local
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	return &Connector{auth: auth, tz: tz, loc: loc, opts: opts}
}

func (c *Connector) options(ctx context.Context) ([]option.ClientOption, error) {
	client, err := c.auth.Client(ctx, false)
	if err != nil {
		return nil, err
	}
	return append([]option.ClientOption{option.WithHTTPClient(client)}, c.opts...), nil
}

// Calendar returns a Calendar client, or the auth error when nobody is signed in.
func (c *Connector) Calendar(ctx context.Context) (*CalendarClient, error) {
	opts, err := c.options(ctx)
	if err != nil {
		return nil, err
	}
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %w", err)
	}
	return NewCalendarClient(srv, c.tz), nil
}

// Tasks returns a Tasks client, or the auth error when nobody is signed in.
func (c *Connector) Tasks(ctx context.Context) (*TasksClient, error) {
	opts, err := c.options(ctx)
	if err != nil {
		return nil, err
	}
	srv, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Tasks client: %w", err)
	}
	return NewTasksClient(srv, c.loc), nil
}

// ListCalendars lists the signed-in account's calendars.
func (c *Connector) ListCalendars(ctx context.Context) ([]Calendar, error) {
	cal, err := c.Calendar(ctx)
	if err != nil {
		return nil, err
	}
	return cal.ListCalendars(ctx)
}

// ListTaskLists lists the signed-in account's task lists.
func (c *Connector) ListTaskLists(ctx context.Context) ([]TaskList, error) {
	tl, err := c.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	return tl.ListTaskLists(ctx)
}
