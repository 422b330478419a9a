package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/gsd/pkg/model"
	"google.golang.org/api/tasks/v1"
)

// TaskList is the listing entry shown in the task-list picker.
type TaskList struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Updated string `json:"updated,omitempty"`
}

// TasksClient is a Google Tasks API client.
type TasksClient struct {
	srv *tasks.Service
	loc *time.Location
}

func NewTasksClient(srv *tasks.Service, loc *time.Location) *TasksClient {
	if loc == nil {
		loc = time.Local
	}
	return &TasksClient{srv: srv, loc: loc}
}

// ListTaskLists returns the task lists of the signed-in user.
func (c *TasksClient) ListTaskLists(ctx context.Context) ([]TaskList, error) {
	lists, err := c.srv.Tasklists.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve task lists: %w", err)
	}
	out := make([]TaskList, 0, len(lists.Items))
	for _, l := range lists.Items {
		out = append(out, TaskList{ID: l.Id, Title: l.Title, Updated: l.Updated})
	}
	return out, nil
}

// CreateTask inserts a task-list entry for t.
func (c *TasksClient) CreateTask(ctx context.Context, listID string, t model.Task) (*tasks.Task, error) {
	if strings.TrimSpace(t.Task) == "" {
		return nil, fmt.Errorf("task title cannot be empty")
	}
	if listID == "" {
		return nil, fmt.Errorf("task list ID is required")
	}
	created, err := c.srv.Tasks.Insert(listID, TaskToRemote(t, c.loc)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to create task: %w", err)
	}
	return created, nil
}

// SyncTask patches the existing entry with the task's current content, or creates one when
// remoteID is empty or no longer exists.
func (c *TasksClient) SyncTask(ctx context.Context, listID, remoteID string, t model.Task) (*tasks.Task, error) {
	if remoteID != "" {
		if current, err := c.srv.Tasks.Get(listID, remoteID).Context(ctx).Do(); err == nil && !current.Deleted {
			return c.patch(ctx, listID, remoteID, TaskToRemote(t, c.loc))
		}
	}
	return c.CreateTask(ctx, listID, t)
}

// UpdateTaskStatus sets the completion state and the title marker for st.
func (c *TasksClient) UpdateTaskStatus(ctx context.Context, listID, remoteID string, st model.Status) (*tasks.Task, error) {
	current, err := c.srv.Tasks.Get(listID, remoteID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve task %s: %w", remoteID, err)
	}
	return c.patch(ctx, listID, remoteID, &tasks.Task{
		Title:  StatusTitle(current.Title, st),
		Status: RemoteStatus(st),
	})
}

func (c *TasksClient) patch(ctx context.Context, listID, remoteID string, p *tasks.Task) (*tasks.Task, error) {
	if p.Status == remoteNeedsAction {
		p.NullFields = append(p.NullFields, "Completed")
	}
	updated, err := c.srv.Tasks.Patch(listID, remoteID, p).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to update task %s: %w", remoteID, err)
	}
	return updated, nil
}

// DeleteTask removes a task-list entry.
func (c *TasksClient) DeleteTask(ctx context.Context, listID, remoteID string) error {
	if err := c.srv.Tasks.Delete(listID, remoteID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to delete task %s: %w", remoteID, err)
	}
	return nil
}
