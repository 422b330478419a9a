package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/harrisonrobin/gsd/pkg/model"
	"github.com/harrisonrobin/gsd/pkg/store"
	"github.com/sirupsen/logrus"
)

// setter validates a raw value and applies it to a task.
type setter func(m *Manager, t *model.Task, v any) error

var editable = map[string]setter{
	"task": func(_ *Manager, t *model.Task, v any) error {
		s, err := trimmedString(v)
		if err != nil {
			return err
		}
		if s == "" {
			return ErrEmptyTask
		}
		t.Task = s
		return nil
	},
	"priority": func(_ *Manager, t *model.Task, v any) error {
		s, err := trimmedString(v)
		if err != nil {
			return err
		}
		p := model.Priority(strings.ToLower(s))
		if p != model.PriorityHigh && p != model.PriorityMedium && p != model.PriorityLow {
			return fmt.Errorf("%w: priority %q", ErrInvalidValue, s)
		}
		t.Priority = p
		return nil
	},
	"estimatedDuration": func(_ *Manager, t *model.Task, v any) error {
		n, err := model.CoerceMinutes(v)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		t.EstimatedDuration = n
		return nil
	},
	"deadline": func(m *Manager, t *model.Task, v any) error {
		d, err := model.CoerceDeadline(v, m.loc)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		t.Deadline = d
		return nil
	},
	"project": func(_ *Manager, t *model.Task, v any) error {
		s, err := trimmedString(v)
		if err != nil {
			return err
		}
		t.Project = s
		return nil
	},
	"tags": func(_ *Manager, t *model.Task, v any) error {
		tags, err := model.CoerceTags(v)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		t.Tags = tags
		return nil
	},
	"originalText": func(_ *Manager, t *model.Task, v any) error {
		s, err := trimmedString(v)
		if err != nil {
			return err
		}
		t.OriginalText = s
		return nil
	},
	"transcription": func(_ *Manager, t *model.Task, v any) error {
		s, err := trimmedString(v)
		if err != nil {
			return err
		}
		t.Transcription = s
		return nil
	},
}

func trimmedString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(x), nil
	default:
		return "", fmt.Errorf("%w: expected text, got %T", ErrInvalidValue, v)
	}
}

// UpdateField validates and stores a single edited field. Invalid values are rejected and the
// previous value kept. A missing task is logged and ignored, returning a nil task.
// Edits are local only; use Resync to push content changes to the remote services.
func (m *Manager) UpdateField(ctx context.Context, id, field string, value any) (*model.Task, error) {
	set, ok := editable[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFieldNotEditable, field)
	}

	var updated *model.Task
	err := m.mutate(ctx, func(tasks *[]model.Task) error {
		i := indexOf(*tasks, id)
		if i < 0 {
			return store.ErrNoChange
		}
		t := (*tasks)[i]
		if err := set(m, &t, value); err != nil {
			return err
		}
		(*tasks)[i] = t
		updated = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	log := m.log.WithFields(logrus.Fields{"operation": "update_field", "task_id": id, "field": field})
	if updated == nil {
		log.Info("Task not found, nothing to update")
		return nil, nil
	}
	log.Debug("Field updated")
	return updated, nil
}
