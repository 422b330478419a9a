package tasks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/harrisonrobin/gsd/pkg/model"
	"github.com/harrisonrobin/gsd/pkg/store"
	"github.com/sirupsen/logrus"
)

// orderGap is the spacing used when a column is renumbered.
const orderGap int64 = 1024

// nextOrder is the order key for a task created at the given time: its creation time in
// milliseconds, bumped past the largest existing key if the clock went backwards.
func nextOrder(tasks []model.Task, createdAt time.Time) int64 {
	order := createdAt.UnixMilli()
	for _, t := range tasks {
		if t.Order >= order {
			order = t.Order + 1
		}
	}
	return order
}

// Reorder swaps the order keys of two tasks. Calling it twice with the same pair restores
// the original keys. Unknown ids are logged and ignored.
func (m *Manager) Reorder(ctx context.Context, draggedID, targetID string) error {
	log := m.log.WithFields(logrus.Fields{"operation": "reorder", "task_id": draggedID, "target_id": targetID})
	if draggedID == targetID {
		return nil
	}
	found := true
	err := m.mutate(ctx, func(tasks *[]model.Task) error {
		a, b := indexOf(*tasks, draggedID), indexOf(*tasks, targetID)
		if a < 0 || b < 0 {
			found = false
			return store.ErrNoChange
		}
		ts := *tasks
		ts[a].Order, ts[b].Order = ts[b].Order, ts[a].Order
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reorder tasks: %w", err)
	}
	if !found {
		log.Info("Task not found, nothing to reorder")
	}
	return nil
}

// MoveTo places a task at position index of the status column, changing its status if needed.
// The new order key is the midpoint of its neighbours; when they are adjacent integers the
// column is renumbered with orderGap spacing.
func (m *Manager) MoveTo(ctx context.Context, id, status string, index int) (*model.Task, error) {
	st, ok := model.ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	log := m.log.WithFields(logrus.Fields{"operation": "move", "task_id": id})

	var moved *model.Task
	statusChanged := false
	err := m.mutate(ctx, func(tasks *[]model.Task) error {
		ts := *tasks
		i := indexOf(ts, id)
		if i < 0 {
			return store.ErrNoChange
		}

		var column []*model.Task
		for j := range ts {
			if j != i && ts[j].Status == st {
				column = append(column, &ts[j])
			}
		}
		sort.SliceStable(column, func(a, b int) bool { return column[a].Order < column[b].Order })

		if index < 0 {
			index = 0
		}
		if index > len(column) {
			index = len(column)
		}

		t := &ts[i]
		statusChanged = t.Status != st
		t.Status = st
		switch {
		case len(column) == 0:
		case index == 0:
			t.Order = column[0].Order - orderGap
		case index == len(column):
			t.Order = column[len(column)-1].Order + orderGap
		default:
			lo, hi := column[index-1].Order, column[index].Order
			if hi-lo > 1 {
				t.Order = lo + (hi-lo)/2
			} else {
				renumber(column, t, index)
			}
		}
		cp := *t
		moved = &cp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to move task: %w", err)
	}
	if moved == nil {
		log.Info("Task not found, nothing to move")
		return nil, nil
	}
	if statusChanged {
		m.pushStatus(ctx, *moved)
	}
	return moved, nil
}

// renumber rewrites the column's keys with orderGap spacing, inserting t at index.
func renumber(column []*model.Task, t *model.Task, index int) {
	base := column[0].Order
	seq := make([]*model.Task, 0, len(column)+1)
	seq = append(seq, column[:index]...)
	seq = append(seq, t)
	seq = append(seq, column[index:]...)
	for k, task := range seq {
		task.Order = base + int64(k)*orderGap
	}
}
