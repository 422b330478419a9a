package tasks

import (
	"time"

	"github.com/google/uuid"
	"github.com/harrisonrobin/gsd/pkg/model"
)

// migrate upgrades records written by older versions: legacy status names, missing order
// keys, missing ids and nil tags. It reports whether anything changed.
func migrate(tasks []model.Task, now time.Time) bool {
	changed := false
	for i := range tasks {
		t := &tasks[i]
		if t.ID == "" {
			t.ID = uuid.NewString()
			changed = true
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
			changed = true
		}
		if !t.Status.Valid() {
			st, ok := model.ParseStatus(string(t.Status))
			if !ok {
				st = model.StatusTodo
			}
			t.Status = st
			changed = true
		}
		if t.Order == 0 {
			t.Order = t.CreatedAt.UnixMilli() + int64(i)
			changed = true
		}
		if p := model.NormalizePriority(string(t.Priority)); p != t.Priority {
			t.Priority = p
			changed = true
		}
		if t.Tags == nil {
			t.Tags = []string{}
			changed = true
		}
	}
	return changed
}
