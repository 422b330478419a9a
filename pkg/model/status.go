package model

import "strings"

// Status is the Kanban column a task sits in.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Statuses lists the columns in board order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// Valid reports whether s is one of the canonical statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// ParseStatus accepts canonical names as well as the older pending/in-progress/completed
// vocabulary, returning false for anything else.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "todo", "pending":
		return StatusTodo, true
	case "in_progress", "in-progress", "in progress":
		return StatusInProgress, true
	case "done", "completed":
		return StatusDone, true
	}
	return "", false
}
