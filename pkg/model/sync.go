package model

// SyncResult is the outcome of mirroring one task to the remote services.
// Failures are carried as data; a zero value means nothing was attempted.
type SyncResult struct {
	CalendarAttempted bool   `json:"calendarAttempted"`
	TaskAttempted     bool   `json:"taskAttempted"`
	CalendarEventID   string `json:"calendarEventId,omitempty"`
	RemoteTaskID      string `json:"remoteTaskId,omitempty"`
	CalendarErr       error  `json:"-"`
	TaskErr           error  `json:"-"`
}

// Attempted reports whether either side was tried.
func (r SyncResult) Attempted() bool {
	return r.CalendarAttempted || r.TaskAttempted
}

// FullySynced is true only when every attempted side produced a remote id.
func (r SyncResult) FullySynced() bool {
	if !r.Attempted() {
		return false
	}
	if r.CalendarAttempted && r.CalendarEventID == "" {
		return false
	}
	if r.TaskAttempted && r.RemoteTaskID == "" {
		return false
	}
	return true
}
