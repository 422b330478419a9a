package model

// Settings is the singleton user configuration kept in the local store.
type Settings struct {
	AIEnabled          bool   `json:"aiEnabled"`
	DefaultDuration    int    `json:"defaultDuration"`
	GoogleSyncEnabled  bool   `json:"googleSyncEnabled"`
	CalendarEnabled    bool   `json:"calendarEnabled"`
	SelectedCalendarID string `json:"selectedCalendarId,omitempty"`
	SelectedTaskListID string `json:"selectedTaskListId,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		AIEnabled:         true,
		DefaultDuration:   DefaultDurationMinutes,
		GoogleSyncEnabled: true,
		CalendarEnabled:   false,
	}
}

// TaskListID returns the selected remote task list, or the API's default list alias.
func (s Settings) TaskListID() string {
	if s.SelectedTaskListID != "" {
		return s.SelectedTaskListID
	}
	return "@default"
}
