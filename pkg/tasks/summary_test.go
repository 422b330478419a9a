package tasks

import (
	"testing"
	"time"

	"github.com/harrisonrobin/gsd/pkg/model"
)

func TestHours(t *testing.T) {
	cases := map[int]float64{0: 0, 30: 0.5, 45: 0.8, 60: 1, 100: 1.7, 125: 2.1}
	for minutes, want := range cases {
		if got := Hours(minutes); got != want {
			t.Errorf("Hours(%d) = %v, want %v", minutes, got, want)
		}
	}
}

func TestBuildReport(t *testing.T) {
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }
	tasks := []model.Task{
		{Task: "Write design doc", Project: "Alpha", EstimatedDuration: 60, CreatedAt: at(9)},
		{Task: "Email Bob", CreatedAt: at(10)},
		{Task: "Yesterday", Project: "Alpha", EstimatedDuration: 60, CreatedAt: at(-3)},
		{Task: "Review", Project: "Alpha", EstimatedDuration: 45, CreatedAt: at(11)},
		{Task: "Plan", Project: "Beta", EstimatedDuration: 20, CreatedAt: at(12)},
	}

	r := BuildReport(tasks, at(15), time.UTC)
	if r.TaskCount != 4 {
		t.Fatalf("TaskCount = %d, want 4", r.TaskCount)
	}
	if r.TotalMinutes != 60+30+45+20 {
		t.Errorf("TotalMinutes = %d", r.TotalMinutes)
	}
	sum := 0
	for _, p := range r.Projects {
		sum += p.Minutes
	}
	if sum != r.TotalMinutes {
		t.Errorf("project minutes %d do not add up to %d", sum, r.TotalMinutes)
	}

	want := "Daily Work Summary - 5/4/2026\n\n" +
		"Alpha (1.8h):\n  - Write design doc\n  - Review\n\n" +
		"General (0.5h):\n  - Email Bob\n\n" +
		"Beta (0.3h):\n  - Plan\n\n" +
		"\nTotal time: 2.6 hours\nTasks captured: 4"
	if got := r.Text(); got != want {
		t.Errorf("Text() =\n%s\nwant\n%s", got, want)
	}
}

func TestBuildReportEmpty(t *testing.T) {
	r := BuildReport(nil, time.Now(), time.UTC)
	if r.Text() != NoTasksMessage {
		t.Errorf("Text() = %q", r.Text())
	}
}
