package tasks

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/gsd/pkg/model"
)

// NoTasksMessage is the whole report for a day without captures.
const NoTasksMessage = "No tasks captured today."

const writerPromptPrefix = "Create a professional daily work summary based on this data:\n\n"

// ProjectTime is the time captured for one project on one day.
type ProjectTime struct {
	Project string   `json:"project"`
	Minutes int      `json:"minutes"`
	Hours   float64  `json:"hours"`
	Tasks   []string `json:"tasks"`
}

// Report is the deterministic daily summary.
type Report struct {
	Date         time.Time     `json:"date"`
	Projects     []ProjectTime `json:"projects"`
	TotalMinutes int           `json:"totalMinutes"`
	TotalHours   float64       `json:"totalHours"`
	TaskCount    int           `json:"taskCount"`
}

// Hours converts minutes to hours rounded to one decimal place.
func Hours(minutes int) float64 {
	return math.Round(float64(minutes)/6) / 10
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// BuildReport groups the tasks created on day (in loc) by project, in order of first capture.
func BuildReport(tasks []model.Task, day time.Time, loc *time.Location) Report {
	day = day.In(loc)
	r := Report{Date: day, Projects: []ProjectTime{}}
	index := map[string]int{}
	for _, t := range tasks {
		if !sameDay(t.CreatedAt.In(loc), day) {
			continue
		}
		project := t.ProjectOrDefault()
		i, ok := index[project]
		if !ok {
			i = len(r.Projects)
			index[project] = i
			r.Projects = append(r.Projects, ProjectTime{Project: project})
		}
		p := &r.Projects[i]
		p.Minutes += t.Minutes()
		p.Tasks = append(p.Tasks, t.Task)
		r.TotalMinutes += t.Minutes()
		r.TaskCount++
	}
	for i := range r.Projects {
		r.Projects[i].Hours = Hours(r.Projects[i].Minutes)
	}
	r.TotalHours = Hours(r.TotalMinutes)
	return r
}

// Text renders the plain-text report.
func (r Report) Text() string {
	if r.TaskCount == 0 {
		return NoTasksMessage
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Daily Work Summary - %s\n\n", r.Date.Format("1/2/2006"))
	for _, p := range r.Projects {
		fmt.Fprintf(&b, "%s (%sh):\n", p.Project, formatHours(p.Hours))
		for _, task := range p.Tasks {
			fmt.Fprintf(&b, "  - %s\n", task)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nTotal time: %s hours\n", formatHours(r.TotalHours))
	fmt.Fprintf(&b, "Tasks captured: %d", r.TaskCount)
	return b.String()
}

// DailyReport builds the report for the day containing ref.
func (m *Manager) DailyReport(ctx context.Context, ref time.Time) (Report, error) {
	tasks, err := m.List(ctx)
	if err != nil {
		return Report{}, err
	}
	byCreation := make([]model.Task, len(tasks))
	copy(byCreation, tasks)
	sortByCreation(byCreation)
	return BuildReport(byCreation, ref, m.loc), nil
}

// DailySummary returns the report text, rewritten by the writer capability when one is
// available. The plain report is returned whenever the rewrite fails or comes back empty.
func (m *Manager) DailySummary(ctx context.Context, ref time.Time) (string, error) {
	r, err := m.DailyReport(ctx, ref)
	if err != nil {
		return "", err
	}
	text := r.Text()
	if r.TaskCount == 0 {
		return text, nil
	}
	w := m.caps.Writer()
	if w == nil {
		return text, nil
	}
	wctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	enhanced, err := w.Write(wctx, writerPromptPrefix+text)
	if err != nil {
		m.log.WithField("operation", "daily_summary").Warnf("Warning: writer failed, using plain summary: %v", err)
		return text, nil
	}
	if strings.TrimSpace(enhanced) == "" {
		return text, nil
	}
	return enhanced, nil
}

// ProjectBreakdown returns the per-project time for the day containing ref.
func (m *Manager) ProjectBreakdown(ctx context.Context, ref time.Time) ([]ProjectTime, error) {
	r, err := m.DailyReport(ctx, ref)
	if err != nil {
		return nil, err
	}
	return r.Projects, nil
}

func sortByCreation(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
}
