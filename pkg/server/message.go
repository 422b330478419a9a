package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/harrisonrobin/gsd/pkg/auth"
	"github.com/harrisonrobin/gsd/pkg/capture"
	"github.com/harrisonrobin/gsd/pkg/jobs"
	"github.com/harrisonrobin/gsd/pkg/model"
	"github.com/harrisonrobin/gsd/pkg/store"
)

const (
	aiRemediation = "AI features need an OpenAI-compatible completion service. Start one (for example Ollama), " +
		"set ai.base_url and ai.model in ~/.config/gsd/config.yaml, then check again. " +
		"Captures still work without it and use basic extraction."
	isoMillis = "2006-01-02T15:04:05.000Z07:00"
)

var (
	errTaskNotFound      = errors.New("task not found")
	errGoogleUnavailable = errors.New("google sync is not configured")
	errUnknownAction     = errors.New("unknown action")
)

// action handles one message type. The returned payload is merged into {success: true}.
type action func(ctx context.Context, payload json.RawMessage) (gin.H, error)

// envelope is a runtime message. Arguments are either nested under data or sent alongside
// the action name.
type envelope struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

func (s *Server) registerActions() map[string]action {
	return map[string]action{
		"captureTask":       s.captureTask,
		"quickCapture":      s.quickCapture,
		"processScreenshot": s.processScreenshot,
		"processAudio":      s.processAudio,
		"captureScreenshot": s.captureScreenshot,
		"generateSummary":   s.generateSummary,
		"getLastSummary":    s.getLastSummary,
		"summarizeText":     s.summarizeText,
		"checkAI":           s.checkAI,

		"getTasks":         s.getTasks,
		"updateTaskStatus": s.updateTaskStatus,
		"updateTaskField":  s.updateTaskField,
		"reorderTasks":     s.reorderTasks,
		"moveTask":         s.moveTask,
		"deleteTask":       s.deleteTask,
		"syncTask":         s.syncTask,

		"getSettings":         s.getSettings,
		"saveSettings":        s.saveSettings,
		"resetData":           s.resetData,
		"getProjectBreakdown": s.getProjectBreakdown,

		"signIn":              s.signIn,
		"authenticateGoogle":  s.signIn,
		"signOut":             s.signOut,
		"signOutGoogle":       s.signOut,
		"checkAuth":           s.checkAuth,
		"getGoogleAuthStatus": s.checkAuth,
		"getGoogleCalendars":  s.getCalendars,
		"getGoogleTaskLists":  s.getTaskLists,
	}
}

func (s *Server) handleMessage(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, failure(err))
		return
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Action == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid message"})
		return
	}
	act, ok := s.actions[env.Action]
	if !ok {
		c.JSON(http.StatusBadRequest, failure(fmt.Errorf("%w: %s", errUnknownAction, env.Action)))
		return
	}

	payload := env.Data
	if len(payload) == 0 || string(payload) == "null" {
		payload = body
	}

	log := s.log.WithField("action", env.Action)
	log.Debug("Received message")
	out, err := act(c.Request.Context(), payload)
	if err != nil {
		log.WithError(err).Warn("Action failed")
		c.JSON(http.StatusOK, failure(err))
		return
	}
	if out == nil {
		out = gin.H{}
	}
	out["success"] = true
	c.JSON(http.StatusOK, out)
}

func failure(err error) gin.H {
	return gin.H{"success": false, "error": err.Error()}
}

// decode unmarshals and validates the action arguments.
func decode(payload json.RawMessage, v any) error {
	if err := binding.JSON.BindBody(payload, v); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

func (s *Server) stamp(c model.CaptureContext) model.CaptureContext {
	if c.Timestamp == "" {
		c.Timestamp = s.now().UTC().Format(isoMillis)
	}
	return c
}

func (s *Server) captureTask(ctx context.Context, payload json.RawMessage) (gin.H, error) {
	var req struct {
		SelectedText string `json:"selectedText" binding:"required"`
		URL          string `json:"url"`
		Title        string `json:"title"`
		Timestamp    string `json:"timestamp"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	cc := s.stamp(model.CaptureContext{URL: req.URL, Title: req.Title, Timestamp: req.Timestamp})
	saved, err := s.Tasks.SaveTask(ctx, s.Extractor.FromText(ctx, req.SelectedText, cc))
	if err != nil {
		return nil, err
	}
	return gin.H{"task": saved}, nil
}

func (s *Server) quickCapture(ctx context.Context, payload json.RawMessage) (gin.H, error) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	cc := s.stamp(model.CaptureContext{Title: "Quick Capture", URL: "manual"})
	saved, err := s.Tasks.SaveTask(ctx, s.Extractor.FromText(ctx, req.Text, cc))
	if err != nil {
		return nil, err
	}
	return gin.H{"task": saved}, nil
}

func (s *Server) saveAll(ctx context.Context, extracted []model.Task) ([]model.Task, error) {
	saved := make([]model.Task, 0, len(extracted))
	for _, t := range extracted {
		out, err := s.Tasks.SaveTask(ctx, t)
		if err != nil {
			return saved, err
		}
		saved = append(saved, out)
	}
	return saved, nil
}

func (s *Server) processScreenshot(ctx context.Context, payload json.RawMessage) (gin.H, error) {
	var req struct {
		ImageData string               `json:"imageData" binding:"required"`
		Context   model.CaptureContext `json:"context"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	saved, err := s.saveAll(ctx, s.Extractor.FromImage(ctx, req.ImageData, s.stamp(req.Context)))
	if err != nil {
		return nil, err
	}
	s.log.WithField("count", len(saved)).Info("Screenshot tasks saved")
	return gin.H{"tasks": saved}, nil
}

func (s *Server) processAudio(ctx context.Context, payload json.RawMessage) (gin.H, error) {
	var req struct {
		AudioData string               `json:"audioData" binding:"required"`
		Context   model.CaptureContext `json:"context"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	saved, err := s.saveAll(ctx, s.Extractor.FromAudio(ctx, req.AudioData, s.stamp(req.Context)))
	if err != nil {
		return nil, err
	}
	s.log.WithField("count", len(saved)).Info("Audio tasks saved")
	return gin.H{"tasks": saved}, nil
}

func (s *Server) captureScreenshot(ctx context.Context, payload json.RawMessage) (gin.H, error) {
	var req struct {
		ImageData string         `json:"imageData" binding:"required"`
		Region    capture.Region `json:"region"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	cropped, err := capture.Crop(req.ImageData, req.Region)
	if err != nil {
		return nil, err
	}
	return gin.H{"imageData": cropped}, nil
}

func (s *Server) generateSummary(ctx context.Context, _ json.RawMessage) (gin.H, error) {
	summary, err := s.Tasks.DailySummary(ctx, s.now())
	if err != nil {
		return nil, err
	}
	return gin.H{"summary": summary}, nil
}

func (s *Server) getLastSummary(ctx context.Context, _ json.RawMessage) (gin.H, error) {
	last, ok, err := jobs.Last(ctx, s.Store)
	if err != nil {
		return nil, err
	}
	if !ok {
		return gin.H{"summary": nil}, nil
	}
	return gin.H{"summary": last}, nil
}

func (s *Server) summarizeText(ctx context.Context, payload json.RawMessage) (gin.H, error) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	return gin.H{"summary": s.Extractor.Summarize(ctx, req.Text)}, nil
}

func (s *Server) checkAI(ctx context.Context, _ json.RawMessage) (gin.H, error) {
	st := s.AI.Init(ctx)
	out := gin.H{
		"available":     st.Available,
		"hasPrompt":     st.HasPrompt,
		"hasSummarizer": st.HasSummarizer,
		"hasWriter":     st.HasWriter,
		"hasMultimodal": st.HasMultimodal,
	}
	if st.Error != "" {
		out["error"] = st.Error
	}
	if !st.Available {
		out["remediation"] = aiRemediation
	}
	return out, nil
}

func (s *Server) getTasks(ctx context.Context, _ json.RawMessage) (gin.H, error) {
	ts, err := s.Tasks.List(ctx)
	if err != nil {
		return nil, err
	}
	return gin.H{"tasks": ts}, nil
}

func (s *Server) updateTaskStatus(ctx context.Context, payload json.RawMessage) (gin.H, error) {
	var req struct {
		TaskID    string `json:"taskId" binding:"required"`
		NewStatus string `json:"newStatus" binding:"required"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	t, err := s.Tasks.SetStatus(ctx, req.TaskID, req.NewStatus)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errTaskNotFound
	}
	return gin.H{"task": t}, nil
}

func (s *Server) updateTaskField(ctx context.Context, payload json.RawMessage) (gin.H, error) {
	var req struct {
		TaskID string `json:"taskId" binding:"required"`
		Field  string `json:"field" binding:"required"`
		Value  any    `json:"value"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	t, err := s.Tasks.UpdateField(ctx, req.TaskID, req.Field, req.Value)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errTaskNotFound
	}
	return gin.H{"task": t}, nil
}

func (s *Server) reorderTasks(ctx context.Context, payload json.RawMessage) (gin.H, error) {
	var req struct {
		DraggedID string `json:"draggedId" binding:"required"`
		TargetID  string `json:"targetId" binding:"required"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if err := s.Tasks.Reorder(ctx, req.DraggedID, req.TargetID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) moveTask(ctx context.Context, payload json.RawMessage) (gin.H, error) {
	var req struct {
		TaskID string `json:"taskId" binding:"required"`
		Status string `json:"status" binding:"required"`
		Index  int    `json:"index"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	t, err := s.Tasks.MoveTo(ctx, req.TaskID, req.Status, req.Index)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errTaskNotFound
	}
	return gin.H{"task": t}, nil
}

func (s *Server) deleteTask(ctx context.Context, payload json.RawMessage) (gin.H, error) {
	var req struct {
		TaskID string `json:"taskId" binding:"required"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	return nil, s.Tasks.DeleteTask(ctx, req.TaskID)
}

// syncReport is the JSON form of a sync outcome.
type syncReport struct {
	model.SyncResult
	FullySynced   bool   `json:"fullySynced"`
	CalendarError string `json:"calendarError,omitempty"`
	TaskError     string `json:"taskError,omitempty"`
}

func newSyncReport(res model.SyncResult) syncReport {
	r := syncReport{SyncResult: res, FullySynced: res.FullySynced()}
	if res.CalendarErr != nil {
		r.CalendarError = res.CalendarErr.Error()
	}
	if res.TaskErr != nil {
		r.TaskError = res.TaskErr.Error()
	}
	return r
}

func (s *Server) resync(ctx context.Context, id string) (gin.H, error) {
	if s.Auth == nil {
		return nil, errGoogleUnavailable
	}
	if !s.Auth.IsSignedIn(ctx) {
		return nil, auth.ErrNotAuthenticated
	}
	t, res, err := s.Tasks.Resync(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return gin.H{"task": t, "sync": newSyncReport(res)}, nil
}

func (s *Server) syncTask(ctx context.Context, payload json.RawMessage) (gin.H, error) {
	var req struct {
		TaskID string `json:"taskId" binding:"required"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	return s.resync(ctx, req.TaskID)
}

func (s *Server) getSettings(ctx context.Context, _ json.RawMessage) (gin.H, error) {
	cfg, err := s.Settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	return gin.H{"settings": cfg}, nil
}

func (s *Server) saveSettings(ctx context.Context, payload json.RawMessage) (gin.H, error) {
	var req struct {
		Settings json.RawMessage `json:"settings"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	patch := req.Settings
	if len(patch) == 0 {
		patch = payload
	}
	cfg, err := s.Settings.Merge(ctx, patch)
	if err != nil {
		return nil, err
	}
	return gin.H{"settings": cfg}, nil
}

func (s *Server) resetData(ctx context.Context, _ json.RawMessage) (gin.H, error) {
	if err := s.Settings.Reset(ctx); err != nil {
		return nil, err
	}
	s.log.Info("All local data cleared")
	return nil, nil
}

// day parses an optional YYYY-MM-DD date in the server's zone, defaulting to today.
func (s *Server) day(date string) (time.Time, error) {
	now := s.now()
	if date == "" {
		return now, nil
	}
	d, err := time.ParseInLocation("2006-01-02", date, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return d, nil
}

func (s *Server) getProjectBreakdown(ctx context.Context, payload json.RawMessage) (gin.H, error) {
	var req struct {
		Date string `json:"date"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	ref, err := s.day(req.Date)
	if err != nil {
		return nil, err
	}
	report, err := s.Tasks.DailyReport(ctx, ref)
	if err != nil {
		return nil, err
	}
	return gin.H{"projects": report.Projects, "totalMinutes": report.TotalMinutes, "totalHours": report.TotalHours}, nil
}

func (s *Server) signIn(ctx context.Context, _ json.RawMessage) (gin.H, error) {
	if s.Auth == nil {
		return nil, errGoogleUnavailable
	}
	if _, err := s.Auth.AcquireToken(ctx, true); err != nil {
		return nil, err
	}
	id, err := s.Auth.CurrentIdentity(ctx)
	if err != nil {
		s.log.Warnf("Warning: signed in but could not load user info: %v", err)
	}
	return gin.H{"userInfo": id}, nil
}

func (s *Server) signOut(ctx context.Context, _ json.RawMessage) (gin.H, error) {
	if s.Auth == nil {
		return nil, errGoogleUnavailable
	}
	return nil, s.Auth.SignOut(ctx)
}

func (s *Server) checkAuth(ctx context.Context, _ json.RawMessage) (gin.H, error) {
	out := gin.H{"isAuthenticated": false, "userInfo": nil}
	if s.Auth == nil || !s.Auth.IsSignedIn(ctx) {
		return out, nil
	}
	out["isAuthenticated"] = true
	if id, err := s.Auth.CurrentIdentity(ctx); err == nil {
		out["userInfo"] = id
	} else {
		s.log.Warnf("Warning: could not load user info: %v", err)
	}
	return out, nil
}

func (s *Server) getCalendars(ctx context.Context, _ json.RawMessage) (gin.H, error) {
	if s.Directory == nil {
		return nil, errGoogleUnavailable
	}
	cals, err := s.Directory.ListCalendars(ctx)
	if err != nil {
		return nil, err
	}
	return gin.H{"calendars": cals}, nil
}

func (s *Server) getTaskLists(ctx context.Context, _ json.RawMessage) (gin.H, error) {
	if s.Directory == nil {
		return nil, errGoogleUnavailable
	}
	lists, err := s.Directory.ListTaskLists(ctx)
	if err != nil {
		return nil, err
	}
	return gin.H{"taskLists": lists}, nil
}
