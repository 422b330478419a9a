package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harrisonrobin/gsd/pkg/store"
	"github.com/harrisonrobin/gsd/pkg/tasks"
)

// respond writes a message-style reply with an HTTP status derived from err.
func respond(c *gin.Context, out gin.H, err error) {
	if err != nil {
		c.JSON(statusFor(err), failure(err))
		return
	}
	if out == nil {
		out = gin.H{}
	}
	out["success"] = true
	c.JSON(http.StatusOK, out)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errTaskNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tasks.ErrInvalidStatus), errors.Is(err, tasks.ErrInvalidValue),
		errors.Is(err, tasks.ErrEmptyTask), errors.Is(err, tasks.ErrFieldNotEditable):
		return http.StatusBadRequest
	case errors.Is(err, errGoogleUnavailable), errors.Is(err, tasks.ErrSyncUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleListTasks(c *gin.Context) {
	out, err := s.getTasks(c.Request.Context(), nil)
	respond(c, out, err)
}

func (s *Server) handleGetTask(c *gin.Context) {
	t, err := s.Tasks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond(c, nil, err)
		return
	}
	respond(c, gin.H{"task": t}, nil)
}

func (s *Server) handleTaskStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure(err))
		return
	}
	t, err := s.Tasks.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err == nil && t == nil {
		err = errTaskNotFound
	}
	respond(c, gin.H{"task": t}, err)
}

func (s *Server) handleSyncTask(c *gin.Context) {
	out, err := s.resync(c.Request.Context(), c.Param("id"))
	respond(c, out, err)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	respond(c, nil, s.Tasks.DeleteTask(c.Request.Context(), c.Param("id")))
}

func (s *Server) handleSummary(c *gin.Context) {
	ref, err := s.day(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, failure(err))
		return
	}
	summary, err := s.Tasks.DailySummary(c.Request.Context(), ref)
	respond(c, gin.H{"summary": summary}, err)
}

func (s *Server) handleProjects(c *gin.Context) {
	ref, err := s.day(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, failure(err))
		return
	}
	report, err := s.Tasks.DailyReport(c.Request.Context(), ref)
	respond(c, gin.H{"report": report}, err)
}

func (s *Server) handleGetSettings(c *gin.Context) {
	out, err := s.getSettings(c.Request.Context(), nil)
	respond(c, out, err)
}

func (s *Server) handlePutSettings(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, failure(err))
		return
	}
	cfg, err := s.Settings.Merge(c.Request.Context(), body)
	if err != nil {
		c.JSON(http.StatusBadRequest, failure(err))
		return
	}
	respond(c, gin.H{"settings": cfg}, nil)
}

func (s *Server) handleAIStatus(c *gin.Context) {
	out, err := s.checkAI(c.Request.Context(), nil)
	respond(c, out, err)
}
