// Package server exposes the capture and task-management actions to the browser extension
// over loopback HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/harrisonrobin/gsd/pkg/ai"
	"github.com/harrisonrobin/gsd/pkg/auth"
	"github.com/harrisonrobin/gsd/pkg/extract"
	"github.com/harrisonrobin/gsd/pkg/google"
	"github.com/harrisonrobin/gsd/pkg/settings"
	"github.com/harrisonrobin/gsd/pkg/store"
	"github.com/harrisonrobin/gsd/pkg/tasks"
)

// Auth is the sign-in surface the server drives.
type Auth interface {
	AcquireToken(ctx context.Context, interactive bool) (*oauth2.Token, error)
	IsSignedIn(ctx context.Context) bool
	CurrentIdentity(ctx context.Context) (*auth.Identity, error)
	SignOut(ctx context.Context) error
}

// Directory lists the remote calendars and task lists the user can pick from.
type Directory interface {
	ListCalendars(ctx context.Context) ([]google.Calendar, error)
	ListTaskLists(ctx context.Context) ([]google.TaskList, error)
}

// Deps are the components behind the message actions. Auth and Directory may be nil when
// Google sync is not configured.
type Deps struct {
	Store     store.Store
	Tasks     *tasks.Manager
	Extractor *extract.Extractor
	Settings  *settings.Service
	AI        *ai.Capabilities
	Auth      Auth
	Directory Directory
}

type Options struct {
	AllowedOrigins []string
	Log            logrus.FieldLogger
	Now            func() time.Time
}

type Server struct {
	Deps
	log     logrus.FieldLogger
	now     func() time.Time
	origins []string
	router  *gin.Engine
	http    *http.Server
	actions map[string]action
}

func New(deps Deps, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		Deps:    deps,
		log:     opts.Log.WithField("component", "server"),
		now:     opts.Now,
		origins: opts.AllowedOrigins,
	}
	s.actions = s.registerActions()

	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests(), s.cors())

	router.GET("/health", s.handleHealth)

	api := router.Group("/api")
	{
		api.POST("/message", s.handleMessage)

		api.GET("/tasks", s.handleListTasks)
		api.GET("/tasks/:id", s.handleGetTask)
		api.PATCH("/tasks/:id/status", s.handleTaskStatus)
		api.POST("/tasks/:id/sync", s.handleSyncTask)
		api.DELETE("/tasks/:id", s.handleDeleteTask)
		api.GET("/summary", s.handleSummary)
		api.GET("/summary/projects", s.handleProjects)
		api.GET("/settings", s.handleGetSettings)
		api.PUT("/settings", s.handlePutSettings)
		api.GET("/ai", s.handleAIStatus)
	}

	s.router = router
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Listening on http://%s", addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("Shutting down")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.Tasks.Wait()
	return nil
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("Request handled")
	}
}

// cors admits the configured origins. Patterns use path.Match syntax, so
// "chrome-extension://*" matches any extension id.
func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && s.originAllowed(origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) originAllowed(origin string) bool {
	for _, pattern := range s.origins {
		if pattern == "*" || pattern == origin {
			return true
		}
		if ok, _ := path.Match(pattern, origin); ok {
			return true
		}
	}
	return false
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": s.now().Format(time.RFC3339)})
}
