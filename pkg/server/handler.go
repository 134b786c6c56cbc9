package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mikeboe/search-agent/pkg/database"
	"github.com/mikeboe/search-agent/pkg/research"
)

// SearchRequest is the body of POST /api/search and POST /api/quick.
type SearchRequest struct {
	Query         string `json:"query" binding:"required"`
	MaxIterations int    `json:"max_iterations"`
}

// StreamEvent is one server-sent event of /api/search/stream.
type StreamEvent struct {
	Status         string           `json:"status"`
	Message        string           `json:"message,omitempty"`
	ElapsedSeconds *int             `json:"elapsed_seconds,omitempty"`
	Result         *research.Result `json:"result,omitempty"`
}

type Handler struct {
	Service *Service
	MCP     http.Handler

	// tick is the progress interval of the stream endpoint.
	tick time.Duration
}

func NewHandler(s *Service, mcpHandler http.Handler) *Handler {
	return &Handler{Service: s, MCP: mcpHandler, tick: time.Second}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	if h.MCP != nil {
		r.Any("/mcp", gin.WrapH(h.MCP))
	}

	api := r.Group("/api")
	{
		api.POST("/search", h.search)
		api.GET("/search/stream", h.searchStream)
		api.POST("/quick", h.quickSearch)

		api.GET("/runs", h.listRuns)
		api.GET("/runs/:id", h.getRun)
		api.GET("/runs/:id/logs", h.getRunLogs)
	}
}

// pinger is implemented by stores that can report connectivity.
type pinger interface {
	Ping(ctx context.Context) error
}

func (h *Handler) health(c *gin.Context) {
	p, ok := h.Service.Store.(pinger)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	if err := p.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "ok"})
}

func (h *Handler) search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.Service.Research(c.Request.Context(), req.Query, req.MaxIterations)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) quickSearch(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.Service.QuickSearch(c.Request.Context(), req.Query, req.MaxIterations)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) searchStream(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}
	maxIterations := 0
	if raw := c.Query("max_iterations"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_iterations must be an integer"})
			return
		}
		maxIterations = n
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Transfer-Encoding", "chunked")

	h.writeEvent(c, StreamEvent{Status: "starting", Message: fmt.Sprintf("Starting search for: %s", query)})

	type outcome struct {
		res *research.Result
		err error
	}
	done := make(chan outcome, 1)

	// A client that disconnects does not abort the run.
	runCtx := context.WithoutCancel(c.Request.Context())
	go func() {
		res, err := h.Service.Research(runCtx, query, maxIterations)
		done <- outcome{res: res, err: err}
	}()

	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()
	start := time.Now()
	ticks := 0

	for {
		select {
		case out := <-done:
			if out.err != nil {
				h.writeEvent(c, StreamEvent{Status: "error", Message: out.err.Error()})
				return
			}
			h.writeEvent(c, StreamEvent{Status: "completed", Result: out.res})
			return
		case <-ticker.C:
			ticks++
			elapsed := int(time.Since(start).Seconds())
			h.writeEvent(c, StreamEvent{
				Status:         "processing",
				Message:        fmt.Sprintf("Processing... (iteration %d)", ticks),
				ElapsedSeconds: &elapsed,
			})
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *Handler) writeEvent(c *gin.Context, event StreamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	_, _ = c.Writer.Write([]byte("data: "))
	_, _ = c.Writer.Write(data)
	_, _ = c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}

func (h *Handler) listRuns(c *gin.Context) {
	runs, err := h.Service.ListRuns(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	// Return empty list instead of null
	if runs == nil {
		runs = []database.Run{}
	}
	c.JSON(http.StatusOK, runs)
}

func (h *Handler) getRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return
	}

	run, err := h.Service.GetRun(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *Handler) getRunLogs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return
	}

	logs, err := h.Service.GetRunLogs(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if logs == nil {
		logs = []database.LogEntry{}
	}
	c.JSON(http.StatusOK, logs)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, research.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, ErrStoreDisabled), errors.Is(err, database.ErrRunNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
