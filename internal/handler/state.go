package handler

import (
	"errors"
	"net/http"
	"strings"

	"time-to-sell/internal/session"
	"time-to-sell/internal/status"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type targetRequest struct {
	Target string `json:"target"`
}

// GetState returns the primary target, its pair and every display state.
func (h *Handler) GetState(c *gin.Context) {
	if h.session == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session unavailable"})
		return
	}

	_, span := h.tracer.Start(c.Request.Context(), "handler.get-state")
	defer span.End()

	c.JSON(http.StatusOK, h.session.Snapshot())
}

// GetTargetState returns the resolved status, the response on screen and its reasons.
func (h *Handler) GetTargetState(c *gin.Context) {
	if h.session == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session unavailable"})
		return
	}

	_, span := h.tracer.Start(c.Request.Context(), "handler.get-target-state")
	defer span.End()

	target, ok := parseTarget(c, c.Param("target"))
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("index_type", string(target)))

	state := h.session.DisplayState(target)
	var reasons []string
	if state.Response != nil {
		reasons = status.Explain(state.Response.Reasons)
	}
	c.JSON(http.StatusOK, gin.H{
		"state":   state,
		"reasons": reasons,
	})
}

// PostRefresh cancels any pending retry and runs a fresh fetch cycle.
func (h *Handler) PostRefresh(c *gin.Context) {
	if h.session == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.post-refresh")
	defer span.End()

	if err := h.session.Refresh(ctx); err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.Snapshot())
}

// PostTarget selects a new primary target; responses for the old one are dropped.
func (h *Handler) PostTarget(c *gin.Context) {
	if h.session == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.post-target")
	defer span.End()

	var body targetRequest
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Target) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"target\": \"<index>\"}"})
		return
	}
	target, ok := parseTarget(c, body.Target)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("index_type", string(target)))

	if err := h.session.OnTargetChanged(ctx, target); err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.Snapshot())
}

// writeSessionError maps a failed cycle to a response. A backend failure is
// already reflected in the display state, so the snapshot is still returned.
func writeSessionError(c *gin.Context, err error) {
	if errors.Is(err, session.ErrClosed) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}
