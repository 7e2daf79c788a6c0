package handler

import (
	"net/http"
	"strings"

	"time-to-sell/internal/chart"
	"time-to-sell/internal/series"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

func (h *Handler) windowParam(c *gin.Context) (series.Window, bool) {
	raw := strings.TrimSpace(c.Query("window"))
	if raw == "" {
		return h.session.Window(), true
	}
	w, err := series.ParseWindow(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "window must be 1M, 3M, 6M, 1Y, 3Y, 5Y, ALL or YYYY-MM-DD"})
		return series.Window{}, false
	}
	return w, true
}

// GetSeries returns the stored price history for a target restricted to a window.
func (h *Handler) GetSeries(c *gin.Context) {
	if h.session == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session unavailable"})
		return
	}

	_, span := h.tracer.Start(c.Request.Context(), "handler.get-series")
	defer span.End()

	target, ok := parseTarget(c, c.Param("target"))
	if !ok {
		return
	}
	w, ok := h.windowParam(c)
	if !ok {
		return
	}
	span.SetAttributes(
		attribute.String("index_type", string(target)),
		attribute.String("window", w.String()),
	)

	points := h.session.PriceWindow(target, w)
	c.JSON(http.StatusOK, gin.H{
		"target": target,
		"window": w.String(),
		"points": points,
	})
}

// GetChart returns a PNG of close and moving averages over a window.
func (h *Handler) GetChart(c *gin.Context) {
	if h.session == nil || h.charts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chart renderer unavailable"})
		return
	}

	_, span := h.tracer.Start(c.Request.Context(), "handler.get-chart")
	defer span.End()

	target, ok := parseTarget(c, c.Param("target"))
	if !ok {
		return
	}
	w, ok := h.windowParam(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("index_type", string(target)))

	points := h.session.PriceWindow(target, w)
	if len(points) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no price history for " + string(target)})
		return
	}

	snap := h.session.Snapshot()
	img, err := h.charts.RenderPriceChart(points, chart.Options{
		Window:  w,
		AvgCost: snap.Position.AvgCost,
		ScoreMA: snap.ScoreMA,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, img.MimeType, img.Bytes)
}
