package handler

import (
	"context"
	"net/http"
	"time"

	"time-to-sell/internal/chart"
	"time-to-sell/internal/domain"
	"time-to-sell/internal/series"
	"time-to-sell/internal/session"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// SessionAPI is the part of session.Session the status API reads and drives.
type SessionAPI interface {
	Snapshot() session.Snapshot
	DisplayState(target domain.IndexType) domain.DisplayState
	Refresh(ctx context.Context) error
	OnTargetChanged(ctx context.Context, target domain.IndexType) error
	PriceWindow(target domain.IndexType, w series.Window) []domain.PricePoint
	Window() series.Window
}

type ChartRenderer interface {
	RenderPriceChart(points []domain.PricePoint, opts chart.Options) (*chart.Image, error)
}

// HealthReporter exposes the last scoring service health check.
type HealthReporter interface {
	Status() (healthy, known bool, lastErr error, checkedAt time.Time)
}

type Handler struct {
	tracer  trace.Tracer
	session SessionAPI
	charts  ChartRenderer
	health  HealthReporter
}

func New(
	tracer trace.Tracer,
	sess SessionAPI,
	charts ChartRenderer,
	health HealthReporter,
) *Handler {
	return &Handler{
		tracer:  tracer,
		session: sess,
		charts:  charts,
		health:  health,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/state", h.GetState)
	r.GET("/api/state/:target", h.GetTargetState)
	r.POST("/api/refresh", h.PostRefresh)
	r.POST("/api/target", h.PostTarget)
	r.GET("/api/targets/:target/series", h.GetSeries)
	r.GET("/api/targets/:target/chart.png", h.GetChart)
}

// Health reports process liveness and the last scoring service health check.
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.health == nil {
		c.JSON(http.StatusOK, body)
		return
	}

	healthy, known, lastErr, checkedAt := h.health.Status()
	upstream := gin.H{"known": known}
	if known {
		upstream["healthy"] = healthy
		upstream["checked_at"] = checkedAt
		if lastErr != nil {
			upstream["error"] = lastErr.Error()
		}
	}
	body["scoring_service"] = upstream
	c.JSON(http.StatusOK, body)
}

func parseTarget(c *gin.Context, raw string) (domain.IndexType, bool) {
	target, err := domain.ParseIndexType(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             err.Error(),
			"supported_targets": domain.SupportedTargets,
		})
		return "", false
	}
	return target, true
}
