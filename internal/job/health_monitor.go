package job

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

const defaultHealthInterval = 30 * time.Second

type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthMonitor polls the scoring service health endpoint and logs
// transitions between reachable and unreachable.
type HealthMonitor struct {
	tracer   trace.Tracer
	checker  HealthChecker
	interval time.Duration
	log      zerolog.Logger

	mu        sync.Mutex
	healthy   bool
	known     bool
	lastErr   error
	checkedAt time.Time
}

func NewHealthMonitor(tracer trace.Tracer, checker HealthChecker, interval time.Duration, logger zerolog.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &HealthMonitor{
		tracer:   tracer,
		checker:  checker,
		interval: interval,
		log:      logger.With().Str("component", "health-monitor").Logger(),
	}
}

func (m *HealthMonitor) Start(ctx context.Context) {
	if m == nil || m.checker == nil {
		<-ctx.Done()
		return
	}

	m.check(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// Status returns the last observed health. known is false before the first
// check completes.
func (m *HealthMonitor) Status() (healthy, known bool, lastErr error, checkedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy, m.known, m.lastErr, m.checkedAt
}

func (m *HealthMonitor) check(ctx context.Context) {
	ctx, span := m.tracer.Start(ctx, "health-monitor.check")
	defer span.End()

	err := m.checker.Health(ctx)

	m.mu.Lock()
	wasHealthy, wasKnown := m.healthy, m.known
	m.healthy = err == nil
	m.known = true
	m.lastErr = err
	m.checkedAt = time.Now()
	m.mu.Unlock()

	switch {
	case err != nil && (wasHealthy || !wasKnown):
		m.log.Warn().Err(err).Msg("scoring service unreachable")
	case err == nil && !wasHealthy:
		m.log.Info().Msg("scoring service reachable")
	}
}
