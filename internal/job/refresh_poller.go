package job

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

const defaultRefreshInterval = time.Minute

// Refresher is the session surface the poller drives.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshPoller re-runs the evaluation cycle on a fixed interval,
// independent of user interaction.
type RefreshPoller struct {
	tracer    trace.Tracer
	refresher Refresher
	interval  time.Duration
	log       zerolog.Logger
}

func NewRefreshPoller(tracer trace.Tracer, refresher Refresher, interval time.Duration, logger zerolog.Logger) *RefreshPoller {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return &RefreshPoller{
		tracer:    tracer,
		refresher: refresher,
		interval:  interval,
		log:       logger.With().Str("component", "refresh-poller").Logger(),
	}
}

// Start runs an immediate refresh, then one per tick. Blocks until ctx is
// cancelled.
func (p *RefreshPoller) Start(ctx context.Context) {
	if p.refresher == nil {
		p.log.Info().Msg("refresh poller disabled: no session")
		<-ctx.Done()
		return
	}

	p.log.Info().Dur("interval", p.interval).Msg("refresh poller starting")
	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("refresh poller stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *RefreshPoller) tick(ctx context.Context) {
	ctx, span := p.tracer.Start(ctx, "refresh-poller.tick")
	defer span.End()

	if err := p.refresher.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.log.Warn().Err(err).Msg("scheduled refresh failed")
	}
}
