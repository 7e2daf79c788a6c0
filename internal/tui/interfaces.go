package tui

import (
	"context"

	"time-to-sell/internal/domain"
	"time-to-sell/internal/series"
	"time-to-sell/internal/session"
)

// SessionAPI is the orchestration session surface the TUI drives.
type SessionAPI interface {
	Snapshot() session.Snapshot
	Refresh(ctx context.Context) error
	OnTargetChanged(ctx context.Context, target domain.IndexType) error
	SetScoreMA(ctx context.Context, ma int) error
	SetWindow(w series.Window)
	PriceWindow(target domain.IndexType, w series.Window) []domain.PricePoint
	Subscribe() (<-chan session.Event, func())
}

// BacktestRunner runs a threshold strategy backtest on the scoring service.
type BacktestRunner interface {
	Backtest(ctx context.Context, req domain.BacktestRequest) (*domain.BacktestResult, error)
}

// Services bundles all service dependencies injected into the TUI.
type Services struct {
	Session  SessionAPI
	Backtest BacktestRunner
	Username string
}
