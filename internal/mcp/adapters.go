package mcp

import (
	"context"

	"time-to-sell/internal/domain"
	"time-to-sell/internal/series"
	"time-to-sell/internal/session"
)

// StateReader exposes what a renderer reads from the orchestration session.
type StateReader interface {
	Snapshot() session.Snapshot
	DisplayState(target domain.IndexType) domain.DisplayState
	PriceWindow(target domain.IndexType, w series.Window) []domain.PricePoint
	Window() series.Window
}

// SessionDriver triggers fetch cycles.
type SessionDriver interface {
	Refresh(ctx context.Context) error
	OnTargetChanged(ctx context.Context, target domain.IndexType) error
}

// Session is satisfied by *session.Session.
type Session interface {
	StateReader
	SessionDriver
}
