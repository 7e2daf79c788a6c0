package mcp

import (
	"fmt"
	"strings"

	"time-to-sell/internal/domain"
	"time-to-sell/internal/series"
	"time-to-sell/internal/session"
	"time-to-sell/internal/status"
)

const (
	defaultPointLimit = 260
	maxPointLimit     = 2000
)

type targetInfo struct {
	Target  domain.IndexType `json:"target"`
	Name    string           `json:"name"`
	Slug    string           `json:"slug"`
	Pair    domain.IndexType `json:"pair,omitempty"`
	HasNAV  bool             `json:"has_nav"`
	Active  bool             `json:"active"`
	Primary bool             `json:"primary"`
}

type targetsListInput struct{}

type targetsListOutput struct {
	Primary domain.IndexType `json:"primary"`
	Targets []targetInfo     `json:"targets"`
}

type displayStateGetInput struct {
	Target string `json:"target,omitempty" jsonschema:"index type (e.g. SP500, sp500_jpy); defaults to the primary target"`
}

type displayStateGetOutput struct {
	State   domain.DisplayState `json:"state"`
	Reasons []string            `json:"reasons,omitempty"`
}

type sessionRefreshInput struct{}

type sessionOutput struct {
	Snapshot session.Snapshot `json:"snapshot"`
	Error    string           `json:"error,omitempty"`
}

type sessionSelectTargetInput struct {
	Target string `json:"target" jsonschema:"index type to make primary (e.g. TOPIX, orukan_jpy)"`
}

type priceWindowGetInput struct {
	Target string `json:"target" jsonschema:"index type (e.g. SP500, NIKKEI)"`
	Window string `json:"window,omitempty" jsonschema:"1M, 3M, 6M, 1Y, 3Y, 5Y, ALL or a YYYY-MM-DD start; defaults to the session window"`
	Limit  int    `json:"limit,omitempty" jsonschema:"keep only the most recent points, max 2000"`
}

type priceWindowGetOutput struct {
	Target domain.IndexType    `json:"target"`
	Window string              `json:"window"`
	Count  int                 `json:"count"`
	Points []domain.PricePoint `json:"points"`
}

func normalizeTarget(raw string) (domain.IndexType, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("target is required")
	}
	return domain.ParseIndexType(raw)
}

func normalizeWindow(raw string, fallback series.Window) (series.Window, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return series.ParseWindow(raw)
}

func normalizePointLimit(limit int) int {
	if limit <= 0 {
		return defaultPointLimit
	}
	if limit > maxPointLimit {
		return maxPointLimit
	}
	return limit
}

func listTargets(snap session.Snapshot) targetsListOutput {
	active := make(map[domain.IndexType]bool, len(snap.States))
	for _, st := range snap.States {
		active[st.Target] = true
	}
	out := targetsListOutput{Primary: snap.Primary}
	for _, t := range domain.SupportedTargets {
		pair, _ := domain.PairOf(t)
		out.Targets = append(out.Targets, targetInfo{
			Target:  t,
			Name:    t.DisplayName(),
			Slug:    t.HistorySlug(),
			Pair:    pair,
			HasNAV:  t.HasNAV(),
			Active:  active[t],
			Primary: t == snap.Primary,
		})
	}
	return out
}

func describeState(state domain.DisplayState) displayStateGetOutput {
	out := displayStateGetOutput{State: state}
	if state.Response != nil {
		out.Reasons = status.Explain(state.Response.Reasons)
	}
	return out
}

func tailPoints(points []domain.PricePoint, limit int) []domain.PricePoint {
	if len(points) > limit {
		return points[len(points)-limit:]
	}
	return points
}
