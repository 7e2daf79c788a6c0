package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"time-to-sell/internal/domain"
	"time-to-sell/internal/series"
	"time-to-sell/internal/session"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type stubSession struct {
	mu         sync.Mutex
	primary    domain.IndexType
	window     series.Window
	states     map[domain.IndexType]domain.DisplayState
	points     map[domain.IndexType][]domain.PricePoint
	refreshErr error
	refreshes  int
	selected   []domain.IndexType
	waitBudget time.Duration
}

func (s *stubSession) recordBudgetLocked(ctx context.Context) {
	if deadline, ok := ctx.Deadline(); ok {
		s.waitBudget = time.Until(deadline)
	}
}

func (s *stubSession) Snapshot() session.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := session.Snapshot{Primary: s.primary, ScoreMA: 200, Window: s.window.String()}
	for _, t := range session.TargetSet(s.primary) {
		if st, ok := s.states[t]; ok {
			snap.States = append(snap.States, st)
			continue
		}
		snap.States = append(snap.States, domain.DisplayState{Target: t, Status: domain.StatusLoading})
	}
	return snap
}

func (s *stubSession) DisplayState(target domain.IndexType) domain.DisplayState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[target]; ok {
		return st
	}
	return domain.DisplayState{Target: target, Status: domain.StatusLoading}
}

func (s *stubSession) PriceWindow(target domain.IndexType, w series.Window) []domain.PricePoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return series.Slice(s.points[target], w)
}

func (s *stubSession) Window() series.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

func (s *stubSession) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordBudgetLocked(ctx)
	s.refreshes++
	return s.refreshErr
}

func (s *stubSession) OnTargetChanged(ctx context.Context, target domain.IndexType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordBudgetLocked(ctx)
	s.selected = append(s.selected, target)
	s.primary = target
	return s.refreshErr
}

func dailyPoints(n int) []domain.PricePoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.PricePoint, n)
	for i := range out {
		out[i] = domain.PricePoint{Date: start.AddDate(0, 0, i).Format(time.DateOnly), Close: float64(100 + i)}
	}
	return out
}

func testServer() (*sdkmcp.Server, *stubSession) {
	sess := &stubSession{
		primary: domain.IndexSP500,
		window:  series.Window1Y,
		states: map[domain.IndexType]domain.DisplayState{
			domain.IndexSP500: {
				Target: domain.IndexSP500,
				Status: domain.StatusDegraded,
				Response: &domain.EvaluationResponse{
					Scores:  domain.Scores{Total: 72.3, Label: "hold"},
					Status:  domain.BackendDegraded,
					Reasons: []string{"TECHNICAL_PENDING", "TECHNICAL_PENDING"},
				},
				IsRetrying: true,
			},
		},
		points: map[domain.IndexType][]domain.PricePoint{
			domain.IndexSP500: dailyPoints(120),
		},
	}

	return NewServer(nil, sess, ServerConfig{RequestTimeout: time.Second}), sess
}

func connectInMemory(ctx context.Context, srv *sdkmcp.Server) (*sdkmcp.ClientSession, context.CancelFunc, error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = srv.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return session, cancel, nil
}

type authRoundTripper struct {
	token string
	base  http.RoundTripper
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.token != "" {
		clone.Header.Set("Authorization", "Bearer "+t.token)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

func decodeResourceJSON(result *sdkmcp.ReadResourceResult, out any) error {
	if len(result.Contents) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(result.Contents[0].Text), out)
}

func decodeStructured(result *sdkmcp.CallToolResult, out any) error {
	raw, err := json.Marshal(result.StructuredContent)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
