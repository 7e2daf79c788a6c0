package mcp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"time-to-sell/internal/domain"
	"time-to-sell/internal/session"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestToolsListAndInvoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, sess := testServer()
	cs, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer cs.Close()

	tools, err := cs.ListTools(ctx, &sdkmcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("list tools failed: %v", err)
	}
	if len(tools.Tools) != 5 {
		t.Fatalf("expected 5 tools, got %d", len(tools.Tools))
	}

	res, err := cs.CallTool(ctx, &sdkmcp.CallToolParams{Name: "display_state_get", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("call tool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res.Content)
	}
	var state displayStateGetOutput
	if err := decodeStructured(res, &state); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if state.State.Target != domain.IndexSP500 || state.State.Status != domain.StatusDegraded {
		t.Fatalf("unexpected state: %+v", state.State)
	}
	if len(state.Reasons) != 1 {
		t.Fatalf("expected de-duplicated reasons, got %v", state.Reasons)
	}

	res, err = cs.CallTool(ctx, &sdkmcp.CallToolParams{Name: "session_select_target", Arguments: map[string]any{"target": "sp500-jpy"}})
	if err != nil {
		t.Fatalf("select tool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected select tool error: %+v", res.Content)
	}
	if len(sess.selected) != 1 || sess.selected[0] != domain.IndexSP500JPY {
		t.Fatalf("unexpected selections: %+v", sess.selected)
	}
	var out sessionOutput
	if err := decodeStructured(res, &out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.Snapshot.Primary != domain.IndexSP500JPY || len(out.Snapshot.States) != 2 {
		t.Fatalf("expected pair snapshot, got %+v", out.Snapshot)
	}
}

func TestSessionRefreshReportsCycleError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, sess := testServer()
	sess.refreshErr = errors.New("evaluate SP500: api error 500")
	cs, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer cs.Close()

	res, err := cs.CallTool(ctx, &sdkmcp.CallToolParams{Name: "session_refresh", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("refresh tool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("backend failure should not be a tool error: %+v", res.Content)
	}
	var out sessionOutput
	if err := decodeStructured(res, &out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.Error == "" || sess.refreshes != 1 {
		t.Fatalf("expected reported error after one refresh, got %+v (%d)", out, sess.refreshes)
	}
}

func TestSessionRefreshClosed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, sess := testServer()
	sess.refreshErr = session.ErrClosed
	cs, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer cs.Close()

	res, err := cs.CallTool(ctx, &sdkmcp.CallToolParams{Name: "session_refresh", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("unexpected protocol error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error for a closed session")
	}
}

func TestPriceWindowTool(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, _ := testServer()
	cs, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer cs.Close()

	res, err := cs.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "price_window_get",
		Arguments: map[string]any{"target": "SP500", "window": "1M", "limit": 10},
	})
	if err != nil {
		t.Fatalf("call tool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res.Content)
	}
	var out priceWindowGetOutput
	if err := decodeStructured(res, &out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.Window != "1M" || out.Count != 10 || len(out.Points) != 10 {
		t.Fatalf("unexpected window output: %+v", out)
	}
	if out.Points[9].Date != "2024-04-29" {
		t.Fatalf("expected the most recent points, last=%s", out.Points[9].Date)
	}
}

func TestToolsValidationFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, sess := testServer()
	cs, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer cs.Close()

	for _, params := range []*sdkmcp.CallToolParams{
		{Name: "session_select_target", Arguments: map[string]any{"target": "FTSE"}},
		{Name: "session_select_target", Arguments: map[string]any{"target": ""}},
		{Name: "price_window_get", Arguments: map[string]any{"target": "SP500", "window": "2W"}},
	} {
		res, err := cs.CallTool(ctx, params)
		if err != nil {
			t.Fatalf("unexpected protocol error: %v", err)
		}
		if !res.IsError {
			t.Fatalf("expected tool-level validation error for %+v", params.Arguments)
		}
	}
	if len(sess.selected) != 0 {
		t.Fatalf("session should not be touched, got %+v", sess.selected)
	}
}

func TestHTTPTransportRequiresToken(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, _ := testServer()
	ts := httptest.NewServer(NewHTTPTransportHandler(srv, HTTPHandlerConfig{AuthToken: "secret", RateLimitPerMin: 60}))
	defer ts.Close()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.URL,
		HTTPClient: &http.Client{Transport: &authRoundTripper{token: "secret"}},
	}, nil)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer cs.Close()

	res, err := cs.CallTool(ctx, &sdkmcp.CallToolParams{Name: "targets_list", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("call tool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res.Content)
	}

	if _, err := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "anon", Version: "1.0.0"}, nil).Connect(ctx, &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.URL,
		HTTPClient: &http.Client{Transport: &authRoundTripper{}},
	}, nil); err == nil {
		t.Fatal("expected unauthenticated connect to fail")
	}
}
