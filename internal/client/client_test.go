package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"time-to-sell/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func newTestClient(t *testing.T, handler http.Handler, cache PriceCache) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{
		BaseURL:      srv.URL + "/",
		RetryMax:     0,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
		Cache:        cache,
		Tracer:       trace.NewNoopTracerProvider().Tracer("test"),
	})
}

func TestEvaluatePostsRequest(t *testing.T) {
	var got domain.EvaluationRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/evaluate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = fmt.Fprint(w, `{"status":"ready","scores":{"technical":64.2,"macro":55,"event_adjustment":0,"total":72.3,"label":"Consider profit-taking"},"price_series":[{"date":"2024-01-02","close":4742.83}],"request_id":"abc"}`)
	}), nil)

	resp, err := c.Evaluate(context.Background(), domain.EvaluationRequest{
		IndexType: domain.IndexSP500JPY,
		Position:  domain.Position{TotalQuantity: 10, AvgCost: 20000},
		ScoreMA:   200,
		RequestID: "abc",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.IndexSP500JPY, got.IndexType)
	assert.Equal(t, 10.0, got.TotalQuantity)
	assert.Equal(t, "abc", got.RequestID)
	assert.Equal(t, 72.3, resp.Scores.Total)
	assert.Equal(t, domain.BackendReady, resp.Status)
	assert.Len(t, resp.PriceSeries, 1)
}

func TestPriceHistoryUsesSlug(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orukan-jpy/price-history", r.URL.Path)
		_, _ = fmt.Fprint(w, `[{"date":"2024-01-03","close":2},{"date":"2024-01-02","close":1,"ma20":1.5}]`)
	}), nil)

	points, err := c.PriceHistory(context.Background(), domain.IndexOrukanJPY)
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.NotNil(t, points[1].MA20)
	assert.Equal(t, 1.5, *points[1].MA20)

	_, err = c.PriceHistory(context.Background(), domain.IndexType("DOW"))
	assert.Error(t, err)
}

type memCache struct {
	points  map[domain.IndexType][]domain.PricePoint
	corrupt map[domain.IndexType]bool
	sets    int
	evicted []domain.IndexType
}

func (m *memCache) Get(_ context.Context, target domain.IndexType) ([]domain.PricePoint, bool, error) {
	if m.corrupt[target] {
		return nil, false, errors.New("decode cached price history: unexpected end of JSON input")
	}
	p, ok := m.points[target]
	return p, ok, nil
}

func (m *memCache) Invalidate(_ context.Context, target domain.IndexType) error {
	m.evicted = append(m.evicted, target)
	delete(m.corrupt, target)
	delete(m.points, target)
	return nil
}

func (m *memCache) Set(_ context.Context, target domain.IndexType, points []domain.PricePoint) error {
	m.sets++
	m.points[target] = points
	return nil
}

func TestPriceHistoryCache(t *testing.T) {
	var hits int32
	cache := &memCache{points: map[domain.IndexType][]domain.PricePoint{}}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = fmt.Fprint(w, `[{"date":"2024-01-02","close":1}]`)
	}), cache)

	for i := 0; i < 3; i++ {
		points, err := c.PriceHistory(context.Background(), domain.IndexTOPIX)
		require.NoError(t, err)
		assert.Len(t, points, 1)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, 1, cache.sets)
}

func TestPriceHistoryEvictsUnreadableCacheEntry(t *testing.T) {
	var hits int32
	cache := &memCache{
		points:  map[domain.IndexType][]domain.PricePoint{},
		corrupt: map[domain.IndexType]bool{domain.IndexNikkei: true},
	}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = fmt.Fprint(w, `[{"date":"2024-01-02","close":33000}]`)
	}), cache)

	points, err := c.PriceHistory(context.Background(), domain.IndexNikkei)
	require.NoError(t, err)
	assert.Len(t, points, 1)
	assert.Equal(t, []domain.IndexType{domain.IndexNikkei}, cache.evicted)
	assert.Equal(t, 1, cache.sets)

	_, err = c.PriceHistory(context.Background(), domain.IndexNikkei)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second read is served from the rewritten entry")
}

func TestAPIErrorAndTransience(t *testing.T) {
	codes := map[int]bool{
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
		http.StatusTooManyRequests:     true,
		http.StatusBadRequest:          false,
		http.StatusInternalServerError: false,
		http.StatusNotFound:            false,
	}
	for code, transient := range codes {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream says no", code)
		}), nil)
		_, err := c.Evaluate(context.Background(), domain.EvaluationRequest{IndexType: domain.IndexSP500})
		require.Error(t, err)

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr), "status %d", code)
		assert.Equal(t, code, apiErr.StatusCode)
		assert.Equal(t, "upstream says no", apiErr.Body)
		assert.Equal(t, transient, IsTransient(err), "status %d", code)
	}
}

func TestIsTransientNetwork(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:1", RetryMax: 0})
	err := c.Health(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("decode response: bad json")))
	assert.False(t, IsTransient(fmt.Errorf("wrapped: %w", context.Canceled)))
}

func TestTransportRetriesGatewayErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, RetryMax: 1, RetryWaitMin: time.Millisecond, RetryWaitMax: time.Millisecond})
	require.NoError(t, c.Health(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNavAndBacktest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/nav/sp500-synthetic", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"asOf":"2024-01-02","priceUsd":4742.83,"usdJpy":141.2,"navJpy":24500,"source":"synthetic"}`)
	})
	mux.HandleFunc("/api/nav/emaxis-slim-sp500", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"asOf":"2024-01-02","navJpy":24480,"source":"official"}`)
	})
	mux.HandleFunc("/api/backtest", func(w http.ResponseWriter, r *http.Request) {
		var req domain.BacktestRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 80.0, req.SellThreshold)
		_, _ = fmt.Fprint(w, `{"summary":{"final_equity":1200,"hold_equity":1100,"total_return":20,"max_drawdown":-8.5,"trade_count":4},"equity_curve":[{"date":"2024-01-02","close":1000}]}`)
	})
	c := newTestClient(t, mux, nil)
	ctx := context.Background()

	syn, err := c.SyntheticNav(ctx)
	require.NoError(t, err)
	assert.Equal(t, 141.2, syn.USDJPY)

	fund, err := c.FundNav(ctx)
	require.NoError(t, err)
	assert.Equal(t, 24480.0, fund.NavJPY)

	bt, err := c.Backtest(ctx, domain.BacktestRequest{IndexType: domain.IndexSP500, SellThreshold: 80})
	require.NoError(t, err)
	assert.Equal(t, 4, bt.Summary.TradeCount)
	assert.Len(t, bt.EquityCurve, 1)
}

func TestRateLimiterHonoursContext(t *testing.T) {
	c := New(Options{BaseURL: "http://unused", RatePerSec: 0.001})
	// drain the single burst token
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Health(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsTransient(err))
}
