// Package client talks to the remote scoring service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"time-to-sell/internal/domain"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"
)

const maxErrorBody = 2048

// APIError is a non-2xx reply from the scoring service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("scoring api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("scoring api: status %d: %s", e.StatusCode, e.Body)
}

// IsTransient reports whether err is worth feeding into the retry schedule:
// network failures, gateway errors and rate limiting.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests:
			return true
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return false
}

// PriceCache is an optional short-TTL cache for price-history responses.
type PriceCache interface {
	Get(ctx context.Context, target domain.IndexType) ([]domain.PricePoint, bool, error)
	Set(ctx context.Context, target domain.IndexType, points []domain.PricePoint) error
	Invalidate(ctx context.Context, target domain.IndexType) error
}

type Options struct {
	BaseURL      string
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	RatePerSec   float64
	Cache        PriceCache
	Tracer       trace.Tracer
	HTTPClient   *http.Client
}

type Client struct {
	baseURL string
	http    *retryablehttp.Client
	limiter *rate.Limiter
	cache   PriceCache
	tracer  trace.Tracer
}

func New(opts Options) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	if rc.RetryMax < 0 {
		rc.RetryMax = 0
	}
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	rc.Logger = nil
	// Hand the final response back so status codes survive exhaustion.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.HTTPClient != nil {
		rc.HTTPClient = opts.HTTPClient
	}

	var limiter *rate.Limiter
	if opts.RatePerSec > 0 {
		burst := int(opts.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("scoring-client")
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    rc,
		limiter: limiter,
		cache:   opts.Cache,
		tracer:  tracer,
	}
}

// Evaluate posts req to /api/evaluate.
func (c *Client) Evaluate(ctx context.Context, req domain.EvaluationRequest) (*domain.EvaluationResponse, error) {
	ctx, span := c.tracer.Start(ctx, "scoring-client.evaluate", trace.WithAttributes(
		attribute.String("index_type", string(req.IndexType)),
		attribute.String("request_id", req.RequestID),
	))
	defer span.End()

	var out domain.EvaluationResponse
	if err := c.do(ctx, http.MethodPost, "/api/evaluate", req, &out); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("evaluate %s: %w", req.IndexType, err)
	}
	span.SetAttributes(attribute.String("status", string(out.Status)))
	return &out, nil
}

// PriceHistory fetches the full daily series for target. Cached responses are
// served when a cache is configured.
func (c *Client) PriceHistory(ctx context.Context, target domain.IndexType) ([]domain.PricePoint, error) {
	ctx, span := c.tracer.Start(ctx, "scoring-client.price-history", trace.WithAttributes(
		attribute.String("index_type", string(target)),
	))
	defer span.End()

	if !target.IsValid() {
		return nil, fmt.Errorf("unsupported index: %s", target)
	}

	if c.cache != nil {
		points, hit, err := c.cache.Get(ctx, target)
		switch {
		case err != nil:
			// unreadable entries are evicted so the refetch below replaces them
			span.AddEvent("cache get failed")
			if derr := c.cache.Invalidate(ctx, target); derr != nil {
				span.AddEvent("cache invalidate failed")
			}
		case hit:
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return points, nil
		}
	}

	var points []domain.PricePoint
	if err := c.do(ctx, http.MethodGet, "/api/"+target.HistorySlug()+"/price-history", nil, &points); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("price history %s: %w", target, err)
	}
	if c.cache != nil && len(points) > 0 {
		if err := c.cache.Set(ctx, target, points); err != nil {
			span.AddEvent("cache set failed")
		}
	}
	return points, nil
}

func (c *Client) SyntheticNav(ctx context.Context) (*domain.SyntheticNav, error) {
	ctx, span := c.tracer.Start(ctx, "scoring-client.synthetic-nav")
	defer span.End()

	var out domain.SyntheticNav
	if err := c.do(ctx, http.MethodGet, "/api/nav/sp500-synthetic", nil, &out); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("synthetic nav: %w", err)
	}
	return &out, nil
}

func (c *Client) FundNav(ctx context.Context) (*domain.FundNav, error) {
	ctx, span := c.tracer.Start(ctx, "scoring-client.fund-nav")
	defer span.End()

	var out domain.FundNav
	if err := c.do(ctx, http.MethodGet, "/api/nav/emaxis-slim-sp500", nil, &out); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("fund nav: %w", err)
	}
	return &out, nil
}

func (c *Client) Backtest(ctx context.Context, req domain.BacktestRequest) (*domain.BacktestResult, error) {
	ctx, span := c.tracer.Start(ctx, "scoring-client.backtest", trace.WithAttributes(
		attribute.String("index_type", string(req.IndexType)),
	))
	defer span.End()

	var out domain.BacktestResult
	if err := c.do(ctx, http.MethodPost, "/api/backtest", req, &out); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("backtest %s: %w", req.IndexType, err)
	}
	return &out, nil
}

// Health returns nil when /api/health answers 2xx.
func (c *Client) Health(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "scoring-client.health")
	defer span.End()

	if err := c.do(ctx, http.MethodGet, "/api/health", nil, nil); err != nil {
		recordError(span, err)
		return fmt.Errorf("health: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
