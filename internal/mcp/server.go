package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"time-to-sell/internal/domain"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultRequestTimeout = 5 * time.Second
	defaultCycleTimeout   = 30 * time.Second
)

const (
	toolTargetsList         = "targets_list"
	toolDisplayStateGet     = "display_state_get"
	toolSessionRefresh      = "session_refresh"
	toolSessionSelectTarget = "session_select_target"
	toolPriceWindowGet      = "price_window_get"
)

// cycleTools wait on a primary fetch cycle and get CycleTimeout instead of
// RequestTimeout. The cycle keeps running on the session after the wait ends.
var cycleTools = map[string]bool{
	toolSessionRefresh:      true,
	toolSessionSelectTarget: true,
}

type ServerConfig struct {
	// RequestTimeout bounds reads of session state.
	RequestTimeout time.Duration
	// CycleTimeout bounds how long refresh and target switches wait.
	CycleTimeout time.Duration
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.CycleTimeout <= 0 {
		c.CycleTimeout = defaultCycleTimeout
	}
	if c.CycleTimeout < c.RequestTimeout {
		c.CycleTimeout = c.RequestTimeout
	}
	return c
}

// NewServer exposes the session as MCP tools and resources. Tool calls that
// trigger a fetch cycle block until the primary evaluation is applied.
func NewServer(tracer trace.Tracer, sess Session, cfg ServerConfig) *sdkmcp.Server {
	cfg = cfg.withDefaults()

	srv := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "time-to-sell-mcp",
		Version: "1.0.0",
	}, &sdkmcp.ServerOptions{
		Instructions: "Read sell-timing evaluations for the active index pair. " +
			"A status of refreshing or degraded means a retry is pending; read again rather than refreshing. " +
			"session_select_target switches the primary index and fetches its pair alongside.",
		Logger: slog.Default(),
	})

	srv.AddReceivingMiddleware(timeoutMiddleware(cfg))
	if tracer != nil {
		srv.AddReceivingMiddleware(tracingMiddleware(tracer))
	}

	registerTools(srv, sess)
	registerResources(srv, sess)
	return srv
}

// NewHTTPTransportHandler serves srv over streamable HTTP behind bearer auth,
// a body limit and a per-caller rate limit.
func NewHTTPTransportHandler(srv *sdkmcp.Server, cfg HTTPHandlerConfig) http.Handler {
	base := sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return srv
	}, nil)
	return wrapHTTPHandler(base, cfg)
}

func timeoutMiddleware(cfg ServerConfig) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx, cancel := context.WithTimeout(ctx, timeoutFor(cfg, method, req))
			defer cancel()
			return next(ctx, method, req)
		}
	}
}

func timeoutFor(cfg ServerConfig, method string, req sdkmcp.Request) time.Duration {
	if method == "tools/call" && cycleTools[toolName(req)] {
		return cfg.CycleTimeout
	}
	return cfg.RequestTimeout
}

func tracingMiddleware(tracer trace.Tracer) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx, span := tracer.Start(ctx, spanName(method, req), trace.WithAttributes(
				attribute.String("mcp.method", method),
			))
			defer span.End()

			switch r := req.(type) {
			case *sdkmcp.CallToolRequest:
				span.SetAttributes(attribute.String("mcp.tool", toolName(req)))
				if target, ok := toolTarget(r); ok {
					span.SetAttributes(attribute.String("index_type", string(target)))
				}
			case *sdkmcp.ReadResourceRequest:
				span.SetAttributes(attribute.String("mcp.resource.uri", strings.TrimSpace(r.Params.URI)))
			}

			result, err := next(ctx, method, req)
			if err != nil {
				span.RecordError(err)
			}
			return result, err
		}
	}
}

var methodSpans = map[string]string{
	"initialize":               "timing.mcp.initialize",
	"tools/list":               "timing.mcp.tools.list",
	"resources/list":           "timing.mcp.resources.list",
	"resources/templates/list": "timing.mcp.resources.templates",
	"resources/read":           "timing.mcp.resource.read",
}

func spanName(method string, req sdkmcp.Request) string {
	if method == "tools/call" {
		if name := toolName(req); name != "" {
			return "timing.mcp.tool." + name
		}
		return "timing.mcp.tool"
	}
	if name, ok := methodSpans[method]; ok {
		return name
	}
	return "timing.mcp." + strings.ReplaceAll(method, "/", ".")
}

func toolName(req sdkmcp.Request) string {
	call, ok := req.(*sdkmcp.CallToolRequest)
	if !ok || call.Params == nil {
		return ""
	}
	return strings.TrimSpace(call.Params.Name)
}

// toolTarget extracts the index a tool call is about, if it names one.
func toolTarget(call *sdkmcp.CallToolRequest) (domain.IndexType, bool) {
	if call == nil || call.Params == nil {
		return "", false
	}
	raw, err := json.Marshal(call.Params.Arguments)
	if err != nil {
		return "", false
	}
	var args struct {
		Target string `json:"target"`
	}
	if err := json.Unmarshal(raw, &args); err != nil || strings.TrimSpace(args.Target) == "" {
		return "", false
	}
	target, err := normalizeTarget(args.Target)
	if err != nil {
		return "", false
	}
	return target, true
}
