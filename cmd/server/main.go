package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"time-to-sell/internal/bot"
	"time-to-sell/internal/cache"
	"time-to-sell/internal/chart"
	"time-to-sell/internal/client"
	"time-to-sell/internal/config"
	"time-to-sell/internal/handler"
	"time-to-sell/internal/job"
	"time-to-sell/internal/session"
	"time-to-sell/pkg/logger"
	"time-to-sell/pkg/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	newLoggerFunc          = logger.New
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	newClientFunc          = client.New
	newSessionFunc         = session.New
	newRefreshPollerFunc   = job.NewRefreshPoller
	startRefreshPollerFunc = func(p *job.RefreshPoller, ctx context.Context) { go p.Start(ctx) }
	newHealthMonitorFunc   = job.NewHealthMonitor
	startHealthMonitorFunc = func(m *job.HealthMonitor, ctx context.Context) { go m.Start(ctx) }
	newChartRendererFunc   = chart.NewRenderer
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

func main() {
	_ = loadEnvFunc()

	cfg := loadConfigFunc()

	log, logCloser, err := newLoggerFunc(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	logger.SetGlobalLogger(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer")
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	// Price history cache is optional
	priceCache, rdb := openPriceCache(ctx, cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	scoring := newClientFunc(client.Options{
		BaseURL:    cfg.ScoringAPIURL,
		RetryMax:   cfg.ScoringHTTPRetryMax,
		RatePerSec: cfg.ScoringRatePerSec,
		Cache:      priceCache,
		Tracer:     tracer,
	})

	sess := newSessionFunc(scoring, session.Options{
		Primary:     cfg.DefaultIndex,
		Position:    cfg.Position,
		ScoreMA:     cfg.ScoreMA,
		Window:      cfg.DefaultWindow,
		Schedule:    cfg.RetrySchedule,
		Logger:      log,
		Tracer:      tracer,
		IsTransient: client.IsTransient,
	})
	defer sess.Teardown()

	// Start background jobs (stopped by ctx cancel)
	poller := newRefreshPollerFunc(tracer, sess, cfg.RefreshInterval(), log)
	startRefreshPollerFunc(poller, ctx)
	monitor := newHealthMonitorFunc(tracer, scoring, 0, log)
	startHealthMonitorFunc(monitor, ctx)

	charts := newChartRendererFunc()

	// Start Telegram bot and forward label changes to subscribers
	alerts := startTelegramBotFunc(cfg.TelegramBotToken, sess, scoring, charts, logger.Component(log, "telegram"))
	if alerts != nil {
		events, unsubscribe := sess.Subscribe()
		defer unsubscribe()
		go alerts.Watch(ctx, events)
	}

	// Create handlers and routes
	h := newHandlerFunc(tracer, sess, charts, monitor)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("time-to-sell"))
	r.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))

	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    httpAddr(cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()
	log.Info().Str("addr", srv.Addr).Str("index", string(cfg.DefaultIndex)).Msg("server started")

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info().Msg("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}

// openPriceCache connects to Redis when configured. Connection failures are
// logged and the client runs uncached.
func openPriceCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (client.PriceCache, *redis.Client) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	rdb, err := initRedisFunc(ctx, cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, price history will not be cached")
		return nil, nil
	}
	return cache.NewPriceHistoryCache(rdb, cfg.PriceCacheTTL()), rdb
}

func corsConfig(origins []string) cors.Config {
	cc := cors.DefaultConfig()
	cc.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
		return cc
	}
	cc.AllowOrigins = origins
	return cc
}

func httpAddr(port int) string {
	if port <= 0 {
		port = 8080
	}
	return fmt.Sprintf(":%d", port)
}
