package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"time-to-sell/internal/cache"
	"time-to-sell/internal/client"
	"time-to-sell/internal/config"
	"time-to-sell/internal/job"
	"time-to-sell/internal/session"
	"time-to-sell/internal/sshauth"
	"time-to-sell/internal/tui"
	"time-to-sell/pkg/logger"
	"time-to-sell/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// The terminal belongs to the UI, so logs go to a file.
const defaultLogFile = "dashboard.log"

type contextKey string

const userContextKey contextKey = "tts-user"

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
	loadKeyStoreFunc       = sshauth.Load
	runLocalFunc           = func(m tea.Model) error {
		_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	}
	newSSHServerFunc      = newSSHServer
	startSSHServerFunc    = func(srv *ssh.Server) error { return srv.ListenAndServe() }
	shutdownSSHServerFunc = func(srv *ssh.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify     = ossignal.Notify
	waitForSignalFunc     = func(quit <-chan os.Signal) { <-quit }
	exitFunc              = os.Exit
)

func main() {
	_ = loadEnvFunc()
	cfg := loadConfigFunc()

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = defaultLogFile
	}
	log, logCloser, err := newLoggerFunc(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, File: logFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		exitFunc(1)
		return
	}
	defer logCloser.Close()
	logger.SetGlobalLogger(log)

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("dashboard failed")
		fmt.Fprintf(os.Stderr, "dashboard: %v\n", err)
		exitFunc(1)
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	opts := client.Options{
		BaseURL:    cfg.ScoringAPIURL,
		RetryMax:   cfg.ScoringHTTPRetryMax,
		RatePerSec: cfg.ScoringRatePerSec,
		Tracer:     tracer,
	}
	if cfg.RedisURL != "" {
		rdb, err := initRedisFunc(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, price history will not be cached")
		} else {
			defer rdb.Close()
			opts.Cache = cache.NewPriceHistoryCache(rdb, cfg.PriceCacheTTL())
		}
	}
	scoring := newClientFunc(opts)

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

	poller := newRefreshPollerFunc(tracer, sess, cfg.RefreshInterval(), log)
	startRefreshPollerFunc(poller, ctx)

	svc := tui.Services{Session: sess, Backtest: scoring}

	if !cfg.SSHEnabled {
		svc.Username = os.Getenv("USER")
		app := tui.NewAppModel(svc)
		defer app.Close()
		return runLocalFunc(app)
	}
	return runSSH(ctx, cancel, cfg, svc, log)
}

func runSSH(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, svc tui.Services, log zerolog.Logger) error {
	if cfg.SSHAuthorizedKeysPath == "" {
		return errors.New("SSH_AUTHORIZED_KEYS_PATH is required when SSH_ENABLED=true")
	}
	keys, err := loadKeyStoreFunc(cfg.SSHAuthorizedKeysPath)
	if err != nil {
		return err
	}
	log.Info().Int("keys", keys.Len()).Msg("loaded authorized keys")

	addr := net.JoinHostPort(cfg.SSHBind, fmt.Sprintf("%d", cfg.SSHPort))
	srv, err := newSSHServerFunc(addr, cfg.SSHHostKeyPath, keys, svc, log)
	if err != nil {
		return fmt.Errorf("create ssh server: %w", err)
	}

	go func() {
		if err := startSSHServerFunc(srv); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			log.Error().Err(err).Msg("ssh server failed")
			cancel()
		}
	}()
	log.Info().Str("addr", addr).Msg("ssh dashboard listening")

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		waitForSignalFunc(quit)
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := shutdownSSHServerFunc(srv, shutdownCtx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return fmt.Errorf("ssh server forced to shutdown: %w", err)
	}
	return nil
}

func newSSHServer(addr, hostKeyPath string, keys *sshauth.KeyStore, svc tui.Services, log zerolog.Logger) (*ssh.Server, error) {
	return wish.NewServer(
		wish.WithAddress(addr),
		wish.WithHostKeyPath(hostKeyPath),
		wish.WithPublicKeyAuth(publicKeyHandler(keys, log)),
		wish.WithMiddleware(
			bm.Middleware(teaHandler(svc)),
			activeterm.Middleware(),
			sessionLogger(log),
		),
	)
}

func publicKeyHandler(keys *sshauth.KeyStore, log zerolog.Logger) ssh.PublicKeyHandler {
	return func(ctx ssh.Context, key ssh.PublicKey) bool {
		user, ok := keys.Authorize(key)
		if !ok {
			log.Warn().Str("user", ctx.User()).Str("remote", ctx.RemoteAddr().String()).Msg("rejected ssh key")
			return false
		}
		ctx.SetValue(userContextKey, user.Username)
		return true
	}
}

// teaHandler builds one app model per SSH session. Every session drives the
// same orchestration session.
func teaHandler(svc tui.Services) bm.Handler {
	return func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
		perUser := svc
		if name, ok := s.Context().Value(userContextKey).(string); ok {
			perUser.Username = name
		}
		app := tui.NewAppModel(perUser)
		go func() {
			<-s.Context().Done()
			app.Close()
		}()
		return app, []tea.ProgramOption{tea.WithAltScreen()}
	}
}

func sessionLogger(log zerolog.Logger) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			start := time.Now()
			user, _ := s.Context().Value(userContextKey).(string)
			log.Info().Str("user", user).Str("remote", s.RemoteAddr().String()).Msg("ssh session started")
			next(s)
			log.Info().Str("user", user).Dur("duration", time.Since(start)).Msg("ssh session ended")
		}
	}
}
