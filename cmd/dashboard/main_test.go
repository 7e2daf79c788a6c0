package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"time-to-sell/internal/config"
	"time-to-sell/internal/domain"
	"time-to-sell/internal/job"
	"time-to-sell/internal/sshauth"
	"time-to-sell/internal/tui"
	"time-to-sell/pkg/logger"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func testConfig() *config.Config {
	return &config.Config{
		ScoringAPIURL:       "http://127.0.0.1:0",
		DefaultIndex:        domain.IndexTOPIX,
		ScoreMA:             domain.DefaultScoreMA,
		RefreshIntervalSecs: 60,
		SSHBind:             "127.0.0.1",
		SSHPort:             23234,
	}
}

func TestMainLocalMode(t *testing.T) {
	cfg := testConfig()
	restore := stubDashboardDeps(t, cfg)
	defer restore()

	var gotLogFile string
	newLoggerFunc = func(c logger.Config) (zerolog.Logger, io.Closer, error) {
		gotLogFile = c.File
		return zerolog.Nop(), io.NopCloser(strings.NewReader("")), nil
	}

	var ran tea.Model
	runLocalFunc = func(m tea.Model) error {
		ran = m
		return nil
	}

	main()

	if gotLogFile != defaultLogFile {
		t.Fatalf("expected logs in %s, got %q", defaultLogFile, gotLogFile)
	}
	app, ok := ran.(tui.AppModel)
	if !ok {
		t.Fatalf("expected tui.AppModel, got %T", ran)
	}
	if app.ActiveTab() != tui.TabDashboard {
		t.Fatalf("expected dashboard tab, got %d", app.ActiveTab())
	}
}

func TestMainExitsWhenLocalProgramFails(t *testing.T) {
	restore := stubDashboardDeps(t, testConfig())
	defer restore()

	runLocalFunc = func(tea.Model) error { return errors.New("no tty") }
	code := -1
	exitFunc = func(c int) { code = c }

	main()

	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestMainSSHMode(t *testing.T) {
	cfg := testConfig()
	cfg.SSHEnabled = true
	cfg.SSHAuthorizedKeysPath = "/etc/tts/authorized_keys"
	restore := stubDashboardDeps(t, cfg)
	defer restore()

	loadKeyStoreFunc = func(path string) (*sshauth.KeyStore, error) {
		if path != cfg.SSHAuthorizedKeysPath {
			t.Errorf("unexpected keys path %s", path)
		}
		return sshauth.Parse(nil)
	}
	var gotAddr string
	newSSHServerFunc = func(addr, hostKeyPath string, keys *sshauth.KeyStore, svc tui.Services, log zerolog.Logger) (*ssh.Server, error) {
		gotAddr = addr
		if svc.Session == nil || svc.Backtest == nil {
			t.Error("expected session and backtest services")
		}
		return &ssh.Server{Addr: addr}, nil
	}
	started := make(chan struct{})
	startSSHServerFunc = func(*ssh.Server) error {
		close(started)
		return ssh.ErrServerClosed
	}
	waitForSignalFunc = func(<-chan os.Signal) { <-started }
	shutdownCalled := false
	shutdownSSHServerFunc = func(*ssh.Server, context.Context) error {
		shutdownCalled = true
		return nil
	}

	main()

	if gotAddr != "127.0.0.1:23234" {
		t.Fatalf("unexpected addr %s", gotAddr)
	}
	if !shutdownCalled {
		t.Fatal("expected ssh server shutdown")
	}
}

func TestRunSSHRequiresAuthorizedKeys(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	cfg.SSHEnabled = true
	err := runSSH(ctx, cancel, cfg, tui.Services{}, zerolog.Nop())
	if err == nil || !strings.Contains(err.Error(), "SSH_AUTHORIZED_KEYS_PATH") {
		t.Fatalf("expected missing keys error, got %v", err)
	}
}

func TestNewSSHServer(t *testing.T) {
	keys, err := sshauth.Parse(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	hostKey := filepath.Join(t.TempDir(), "id_ed25519")
	srv, err := newSSHServer("127.0.0.1:0", hostKey, keys, tui.Services{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new ssh server: %v", err)
	}
	if srv.Addr != "127.0.0.1:0" {
		t.Fatalf("unexpected addr %s", srv.Addr)
	}
	if _, err := os.Stat(hostKey); err != nil {
		t.Fatalf("expected host key to be generated: %v", err)
	}
}

func stubDashboardDeps(t *testing.T, cfg *config.Config) func() {
	t.Helper()

	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origNewLogger := newLoggerFunc
	origInitTracer := initTracerFunc
	origStartPoller := startRefreshPollerFunc
	origLoadKeys := loadKeyStoreFunc
	origRunLocal := runLocalFunc
	origNewSSH := newSSHServerFunc
	origStartSSH := startSSHServerFunc
	origShutdownSSH := shutdownSSHServerFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc
	origExit := exitFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config { return cfg }
	newLoggerFunc = func(logger.Config) (zerolog.Logger, io.Closer, error) {
		return zerolog.Nop(), io.NopCloser(strings.NewReader("")), nil
	}
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	startRefreshPollerFunc = func(*job.RefreshPoller, context.Context) {}
	runLocalFunc = func(tea.Model) error { return nil }
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}
	exitFunc = func(code int) { t.Errorf("unexpected exit %d", code) }

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		newLoggerFunc = origNewLogger
		initTracerFunc = origInitTracer
		startRefreshPollerFunc = origStartPoller
		loadKeyStoreFunc = origLoadKeys
		runLocalFunc = origRunLocal
		newSSHServerFunc = origNewSSH
		startSSHServerFunc = origStartSSH
		shutdownSSHServerFunc = origShutdownSSH
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
		exitFunc = origExit
	}
}
