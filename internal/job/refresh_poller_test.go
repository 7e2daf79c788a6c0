package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

func TestRefreshPollerStart(t *testing.T) {
	t.Parallel()

	tracer := trace.NewNoopTracerProvider().Tracer("test")
	stub := &stubRefresher{}
	poller := NewRefreshPoller(tracer, stub, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Start(ctx)
		close(done)
	}()

	eventually(t, func() bool { return stub.count() >= 2 })
	cancel()
	<-done
}

func TestRefreshPollerImmediateTickAndErrors(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	stub := &stubRefresher{err: errors.New("boom")}
	poller := NewRefreshPoller(tracer, stub, time.Hour, zerolog.Nop())

	poller.tick(context.Background())
	if stub.count() != 1 {
		t.Fatalf("expected 1 refresh, got %d", stub.count())
	}
}

func TestRefreshPollerDefaultsInterval(t *testing.T) {
	poller := NewRefreshPoller(trace.NewNoopTracerProvider().Tracer("test"), nil, 0, zerolog.Nop())
	if poller.interval != time.Minute {
		t.Fatalf("expected default interval, got %v", poller.interval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	poller.Start(ctx)
}

func TestHealthMonitorTracksTransitions(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	checker := &stubChecker{}
	m := NewHealthMonitor(tracer, checker, time.Hour, zerolog.Nop())

	if _, known, _, _ := m.Status(); known {
		t.Fatal("expected unknown status before first check")
	}

	m.check(context.Background())
	healthy, known, err, _ := m.Status()
	if !healthy || !known || err != nil {
		t.Fatalf("expected healthy, got healthy=%v known=%v err=%v", healthy, known, err)
	}

	checker.setErr(errors.New("connection refused"))
	m.check(context.Background())
	healthy, _, err, _ = m.Status()
	if healthy || err == nil {
		t.Fatalf("expected unhealthy, got healthy=%v err=%v", healthy, err)
	}
}

func TestHealthMonitorStart(t *testing.T) {
	t.Parallel()

	checker := &stubChecker{}
	m := NewHealthMonitor(trace.NewNoopTracerProvider().Tracer("test"), checker, 5*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)

	eventually(t, func() bool { return checker.count() >= 2 })
	cancel()
}

type stubRefresher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubRefresher) Refresh(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *stubRefresher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubChecker struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubChecker) Health(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *stubChecker) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *stubChecker) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
