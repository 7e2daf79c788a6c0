// Package session orchestrates evaluation and price-history fetches for the
// active primary target and its currency pair.
//
// A Session serialises every state mutation behind one mutex. Network calls
// run without the lock; on return each response is re-validated against the
// sequence guard and the latest request id for its target before it may touch
// state. Only the primary target drives retry scheduling.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"time-to-sell/internal/client"
	"time-to-sell/internal/domain"
	"time-to-sell/internal/guard"
	"time-to-sell/internal/insight"
	"time-to-sell/internal/requestid"
	"time-to-sell/internal/retry"
	"time-to-sell/internal/series"
	"time-to-sell/internal/status"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var ErrClosed = errors.New("session closed")

// ErrRequestMismatch marks a response that echoed a request id other than
// the one sent. It is retried like a transient failure.
var ErrRequestMismatch = errors.New("evaluation request id mismatch")

// Fetcher is the scoring service surface the session needs.
type Fetcher interface {
	Evaluate(ctx context.Context, req domain.EvaluationRequest) (*domain.EvaluationResponse, error)
	PriceHistory(ctx context.Context, target domain.IndexType) ([]domain.PricePoint, error)
}

// NavFetcher supplies the best-effort NAV panel for the SP500 family.
type NavFetcher interface {
	SyntheticNav(ctx context.Context) (*domain.SyntheticNav, error)
	FundNav(ctx context.Context) (*domain.FundNav, error)
}

type Options struct {
	Primary  domain.IndexType
	Position domain.Position
	ScoreMA  int
	Window   series.Window
	Schedule []time.Duration
	Clock    retry.Clock
	Store    *series.Store
	Nav      NavFetcher
	Logger   zerolog.Logger
	Tracer   trace.Tracer

	// Hooks for tests.
	NewRequestID func() string
	Now          func() time.Time
	IsTransient  func(error) bool
}

// NavState is the last NAV lookup for the SP500 family.
type NavState struct {
	Synthetic *domain.SyntheticNav `json:"synthetic,omitempty"`
	Fund      *domain.FundNav      `json:"fund,omitempty"`
	Err       string               `json:"error,omitempty"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Snapshot is an immutable copy of everything renderers read.
type Snapshot struct {
	Primary    domain.IndexType        `json:"primary"`
	Secondary  domain.IndexType        `json:"secondary,omitempty"`
	States     []domain.DisplayState   `json:"states"`
	Position   domain.Position         `json:"position"`
	ScoreMA    int                     `json:"score_ma"`
	Window     string                  `json:"window"`
	RetryState string                  `json:"retry_state"`
	Insight    *insight.CurrencyImpact `json:"insight,omitempty"`
	Nav        *NavState               `json:"nav,omitempty"`
}

// State returns the display state for target, if it is in the snapshot.
func (s Snapshot) State(target domain.IndexType) (domain.DisplayState, bool) {
	for _, st := range s.States {
		if st.Target == target {
			return st, true
		}
	}
	return domain.DisplayState{}, false
}

type EventKind int

const (
	EventStateChanged EventKind = iota
	EventLabelChanged
	EventNavUpdated
)

type Event struct {
	Kind      EventKind
	Target    domain.IndexType
	State     domain.DisplayState
	PrevLabel string
	Label     string
}

// entry is the single live record for one target.
type entry struct {
	response    *domain.EvaluationResponse
	hasReady    bool
	status      domain.UiEvalStatus
	inFlight    bool
	retrying    bool
	provisional bool
	exhausted   bool
	attempt     int
	err         string
	updatedAt   time.Time
}

type Session struct {
	fetcher     Fetcher
	nav         NavFetcher
	guard       *guard.SequenceGuard
	retry       *retry.Scheduler
	store       *series.Store
	log         zerolog.Logger
	tracer      trace.Tracer
	newID       func() string
	now         func() time.Time
	isTransient func(error) bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	primary  domain.IndexType
	position domain.Position
	scoreMA  int
	window   series.Window
	cycle    uint64
	navGen   uint64
	entries  map[domain.IndexType]*entry
	latestID map[domain.IndexType]string
	navState *NavState
	subs     map[int]chan Event
	nextSub  int
}

func New(fetcher Fetcher, opts Options) *Session {
	primary := opts.Primary
	if !primary.IsValid() {
		primary = domain.IndexSP500
	}
	scoreMA := opts.ScoreMA
	if !domain.IsSupportedScoreMA(scoreMA) {
		scoreMA = domain.DefaultScoreMA
	}
	window := opts.Window
	if window.Name == "" && window.Start.IsZero() {
		window = series.Window1Y
	}
	schedule := opts.Schedule
	if schedule == nil {
		schedule = retry.DefaultSchedule
	}
	store := opts.Store
	if store == nil {
		store = series.NewStore()
	}
	nav := opts.Nav
	if nav == nil {
		if nf, ok := fetcher.(NavFetcher); ok {
			nav = nf
		}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("session")
	}
	newID := opts.NewRequestID
	if newID == nil {
		newID = requestid.Generate
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	isTransient := opts.IsTransient
	if isTransient == nil {
		isTransient = client.IsTransient
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		fetcher:     fetcher,
		nav:         nav,
		guard:       guard.New(),
		retry:       retry.New(schedule, opts.Clock),
		store:       store,
		log:         opts.Logger.With().Str("component", "session").Logger(),
		tracer:      tracer,
		newID:       newID,
		now:         now,
		isTransient: isTransient,
		ctx:         ctx,
		cancel:      cancel,
		primary:     primary,
		position:    opts.Position,
		scoreMA:     scoreMA,
		window:      window,
		entries:     make(map[domain.IndexType]*entry),
		latestID:    make(map[domain.IndexType]string),
		subs:        make(map[int]chan Event),
	}
}

// TargetSet returns {primary} or {base, converted} when primary belongs to a
// currency pair. Both members of a pair yield the same set.
func TargetSet(primary domain.IndexType) []domain.IndexType {
	pair, ok := domain.PairOf(primary)
	if !ok {
		return []domain.IndexType{primary}
	}
	base := domain.BaseOf(primary)
	if base == primary {
		return []domain.IndexType{primary, pair}
	}
	return []domain.IndexType{base, primary}
}

func secondaryOf(primary domain.IndexType) (domain.IndexType, bool) {
	return domain.PairOf(primary)
}

// Primary returns the current primary target.
func (s *Session) Primary() domain.IndexType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primary
}

// Store exposes the price series store for chart rendering.
func (s *Session) Store() *series.Store { return s.store }

// Refresh cancels any pending retry and runs a fresh cycle for the current
// primary target. It returns once the primary evaluation has been applied.
// The cycle runs on the session's context; ctx only bounds the wait.
// Secondary and NAV fetches continue in the background.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.retry.Reset()
	s.cycle++
	cycle := s.cycle
	primary := s.primary
	s.wg.Add(1)
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		defer s.wg.Done()
		done <- s.runAttempt(ctx, primary, cycle, 0)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnTargetChanged switches the primary target and starts a fresh cycle.
// Targets leaving the active set are invalidated so their in-flight
// responses are dropped.
func (s *Session) OnTargetChanged(ctx context.Context, target domain.IndexType) error {
	if !target.IsValid() {
		return fmt.Errorf("unsupported index: %s", target)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.retry.Cancel()
	next := make(map[domain.IndexType]bool)
	for _, t := range TargetSet(target) {
		next[t] = true
	}
	for _, t := range TargetSet(s.primary) {
		if next[t] {
			continue
		}
		s.guard.InvalidateTarget(t)
		delete(s.latestID, t)
		s.store.Forget(t)
		if e, ok := s.entries[t]; ok {
			e.settle()
		}
	}
	prev := s.primary
	if e, ok := s.entries[prev]; ok && e.retrying {
		e.settle()
	}
	s.primary = target
	s.mu.Unlock()

	s.log.Info().Str("from", string(prev)).Str("to", string(target)).Msg("primary target changed")
	return s.Refresh(ctx)
}

// SetPosition updates the position context and re-runs the cycle.
func (s *Session) SetPosition(ctx context.Context, p domain.Position) error {
	s.mu.Lock()
	s.position = p
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// SetScoreMA updates the scoring window and re-runs the cycle.
func (s *Session) SetScoreMA(ctx context.Context, ma int) error {
	if !domain.IsSupportedScoreMA(ma) {
		return fmt.Errorf("unsupported score ma: %d", ma)
	}
	s.mu.Lock()
	s.scoreMA = ma
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// SetWindow changes the chart window. No fetch is issued.
func (s *Session) SetWindow(w series.Window) {
	s.mu.Lock()
	s.window = w
	s.mu.Unlock()
	s.publish(Event{Kind: EventStateChanged, Target: s.Primary()})
}

func (s *Session) Window() series.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// PriceWindow returns target's series restricted to w.
func (s *Session) PriceWindow(target domain.IndexType, w series.Window) []domain.PricePoint {
	return s.store.Window(target, w)
}

// DisplayState returns what a renderer should show for target.
func (s *Session) DisplayState(target domain.IndexType) domain.DisplayState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayLocked(target)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Primary:    s.primary,
		Position:   s.position,
		ScoreMA:    s.scoreMA,
		Window:     s.window.String(),
		RetryState: s.retry.State().String(),
	}
	for _, t := range TargetSet(s.primary) {
		snap.States = append(snap.States, s.displayLocked(t))
	}
	if sec, ok := secondaryOf(s.primary); ok {
		snap.Secondary = sec
	}
	if s.navState != nil && s.primary.HasNAV() {
		nav := *s.navState
		snap.Nav = &nav
	}
	window := s.window
	primary := s.primary
	s.mu.Unlock()

	if snap.Secondary != "" {
		if impact, err := insight.ForPair(s.store, primary, window); err == nil {
			snap.Insight = &impact
		}
	}
	return snap
}

// Subscribe returns a channel of state events and a function that releases
// it. Slow subscribers miss events rather than block the session.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, 32)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Teardown cancels the retry timer, invalidates every guard and closes
// subscribers. Responses still in flight are dropped when they arrive.
func (s *Session) Teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.retry.Cancel()
	for _, t := range domain.SupportedTargets {
		s.guard.InvalidateTarget(t)
	}
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()
	s.cancel()
}

// Wait blocks until in-flight cycles and background secondary and NAV
// fetches have returned.
func (s *Session) Wait() { s.wg.Wait() }

// runAttempt runs one primary round trip. parent only contributes the trace
// span; fetches are bound to the session's lifetime.
func (s *Session) runAttempt(parent context.Context, target domain.IndexType, cycle uint64, attempt int) error {
	_, span := s.tracer.Start(parent, "session.attempt", trace.WithAttributes(
		attribute.String("index_type", string(target)),
		attribute.Int("attempt", attempt),
	))
	defer span.End()
	ctx := trace.ContextWithSpan(s.ctx, span)

	s.mu.Lock()
	if s.closed || cycle != s.cycle || target != s.primary {
		s.mu.Unlock()
		return nil
	}
	histTok, evalTok, req := s.beginLocked(target)
	ev := s.stateEventLocked(target)
	s.mu.Unlock()
	s.publish(ev)

	points, herr := s.fetcher.PriceHistory(ctx, target)
	s.applyHistory(target, histTok, points, herr)

	resp, err := s.fetcher.Evaluate(ctx, req)
	result := s.applyEvaluation(target, evalTok, histTok, req.RequestID, resp, err, cycle, attempt)

	if attempt == 0 {
		s.startAuxiliary(cycle, target)
	}
	return result
}

// beginLocked issues guard tokens and a request id and marks target in flight.
func (s *Session) beginLocked(target domain.IndexType) (guard.Token, guard.Token, domain.EvaluationRequest) {
	histTok := s.guard.Begin(guard.ClassPriceHistory, target)
	evalTok := s.guard.Begin(guard.ClassEvaluation, target)
	req := domain.EvaluationRequest{
		IndexType: target,
		Position:  s.position,
		ScoreMA:   s.scoreMA,
		RequestID: s.newID(),
	}
	s.latestID[target] = req.RequestID

	e := s.entryLocked(target)
	e.inFlight = true
	switch {
	case e.hasReady:
		e.status = domain.StatusRefreshing
	case e.response == nil:
		e.status = domain.StatusLoading
	}
	return histTok, evalTok, req
}

func (s *Session) applyHistory(target domain.IndexType, tok guard.Token, points []domain.PricePoint, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.guard.IsCurrent(guard.ClassPriceHistory, target, tok) {
		s.log.Debug().Str("target", string(target)).Uint64("token", uint64(tok)).Msg("dropping stale price history")
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Str("target", string(target)).Msg("price history fetch failed")
		return
	}
	kept := s.store.Replace(target, points)
	s.log.Debug().Str("target", string(target)).Int("points", kept).Msg("price history replaced")
}

// applyEvaluation commits or discards one evaluation round trip. cycle and
// attempt identify the primary cycle that issued it; a zero cycle marks a
// best-effort secondary fetch that never schedules retries. histTok is the
// price-history token issued alongside; the response's embedded series is
// only stored while it is still current.
func (s *Session) applyEvaluation(
	target domain.IndexType,
	tok guard.Token,
	histTok guard.Token,
	reqID string,
	resp *domain.EvaluationResponse,
	fetchErr error,
	cycle uint64,
	attempt int,
) error {
	s.mu.Lock()
	var events []Event
	defer func() {
		s.mu.Unlock()
		s.publish(events...)
	}()

	if s.closed || !s.guard.IsCurrent(guard.ClassEvaluation, target, tok) || s.latestID[target] != reqID {
		s.log.Debug().Str("target", string(target)).Uint64("token", uint64(tok)).Str("request_id", reqID).Msg("dropping stale evaluation")
		return nil
	}

	drivesRetry := cycle != 0 && cycle == s.cycle && target == s.primary
	e := s.entryLocked(target)
	e.inFlight = false
	e.updatedAt = s.now()

	if fetchErr == nil && resp != nil && resp.RequestID != "" && resp.RequestID != reqID {
		s.log.Warn().Str("target", string(target)).Str("request_id", reqID).Str("echoed", resp.RequestID).Msg("evaluation echoed another request id")
		fetchErr = fmt.Errorf("%w: sent %s, got %s", ErrRequestMismatch, reqID, resp.RequestID)
		resp = nil
	}

	var result error
	if fetchErr != nil {
		switch {
		case errors.Is(fetchErr, context.Canceled):
			s.log.Debug().Str("target", string(target)).Msg("evaluation cancelled")
			e.settle()
		case drivesRetry && (s.isTransient(fetchErr) || errors.Is(fetchErr, ErrRequestMismatch)):
			s.scheduleRetryLocked(e, target, cycle, attempt, nil, fetchErr)
		case drivesRetry:
			s.retry.Reset()
			e.markError(fetchErr.Error())
			result = fetchErr
		default:
			s.log.Warn().Err(fetchErr).Str("target", string(target)).Msg("secondary evaluation failed")
			e.settle()
		}
		events = append(events, s.stateEventLocked(target))
		return result
	}

	if resp != nil && len(resp.PriceSeries) > 0 && s.store.Len(target) == 0 &&
		s.guard.IsCurrent(guard.ClassPriceHistory, target, histTok) {
		s.store.Replace(target, resp.PriceSeries)
	}

	switch st := status.Resolve(resp); st {
	case domain.StatusReady:
		prevLabel := e.label()
		hadReady := e.hasReady
		if drivesRetry {
			s.retry.Reset()
		}
		e.commit(resp)
		if hadReady && target == s.primary && prevLabel != e.label() {
			events = append(events, Event{Kind: EventLabelChanged, Target: target, PrevLabel: prevLabel, Label: e.label()})
		}
	case domain.StatusError:
		msg := "scoring service reported an error"
		if reasons := status.Explain(resp.Reasons); len(reasons) > 0 {
			msg = msg + ": " + reasons[0]
		}
		if drivesRetry {
			s.retry.Reset()
			result = errors.New(msg)
			e.markError(msg)
		} else {
			s.log.Warn().Str("target", string(target)).Msg(msg)
			e.settle()
		}
	default:
		// degraded, or loading from a completed round trip
		if drivesRetry {
			s.scheduleRetryLocked(e, target, cycle, attempt, resp, nil)
		} else {
			e.showDegraded(resp)
		}
	}
	events = append(events, s.stateEventLocked(target))
	return result
}

func (s *Session) scheduleRetryLocked(e *entry, target domain.IndexType, cycle uint64, attempt int, resp *domain.EvaluationResponse, cause error) {
	err := s.retry.Schedule(attempt, func(next int) {
		if err := s.runAttempt(s.ctx, target, cycle, next); err != nil {
			s.log.Warn().Err(err).Str("target", string(target)).Int("attempt", next).Msg("retry attempt failed")
		}
	})
	if errors.Is(err, retry.ErrExhausted) {
		s.log.Warn().Str("target", string(target)).Int("attempts", attempt).Msg("retries exhausted")
		if resp != nil && !e.hasReady {
			e.response = resp
			e.provisional = true
		}
		e.markExhausted()
		return
	}

	delay, _ := s.retry.Delay(attempt)
	s.log.Debug().Str("target", string(target)).Int("attempt", attempt+1).Dur("delay", delay).Msg("retry scheduled")
	e.retrying = true
	e.exhausted = false
	e.attempt = attempt + 1
	if cause != nil {
		e.err = cause.Error()
	} else {
		e.err = ""
	}
	switch {
	case e.hasReady:
		e.status = domain.StatusRefreshing
	case resp != nil && status.Resolve(resp) == domain.StatusDegraded:
		e.response = resp
		e.provisional = true
		e.status = domain.StatusDegraded
	case e.response != nil:
		e.status = domain.StatusDegraded
	default:
		e.status = domain.StatusLoading
	}
}

// startAuxiliary launches the secondary and NAV fetches for a cycle.
func (s *Session) startAuxiliary(cycle uint64, primary domain.IndexType) {
	s.mu.Lock()
	if s.closed || cycle != s.cycle || primary != s.primary {
		s.mu.Unlock()
		return
	}
	secondary, hasSecondary := secondaryOf(primary)
	var (
		histTok, evalTok guard.Token
		req              domain.EvaluationRequest
		ev               Event
	)
	if hasSecondary {
		histTok, evalTok, req = s.beginLocked(secondary)
		ev = s.stateEventLocked(secondary)
	}
	fetchNav := s.nav != nil && primary.HasNAV()
	var navGen uint64
	if fetchNav {
		s.navGen++
		navGen = s.navGen
	}
	s.mu.Unlock()

	if hasSecondary {
		s.publish(ev)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			var inner sync.WaitGroup
			inner.Add(2)
			go func() {
				defer inner.Done()
				points, err := s.fetcher.PriceHistory(s.ctx, secondary)
				s.applyHistory(secondary, histTok, points, err)
			}()
			go func() {
				defer inner.Done()
				resp, err := s.fetcher.Evaluate(s.ctx, req)
				_ = s.applyEvaluation(secondary, evalTok, histTok, req.RequestID, resp, err, 0, 0)
			}()
			inner.Wait()
		}()
	}
	if fetchNav {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.refreshNav(navGen)
		}()
	}
}

func (s *Session) refreshNav(gen uint64) {
	state := NavState{}
	var errs []error
	if syn, err := s.nav.SyntheticNav(s.ctx); err != nil {
		errs = append(errs, err)
	} else {
		state.Synthetic = syn
	}
	if fund, err := s.nav.FundNav(s.ctx); err != nil {
		errs = append(errs, err)
	} else {
		state.Fund = fund
	}
	if err := errors.Join(errs...); err != nil {
		s.log.Warn().Err(err).Msg("nav lookup failed")
		state.Err = err.Error()
	}

	s.mu.Lock()
	if s.closed || gen != s.navGen {
		s.mu.Unlock()
		return
	}
	state.UpdatedAt = s.now()
	if s.navState != nil {
		// keep the last good values for whichever lookup failed
		if state.Synthetic == nil {
			state.Synthetic = s.navState.Synthetic
		}
		if state.Fund == nil {
			state.Fund = s.navState.Fund
		}
	}
	s.navState = &state
	primary := s.primary
	s.mu.Unlock()
	s.publish(Event{Kind: EventNavUpdated, Target: primary})
}

func (s *Session) entryLocked(target domain.IndexType) *entry {
	e, ok := s.entries[target]
	if !ok {
		e = &entry{status: domain.StatusLoading}
		s.entries[target] = e
	}
	return e
}

func (s *Session) displayLocked(target domain.IndexType) domain.DisplayState {
	e, ok := s.entries[target]
	if !ok {
		return domain.DisplayState{Target: target, Status: domain.StatusLoading}
	}
	return domain.DisplayState{
		Target:      target,
		Status:      e.status,
		Response:    e.response,
		IsRetrying:  e.retrying,
		Provisional: e.provisional,
		Exhausted:   e.exhausted,
		Attempt:     e.attempt,
		Err:         e.err,
		UpdatedAt:   e.updatedAt,
	}
}

func (s *Session) stateEventLocked(target domain.IndexType) Event {
	return Event{Kind: EventStateChanged, Target: target, State: s.displayLocked(target)}
}

func (s *Session) publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		for _, ch := range s.subs {
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// commit replaces the displayed response with a ready one.
func (e *entry) commit(resp *domain.EvaluationResponse) {
	e.response = resp
	e.hasReady = true
	e.status = domain.StatusReady
	e.retrying = false
	e.provisional = false
	e.exhausted = false
	e.attempt = 0
	e.err = ""
}

// showDegraded applies a degraded result without retry. A prior ready
// response is never replaced.
func (e *entry) showDegraded(resp *domain.EvaluationResponse) {
	e.retrying = false
	if e.hasReady {
		e.status = domain.StatusReady
		return
	}
	e.response = resp
	e.provisional = true
	e.status = domain.StatusDegraded
}

func (e *entry) markError(msg string) {
	e.status = domain.StatusError
	e.retrying = false
	e.attempt = 0
	e.err = msg
}

func (e *entry) markExhausted() {
	e.status = domain.StatusError
	e.retrying = false
	e.exhausted = true
	e.err = "automatic retries exhausted; data is still incomplete"
}

// settle clears in-flight markers and restores the resting status.
func (e *entry) settle() {
	e.inFlight = false
	e.retrying = false
	switch {
	case e.status == domain.StatusError:
	case e.hasReady:
		e.status = domain.StatusReady
	case e.response != nil:
		e.status = domain.StatusDegraded
	default:
		e.status = domain.StatusLoading
	}
}

func (e *entry) label() string {
	if e.response == nil || !e.hasReady {
		return ""
	}
	if e.response.Scores.Label != "" {
		return e.response.Scores.Label
	}
	return domain.LabelForScore(e.response.Scores.Total)
}
