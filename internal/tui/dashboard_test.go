package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"time-to-sell/internal/domain"
	"time-to-sell/internal/insight"
	"time-to-sell/internal/series"
	"time-to-sell/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

func readyState(target domain.IndexType, total float64) domain.DisplayState {
	return domain.DisplayState{
		Target: target,
		Status: domain.StatusReady,
		Response: &domain.EvaluationResponse{
			CurrentPrice: 5100.25,
			Scores:       domain.Scores{Technical: 70, Macro: 50, Total: total, Label: domain.LabelForScore(total)},
			Periods: map[domain.Period]domain.PeriodBreakdown{
				domain.PeriodShort: {Scores: domain.Scores{Total: 66}},
			},
			Status: domain.BackendReady,
		},
		UpdatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func newTestDashboard(stub *stubSession) DashboardModel {
	m := NewDashboardModel(Services{Session: stub}, stub.events)
	m.SetSize(120, 40)
	return m
}

func TestDashboardReloadsOnSessionEvent(t *testing.T) {
	stub := newStubSession()
	m := newTestDashboard(stub)

	stub.snap.States[0] = readyState(domain.IndexSP500, 72)
	updated, cmd := m.Update(sessionEventMsg{event: session.Event{Kind: session.EventStateChanged, Target: domain.IndexSP500}, ok: true})
	if cmd == nil {
		t.Fatal("expected dashboard to keep listening for events")
	}
	st, _ := updated.Snapshot().State(domain.IndexSP500)
	if st.Status != domain.StatusReady {
		t.Fatalf("expected ready state after event, got %s", st.Status)
	}
}

func TestDashboardStopsListeningWhenChannelCloses(t *testing.T) {
	stub := newStubSession()
	m := newTestDashboard(stub)

	updated, cmd := m.Update(sessionEventMsg{ok: false})
	if cmd != nil {
		t.Fatal("expected no further commands after channel closed")
	}
	if updated.waitForEventCmd() != nil {
		t.Fatal("expected event wait to be disabled")
	}
}

func TestDashboardWaitForEventDeliversEvent(t *testing.T) {
	stub := newStubSession()
	m := newTestDashboard(stub)

	stub.events <- session.Event{Kind: session.EventLabelChanged, Target: domain.IndexSP500, Label: "Hold"}
	msg := m.waitForEventCmd()()
	ev, ok := msg.(sessionEventMsg)
	if !ok || !ev.ok || ev.event.Label != "Hold" {
		t.Fatalf("unexpected msg: %#v", msg)
	}
}

func TestDashboardRefreshKey(t *testing.T) {
	stub := newStubSession()
	stub.refreshErr = errors.New("backend down")
	m := newTestDashboard(stub)

	updated, cmd := m.Update(runes("R"))
	if !updated.Refreshing() || cmd == nil {
		t.Fatal("expected refresh to start")
	}
	msg := cmd()
	updated, _ = updated.Update(msg)
	if updated.Refreshing() {
		t.Fatal("expected refresh to finish")
	}
	if stub.refreshes != 1 {
		t.Fatalf("expected 1 refresh, got %d", stub.refreshes)
	}
	if !strings.Contains(updated.View(), "backend down") {
		t.Fatal("expected refresh error in view")
	}
}

func TestDashboardCyclesTargets(t *testing.T) {
	stub := newStubSession()
	m := newTestDashboard(stub)

	_, cmd := m.Update(runes("t"))
	if cmd == nil {
		t.Fatal("expected target change command")
	}
	msg := cmd().(targetSelectedMsg)
	want := stepTarget(domain.IndexSP500, 1)
	if msg.target != want || len(stub.selected) != 1 || stub.selected[0] != want {
		t.Fatalf("expected switch to %s, got %v", want, stub.selected)
	}

	if got := stepTarget(domain.SupportedTargets[0], -1); got != domain.SupportedTargets[len(domain.SupportedTargets)-1] {
		t.Fatalf("expected wrap to last target, got %s", got)
	}
}

func TestDashboardCyclesWindowAndMA(t *testing.T) {
	stub := newStubSession()
	m := newTestDashboard(stub)

	updated, _ := m.Update(runes("w"))
	if stub.window != series.Window3Y {
		t.Fatalf("expected window 3Y after 1Y, got %s", stub.window)
	}
	if updated.Snapshot().Window != "3Y" {
		t.Fatalf("expected snapshot window 3Y, got %s", updated.Snapshot().Window)
	}

	_, cmd := updated.Update(runes("m"))
	if cmd == nil {
		t.Fatal("expected score MA command")
	}
	cmd()
	if stub.scoreMA != 20 {
		t.Fatalf("expected MA 20 after 200, got %d", stub.scoreMA)
	}
}

func TestNextScoreMA(t *testing.T) {
	cases := map[int]int{20: 60, 60: 200, 200: 20, 7: domain.DefaultScoreMA}
	for in, want := range cases {
		if got := nextScoreMA(in); got != want {
			t.Fatalf("nextScoreMA(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestDashboardViewLoading(t *testing.T) {
	m := newTestDashboard(newStubSession())
	view := m.View()
	if !strings.Contains(view, "Loading evaluation") {
		t.Fatal("expected loading placeholder")
	}
	if !strings.Contains(view, "no price history") {
		t.Fatal("expected empty chart placeholder")
	}
}

func TestDashboardViewWithData(t *testing.T) {
	stub := newStubSession()
	stub.snap.States[0] = readyState(domain.IndexSP500, 72)
	stub.snap.States[1] = readyState(domain.IndexSP500JPY, 65)
	stub.snap.Insight = &insight.CurrencyImpact{From: "2023-03-01", To: "2024-03-01", USDReturn: 20, JPYReturn: 30, Impact: 10}
	stub.snap.Nav = &session.NavState{Fund: &domain.FundNav{AsOf: "2024-03-01", NavJPY: 28000}}
	stub.points = []domain.PricePoint{{Date: "2024-02-01", Close: 4900}, {Date: "2024-03-01", Close: 5100}}
	m := newTestDashboard(stub)

	view := m.View()
	for _, want := range []string{"Consider profit-taking", "Technical", "short", "5,100.25", "USD return", "NAV", "2024-02-01"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view", want)
		}
	}
}

func TestDashboardViewRetryAndExhausted(t *testing.T) {
	stub := newStubSession()
	st := readyState(domain.IndexSP500, 50)
	st.Status = domain.StatusRefreshing
	st.IsRetrying = true
	st.Attempt = 2
	st.Response.Reasons = []string{"TECHNICAL_PENDING"}
	stub.snap.States[0] = st
	m := newTestDashboard(stub)

	view := m.View()
	if !strings.Contains(view, "attempt 2") {
		t.Fatal("expected retry notice")
	}

	st.IsRetrying = false
	st.Exhausted = true
	st.Status = domain.StatusError
	stub.snap.States[0] = st
	updated, _ := m.Update(refreshDoneMsg{})
	if !strings.Contains(updated.View(), "still incomplete") {
		t.Fatal("expected exhausted notice")
	}
}

func TestDashboardIgnoresKeysWithoutSession(t *testing.T) {
	m := NewDashboardModel(Services{}, nil)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'R'}})
	if cmd != nil || updated.Refreshing() {
		t.Fatal("expected key to be ignored")
	}
	if !strings.Contains(updated.View(), "Session not available") {
		t.Fatal("expected unavailable message")
	}
}
