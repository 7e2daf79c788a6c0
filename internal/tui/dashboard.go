package tui

import (
	"context"
	"fmt"
	"strings"

	"time-to-sell/internal/domain"
	"time-to-sell/internal/series"
	"time-to-sell/internal/session"
	"time-to-sell/internal/status"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Dashboard message types.
type sessionEventMsg struct {
	event session.Event
	ok    bool
}
type refreshDoneMsg struct{ err error }

// DashboardModel renders the primary target, its pair and the side panels.
type DashboardModel struct {
	services   Services
	events     <-chan session.Event
	snap       session.Snapshot
	spinner    spinner.Model
	refreshing bool
	err        error
	width      int
	height     int
}

// NewDashboardModel creates a new dashboard model and subscribes to session
// events. Call Close when the program exits.
func NewDashboardModel(svc Services, events <-chan session.Event) DashboardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(SpinnerColor)

	m := DashboardModel{
		services: svc,
		events:   events,
		spinner:  sp,
	}
	if svc.Session != nil {
		m.snap = svc.Session.Snapshot()
	}
	return m
}

// Init triggers the first fetch cycle and starts listening for events.
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(
		m.refreshCmd(),
		m.waitForEventCmd(),
		m.spinner.Tick,
	)
}

// Update handles incoming messages.
func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case sessionEventMsg:
		if !msg.ok {
			m.events = nil
			return m, nil
		}
		m.reload()
		return m, m.waitForEventCmd()

	case refreshDoneMsg:
		m.refreshing = false
		m.err = msg.err
		m.reload()
		return m, nil

	case targetSelectedMsg:
		m.refreshing = false
		m.err = msg.err
		m.reload()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.services.Session == nil {
			return m, nil
		}
		switch {
		case key.Matches(msg, DefaultKeyMap.Refresh):
			m.refreshing = true
			return m, m.refreshCmd()

		case key.Matches(msg, DefaultKeyMap.NextTarget):
			m.refreshing = true
			return m, selectTargetCmd(m.services.Session, stepTarget(m.snap.Primary, 1))

		case key.Matches(msg, DefaultKeyMap.PrevTarget):
			m.refreshing = true
			return m, selectTargetCmd(m.services.Session, stepTarget(m.snap.Primary, -1))

		case key.Matches(msg, DefaultKeyMap.NextWindow):
			m.services.Session.SetWindow(m.window().Next())
			m.reload()
			return m, nil

		case key.Matches(msg, DefaultKeyMap.NextMA):
			m.refreshing = true
			return m, m.setScoreMACmd(nextScoreMA(m.snap.ScoreMA))
		}
	}

	return m, nil
}

// View renders the dashboard.
func (m DashboardModel) View() string {
	if m.services.Session == nil {
		return ErrorStyle.Render("Session not available")
	}

	primary, _ := m.snap.State(m.snap.Primary)

	mainWidth := m.width*2/3 - 2
	if mainWidth < 50 {
		mainWidth = 50
	}
	sideWidth := m.width - mainWidth - 4
	if sideWidth < 30 {
		sideWidth = 30
	}

	mainBox := BorderStyle.Width(mainWidth).Render(m.renderPrimary(primary, mainWidth))
	sideBox := BorderStyle.Width(sideWidth).Render(m.renderSide())
	topRow := lipgloss.JoinHorizontal(lipgloss.Top, mainBox, sideBox)

	chartBox := BorderStyle.Width(m.width - 2).Render(m.renderChart())

	help := SubtextStyle.Render("  [t/T] index  [w] window  [m] score MA  [R] refresh  [q] quit")
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(primary), topRow, chartBox, help)
}

// SetSize updates the model dimensions.
func (m *DashboardModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Snapshot returns the snapshot being rendered (for testing).
func (m DashboardModel) Snapshot() session.Snapshot { return m.snap }

// Refreshing reports whether a user-triggered cycle is running.
func (m DashboardModel) Refreshing() bool { return m.refreshing }

func (m *DashboardModel) reload() {
	if m.services.Session != nil {
		m.snap = m.services.Session.Snapshot()
	}
}

func (m DashboardModel) window() series.Window {
	w, err := series.ParseWindow(m.snap.Window)
	if err != nil {
		return series.Window1Y
	}
	return w
}

func (m DashboardModel) renderHeader(primary domain.DisplayState) string {
	parts := []string{
		HeaderStyle.Render("  " + m.snap.Primary.DisplayName()),
		StatusBadge(primary.Status),
		SubtextStyle.Render(fmt.Sprintf("window %s  MA%d", m.snap.Window, m.snap.ScoreMA)),
	}
	if primary.IsRetrying || m.refreshing {
		parts = append(parts, m.spinner.View())
	}
	if !primary.UpdatedAt.IsZero() {
		parts = append(parts, SubtextStyle.Render("updated "+primary.UpdatedAt.Local().Format("15:04:05")))
	}
	return strings.Join(parts, "  ")
}

func (m DashboardModel) renderPrimary(st domain.DisplayState, width int) string {
	var lines []string

	resp := st.Response
	if resp == nil {
		switch {
		case st.Err != "":
			lines = append(lines, ErrorStyle.Render("  Error: "+st.Err))
			lines = append(lines, SubtextStyle.Render("  Press R to retry."))
		default:
			lines = append(lines, SubtextStyle.Render("  Loading evaluation..."))
		}
		return strings.Join(lines, "\n")
	}

	label := resp.Scores.Label
	if label == "" {
		label = domain.LabelForScore(resp.Scores.Total)
	}
	lines = append(lines, "  "+scoreStyle(resp.Scores.Total).Render(label))
	lines = append(lines, "")

	barWidth := width/2 - 10
	if barWidth < 10 {
		barWidth = 10
	}
	if barWidth > 40 {
		barWidth = 40
	}
	lines = append(lines,
		"  "+RenderScoreBar("Total", resp.Scores.Total, barWidth),
		"  "+RenderScoreBar("Technical", resp.Scores.Technical, barWidth),
		"  "+RenderScoreBar("Macro", resp.Scores.Macro, barWidth),
		fmt.Sprintf("  %-10s %+.1f", "Event adj", resp.Scores.EventAdjustment),
	)

	if len(resp.Periods) > 0 {
		lines = append(lines, "", SubtextStyle.Render("  Horizon    Total   Technical  Macro"))
		for _, p := range domain.Periods {
			b, ok := resp.Periods[p]
			if !ok {
				continue
			}
			lines = append(lines, fmt.Sprintf("  %-9s %6.1f  %9.1f  %5.1f", p, b.Scores.Total, b.Scores.Technical, b.Scores.Macro))
		}
	}

	lines = append(lines, "", fmt.Sprintf("  Price %s", formatPrice(resp.CurrentPrice)))
	if m.snap.Position.TotalQuantity > 0 {
		lines = append(lines, fmt.Sprintf("  Value %s  P&L %s",
			formatPrice(resp.MarketValue), formatSignedAmount(resp.UnrealizedPnL)))
	}

	switch {
	case st.IsRetrying:
		lines = append(lines, "", WarnStyle.Render(fmt.Sprintf("  %s Partial data; refreshing (attempt %d)", m.spinner.View(), st.Attempt)))
	case st.Exhausted:
		lines = append(lines, "", ErrorStyle.Render("  Data is still incomplete after several retries. Press R to try again."))
	case st.Err != "":
		lines = append(lines, "", ErrorStyle.Render("  Last refresh failed: "+st.Err))
	}

	if reasons := status.Explain(resp.Reasons); len(reasons) > 0 {
		lines = append(lines, "")
		for _, r := range reasons {
			lines = append(lines, SubtextStyle.Render("  - "+r))
		}
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) renderSide() string {
	var lines []string
	lines = append(lines, HeaderStyle.Render("Targets"))
	for _, st := range m.snap.States {
		lines = append(lines, FormatStateLine(st))
	}
	if ins := FormatInsight(m.snap.Insight); len(ins) > 0 {
		lines = append(lines, "")
		lines = append(lines, ins...)
	}
	if nav := FormatNav(m.snap.Nav); len(nav) > 0 {
		lines = append(lines, "")
		lines = append(lines, nav...)
	}
	if m.err != nil {
		lines = append(lines, "", ErrorStyle.Render(m.err.Error()))
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) renderChart() string {
	w := m.window()
	points := m.services.Session.PriceWindow(m.snap.Primary, w)
	header := HeaderStyle.Render(fmt.Sprintf("  %s close, %s", m.snap.Primary.DisplayName(), w))
	if len(points) > 0 {
		first, last := points[0], points[len(points)-1]
		change := 0.0
		if first.Close != 0 {
			change = (last.Close/first.Close - 1) * 100
		}
		header += SubtextStyle.Render(fmt.Sprintf("  %s to %s  ", first.Date, last.Date)) + formatSignedPct(change)
	}
	width := m.width - 8
	if width < 20 {
		width = 20
	}
	return header + "\n  " + RenderSparkline(points, width)
}

func (m DashboardModel) refreshCmd() tea.Cmd {
	sess := m.services.Session
	return func() tea.Msg {
		if sess == nil {
			return refreshDoneMsg{err: fmt.Errorf("session not available")}
		}
		return refreshDoneMsg{err: sess.Refresh(context.Background())}
	}
}

func (m DashboardModel) setScoreMACmd(ma int) tea.Cmd {
	sess := m.services.Session
	return func() tea.Msg {
		return refreshDoneMsg{err: sess.SetScoreMA(context.Background(), ma)}
	}
}

func (m DashboardModel) waitForEventCmd() tea.Cmd {
	events := m.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		return sessionEventMsg{event: ev, ok: ok}
	}
}

func stepTarget(current domain.IndexType, step int) domain.IndexType {
	n := len(domain.SupportedTargets)
	for i, t := range domain.SupportedTargets {
		if t == current {
			return domain.SupportedTargets[((i+step)%n+n)%n]
		}
	}
	return domain.SupportedTargets[0]
}

func nextScoreMA(current int) int {
	for i, ma := range domain.SupportedScoreMAs {
		if ma == current {
			return domain.SupportedScoreMAs[(i+1)%len(domain.SupportedScoreMAs)]
		}
	}
	return domain.DefaultScoreMA
}

func formatSignedAmount(v float64) string {
	style := PriceZeroStyle
	sign := ""
	if v > 0 {
		style = PriceUpStyle
		sign = "+"
	} else if v < 0 {
		style = PriceDownStyle
		sign = "-"
	}
	abs := v
	if abs < 0 {
		abs = -abs
	}
	return style.Render(sign + formatPrice(abs))
}
