package tui

import (
	"time-to-sell/internal/session"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Tab represents a screen tab in the TUI.
type Tab int

const (
	TabDashboard Tab = iota
	TabTargets
	TabBacktest
)

var tabNames = []string{"1:Dashboard", "2:Indices", "3:Backtest"}

// AppModel is the root Bubble Tea model that manages tab navigation and child screens.
type AppModel struct {
	services    Services
	activeTab   Tab
	dashboard   DashboardModel
	targets     TargetListModel
	backtest    BacktestModel
	unsubscribe func()
	width       int
	height      int
	quitting    bool
}

// NewAppModel creates the root application model with all child screens.
// It subscribes to session events; call Close when the program exits.
func NewAppModel(svc Services) AppModel {
	m := AppModel{
		services:  svc,
		activeTab: TabDashboard,
		targets:   NewTargetListModel(svc),
		backtest:  NewBacktestModel(svc),
	}
	var events <-chan session.Event
	if svc.Session != nil {
		events, m.unsubscribe = svc.Session.Subscribe()
	}
	m.dashboard = NewDashboardModel(svc, events)
	return m
}

// Init initializes all child models.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(
		m.dashboard.Init(),
		m.targets.Init(),
		m.backtest.Init(),
	)
}

// Update handles incoming messages, routing to the active tab.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.propagateSize()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.Quit):
			m.quitting = true
			m.Close()
			return m, tea.Quit

		case key.Matches(msg, DefaultKeyMap.Tab):
			m.activeTab = Tab((int(m.activeTab) + 1) % len(tabNames))
			return m, nil

		case key.Matches(msg, DefaultKeyMap.ShiftTab):
			next := int(m.activeTab) - 1
			if next < 0 {
				next = len(tabNames) - 1
			}
			m.activeTab = Tab(next)
			return m, nil

		case msg.String() == "1":
			m.activeTab = TabDashboard
			return m, nil
		case msg.String() == "2":
			m.activeTab = TabTargets
			return m, nil
		case msg.String() == "3":
			m.activeTab = TabBacktest
			return m, nil
		}
	}

	// Route messages to all child models (they filter relevant ones)
	var cmds []tea.Cmd

	switch msg.(type) {
	case sessionEventMsg, refreshDoneMsg:
		var cmd tea.Cmd
		m.dashboard, cmd = m.dashboard.Update(msg)
		cmds = append(cmds, cmd)

	case targetSelectedMsg:
		var cmd tea.Cmd
		m.dashboard, cmd = m.dashboard.Update(msg)
		cmds = append(cmds, cmd)
		m.targets, cmd = m.targets.Update(msg)
		cmds = append(cmds, cmd)

	case backtestResultMsg, backtestErrMsg:
		var cmd tea.Cmd
		m.backtest, cmd = m.backtest.Update(msg)
		cmds = append(cmds, cmd)

	default:
		// Spinner ticks keep running while other tabs are visible.
		if _, isKey := msg.(tea.KeyMsg); !isKey {
			var cmd tea.Cmd
			m.dashboard, cmd = m.dashboard.Update(msg)
			return m, cmd
		}
		switch m.activeTab {
		case TabDashboard:
			var cmd tea.Cmd
			m.dashboard, cmd = m.dashboard.Update(msg)
			cmds = append(cmds, cmd)
		case TabTargets:
			var cmd tea.Cmd
			m.targets, cmd = m.targets.Update(msg)
			cmds = append(cmds, cmd)
		case TabBacktest:
			var cmd tea.Cmd
			m.backtest, cmd = m.backtest.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// View renders the tab bar and active screen.
func (m AppModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	tabBar := m.renderTabBar()

	var content string
	switch m.activeTab {
	case TabDashboard:
		content = m.dashboard.View()
	case TabTargets:
		content = m.targets.View()
	case TabBacktest:
		content = m.backtest.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, tabBar, content)
}

// SetSize updates dimensions on the root model and propagates to children.
func (m *AppModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.propagateSize()
}

// ActiveTab returns the currently active tab (for testing).
func (m AppModel) ActiveTab() Tab { return m.activeTab }

// Close drops the session event subscription. It is safe to call twice.
func (m *AppModel) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *AppModel) propagateSize() {
	contentHeight := m.height - 2 // account for tab bar
	m.dashboard.SetSize(m.width, contentHeight)
	m.targets.SetSize(m.width, contentHeight)
	m.backtest.SetSize(m.width, contentHeight)
}

func (m AppModel) renderTabBar() string {
	var tabs []string
	for i, name := range tabNames {
		if Tab(i) == m.activeTab {
			tabs = append(tabs, ActiveTabStyle.Render(name))
		} else {
			tabs = append(tabs, InactiveTabStyle.Render(name))
		}
	}
	if m.services.Username != "" {
		tabs = append(tabs, SubtextStyle.Render("  "+m.services.Username))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}
