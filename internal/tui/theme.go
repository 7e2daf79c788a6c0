package tui

import (
	"time-to-sell/internal/domain"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Tab bar styles
	TabStyle       = lipgloss.NewStyle().Padding(0, 2)
	ActiveTabStyle = TabStyle.Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))
	InactiveTabStyle = TabStyle.
				Foreground(lipgloss.Color("#888888"))

	// Price colors
	PriceUpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	PriceDownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	PriceZeroStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	// Status badges
	badgeBase       = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#000000"))
	ReadyBadge      = badgeBase.Background(lipgloss.Color("#00C853"))
	DegradedBadge   = badgeBase.Background(lipgloss.Color("#FFD600"))
	ErrorBadge      = badgeBase.Background(lipgloss.Color("#FF5252"))
	LoadingBadge    = badgeBase.Background(lipgloss.Color("#888888"))
	RefreshingBadge = badgeBase.Background(lipgloss.Color("#40C4FF"))

	// Score bands
	ScoreHighStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5252")).Bold(true)
	ScoreMidStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD600"))
	ScoreLowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00C853"))

	// General styles
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA"))
	SubtextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	BorderStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#555555"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	WarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD600"))
	SelectStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	SpinnerColor = lipgloss.Color("#7D56F4")

	// Sparkline colors
	SparkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#40C4FF"))
)

// StatusBadge renders the UI status as a colored badge.
func StatusBadge(s domain.UiEvalStatus) string {
	style := LoadingBadge
	switch s {
	case domain.StatusReady:
		style = ReadyBadge
	case domain.StatusDegraded:
		style = DegradedBadge
	case domain.StatusError:
		style = ErrorBadge
	case domain.StatusRefreshing:
		style = RefreshingBadge
	}
	return style.Render(string(s))
}

func scoreStyle(total float64) lipgloss.Style {
	switch {
	case total >= domain.ScoreSell:
		return ScoreHighStyle
	case total >= domain.ScoreHold:
		return ScoreMidStyle
	default:
		return ScoreLowStyle
	}
}
