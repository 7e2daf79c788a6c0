package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"time-to-sell/internal/domain"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Backtest message types.
type backtestResultMsg struct {
	target domain.IndexType
	result *domain.BacktestResult
}
type backtestErrMsg struct{ err error }

type backtestField int

const (
	fieldYears backtestField = iota
	fieldCash
	fieldBuy
	fieldSell
	fieldMA
	fieldCount
)

var backtestFieldNames = []string{"Years", "Initial cash", "Buy below", "Sell above", "Score MA"}

const (
	defaultBacktestYears = 10
	defaultInitialCash   = 1_000_000
	defaultBuyThreshold  = 40.0
	defaultSellThreshold = 80.0
	cashStep             = 100_000
	thresholdStep        = 5.0
)

// BacktestModel runs the threshold strategy backtest for the primary target.
type BacktestModel struct {
	services Services
	now      func() time.Time

	field         backtestField
	years         int
	initialCash   float64
	buyThreshold  float64
	sellThreshold float64
	scoreMA       int

	target  domain.IndexType
	result  *domain.BacktestResult
	loading bool
	err     error
	width   int
	height  int
}

// NewBacktestModel creates a backtest form with the service defaults.
func NewBacktestModel(svc Services) BacktestModel {
	return BacktestModel{
		services:      svc,
		now:           time.Now,
		years:         defaultBacktestYears,
		initialCash:   defaultInitialCash,
		buyThreshold:  defaultBuyThreshold,
		sellThreshold: defaultSellThreshold,
		scoreMA:       domain.DefaultScoreMA,
	}
}

// Init does nothing; backtests run on demand.
func (m BacktestModel) Init() tea.Cmd { return nil }

// Update handles incoming messages.
func (m BacktestModel) Update(msg tea.Msg) (BacktestModel, tea.Cmd) {
	switch msg := msg.(type) {
	case backtestResultMsg:
		m.target = msg.target
		m.result = msg.result
		m.loading = false
		m.err = nil
		return m, nil

	case backtestErrMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.NextField):
			m.field = (m.field + 1) % fieldCount
			return m, nil

		case key.Matches(msg, DefaultKeyMap.Increase):
			m.adjust(1)
			return m, nil

		case key.Matches(msg, DefaultKeyMap.Decrease):
			m.adjust(-1)
			return m, nil

		case key.Matches(msg, DefaultKeyMap.Run):
			if m.loading {
				return m, nil
			}
			m.loading = true
			m.err = nil
			return m, m.runCmd()
		}
	}

	return m, nil
}

// View renders the backtest form and the last result.
func (m BacktestModel) View() string {
	var sections []string
	sections = append(sections, HeaderStyle.Render("  Threshold Backtest")+"  "+SubtextStyle.Render(m.primary().DisplayName()))
	sections = append(sections, "")

	values := []string{
		fmt.Sprintf("%d", m.years),
		formatPrice(m.initialCash),
		fmt.Sprintf("%.0f", m.buyThreshold),
		fmt.Sprintf("%.0f", m.sellThreshold),
		fmt.Sprintf("%d", m.scoreMA),
	}
	for i, name := range backtestFieldNames {
		label := fmt.Sprintf("  %-14s", name)
		if backtestField(i) == m.field {
			sections = append(sections, SelectStyle.Render("> "+label[2:])+SelectStyle.Render(values[i]))
			continue
		}
		sections = append(sections, label+values[i])
	}
	sections = append(sections, "")

	switch {
	case m.loading:
		sections = append(sections, SubtextStyle.Render("  Running backtest..."))
	case m.err != nil:
		sections = append(sections, ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
	case m.result != nil:
		sections = append(sections, m.renderResult()...)
	default:
		sections = append(sections, SubtextStyle.Render("  Press enter to run."))
	}

	sections = append(sections, "")
	sections = append(sections, SubtextStyle.Render("  [f] next field  [+/-] adjust  [enter] run"))
	return strings.Join(sections, "\n")
}

// SetSize updates the model dimensions.
func (m *BacktestModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// HasResult reports whether a backtest result is loaded.
func (m BacktestModel) HasResult() bool { return m.result != nil }

// Request builds the backtest request from the form.
func (m BacktestModel) Request() domain.BacktestRequest {
	end := m.now().UTC()
	start := end.AddDate(-m.years, 0, 0)
	return domain.BacktestRequest{
		IndexType:     m.primary(),
		StartDate:     start.Format(time.DateOnly),
		EndDate:       end.Format(time.DateOnly),
		InitialCash:   m.initialCash,
		BuyThreshold:  m.buyThreshold,
		SellThreshold: m.sellThreshold,
		ScoreMA:       m.scoreMA,
	}
}

func (m *BacktestModel) adjust(dir int) {
	switch m.field {
	case fieldYears:
		m.years = clampInt(m.years+dir, 1, 30)
	case fieldCash:
		m.initialCash = clampFloat(m.initialCash+float64(dir)*cashStep, cashStep, 1_000_000_000)
	case fieldBuy:
		m.buyThreshold = clampFloat(m.buyThreshold+float64(dir)*thresholdStep, 0, m.sellThreshold-thresholdStep)
	case fieldSell:
		m.sellThreshold = clampFloat(m.sellThreshold+float64(dir)*thresholdStep, m.buyThreshold+thresholdStep, 100)
	case fieldMA:
		mas := domain.SupportedScoreMAs
		idx := 0
		for i, ma := range mas {
			if ma == m.scoreMA {
				idx = i
			}
		}
		m.scoreMA = mas[((idx+dir)%len(mas)+len(mas))%len(mas)]
	}
}

func (m BacktestModel) primary() domain.IndexType {
	if m.services.Session == nil {
		return domain.SupportedTargets[0]
	}
	return m.services.Session.Snapshot().Primary
}

func (m BacktestModel) renderResult() []string {
	s := m.result.Summary
	lines := []string{
		HeaderStyle.Render("  Result") + SubtextStyle.Render("  "+m.target.DisplayName()),
		fmt.Sprintf("  Final equity   %s", formatPrice(s.FinalEquity)),
		fmt.Sprintf("  Buy and hold   %s", formatPrice(s.HoldEquity)),
		fmt.Sprintf("  Total return   %s", formatSignedPct(s.TotalReturn*100)),
		fmt.Sprintf("  Max drawdown   %s", formatSignedPct(-absFloat(s.MaxDrawdown)*100)),
		fmt.Sprintf("  Trades         %d", s.TradeCount),
	}
	if len(m.result.EquityCurve) > 0 {
		width := m.width - 6
		if width < 20 {
			width = 20
		}
		lines = append(lines, "", "  "+RenderSparkline(m.result.EquityCurve, width))
	}
	return lines
}

func (m BacktestModel) runCmd() tea.Cmd {
	req := m.Request()
	runner := m.services.Backtest
	return func() tea.Msg {
		if runner == nil {
			return backtestErrMsg{err: fmt.Errorf("backtest service not available")}
		}
		result, err := runner.Backtest(context.Background(), req)
		if err != nil {
			return backtestErrMsg{err: err}
		}
		return backtestResultMsg{target: req.IndexType, result: result}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
