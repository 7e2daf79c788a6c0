package domain

import (
	"fmt"
	"strings"
	"time"
)

// IndexType identifies one index the scoring service can evaluate.
type IndexType string

const (
	IndexSP500     IndexType = "SP500"
	IndexSP500JPY  IndexType = "sp500_jpy"
	IndexTOPIX     IndexType = "TOPIX"
	IndexNikkei    IndexType = "NIKKEI"
	IndexNifty50   IndexType = "NIFTY50"
	IndexOrukan    IndexType = "ORUKAN"
	IndexOrukanJPY IndexType = "orukan_jpy"
)

// SupportedTargets lists every index in display order.
var SupportedTargets = []IndexType{
	IndexSP500,
	IndexSP500JPY,
	IndexTOPIX,
	IndexNikkei,
	IndexNifty50,
	IndexOrukan,
	IndexOrukanJPY,
}

// currencyPairs maps a JPY-denominated view to its USD base.
var currencyPairs = map[IndexType]IndexType{
	IndexSP500JPY:  IndexSP500,
	IndexOrukanJPY: IndexOrukan,
}

// historySlugs is the path segment used by GET /api/{slug}/price-history.
var historySlugs = map[IndexType]string{
	IndexSP500:     "sp500",
	IndexSP500JPY:  "sp500-jpy",
	IndexTOPIX:     "topix",
	IndexNikkei:    "nikkei",
	IndexNifty50:   "nifty50",
	IndexOrukan:    "orukan",
	IndexOrukanJPY: "orukan-jpy",
}

var displayNames = map[IndexType]string{
	IndexSP500:     "S&P 500",
	IndexSP500JPY:  "S&P 500 (JPY)",
	IndexTOPIX:     "TOPIX",
	IndexNikkei:    "Nikkei 225",
	IndexNifty50:   "Nifty 50",
	IndexOrukan:    "All Country",
	IndexOrukanJPY: "All Country (JPY)",
}

// ParseIndexType accepts either the canonical value or its case-insensitive
// form ("sp500", "SP500_JPY").
func ParseIndexType(raw string) (IndexType, error) {
	raw = strings.TrimSpace(raw)
	for _, t := range SupportedTargets {
		if strings.EqualFold(string(t), raw) || strings.EqualFold(historySlugs[t], raw) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unsupported index: %q", raw)
}

func (t IndexType) IsValid() bool {
	_, ok := historySlugs[t]
	return ok
}

// HistorySlug returns the price-history path segment for t.
func (t IndexType) HistorySlug() string { return historySlugs[t] }

// DisplayName returns a short human label for t.
func (t IndexType) DisplayName() string {
	if name, ok := displayNames[t]; ok {
		return name
	}
	return string(t)
}

// IsCurrencyConverted reports whether t is the JPY member of a pair.
func (t IndexType) IsCurrencyConverted() bool {
	_, ok := currencyPairs[t]
	return ok
}

// PairOf returns the other member of t's currency pair.
func PairOf(t IndexType) (IndexType, bool) {
	if base, ok := currencyPairs[t]; ok {
		return base, true
	}
	for converted, base := range currencyPairs {
		if base == t {
			return converted, true
		}
	}
	return "", false
}

// BaseOf returns the USD-denominated member of t's pair, or t itself.
func BaseOf(t IndexType) IndexType {
	if base, ok := currencyPairs[t]; ok {
		return base
	}
	return t
}

// HasNAV reports whether the fund NAV endpoints apply to t.
func (t IndexType) HasNAV() bool {
	return BaseOf(t) == IndexSP500
}

// Scoring windows accepted by the service.
const DefaultScoreMA = 200

var SupportedScoreMAs = []int{20, 60, 200}

func IsSupportedScoreMA(ma int) bool {
	for _, v := range SupportedScoreMAs {
		if v == ma {
			return true
		}
	}
	return false
}

type Position struct {
	TotalQuantity float64 `json:"total_quantity"`
	AvgCost       float64 `json:"avg_cost"`
}

// EvaluationRequest is immutable once issued; pass it by value.
type EvaluationRequest struct {
	IndexType IndexType `json:"index_type"`
	Position
	ScoreMA   int    `json:"score_ma"`
	RequestID string `json:"request_id"`
}

type PricePoint struct {
	Date  string   `json:"date"`
	Close float64  `json:"close"`
	MA20  *float64 `json:"ma20,omitempty"`
	MA60  *float64 `json:"ma60,omitempty"`
	MA200 *float64 `json:"ma200,omitempty"`
}

// Time parses the point's ISO date. Timestamps with a time part are accepted.
func (p PricePoint) Time() (time.Time, error) {
	raw := strings.TrimSpace(p.Date)
	if len(raw) > 10 {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
		raw = raw[:10]
	}
	return time.Parse(time.DateOnly, raw)
}

type Scores struct {
	Technical       float64  `json:"technical"`
	Macro           float64  `json:"macro"`
	EventAdjustment float64  `json:"event_adjustment"`
	Total           float64  `json:"total"`
	Label           string   `json:"label"`
	PeriodTotal     *float64 `json:"period_total,omitempty"`
}

type Period string

const (
	PeriodShort Period = "short"
	PeriodMid   Period = "mid"
	PeriodLong  Period = "long"
)

var Periods = []Period{PeriodShort, PeriodMid, PeriodLong}

type PeriodBreakdown struct {
	Scores           Scores         `json:"scores"`
	TechnicalDetails map[string]any `json:"technical_details,omitempty"`
	MacroDetails     map[string]any `json:"macro_details,omitempty"`
}

// BackendStatus is the status field reported by the scoring service.
type BackendStatus string

const (
	BackendReady    BackendStatus = "ready"
	BackendDegraded BackendStatus = "degraded"
	BackendError    BackendStatus = "error"
	BackendLoading  BackendStatus = "loading"
)

type EvaluationResponse struct {
	CurrentPrice     float64                    `json:"current_price"`
	MarketValue      float64                    `json:"market_value"`
	UnrealizedPnL    float64                    `json:"unrealized_pnl"`
	Scores           Scores                     `json:"scores"`
	Periods          map[Period]PeriodBreakdown `json:"periods,omitempty"`
	TechnicalDetails map[string]any             `json:"technical_details,omitempty"`
	MacroDetails     map[string]any             `json:"macro_details,omitempty"`
	EventDetails     []map[string]any           `json:"event_details,omitempty"`
	Status           BackendStatus              `json:"status,omitempty"`
	Reasons          []string                   `json:"reasons,omitempty"`
	Complete         *bool                      `json:"complete,omitempty"`
	PriceSeries      []PricePoint               `json:"price_series"`
	RequestID        string                     `json:"request_id,omitempty"`
}

// UiEvalStatus is the presentation-facing projection of a response. It is
// recomputed on every response or error and never stored as ground truth.
type UiEvalStatus string

const (
	StatusLoading    UiEvalStatus = "loading"
	StatusReady      UiEvalStatus = "ready"
	StatusDegraded   UiEvalStatus = "degraded"
	StatusError      UiEvalStatus = "error"
	StatusRefreshing UiEvalStatus = "refreshing"
)

// DisplayState is what renderers read for one target.
type DisplayState struct {
	Target      IndexType           `json:"target"`
	Status      UiEvalStatus        `json:"status"`
	Response    *EvaluationResponse `json:"response"`
	IsRetrying  bool                `json:"is_retrying"`
	Provisional bool                `json:"provisional"`
	Exhausted   bool                `json:"exhausted"`
	Attempt     int                 `json:"attempt"`
	Err         string              `json:"error,omitempty"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type SyntheticNav struct {
	AsOf     string  `json:"asOf"`
	PriceUSD float64 `json:"priceUsd"`
	USDJPY   float64 `json:"usdJpy"`
	NavJPY   float64 `json:"navJpy"`
	Source   string  `json:"source"`
}

type FundNav struct {
	AsOf   string  `json:"asOf"`
	NavJPY float64 `json:"navJpy"`
	Source string  `json:"source"`
}

type BacktestRequest struct {
	IndexType     IndexType `json:"index_type"`
	StartDate     string    `json:"start_date"`
	EndDate       string    `json:"end_date"`
	InitialCash   float64   `json:"initial_cash"`
	BuyThreshold  float64   `json:"buy_threshold"`
	SellThreshold float64   `json:"sell_threshold"`
	ScoreMA       int       `json:"score_ma"`
}

type BacktestSummary struct {
	FinalEquity float64 `json:"final_equity"`
	HoldEquity  float64 `json:"hold_equity"`
	TotalReturn float64 `json:"total_return"`
	MaxDrawdown float64 `json:"max_drawdown"`
	TradeCount  int     `json:"trade_count"`
}

type BacktestResult struct {
	Summary     BacktestSummary `json:"summary"`
	EquityCurve []PricePoint    `json:"equity_curve"`
}

// Score label thresholds.
const (
	ScoreStrongSell = 80.0
	ScoreSell       = 60.0
	ScoreHold       = 40.0
)

// LabelForScore mirrors the service's label buckets for totals that arrive
// without a label.
func LabelForScore(total float64) string {
	switch {
	case total >= ScoreStrongSell:
		return "Strongly consider partial profit-taking"
	case total >= ScoreSell:
		return "Consider profit-taking"
	case total >= ScoreHold:
		return "Hold"
	default:
		return "Consider adding"
	}
}
