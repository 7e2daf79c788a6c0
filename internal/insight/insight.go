// Package insight derives the currency-impact comparison for a JPY/USD
// target pair over a chart window.
package insight

import (
	"errors"
	"math"

	"time-to-sell/internal/domain"
	"time-to-sell/internal/series"
)

var ErrInsufficientData = errors.New("insufficient data for currency insight")

// CurrencyImpact compares returns of the USD base and its JPY-converted view
// over the same window. Returns are percentages.
type CurrencyImpact struct {
	Base      domain.IndexType `json:"base"`
	Converted domain.IndexType `json:"converted"`
	Window    string           `json:"window"`
	From      string           `json:"from"`
	To        string           `json:"to"`
	USDReturn float64          `json:"usd_return"`
	JPYReturn float64          `json:"jpy_return"`
	// Impact is JPYReturn minus USDReturn: positive when yen weakness added
	// to the JPY holder's return.
	Impact float64 `json:"impact"`
}

// SeriesReader is the subset of series.Store used here.
type SeriesReader interface {
	Window(target domain.IndexType, w series.Window) []domain.PricePoint
}

// ForPair computes the impact for target's pair from store. target may be
// either member of the pair.
func ForPair(store SeriesReader, target domain.IndexType, w series.Window) (CurrencyImpact, error) {
	base := domain.BaseOf(target)
	converted, ok := domain.PairOf(base)
	if !ok {
		return CurrencyImpact{}, ErrInsufficientData
	}
	return Compute(base, converted, store.Window(base, w), store.Window(converted, w), w)
}

// Compute aligns both series on their common date range before taking
// returns so a lagging feed does not skew the comparison.
func Compute(base, converted domain.IndexType, usd, jpy []domain.PricePoint, w series.Window) (CurrencyImpact, error) {
	usd = series.SortPoints(usd)
	jpy = series.SortPoints(jpy)
	if len(usd) < 2 || len(jpy) < 2 {
		return CurrencyImpact{}, ErrInsufficientData
	}

	from := maxDate(usd[0].Date, jpy[0].Date)
	to := minDate(usd[len(usd)-1].Date, jpy[len(jpy)-1].Date)
	if from >= to {
		return CurrencyImpact{}, ErrInsufficientData
	}

	usdStart, usdEnd, ok := bounds(usd, from, to)
	if !ok {
		return CurrencyImpact{}, ErrInsufficientData
	}
	jpyStart, jpyEnd, ok := bounds(jpy, from, to)
	if !ok {
		return CurrencyImpact{}, ErrInsufficientData
	}

	usdRet := pctChange(usdStart, usdEnd)
	jpyRet := pctChange(jpyStart, jpyEnd)
	return CurrencyImpact{
		Base:      base,
		Converted: converted,
		Window:    w.String(),
		From:      from,
		To:        to,
		USDReturn: round2(usdRet),
		JPYReturn: round2(jpyRet),
		Impact:    round2(jpyRet - usdRet),
	}, nil
}

// bounds returns the first close on/after from and the last close on/before
// to. Dates are ISO days so string comparison orders them.
func bounds(points []domain.PricePoint, from, to string) (float64, float64, bool) {
	start, end := math.NaN(), math.NaN()
	for _, p := range points {
		if p.Date >= from && math.IsNaN(start) {
			start = p.Close
		}
		if p.Date <= to {
			end = p.Close
		}
	}
	if math.IsNaN(start) || math.IsNaN(end) || start <= 0 {
		return 0, 0, false
	}
	return start, end, true
}

func pctChange(start, end float64) float64 {
	return (end/start - 1) * 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func maxDate(a, b string) string {
	if a > b {
		return a
	}
	return b
}

func minDate(a, b string) string {
	if a < b {
		return a
	}
	return b
}
