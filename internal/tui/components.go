package tui

import (
	"fmt"
	"math"
	"strings"

	"time-to-sell/internal/domain"
	"time-to-sell/internal/insight"
	"time-to-sell/internal/session"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// RenderSparkline squeezes closes into width block characters. Each cell
// shows the last close of its bucket.
func RenderSparkline(points []domain.PricePoint, width int) string {
	if len(points) == 0 || width <= 0 {
		return SubtextStyle.Render("no price history")
	}
	if width > len(points) {
		width = len(points)
	}

	values := make([]float64, width)
	for i := range values {
		idx := (i+1)*len(points)/width - 1
		values[i] = points[idx].Close
	}

	minV, maxV := values[0], values[0]
	for _, v := range values {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}

	var b strings.Builder
	for _, v := range values {
		level := 0
		if maxV > minV {
			level = int(math.Round((v - minV) / (maxV - minV) * float64(len(sparkBlocks)-1)))
		}
		b.WriteRune(sparkBlocks[level])
	}
	return SparkStyle.Render(b.String())
}

// RenderScoreBar renders a 0-100 score as a horizontal bar.
func RenderScoreBar(label string, score float64, barWidth int) string {
	if barWidth <= 0 {
		barWidth = 20
	}
	clamped := math.Max(0, math.Min(100, score))
	filled := int(math.Round(clamped / 100 * float64(barWidth)))
	empty := barWidth - filled

	style := scoreStyle(score)
	bar := style.Render(strings.Repeat("█", filled)) + SubtextStyle.Render(strings.Repeat("░", empty))
	return fmt.Sprintf("%-10s %s %5.1f", label, bar, score)
}

// FormatStateLine renders one target's display state as a single line.
func FormatStateLine(st domain.DisplayState) string {
	name := fmt.Sprintf("%-18s", st.Target.DisplayName())
	if st.Response == nil {
		msg := "waiting for first evaluation"
		if st.Err != "" {
			msg = st.Err
		}
		return fmt.Sprintf("%s %s  %s", name, StatusBadge(st.Status), SubtextStyle.Render(msg))
	}
	scores := st.Response.Scores
	label := scores.Label
	if label == "" {
		label = domain.LabelForScore(scores.Total)
	}
	return fmt.Sprintf("%s %s  %s  %s  %s",
		name,
		StatusBadge(st.Status),
		scoreStyle(scores.Total).Render(fmt.Sprintf("%5.1f", scores.Total)),
		formatPrice(st.Response.CurrentPrice),
		label,
	)
}

// FormatInsight renders the currency impact panel lines.
func FormatInsight(ci *insight.CurrencyImpact) []string {
	if ci == nil {
		return nil
	}
	return []string{
		HeaderStyle.Render("Currency impact") + SubtextStyle.Render(fmt.Sprintf("  %s to %s", ci.From, ci.To)),
		fmt.Sprintf("USD return  %s", formatSignedPct(ci.USDReturn)),
		fmt.Sprintf("JPY return  %s", formatSignedPct(ci.JPYReturn)),
		fmt.Sprintf("FX impact   %s", formatSignedPct(ci.Impact)),
	}
}

// FormatNav renders the NAV panel lines.
func FormatNav(nav *session.NavState) []string {
	if nav == nil {
		return nil
	}
	lines := []string{HeaderStyle.Render("NAV")}
	if s := nav.Synthetic; s != nil {
		lines = append(lines, fmt.Sprintf("Synthetic  ¥%s  (USD %.2f x %.2f, %s)",
			addCommas(fmt.Sprintf("%.0f", s.NavJPY)), s.PriceUSD, s.USDJPY, s.AsOf))
	}
	if f := nav.Fund; f != nil {
		lines = append(lines, fmt.Sprintf("Official   ¥%s  (%s)", addCommas(fmt.Sprintf("%.0f", f.NavJPY)), f.AsOf))
	}
	if nav.Err != "" {
		lines = append(lines, WarnStyle.Render(nav.Err))
	}
	return lines
}

func formatSignedPct(v float64) string {
	style := PriceZeroStyle
	sign := ""
	if v > 0 {
		style = PriceUpStyle
		sign = "+"
	} else if v < 0 {
		style = PriceDownStyle
	}
	return style.Render(fmt.Sprintf("%s%.2f%%", sign, v))
}

func formatPrice(v float64) string {
	if v >= 1000 {
		cents := int64(math.Round(v * 100))
		return addCommas(fmt.Sprintf("%d", cents/100)) + fmt.Sprintf(".%02d", cents%100)
	}
	return fmt.Sprintf("%.2f", v)
}

func addCommas(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	n := len(s)
	if n <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var result strings.Builder
	if neg {
		result.WriteByte('-')
	}
	for i, ch := range s {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(ch)
	}
	return result.String()
}
