// Package status collapses a raw evaluation response into the small set of
// UI statuses renderers understand. Everything here is pure.
package status

import (
	"strings"

	"time-to-sell/internal/domain"
)

// Reason codes reported by the scoring service.
const (
	ReasonTechnicalUnavailable = "TECHNICAL_UNAVAILABLE"
	ReasonTechnicalPending     = "TECHNICAL_PENDING"
	ReasonInsufficientHistory  = "INSUFFICIENT_HISTORY"
	ReasonPriceHistoryEmpty    = "PRICE_HISTORY_EMPTY"
	ReasonPriceHistoryPartial  = "PRICE_HISTORY_POPULATING"
	ReasonMacroUnavailable     = "MACRO_UNAVAILABLE"
	ReasonEventsUnavailable    = "EVENTS_UNAVAILABLE"
	ReasonStalePriceFeed       = "STALE_PRICE_FEED"
	ReasonNavSynthetic         = "NAV_FALLBACK_SYNTHETIC"
	ReasonUpstreamUnavailable  = "UPSTREAM_UNAVAILABLE"
)

// technicalMissing are the codes that mean the technical score was not
// computed from real data.
var technicalMissing = map[string]struct{}{
	ReasonTechnicalUnavailable: {},
	ReasonTechnicalPending:     {},
	ReasonInsufficientHistory:  {},
	ReasonPriceHistoryEmpty:    {},
	ReasonPriceHistoryPartial:  {},
}

var reasonText = map[string]string{
	ReasonTechnicalUnavailable: "Technical indicators are unavailable for now.",
	ReasonTechnicalPending:     "Technical indicators are still being computed.",
	ReasonInsufficientHistory:  "Not enough price history to compute moving averages yet.",
	ReasonPriceHistoryEmpty:    "Price history has not been loaded yet.",
	ReasonPriceHistoryPartial:  "Price history is still being populated.",
	ReasonMacroUnavailable:     "Macro indicators could not be refreshed; the last known values are used.",
	ReasonEventsUnavailable:    "The event calendar is unavailable; no event adjustment applied.",
	ReasonStalePriceFeed:       "The price feed is stale; the latest close may be out of date.",
	ReasonNavSynthetic:         "The official fund NAV is unavailable; a synthetic NAV is shown.",
	ReasonUpstreamUnavailable:  "The market data provider is temporarily unavailable.",
}

const unknownReasonText = "The evaluation is based on incomplete data."

// Placeholder heuristic thresholds; only applied when the service does not
// send an explicit completeness flag.
const (
	suspectMacroFloor  = 50.0
	technicalBaseField = "T_base"
)

// Resolve maps a response to a UI status. Rules, in priority order: backend
// error, absent/loading status, incomplete data, then pass-through.
func Resolve(resp *domain.EvaluationResponse) domain.UiEvalStatus {
	if resp == nil {
		return domain.StatusLoading
	}

	switch domain.BackendStatus(strings.ToLower(strings.TrimSpace(string(resp.Status)))) {
	case domain.BackendError:
		return domain.StatusError
	case "", domain.BackendLoading:
		return domain.StatusLoading
	case domain.BackendReady:
		if Incomplete(resp) {
			return domain.StatusDegraded
		}
		return domain.StatusReady
	default:
		// degraded, or a value this client does not know.
		return domain.StatusDegraded
	}
}

// ResolveError is the companion for failed round trips.
func ResolveError(err error) domain.UiEvalStatus {
	_ = err
	return domain.StatusError
}

// Incomplete reports whether resp is known to rest on partial upstream data.
func Incomplete(resp *domain.EvaluationResponse) bool {
	if resp == nil {
		return true
	}
	if resp.Complete != nil && !*resp.Complete {
		return true
	}
	if HasTechnicalMissing(resp.Reasons) {
		return true
	}
	if len(resp.PriceSeries) == 0 {
		return true
	}
	if resp.Complete == nil && looksInconsistent(resp) {
		return true
	}
	return false
}

// HasTechnicalMissing reports whether any reason code marks the technical
// score as unavailable.
func HasTechnicalMissing(reasons []string) bool {
	for _, r := range reasons {
		if _, ok := technicalMissing[normalizeCode(r)]; ok {
			return true
		}
	}
	return false
}

func looksInconsistent(resp *domain.EvaluationResponse) bool {
	if resp.Scores.Technical == 0 && resp.Scores.Macro >= suspectMacroFloor {
		return true
	}
	if resp.TechnicalDetails != nil {
		if _, ok := resp.TechnicalDetails[technicalBaseField]; !ok {
			return true
		}
	} else {
		return true
	}
	return false
}

// ReasonText returns a short human explanation for one reason code.
func ReasonText(code string) string {
	if text, ok := reasonText[normalizeCode(code)]; ok {
		return text
	}
	return unknownReasonText
}

// Explain maps reason codes to de-duplicated human text, preserving order.
func Explain(reasons []string) []string {
	out := make([]string, 0, len(reasons))
	seen := make(map[string]struct{}, len(reasons))
	for _, r := range reasons {
		if strings.TrimSpace(r) == "" {
			continue
		}
		text := ReasonText(r)
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, text)
	}
	return out
}

func normalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.ReplaceAll(code, "-", "_")
}
