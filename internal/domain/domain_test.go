package domain

import (
	"encoding/json"
	"testing"
)

func TestParseIndexType(t *testing.T) {
	cases := map[string]IndexType{
		"SP500":      IndexSP500,
		"sp500":      IndexSP500,
		"SP500_JPY":  IndexSP500JPY,
		"sp500-jpy":  IndexSP500JPY,
		" topix ":    IndexTOPIX,
		"orukan-jpy": IndexOrukanJPY,
	}
	for raw, want := range cases {
		got, err := ParseIndexType(raw)
		if err != nil {
			t.Fatalf("ParseIndexType(%q) unexpected error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseIndexType(%q) = %s, want %s", raw, got, want)
		}
	}

	if _, err := ParseIndexType("DOW"); err == nil {
		t.Fatal("expected error for unsupported index")
	}
}

func TestPairOfIsSymmetric(t *testing.T) {
	for _, tc := range []struct {
		a, b IndexType
	}{
		{IndexSP500, IndexSP500JPY},
		{IndexOrukan, IndexOrukanJPY},
	} {
		got, ok := PairOf(tc.a)
		if !ok || got != tc.b {
			t.Fatalf("PairOf(%s) = %s,%v want %s", tc.a, got, ok, tc.b)
		}
		got, ok = PairOf(tc.b)
		if !ok || got != tc.a {
			t.Fatalf("PairOf(%s) = %s,%v want %s", tc.b, got, ok, tc.a)
		}
	}

	if _, ok := PairOf(IndexTOPIX); ok {
		t.Fatal("TOPIX should not be paired")
	}
}

func TestBaseOfAndNAV(t *testing.T) {
	if BaseOf(IndexSP500JPY) != IndexSP500 || BaseOf(IndexNikkei) != IndexNikkei {
		t.Fatal("unexpected base mapping")
	}
	if !IndexSP500JPY.HasNAV() || !IndexSP500.HasNAV() || IndexOrukan.HasNAV() {
		t.Fatal("unexpected NAV applicability")
	}
	if !IndexSP500JPY.IsCurrencyConverted() || IndexSP500.IsCurrencyConverted() {
		t.Fatal("unexpected currency conversion flag")
	}
}

func TestPricePointTime(t *testing.T) {
	p := PricePoint{Date: "2024-03-01"}
	ts, err := p.Time()
	if err != nil || ts.Day() != 1 || ts.Month() != 3 {
		t.Fatalf("unexpected parse: %v %v", ts, err)
	}

	p = PricePoint{Date: "2024-03-01T00:00:00+09:00"}
	ts, err = p.Time()
	if err != nil || ts.Day() != 1 {
		t.Fatalf("unexpected parse of timestamp: %v %v", ts, err)
	}

	if _, err := (PricePoint{Date: "yesterday"}).Time(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLabelForScore(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{85, "Strongly consider partial profit-taking"},
		{80, "Strongly consider partial profit-taking"},
		{72.3, "Consider profit-taking"},
		{40, "Hold"},
		{12, "Consider adding"},
	}
	for _, tc := range cases {
		if got := LabelForScore(tc.score); got != tc.want {
			t.Errorf("LabelForScore(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestEvaluationRequestJSONFlattensPosition(t *testing.T) {
	req := EvaluationRequest{
		IndexType: IndexSP500,
		Position:  Position{TotalQuantity: 10, AvgCost: 25000},
		ScoreMA:   200,
		RequestID: "abc",
	}
	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["total_quantity"] != 10.0 || out["avg_cost"] != 25000.0 || out["index_type"] != "SP500" {
		t.Fatalf("unexpected wire form: %s", raw)
	}
}
