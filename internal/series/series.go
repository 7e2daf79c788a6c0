// Package series keeps per-target price history sorted by date and answers
// window queries relative to the last available point.
package series

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"time-to-sell/internal/domain"
)

// Window selects a suffix of a series. Named windows resolve against the
// last point's date; explicit windows carry their own start.
type Window struct {
	Name  string
	Start time.Time
}

var (
	Window1M  = Window{Name: "1M"}
	Window3M  = Window{Name: "3M"}
	Window6M  = Window{Name: "6M"}
	Window1Y  = Window{Name: "1Y"}
	Window3Y  = Window{Name: "3Y"}
	Window5Y  = Window{Name: "5Y"}
	WindowAll = Window{Name: "ALL"}
)

// NamedWindows in cycling order.
var NamedWindows = []Window{Window1M, Window3M, Window6M, Window1Y, Window3Y, Window5Y, WindowAll}

var namedOffsets = map[string]struct{ years, months int }{
	"1M": {0, 1},
	"3M": {0, 3},
	"6M": {0, 6},
	"1Y": {1, 0},
	"3Y": {3, 0},
	"5Y": {5, 0},
}

// Since builds an explicit window starting at start (inclusive).
func Since(start time.Time) Window {
	return Window{Start: truncateDay(start)}
}

// ParseWindow accepts a named window ("1m", "1Y", "all") or a YYYY-MM-DD start.
func ParseWindow(raw string) (Window, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return Window{}, fmt.Errorf("empty window")
	}
	if raw == WindowAll.Name {
		return WindowAll, nil
	}
	if _, ok := namedOffsets[raw]; ok {
		return Window{Name: raw}, nil
	}
	start, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return Window{}, fmt.Errorf("unsupported window %q", raw)
	}
	return Since(start), nil
}

func (w Window) String() string {
	if w.Name != "" {
		return w.Name
	}
	if w.Start.IsZero() {
		return WindowAll.Name
	}
	return w.Start.Format(time.DateOnly)
}

// Next returns the named window after w, wrapping around.
func (w Window) Next() Window {
	for i, nw := range NamedWindows {
		if nw.Name == w.Name {
			return NamedWindows[(i+1)%len(NamedWindows)]
		}
	}
	return NamedWindows[0]
}

// StartFor resolves the window's start date relative to last. ok is false
// when the window covers the whole series.
func (w Window) StartFor(last time.Time) (start time.Time, ok bool) {
	if w.Name == "" {
		if w.Start.IsZero() {
			return time.Time{}, false
		}
		return w.Start, true
	}
	off, named := namedOffsets[w.Name]
	if !named {
		return time.Time{}, false
	}
	return truncateDay(last).AddDate(-off.years, -off.months, 0), true
}

type datedPoint struct {
	at    time.Time
	point domain.PricePoint
}

// Store is safe for concurrent use. Callers replace a target's series
// wholesale; the store never merges.
type Store struct {
	mu     sync.RWMutex
	series map[domain.IndexType][]datedPoint
}

func NewStore() *Store {
	return &Store{series: make(map[domain.IndexType][]datedPoint)}
}

// Replace normalizes points (ascending by date, one point per date with the
// last occurrence winning, unparseable dates dropped) and swaps them in. It
// returns the number of points kept.
func (s *Store) Replace(target domain.IndexType, points []domain.PricePoint) int {
	normalized := normalize(points)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[target] = normalized
	return len(normalized)
}

// normalize sorts and de-duplicates points without touching any store.
func normalize(points []domain.PricePoint) []datedPoint {
	byDay := make(map[time.Time]int, len(points))
	out := make([]datedPoint, 0, len(points))
	for _, p := range points {
		at, err := p.Time()
		if err != nil {
			continue
		}
		at = truncateDay(at)
		p.Date = at.Format(time.DateOnly)
		if idx, dup := byDay[at]; dup {
			out[idx].point = p
			continue
		}
		byDay[at] = len(out)
		out = append(out, datedPoint{at: at, point: p})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })
	return out
}

// SortPoints returns a sorted, de-duplicated copy of points.
func SortPoints(points []domain.PricePoint) []domain.PricePoint {
	return unwrap(normalize(points))
}

// Get returns a copy of target's series.
func (s *Store) Get(target domain.IndexType) []domain.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return unwrap(s.series[target])
}

// Last returns the most recent point.
func (s *Store) Last(target domain.IndexType) (domain.PricePoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pts := s.series[target]
	if len(pts) == 0 {
		return domain.PricePoint{}, false
	}
	return pts[len(pts)-1].point, true
}

func (s *Store) Len(target domain.IndexType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[target])
}

// Window returns the suffix of target's series on or after the window start.
func (s *Store) Window(target domain.IndexType, w Window) []domain.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return unwrap(windowOf(s.series[target], w))
}

// Forget drops target's series.
func (s *Store) Forget(target domain.IndexType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.series, target)
}

// Slice applies w to an arbitrary, possibly unsorted, series.
func Slice(points []domain.PricePoint, w Window) []domain.PricePoint {
	return unwrap(windowOf(normalize(points), w))
}

func windowOf(pts []datedPoint, w Window) []datedPoint {
	if len(pts) == 0 {
		return nil
	}
	start, ok := w.StartFor(pts[len(pts)-1].at)
	if !ok {
		return pts
	}
	idx := sort.Search(len(pts), func(i int) bool { return !pts[i].at.Before(start) })
	return pts[idx:]
}

func unwrap(pts []datedPoint) []domain.PricePoint {
	if len(pts) == 0 {
		return nil
	}
	out := make([]domain.PricePoint, len(pts))
	for i, p := range pts {
		out[i] = p.point
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
