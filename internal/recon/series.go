package recon

import (
	"sort"
	"time"

	"github.com/rewired-gh/polyrecon/internal/models"
	"github.com/rewired-gh/polyrecon/internal/price"
)

// MergeTrades combines the two trade legs into a single
// YES-denominated timeline: YES trades contribute their price
// directly, NO trades contribute the complement. The result is
// stably sorted ascending by timestamp, YES before NO on ties.
//
// There is no cross-leg deduplication. A YES trade and a NO trade at
// the same instant are independent events and both are kept.
func MergeTrades(yes, no []models.TradePoint) []models.SeriesPoint {
	merged := make([]models.SeriesPoint, 0, len(yes)+len(no))
	for _, t := range yes {
		merged = append(merged, models.SeriesPoint{
			Timestamp: t.Timestamp,
			YesPrice:  t.Price,
			Source:    models.LegYes,
		})
	}
	for _, t := range no {
		merged = append(merged, models.SeriesPoint{
			Timestamp: t.Timestamp,
			YesPrice:  t.Price.Complement(),
			Source:    models.LegNo,
		})
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged
}

// LegSeries is one token's bucketed history, deduplicated and sorted
// for timestamp lookup. Bucketed legs are kept independent: they are
// not merged or inverted implicitly, since each already tracks its
// own token's price.
type LegSeries struct {
	points []models.HistoryPoint
	byTime map[int64]price.Price
}

// NewLegSeries builds a LegSeries from raw history points: sorts
// ascending by timestamp and collapses exact-timestamp duplicates,
// keeping the first occurrence.
func NewLegSeries(points []models.HistoryPoint) *LegSeries {
	sorted := make([]models.HistoryPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	s := &LegSeries{byTime: make(map[int64]price.Price, len(sorted))}
	for _, p := range sorted {
		key := p.Timestamp.Unix()
		if _, seen := s.byTime[key]; seen {
			continue
		}
		s.byTime[key] = p.Price
		s.points = append(s.points, p)
	}
	return s
}

// Len returns the number of distinct points in the series.
func (s *LegSeries) Len() int {
	return len(s.points)
}

// Points returns the deduplicated, ascending-sorted series.
func (s *LegSeries) Points() []models.HistoryPoint {
	out := make([]models.HistoryPoint, len(s.points))
	copy(out, s.points)
	return out
}

// At looks up the price at an exact timestamp. The feed reports
// epoch seconds, so lookups use second granularity.
func (s *LegSeries) At(t time.Time) (price.Price, bool) {
	p, ok := s.byTime[t.Unix()]
	return p, ok
}

// Invert returns a new series with every price complemented. Callers
// wanting a NO leg in YES denomination apply this explicitly.
func (s *LegSeries) Invert() *LegSeries {
	inverted := make([]models.HistoryPoint, len(s.points))
	for i, p := range s.points {
		inverted[i] = models.HistoryPoint{Timestamp: p.Timestamp, Price: p.Price.Complement()}
	}
	return NewLegSeries(inverted)
}
