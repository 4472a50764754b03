package report

import (
	"math"
	"sort"
)

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// percentile expects values sorted ascending and interpolates linearly
// between neighbors.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return percentile(sorted, 0.5)
}

// roundPercent keeps one decimal place so per-option percentages stay
// human-readable but still sum to ~100 within rounding tolerance.
func roundPercent(v float64) float64 {
	return math.Round(v*10) / 10
}

func percentOf(count, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return roundPercent(float64(count) / float64(denominator) * 100)
}

// histogramBins is the fixed bin count for numeric summaries.
const histogramBins = 8

// buildHistogram buckets values into histogramBins equal-width bins between
// lo and hi. A degenerate range (lo == hi) collapses to a single bin holding
// everything.
func buildHistogram(values []float64, lo, hi float64) []Bin {
	if len(values) == 0 {
		return nil
	}
	if hi <= lo {
		return []Bin{{
			From:    lo,
			To:      lo,
			Count:   len(values),
			Percent: 100,
		}}
	}

	width := (hi - lo) / float64(histogramBins)
	bins := make([]Bin, histogramBins)
	for i := range bins {
		bins[i].From = lo + width*float64(i)
		bins[i].To = lo + width*float64(i+1)
	}

	for _, v := range values {
		idx := int((v - lo) / width)
		if idx < 0 {
			idx = 0
		}
		if idx >= histogramBins {
			idx = histogramBins - 1
		}
		bins[idx].Count++
	}
	for i := range bins {
		bins[i].Percent = percentOf(bins[i].Count, len(values))
	}
	return bins
}
