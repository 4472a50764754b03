package report

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMean(t *testing.T) {
	if got := mean(nil); got != 0 {
		t.Fatalf("mean of empty should be 0, got %v", got)
	}
	if got := mean([]float64{2, 4, 6}); !almostEqual(got, 4) {
		t.Fatalf("expected mean 4, got %v", got)
	}
}

func TestPercentileInterpolates(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	if got := percentile(sorted, 0.5); !almostEqual(got, 2.5) {
		t.Fatalf("expected median 2.5, got %v", got)
	}
	if got := percentile(sorted, 0); !almostEqual(got, 1) {
		t.Fatalf("expected p0 = 1, got %v", got)
	}
	if got := percentile(sorted, 1); !almostEqual(got, 4) {
		t.Fatalf("expected p100 = 4, got %v", got)
	}
	if got := percentile([]float64{7}, 0.5); !almostEqual(got, 7) {
		t.Fatalf("single value is its own percentile, got %v", got)
	}
}

func TestMedianIgnoresInputOrder(t *testing.T) {
	if got := median([]float64{9, 1, 5}); !almostEqual(got, 5) {
		t.Fatalf("expected median 5, got %v", got)
	}
}

func TestPercentOf(t *testing.T) {
	if got := percentOf(1, 0); got != 0 {
		t.Fatalf("zero denominator should yield 0, got %v", got)
	}
	if got := percentOf(1, 3); got != 33.3 {
		t.Fatalf("expected 33.3, got %v", got)
	}
	if got := percentOf(2, 3); got != 66.7 {
		t.Fatalf("expected 66.7, got %v", got)
	}
}

func TestBuildHistogramEdges(t *testing.T) {
	bins := buildHistogram([]float64{0, 10}, 0, 10)
	if len(bins) != histogramBins {
		t.Fatalf("expected %d bins, got %d", histogramBins, len(bins))
	}
	if bins[0].Count != 1 {
		t.Fatalf("lo value belongs in the first bin, got %+v", bins[0])
	}
	// The max value lands in the last bin, not an out-of-range ninth.
	if bins[len(bins)-1].Count != 1 {
		t.Fatalf("hi value belongs in the last bin, got %+v", bins[len(bins)-1])
	}
}

func TestBuildHistogramDegenerateRange(t *testing.T) {
	bins := buildHistogram([]float64{5, 5, 5}, 5, 5)
	if len(bins) != 1 {
		t.Fatalf("degenerate range should collapse to one bin, got %d", len(bins))
	}
	if bins[0].Count != 3 || bins[0].Percent != 100 {
		t.Fatalf("unexpected bin: %+v", bins[0])
	}
}
