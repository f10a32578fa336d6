// Package trend computes growth statistics and moving averages over the
// per-year series of a FinancialDataset.
package trend

import (
	"math"

	"github.com/seenimoa/finsheet/pkg/models"
)

// DefaultWindow is the number of trailing growth rates averaged into the
// recent trend.
const DefaultWindow = 3

// YoY returns year-over-year growth in percent, aligned with values. The
// first point, and any point where either neighbour is missing, is missing.
func YoY(values []models.Value) []models.Value {
	out := make([]models.Value, len(values))
	for i := 1; i < len(values); i++ {
		cur, ok1 := values[i].Get()
		prev, ok2 := values[i-1].Get()
		if !ok1 || !ok2 || prev == 0 {
			continue
		}
		out[i] = models.Some((cur/prev - 1) * 100)
	}
	return out
}

// CAGR returns the compound annual growth rate in percent between the first
// and last present observations. It is missing unless the last year is after
// the first and the first value is positive.
func CAGR(years []int, values []models.Value) models.Value {
	first, last := -1, -1
	for i, v := range values {
		if !v.Valid {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 || first == last {
		return models.Missing
	}
	span := years[last] - years[first]
	fv, lv := values[first].V, values[last].V
	if span <= 0 || fv <= 0 {
		return models.Missing
	}
	return models.Some((math.Pow(lv/fv, 1/float64(span)) - 1) * 100)
}

// RecentTrend averages the present growth rates among the trailing
// min(window, len(yoy)) entries.
func RecentTrend(yoy []models.Value, window int) models.Value {
	if window <= 0 {
		window = DefaultWindow
	}
	start := len(yoy) - window
	if start < 0 {
		start = 0
	}
	sum, n := 0.0, 0
	for _, v := range yoy[start:] {
		if x, ok := v.Get(); ok {
			sum += x
			n++
		}
	}
	if n == 0 {
		return models.Missing
	}
	return models.Some(sum / float64(n))
}

// Analyze summarises one metric. years and values must be aligned and
// ascending by year.
func Analyze(metric string, years []int, values []models.Value, window int) models.TrendResult {
	res := models.TrendResult{
		Metric: metric,
		Years:  append([]int(nil), years...),
		YoY:    YoY(values),
	}
	if len(values) > 0 {
		res.Latest = values[len(values)-1]
	}

	sum, n := 0.0, 0
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		x, ok := v.Get()
		if !ok {
			continue
		}
		sum += x
		n++
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if n > 0 {
		res.Mean = models.Some(sum / float64(n))
		res.Min = models.Some(lo)
		res.Max = models.Some(hi)
	}
	res.CAGR = CAGR(years, values)
	res.RecentTrend = RecentTrend(res.YoY, window)
	return res
}

// AnalyzeDataset summarises each listed metric present in ds. The dataset is
// not modified.
func AnalyzeDataset(ds *models.FinancialDataset, metrics []string, window int) map[string]models.TrendResult {
	out := make(map[string]models.TrendResult)
	if ds == nil {
		return out
	}
	sorted := ds.Clone()
	sorted.SortByYear()
	years := sorted.Years()
	for _, m := range metrics {
		if !sorted.HasColumn(m) {
			continue
		}
		out[m] = Analyze(m, years, sorted.Series(m), window)
	}
	return out
}
