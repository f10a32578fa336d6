package trend

import (
	"fmt"
	"strings"

	"github.com/seenimoa/finsheet/pkg/models"
)

// SMA calculates a trailing Simple Moving Average over optional values.
// Point i is defined only when the k values ending at i are all present;
// a gap restarts the window.
func SMA(data []models.Value, period int) []models.Value {
	n := len(data)
	result := make([]models.Value, n)
	if period <= 0 {
		return result
	}

	sum := 0.0
	run := 0
	for i := 0; i < n; i++ {
		v, ok := data[i].Get()
		if !ok {
			sum, run = 0, 0
			continue
		}
		sum += v
		run++
		if run > period {
			prev, _ := data[i-period].Get()
			sum -= prev
			run = period
		}
		if run == period {
			result[i] = models.Some(sum / float64(period))
		}
	}
	return result
}

// MovingAverageColumn names the k-period moving-average column of metric.
func MovingAverageColumn(metric string, period int) string {
	return fmt.Sprintf("%s MA%d", metric, period)
}

// AddMovingAverages returns a copy of ds with one moving-average column per
// (metric, window). Metrics absent from ds are skipped.
func AddMovingAverages(ds *models.FinancialDataset, metrics []string, windows []int) *models.FinancialDataset {
	out := ds.Clone()
	if out == nil {
		return nil
	}
	out.SortByYear()
	for _, m := range metrics {
		if !out.HasColumn(m) {
			continue
		}
		series := out.Series(m)
		for _, k := range windows {
			if k <= 0 {
				continue
			}
			name := MovingAverageColumn(m, k)
			out.AddColumn(name)
			for i, v := range SMA(series, k) {
				if x, ok := v.Get(); ok {
					out.Rows[i].Set(name, x)
				}
			}
		}
	}
	return out
}

// IsMovingAverageColumn reports whether a column was produced by
// AddMovingAverages.
func IsMovingAverageColumn(name string) bool {
	i := strings.LastIndex(name, " MA")
	if i < 0 || i+3 >= len(name) {
		return false
	}
	for _, r := range name[i+3:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
