package fundamental

import (
	"math"
	"testing"

	"github.com/seenimoa/finsheet/pkg/models"
)

func dataset(rows ...models.CanonicalYearRecord) *models.FinancialDataset {
	ds := &models.FinancialDataset{Ticker: "AAPL"}
	for _, r := range rows {
		for k := range r.Values {
			ds.AddColumn(k)
		}
	}
	ds.Rows = rows
	ds.SortByYear()
	return ds
}

func year(y int, values map[string]float64) models.CanonicalYearRecord {
	return models.CanonicalYearRecord{Year: y, Values: values}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestComputeRatiosSingleEntity(t *testing.T) {
	ds := dataset(year(2023, map[string]float64{
		models.MetricRevenue:          1000,
		models.MetricNetIncome:        100,
		models.MetricEBITDA:           300,
		models.MetricEBIT:             250,
		models.MetricTotalAssets:      2000,
		models.MetricTotalLiabilities: 1500,
		models.MetricCash:             300,
	}))

	out := ComputeRatios(ds)
	row, _ := out.Row(2023)

	tests := []struct {
		name string
		want float64
	}{
		{RatioEBITDAMargin, 30},
		{RatioNetProfitMargin, 10},
		{RatioROA, 5},
		{RatioEBITMargin, 25},
		{RatioCash, 0.2},
		{RatioDebtToAsset, 0.75},
		{ColumnEquity, 500},
		{RatioDebtToEquity, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := row.Get(tt.name)
			if !ok {
				t.Fatalf("%s missing", tt.name)
			}
			if !approx(got, tt.want) {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
			}
			if !out.HasColumn(tt.name) {
				t.Errorf("column %s not declared", tt.name)
			}
		})
	}

	if ds.HasColumn(RatioROA) {
		t.Error("input dataset was mutated")
	}
}

func TestComputeRatiosZeroDenominator(t *testing.T) {
	ds := dataset(year(2022, map[string]float64{
		models.MetricRevenue:   0,
		models.MetricNetIncome: 50,
	}))
	out := ComputeRatios(ds)
	row, _ := out.Row(2022)
	if _, ok := row.Get(RatioNetProfitMargin); ok {
		t.Error("margin over zero revenue should be missing")
	}
	if !out.HasColumn(RatioNetProfitMargin) {
		t.Error("margin column should still be declared")
	}
}

func TestComputeRatiosMissingOperand(t *testing.T) {
	ds := dataset(
		year(2021, map[string]float64{models.MetricRevenue: 100, models.MetricEBITDA: 20}),
		year(2022, map[string]float64{models.MetricRevenue: 200}),
	)
	out := ComputeRatios(ds)
	series := out.Series(RatioEBITDAMargin)
	if v, ok := series[0].Get(); !ok || !approx(v, 20) {
		t.Errorf("2021 margin = %v,%v, want 20", v, ok)
	}
	if series[1].Valid {
		t.Error("2022 margin should be missing")
	}
}

func TestComputeRatiosZeroEquity(t *testing.T) {
	ds := dataset(year(2023, map[string]float64{
		models.MetricTotalAssets:      100,
		models.MetricTotalLiabilities: 100,
	}))
	row, _ := ComputeRatios(ds).Row(2023)
	if eq, _ := row.Get(ColumnEquity); eq != 0 {
		t.Errorf("equity = %v, want 0", eq)
	}
	if _, ok := row.Get(RatioDebtToEquity); ok {
		t.Error("D/E over zero equity should be missing")
	}
}

func TestComputeRatiosPerEntity(t *testing.T) {
	ds := &models.FinancialDataset{
		Columns: []string{"Revenue_AAPL", "Net Income_AAPL", "Revenue_MSFT", "Net Income_MSFT", "EBITDA_MSFT"},
		Rows: []models.CanonicalYearRecord{year(2023, map[string]float64{
			"Revenue_AAPL":    400,
			"Net Income_AAPL": 100,
			"Revenue_MSFT":    200,
			"Net Income_MSFT": 80,
			"EBITDA_MSFT":     100,
		})},
	}
	out := ComputeRatios(ds)
	row, _ := out.Row(2023)

	if v, _ := row.Get("Net Profit Margin_AAPL"); !approx(v, 25) {
		t.Errorf("AAPL margin = %v, want 25", v)
	}
	if v, _ := row.Get("Net Profit Margin_MSFT"); !approx(v, 40) {
		t.Errorf("MSFT margin = %v, want 40", v)
	}
	if v, _ := row.Get("EBITDA Margin_MSFT"); !approx(v, 50) {
		t.Errorf("MSFT EBITDA margin = %v, want 50", v)
	}
	if out.HasColumn("EBITDA Margin_AAPL") {
		t.Error("AAPL EBITDA margin must not pair with MSFT EBITDA")
	}
}

func TestSplitEntity(t *testing.T) {
	tests := []struct {
		column, base string
		want         string
		ok           bool
	}{
		{"Revenue", "Revenue", "", true},
		{"Revenue_AAPL", "Revenue", "AAPL", true},
		{"Revenue Estimate", "Revenue", "", false},
		{"Revenue MA3", "Revenue", "", false},
		{"Revenue_", "Revenue", "", false},
		{"EBIT Margin", "EBIT", "", false},
	}
	for _, tt := range tests {
		got, ok := SplitEntity(tt.column, tt.base)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SplitEntity(%q, %q) = %q,%v, want %q,%v", tt.column, tt.base, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMergeComparisonDisjointYears(t *testing.T) {
	a := dataset(
		year(2020, map[string]float64{models.MetricRevenue: 10}),
		year(2021, map[string]float64{models.MetricRevenue: 11}),
	)
	a.Ticker = "AAPL"
	b := dataset(
		year(2021, map[string]float64{models.MetricRevenue: 20}),
		year(2022, map[string]float64{models.MetricRevenue: 22}),
	)
	b.Ticker = "MSFT"

	m, err := MergeComparison(a, b, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.Years(); len(got) != 3 || got[0] != 2020 || got[2] != 2022 {
		t.Fatalf("years = %v, want [2020 2021 2022]", got)
	}
	if len(m.Entities) != 2 || m.Entities[0] != "AAPL" || m.Entities[1] != "MSFT" {
		t.Errorf("entities = %v", m.Entities)
	}

	r2020, _ := m.Row(2020)
	if _, ok := r2020.Get("Revenue_MSFT"); ok {
		t.Error("2020 MSFT revenue should be missing")
	}
	r2021, _ := m.Row(2021)
	if v, _ := r2021.Get("Revenue_AAPL"); v != 11 {
		t.Errorf("2021 AAPL = %v", v)
	}
	if v, _ := r2021.Get("Revenue_MSFT"); v != 20 {
		t.Errorf("2021 MSFT = %v", v)
	}
	r2022, _ := m.Row(2022)
	if _, ok := r2022.Get("Revenue_AAPL"); ok {
		t.Error("2022 AAPL revenue should be missing")
	}
}

func TestMergeComparisonErrors(t *testing.T) {
	a := dataset(year(2020, nil))
	if _, err := MergeComparison(a, nil, "A", "B"); err == nil {
		t.Error("expected error for nil dataset")
	}
	if _, err := MergeComparison(a, a.Clone(), "x", "X"); err == nil {
		t.Error("expected error for equal entity labels")
	}
}
