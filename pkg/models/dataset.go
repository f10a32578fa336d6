package models

import (
	"math"
	"sort"
)

// Friendly metric names used as dataset columns.
const (
	MetricRevenue          = "Revenue"
	MetricNetIncome        = "Net Income"
	MetricEBITDA           = "EBITDA"
	MetricEBIT             = "EBIT"
	MetricTotalAssets      = "Total Assets"
	MetricTotalLiabilities = "Total Liabilities"
	MetricCash             = "Cash & Equivalents"
	MetricPERatio          = "P/E Ratio"
	MetricMarketCap        = "Market Cap"
	MetricStockPrice       = "Stock Price"
	MetricRevenueEstimate  = "Revenue Estimate"
	MetricEBITDAEstimate   = "EBITDA Estimate"
	MetricEPSEstimate      = "EPS Estimate"
)

// Outcome classifies how much of a dataset was recovered.
type Outcome string

const (
	OutcomeEmpty    Outcome = "empty"
	OutcomePartial  Outcome = "partial"
	OutcomeComplete Outcome = "complete"
)

// CanonicalYearRecord is one fiscal year of named metric values. A metric
// absent from Values is missing.
type CanonicalYearRecord struct {
	Year    int                `json:"year"`
	Date    string             `json:"date"`
	Ticker  string             `json:"ticker,omitempty"`
	Company string             `json:"company,omitempty"`
	Values  map[string]float64 `json:"values"`
}

// Get returns a metric value and whether it is present.
func (r CanonicalYearRecord) Get(name string) (float64, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Value returns a metric as an optional value.
func (r CanonicalYearRecord) Value(name string) Value {
	if v, ok := r.Values[name]; ok {
		return Some(v)
	}
	return Missing
}

// Set writes a metric, replacing any earlier value.
func (r *CanonicalYearRecord) Set(name string, v float64) {
	if r.Values == nil {
		r.Values = make(map[string]float64)
	}
	r.Values[name] = v
}

// FinancialDataset is an ascending-by-year sequence of year records.
type FinancialDataset struct {
	Ticker         string                `json:"ticker,omitempty"`
	Company        string                `json:"company,omitempty"`
	CompanyID      string                `json:"company_id,omitempty"`
	UltimateParent string                `json:"ultimate_parent,omitempty"`
	Entities       []string              `json:"entities,omitempty"`
	Columns        []string              `json:"columns"`
	Rows           []CanonicalYearRecord `json:"rows"`
}

// AddColumn appends a column name once.
func (d *FinancialDataset) AddColumn(name string) {
	if d.HasColumn(name) {
		return
	}
	d.Columns = append(d.Columns, name)
}

// HasColumn reports whether name is a declared column.
func (d *FinancialDataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Years returns the row years in order.
func (d *FinancialDataset) Years() []int {
	years := make([]int, len(d.Rows))
	for i, r := range d.Rows {
		years[i] = r.Year
	}
	return years
}

// Series returns one column as optional values aligned with Rows.
func (d *FinancialDataset) Series(name string) []Value {
	out := make([]Value, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r.Value(name)
	}
	return out
}

// Row returns the record for a year.
func (d *FinancialDataset) Row(year int) (*CanonicalYearRecord, bool) {
	for i := range d.Rows {
		if d.Rows[i].Year == year {
			return &d.Rows[i], true
		}
	}
	return nil, false
}

// ValueCount returns the number of present (year, column) values.
func (d *FinancialDataset) ValueCount() int {
	n := 0
	for _, r := range d.Rows {
		n += len(r.Values)
	}
	return n
}

// IsEmpty reports whether the dataset carries no metric values at all.
func (d *FinancialDataset) IsEmpty() bool {
	return d == nil || d.ValueCount() == 0
}

// SortByYear orders rows ascending by year.
func (d *FinancialDataset) SortByYear() {
	sort.SliceStable(d.Rows, func(i, j int) bool { return d.Rows[i].Year < d.Rows[j].Year })
}

// Clone returns a deep copy, so later stages never mutate an earlier
// stage's output.
func (d *FinancialDataset) Clone() *FinancialDataset {
	if d == nil {
		return nil
	}
	out := *d
	out.Entities = append([]string(nil), d.Entities...)
	out.Columns = append([]string(nil), d.Columns...)
	out.Rows = make([]CanonicalYearRecord, len(d.Rows))
	for i, r := range d.Rows {
		cp := r
		cp.Values = make(map[string]float64, len(r.Values))
		for k, v := range r.Values {
			cp.Values[k] = v
		}
		out.Rows[i] = cp
	}
	return &out
}

// Outcome classifies the dataset against the given required columns: empty
// when no value is present, complete when every row has every required
// column, partial otherwise.
func (d *FinancialDataset) Outcome(required []string) Outcome {
	return d.OutcomeThrough(required, math.MaxInt)
}

// OutcomeThrough is Outcome with only rows up to lastYear graded for
// completeness. Later rows still count toward emptiness.
func (d *FinancialDataset) OutcomeThrough(required []string, lastYear int) Outcome {
	if d.IsEmpty() {
		return OutcomeEmpty
	}
	for _, r := range d.Rows {
		if r.Year > lastYear {
			continue
		}
		for _, c := range required {
			if _, ok := r.Values[c]; !ok {
				return OutcomePartial
			}
		}
	}
	return OutcomeComplete
}
