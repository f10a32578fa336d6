package models

import "testing"

func TestOutcomeThrough(t *testing.T) {
	ds := &FinancialDataset{Rows: []CanonicalYearRecord{
		{Year: 2023, Values: map[string]float64{MetricRevenue: 1}},
		{Year: 2024, Values: map[string]float64{MetricRevenue: 2}},
		{Year: 2025, Values: map[string]float64{}},
	}}
	required := []string{MetricRevenue}

	tests := []struct {
		name     string
		lastYear int
		want     Outcome
	}{
		{"all rows", 2025, OutcomePartial},
		{"historical only", 2024, OutcomeComplete},
		{"one year", 2023, OutcomeComplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ds.OutcomeThrough(required, tt.lastYear); got != tt.want {
				t.Errorf("OutcomeThrough(%d) = %s, want %s", tt.lastYear, got, tt.want)
			}
		})
	}
	if got := ds.Outcome(required); got != OutcomePartial {
		t.Errorf("Outcome = %s, want partial", got)
	}
	if got := (&FinancialDataset{}).OutcomeThrough(required, 2024); got != OutcomeEmpty {
		t.Errorf("empty dataset = %s, want empty", got)
	}
}
