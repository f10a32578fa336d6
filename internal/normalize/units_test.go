package normalize

import "testing"

func TestNormalizeUnitAbsolute(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{385_700_000_000, 385_700},
		{-2_000_000, -2},
		{1_000_000, 1_000_000},
		{1_000_001, 1.000001},
		{385_700, 385_700},
		{0, 0},
	}
	for _, tt := range tests {
		if got := NormalizeUnit(UnitAbsolute, tt.in); got != tt.want {
			t.Errorf("absolute %v: got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeUnitMarketCap(t *testing.T) {
	tests := []struct {
		name     string
		in, want float64
	}{
		{"billions branch", 2_500_000, 2_500_000_000},
		{"just above billions threshold", 1_000_001, 1_000_001_000},
		{"at billions threshold", 1_000_000, 1_000_000},
		{"trillions branch", 2.5, 2_500_000},
		{"just below trillions threshold", 99.99, 99_990_000},
		{"at trillions threshold", 100, 100},
		{"already millions", 2_800_000 / 10, 280_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeUnit(UnitMarketCap, tt.in)
			if diff := got - tt.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("market cap %v: got %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeUnitPassthrough(t *testing.T) {
	for _, v := range []float64{28.4, 189.95, 5_000_000} {
		if got := NormalizeUnit(UnitPassthrough, v); got != v {
			t.Errorf("passthrough %v: got %v", v, got)
		}
	}
}
