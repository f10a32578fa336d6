package models

// TrendResult holds the summary statistics of one metric series.
type TrendResult struct {
	Metric      string  `json:"metric"`
	Latest      Value   `json:"latest"`
	Mean        Value   `json:"avg"`
	Min         Value   `json:"min"`
	Max         Value   `json:"max"`
	CAGR        Value   `json:"cagr"`         // percent
	RecentTrend Value   `json:"recent_trend"` // mean of trailing YoY growth, percent
	Years       []int   `json:"years"`
	YoY         []Value `json:"yoy"` // percent, aligned with Years
}
