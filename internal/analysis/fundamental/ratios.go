package fundamental

import (
	"math"
	"strings"

	"github.com/seenimoa/finsheet/pkg/models"
)

// Derived column names.
const (
	RatioEBITDAMargin    = "EBITDA Margin"
	RatioNetProfitMargin = "Net Profit Margin"
	RatioROA             = "ROA"
	RatioEBITMargin      = "EBIT Margin"
	RatioCash            = "Cash Ratio"
	RatioDebtToAsset     = "Debt to Asset Ratio"
	RatioDebtToEquity    = "Debt to Equity Ratio"
	ColumnEquity         = "Equity"
)

// EntitySeparator joins a column's base name and its entity suffix in
// comparison datasets, e.g. "Revenue_AAPL".
const EntitySeparator = "_"

// RatioDefinition computes Name = Numerator / Denominator * Scale. A zero or
// missing denominator leaves the result missing.
type RatioDefinition struct {
	Name        string
	Numerator   string
	Denominator string
	Scale       float64
}

// DifferenceDefinition computes Name = Minuend - Subtrahend.
type DifferenceDefinition struct {
	Name       string
	Minuend    string
	Subtrahend string
}

// DefaultDifferences run before ratios so ratios may use them.
var DefaultDifferences = []DifferenceDefinition{
	{Name: ColumnEquity, Minuend: models.MetricTotalAssets, Subtrahend: models.MetricTotalLiabilities},
}

// DefaultRatios covers profitability, liquidity and leverage.
var DefaultRatios = []RatioDefinition{
	// Profitability, percent.
	{RatioEBITDAMargin, models.MetricEBITDA, models.MetricRevenue, 100},
	{RatioNetProfitMargin, models.MetricNetIncome, models.MetricRevenue, 100},
	{RatioROA, models.MetricNetIncome, models.MetricTotalAssets, 100},
	{RatioEBITMargin, models.MetricEBIT, models.MetricRevenue, 100},
	// Liquidity.
	{RatioCash, models.MetricCash, models.MetricTotalLiabilities, 1},
	{RatioDebtToAsset, models.MetricTotalLiabilities, models.MetricTotalAssets, 1},
	// Leverage.
	{RatioDebtToEquity, models.MetricTotalLiabilities, ColumnEquity, 1},
}

// EntityColumn names a base column for an entity; an empty entity leaves
// the name unsuffixed.
func EntityColumn(base, entity string) string {
	if entity == "" {
		return base
	}
	return base + EntitySeparator + entity
}

// SplitEntity reports whether column belongs to base and returns its entity
// suffix ("" for an unsuffixed column).
func SplitEntity(column, base string) (string, bool) {
	if column == base {
		return "", true
	}
	prefix := base + EntitySeparator
	if strings.HasPrefix(column, prefix) && len(column) > len(prefix) {
		return column[len(prefix):], true
	}
	return "", false
}

// ComputeRatios applies the default differences and ratios and returns a
// new dataset; the input is left untouched.
func ComputeRatios(ds *models.FinancialDataset) *models.FinancialDataset {
	return ApplyRatios(ApplyDifferences(ds, DefaultDifferences), DefaultRatios)
}

// ApplyDifferences adds one column per (definition, entity) pair whose
// operands both exist for the same entity.
func ApplyDifferences(ds *models.FinancialDataset, defs []DifferenceDefinition) *models.FinancialDataset {
	out := ds.Clone()
	if out == nil {
		return nil
	}
	for _, def := range defs {
		for _, entity := range matchedEntities(out, def.Minuend, def.Subtrahend) {
			a := EntityColumn(def.Minuend, entity)
			b := EntityColumn(def.Subtrahend, entity)
			name := EntityColumn(def.Name, entity)
			out.AddColumn(name)
			for i := range out.Rows {
				row := &out.Rows[i]
				x, okA := row.Get(a)
				y, okB := row.Get(b)
				if okA && okB {
					setFinite(row, name, x-y)
				} else {
					delete(row.Values, name)
				}
			}
		}
	}
	return out
}

// ApplyRatios adds one column per (definition, entity) pair. Numerator and
// denominator are only paired within the same entity suffix.
func ApplyRatios(ds *models.FinancialDataset, defs []RatioDefinition) *models.FinancialDataset {
	out := ds.Clone()
	if out == nil {
		return nil
	}
	for _, def := range defs {
		for _, entity := range matchedEntities(out, def.Numerator, def.Denominator) {
			num := EntityColumn(def.Numerator, entity)
			den := EntityColumn(def.Denominator, entity)
			name := EntityColumn(def.Name, entity)
			out.AddColumn(name)
			for i := range out.Rows {
				row := &out.Rows[i]
				if v, ok := Ratio(row.Value(num), row.Value(den), def.Scale).Get(); ok {
					row.Set(name, v)
				} else {
					delete(row.Values, name)
				}
			}
		}
	}
	return out
}

// Ratio returns num / den * scale, or missing when either side is missing,
// the denominator is exactly zero, or the result is not finite.
func Ratio(num, den models.Value, scale float64) models.Value {
	n, okN := num.Get()
	d, okD := den.Get()
	if !okN || !okD || d == 0 {
		return models.Missing
	}
	return models.Some(n / d * scale)
}

// matchedEntities lists entity suffixes for which both base columns exist.
func matchedEntities(ds *models.FinancialDataset, left, right string) []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range ds.Columns {
		entity, ok := SplitEntity(c, left)
		if !ok || seen[entity] {
			continue
		}
		if ds.HasColumn(EntityColumn(right, entity)) {
			seen[entity] = true
			out = append(out, entity)
		}
	}
	return out
}

func setFinite(row *models.CanonicalYearRecord, name string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		delete(row.Values, name)
		return
	}
	row.Set(name, v)
}
