package fundamental

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seenimoa/finsheet/pkg/models"
)

// MergeComparison outer-joins two single-entity datasets on year. Every
// column of a becomes "<col>_<entityA>" and every column of b
// "<col>_<entityB>". A year covered by only one side keeps the other side's
// columns missing. Entity labels default to each dataset's Ticker.
func MergeComparison(a, b *models.FinancialDataset, entityA, entityB string) (*models.FinancialDataset, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("merge comparison: nil dataset")
	}
	if entityA == "" {
		entityA = a.Ticker
	}
	if entityB == "" {
		entityB = b.Ticker
	}
	entityA = strings.ToUpper(strings.TrimSpace(entityA))
	entityB = strings.ToUpper(strings.TrimSpace(entityB))
	if entityA == "" || entityB == "" {
		return nil, fmt.Errorf("merge comparison: entity label required")
	}
	if entityA == entityB {
		return nil, fmt.Errorf("merge comparison: entities must differ, both are %q", entityA)
	}

	out := &models.FinancialDataset{
		Ticker:   entityA + " vs " + entityB,
		Entities: []string{entityA, entityB},
	}
	for _, c := range a.Columns {
		out.AddColumn(EntityColumn(c, entityA))
	}
	for _, c := range b.Columns {
		out.AddColumn(EntityColumn(c, entityB))
	}

	byYear := map[int]*models.CanonicalYearRecord{}
	var years []int
	rowFor := func(r models.CanonicalYearRecord) *models.CanonicalYearRecord {
		if row, ok := byYear[r.Year]; ok {
			if row.Date == "" {
				row.Date = r.Date
			}
			return row
		}
		row := &models.CanonicalYearRecord{Year: r.Year, Date: r.Date, Values: map[string]float64{}}
		byYear[r.Year] = row
		years = append(years, r.Year)
		return row
	}
	for _, r := range a.Rows {
		row := rowFor(r)
		for k, v := range r.Values {
			row.Set(EntityColumn(k, entityA), v)
		}
	}
	for _, r := range b.Rows {
		row := rowFor(r)
		for k, v := range r.Values {
			row.Set(EntityColumn(k, entityB), v)
		}
	}

	sort.Ints(years)
	out.Rows = make([]models.CanonicalYearRecord, 0, len(years))
	for _, y := range years {
		out.Rows = append(out.Rows, *byYear[y])
	}
	return out, nil
}
