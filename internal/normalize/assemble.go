package normalize

import (
	"fmt"
	"math"
	"strings"

	"github.com/seenimoa/finsheet/pkg/models"
)

// AssembleOptions fixes the identity and year window of a dataset.
type AssembleOptions struct {
	Identifier   string
	Years        int
	ForwardYears int
	CurrentYear  int
}

// AssembleStats counts what happened to each flat record. Gaps are
// expected: they never fail assembly.
type AssembleStats struct {
	Records     int            `json:"records"`
	Unmapped    int            `json:"unmapped"`
	Unresolved  int            `json:"unresolved"`
	OutOfWindow int            `json:"out_of_window"`
	Unextracted int            `json:"unextracted"`
	Written     int            `json:"written"`
	Overwritten int            `json:"overwritten"`
	PeriodRules map[string]int `json:"period_rules,omitempty"`
}

// Window returns the fiscal years of a dataset, ascending:
// [currentYear-years+1, currentYear+forward].
func Window(years, forward, currentYear int) []int {
	if years < 1 {
		years = 1
	}
	if forward < 0 {
		forward = 0
	}
	out := make([]int, 0, years+forward)
	for y := currentYear - years + 1; y <= currentYear+forward; y++ {
		out = append(out, y)
	}
	return out
}

// DateForYear is the reporting date stamped on a year record.
func DateForYear(year int) string {
	return fmt.Sprintf("%d-12-31", year)
}

// Assemble merges flat records into one record per window year. Metrics are
// processed in Metrics order and records in input order; a later value for
// the same (year, metric) replaces an earlier one. Every window year appears
// exactly once, with only identity fields when nothing was recovered. When
// there are no records at all the dataset has no rows.
func Assemble(records []models.FlatRecord, opts AssembleOptions) (*models.FinancialDataset, AssembleStats) {
	id := strings.ToUpper(strings.TrimSpace(opts.Identifier))
	stats := AssembleStats{PeriodRules: make(map[string]int)}

	ds := &models.FinancialDataset{
		Ticker:  id,
		Company: id,
		Columns: []string{},
		Rows:    []models.CanonicalYearRecord{},
	}

	mine := make([]models.FlatRecord, 0, len(records))
	for _, r := range records {
		if id != "" && !strings.EqualFold(strings.TrimSpace(r.Identifier), id) {
			continue
		}
		mine = append(mine, r)
	}
	stats.Records = len(mine)
	if len(mine) == 0 {
		return ds, stats
	}

	if name := firstText(mine, MnemonicCompanyName); name != "" {
		ds.Company = name
	}
	ds.CompanyID = firstText(mine, MnemonicCompanyID)
	ds.UltimateParent = firstText(mine, MnemonicUltimateParent)

	window := Window(opts.Years, opts.ForwardYears, opts.CurrentYear)
	index := make(map[int]int, len(window))
	for i, y := range window {
		index[y] = i
		ds.Rows = append(ds.Rows, models.CanonicalYearRecord{
			Year:    y,
			Date:    DateForYear(y),
			Ticker:  id,
			Company: ds.Company,
			Values:  make(map[string]float64),
		})
	}

	known := make(map[string]bool, len(Metrics)+len(CompanyInfoMnemonics))
	for _, mn := range CompanyInfoMnemonics {
		known[mn] = true
	}

	for _, m := range Metrics {
		known[m.Mnemonic] = true
		for _, rec := range mine {
			if !strings.EqualFold(rec.Mnemonic, m.Mnemonic) {
				continue
			}
			year, rule, ok := ResolveRecordYear(rec, opts.CurrentYear)
			if !ok {
				stats.Unresolved++
				continue
			}
			stats.PeriodRules[rule]++
			i, inWindow := index[year]
			if !inWindow {
				stats.OutOfWindow++
				continue
			}
			v, _, ok := ExtractValue(rec)
			if !ok {
				stats.Unextracted++
				continue
			}
			v = NormalizeUnit(m.Unit, v)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				stats.Unextracted++
				continue
			}
			row := &ds.Rows[i]
			if _, exists := row.Values[m.Name]; exists {
				stats.Overwritten++
			}
			row.Set(m.Name, v)
			stats.Written++
			ds.AddColumn(m.Name)
		}
	}

	for _, rec := range mine {
		if !known[strings.ToUpper(rec.Mnemonic)] {
			stats.Unmapped++
		}
	}
	return ds, stats
}

// firstText returns the first usable text or number reported for a
// metadata mnemonic.
func firstText(records []models.FlatRecord, mnemonic string) string {
	for _, rec := range records {
		if !strings.EqualFold(rec.Mnemonic, mnemonic) {
			continue
		}
		for _, col := range rec.Columns {
			if models.IsMetadataColumn(col.Name) || col.Cell.IsMissing() {
				continue
			}
			switch col.Cell.Kind {
			case models.CellText:
				if s := strings.TrimSpace(col.Cell.Text); !IsUnavailable(s) {
					return s
				}
			case models.CellNumber:
				return col.Cell.String()
			}
		}
	}
	return ""
}
