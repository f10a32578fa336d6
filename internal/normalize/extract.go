package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/seenimoa/finsheet/pkg/models"
)

// ValueRule locates a numeric payload in a flat record.
type ValueRule struct {
	Name    string
	Extract func(rec models.FlatRecord) (float64, bool)
}

const (
	RuleValueColumn = "value-column"
	RuleColumnScan  = "column-scan"
)

// ValueRules is the default extraction order.
var ValueRules = []ValueRule{
	{Name: RuleValueColumn, Extract: extractValueColumn},
	{Name: RuleColumnScan, Extract: extractColumnScan},
}

// unavailableTokens are upstream placeholders for "no data", compared
// case-insensitively after trimming.
var unavailableTokens = map[string]bool{
	"":                 true,
	"n/a":              true,
	"na":               true,
	"data unavailable": true,
}

var dateLikeRe = regexp.MustCompile(`^(\d{1,4}[-/]\d{1,2}([-/]\d{1,4})?|[A-Za-z]{3,9}[-/ ]\d{2,4})([T ].*)?$`)

// ExtractValue returns the numeric payload of a record and the rule that
// found it. A record with no usable cell yields ok=false; that is a normal
// decoding gap, not an error.
func ExtractValue(rec models.FlatRecord) (v float64, rule string, ok bool) {
	for _, r := range ValueRules {
		if v, ok := r.Extract(rec); ok {
			return v, r.Name, true
		}
	}
	return 0, "", false
}

// CoerceCell turns a cell into a finite float. Text is accepted when it is a
// number after trimming and removing thousands separators; dates and
// unavailable placeholders are rejected.
func CoerceCell(c models.Cell) (float64, bool) {
	switch c.Kind {
	case models.CellNumber:
		if math.IsNaN(c.Num) || math.IsInf(c.Num, 0) {
			return 0, false
		}
		return c.Num, true
	case models.CellText:
		s := strings.TrimSpace(c.Text)
		if IsUnavailable(s) || IsDateLike(s) {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// IsUnavailable reports whether s is a "no data" placeholder.
func IsUnavailable(s string) bool {
	return unavailableTokens[strings.ToLower(strings.TrimSpace(s))]
}

// IsDateLike reports whether s reads as a calendar date rather than an
// amount. Leading minus signs of negative amounts do not count.
func IsDateLike(s string) bool {
	return dateLikeRe.MatchString(strings.TrimSpace(s))
}

func extractValueColumn(rec models.FlatRecord) (float64, bool) {
	for _, col := range rec.Columns {
		if strings.EqualFold(col.Name, models.ColValue) {
			return CoerceCell(col.Cell)
		}
	}
	return 0, false
}

func extractColumnScan(rec models.FlatRecord) (float64, bool) {
	for _, col := range rec.Columns {
		if models.IsMetadataColumn(col.Name) {
			continue
		}
		if v, ok := CoerceCell(col.Cell); ok {
			return v, true
		}
	}
	return 0, false
}
