package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/seenimoa/finsheet/pkg/models"
)

// PeriodInput is what a period rule may look at.
type PeriodInput struct {
	Token       string
	Columns     []models.Column
	CurrentYear int
}

// PeriodRule decodes a fiscal year from a period input. Rules are tried in
// order and the first match wins.
type PeriodRule struct {
	Name    string
	Resolve func(in PeriodInput) (int, bool)
}

// Rule names, in priority order.
const (
	RuleAbsoluteYear   = "absolute-year"
	RuleRelativePast   = "relative-past"
	RuleRelativeFuture = "relative-future"
	RuleCurrentPeriod  = "current-period"
	RuleEmbeddedYear   = "embedded-year"
	RuleSiblingDate    = "sibling-date"
)

// Window of the embedded-year scan, relative to the current year.
const (
	embeddedYearsBack  = 10
	embeddedYearsAhead = 1
)

// Window of the sibling-date scan, relative to the current year.
const (
	siblingYearsBack  = 30
	siblingYearsAhead = 2
)

var (
	absoluteYearRe   = regexp.MustCompile(`(?i)^(?:[A-Z]+_)?FY(\d{4})$`)
	relativePastRe   = regexp.MustCompile(`(?i)FY-(\d+)$`)
	relativeFutureRe = regexp.MustCompile(`(?i)FY\+(\d+)$`)
)

// currentPeriodTokens are the upstream spellings of "this fiscal year".
var currentPeriodTokens = map[string]bool{
	"IQ_FY":   true,
	"IQ_FY-0": true,
	"IQ_FY+0": true,
}

// PeriodRules is the default decoding order.
var PeriodRules = []PeriodRule{
	{Name: RuleAbsoluteYear, Resolve: resolveAbsoluteYear},
	{Name: RuleRelativePast, Resolve: resolveRelativePast},
	{Name: RuleRelativeFuture, Resolve: resolveRelativeFuture},
	{Name: RuleCurrentPeriod, Resolve: resolveCurrentPeriod},
	{Name: RuleEmbeddedYear, Resolve: resolveEmbeddedYear},
	{Name: RuleSiblingDate, Resolve: resolveSiblingDate},
}

// ResolvePeriod decodes a bare period token.
func ResolvePeriod(token string, currentYear int) (int, bool) {
	year, _, ok := resolve(PeriodInput{Token: token, CurrentYear: currentYear})
	return year, ok
}

// ResolveRecordYear decodes the fiscal year of a flat record, falling back
// to date-like sibling columns. It also reports which rule matched.
func ResolveRecordYear(rec models.FlatRecord, currentYear int) (year int, rule string, ok bool) {
	return resolve(PeriodInput{Token: rec.Period, Columns: rec.Columns, CurrentYear: currentYear})
}

func resolve(in PeriodInput) (int, string, bool) {
	in.Token = strings.TrimSpace(in.Token)
	for _, r := range PeriodRules {
		if y, ok := r.Resolve(in); ok {
			return y, r.Name, true
		}
	}
	return 0, "", false
}

func resolveAbsoluteYear(in PeriodInput) (int, bool) {
	m := absoluteYearRe.FindStringSubmatch(in.Token)
	if m == nil {
		return 0, false
	}
	y, err := strconv.Atoi(m[1])
	return y, err == nil
}

func resolveRelativePast(in PeriodInput) (int, bool) {
	m := relativePastRe.FindStringSubmatch(in.Token)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return in.CurrentYear - n, true
}

func resolveRelativeFuture(in PeriodInput) (int, bool) {
	m := relativeFutureRe.FindStringSubmatch(in.Token)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return in.CurrentYear + n, true
}

func resolveCurrentPeriod(in PeriodInput) (int, bool) {
	if currentPeriodTokens[strings.ToUpper(in.Token)] {
		return in.CurrentYear, true
	}
	return 0, false
}

func resolveEmbeddedYear(in PeriodInput) (int, bool) {
	if in.Token == "" {
		return 0, false
	}
	for y := in.CurrentYear - embeddedYearsBack; y <= in.CurrentYear+embeddedYearsAhead; y++ {
		if strings.Contains(in.Token, strconv.Itoa(y)) {
			return y, true
		}
	}
	return 0, false
}

func resolveSiblingDate(in PeriodInput) (int, bool) {
	lo, hi := in.CurrentYear-siblingYearsBack, in.CurrentYear+siblingYearsAhead
	for _, col := range in.Columns {
		if models.IsMetadataColumn(col.Name) || col.Cell.Kind != models.CellText {
			continue
		}
		s := col.Cell.Text
		if !strings.ContainsAny(s, "/-") {
			continue
		}
		for _, part := range strings.Split(strings.ReplaceAll(s, "/", "-"), "-") {
			part = strings.TrimSpace(part)
			if len(part) != 4 || !isDigits(part) {
				continue
			}
			y, _ := strconv.Atoi(part)
			if y >= lo && y <= hi {
				return y, true
			}
		}
	}
	return 0, false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
