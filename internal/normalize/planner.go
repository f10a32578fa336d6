package normalize

import (
	"fmt"
	"strings"

	"github.com/seenimoa/finsheet/pkg/models"
)

// Period tokens understood by the upstream service.
const (
	PeriodFiscalYear = "IQ_FY"
)

// RelativePeriod encodes a fiscal year relative to the current one,
// e.g. IQ_FY-2, IQ_FY+1.
func RelativePeriod(offset int) string {
	if offset < 0 {
		return fmt.Sprintf("%s%d", PeriodFiscalYear, offset)
	}
	return fmt.Sprintf("%s+%d", PeriodFiscalYear, offset)
}

// AbsolutePeriod encodes a calendar fiscal year, e.g. FY2022.
func AbsolutePeriod(year int) string {
	return fmt.Sprintf("FY%d", year)
}

// PlanRequests expands one company into the atomic requests needed for a
// years-long window anchored at currentYear.
//
// Historical statement years are requested three ways (a multi-period
// history plus relative and absolute single-period lookups) because upstream
// honours period encodings inconsistently. Nothing here is deduplicated.
func PlanRequests(identifier string, years, currentYear int) []models.AtomicRequest {
	if years < 1 {
		years = 1
	}
	id := strings.ToUpper(strings.TrimSpace(identifier))

	out := make([]models.AtomicRequest, 0, PlannedRequestCount(years))
	for _, mn := range CompanyInfoMnemonics {
		out = append(out, point(id, mn, ""))
	}

	for _, mn := range FinancialMnemonics {
		out = append(out, models.AtomicRequest{
			Function:   models.FunctionHistory,
			Identifier: id,
			Mnemonic:   mn,
			Properties: &models.RequestProperties{
				PeriodType:      PeriodFiscalYear,
				NumberOfPeriods: years + 2,
			},
		})
		for offset := -(years - 1); offset <= 1; offset++ {
			out = append(out, point(id, mn, RelativePeriod(offset)))
			if offset < 0 {
				out = append(out, point(id, mn, AbsolutePeriod(currentYear+offset)))
			}
		}
	}

	for _, mn := range MarketMnemonics {
		out = append(out, point(id, mn, ""))
	}

	for _, mn := range EstimateMnemonics {
		for i := 1; i <= years; i++ {
			out = append(out, point(id, mn, RelativePeriod(i)))
		}
	}
	return out
}

// PlannedRequestCount is the number of requests PlanRequests emits.
func PlannedRequestCount(years int) int {
	if years < 1 {
		years = 1
	}
	perFinancial := 1 + 2*(years-1) + 2
	return len(CompanyInfoMnemonics) +
		len(FinancialMnemonics)*perFinancial +
		len(MarketMnemonics) +
		len(EstimateMnemonics)*years
}

func point(id, mnemonic, period string) models.AtomicRequest {
	req := models.AtomicRequest{
		Function:   models.FunctionPoint,
		Identifier: id,
		Mnemonic:   mnemonic,
	}
	if period != "" {
		req.Properties = &models.RequestProperties{PeriodType: period}
	}
	return req
}
