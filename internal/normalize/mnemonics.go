// Package normalize turns upstream financial-data replies into a canonical
// per-fiscal-year dataset. Every stage is a pure function over its input:
// planning requests, flattening replies, resolving period tokens,
// extracting and rescaling values, and assembling year records.
package normalize

import "github.com/seenimoa/finsheet/pkg/models"

// Upstream mnemonics.
const (
	MnemonicCompanyName    = "IQ_COMPANY_NAME"
	MnemonicCompanyID      = "IQ_COMPANY_ID"
	MnemonicUltimateParent = "IQ_ULT_PARENT"

	MnemonicRevenue          = "IQ_TOTAL_REV"
	MnemonicNetIncome        = "IQ_NI"
	MnemonicEBITDA           = "IQ_EBITDA"
	MnemonicEBIT             = "IQ_EBIT"
	MnemonicTotalAssets      = "IQ_TOTAL_ASSETS"
	MnemonicTotalLiabilities = "IQ_TOTAL_LIAB"
	MnemonicCash             = "IQ_CASH_EQUIV"

	MnemonicMarketCap  = "IQ_MARKETCAP"
	MnemonicPriceClose = "IQ_PRICE_CLOSE"
	MnemonicPERatio    = "IQ_PE_RATIO"

	MnemonicRevenueEstimate = "IQ_REVENUE_EST_CIQ"
	MnemonicEBITDAEstimate  = "IQ_EBITDA_EST_CIQ"
	MnemonicEPSEstimate     = "IQ_EPS_EST_CIQ"
)

// UnitClass selects the rescaling rule applied to a metric.
type UnitClass int

const (
	// UnitAbsolute is a currency amount that may arrive in raw units.
	UnitAbsolute UnitClass = iota
	// UnitPassthrough is already normalized (ratios, prices, per-share).
	UnitPassthrough
	// UnitMarketCap has its own magnitude heuristic.
	UnitMarketCap
)

// Metric maps an upstream mnemonic to its dataset column.
type Metric struct {
	Mnemonic string
	Name     string
	Unit     UnitClass
}

// CompanyInfoMnemonics are the fixed metadata lookups.
var CompanyInfoMnemonics = []string{
	MnemonicCompanyName,
	MnemonicCompanyID,
	MnemonicUltimateParent,
}

// FinancialMnemonics are the core statements requested per historical year.
var FinancialMnemonics = []string{
	MnemonicRevenue,
	MnemonicNetIncome,
	MnemonicEBITDA,
	MnemonicEBIT,
	MnemonicTotalAssets,
	MnemonicTotalLiabilities,
	MnemonicCash,
}

// MarketMnemonics are requested once for the current period.
var MarketMnemonics = []string{
	MnemonicMarketCap,
	MnemonicPriceClose,
	MnemonicPERatio,
}

// EstimateMnemonics are requested per forward year.
var EstimateMnemonics = []string{
	MnemonicRevenueEstimate,
	MnemonicEBITDAEstimate,
	MnemonicEPSEstimate,
}

// Metrics is the assembly order. When two replies land on the same
// (year, metric) the later one wins, so this order is part of the contract.
var Metrics = []Metric{
	{MnemonicRevenue, models.MetricRevenue, UnitAbsolute},
	{MnemonicNetIncome, models.MetricNetIncome, UnitAbsolute},
	{MnemonicEBITDA, models.MetricEBITDA, UnitAbsolute},
	{MnemonicEBIT, models.MetricEBIT, UnitAbsolute},
	{MnemonicTotalAssets, models.MetricTotalAssets, UnitAbsolute},
	{MnemonicTotalLiabilities, models.MetricTotalLiabilities, UnitAbsolute},
	{MnemonicCash, models.MetricCash, UnitAbsolute},
	{MnemonicPERatio, models.MetricPERatio, UnitPassthrough},
	{MnemonicMarketCap, models.MetricMarketCap, UnitMarketCap},
	{MnemonicPriceClose, models.MetricStockPrice, UnitPassthrough},
	{MnemonicRevenueEstimate, models.MetricRevenueEstimate, UnitAbsolute},
	{MnemonicEBITDAEstimate, models.MetricEBITDAEstimate, UnitAbsolute},
	{MnemonicEPSEstimate, models.MetricEPSEstimate, UnitPassthrough},
}

// CoreMetricNames are the statement columns used to grade completeness.
func CoreMetricNames() []string {
	names := make([]string, 0, len(FinancialMnemonics))
	for _, mn := range FinancialMnemonics {
		if m, ok := MetricFor(mn); ok {
			names = append(names, m.Name)
		}
	}
	return names
}

// MetricFor looks up the metric for a mnemonic.
func MetricFor(mnemonic string) (Metric, bool) {
	for _, m := range Metrics {
		if m.Mnemonic == mnemonic {
			return m, true
		}
	}
	return Metric{}, false
}
