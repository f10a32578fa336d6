package normalize

import (
	"encoding/json"
	"testing"

	"github.com/seenimoa/finsheet/pkg/models"
)

func flat(mnemonic, period string, cells ...models.Column) models.FlatRecord {
	return models.FlatRecord{Identifier: "AAPL", Mnemonic: mnemonic, Period: period, Columns: cells}
}

func TestWindow(t *testing.T) {
	got := Window(3, 0, 2024)
	want := []int{2022, 2023, 2024}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if got := Window(2, 2, 2024); len(got) != 4 || got[3] != 2026 {
		t.Errorf("forward window: got %v", got)
	}
}

func TestAssembleEveryYearOnce(t *testing.T) {
	for _, years := range []int{1, 3, 5, 8} {
		recs := []models.FlatRecord{flat(MnemonicRevenue, "IQ_FY-0", col("Value", models.NumberCell(10)))}
		ds, _ := Assemble(recs, AssembleOptions{Identifier: "AAPL", Years: years, CurrentYear: 2024})
		if len(ds.Rows) != years {
			t.Fatalf("years=%d: got %d rows", years, len(ds.Rows))
		}
		seen := map[int]int{}
		for i, r := range ds.Rows {
			seen[r.Year]++
			if i > 0 && r.Year <= ds.Rows[i-1].Year {
				t.Errorf("rows not ascending: %v", ds.Years())
			}
			if r.Date != DateForYear(r.Year) || r.Ticker != "AAPL" {
				t.Errorf("identity fields: %+v", r)
			}
		}
		for y := 2024 - years + 1; y <= 2024; y++ {
			if seen[y] != 1 {
				t.Errorf("years=%d: year %d appears %d times", years, y, seen[y])
			}
		}
	}
}

func TestAssembleValuesAndUnits(t *testing.T) {
	recs := []models.FlatRecord{
		flat(MnemonicCompanyName, "", col("IQ_COMPANY_NAME", models.TextCell("Apple Inc."))),
		flat(MnemonicCompanyID, "", col("IQ_COMPANY_ID", models.NumberCell(24937))),
		flat(MnemonicRevenue, "FY2023", col("Value", models.NumberCell(383_285_000_000))),
		flat(MnemonicRevenue, "IQ_FY-2", col("IQ_TOTAL_REV", models.TextCell("394,328"))),
		flat(MnemonicPERatio, "IQ_FY", col("Value", models.NumberCell(28.4))),
		flat(MnemonicMarketCap, "IQ_FY", col("Value", models.NumberCell(2_900_000))),
		flat(MnemonicNetIncome, "LTM", col("Value", models.NumberCell(5))),
		flat(MnemonicEBIT, "FY2010", col("Value", models.NumberCell(5))),
		flat(MnemonicEBITDA, "FY2024", col("Value", models.TextCell("N/A"))),
		flat("IQ_SOMETHING_ELSE", "FY2024", col("Value", models.NumberCell(1))),
	}
	ds, stats := Assemble(recs, AssembleOptions{Identifier: "aapl", Years: 3, CurrentYear: 2024})

	if ds.Company != "Apple Inc." || ds.CompanyID != "24937" {
		t.Errorf("metadata: company=%q id=%q", ds.Company, ds.CompanyID)
	}
	check := func(year int, metric string, want float64) {
		t.Helper()
		row, ok := ds.Row(year)
		if !ok {
			t.Fatalf("missing row %d", year)
		}
		got, ok := row.Get(metric)
		if !ok || got != want {
			t.Errorf("%d %s: got %v (%v), want %v", year, metric, got, ok, want)
		}
	}
	check(2023, models.MetricRevenue, 383_285)
	check(2022, models.MetricRevenue, 394_328)
	check(2024, models.MetricPERatio, 28.4)
	check(2024, models.MetricMarketCap, 2_900_000_000)

	if row, _ := ds.Row(2024); len(row.Values) != 2 {
		t.Errorf("2024 values: %v", row.Values)
	}
	if stats.Unresolved != 1 || stats.OutOfWindow != 1 || stats.Unextracted != 1 || stats.Unmapped != 1 {
		t.Errorf("stats: %+v", stats)
	}
	if ds.Columns[0] != models.MetricRevenue {
		t.Errorf("column order: %v", ds.Columns)
	}
}

func TestAssembleDropsNonFiniteAfterRescale(t *testing.T) {
	recs := []models.FlatRecord{
		flat(MnemonicMarketCap, "IQ_FY", col("Value", models.NumberCell(1e306))),
		flat(MnemonicRevenue, "IQ_FY", col("Value", models.NumberCell(250))),
	}
	ds, stats := Assemble(recs, AssembleOptions{Identifier: "AAPL", Years: 1, CurrentYear: 2024})

	row, _ := ds.Row(2024)
	if v, ok := row.Get(models.MetricMarketCap); ok {
		t.Errorf("market cap = %v, want missing after overflow", v)
	}
	if v, ok := row.Get(models.MetricRevenue); !ok || v != 250 {
		t.Errorf("revenue = %v (%v), want 250", v, ok)
	}
	if stats.Unextracted != 1 || stats.Written != 1 {
		t.Errorf("stats: %+v", stats)
	}
	if _, err := json.Marshal(ds); err != nil {
		t.Errorf("dataset must stay encodable: %v", err)
	}
}

func TestAssembleMetadataSkipsMissingCells(t *testing.T) {
	recs := []models.FlatRecord{
		flat(MnemonicCompanyName, "",
			col("IQ_COMPANY_NAME", models.MissingCell()),
			col("Alias", models.TextCell("Apple Inc."))),
	}
	ds, _ := Assemble(recs, AssembleOptions{Identifier: "AAPL", Years: 1, CurrentYear: 2024})
	if ds.Company != "Apple Inc." {
		t.Errorf("company = %q, want Apple Inc.", ds.Company)
	}
}

func TestAssembleLastWriteWins(t *testing.T) {
	recs := []models.FlatRecord{
		flat(MnemonicRevenue, "FY2023", col("Value", models.NumberCell(100))),
		flat(MnemonicRevenue, "IQ_FY-1", col("Value", models.NumberCell(200))),
	}
	ds, stats := Assemble(recs, AssembleOptions{Identifier: "AAPL", Years: 2, CurrentYear: 2024})
	row, _ := ds.Row(2023)
	if v, _ := row.Get(models.MetricRevenue); v != 200 {
		t.Errorf("got %v, want later value 200", v)
	}
	if stats.Overwritten != 1 {
		t.Errorf("overwritten = %d, want 1", stats.Overwritten)
	}
}

func TestAssembleNoRecords(t *testing.T) {
	ds, stats := Assemble(nil, AssembleOptions{Identifier: "ZZZZ", Years: 5, CurrentYear: 2024})
	if len(ds.Rows) != 0 || !ds.IsEmpty() || stats.Records != 0 {
		t.Errorf("expected explicit empty dataset, got %d rows", len(ds.Rows))
	}
	if ds.Outcome(CoreMetricNames()) != models.OutcomeEmpty {
		t.Error("expected empty outcome")
	}
}

func TestAssembleIgnoresOtherIdentifiers(t *testing.T) {
	recs := []models.FlatRecord{
		{Identifier: "MSFT", Mnemonic: MnemonicRevenue, Period: "FY2024", Columns: []models.Column{col("Value", models.NumberCell(1))}},
		flat(MnemonicRevenue, "FY2024", col("Value", models.NumberCell(2))),
	}
	ds, _ := Assemble(recs, AssembleOptions{Identifier: "AAPL", Years: 1, CurrentYear: 2024})
	if v, _ := ds.Rows[0].Get(models.MetricRevenue); v != 2 {
		t.Errorf("got %v, want 2", v)
	}
}

// Only the relative-offset convention answers; the three-year window must
// still be filled.
func TestAssembleRelativeConventionOnly(t *testing.T) {
	const now = 2024
	var replies []models.RawReplyRow
	for i, req := range PlanRequests("AAPL", 3, now) {
		reply := models.RawReplyRow{
			Identifier: req.Identifier,
			Mnemonic:   req.Mnemonic,
			Properties: map[string]any{"periodtype": req.PeriodToken()},
			Headers:    []string{req.Mnemonic},
		}
		tok := req.PeriodToken()
		if req.Function == models.FunctionPoint && len(tok) > 5 && tok[:5] == "IQ_FY" {
			reply.Rows = []models.ReplyValueRow{{Row: []models.Cell{models.NumberCell(float64(1_000_000_000 + i))}}}
		}
		replies = append(replies, reply)
	}

	ds, _ := Assemble(Flatten(replies), AssembleOptions{Identifier: "AAPL", Years: 3, CurrentYear: now})
	for _, y := range []int{2022, 2023, 2024} {
		row, _ := ds.Row(y)
		for _, name := range CoreMetricNames() {
			if _, ok := row.Get(name); !ok {
				t.Errorf("%d missing %s", y, name)
			}
		}
	}
	if got := ds.Outcome(CoreMetricNames()); got != models.OutcomeComplete {
		t.Errorf("outcome = %s, want complete", got)
	}
}
