package normalize

import (
	"encoding/json"
	"testing"

	"github.com/seenimoa/finsheet/pkg/models"
)

func TestFlattenRowCount(t *testing.T) {
	raw := `[
	  {"Identifier":"AAPL","Mnemonic":"IQ_TOTAL_REV","Properties":{"periodtype":"IQ_FY-1"},
	   "Headers":["IQ_TOTAL_REV","AsOfDate"],"Rows":[{"Row":["383,285.0","09/30/2023"]}]},
	  {"Identifier":"AAPL","Mnemonic":"IQ_NI","Properties":{"periodType":"IQ_FY"},
	   "Headers":["Value","Date"],"Rows":[{"Row":[96995,"2023-09-30"]},{"Row":[99803,"2022-09-24"]}]},
	  {"Identifier":"AAPL","Mnemonic":"IQ_EBIT","Headers":["IQ_EBIT"],"Rows":[],"ErrMsg":"Data Unavailable"}
	]`
	var replies []models.RawReplyRow
	if err := json.Unmarshal([]byte(raw), &replies); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	recs := Flatten(replies)
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}

	first := recs[0]
	if first.Period != "IQ_FY-1" || first.Mnemonic != "IQ_TOTAL_REV" || first.Identifier != "AAPL" {
		t.Errorf("first record identity: %+v", first)
	}
	if c, ok := first.Get("IQ_TOTAL_REV"); !ok || c.Kind != models.CellText || c.Text != "383,285.0" {
		t.Errorf("first record value cell: %+v", c)
	}
	if recs[1].Period != "IQ_FY" {
		t.Errorf("periodType casing not honoured: %q", recs[1].Period)
	}
	if c, _ := recs[2].Get("Value"); c.Kind != models.CellNumber || c.Num != 99803 {
		t.Errorf("second nested row: %+v", c)
	}
}

func TestFlattenRaggedRows(t *testing.T) {
	replies := []models.RawReplyRow{{
		Identifier: "X",
		Mnemonic:   "IQ_NI",
		Headers:    []string{"A", "B", "C"},
		Rows: []models.ReplyValueRow{
			{Row: []models.Cell{models.NumberCell(1)}},
			{Row: []models.Cell{models.NumberCell(1), models.NumberCell(2), models.NumberCell(3), models.NumberCell(4)}},
		},
	}}
	recs := Flatten(replies)
	if len(recs[0].Columns) != 1 || len(recs[1].Columns) != 3 {
		t.Errorf("columns: got %d and %d, want 1 and 3", len(recs[0].Columns), len(recs[1].Columns))
	}
}

func TestFlattenEmpty(t *testing.T) {
	if recs := Flatten(nil); len(recs) != 0 {
		t.Errorf("got %d records from nil input", len(recs))
	}
}
