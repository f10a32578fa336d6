package normalize

import "github.com/seenimoa/finsheet/pkg/models"

// Flatten emits one FlatRecord per nested value row. Headers and cells are
// zipped pairwise; a reply with no value rows contributes nothing.
func Flatten(replies []models.RawReplyRow) []models.FlatRecord {
	n := 0
	for _, r := range replies {
		n += len(r.Rows)
	}
	out := make([]models.FlatRecord, 0, n)
	for _, r := range replies {
		period := r.PeriodToken()
		for _, vr := range r.Rows {
			width := len(r.Headers)
			if len(vr.Row) < width {
				width = len(vr.Row)
			}
			cols := make([]models.Column, 0, width)
			for i := 0; i < width; i++ {
				cols = append(cols, models.Column{Name: r.Headers[i], Cell: vr.Row[i]})
			}
			out = append(out, models.FlatRecord{
				Identifier: r.Identifier,
				Mnemonic:   r.Mnemonic,
				Period:     period,
				Columns:    cols,
			})
		}
	}
	return out
}
