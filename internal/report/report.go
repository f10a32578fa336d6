// Package report renders financial datasets and trend summaries for the
// terminal, documents and downstream tools.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/seenimoa/finsheet/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Formats
// ════════════════════════════════════════════════════════════════════

// Format specifies the output format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// Formats returns the supported formats.
func Formats() []Format {
	return []Format{FormatText, FormatMarkdown, FormatCSV, FormatJSON}
}

// ParseFormat accepts a format name or a common alias ("md", "txt").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt", "table":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown format %q (want one of text, markdown, csv, json)", s)
}

// Document is everything a render call can show. Trends may be nil.
type Document struct {
	Title   string                        `json:"title,omitempty"`
	Outcome models.Outcome                `json:"outcome,omitempty"`
	Dataset *models.FinancialDataset      `json:"-"`
	Trends  map[string]models.TrendResult `json:"trends,omitempty"`
}

// Render writes doc to w in the given format.
func Render(w io.Writer, doc Document, format Format) error {
	if doc.Dataset == nil {
		return fmt.Errorf("dataset is nil")
	}
	switch format {
	case FormatText:
		return writeTextDocument(w, doc)
	case FormatMarkdown:
		return writeMarkdownDocument(w, doc)
	case FormatCSV:
		return WriteCSV(w, doc.Dataset)
	case FormatJSON:
		return WriteJSON(w, doc)
	}
	return fmt.Errorf("unknown format %q", format)
}

// ════════════════════════════════════════════════════════════════════
// Text
// ════════════════════════════════════════════════════════════════════

func writeTextDocument(w io.Writer, doc Document) error {
	ds := doc.Dataset
	line := strings.Repeat("═", 60)

	title := doc.Title
	if title == "" {
		title = datasetTitle(ds)
	}
	fmt.Fprintf(w, "%s\n  %s\n", line, title)
	if ds.CompanyID != "" || ds.UltimateParent != "" {
		fmt.Fprintf(w, "  Company ID: %s | Ultimate parent: %s\n", orDash(ds.CompanyID), orDash(ds.UltimateParent))
	}
	if doc.Outcome != "" {
		fmt.Fprintf(w, "  Outcome: %s\n", doc.Outcome)
	}
	fmt.Fprintf(w, "%s\n\n", line)

	if err := WriteText(w, ds); err != nil {
		return err
	}
	if len(doc.Trends) > 0 {
		fmt.Fprintf(w, "\n  ■ TRENDS\n")
		return WriteTrendsText(w, doc.Trends)
	}
	return nil
}

// WriteText writes ds as an aligned table with one metric per line and one
// year per column. Missing values print as "-".
func WriteText(w io.Writer, ds *models.FinancialDataset) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := append([]string{"Metric"}, yearLabels(ds)...)
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for _, col := range ds.Columns {
		cells := []string{col}
		for _, v := range ds.Series(col) {
			cells = append(cells, orDash(FormatValue(v)))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	return tw.Flush()
}

// WriteTrendsText writes one summary line per metric, sorted by name.
func WriteTrendsText(w io.Writer, trends map[string]models.TrendResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, strings.Join(trendHeader, "\t")+"\t")
	for _, name := range sortedKeys(trends) {
		fmt.Fprintln(tw, strings.Join(trendCells(trends[name]), "\t")+"\t")
	}
	return tw.Flush()
}

// ════════════════════════════════════════════════════════════════════
// Markdown
// ════════════════════════════════════════════════════════════════════

func writeMarkdownDocument(w io.Writer, doc Document) error {
	title := doc.Title
	if title == "" {
		title = datasetTitle(doc.Dataset)
	}
	fmt.Fprintf(w, "## %s\n\n", title)
	if doc.Outcome != "" {
		fmt.Fprintf(w, "Outcome: **%s**\n\n", doc.Outcome)
	}
	if err := WriteMarkdown(w, doc.Dataset); err != nil {
		return err
	}
	if len(doc.Trends) > 0 {
		fmt.Fprintf(w, "\n### Trends\n\n")
		return WriteTrendsMarkdown(w, doc.Trends)
	}
	return nil
}

// WriteMarkdown writes ds as a GitHub-flavoured table. Missing values are
// empty cells.
func WriteMarkdown(w io.Writer, ds *models.FinancialDataset) error {
	years := yearLabels(ds)
	writeMarkdownRow(w, append([]string{"Metric"}, years...))
	sep := []string{"---"}
	for range years {
		sep = append(sep, "---:")
	}
	writeMarkdownRow(w, sep)
	for _, col := range ds.Columns {
		cells := []string{col}
		for _, v := range ds.Series(col) {
			cells = append(cells, FormatValue(v))
		}
		writeMarkdownRow(w, cells)
	}
	return nil
}

// WriteTrendsMarkdown writes the trend summary as a table.
func WriteTrendsMarkdown(w io.Writer, trends map[string]models.TrendResult) error {
	writeMarkdownRow(w, trendHeader)
	sep := []string{"---"}
	for range trendHeader[1:] {
		sep = append(sep, "---:")
	}
	writeMarkdownRow(w, sep)
	for _, name := range sortedKeys(trends) {
		cells := trendCells(trends[name])
		for i := range cells {
			if cells[i] == "-" {
				cells[i] = ""
			}
		}
		writeMarkdownRow(w, cells)
	}
	return nil
}

func writeMarkdownRow(w io.Writer, cells []string) {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(escaped, " | "))
}

// ════════════════════════════════════════════════════════════════════
// CSV
// ════════════════════════════════════════════════════════════════════

// WriteCSV writes one row per year: Year, Date, then every column. Missing
// values are empty fields; present values keep full precision.
func WriteCSV(w io.Writer, ds *models.FinancialDataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"Year", "Date"}, ds.Columns...)); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range ds.Rows {
		rec := []string{strconv.Itoa(r.Year), r.Date}
		for _, col := range ds.Columns {
			rec = append(rec, rawValue(r.Value(col)))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing csv row %d: %w", r.Year, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFlatCSV writes flattened reply records, one per line, with the
// identity columns first followed by the union of reported field names in
// first-seen order.
func WriteFlatCSV(w io.Writer, records []models.FlatRecord) error {
	var fields []string
	seen := make(map[string]bool)
	for _, r := range records {
		for _, c := range r.Columns {
			if models.IsMetadataColumn(c.Name) || seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			fields = append(fields, c.Name)
		}
	}

	cw := csv.NewWriter(w)
	header := append([]string{models.ColIdentifier, models.ColMnemonic, models.ColPeriod}, fields...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for i, r := range records {
		rec := []string{r.Identifier, r.Mnemonic, r.Period}
		for _, f := range fields {
			cell, _ := r.Get(f)
			rec = append(rec, cell.String())
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing csv record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ════════════════════════════════════════════════════════════════════
// JSON
// ════════════════════════════════════════════════════════════════════

type jsonRow struct {
	Year   int                     `json:"year"`
	Date   string                  `json:"date"`
	Values map[string]models.Value `json:"values"`
}

type jsonDocument struct {
	Title          string                        `json:"title,omitempty"`
	Ticker         string                        `json:"ticker,omitempty"`
	Company        string                        `json:"company,omitempty"`
	CompanyID      string                        `json:"company_id,omitempty"`
	UltimateParent string                        `json:"ultimate_parent,omitempty"`
	Entities       []string                      `json:"entities,omitempty"`
	Outcome        models.Outcome                `json:"outcome,omitempty"`
	Columns        []string                      `json:"columns"`
	Rows           []jsonRow                     `json:"rows"`
	Trends         map[string]models.TrendResult `json:"trends,omitempty"`
}

// WriteJSON writes doc as indented JSON. Every row lists every column, with
// missing values as null.
func WriteJSON(w io.Writer, doc Document) error {
	ds := doc.Dataset
	out := jsonDocument{
		Title:          doc.Title,
		Ticker:         ds.Ticker,
		Company:        ds.Company,
		CompanyID:      ds.CompanyID,
		UltimateParent: ds.UltimateParent,
		Entities:       ds.Entities,
		Outcome:        doc.Outcome,
		Columns:        append([]string{}, ds.Columns...),
		Rows:           make([]jsonRow, 0, len(ds.Rows)),
		Trends:         doc.Trends,
	}
	for _, r := range ds.Rows {
		row := jsonRow{Year: r.Year, Date: r.Date, Values: make(map[string]models.Value, len(ds.Columns))}
		for _, col := range ds.Columns {
			row.Values[col] = r.Value(col)
		}
		out.Rows = append(out.Rows, row)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

var trendHeader = []string{"Metric", "Latest", "Avg", "Min", "Max", "CAGR %", "Recent %"}

func trendCells(t models.TrendResult) []string {
	cells := []string{t.Metric}
	for _, v := range []models.Value{t.Latest, t.Mean, t.Min, t.Max, t.CAGR, t.RecentTrend} {
		cells = append(cells, orDash(FormatValue(v)))
	}
	return cells
}

// FormatValue formats a present value with two decimals and thousands
// separators, or returns "" when missing.
func FormatValue(v models.Value) string {
	x, ok := v.Get()
	if !ok {
		return ""
	}
	return groupThousands(strconv.FormatFloat(x, 'f', 2, 64))
}

func rawValue(v models.Value) string {
	x, ok := v.Get()
	if !ok {
		return ""
	}
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return sign + intPart + frac
	}
	var b strings.Builder
	pre := len(intPart) % 3
	if pre > 0 {
		b.WriteString(intPart[:pre])
	}
	for i := pre; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + frac
}

func yearLabels(ds *models.FinancialDataset) []string {
	out := make([]string, len(ds.Rows))
	for i, r := range ds.Rows {
		out[i] = strconv.Itoa(r.Year)
	}
	return out
}

func datasetTitle(ds *models.FinancialDataset) string {
	if ds.Company != "" && !strings.EqualFold(ds.Company, ds.Ticker) {
		return fmt.Sprintf("%s (%s)", ds.Company, ds.Ticker)
	}
	return ds.Ticker
}

func sortedKeys(m map[string]models.TrendResult) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
