// Package export renders commission results for download and email.
package export

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/tealeg/xlsx/v2"

	"github.com/dealerops/incentive-engine/internal/commission"
)

const (
	maxSheetName  = 31
	numberFormat  = "#,##0.00"
	emptySheet    = "Commission"
	invalidSheets = `[]:*?/\`
)

// rowLabels are the display names of the three rows of a rule.
var rowLabels = map[commission.RowKind]string{
	commission.KindCommission: "Commission",
	commission.KindBaseSalary: "Base Salary",
	commission.KindTotalComp:  "Total Compensation",
}

// Header returns the column titles shared by the XLSX and HTML renderings.
func Header(months []string) []string {
	header := []string{"Rule", "Source Metric", "Description", "Row"}
	header = append(header, months...)
	return append(header, "Total")
}

// WriteXLSX writes one sheet per scenario, one row per commission row,
// with a column per month and a Total column. With no results a single
// header-only sheet is written.
func WriteXLSX(w io.Writer, months []string, results []commission.Result) error {
	file := xlsx.NewFile()

	if len(results) == 0 {
		sheet, err := file.AddSheet(emptySheet)
		if err != nil {
			return fmt.Errorf("add sheet: %w", err)
		}
		addHeader(sheet, months)
		return file.Write(w)
	}

	used := make(map[string]bool, len(results))
	for _, res := range results {
		name := uniqueSheetName(res.ScenarioName, used)
		sheet, err := file.AddSheet(name)
		if err != nil {
			return fmt.Errorf("add sheet %q: %w", name, err)
		}
		addHeader(sheet, months)
		for _, r := range res.Rows {
			addRow(sheet, months, r)
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func addHeader(sheet *xlsx.Sheet, months []string) {
	row := sheet.AddRow()
	for _, title := range Header(months) {
		row.AddCell().SetString(title)
	}
}

func addRow(sheet *xlsx.Sheet, months []string, r commission.Row) {
	row := sheet.AddRow()
	row.AddCell().SetInt(r.RuleIndex + 1)
	row.AddCell().SetString(r.SourceMetric)
	row.AddCell().SetString(r.Description)
	row.AddCell().SetString(RowLabel(r.Kind))
	for _, m := range months {
		row.AddCell().SetFloatWithFormat(r.Value(m), numberFormat)
	}
	row.AddCell().SetFloatWithFormat(r.Total, numberFormat)
}

// RowLabel returns the display name of a row kind.
func RowLabel(kind commission.RowKind) string {
	if label, ok := rowLabels[kind]; ok {
		return label
	}
	return string(kind)
}

// uniqueSheetName makes name a legal, unused worksheet name.
func uniqueSheetName(name string, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidSheets, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	clean = strings.Trim(clean, "'")
	if clean == "" {
		clean = "Scenario"
	}
	clean = truncate(clean, maxSheetName)

	candidate := clean
	for i := 2; used[strings.ToLower(candidate)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		candidate = truncate(clean, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
