package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dealerops/incentive-engine/internal/metrickey"
	"github.com/dealerops/incentive-engine/internal/period"
)

// Required columns of a financial entry import.
const (
	ColumnMetricKey = "metric_key"
	ColumnMonth     = "month"
	ColumnValue     = "value"
)

// ErrEmptyFile is returned for a CSV with no header row.
var ErrEmptyFile = errors.New("CSV file is empty")

const skippedFormat = "row %d skipped: %s"

// CountSkipped returns how many of Parse's warnings are skipped rows, as
// opposed to header notes.
func CountSkipped(warnings []string) int {
	n := 0
	for _, w := range warnings {
		var line int
		if _, err := fmt.Sscanf(w, "row %d skipped:", &line); err == nil {
			n++
		}
	}
	return n
}

// Row is one accepted line of an import. Value is nil for a blank cell.
type Row struct {
	Line      int
	MetricKey string
	Month     string
	Value     *float64
}

// Parse reads a metric_key,month,value CSV. Warnings are non-fatal: rows with
// a malformed metric key, month or value are skipped and reported. Errors are
// fatal: an unreadable file or a missing required column.
func Parse(reader io.Reader) (rows []Row, warnings []string, err error) {
	rows = make([]Row, 0)
	warnings = make([]string, 0)

	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	headers, err := csvReader.Read()
	if err != nil {
		if err == io.EOF {
			return rows, warnings, ErrEmptyFile
		}
		return rows, warnings, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	index, headerWarnings, headerErrors := ValidateHeaders(headers)
	warnings = append(warnings, headerWarnings...)
	if len(headerErrors) > 0 {
		return rows, warnings, fmt.Errorf("header validation failed: %s", strings.Join(headerErrors, "; "))
	}

	lineNum := 1
	for {
		lineNum++
		record, err := csvReader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return rows, warnings, fmt.Errorf("line %d: failed to read CSV row: %w", lineNum, err)
		}

		row, problem := parseRow(record, index, lineNum)
		if problem != "" {
			warnings = append(warnings, fmt.Sprintf(skippedFormat, lineNum, problem))
			continue
		}
		rows = append(rows, row)
	}

	return rows, warnings, nil
}

// ValidateHeaders locates the required columns and flags unexpected ones.
func ValidateHeaders(headers []string) (index map[string]int, warnings []string, errors []string) {
	index = make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[name]; dup {
			warnings = append(warnings, fmt.Sprintf("duplicate column '%s'; using the first occurrence", name))
			continue
		}
		index[name] = i
	}

	for _, required := range []string{ColumnMetricKey, ColumnMonth, ColumnValue} {
		if _, ok := index[required]; !ok {
			errors = append(errors, fmt.Sprintf("required column '%s' not found in headers", required))
		}
	}

	for name := range index {
		switch name {
		case ColumnMetricKey, ColumnMonth, ColumnValue:
		default:
			warnings = append(warnings, fmt.Sprintf("unexpected column '%s' ignored", name))
		}
	}
	return index, warnings, errors
}

func parseRow(record []string, index map[string]int, lineNum int) (Row, string) {
	cell := func(col string) string {
		i := index[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	key := cell(ColumnMetricKey)
	if key == "" {
		return Row{}, "metric_key is empty"
	}
	if _, err := metrickey.Decode(key); err != nil {
		return Row{}, err.Error()
	}

	month := cell(ColumnMonth)
	if _, err := period.ParseMonth(month); err != nil {
		return Row{}, err.Error()
	}

	row := Row{Line: lineNum, MetricKey: key, Month: month}
	raw := cell(ColumnValue)
	if raw == "" {
		return row, ""
	}
	v, err := parseNumber(raw)
	if err != nil {
		return Row{}, fmt.Sprintf("value %q is not a number", raw)
	}
	row.Value = &v
	return row, ""
}

// parseNumber accepts plain numbers plus the currency formatting that
// spreadsheet exports add: "$1,234.50" and "(250.00)" for negatives.
func parseNumber(raw string) (float64, error) {
	s := strings.NewReplacer("$", "", ",", "").Replace(raw)
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	if negative {
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if negative {
		v = -v
	}
	return v, nil
}
