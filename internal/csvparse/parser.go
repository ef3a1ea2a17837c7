// Package csvparse turns the loosely formatted quote CSV into typed records.
//
// The format is deliberately lenient: it is split on newlines, fields honour
// double quotes, and lines that do not match the header are dropped unless a
// strict Policy says otherwise.
package csvparse

import (
	"fmt"
	"strings"

	"github.com/trogers1052/options-monitor/internal/models"
)

// Parse splits text into records keyed by the trimmed header names. Input with
// fewer than two lines yields no records.
func Parse(text string, policy Policy) ([]models.Record, error) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 2 {
		return []models.Record{}, nil
	}

	headers := strings.Split(lines[0], ",")
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	records := make([]models.Record, 0, len(lines)-1)
	for i, line := range lines[1:] {
		values := SplitLine(line)
		if len(values) != len(headers) {
			if policy.OnRowMismatch == RowMismatchFail {
				return nil, fmt.Errorf("line %d has %d fields, header has %d: %w",
					i+2, len(values), len(headers), ErrRowMismatch)
			}
			continue
		}

		record := make(models.Record, len(headers))
		for j, header := range headers {
			record[header] = ConvertValue(values[j])
		}
		records = append(records, record)
	}

	return records, nil
}

// SplitLine splits one data line on commas outside double quotes. Quote
// characters stay in the field; ConvertValue strips them.
func SplitLine(line string) []string {
	var fields []string
	var current strings.Builder
	inQuotes := false

	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
			current.WriteRune(ch)
		case ch == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}

	return append(fields, strings.TrimSpace(current.String()))
}
