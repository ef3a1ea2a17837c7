// Package pipeline derives dashboard snapshots from decoded option rows.
//
// Every function here is pure: inputs are never modified and results share
// no mutable state with them.
package pipeline

import (
	"errors"
	"sort"

	"github.com/trogers1052/options-monitor/internal/models"
)

// DefaultMinTimeToExpiration is the horizon, in years, above which a
// position counts as a long-dated call
const DefaultMinTimeToExpiration = 1.0

// ErrNoData is returned when nothing usable is left to build a snapshot from
var ErrNoData = errors.New("no data available")

// SortNewestFirst returns a copy of rows ordered by descending timestamp.
// Rows with equal timestamps keep their relative order.
func SortNewestFirst(rows []models.OptionRow) []models.OptionRow {
	sorted := make([]models.OptionRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	return sorted
}

// FilterLongDated keeps rows whose time to expiration is strictly greater
// than minYears
func FilterLongDated(rows []models.OptionRow, minYears float64) []models.OptionRow {
	kept := make([]models.OptionRow, 0, len(rows))
	for _, row := range rows {
		if row.TimeToExpiration > minYears {
			kept = append(kept, row)
		}
	}
	return kept
}
