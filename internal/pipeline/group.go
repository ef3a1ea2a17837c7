package pipeline

import (
	"sort"

	"github.com/trogers1052/options-monitor/internal/models"
)

// GroupByOption partitions rows by strike and expiration. Groups come out in
// the order their key was first seen; each group is sorted newest first on
// its own, so the result does not depend on the input order.
func GroupByOption(rows []models.OptionRow) []models.OptionGroup {
	index := make(map[models.OptionKey]int)
	var groups []models.OptionGroup

	for _, row := range rows {
		key := row.Key()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, models.OptionGroup{Key: key})
		}
		groups[i].Entries = append(groups[i].Entries, row)
	}

	for i := range groups {
		entries := groups[i].Entries
		sort.SliceStable(entries, func(a, b int) bool {
			return entries[a].Timestamp.After(entries[b].Timestamp)
		})
	}

	return groups
}
