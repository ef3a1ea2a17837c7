package pipeline

import (
	"github.com/trogers1052/options-monitor/internal/models"
)

// Options tunes Build
type Options struct {
	// MinTimeToExpiration is the strict lower bound, in years, for a row to be kept
	MinTimeToExpiration float64
}

// DefaultOptions returns the options used by the dashboard
func DefaultOptions() Options {
	return Options{MinTimeToExpiration: DefaultMinTimeToExpiration}
}

// Build runs sort, filter, grouping and aggregation over rows and returns a
// fresh snapshot for project. It returns ErrNoData when no row survives the
// filter.
func Build(project models.Project, rows []models.OptionRow, opts Options) (*models.ProjectSnapshot, error) {
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	longDated := FilterLongDated(SortNewestFirst(rows), opts.MinTimeToExpiration)
	if len(longDated) == 0 {
		return nil, ErrNoData
	}

	latest := longDated[0]
	groups := GroupByOption(longDated)

	return &models.ProjectSnapshot{
		ProjectName: project.Name,
		Title:       project.Title,
		Description: project.Description,
		LastUpdated: latest.Timestamp,
		Summary:     Summarize(groups, latest.UnderlyingPrice),
		RawData:     longDated,
		Positions:   groups,
	}, nil
}
