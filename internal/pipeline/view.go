package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/trogers1052/options-monitor/internal/models"
)

// TimeRange is the chart window selected on the dashboard. Zero means all history.
type TimeRange struct {
	Days int
}

// ParseTimeRange accepts "7", "30", "90", any other positive day count, or
// "all" / "" for the full history
func ParseTimeRange(s string) (TimeRange, error) {
	if s == "" || s == "all" {
		return TimeRange{}, nil
	}
	days, err := strconv.Atoi(s)
	if err != nil || days <= 0 {
		return TimeRange{}, fmt.Errorf("invalid time range: %s", s)
	}
	return TimeRange{Days: days}, nil
}

// FilterSince keeps rows at or after now minus the range
func FilterSince(rows []models.OptionRow, r TimeRange, now time.Time) []models.OptionRow {
	if r.Days == 0 {
		return rows
	}
	cutoff := now.AddDate(0, 0, -r.Days)
	kept := make([]models.OptionRow, 0, len(rows))
	for _, row := range rows {
		if !row.Timestamp.Before(cutoff) {
			kept = append(kept, row)
		}
	}
	return kept
}

// Chart metric constants
const (
	MetricReturnPercentage  = "return_percentage"
	MetricMarketPrice       = "market_price"
	MetricDelta             = "delta"
	MetricGamma             = "gamma"
	MetricTheta             = "theta"
	MetricVega              = "vega"
	MetricImpliedVolatility = "implied_volatility"
)

var metrics = map[string]func(models.OptionRow) float64{
	MetricReturnPercentage: func(r models.OptionRow) float64 { return r.ReturnPercentage },
	MetricMarketPrice:      func(r models.OptionRow) float64 { return r.MarketPrice },
	MetricDelta:            func(r models.OptionRow) float64 { return r.Delta },
	MetricGamma:            func(r models.OptionRow) float64 { return r.Gamma },
	MetricTheta:            func(r models.OptionRow) float64 { return r.Theta },
	MetricVega:             func(r models.OptionRow) float64 { return r.Vega },
	// charted as a percentage
	MetricImpliedVolatility: func(r models.OptionRow) float64 { return r.ImpliedVolatility * 100 },
}

// SeriesPoint is one sample of a per-option chart
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// OptionSeries is the chart data set of one option for one metric
type OptionSeries struct {
	Key    models.OptionKey `json:"key"`
	Label  string           `json:"label"`
	Metric string           `json:"metric"`
	Points []SeriesPoint    `json:"points"`
}

// IsMetric reports whether name is a chartable metric
func IsMetric(name string) bool {
	_, ok := metrics[name]
	return ok
}

// SeriesByOption builds one oldest-first series per option for metric, in
// the order the options first appear in rows
func SeriesByOption(rows []models.OptionRow, metric string) ([]OptionSeries, error) {
	value, ok := metrics[metric]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", metric)
	}

	groups := GroupByOption(rows)
	series := make([]OptionSeries, 0, len(groups))
	for _, g := range groups {
		points := make([]SeriesPoint, 0, len(g.Entries))
		for _, row := range g.Entries {
			points = append(points, SeriesPoint{Timestamp: row.Timestamp, Value: value(row)})
		}
		sort.SliceStable(points, func(i, j int) bool {
			return points[i].Timestamp.Before(points[j].Timestamp)
		})
		series = append(series, OptionSeries{
			Key:    g.Key,
			Label:  OptionLabel(g.Key),
			Metric: metric,
			Points: points,
		})
	}
	return series, nil
}

// OptionLabel is the display name of an option, e.g. "$85 Call 2027-12-17"
func OptionLabel(k models.OptionKey) string {
	return fmt.Sprintf("$%s Call %s", strconv.FormatFloat(k.Strike, 'f', -1, 64), k.Expiration)
}

// Freshness of a snapshot's data
type Freshness string

// Freshness constants
const (
	FreshnessGreen  Freshness = "green"
	FreshnessYellow Freshness = "yellow"
	FreshnessRed    Freshness = "red"
)

// DataFreshness classifies data as fresh within a day, stale within three
// days, and red after that
func DataFreshness(lastUpdated, now time.Time) Freshness {
	age := now.Sub(lastUpdated)
	switch {
	case age <= 24*time.Hour:
		return FreshnessGreen
	case age <= 72*time.Hour:
		return FreshnessYellow
	default:
		return FreshnessRed
	}
}

// TimeAgo renders the age of lastUpdated as "N minutes ago", "N hours ago"
// or "N days ago"
func TimeAgo(lastUpdated, now time.Time) string {
	hours := now.Sub(lastUpdated).Hours()
	switch {
	case hours < 1:
		return fmt.Sprintf("%d minutes ago", int(math.Floor(hours*60)))
	case hours < 24:
		return plural(int(math.Floor(hours)), "hour") + " ago"
	default:
		return plural(int(math.Floor(hours/24)), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
