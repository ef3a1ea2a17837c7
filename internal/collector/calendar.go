// Package collector captures end-of-day option quotes: trading calendar,
// greeks, quote rows and the daily CSV file the dashboard reads.
package collector

import (
	"fmt"
	"math"
	"time"

	"github.com/trogers1052/options-monitor/internal/models"
)

// DaysPerYear converts calendar days to years
const DaysPerYear = 365.25

// nyseHolidays lists full-day closures by exchange-local date
var nyseHolidays = map[string]string{
	"2025-01-01": "New Year's Day",
	"2025-01-20": "Martin Luther King Jr. Day",
	"2025-02-17": "Presidents Day",
	"2025-04-18": "Good Friday",
	"2025-05-26": "Memorial Day",
	"2025-06-19": "Juneteenth",
	"2025-07-04": "Independence Day",
	"2025-09-01": "Labor Day",
	"2025-11-27": "Thanksgiving Day",
	"2025-12-25": "Christmas Day",

	"2026-01-01": "New Year's Day",
	"2026-01-19": "Martin Luther King Jr. Day",
	"2026-02-16": "Presidents Day",
	"2026-04-03": "Good Friday",
	"2026-05-25": "Memorial Day",
	"2026-06-19": "Juneteenth",
	"2026-07-03": "Independence Day (observed)",
	"2026-09-07": "Labor Day",
	"2026-11-26": "Thanksgiving Day",
	"2026-12-25": "Christmas Day",
}

// IsTradingDay reports whether the exchange is open on the exchange-local
// date of t, with a human readable reason
func IsTradingDay(t time.Time) (bool, string) {
	local := t.In(models.MarketTimezone)
	day := local.Format("Monday, January 02, 2006")

	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false, "Weekend: " + day
	}
	if name, ok := nyseHolidays[local.Format("2006-01-02")]; ok {
		return false, fmt.Sprintf("Market Holiday (%s): %s", name, day)
	}
	return true, "Trading Day: " + day
}

// TimeToExpiration returns the years between the exchange-local date of
// today and expiration (YYYY-MM-DD). Past expirations are negative.
func TimeToExpiration(expiration string, today time.Time) (float64, error) {
	exp, err := time.Parse("2006-01-02", expiration)
	if err != nil {
		return 0, fmt.Errorf("invalid expiration date %q: %w", expiration, err)
	}
	local := today.In(models.MarketTimezone)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	days := math.Round(exp.Sub(start).Hours() / 24)
	return days / DaysPerYear, nil
}
