package models

import (
	"time"
	_ "time/tzdata"
)

// MarketTimezone is the exchange timezone quotes are bucketed in
var MarketTimezone = loadMarketTimezone()

func loadMarketTimezone() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// TradingDate returns the exchange-local calendar date of t as YYYY-MM-DD
func TradingDate(t time.Time) string {
	return t.In(MarketTimezone).Format("2006-01-02")
}
