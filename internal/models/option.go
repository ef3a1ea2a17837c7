package models

import (
	"strconv"
	"time"
)

// ContractMultiplier is the number of shares one option contract controls
const ContractMultiplier = 100

// CSV column names
const (
	ColTimestamp         = "timestamp"
	ColStrikePrice       = "strike_price"
	ColExpirationDate    = "expiration_date"
	ColMarketPrice       = "market_price"
	ColPurchaseCost      = "purchase_cost"
	ColTotalReturn       = "total_return"
	ColReturnPercentage  = "return_percentage"
	ColDelta             = "delta"
	ColGamma             = "gamma"
	ColTheta             = "theta"
	ColVega              = "vega"
	ColImpliedVolatility = "implied_volatility"
	ColTimeToExpiration  = "time_to_expiration"
	ColUnderlyingPrice   = "ibit_price"

	// Written by the collector, optional for the dashboard
	ColOptionType   = "option_type"
	ColBid          = "bid"
	ColAsk          = "ask"
	ColVolume       = "volume"
	ColOpenInterest = "open_interest"
	ColRho          = "rho"
)

// OptionRow is one quote of one option at one point in time
type OptionRow struct {
	Timestamp         time.Time `json:"timestamp"`
	StrikePrice       float64   `json:"strike_price"`
	ExpirationDate    string    `json:"expiration_date"`
	MarketPrice       float64   `json:"market_price"`
	PurchaseCost      float64   `json:"purchase_cost"`
	TotalReturn       float64   `json:"total_return"`
	ReturnPercentage  float64   `json:"return_percentage"`
	Delta             float64   `json:"delta"`
	Gamma             float64   `json:"gamma"`
	Theta             float64   `json:"theta"`
	Vega              float64   `json:"vega"`
	ImpliedVolatility float64   `json:"implied_volatility"`
	TimeToExpiration  float64   `json:"time_to_expiration"`
	UnderlyingPrice   float64   `json:"ibit_price"`

	OptionType   string  `json:"option_type,omitempty"`
	Bid          float64 `json:"bid,omitempty"`
	Ask          float64 `json:"ask,omitempty"`
	Volume       float64 `json:"volume,omitempty"`
	OpenInterest float64 `json:"open_interest,omitempty"`
	Rho          float64 `json:"rho,omitempty"`

	// Columns whose value was kept as a string instead of a number
	Unparsed []string `json:"unparsed,omitempty"`
}

// Key returns the identity of the option this row quotes
func (r OptionRow) Key() OptionKey {
	return OptionKey{Strike: r.StrikePrice, Expiration: r.ExpirationDate}
}

// OptionKey identifies one distinct position by strike and expiration
type OptionKey struct {
	Strike     float64 `json:"strike"`
	Expiration string  `json:"expiration"`
}

// String renders the key for display, e.g. "85_2027-12-17"
func (k OptionKey) String() string {
	return strconv.FormatFloat(k.Strike, 'f', -1, 64) + "_" + k.Expiration
}

// OptionGroup is the time series of one option, newest first
type OptionGroup struct {
	Key     OptionKey   `json:"key"`
	Entries []OptionRow `json:"entries"`
}

// Latest returns the most recent entry of the group
func (g OptionGroup) Latest() (OptionRow, bool) {
	if len(g.Entries) == 0 {
		return OptionRow{}, false
	}
	return g.Entries[0], true
}
