package collector

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/trogers1052/options-monitor/internal/models"
)

// Position is a held call option
type Position struct {
	Strike     float64
	Expiration string
	// PurchaseCost is the per-share premium paid
	PurchaseCost float64
}

// DefaultPositions are the calls monitored when none are configured
func DefaultPositions() []Position {
	return []Position{{Strike: 85, Expiration: "2027-12-17", PurchaseCost: 14.95}}
}

// ParsePosition reads "strike:expiration:cost", e.g. "85:2027-12-17:14.95"
func ParsePosition(s string) (Position, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Position{}, fmt.Errorf("invalid position %q: want strike:expiration:cost", s)
	}

	strike, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || strike <= 0 {
		return Position{}, fmt.Errorf("invalid strike in %q", s)
	}
	expiration := strings.TrimSpace(parts[1])
	if _, err := time.Parse("2006-01-02", expiration); err != nil {
		return Position{}, fmt.Errorf("invalid expiration in %q: %w", s, err)
	}
	cost, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil || cost < 0 {
		return Position{}, fmt.Errorf("invalid purchase cost in %q", s)
	}

	return Position{Strike: strike, Expiration: expiration, PurchaseCost: cost}, nil
}

// Quote is the market data of one option contract
type Quote struct {
	Bid               float64
	Ask               float64
	Volume            float64
	OpenInterest      float64
	ImpliedVolatility float64
}

// Mid is the midpoint of bid and ask
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// BuildRow turns a quote into a dashboard row. Returns are for one contract
// and the return percentage is zero when the position cost nothing.
func BuildRow(pos Position, q Quote, underlying float64, at time.Time, rate float64) (models.OptionRow, error) {
	tte, err := TimeToExpiration(pos.Expiration, at)
	if err != nil {
		return models.OptionRow{}, err
	}

	price := q.Mid()
	currentValue := price * models.ContractMultiplier
	cost := pos.PurchaseCost * models.ContractMultiplier
	totalReturn := currentValue - cost
	var returnPct float64
	if cost > 0 {
		returnPct = totalReturn / cost * 100
	}

	g := BlackScholes(underlying, pos.Strike, tte, rate, q.ImpliedVolatility)

	return models.OptionRow{
		Timestamp:         at,
		UnderlyingPrice:   underlying,
		OptionType:        "call",
		StrikePrice:       pos.Strike,
		ExpirationDate:    pos.Expiration,
		TimeToExpiration:  tte,
		MarketPrice:       price,
		Bid:               q.Bid,
		Ask:               q.Ask,
		Volume:            q.Volume,
		OpenInterest:      q.OpenInterest,
		ImpliedVolatility: q.ImpliedVolatility,
		PurchaseCost:      pos.PurchaseCost,
		TotalReturn:       totalReturn,
		ReturnPercentage:  returnPct,
		Delta:             g.Delta,
		Gamma:             g.Gamma,
		Theta:             g.Theta,
		Vega:              g.Vega,
		Rho:               g.Rho,
	}, nil
}
