package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Project source constants
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Project describes one monitored dashboard and where its data lives
type Project struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DataFile    string `json:"data_file,omitempty"`
	Source      string `json:"source"`
}

// Summary aggregates the latest entry of every position
type Summary struct {
	TotalReturn              decimal.Decimal `json:"total_return"`
	TotalReturnPercentage    decimal.Decimal `json:"total_return_percentage"`
	TotalCurrentValue        decimal.Decimal `json:"total_current_value"`
	TotalPurchaseCost        decimal.Decimal `json:"total_purchase_cost"`
	UnderlyingPrice          float64         `json:"underlying_price"`
	PositionCount            int             `json:"position_count"`
	AverageImpliedVolatility float64         `json:"average_implied_volatility"`
	ShortestTimeToExpiration float64         `json:"shortest_time_to_expiration"`
}

// PortfolioTimePoint aggregates every row sharing one timestamp
type PortfolioTimePoint struct {
	Timestamp          time.Time       `json:"timestamp"`
	TotalValue         decimal.Decimal `json:"total_value"`
	TotalCost          decimal.Decimal `json:"total_cost"`
	TotalReturn        decimal.Decimal `json:"total_return"`
	TotalReturnPercent decimal.Decimal `json:"total_return_percent"`
}

// ProjectSnapshot is the complete derived view produced by one pipeline run.
// It is never modified after it is built.
type ProjectSnapshot struct {
	ProjectName string        `json:"project_name"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	LastUpdated time.Time     `json:"last_updated"`
	Summary     Summary       `json:"summary"`
	RawData     []OptionRow   `json:"raw_data"`
	Positions   []OptionGroup `json:"positions"`
}

// Position returns the group for key
func (s *ProjectSnapshot) Position(key OptionKey) (OptionGroup, bool) {
	for _, g := range s.Positions {
		if g.Key == key {
			return g, true
		}
	}
	return OptionGroup{}, false
}
