package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/options-monitor/internal/models"
	"github.com/trogers1052/options-monitor/internal/pipeline"
)

// Project card status constants
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
	StatusError  = "error"
)

// FormattedSummary holds the display strings of the summary cards
type FormattedSummary struct {
	TotalReturn           string `json:"total_return"`
	TotalReturnPercentage string `json:"total_return_percentage"`
	TotalCurrentValue     string `json:"total_current_value"`
	TotalPurchaseCost     string `json:"total_purchase_cost"`
	UnderlyingPrice       string `json:"underlying_price"`
	// Gain is true when the total return is not negative
	Gain bool `json:"gain"`
}

// SummaryResponse is returned by the summary endpoint
type SummaryResponse struct {
	Project     string             `json:"project"`
	LastUpdated time.Time          `json:"last_updated"`
	UpdatedAgo  string             `json:"updated_ago"`
	Freshness   pipeline.Freshness `json:"freshness"`
	Summary     models.Summary     `json:"summary"`
	Formatted   FormattedSummary   `json:"formatted"`
}

// ProjectCard is one entry of the landing page
type ProjectCard struct {
	models.Project
	Status  string           `json:"status"`
	Summary *SummaryResponse `json:"summary,omitempty"`
}

// PositionResponse is one option with its latest quote
type PositionResponse struct {
	Key     models.OptionKey   `json:"key"`
	Label   string             `json:"label"`
	Latest  models.OptionRow   `json:"latest"`
	Value   decimal.Decimal    `json:"current_value"`
	Cost    decimal.Decimal    `json:"purchase_cost"`
	Quotes  int                `json:"quotes"`
	History []models.OptionRow `json:"history,omitempty"`
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

func formatSummary(s models.Summary) FormattedSummary {
	return FormattedSummary{
		TotalReturn:           FormatCurrency(s.TotalReturn),
		TotalReturnPercentage: FormatPercentage(s.TotalReturnPercentage),
		TotalCurrentValue:     FormatCurrency(s.TotalCurrentValue),
		TotalPurchaseCost:     FormatCurrency(s.TotalPurchaseCost),
		UnderlyingPrice:       FormatPrice(s.UnderlyingPrice),
		Gain:                  !s.TotalReturn.IsNegative(),
	}
}

func newSummaryResponse(snap *models.ProjectSnapshot, now time.Time) *SummaryResponse {
	return &SummaryResponse{
		Project:     snap.ProjectName,
		LastUpdated: snap.LastUpdated,
		UpdatedAgo:  pipeline.TimeAgo(snap.LastUpdated, now),
		Freshness:   pipeline.DataFreshness(snap.LastUpdated, now),
		Summary:     snap.Summary,
		Formatted:   formatSummary(snap.Summary),
	}
}

func newPositionResponse(g models.OptionGroup, withHistory bool) PositionResponse {
	latest, _ := g.Latest()
	multiplier := decimal.NewFromInt(models.ContractMultiplier)

	resp := PositionResponse{
		Key:    g.Key,
		Label:  pipeline.OptionLabel(g.Key),
		Latest: latest,
		Value:  decimal.NewFromFloat(latest.MarketPrice).Mul(multiplier),
		Cost:   decimal.NewFromFloat(latest.PurchaseCost).Mul(multiplier),
		Quotes: len(g.Entries),
	}
	if withHistory {
		resp.History = g.Entries
	}
	return resp
}
