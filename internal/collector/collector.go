package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/trogers1052/options-monitor/internal/models"
)

// ErrNotTradingDay is returned by Capture when the exchange is closed
var ErrNotTradingDay = errors.New("not a trading day")

// Collector captures one quote row per monitored position
type Collector struct {
	provider  QuoteProvider
	symbol    string
	positions []Position
	rate      float64
	now       func() time.Time
	log       zerolog.Logger
}

// New creates a Collector for positions on symbol
func New(provider QuoteProvider, symbol string, positions []Position, rate float64, log zerolog.Logger) *Collector {
	return &Collector{
		provider:  provider,
		symbol:    symbol,
		positions: positions,
		rate:      rate,
		now:       time.Now,
		log:       log.With().Str("component", "collector").Str("symbol", symbol).Logger(),
	}
}

// Capture quotes every position. A position whose quote fails is logged and
// skipped; an error is returned only when nothing could be captured.
func (c *Collector) Capture(ctx context.Context, force bool) ([]models.OptionRow, error) {
	at := c.now()
	open, reason := IsTradingDay(at)
	c.log.Info().Str("status", reason).Msg("market status")
	if !open && !force {
		return nil, fmt.Errorf("%w: %s", ErrNotTradingDay, reason)
	}

	underlying, err := c.provider.UnderlyingPrice(ctx, c.symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s price: %w", c.symbol, err)
	}
	c.log.Info().Float64("price", underlying).Msg("underlying price")

	rows := make([]models.OptionRow, 0, len(c.positions))
	for _, pos := range c.positions {
		q, err := c.provider.OptionQuote(ctx, c.symbol, pos)
		if err != nil {
			c.log.Error().Err(err).Float64("strike", pos.Strike).Str("expiration", pos.Expiration).
				Msg("failed to quote position")
			continue
		}

		row, err := BuildRow(pos, q, underlying, at, c.rate)
		if err != nil {
			c.log.Error().Err(err).Float64("strike", pos.Strike).Msg("failed to build row")
			continue
		}
		c.log.Info().Str("option", row.Key().String()).Float64("market_price", row.MarketPrice).
			Float64("total_return", row.TotalReturn).Float64("return_pct", row.ReturnPercentage).
			Msg("captured quote")
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, errors.New("no option data collected")
	}
	return rows, nil
}
