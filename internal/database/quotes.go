package database

import (
	"context"
	"fmt"
	"time"

	"github.com/trogers1052/options-monitor/internal/models"
)

const upsertQuoteQuery = `
	INSERT INTO option_quotes (
		project, quote_date, quoted_at, underlying_price, option_type, strike_price,
		expiration_date, time_to_expiration, market_price, bid, ask, volume, open_interest,
		implied_volatility, purchase_cost, total_return, return_percentage,
		delta, gamma, theta, vega, rho, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $23)
	ON CONFLICT (project, quote_date, strike_price, expiration_date) DO UPDATE SET
		quoted_at = EXCLUDED.quoted_at,
		underlying_price = EXCLUDED.underlying_price,
		option_type = EXCLUDED.option_type,
		time_to_expiration = EXCLUDED.time_to_expiration,
		market_price = EXCLUDED.market_price,
		bid = EXCLUDED.bid,
		ask = EXCLUDED.ask,
		volume = EXCLUDED.volume,
		open_interest = EXCLUDED.open_interest,
		implied_volatility = EXCLUDED.implied_volatility,
		purchase_cost = EXCLUDED.purchase_cost,
		total_return = EXCLUDED.total_return,
		return_percentage = EXCLUDED.return_percentage,
		delta = EXCLUDED.delta,
		gamma = EXCLUDED.gamma,
		theta = EXCLUDED.theta,
		vega = EXCLUDED.vega,
		rho = EXCLUDED.rho,
		updated_at = EXCLUDED.updated_at
	WHERE option_quotes.quoted_at <= EXCLUDED.quoted_at
`

func quoteArgs(project string, q models.OptionRow, now time.Time) []interface{} {
	optionType := q.OptionType
	if optionType == "" {
		optionType = "call"
	}
	return []interface{}{
		project, models.TradingDate(q.Timestamp), q.Timestamp, q.UnderlyingPrice, optionType, q.StrikePrice,
		q.ExpirationDate, q.TimeToExpiration, q.MarketPrice, q.Bid, q.Ask, int64(q.Volume), int64(q.OpenInterest),
		q.ImpliedVolatility, q.PurchaseCost, q.TotalReturn, q.ReturnPercentage,
		q.Delta, q.Gamma, q.Theta, q.Vega, q.Rho, now,
	}
}

// UpsertQuote stores one quote. Quotes are kept one per option per exchange
// trading day; a later quote for the same day replaces an earlier one and an
// older one is ignored.
func (db *DB) UpsertQuote(ctx context.Context, project string, q models.OptionRow) error {
	if _, err := db.conn.ExecContext(ctx, upsertQuoteQuery, quoteArgs(project, q, time.Now())...); err != nil {
		return fmt.Errorf("failed to upsert quote %s: %w", q.Key(), err)
	}
	return nil
}

// UpsertQuotes stores quotes in a single transaction
func (db *DB) UpsertQuotes(ctx context.Context, project string, quotes []models.OptionRow) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertQuoteQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, q := range quotes {
		if _, err := stmt.ExecContext(ctx, quoteArgs(project, q, now)...); err != nil {
			return fmt.Errorf("failed to upsert quote %s: %w", q.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListQuotes returns the quotes of a project taken at or after since,
// newest first. A zero since returns everything.
func (db *DB) ListQuotes(ctx context.Context, project string, since time.Time) ([]models.OptionRow, error) {
	query := `
		SELECT quoted_at, underlying_price, option_type, strike_price, expiration_date,
			time_to_expiration, market_price, bid, ask, volume, open_interest,
			implied_volatility, purchase_cost, total_return, return_percentage,
			delta, gamma, theta, vega, rho
		FROM option_quotes
		WHERE project = $1 AND quoted_at >= $2
		ORDER BY quoted_at DESC, strike_price, expiration_date
	`
	rows, err := db.conn.QueryContext(ctx, query, project, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	defer rows.Close()

	var quotes []models.OptionRow
	for rows.Next() {
		var q models.OptionRow
		var expiration time.Time
		if err := rows.Scan(
			&q.Timestamp, &q.UnderlyingPrice, &q.OptionType, &q.StrikePrice, &expiration,
			&q.TimeToExpiration, &q.MarketPrice, &q.Bid, &q.Ask, &q.Volume, &q.OpenInterest,
			&q.ImpliedVolatility, &q.PurchaseCost, &q.TotalReturn, &q.ReturnPercentage,
			&q.Delta, &q.Gamma, &q.Theta, &q.Vega, &q.Rho,
		); err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		q.Timestamp = q.Timestamp.UTC()
		q.ExpirationDate = expiration.Format("2006-01-02")
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quotes: %w", err)
	}
	return quotes, nil
}

// DeleteQuotesBefore removes quotes taken before cutoff and returns how many
// were removed
func (db *DB) DeleteQuotesBefore(ctx context.Context, project string, cutoff time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM option_quotes WHERE project = $1 AND quoted_at < $2`, project, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete quotes: %w", err)
	}
	return result.RowsAffected()
}

// Key identifies a project's quotes for caching
func (db *DB) Key(p models.Project) string {
	return "postgres:" + p.Name
}

// Rows returns every stored quote of the project, newest first
func (db *DB) Rows(ctx context.Context, p models.Project) ([]models.OptionRow, error) {
	return db.ListQuotes(ctx, p.Name, time.Time{})
}
