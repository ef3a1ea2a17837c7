package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/options-monitor/internal/models"
)

var (
	multiplier = decimal.NewFromInt(models.ContractMultiplier)
	hundred    = decimal.NewFromInt(100)
)

// Summarize aggregates the latest entry of every group. underlyingPrice is
// taken from the most recent row overall. An empty group set yields a zero
// summary.
func Summarize(groups []models.OptionGroup, underlyingPrice float64) models.Summary {
	totalReturn := decimal.Zero
	totalCost := decimal.Zero
	totalValue := decimal.Zero

	for _, g := range groups {
		latest, ok := g.Latest()
		if !ok {
			continue
		}
		totalValue = totalValue.Add(amount(latest.MarketPrice).Mul(multiplier))
		totalCost = totalCost.Add(amount(latest.PurchaseCost).Mul(multiplier))
		totalReturn = totalReturn.Add(amount(latest.TotalReturn))
	}

	return models.Summary{
		TotalReturn:              totalReturn,
		TotalReturnPercentage:    returnPercent(totalReturn, totalCost),
		TotalCurrentValue:        totalValue,
		TotalPurchaseCost:        totalCost,
		UnderlyingPrice:          underlyingPrice,
		PositionCount:            len(groups),
		AverageImpliedVolatility: AverageImpliedVolatility(groups),
		ShortestTimeToExpiration: ShortestTimeToExpiration(groups),
	}
}

// AverageImpliedVolatility averages the implied volatility of each group's
// latest entry. Zero when there are no groups.
func AverageImpliedVolatility(groups []models.OptionGroup) float64 {
	var sum float64
	var n int
	for _, g := range groups {
		if latest, ok := g.Latest(); ok {
			sum += latest.ImpliedVolatility
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// ShortestTimeToExpiration is the minimum time to expiration over each
// group's latest entry. Zero when there are no groups.
func ShortestTimeToExpiration(groups []models.OptionGroup) float64 {
	shortest := math.Inf(1)
	for _, g := range groups {
		if latest, ok := g.Latest(); ok && latest.TimeToExpiration < shortest {
			shortest = latest.TimeToExpiration
		}
	}
	if math.IsInf(shortest, 1) {
		return 0
	}
	return shortest
}

// PortfolioSeries totals every row sharing a timestamp into one point per
// distinct timestamp, ordered oldest first for charting.
func PortfolioSeries(rows []models.OptionRow) []models.PortfolioTimePoint {
	type totals struct {
		at    time.Time
		value decimal.Decimal
		cost  decimal.Decimal
		ret   decimal.Decimal
	}

	byTime := make(map[time.Time]*totals)
	for _, row := range rows {
		k := row.Timestamp.UTC()
		t, ok := byTime[k]
		if !ok {
			t = &totals{at: row.Timestamp, value: decimal.Zero, cost: decimal.Zero, ret: decimal.Zero}
			byTime[k] = t
		}
		t.value = t.value.Add(amount(row.MarketPrice).Mul(multiplier))
		t.cost = t.cost.Add(amount(row.PurchaseCost).Mul(multiplier))
		t.ret = t.ret.Add(amount(row.TotalReturn))
	}

	points := make([]models.PortfolioTimePoint, 0, len(byTime))
	for _, t := range byTime {
		points = append(points, models.PortfolioTimePoint{
			Timestamp:          t.at,
			TotalValue:         t.value,
			TotalCost:          t.cost,
			TotalReturn:        t.ret,
			TotalReturnPercent: returnPercent(t.ret, t.cost),
		})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}

// amount converts a quote value to a decimal. Non-finite values count as zero.
func amount(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func returnPercent(ret, cost decimal.Decimal) decimal.Decimal {
	if !cost.IsPositive() {
		return decimal.Zero
	}
	return ret.Div(cost).Mul(hundred)
}
