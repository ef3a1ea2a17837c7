package collector

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/options-monitor/internal/csvparse"
	"github.com/trogers1052/options-monitor/internal/models"
)

// 2025-08-01 16:00 in New York, a Friday
var marketClose = time.Date(2025, 8, 1, 20, 0, 0, 0, time.UTC)

func TestIsTradingDay(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"regular friday", marketClose, true},
		{"saturday", marketClose.AddDate(0, 0, 1), false},
		{"sunday", marketClose.AddDate(0, 0, 2), false},
		{"independence day", time.Date(2025, 7, 4, 20, 0, 0, 0, time.UTC), false},
		{"good friday 2026", time.Date(2026, 4, 3, 20, 0, 0, 0, time.UTC), false},
		{"observed holiday 2026", time.Date(2026, 7, 3, 20, 0, 0, 0, time.UTC), false},
		{"late evening is still friday in new york", time.Date(2025, 8, 2, 2, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := IsTradingDay(tt.at)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, reason)
		})
	}

	_, reason := IsTradingDay(time.Date(2025, 12, 25, 20, 0, 0, 0, time.UTC))
	assert.Contains(t, reason, "Christmas Day")
}

func TestTimeToExpiration(t *testing.T) {
	tte, err := TimeToExpiration("2027-12-17", marketClose)
	require.NoError(t, err)
	assert.InDelta(t, 868/DaysPerYear, tte, 1e-9)

	// same New York date, different UTC date
	late, err := TimeToExpiration("2027-12-17", time.Date(2025, 8, 2, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, tte, late)

	expired, err := TimeToExpiration("2025-07-31", marketClose)
	require.NoError(t, err)
	assert.InDelta(t, -1/DaysPerYear, expired, 1e-9)

	_, err = TimeToExpiration("12/17/2027", marketClose)
	assert.Error(t, err)
}

func TestBlackScholes(t *testing.T) {
	t.Run("at the money one year", func(t *testing.T) {
		g := BlackScholes(100, 100, 1, 0.05, 0.2)

		assert.InDelta(t, 0.63683, g.Delta, 1e-4)
		assert.InDelta(t, 0.018762, g.Gamma, 1e-5)
		assert.InDelta(t, -0.017561, g.Theta, 1e-5)
		assert.InDelta(t, 0.37524, g.Vega, 1e-4)
		assert.InDelta(t, 0.53232, g.Rho, 1e-4)
	})

	t.Run("degenerate inputs give zero greeks", func(t *testing.T) {
		assert.Equal(t, Greeks{}, BlackScholes(100, 100, 0, 0.05, 0.2))
		assert.Equal(t, Greeks{}, BlackScholes(100, 100, -0.5, 0.05, 0.2))
		assert.Equal(t, Greeks{}, BlackScholes(100, 100, 1, 0.05, 0))
	})

	t.Run("deep in the money delta approaches one", func(t *testing.T) {
		g := BlackScholes(200, 50, 2, DefaultRiskFreeRate, 0.5)
		assert.Greater(t, g.Delta, 0.99)
		assert.LessOrEqual(t, g.Delta, 1.0)
	})
}

func TestParsePosition(t *testing.T) {
	pos, err := ParsePosition("85:2027-12-17:14.95")
	require.NoError(t, err)
	assert.Equal(t, Position{Strike: 85, Expiration: "2027-12-17", PurchaseCost: 14.95}, pos)

	for _, bad := range []string{"85:2027-12-17", "x:2027-12-17:1", "85:17-12-2027:1", "85:2027-12-17:-1", "0:2027-12-17:1"} {
		_, err := ParsePosition(bad)
		assert.Error(t, err, bad)
	}
}

func TestBuildRow(t *testing.T) {
	pos := Position{Strike: 85, Expiration: "2027-12-17", PurchaseCost: 14.95}
	q := Quote{Bid: 15.4, Ask: 15.6, Volume: 120, OpenInterest: 3400, ImpliedVolatility: 0.52}

	row, err := BuildRow(pos, q, 65, marketClose, DefaultRiskFreeRate)
	require.NoError(t, err)

	assert.Equal(t, "call", row.OptionType)
	assert.InDelta(t, 15.5, row.MarketPrice, 1e-9)
	assert.InDelta(t, 55, row.TotalReturn, 1e-6)
	assert.InDelta(t, 55.0/1495*100, row.ReturnPercentage, 1e-6)
	assert.InDelta(t, 868/DaysPerYear, row.TimeToExpiration, 1e-9)
	assert.Equal(t, 14.95, row.PurchaseCost)
	assert.Greater(t, row.Delta, 0.0)
	assert.Less(t, row.Theta, 0.0)
	assert.Equal(t, models.OptionKey{Strike: 85, Expiration: "2027-12-17"}, row.Key())

	free, err := BuildRow(Position{Strike: 85, Expiration: "2027-12-17"}, q, 65, marketClose, DefaultRiskFreeRate)
	require.NoError(t, err)
	assert.Zero(t, free.ReturnPercentage)
}

func quoteAt(strike float64, at time.Time, price float64) models.OptionRow {
	return models.OptionRow{
		Timestamp:        at,
		StrikePrice:      strike,
		ExpirationDate:   "2027-12-17",
		OptionType:       "call",
		MarketPrice:      price,
		TimeToExpiration: 2.37,
	}
}

func TestMergeDaily(t *testing.T) {
	morning := marketClose.Add(-6 * time.Hour)
	existing := []models.OptionRow{
		quoteAt(85, marketClose.AddDate(0, 0, -1), 14.0),
		quoteAt(85, morning, 15.0),
	}
	incoming := []models.OptionRow{
		quoteAt(85, marketClose, 15.5),
		quoteAt(90, marketClose, 13.0),
	}

	merged := MergeDaily(existing, incoming)

	require.Len(t, merged, 3)
	assert.Equal(t, 14.0, merged[0].MarketPrice)
	assert.Equal(t, 15.5, merged[1].MarketPrice, "latest quote of the day wins")
	assert.Equal(t, 90.0, merged[2].StrikePrice)

	t.Run("older incoming quote does not replace newer", func(t *testing.T) {
		merged := MergeDaily([]models.OptionRow{quoteAt(85, marketClose, 15.5)}, []models.OptionRow{quoteAt(85, morning, 15.0)})
		require.Len(t, merged, 1)
		assert.Equal(t, 15.5, merged[0].MarketPrice)
	})
}

func TestCSVRoundTrip(t *testing.T) {
	pos := Position{Strike: 85, Expiration: "2027-12-17", PurchaseCost: 14.95}
	row, err := BuildRow(pos, Quote{Bid: 15.4, Ask: 15.6, Volume: 120, ImpliedVolatility: 0.52}, 65, marketClose, DefaultRiskFreeRate)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []models.OptionRow{row}))
	assert.Contains(t, buf.String(), "2025-08-01T16:00:00-04:00")

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.True(t, row.Timestamp.Equal(got[0].Timestamp))
	assert.Equal(t, row.Key(), got[0].Key())
	assert.Equal(t, row.MarketPrice, got[0].MarketPrice)
	assert.Equal(t, row.TotalReturn, got[0].TotalReturn)
	assert.Equal(t, row.Delta, got[0].Delta)
	assert.Equal(t, row.Rho, got[0].Rho)
	assert.Equal(t, "call", got[0].OptionType)
	assert.Empty(t, got[0].Unparsed)
}

func TestAppendDaily(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects", "IBIT_Call_Monitor", "data", "ibit_calls.csv")

	n, err := AppendDaily(path, []models.OptionRow{quoteAt(85, marketClose.Add(-time.Hour), 15.0)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = AppendDaily(path, []models.OptionRow{quoteAt(85, marketClose, 15.5), quoteAt(85, marketClose.AddDate(0, 0, 3), 16.0)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := ReadCSV(f)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 15.5, rows[0].MarketPrice)
	assert.Equal(t, 16.0, rows[1].MarketPrice)
}

func TestAppendDaily_MalformedExistingFile(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"short line", "2025-07-31T16:00:00-04:00,65\n", csvparse.ErrRowMismatch},
		{"unparsable cell", "2025-07-31T16:00:00-04:00,65,call,85,2027-12-17,2.37,n/a,,,,,0.5,14.95,5,0.3,0.7,0.01,-0.01,0.3,0.4\n", csvparse.ErrUnparsableNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ibit_calls.csv")
			_, err := AppendDaily(path, []models.OptionRow{quoteAt(85, marketClose.AddDate(0, 0, -1), 15.0)})
			require.NoError(t, err)

			before, err := os.ReadFile(path)
			require.NoError(t, err)
			broken := append(before, tt.line...)
			require.NoError(t, os.WriteFile(path, broken, 0o644))

			_, err = AppendDaily(path, []models.OptionRow{quoteAt(85, marketClose, 15.5)})
			assert.ErrorIs(t, err, tt.want)

			after, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, string(broken), string(after))
		})
	}
}

func newGatewayServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case "/iserver/secdef/search":
			if q.Get("symbol") != "IBIT" {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			_, _ = w.Write([]byte(`[{"conid":"123","symbol":"IBIT"}]`))
		case "/iserver/secdef/info":
			assert.Equal(t, "123", q.Get("conid"))
			assert.Equal(t, "DEC27", q.Get("month"))
			assert.Equal(t, "C", q.Get("right"))
			_, _ = w.Write([]byte(`[
				{"conid":457,"strike":85,"right":"C","maturityDate":"20271119"},
				{"conid":456,"strike":85,"right":"C","maturityDate":"20271217"}
			]`))
		case "/iserver/marketdata/snapshot":
			switch q.Get("conids") {
			case "123":
				_, _ = w.Write([]byte(`[{"conid":123,"31":"C65.12"}]`))
			case "456":
				_, _ = w.Write([]byte(`[{"conid":456,"84":"15.40","85":{"v":15.6},"87":"1.2K","7283":"52.3%","7638":3400}]`))
			default:
				_, _ = w.Write([]byte(`[]`))
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGateway(t *testing.T) {
	ctx := context.Background()
	srv := newGatewayServer(t)
	g := NewGateway(srv.URL)
	g.warmup = 0

	t.Run("underlying price", func(t *testing.T) {
		price, err := g.UnderlyingPrice(ctx, "IBIT")
		require.NoError(t, err)
		assert.Equal(t, 65.12, price)
	})

	t.Run("option quote", func(t *testing.T) {
		q, err := g.OptionQuote(ctx, "IBIT", Position{Strike: 85, Expiration: "2027-12-17"})
		require.NoError(t, err)
		assert.Equal(t, 15.4, q.Bid)
		assert.Equal(t, 15.6, q.Ask)
		assert.Equal(t, 1200.0, q.Volume)
		assert.Equal(t, 3400.0, q.OpenInterest)
		assert.InDelta(t, 0.523, q.ImpliedVolatility, 1e-9)
	})

	t.Run("unknown symbol", func(t *testing.T) {
		_, err := g.UnderlyingPrice(ctx, "NOPE")
		assert.ErrorContains(t, err, "symbol not found")
	})

	t.Run("unlisted expiration", func(t *testing.T) {
		_, err := g.OptionQuote(ctx, "IBIT", Position{Strike: 85, Expiration: "2027-12-10"})
		assert.ErrorContains(t, err, "no contract")
	})
}

type fakeProvider struct {
	price  float64
	quotes map[float64]Quote
}

func (f fakeProvider) UnderlyingPrice(context.Context, string) (float64, error) {
	return f.price, nil
}

func (f fakeProvider) OptionQuote(_ context.Context, _ string, pos Position) (Quote, error) {
	q, ok := f.quotes[pos.Strike]
	if !ok {
		return Quote{}, errors.New("no quote")
	}
	return q, nil
}

func TestCapture(t *testing.T) {
	ctx := context.Background()
	provider := fakeProvider{price: 65, quotes: map[float64]Quote{85: {Bid: 15.4, Ask: 15.6, ImpliedVolatility: 0.52}}}
	positions := []Position{
		{Strike: 85, Expiration: "2027-12-17", PurchaseCost: 14.95},
		{Strike: 90, Expiration: "2027-12-17", PurchaseCost: 13.00},
	}

	t.Run("failed positions are skipped", func(t *testing.T) {
		c := New(provider, "IBIT", positions, DefaultRiskFreeRate, zerolog.Nop())
		c.now = func() time.Time { return marketClose }

		rows, err := c.Capture(ctx, false)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 85.0, rows[0].StrikePrice)
		assert.Equal(t, 65.0, rows[0].UnderlyingPrice)
	})

	t.Run("closed market", func(t *testing.T) {
		c := New(provider, "IBIT", positions, DefaultRiskFreeRate, zerolog.Nop())
		c.now = func() time.Time { return marketClose.AddDate(0, 0, 1) }

		_, err := c.Capture(ctx, false)
		assert.ErrorIs(t, err, ErrNotTradingDay)

		rows, err := c.Capture(ctx, true)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("nothing captured", func(t *testing.T) {
		c := New(fakeProvider{price: 65}, "IBIT", positions, DefaultRiskFreeRate, zerolog.Nop())
		c.now = func() time.Time { return marketClose }

		_, err := c.Capture(ctx, false)
		assert.Error(t, err)
	})
}
