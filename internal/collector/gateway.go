package collector

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// QuoteProvider supplies the market data a capture needs
type QuoteProvider interface {
	UnderlyingPrice(ctx context.Context, symbol string) (float64, error)
	OptionQuote(ctx context.Context, symbol string, pos Position) (Quote, error)
}

// DefaultGatewayURL is the local Client Portal Gateway API root
const DefaultGatewayURL = "https://localhost:5001/v1/api"

// Snapshot field ids
const (
	fieldLast         = "31"
	fieldBid          = "84"
	fieldAsk          = "85"
	fieldVolume       = "87"
	fieldImpliedVol   = "7283"
	fieldOpenInterest = "7638"
)

// Gateway is a QuoteProvider backed by an Interactive Brokers Client Portal
// Gateway
type Gateway struct {
	httpClient *http.Client
	baseURL    string
	// warmup is the pause between the snapshot preflight and the real request
	warmup time.Duration
}

// NewGateway creates a Gateway client. The gateway serves a self-signed
// certificate on localhost, so TLS verification is skipped.
func NewGateway(baseURL string) *Gateway {
	if baseURL == "" {
		baseURL = DefaultGatewayURL
	}
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	return &Gateway{
		httpClient: &http.Client{Transport: tr, Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		warmup:     500 * time.Millisecond,
	}
}

type searchResult struct {
	ConID  string `json:"conid"`
	Symbol string `json:"symbol"`
}

type contractInfo struct {
	ConID        int     `json:"conid"`
	Strike       float64 `json:"strike"`
	Right        string  `json:"right"`
	MaturityDate string  `json:"maturityDate"`
}

// UnderlyingPrice returns the last price of symbol
func (g *Gateway) UnderlyingPrice(ctx context.Context, symbol string) (float64, error) {
	conid, err := g.searchSymbol(ctx, symbol)
	if err != nil {
		return 0, err
	}

	fields, err := g.snapshot(ctx, conid, fieldLast)
	if err != nil {
		return 0, err
	}
	price := parseFieldValue(fields[fieldLast])
	if price <= 0 {
		return 0, fmt.Errorf("no last price for %s", symbol)
	}
	return price, nil
}

// OptionQuote returns market data for the call described by pos
func (g *Gateway) OptionQuote(ctx context.Context, symbol string, pos Position) (Quote, error) {
	underlying, err := g.searchSymbol(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}

	conid, err := g.contractID(ctx, underlying, pos)
	if err != nil {
		return Quote{}, err
	}

	fields, err := g.snapshot(ctx, conid, fieldBid, fieldAsk, fieldVolume, fieldImpliedVol, fieldOpenInterest)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		Bid:          parseFieldValue(fields[fieldBid]),
		Ask:          parseFieldValue(fields[fieldAsk]),
		Volume:       parseFieldValue(fields[fieldVolume]),
		OpenInterest: parseFieldValue(fields[fieldOpenInterest]),
		// reported as a percentage
		ImpliedVolatility: parseFieldValue(fields[fieldImpliedVol]) / 100,
	}
	if q.Bid <= 0 && q.Ask <= 0 {
		return Quote{}, fmt.Errorf("no bid or ask for $%v call expiring %s", pos.Strike, pos.Expiration)
	}
	return q, nil
}

func (g *Gateway) searchSymbol(ctx context.Context, symbol string) (int, error) {
	var results []searchResult
	if err := g.getJSON(ctx, "/iserver/secdef/search?symbol="+url.QueryEscape(symbol), &results); err != nil {
		return 0, fmt.Errorf("search request failed: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("symbol not found: %s", symbol)
	}

	conid, err := strconv.Atoi(results[0].ConID)
	if err != nil {
		return 0, fmt.Errorf("parsing ConID: %w", err)
	}
	return conid, nil
}

func (g *Gateway) contractID(ctx context.Context, underlying int, pos Position) (int, error) {
	exp, err := time.Parse("2006-01-02", pos.Expiration)
	if err != nil {
		return 0, fmt.Errorf("invalid expiration %q: %w", pos.Expiration, err)
	}
	month := strings.ToUpper(exp.Format("Jan06"))

	q := url.Values{}
	q.Set("conid", strconv.Itoa(underlying))
	q.Set("sectype", "OPT")
	q.Set("month", month)
	q.Set("strike", strconv.FormatFloat(pos.Strike, 'f', -1, 64))
	q.Set("right", "C")

	var contracts []contractInfo
	if err := g.getJSON(ctx, "/iserver/secdef/info?"+q.Encode(), &contracts); err != nil {
		return 0, fmt.Errorf("fetching contract info: %w", err)
	}

	maturity := exp.Format("20060102")
	for _, c := range contracts {
		if c.MaturityDate == maturity && c.Strike == pos.Strike {
			return c.ConID, nil
		}
	}
	return 0, fmt.Errorf("no contract for $%v call expiring %s", pos.Strike, pos.Expiration)
}

// snapshot requests market data fields for conid. The gateway answers the
// first request for a contract with an empty subscription, so a preflight
// request is made first.
func (g *Gateway) snapshot(ctx context.Context, conid int, fields ...string) (map[string]interface{}, error) {
	path := fmt.Sprintf("/iserver/marketdata/snapshot?conids=%d&fields=%s", conid, strings.Join(fields, ","))

	var preflight []map[string]interface{}
	_ = g.getJSON(ctx, path, &preflight)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(g.warmup):
	}

	var data []map[string]interface{}
	if err := g.getJSON(ctx, path, &data); err != nil {
		return nil, fmt.Errorf("fetching market data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no market data returned for conid %d", conid)
	}
	return data[0], nil
}

func (g *Gateway) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// parseFieldValue extracts a float from the formats the gateway uses:
// numbers, strings with suffixes like "52.3%" or "1.2K", and {"v": value}
func parseFieldValue(field interface{}) float64 {
	switch val := field.(type) {
	case float64:
		return val
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(val, ",", ""))
		s = strings.TrimPrefix(s, "C")
		mult := 1.0
		switch {
		case strings.HasSuffix(s, "K"):
			mult, s = 1e3, strings.TrimSuffix(s, "K")
		case strings.HasSuffix(s, "M"):
			mult, s = 1e6, strings.TrimSuffix(s, "M")
		}
		s = strings.TrimSuffix(s, "%")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f * mult
	case map[string]interface{}:
		if v, ok := val["v"]; ok {
			return parseFieldValue(v)
		}
	}
	return 0
}
