package csvparse

import (
	"fmt"
	"strings"
	"time"

	"github.com/trogers1052/options-monitor/internal/models"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts the timestamp formats written by the collector over
// time: RFC3339 with or without fractional seconds, the same without a zone,
// space separated variants and bare dates. Zone-less values are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// Decode maps records onto typed option rows. Missing columns decode as zero
// values. A numeric column holding something else is handled according to
// policy.OnUnparsableNumber.
func Decode(records []models.Record, policy Policy) ([]models.OptionRow, error) {
	rows := make([]models.OptionRow, 0, len(records))
	for i, rec := range records {
		row, err := decodeRecord(rec, policy)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseRows runs Parse and Decode in one step
func ParseRows(text string, policy Policy) ([]models.OptionRow, error) {
	records, err := Parse(text, policy)
	if err != nil {
		return nil, err
	}
	return Decode(records, policy)
}

func decodeRecord(rec models.Record, policy Policy) (models.OptionRow, error) {
	d := decoder{rec: rec, policy: policy}
	row := models.OptionRow{
		StrikePrice:       d.number(models.ColStrikePrice),
		ExpirationDate:    d.text(models.ColExpirationDate),
		MarketPrice:       d.number(models.ColMarketPrice),
		PurchaseCost:      d.number(models.ColPurchaseCost),
		TotalReturn:       d.number(models.ColTotalReturn),
		ReturnPercentage:  d.number(models.ColReturnPercentage),
		Delta:             d.number(models.ColDelta),
		Gamma:             d.number(models.ColGamma),
		Theta:             d.number(models.ColTheta),
		Vega:              d.number(models.ColVega),
		ImpliedVolatility: d.number(models.ColImpliedVolatility),
		TimeToExpiration:  d.number(models.ColTimeToExpiration),
		UnderlyingPrice:   d.number(models.ColUnderlyingPrice),
		OptionType:        d.text(models.ColOptionType),
		Bid:               d.number(models.ColBid),
		Ask:               d.number(models.ColAsk),
		Volume:            d.number(models.ColVolume),
		OpenInterest:      d.number(models.ColOpenInterest),
		Rho:               d.number(models.ColRho),
	}

	if v, ok := rec[models.ColTimestamp]; ok {
		ts, err := ParseTimestamp(v.String())
		if err != nil {
			d.fail(models.ColTimestamp, err)
		}
		row.Timestamp = ts
	}

	if d.err != nil {
		return models.OptionRow{}, d.err
	}
	row.Unparsed = d.unparsed
	return row, nil
}

type decoder struct {
	rec      models.Record
	policy   Policy
	unparsed []string
	err      error
}

func (d *decoder) number(col string) float64 {
	v, ok := d.rec[col]
	if !ok {
		return 0
	}
	if n, ok := v.Float(); ok {
		return n
	}
	// an empty optional column is absent, not malformed
	if v.Kind == models.KindString && v.Str == "" {
		return 0
	}
	d.fail(col, fmt.Errorf("%s = %q: %w", col, v.String(), ErrUnparsableNumber))
	return 0
}

func (d *decoder) text(col string) string {
	v, ok := d.rec[col]
	if !ok {
		return ""
	}
	return v.String()
}

func (d *decoder) fail(col string, err error) {
	if d.policy.OnUnparsableNumber == UnparsableFail {
		if d.err == nil {
			d.err = err
		}
		return
	}
	d.unparsed = append(d.unparsed, col)
}
