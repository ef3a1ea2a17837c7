package collector

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/trogers1052/options-monitor/internal/csvparse"
	"github.com/trogers1052/options-monitor/internal/models"
)

// Columns is the header written by WriteCSV
var Columns = []string{
	models.ColTimestamp, models.ColUnderlyingPrice, models.ColOptionType, models.ColStrikePrice,
	models.ColExpirationDate, models.ColTimeToExpiration, models.ColMarketPrice, models.ColBid,
	models.ColAsk, models.ColVolume, models.ColOpenInterest, models.ColImpliedVolatility,
	models.ColPurchaseCost, models.ColTotalReturn, models.ColReturnPercentage, models.ColDelta,
	models.ColGamma, models.ColTheta, models.ColVega, models.ColRho,
}

type dailyKey struct {
	date   string
	option models.OptionKey
}

// MergeDaily combines existing and incoming rows keeping only the latest row
// per option per exchange trading day. The result is oldest first.
func MergeDaily(existing, incoming []models.OptionRow) []models.OptionRow {
	all := make([]models.OptionRow, 0, len(existing)+len(incoming))
	all = append(all, existing...)
	all = append(all, incoming...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})

	last := make(map[dailyKey]int, len(all))
	for i, row := range all {
		last[dailyKey{date: models.TradingDate(row.Timestamp), option: row.Key()}] = i
	}

	merged := make([]models.OptionRow, 0, len(last))
	for i, row := range all {
		if last[dailyKey{date: models.TradingDate(row.Timestamp), option: row.Key()}] == i {
			merged = append(merged, row)
		}
	}
	return merged
}

// WriteCSV writes rows with the Columns header. Timestamps are written in
// exchange-local time with their offset.
func WriteCSV(w io.Writer, rows []models.OptionRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.Timestamp.In(models.MarketTimezone).Format("2006-01-02T15:04:05.999999-07:00"),
			formatFloat(r.UnderlyingPrice),
			r.OptionType,
			formatFloat(r.StrikePrice),
			r.ExpirationDate,
			formatFloat(r.TimeToExpiration),
			formatFloat(r.MarketPrice),
			formatFloat(r.Bid),
			formatFloat(r.Ask),
			formatFloat(r.Volume),
			formatFloat(r.OpenInterest),
			formatFloat(r.ImpliedVolatility),
			formatFloat(r.PurchaseCost),
			formatFloat(r.TotalReturn),
			formatFloat(r.ReturnPercentage),
			formatFloat(r.Delta),
			formatFloat(r.Gamma),
			formatFloat(r.Theta),
			formatFloat(r.Vega),
			formatFloat(r.Rho),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses rows with the same parser the dashboard uses
func ReadCSV(r io.Reader) ([]models.OptionRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return csvparse.ParseRows(string(data), csvparse.DefaultPolicy())
}

// existingPolicy rejects anything a rewrite would lose
var existingPolicy = csvparse.Policy{
	OnRowMismatch:      csvparse.RowMismatchFail,
	OnUnparsableNumber: csvparse.UnparsableFail,
}

// AppendDaily merges rows into the CSV file at path, creating it and its
// directory when missing, and returns the merged row count. A file holding
// a malformed line is left untouched and an error is returned.
func AppendDaily(path string, rows []models.OptionRow) (int, error) {
	var existing []models.OptionRow
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		existing, err = csvparse.ParseRows(string(data), existingPolicy)
		if err != nil {
			return 0, fmt.Errorf("refusing to rewrite %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	merged := MergeDaily(existing, rows)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create data directory: %w", err)
	}
	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if err := WriteCSV(out, merged); err != nil {
		out.Close()
		os.Remove(tmp)
		return 0, err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return len(merged), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
