// Package data loads historical candle data for the optimizers.
package data

import (
	"fmt"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
)

// Timestamp wraps time.Time for CSV parsing. Both date-only and RFC3339
// values are accepted.
type Timestamp struct {
	time.Time
}

// UnmarshalCSV parses a CSV cell into a timestamp.
func (t *Timestamp) UnmarshalCSV(value string) error {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", value)
}

// MarshalCSV renders the timestamp back to a date cell.
func (t Timestamp) MarshalCSV() (string, error) {
	return t.Format("2006-01-02"), nil
}

// Candle is one OHLCV row of a historical data file.
type Candle struct {
	Timestamp Timestamp `csv:"timestamp"`
	Open      float64   `csv:"open"`
	High      float64   `csv:"high"`
	Low       float64   `csv:"low"`
	Close     float64   `csv:"close"`
	Volume    float64   `csv:"volume"`
}

// LoadCandles reads candles from a CSV file and validates that timestamps
// are strictly increasing.
func LoadCandles(path string) ([]Candle, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	var candles []Candle
	if err := gocsv.UnmarshalFile(f, &candles); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles in %s", path)
	}

	for i := 1; i < len(candles); i++ {
		if !candles[i].Timestamp.After(candles[i-1].Timestamp.Time) {
			return nil, fmt.Errorf("timestamps out of order at row %d (%s)",
				i+1, candles[i].Timestamp.Format("2006-01-02"))
		}
	}

	log.Info().
		Str("file", path).
		Int("candles", len(candles)).
		Time("start", candles[0].Timestamp.Time).
		Time("end", candles[len(candles)-1].Timestamp.Time).
		Msg("Loaded historical data")

	return candles, nil
}

// Series splits candles into aligned timestamp and close slices.
func Series(candles []Candle) ([]time.Time, []float64) {
	timestamps := make([]time.Time, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		timestamps[i] = c.Timestamp.Time
		closes[i] = c.Close
	}
	return timestamps, closes
}
