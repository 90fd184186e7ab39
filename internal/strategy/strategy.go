// Package strategy provides concrete trading strategies that satisfy the
// optimize.Strategy contract. Each strategy turns a price series plus its
// parameters into a performance record with per-period returns, per-trade
// returns and position sizes.
package strategy

import (
	"fmt"
	"time"

	"github.com/quantfunk/stratopt/pkg/optimize"
)

// Factory returns a strategy factory for the named strategy over the given
// price series. Unknown names are a configuration error.
func Factory(name string, timestamps []time.Time, closes []float64) (optimize.StrategyFactory, error) {
	switch name {
	case "ma":
		return func() (optimize.Strategy, error) {
			return NewMovingAverageCross(timestamps, closes), nil
		}, nil
	case "rsi":
		return func() (optimize.Strategy, error) {
			return NewRSI(timestamps, closes), nil
		}, nil
	case "bollinger":
		return func() (optimize.Strategy, error) {
			return NewBollingerBands(timestamps, closes), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (available: ma, rsi, bollinger)", name)
	}
}

// sliceToChan feeds a price slice into the channel pipeline the indicator
// library consumes.
func sliceToChan(values []float64) <-chan float64 {
	c := make(chan float64, len(values))
	for _, v := range values {
		c <- v
	}
	close(c)
	return c
}

func chanToSlice(c <-chan float64) []float64 {
	var out []float64
	for v := range c {
		out = append(out, v)
	}
	return out
}

// buildRecord assembles the performance record for a 0/1 long-only signal
// series aligned with the closes. The position held during period i is the
// signal at i-1; trade returns are realized on exits, with any open position
// closed at the final price.
func buildRecord(timestamps []time.Time, closes []float64, signal []int) (*optimize.PerformanceRecord, error) {
	if len(timestamps) != len(closes) || len(closes) != len(signal) {
		return nil, fmt.Errorf("series length mismatch: %d timestamps, %d closes, %d signals",
			len(timestamps), len(closes), len(signal))
	}
	if len(closes) < 2 {
		return nil, fmt.Errorf("at least 2 observations required, got %d", len(closes))
	}

	record, err := optimize.NewPerformanceRecord(timestamps[1:])
	if err != nil {
		return nil, err
	}

	returns := make([]float64, len(closes)-1)
	positions := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		periodReturn := closes[i]/closes[i-1] - 1
		returns[i-1] = periodReturn * float64(signal[i-1])
		positions[i-1] = float64(signal[i-1])
	}

	var tradeReturns []float64
	entryPrice := 0.0
	inPosition := false
	for i := 1; i < len(signal); i++ {
		if !inPosition && signal[i] == 1 {
			entryPrice = closes[i]
			inPosition = true
		} else if inPosition && signal[i] == 0 {
			tradeReturns = append(tradeReturns, closes[i]/entryPrice-1)
			inPosition = false
		}
	}
	if inPosition {
		tradeReturns = append(tradeReturns, closes[len(closes)-1]/entryPrice-1)
	}

	if err := record.SetField(optimize.FieldReturns, returns); err != nil {
		return nil, err
	}
	if err := record.SetField(optimize.FieldPositionSize, positions); err != nil {
		return nil, err
	}
	if err := record.SetField(optimize.FieldPrice, closes[1:]); err != nil {
		return nil, err
	}
	if err := record.SetField(optimize.FieldTradeReturns, tradeReturns); err != nil {
		return nil, err
	}
	return record, nil
}
