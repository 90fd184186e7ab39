package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/cinar/indicator/v2/momentum"
	"github.com/rs/zerolog/log"

	"github.com/quantfunk/stratopt/pkg/optimize"
)

// RSI enters long when the relative strength index drops below the oversold
// threshold and exits when it rises above the overbought threshold.
type RSI struct {
	timestamps []time.Time
	closes     []float64

	period     int
	oversold   float64
	overbought float64
}

// NewRSI creates the strategy over a price series with conventional
// defaults.
func NewRSI(timestamps []time.Time, closes []float64) *RSI {
	return &RSI{
		timestamps: timestamps,
		closes:     closes,
		period:     14,
		oversold:   30,
		overbought: 70,
	}
}

func (s *RSI) ParameterSpace() optimize.ParameterSpace {
	return optimize.ParameterSpace{
		optimize.IntParam("period", 5, 30),
		optimize.FloatParam("oversold", 20, 40),
		optimize.FloatParam("overbought", 60, 80),
	}
}

func (s *RSI) SetParameters(params optimize.ParameterSet) error {
	if err := s.ParameterSpace().Conforms(params); err != nil {
		return err
	}
	s.period, _ = params.Int("period")
	s.oversold, _ = params.Float("oversold")
	s.overbought, _ = params.Float("overbought")
	return nil
}

func (s *RSI) Run(ctx context.Context) (*optimize.PerformanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.closes) <= s.period+1 {
		return nil, fmt.Errorf("need more than %d observations, got %d", s.period+1, len(s.closes))
	}

	rsi := chanToSlice(momentum.NewRsiWithPeriod[float64](s.period).Compute(sliceToChan(s.closes)))
	offset := len(s.closes) - len(rsi)

	signal := make([]int, len(s.closes))
	holding := 0
	for i := offset; i < len(s.closes); i++ {
		value := rsi[i-offset]
		if holding == 0 && value < s.oversold {
			holding = 1
		} else if holding == 1 && value > s.overbought {
			holding = 0
		}
		signal[i] = holding
	}

	log.Debug().
		Int("period", s.period).
		Float64("oversold", s.oversold).
		Float64("overbought", s.overbought).
		Int("observations", len(s.closes)).
		Msg("RSI signals generated")

	return buildRecord(s.timestamps, s.closes, signal)
}
