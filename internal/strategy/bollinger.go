package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/cinar/indicator/v2/volatility"
	"github.com/rs/zerolog/log"

	"github.com/quantfunk/stratopt/pkg/optimize"
)

// BollingerBands enters long when the close falls below the lower band and
// exits when it crosses the configured exit band.
type BollingerBands struct {
	timestamps []time.Time
	closes     []float64

	period   int
	exitBand string // "middle" or "upper"
}

// NewBollingerBands creates the strategy over a price series with default
// parameters.
func NewBollingerBands(timestamps []time.Time, closes []float64) *BollingerBands {
	return &BollingerBands{
		timestamps: timestamps,
		closes:     closes,
		period:     20,
		exitBand:   "middle",
	}
}

func (s *BollingerBands) ParameterSpace() optimize.ParameterSpace {
	return optimize.ParameterSpace{
		optimize.IntParam("period", 10, 50),
		optimize.CategoricalParam("exit_band", "middle", "upper"),
	}
}

func (s *BollingerBands) SetParameters(params optimize.ParameterSet) error {
	if err := s.ParameterSpace().Conforms(params); err != nil {
		return err
	}
	s.period, _ = params.Int("period")
	s.exitBand, _ = params.String("exit_band")
	return nil
}

func (s *BollingerBands) Run(ctx context.Context) (*optimize.PerformanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.closes) <= s.period {
		return nil, fmt.Errorf("need more than %d observations, got %d", s.period, len(s.closes))
	}

	bands := volatility.NewBollingerBandsWithPeriod[float64](s.period)
	lowerChan, middleChan, upperChan := bands.Compute(sliceToChan(s.closes))

	// The pipeline feeds all three bands from one bounded fan-out, so they
	// must be drained in lockstep; reading one channel to completion first
	// deadlocks the producer.
	var lower, middle, upper []float64
	for {
		l, lok := <-lowerChan
		m, mok := <-middleChan
		u, uok := <-upperChan
		if !lok || !mok || !uok {
			break
		}
		lower = append(lower, l)
		middle = append(middle, m)
		upper = append(upper, u)
	}
	offset := len(s.closes) - len(lower)

	signal := make([]int, len(s.closes))
	holding := 0
	for i := offset; i < len(s.closes); i++ {
		exit := middle[i-offset]
		if s.exitBand == "upper" {
			exit = upper[i-offset]
		}
		if holding == 0 && s.closes[i] < lower[i-offset] {
			holding = 1
		} else if holding == 1 && s.closes[i] > exit {
			holding = 0
		}
		signal[i] = holding
	}

	log.Debug().
		Int("period", s.period).
		Str("exit_band", s.exitBand).
		Int("observations", len(s.closes)).
		Msg("Bollinger band signals generated")

	return buildRecord(s.timestamps, s.closes, signal)
}
