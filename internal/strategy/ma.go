package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/cinar/indicator/v2/trend"
	"github.com/rs/zerolog/log"

	"github.com/quantfunk/stratopt/pkg/optimize"
)

// MovingAverageCross goes long while the short simple moving average is
// above the long one.
type MovingAverageCross struct {
	timestamps []time.Time
	closes     []float64

	shortWindow int
	longWindow  int
}

// NewMovingAverageCross creates the strategy over a price series with the
// default windows.
func NewMovingAverageCross(timestamps []time.Time, closes []float64) *MovingAverageCross {
	return &MovingAverageCross{
		timestamps:  timestamps,
		closes:      closes,
		shortWindow: 40,
		longWindow:  100,
	}
}

func (s *MovingAverageCross) ParameterSpace() optimize.ParameterSpace {
	return optimize.ParameterSpace{
		optimize.IntParam("short_window", 5, 50),
		optimize.IntParam("long_window", 20, 200),
	}
}

func (s *MovingAverageCross) SetParameters(params optimize.ParameterSet) error {
	if err := s.ParameterSpace().Conforms(params); err != nil {
		return err
	}
	s.shortWindow, _ = params.Int("short_window")
	s.longWindow, _ = params.Int("long_window")
	return nil
}

func (s *MovingAverageCross) Run(ctx context.Context) (*optimize.PerformanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.shortWindow >= s.longWindow {
		return nil, fmt.Errorf("short_window %d must be less than long_window %d", s.shortWindow, s.longWindow)
	}
	if len(s.closes) <= s.longWindow {
		return nil, fmt.Errorf("need more than %d observations, got %d", s.longWindow, len(s.closes))
	}

	shortMA := chanToSlice(trend.NewSmaWithPeriod[float64](s.shortWindow).Compute(sliceToChan(s.closes)))
	longMA := chanToSlice(trend.NewSmaWithPeriod[float64](s.longWindow).Compute(sliceToChan(s.closes)))

	// The indicator pipeline drops the warmup prefix; align both series to
	// the tail of the closes.
	shortOffset := len(s.closes) - len(shortMA)
	longOffset := len(s.closes) - len(longMA)

	signal := make([]int, len(s.closes))
	for i := longOffset; i < len(s.closes); i++ {
		if shortMA[i-shortOffset] > longMA[i-longOffset] {
			signal[i] = 1
		}
	}

	log.Debug().
		Int("short_window", s.shortWindow).
		Int("long_window", s.longWindow).
		Int("observations", len(s.closes)).
		Msg("Moving average cross signals generated")

	return buildRecord(s.timestamps, s.closes, signal)
}
