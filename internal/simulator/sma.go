package simulator

import (
	"context"
	"fmt"
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

// SMA crossover parameter names and defaults
const (
	ParamFastPeriod = "fast_period"
	ParamSlowPeriod = "slow_period"
	ParamMAType     = "ma_type"       // "sma" or "ema"
	ParamStopLoss   = "stop_loss_pct" // 0 disables
	ParamDirection  = "direction"     // "long" or "long_short"

	DefaultFastPeriod     = 10
	DefaultSlowPeriod     = 30
	DefaultBars           = 1000
	DefaultInitialCapital = 10000.0
)

// SMACrossover backtests a moving-average crossover strategy over a fixed
// price series: go long when the fast average crosses above the slow one and
// exit (or reverse, with direction long_short) when it crosses back below.
// The series is loaded once and shared read-only by concurrent simulations.
type SMACrossover struct {
	prices         []float64
	initialCapital float64
	feeRate        float64
}

// NewSMACrossover loads prices from opts.DataFile, or generates a synthetic
// series when no file is given.
func NewSMACrossover(opts Options) (*SMACrossover, error) {
	if opts.FeeRate < 0 || opts.FeeRate >= 1 {
		return nil, fmt.Errorf("fee rate %f must be in [0, 1)", opts.FeeRate)
	}

	var prices []float64
	if opts.DataFile != "" {
		loaded, err := LoadPrices(opts.DataFile)
		if err != nil {
			return nil, err
		}
		prices = loaded
	} else {
		bars := opts.Bars
		if bars <= 0 {
			bars = DefaultBars
		}
		prices = SyntheticPrices(bars, opts.Seed)
	}

	capital := opts.InitialCapital
	if capital <= 0 {
		capital = DefaultInitialCapital
	}

	log.Debug().
		Int("bars", len(prices)).
		Float64("initial_capital", capital).
		Float64("fee_rate", opts.FeeRate).
		Bool("synthetic", opts.DataFile == "").
		Msg("SMA crossover simulator ready")

	return &SMACrossover{prices: prices, initialCapital: capital, feeRate: opts.FeeRate}, nil
}

// Bars returns the length of the price series
func (s *SMACrossover) Bars() int {
	return len(s.prices)
}

type crossoverParams struct {
	fast, slow int
	ema        bool
	stopLoss   float64
	allowShort bool
}

func parseCrossoverParams(cfg paramspace.Configuration, bars int) (crossoverParams, error) {
	p := crossoverParams{fast: DefaultFastPeriod, slow: DefaultSlowPeriod}

	if v, ok := cfg.Int(ParamFastPeriod); ok {
		p.fast = int(v)
	}
	if v, ok := cfg.Int(ParamSlowPeriod); ok {
		p.slow = int(v)
	}
	if v, ok := cfg.Real(ParamStopLoss); ok {
		p.stopLoss = v
	}
	if v, ok := cfg.Str(ParamMAType); ok {
		switch v {
		case "sma":
		case "ema":
			p.ema = true
		default:
			return p, fmt.Errorf("%w: unknown %s %q", ErrInvalidParameters, ParamMAType, v)
		}
	}
	if v, ok := cfg.Str(ParamDirection); ok {
		switch v {
		case "long":
		case "long_short":
			p.allowShort = true
		default:
			return p, fmt.Errorf("%w: unknown %s %q", ErrInvalidParameters, ParamDirection, v)
		}
	}

	switch {
	case p.fast < 1:
		return p, fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidParameters, ParamFastPeriod, p.fast)
	case p.fast >= p.slow:
		return p, fmt.Errorf("%w: %s %d must be below %s %d", ErrInvalidParameters, ParamFastPeriod, p.fast, ParamSlowPeriod, p.slow)
	case p.slow > bars:
		return p, fmt.Errorf("%w: %s %d exceeds %d bars", ErrInvalidParameters, ParamSlowPeriod, p.slow, bars)
	case p.stopLoss < 0:
		return p, fmt.Errorf("%w: %s must not be negative", ErrInvalidParameters, ParamStopLoss)
	}
	return p, nil
}

// Simulate implements search.Simulator
func (s *SMACrossover) Simulate(ctx context.Context, cfg paramspace.Configuration) (selector.Metrics, error) {
	p, err := parseCrossoverParams(cfg, len(s.prices))
	if err != nil {
		return nil, err
	}

	fast := movingAverage(s.prices, p.fast, p.ema)
	slow := movingAverage(s.prices, p.slow, p.ema)

	report, err := s.backtest(ctx, p, fast, slow)
	if err != nil {
		return nil, err
	}
	return report.Metrics(), nil
}

// movingAverage returns one value per price; bars inside the indicator's
// warm-up period are NaN.
func movingAverage(prices []float64, period int, ema bool) []float64 {
	in := helper.SliceToChan(prices)

	var out <-chan float64
	if ema {
		out = trend.NewEmaWithPeriod[float64](period).Compute(in)
	} else {
		out = trend.NewSmaWithPeriod[float64](period).Compute(in)
	}
	values := helper.ChanToSlice(out)

	aligned := make([]float64, len(prices))
	offset := len(prices) - len(values)
	for i := 0; i < offset; i++ {
		aligned[i] = math.NaN()
	}
	copy(aligned[offset:], values)
	return aligned
}

// position is an all-in position; units is negative when short
type position struct {
	units      float64
	entryPrice float64
	stake      float64 // capital after the entry fee
	committed  float64 // capital before the entry fee
}

func (p *position) open() bool { return p.units != 0 }

func (p *position) value(price float64) float64 {
	return p.stake + p.units*(price-p.entryPrice)
}

func (s *SMACrossover) backtest(ctx context.Context, p crossoverParams, fast, slow []float64) (*Report, error) {
	cash := s.initialCapital
	var pos position
	var tradePL []float64
	equity := make([]float64, 0, len(s.prices))

	enter := func(price, direction float64) {
		if cash <= 0 {
			return
		}
		fee := cash * s.feeRate
		pos = position{
			units:      direction * (cash - fee) / price,
			entryPrice: price,
			stake:      cash - fee,
			committed:  cash,
		}
		cash = 0
	}
	exit := func(price float64) {
		proceeds := pos.value(price) - math.Abs(pos.units)*price*s.feeRate
		cash = math.Max(0, proceeds)
		tradePL = append(tradePL, cash-pos.committed)
		pos = position{}
	}

	prevDiff := math.NaN()
	for i, price := range s.prices {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if pos.open() && p.stopLoss > 0 {
			move := (price - pos.entryPrice) / pos.entryPrice * 100.0
			if pos.units < 0 {
				move = -move
			}
			if move <= -p.stopLoss {
				exit(price)
			}
		}

		if f, sl := fast[i], slow[i]; !math.IsNaN(f) && !math.IsNaN(sl) {
			diff := f - sl
			if !math.IsNaN(prevDiff) {
				switch {
				case prevDiff <= 0 && diff > 0:
					if pos.units < 0 {
						exit(price)
					}
					if !pos.open() {
						enter(price, 1)
					}
				case prevDiff >= 0 && diff < 0:
					if pos.units > 0 {
						exit(price)
					}
					if !pos.open() && p.allowShort {
						enter(price, -1)
					}
				}
			}
			prevDiff = diff
		}

		if pos.open() {
			equity = append(equity, pos.value(price))
		} else {
			equity = append(equity, cash)
		}
	}

	if pos.open() && len(s.prices) > 0 {
		exit(s.prices[len(s.prices)-1])
		equity[len(equity)-1] = cash
	}

	return NewReport(s.initialCapital, equity, tradePL), nil
}
