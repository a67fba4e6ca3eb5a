package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"stockbot/src/audit"
	"stockbot/src/indicators"
	"stockbot/src/model"
)

const (
	reasonBuySignal       = "Stochastic Oscillator buy signal generated"
	reasonSellSignal      = "Stochastic Oscillator sell signal generated"
	reasonNoBuySignal     = "No buy signal generated"
	reasonNoSellSignal    = "No sell signal generated"
	reasonBuyWhileHeld    = "buy signal generated but position already open, skipped"
	reasonSellWithoutHeld = "sell signal generated but no open position, skipped"
)

var ErrNoBars = errors.New("no bars returned")

// BarSource provides historical bars, oldest first.
type BarSource interface {
	GetBars(ctx context.Context, symbol string, timeframe model.Timeframe, start, end time.Time) ([]model.Bar, error)
}

// StochasticMomentum evaluates the weekly stochastic crossover and projects
// it onto the daily calendar.
type StochasticMomentum struct {
	logger   *logrus.Entry
	bars     BarSource
	recorder *audit.Recorder
	limiter  *rate.Limiter
	cfg      Config
	now      func() time.Time
}

func NewStochasticMomentum(logger *logrus.Entry, bars BarSource, recorder *audit.Recorder, cfg Config) *StochasticMomentum {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	limit := rate.Inf
	if cfg.SymbolDelayMillis > 0 {
		limit = rate.Every(time.Duration(cfg.SymbolDelayMillis) * time.Millisecond)
	}

	return &StochasticMomentum{
		logger:   logger,
		bars:     bars,
		recorder: recorder,
		limiter:  rate.NewLimiter(limit, 1),
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock overrides the time source used for the data window.
func (s *StochasticMomentum) WithClock(now func() time.Time) *StochasticMomentum {
	s.now = now
	return s
}

// Evaluate returns the raw buy and sell signals for symbol as of the last
// daily bar in [now-lookback, now-1d].
func (s *StochasticMomentum) Evaluate(ctx context.Context, symbol string, now time.Time) (buy, sell bool, asOf time.Time, err error) {
	start := now.Add(-s.cfg.lookback())
	end := now.Add(-24 * time.Hour)

	daily, err := s.bars.GetBars(ctx, symbol, model.TimeframeDay, start, end)
	if err != nil {
		return false, false, time.Time{}, fmt.Errorf("daily bars: %w", err)
	}
	if len(daily) == 0 {
		return false, false, time.Time{}, fmt.Errorf("daily bars: %w", ErrNoBars)
	}

	weekly, err := s.bars.GetBars(ctx, symbol, model.TimeframeWeek, start, end)
	if err != nil {
		return false, false, time.Time{}, fmt.Errorf("weekly bars: %w", err)
	}

	buyRaw, sellRaw, weeklyTimes := s.weeklySignals(weekly)

	dailyTimes := make([]time.Time, len(daily))
	for i, b := range daily {
		dailyTimes[i] = b.Timestamp
	}

	buys := indicators.ForwardFill(weeklyTimes, buyRaw, dailyTimes)
	sells := indicators.ForwardFill(weeklyTimes, sellRaw, dailyTimes)

	last := len(daily) - 1
	return buys[last], sells[last], dailyTimes[last], nil
}

func (s *StochasticMomentum) weeklySignals(weekly []model.Bar) (buy, sell []bool, times []time.Time) {
	n := len(weekly)
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	times = make([]time.Time, n)
	for i, b := range weekly {
		high[i] = b.High.InexactFloat64()
		low[i] = b.Low.InexactFloat64()
		closes[i] = b.Close.InexactFloat64()
		times[i] = b.Timestamp
	}

	k, d := indicators.CalculateStochastic(high, low, closes, s.cfg.KPeriod, s.cfg.DPeriod)

	buy = make([]bool, n)
	sell = make([]bool, n)
	for i := range k {
		// NaN compares false, so undefined points never signal
		buy[i] = k[i] > s.cfg.BuyThreshold && k[i] > d[i]
		sell[i] = k[i] < s.cfg.SellThreshold && k[i] < d[i]
	}
	return buy, sell, times
}

// CheckSignals evaluates every symbol of the universe and gates the raw
// signals against open positions: buys only for symbols not held, sells only
// for held ones. Each symbol leaves one buy-determination audit entry and,
// when held, one sell-determination entry.
func (s *StochasticMomentum) CheckSignals(
	ctx context.Context,
	universe []string,
	openPositions map[string]bool,
) (buys, sells []model.SignalRecord) {

	now := s.now()

	for _, symbol := range universe {
		if err := s.limiter.Wait(ctx); err != nil {
			s.logger.WithError(err).Warn("signal check interrupted")
			return buys, sells
		}

		log := s.logger.WithField("symbol", symbol)
		held := openPositions[symbol]

		buy, sell, asOf, err := s.Evaluate(ctx, symbol, now)
		if err != nil {
			log.WithError(err).Error("failed to evaluate signal")
			s.recorder.Log(ctx, symbol, model.StageIndicator, model.OperationError, fmt.Sprintf("error evaluating signal: %v", err))
			continue
		}

		log.WithFields(logrus.Fields{
			"buy":   buy,
			"sell":  sell,
			"as_of": asOf,
			"held":  held,
		}).Info("signal evaluated")

		switch {
		case buy && !held:
			buys = append(buys, model.SignalRecord{Symbol: symbol, AsOf: asOf})
			s.recorder.Log(ctx, symbol, model.StageIndicator, model.OperationPassed, reasonBuySignal)
		case buy && held:
			s.recorder.Log(ctx, symbol, model.StageIndicator, model.OperationFailed, reasonBuyWhileHeld)
		case sell && !held:
			s.recorder.Log(ctx, symbol, model.StageIndicator, model.OperationFailed, reasonNoBuySignal+"; "+reasonSellWithoutHeld)
		default:
			s.recorder.Log(ctx, symbol, model.StageIndicator, model.OperationFailed, reasonNoBuySignal)
		}

		if !held {
			continue
		}

		if sell {
			sells = append(sells, model.SignalRecord{Symbol: symbol, AsOf: asOf})
			s.recorder.Log(ctx, symbol, model.StageIndicator, model.OperationPassed, reasonSellSignal)
		} else {
			s.recorder.Log(ctx, symbol, model.StageIndicator, model.OperationFailed, reasonNoSellSignal)
		}
	}

	return buys, sells
}
