package screener

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"stockbot/src/audit"
	"stockbot/src/model"
)

const (
	ReasonUserSymbols     = "User Selected Symbols"
	ReasonUserSectors     = "User Selected Sectors"
	ReasonPassed          = "Passed initial screening"
	ReasonNoSectorSymbols = "no symbols in selected sectors"
	ReasonNothingPassed   = "No stocks found suitable for strategy"
)

// Catalog is the read-only symbol universe.
type Catalog interface {
	AllSymbols(ctx context.Context) ([]string, error)
	SymbolsBySectors(ctx context.Context, sectors []string) ([]string, error)
}

type FundamentalsSource interface {
	GetFundamentals(ctx context.Context, symbol string) (model.Fundamentals, error)
}

// Screener narrows the catalog down to the symbols worth evaluating. One
// instance is shared by all users so fundamentals are fetched once per TTL.
type Screener struct {
	logger  *logrus.Entry
	catalog Catalog
	source  FundamentalsSource
	cache   *cache.Cache
	limiter *rate.Limiter
	cfg     Config
	sleep   func(ctx context.Context, d time.Duration) error
}

func New(logger *logrus.Entry, catalog Catalog, source FundamentalsSource, cfg Config) *Screener {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 100
	}

	limit := rate.Inf
	if cfg.RequestsPerMin > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMin))
	}

	ttl := time.Duration(cfg.CacheTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}

	return &Screener{
		logger:  logger.WithField("component", "screener"),
		catalog: catalog,
		source:  source,
		cache:   cache.New(ttl, 2*ttl),
		limiter: rate.NewLimiter(limit, 1),
		cfg:     cfg,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Screen returns the universe for one run. User filters win over screening:
// explicit symbols first, then sectors, then the full catalog screened on
// volume, beta and spread.
func (s *Screener) Screen(ctx context.Context, cfg model.TradingConfig, rec *audit.Recorder) []string {
	log := s.logger.WithField("user_id", cfg.UserID)

	if len(cfg.Symbols) > 0 {
		log.WithField("symbols", cfg.Symbols).Info("using user selected symbols")
		out := make([]string, len(cfg.Symbols))
		copy(out, cfg.Symbols)
		for _, symbol := range out {
			rec.Log(ctx, symbol, model.StageFirstScreen, model.OperationPassed, ReasonUserSymbols)
		}
		return out
	}

	if len(cfg.Sectors) > 0 {
		symbols, err := s.catalog.SymbolsBySectors(ctx, cfg.Sectors)
		if err != nil {
			log.WithError(err).Error("failed to resolve sectors")
			rec.Log(ctx, model.NoSymbol, model.StageFirstScreen, model.OperationError, fmt.Sprintf("failed to load catalog: %v", err))
			return nil
		}
		if len(symbols) == 0 {
			log.WithField("sectors", cfg.Sectors).Warn(ReasonNoSectorSymbols)
			rec.Log(ctx, model.NoSymbol, model.StageFirstScreen, model.OperationFailed, ReasonNoSectorSymbols)
			return nil
		}
		for _, symbol := range symbols {
			rec.Log(ctx, symbol, model.StageFirstScreen, model.OperationPassed, ReasonUserSectors)
		}
		return symbols
	}

	all, err := s.catalog.AllSymbols(ctx)
	if err != nil {
		log.WithError(err).Error("failed to load catalog")
		rec.Log(ctx, model.NoSymbol, model.StageFirstScreen, model.OperationError, fmt.Sprintf("failed to load catalog: %v", err))
		return nil
	}
	if len(all) == 0 {
		log.Error("catalog is empty")
	}

	var passed []string
	for i, chunk := range chunks(all, s.cfg.ChunkSize) {
		log.WithFields(logrus.Fields{
			"chunk": i,
			"size":  len(chunk),
		}).Info("processing chunk")

		for _, symbol := range chunk {
			if ctx.Err() != nil {
				log.WithError(ctx.Err()).Warn("screening interrupted")
				return passed
			}
			f, ok := s.fundamentals(ctx, symbol)
			if !ok {
				continue
			}
			if s.passes(f) {
				passed = append(passed, symbol)
			}
		}
	}

	if len(passed) == 0 {
		log.Info("no stocks passed the first screening")
		rec.Log(ctx, model.NoSymbol, model.StageFirstScreen, model.OperationFailed, ReasonNothingPassed)
		return nil
	}

	for _, symbol := range passed {
		rec.Log(ctx, symbol, model.StageFirstScreen, model.OperationPassed, ReasonPassed)
	}
	log.WithField("symbols", passed).Info("screening complete")
	return passed
}

func (s *Screener) passes(f model.Fundamentals) bool {
	if f.AverageVolume == nil || f.Beta == nil || !f.HasQuote() {
		return false
	}
	return *f.AverageVolume > s.cfg.MinAverageVolume &&
		*f.Beta > s.cfg.MinBeta &&
		f.Spread().LessThan(decimal.NewFromFloat(s.cfg.MaxSpread))
}

// fundamentals fetches one symbol, retrying while the quote is incomplete.
// Only complete quotes are cached. ok is false when the symbol must be
// excluded.
func (s *Screener) fundamentals(ctx context.Context, symbol string) (model.Fundamentals, bool) {
	if cached, found := s.cache.Get(symbol); found {
		return cached.(model.Fundamentals), true
	}

	log := s.logger.WithField("symbol", symbol)
	backoff := time.Duration(s.cfg.RetryBackoffMs) * time.Millisecond

	for attempt := 0; ; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return model.Fundamentals{}, false
		}

		f, err := s.source.GetFundamentals(ctx, symbol)
		if err != nil {
			log.WithError(err).Error("error fetching fundamentals")
			return model.Fundamentals{}, false
		}

		if f.HasQuote() {
			s.cache.SetDefault(symbol, f)
			return f, true
		}

		if attempt >= s.cfg.QuoteRetries {
			log.WithField("attempts", attempt+1).Warn("bid or ask missing, skipping")
			return model.Fundamentals{}, false
		}

		if err := s.sleep(ctx, backoff*time.Duration(attempt+1)); err != nil {
			return model.Fundamentals{}, false
		}
	}
}

func chunks(items []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
