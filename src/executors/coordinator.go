package executors

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"stockbot/src/audit"
	"stockbot/src/connectors"
	"stockbot/src/controller"
	"stockbot/src/model"
	"stockbot/src/repository"
	"stockbot/src/strategy"
)

var ErrMissingCredentials = errors.New("brokerage credentials not configured")

type SettingsStore interface {
	LoadTradingConfig(ctx context.Context, userID uint) (model.TradingConfig, error)
	GetByUserID(ctx context.Context, userID uint) (*model.UserSetting, error)
	ListActiveUserIDs(ctx context.Context) ([]uint, error)
	SetBotActive(ctx context.Context, userID uint, active bool, at time.Time) error
}

type UniverseScreener interface {
	Screen(ctx context.Context, cfg model.TradingConfig, rec *audit.Recorder) []string
}

type ExceptionStore interface {
	Create(ctx context.Context, exc *model.Exception) error
}

// Clients are the connections a run makes with the user's own credentials.
type Clients struct {
	Broker controller.Broker
	Bars   strategy.BarSource
}

type ClientFactory func(cfg model.TradingConfig) (Clients, error)

// AlpacaClients builds trading and market data clients against the paper or
// live endpoint selected in the user's settings.
func AlpacaClients(conn connectors.Config) ClientFactory {
	return func(cfg model.TradingConfig) (Clients, error) {
		if cfg.APIKey == "" || cfg.APISecret == "" {
			return Clients{}, ErrMissingCredentials
		}
		return Clients{
			Broker: connectors.NewAlpacaTradingClient(cfg.APIKey, cfg.APISecret, conn.TradingURL(cfg.Paper)),
			Bars:   connectors.NewMarketDataClient(cfg.APIKey, cfg.APISecret, conn.AlpacaDataURL),
		}, nil
	}
}

type Dependencies struct {
	Settings   SettingsStore
	Sink       audit.Sink
	Screener   UniverseScreener
	Exceptions ExceptionStore
	Clients    ClientFactory
	Strategy   strategy.Config
	Orders     controller.Config
	Config     Config
}

// Coordinator runs the bot for one user at a time per user, and one
// all-users sweep at a time overall.
type Coordinator struct {
	logger *logrus.Entry
	deps   Dependencies

	userLocks sync.Map // uint -> *sync.Mutex
	sweepLock sync.Mutex

	background sync.WaitGroup
	goFn       func(func())
	now        func() time.Time
}

func NewCoordinator(logger *logrus.Entry, deps Dependencies) *Coordinator {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Coordinator{
		logger: logger.WithField("component", "coordinator"),
		deps:   deps,
		goFn:   func(f func()) { go f() },
		now:    time.Now,
	}
}

func (c *Coordinator) userLock(userID uint) *sync.Mutex {
	m, _ := c.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// Run executes one pass for userID. It never panics and never returns an
// error to the caller; the outcome is in the result and the audit trail.
func (c *Coordinator) Run(ctx context.Context, userID uint) (res RunResult) {
	log := c.logger.WithField("user_id", userID)

	lock := c.userLock(userID)
	if !lock.TryLock() {
		log.Warn("run already in progress for user, skipping")
		return RunResult{UserID: userID, Status: RunSkipped}
	}
	defer lock.Unlock()

	started := c.now()
	res = RunResult{UserID: userID}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("run panicked: %v", r)
			log.WithError(err).WithField("stack", string(debug.Stack())).Error("recovered from panic in user run")
			controller.Capture(ctx, c.deps.Exceptions, "Coordinator", "executors", "Run", "fatal", err, map[string]interface{}{
				"user_id": userID,
			})
			res.Status, res.Err = RunFailed, err
		}
		res.Duration = c.now().Sub(started)
		log.WithFields(logrus.Fields{
			"status":   res.Status,
			"duration": res.Duration.String(),
		}).Info("user run finished")
	}()

	if minutes := c.deps.Config.RunTimeoutMinutes; minutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(minutes)*time.Minute)
		defer cancel()
	}

	c.run(ctx, log, &res)
	return res
}

func (c *Coordinator) run(ctx context.Context, log *logrus.Entry, res *RunResult) {
	cfg, err := c.deps.Settings.LoadTradingConfig(ctx, res.UserID)
	if errors.Is(err, repository.ErrSettingsNotFound) {
		log.WithError(err).Error("user has no bot configuration")
		res.Status, res.Err = RunAborted, err
		return
	}
	if err != nil {
		log.WithError(err).Error("failed to load trading config")
		controller.Capture(ctx, c.deps.Exceptions, "Coordinator", "executors", "LoadTradingConfig", "error", err, map[string]interface{}{
			"user_id": res.UserID,
		})
		res.Status, res.Err = RunAborted, err
		return
	}

	if !cfg.BotActive {
		log.Info("bot is not active for user")
		res.Status = RunInactive
		return
	}

	log = log.WithField("user_name", cfg.UserName)
	cfg = sanitizeFilters(log, cfg)
	rec := audit.NewRecorder(c.deps.Sink, res.UserID).WithClock(c.now)

	clients, err := c.deps.Clients(cfg)
	if err != nil {
		log.WithError(err).Error("failed to create brokerage clients")
		rec.Log(ctx, model.NoSymbol, model.StageFirstScreen, model.OperationError, err.Error())
		res.Status, res.Err = RunAborted, err
		return
	}

	log.WithFields(logrus.Fields{
		"symbols": cfg.Symbols,
		"sectors": cfg.Sectors,
		"paper":   cfg.Paper,
	}).Info("starting user run")

	res.Universe = c.deps.Screener.Screen(ctx, cfg, rec)
	if len(res.Universe) == 0 {
		log.Info("nothing to evaluate")
		res.Status = RunCompleted
		return
	}

	positions, err := clients.Broker.GetOpenPositions(ctx)
	if err != nil {
		log.WithError(err).Error("failed to read open positions")
		rec.Log(ctx, model.NoSymbol, model.StageIndicator, model.OperationError, fmt.Sprintf("failed to read open positions: %v", err))
		res.Status, res.Err = RunAborted, err
		return
	}
	held := make(map[string]bool, len(positions))
	for _, p := range positions {
		held[controller.NormalizeSymbol(p.Symbol)] = true
	}

	engine := strategy.NewStochasticMomentum(log, clients.Bars, rec, c.deps.Strategy).WithClock(c.now)
	res.Buys, res.Sells = engine.CheckSignals(ctx, res.Universe, held)

	log.WithFields(logrus.Fields{
		"universe": len(res.Universe),
		"buys":     len(res.Buys),
		"sells":    len(res.Sells),
	}).Info("signals checked")

	orders := controller.NewOrderController(log, clients.Broker, rec, cfg.PositionSize, c.deps.Orders)
	if c.deps.Exceptions != nil {
		orders.WithExceptions(c.deps.Exceptions)
	}
	res.BuyResults = orders.ExecuteBuyOrders(ctx, res.Buys)
	res.SellResults = orders.ExecuteSellOrders(ctx, res.Sells)
	res.Status = RunCompleted
}

// RunAll sweeps every active user sequentially. A sweep requested while
// another one is running is dropped.
func (c *Coordinator) RunAll(ctx context.Context) SweepResult {
	if !c.sweepLock.TryLock() {
		c.logger.Warn("sweep already in progress, skipping")
		return SweepResult{Skipped: true}
	}
	defer c.sweepLock.Unlock()

	ids, err := c.deps.Settings.ListActiveUserIDs(ctx)
	if err != nil {
		c.logger.WithError(err).Error("failed to list active users")
		controller.Capture(ctx, c.deps.Exceptions, "Coordinator", "executors", "RunAll", "error", err, nil)
		return SweepResult{Err: err}
	}

	c.logger.WithField("users", len(ids)).Info("starting sweep")

	out := SweepResult{Runs: make([]RunResult, 0, len(ids))}
	for _, id := range ids {
		if ctx.Err() != nil {
			c.logger.WithError(ctx.Err()).Warn("sweep interrupted")
			out.Err = ctx.Err()
			break
		}
		out.Runs = append(out.Runs, c.Run(ctx, id))
	}
	return out
}

// Toggle flips the user's active flag and returns the new value. Switching
// on starts a run in the background; the caller only gets the ack.
func (c *Coordinator) Toggle(ctx context.Context, userID uint) (bool, error) {
	setting, err := c.deps.Settings.GetByUserID(ctx, userID)
	if err != nil {
		return false, err
	}

	active := !setting.BotActive
	if err := c.deps.Settings.SetBotActive(ctx, userID, active, c.now()); err != nil {
		return setting.BotActive, fmt.Errorf("toggle bot for user %d: %w", userID, err)
	}

	c.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"active":  active,
	}).Info("bot toggled")

	if active {
		runCtx := context.WithoutCancel(ctx)
		c.Go(func() { c.Run(runCtx, userID) })
	}
	return active, nil
}

// Go runs f in the background. Wait blocks until it returns.
func (c *Coordinator) Go(f func()) {
	c.background.Add(1)
	c.goFn(func() {
		defer c.background.Done()
		f()
	})
}

// Wait blocks until everything started through Go, Toggle included, has
// finished.
func (c *Coordinator) Wait() {
	c.background.Wait()
}
