package executors

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbot/src/audit"
	"stockbot/src/connectors"
	"stockbot/src/controller"
	"stockbot/src/model"
	"stockbot/src/repository"
	"stockbot/src/strategy"
)

type fakeSettings struct {
	mu      sync.Mutex
	configs map[uint]model.TradingConfig
	loadErr error
	listErr error
	toggled []bool
}

func newFakeSettings(cfgs ...model.TradingConfig) *fakeSettings {
	s := &fakeSettings{configs: map[uint]model.TradingConfig{}}
	for _, c := range cfgs {
		s.configs[c.UserID] = c
	}
	return s
}

func (s *fakeSettings) LoadTradingConfig(_ context.Context, userID uint) (model.TradingConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return model.TradingConfig{}, s.loadErr
	}
	cfg, ok := s.configs[userID]
	if !ok {
		return model.TradingConfig{}, repository.ErrSettingsNotFound
	}
	return cfg, nil
}

func (s *fakeSettings) GetByUserID(_ context.Context, userID uint) (*model.UserSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[userID]
	if !ok {
		return nil, repository.ErrSettingsNotFound
	}
	return &model.UserSetting{UserID: userID, BotActive: cfg.BotActive, PositionSize: cfg.PositionSize}, nil
}

func (s *fakeSettings) ListActiveUserIDs(context.Context) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var ids []uint
	for id := uint(1); id <= 10; id++ {
		if cfg, ok := s.configs[id]; ok && cfg.BotActive {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *fakeSettings) SetBotActive(_ context.Context, userID uint, active bool, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.configs[userID]
	cfg.BotActive = active
	s.configs[userID] = cfg
	s.toggled = append(s.toggled, active)
	return nil
}

// fakeScreener returns the configured symbols (or a fixed universe) and can
// block or panic on demand.
type fakeScreener struct {
	mu       sync.Mutex
	universe []string
	calls    []model.TradingConfig
	entered  chan struct{}
	release  chan struct{}
	panicMsg string
}

func (f *fakeScreener) Screen(ctx context.Context, cfg model.TradingConfig, rec *audit.Recorder) []string {
	f.mu.Lock()
	f.calls = append(f.calls, cfg)
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if len(cfg.Symbols) > 0 {
		for _, s := range cfg.Symbols {
			rec.Log(ctx, s, model.StageFirstScreen, model.OperationPassed, "User Selected Symbols")
		}
		return cfg.Symbols
	}
	return f.universe
}

func (f *fakeScreener) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeBroker struct {
	mu        sync.Mutex
	positions []model.BrokerPosition
	posErr    error
	submitted []string
}

func (b *fakeBroker) GetAccount(context.Context) (model.Account, error) {
	return model.Account{Equity: decimal.NewFromInt(10_000), BuyingPower: decimal.NewFromInt(5_000)}, nil
}

func (b *fakeBroker) GetOpenPositions(context.Context) ([]model.BrokerPosition, error) {
	return b.positions, b.posErr
}

func (b *fakeBroker) GetOpenOrders(context.Context, string, model.OrderSide) ([]model.BrokerOrder, error) {
	return nil, nil
}

func (b *fakeBroker) SubmitMarketOrder(_ context.Context, symbol string, _ decimal.Decimal, _ model.OrderSide, key string) (*model.BrokerOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitted = append(b.submitted, symbol)
	return &model.BrokerOrder{ClientOrderID: key, Status: model.OrderStatusNew}, nil
}

func (b *fakeBroker) GetOrderByClientID(_ context.Context, key string) (*model.BrokerOrder, error) {
	return &model.BrokerOrder{ClientOrderID: key, Status: model.OrderStatusFilled}, nil
}

func (b *fakeBroker) ClosePosition(context.Context, string, string) (*model.BrokerOrder, error) {
	return nil, errors.New("not expected")
}

// risingBars yields a weekly series whose last %K crosses above %D.
type risingBars struct{}

func (risingBars) GetBars(_ context.Context, symbol string, tf model.Timeframe, _, _ time.Time) ([]model.Bar, error) {
	first := time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)
	closes := []float64{50, 50, 50, 50, 50, 50, 50, 50, 50, 40, 50, 60}
	if tf == model.TimeframeDay {
		last := first.AddDate(0, 0, 7*(len(closes)-1))
		bars := make([]model.Bar, 3)
		for i := range bars {
			bars[i] = model.Bar{Symbol: symbol, Timestamp: last.AddDate(0, 0, i)}
		}
		return bars, nil
	}
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{
			Symbol:    symbol,
			Timestamp: first.AddDate(0, 0, 7*i),
			High:      decimal.NewFromInt(100),
			Low:       decimal.Zero,
			Close:     decimal.NewFromFloat(c),
		}
	}
	return bars, nil
}

type fakeExceptions struct {
	mu      sync.Mutex
	created []*model.Exception
}

func (f *fakeExceptions) Create(_ context.Context, exc *model.Exception) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, exc)
	return nil
}

type harness struct {
	coord      *Coordinator
	settings   *fakeSettings
	screener   *fakeScreener
	broker     *fakeBroker
	sink       *audit.MemorySink
	exceptions *fakeExceptions
	factoryN   int
}

func newHarness(t *testing.T, cfgs ...model.TradingConfig) *harness {
	t.Helper()
	log, _ := logrustest.NewNullLogger()
	h := &harness{
		settings:   newFakeSettings(cfgs...),
		screener:   &fakeScreener{},
		broker:     &fakeBroker{},
		sink:       audit.NewMemorySink(),
		exceptions: &fakeExceptions{},
	}
	h.coord = NewCoordinator(logrus.NewEntry(log), Dependencies{
		Settings:   h.settings,
		Sink:       h.sink,
		Screener:   h.screener,
		Exceptions: h.exceptions,
		Clients: func(cfg model.TradingConfig) (Clients, error) {
			h.factoryN++
			return Clients{Broker: h.broker, Bars: risingBars{}}, nil
		},
		Strategy: strategy.Config{KPeriod: 10, DPeriod: 3, BuyThreshold: 32, SellThreshold: 80, LookbackDays: 200},
		Orders:   controller.Config{PollIntervalMs: 1, SellTimeoutSeconds: 1},
	})
	h.coord.now = func() time.Time { return time.Date(2024, 4, 1, 14, 15, 0, 0, time.UTC) }
	return h
}

func connectorsConfig() connectors.Config {
	return connectors.Config{
		AlpacaPaperURL: "http://paper.invalid",
		AlpacaLiveURL:  "http://live.invalid",
		AlpacaDataURL:  "http://data.invalid",
	}
}

func activeUser(id uint, symbols ...string) model.TradingConfig {
	return model.TradingConfig{
		UserID:       id,
		UserName:     "trader",
		APIKey:       "key",
		APISecret:    "secret",
		PositionSize: 5,
		BotActive:    true,
		Paper:        true,
		Symbols:      symbols,
	}
}

func TestRun_FullPassSubmitsBuy(t *testing.T) {
	h := newHarness(t, activeUser(1, "XYZ"))

	res := h.coord.Run(context.Background(), 1)

	require.NoError(t, res.Err)
	assert.Equal(t, RunCompleted, res.Status)
	assert.Equal(t, []string{"XYZ"}, res.Universe)
	require.Len(t, res.Buys, 1)
	assert.Empty(t, res.Sells)
	require.Len(t, res.BuyResults, 1)
	assert.Equal(t, controller.OutcomeFilled, res.BuyResults[0].Outcome)
	assert.Equal(t, "500.00", res.BuyResults[0].Notional.StringFixed(2))
	assert.Equal(t, []string{"XYZ"}, h.broker.submitted)

	var stages []model.Stage
	for _, e := range h.sink.ForSymbol("XYZ") {
		assert.Equal(t, uint(1), e.UserID)
		stages = append(stages, e.Stage)
	}
	assert.Equal(t, []model.Stage{
		model.StageFirstScreen,
		model.StageIndicator,
		model.StageOrderStatus,
		model.StageOrderConfirmation,
	}, stages)
}

func TestRun_InactiveUser(t *testing.T) {
	cfg := activeUser(1, "XYZ")
	cfg.BotActive = false
	h := newHarness(t, cfg)

	res := h.coord.Run(context.Background(), 1)

	assert.Equal(t, RunInactive, res.Status)
	assert.Zero(t, h.factoryN)
	assert.Zero(t, h.screener.callCount())
	assert.Empty(t, h.sink.Entries())
}

func TestRun_MissingSettings(t *testing.T) {
	h := newHarness(t)

	res := h.coord.Run(context.Background(), 99)

	assert.Equal(t, RunAborted, res.Status)
	assert.ErrorIs(t, res.Err, repository.ErrSettingsNotFound)
	assert.Empty(t, h.exceptions.created, "missing configuration is expected, not an exception")
}

func TestRun_LoadErrorIsCaptured(t *testing.T) {
	h := newHarness(t, activeUser(1))
	h.settings.loadErr = errors.New("connection refused")

	res := h.coord.Run(context.Background(), 1)

	assert.Equal(t, RunAborted, res.Status)
	require.Len(t, h.exceptions.created, 1)
	assert.Equal(t, "LoadTradingConfig", h.exceptions.created[0].Method)
}

func TestRun_SanitizesFilters(t *testing.T) {
	cfg := activeUser(1, "brk.b", "AA PL", "", "TSLA", "DROP;TABLE", "tsla")
	cfg.Sectors = []string{"Technology", "Oil & Gas", "<script>"}
	h := newHarness(t, cfg)
	h.broker.positions = nil

	h.coord.Run(context.Background(), 1)

	require.Equal(t, 1, h.screener.callCount())
	got := h.screener.calls[0]
	assert.Equal(t, []string{"BRK.B", "TSLA"}, got.Symbols)
	assert.Equal(t, []string{"Technology", "Oil & Gas"}, got.Sectors)
}

func TestRun_PanicIsRecoveredAndLockReleased(t *testing.T) {
	h := newHarness(t, activeUser(1, "XYZ"))
	h.screener.panicMsg = "provider exploded"

	var res RunResult
	assert.NotPanics(t, func() {
		res = h.coord.Run(context.Background(), 1)
	})
	assert.Equal(t, RunFailed, res.Status)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "provider exploded")

	require.Len(t, h.exceptions.created, 1)
	assert.Equal(t, "fatal", h.exceptions.created[0].Level)
	assert.NotEmpty(t, h.exceptions.created[0].Stack)

	h.screener.panicMsg = ""
	assert.Equal(t, RunCompleted, h.coord.Run(context.Background(), 1).Status)
}

func TestRun_MutualExclusion(t *testing.T) {
	h := newHarness(t, activeUser(1, "XYZ"))
	h.screener.entered = make(chan struct{}, 1)
	h.screener.release = make(chan struct{})

	first := make(chan RunResult, 1)
	go func() { first <- h.coord.Run(context.Background(), 1) }()

	<-h.screener.entered
	second := h.coord.Run(context.Background(), 1)
	assert.Equal(t, RunSkipped, second.Status)

	close(h.screener.release)
	assert.Equal(t, RunCompleted, (<-first).Status)
	assert.Equal(t, 1, h.screener.callCount())

	third := h.coord.Run(context.Background(), 1)
	assert.Equal(t, RunCompleted, third.Status)
	assert.Equal(t, 2, h.screener.callCount())
}

func TestRun_OtherUsersAreNotBlocked(t *testing.T) {
	h := newHarness(t, activeUser(1, "XYZ"), activeUser(2, "ABC"))
	h.screener.entered = make(chan struct{}, 2)
	h.screener.release = make(chan struct{})

	done := make(chan RunResult, 2)
	go func() { done <- h.coord.Run(context.Background(), 1) }()
	<-h.screener.entered
	go func() { done <- h.coord.Run(context.Background(), 2) }()
	<-h.screener.entered

	close(h.screener.release)
	assert.Equal(t, RunCompleted, (<-done).Status)
	assert.Equal(t, RunCompleted, (<-done).Status)
}

func TestRun_PositionsErrorAborts(t *testing.T) {
	h := newHarness(t, activeUser(1, "XYZ"))
	h.broker.posErr = errors.New("503")

	res := h.coord.Run(context.Background(), 1)

	assert.Equal(t, RunAborted, res.Status)
	assert.Empty(t, h.broker.submitted)
	entries := h.sink.ForSymbol(model.NoSymbol)
	require.Len(t, entries, 1)
	assert.Equal(t, model.OperationError, entries[0].Status)
}

func TestRun_MissingCredentials(t *testing.T) {
	h := newHarness(t, activeUser(1, "XYZ"))
	h.coord.deps.Clients = AlpacaClients(connectorsConfig())
	h.settings.configs[1] = model.TradingConfig{UserID: 1, BotActive: true, PositionSize: 5}

	res := h.coord.Run(context.Background(), 1)

	assert.Equal(t, RunAborted, res.Status)
	assert.ErrorIs(t, res.Err, ErrMissingCredentials)
}

func TestRunAll_SequentialOverActiveUsers(t *testing.T) {
	inactive := activeUser(2, "ABC")
	inactive.BotActive = false
	h := newHarness(t, activeUser(1, "XYZ"), inactive, activeUser(3, "QQQ"))

	res := h.coord.RunAll(context.Background())

	require.NoError(t, res.Err)
	assert.False(t, res.Skipped)
	require.Len(t, res.Runs, 2)
	assert.Equal(t, uint(1), res.Runs[0].UserID)
	assert.Equal(t, uint(3), res.Runs[1].UserID)
	assert.Equal(t, []string{"XYZ", "QQQ"}, h.broker.submitted)
}

func TestRunAll_ContinuesAfterUserFailure(t *testing.T) {
	h := newHarness(t, activeUser(1, "XYZ"), activeUser(2, "ABC"))
	h.coord.deps.Clients = func(cfg model.TradingConfig) (Clients, error) {
		if cfg.UserID == 1 {
			return Clients{}, ErrMissingCredentials
		}
		return Clients{Broker: h.broker, Bars: risingBars{}}, nil
	}

	res := h.coord.RunAll(context.Background())

	require.Len(t, res.Runs, 2)
	assert.Equal(t, RunAborted, res.Runs[0].Status)
	assert.Equal(t, RunCompleted, res.Runs[1].Status)
	assert.Equal(t, []string{"ABC"}, h.broker.submitted)
}

func TestRunAll_DroppedWhileSweepRuns(t *testing.T) {
	h := newHarness(t, activeUser(1, "XYZ"))
	h.screener.entered = make(chan struct{}, 1)
	h.screener.release = make(chan struct{})

	first := make(chan SweepResult, 1)
	go func() { first <- h.coord.RunAll(context.Background()) }()
	<-h.screener.entered

	assert.True(t, h.coord.RunAll(context.Background()).Skipped)

	close(h.screener.release)
	assert.False(t, (<-first).Skipped)
}

func TestRunAll_ListError(t *testing.T) {
	h := newHarness(t)
	h.settings.listErr = errors.New("db down")

	res := h.coord.RunAll(context.Background())

	assert.Error(t, res.Err)
	assert.Len(t, h.exceptions.created, 1)
}

func TestToggle(t *testing.T) {
	cfg := activeUser(1, "XYZ")
	cfg.BotActive = false
	h := newHarness(t, cfg)

	active, err := h.coord.Toggle(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, active)

	h.coord.Wait()
	assert.Equal(t, 1, h.screener.callCount(), "activation triggers a run")
	assert.Equal(t, []string{"XYZ"}, h.broker.submitted)

	active, err = h.coord.Toggle(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, active)

	h.coord.Wait()
	assert.Equal(t, 1, h.screener.callCount(), "deactivation does not run")
	assert.Equal(t, []bool{true, false}, h.settings.toggled)
}

func TestToggle_UnknownUser(t *testing.T) {
	h := newHarness(t)

	_, err := h.coord.Toggle(context.Background(), 5)
	assert.ErrorIs(t, err, repository.ErrSettingsNotFound)
}

func TestGo_WaitBlocksUntilBackgroundRunsFinish(t *testing.T) {
	h := newHarness(t, activeUser(1, "XYZ"))

	release := make(chan struct{})
	h.coord.Go(func() {
		<-release
		h.coord.Run(context.Background(), 1)
	})

	waited := make(chan struct{})
	go func() {
		h.coord.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned while a run was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after the run finished")
	}
	assert.Equal(t, []string{"XYZ"}, h.broker.submitted)
}
