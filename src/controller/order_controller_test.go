package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbot/src/audit"
	"stockbot/src/model"
)

type submission struct {
	symbol        string
	notional      decimal.Decimal
	side          model.OrderSide
	clientOrderID string
}

type fakeBroker struct {
	mu sync.Mutex

	account    model.Account
	accountErr error

	positions    map[string]bool
	positionsErr error
	// closeAfterPolls removes a position after that many position reads
	// following ClosePosition; -1 keeps it forever.
	closeAfterPolls int
	closing         map[string]int

	openOrders map[string][]model.BrokerOrder // key: symbol/side
	ordersErr  error

	submitErr error
	// submitAccepted keeps the order even though submitErr is returned,
	// like a venue whose response got lost.
	submitAccepted bool
	submitted      []submission
	closed    []string

	// statuses is the sequence returned by GetOrderByClientID.
	statuses []string
	polls    int
	pollErr  error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		account: model.Account{
			Equity:      decimal.NewFromInt(10_000),
			BuyingPower: decimal.NewFromInt(5_000),
		},
		positions:       map[string]bool{},
		openOrders:      map[string][]model.BrokerOrder{},
		closing:         map[string]int{},
		closeAfterPolls: 1,
		statuses:        []string{model.OrderStatusFilled},
	}
}

func (b *fakeBroker) GetAccount(context.Context) (model.Account, error) {
	return b.account, b.accountErr
}

func (b *fakeBroker) GetOpenPositions(context.Context) ([]model.BrokerPosition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.positionsErr != nil {
		return nil, b.positionsErr
	}
	for symbol, n := range b.closing {
		if b.closeAfterPolls >= 0 && n >= b.closeAfterPolls {
			delete(b.positions, symbol)
			delete(b.closing, symbol)
			continue
		}
		b.closing[symbol] = n + 1
	}
	var out []model.BrokerPosition
	for symbol := range b.positions {
		out = append(out, model.BrokerPosition{Symbol: symbol, Qty: decimal.NewFromInt(1)})
	}
	return out, nil
}

func (b *fakeBroker) GetOpenOrders(_ context.Context, symbol string, side model.OrderSide) ([]model.BrokerOrder, error) {
	if b.ordersErr != nil {
		return nil, b.ordersErr
	}
	return b.openOrders[symbol+"/"+string(side)], nil
}

func (b *fakeBroker) SubmitMarketOrder(_ context.Context, symbol string, notional decimal.Decimal, side model.OrderSide, key string) (*model.BrokerOrder, error) {
	if b.submitErr != nil {
		if b.submitAccepted {
			b.submitted = append(b.submitted, submission{symbol, notional, side, key})
		}
		return nil, b.submitErr
	}
	b.submitted = append(b.submitted, submission{symbol, notional, side, key})
	return &model.BrokerOrder{ClientOrderID: key, Symbol: symbol, Side: side, Status: model.OrderStatusNew}, nil
}

func (b *fakeBroker) GetOrderByClientID(_ context.Context, key string) (*model.BrokerOrder, error) {
	if b.pollErr != nil {
		return nil, b.pollErr
	}
	if !b.knows(key) {
		return nil, errors.New("order not found")
	}
	i := b.polls
	b.polls++
	if i >= len(b.statuses) {
		i = len(b.statuses) - 1
	}
	return &model.BrokerOrder{ClientOrderID: key, Status: b.statuses[i]}, nil
}

func (b *fakeBroker) knows(key string) bool {
	for _, s := range b.submitted {
		if s.clientOrderID == key {
			return true
		}
	}
	return false
}

func (b *fakeBroker) ClosePosition(_ context.Context, symbol, key string) (*model.BrokerOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = append(b.closed, symbol)
	b.closing[symbol] = 0
	return &model.BrokerOrder{ClientOrderID: key, Symbol: symbol, Side: model.OrderSideSell, Status: model.OrderStatusNew}, nil
}

type fakeClock struct {
	t     time.Time
	slept []time.Duration
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.slept = append(c.slept, d)
	c.t = c.t.Add(d)
	return nil
}

type fakeExceptions struct{ created []*model.Exception }

func (f *fakeExceptions) Create(_ context.Context, exc *model.Exception) error {
	f.created = append(f.created, exc)
	return nil
}

func newTestController(t *testing.T, broker Broker, positionSize float64) (*OrderController, *audit.MemorySink, *fakeClock) {
	t.Helper()
	log, _ := logrustest.NewNullLogger()
	sink := audit.NewMemorySink()
	clock := &fakeClock{t: time.Date(2024, 3, 4, 22, 0, 0, 0, time.UTC)}

	c := NewOrderController(logrus.NewEntry(log), broker, audit.NewRecorder(sink, 42), positionSize, Config{
		PollIntervalMs:     2000,
		SellTimeoutSeconds: 120,
	})
	c.now = clock.now
	c.sleep = clock.sleep
	n := 0
	c.newKeyFn = func() string {
		n++
		return fmt.Sprintf("key-%d", n)
	}
	return c, sink, clock
}

func signals(symbols ...string) []model.SignalRecord {
	out := make([]model.SignalRecord, len(symbols))
	for i, s := range symbols {
		out[i] = model.SignalRecord{Symbol: s}
	}
	return out
}

type trail struct {
	Stage  model.Stage
	Status model.OperationStatus
	Reason string
}

func trailOf(entries []model.BotOperation) []trail {
	out := make([]trail, len(entries))
	for i, e := range entries {
		out[i] = trail{e.Stage, e.Status, e.Reason}
	}
	return out
}

func TestExecuteBuyOrders_CleanBuy(t *testing.T) {
	broker := newFakeBroker()
	broker.statuses = []string{model.OrderStatusNew, model.OrderStatusFilled}

	c, sink, clock := newTestController(t, broker, 5)

	results := c.ExecuteBuyOrders(context.Background(), signals("XYZ"))

	require.Len(t, results, 1)
	assert.Equal(t, OutcomeFilled, results[0].Outcome)
	assert.NoError(t, results[0].Err)

	require.Len(t, broker.submitted, 1)
	sub := broker.submitted[0]
	assert.Equal(t, "XYZ", sub.symbol)
	assert.Equal(t, "500.00", sub.notional.StringFixed(2))
	assert.Equal(t, model.OrderSideBuy, sub.side)
	assert.Equal(t, "key-1", sub.clientOrderID)

	assert.Equal(t, 2, broker.polls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, clock.slept)

	assert.Equal(t, []trail{
		{model.StageOrderStatus, model.OperationPassed, ReasonSubmitted},
		{model.StageOrderConfirmation, model.OperationPassed, ReasonFilled},
	}, trailOf(sink.ForSymbol("XYZ")))
}

func TestExecuteBuyOrders_SkipsOpenBuyOrder(t *testing.T) {
	broker := newFakeBroker()
	broker.openOrders["AAA/buy"] = []model.BrokerOrder{{Symbol: "AAA", Side: model.OrderSideBuy, Status: model.OrderStatusAccepted}}
	broker.openOrders["BBB/buy"] = []model.BrokerOrder{{Symbol: "BBB", Side: model.OrderSideBuy, Status: model.OrderStatusNew}}

	c, sink, _ := newTestController(t, broker, 5)

	results := c.ExecuteBuyOrders(context.Background(), signals("AAA", "BBB"))

	assert.Empty(t, broker.submitted)
	require.Len(t, results, 2)
	for _, symbol := range []string{"AAA", "BBB"} {
		entries := sink.ForSymbol(symbol)
		require.Len(t, entries, 1)
		assert.Equal(t, model.OperationFailed, entries[0].Status)
		assert.Equal(t, ReasonOpenBuyOrder, entries[0].Reason)
	}
	assert.Equal(t, OutcomeSkippedDuplicateOrder, results[0].Outcome)
}

func TestExecuteBuyOrders_SkipsExistingPosition(t *testing.T) {
	broker := newFakeBroker()
	broker.positions["AAA"] = true

	c, sink, _ := newTestController(t, broker, 5)

	results := c.ExecuteBuyOrders(context.Background(), signals("AAA"))

	assert.Empty(t, broker.submitted)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeSkippedExistingPosition, results[0].Outcome)
	assert.Equal(t, []trail{{model.StageOrderStatus, model.OperationFailed, ReasonPositionOpen}}, trailOf(sink.Entries()))
}

func TestExecuteBuyOrders_CapitalMonotonicity(t *testing.T) {
	broker := newFakeBroker()
	// $500 per order against $1,200 of buying power: the third symbol halts.
	broker.account.BuyingPower = decimal.NewFromInt(1_200)

	c, sink, _ := newTestController(t, broker, 5)

	results := c.ExecuteBuyOrders(context.Background(), signals("A", "B", "C", "D", "E"))

	require.Len(t, broker.submitted, 2)
	assert.Equal(t, "A", broker.submitted[0].symbol)
	assert.Equal(t, "B", broker.submitted[1].symbol)

	require.Len(t, results, 3)
	assert.Equal(t, OutcomeSkippedInsufficientCapital, results[2].Outcome)

	assert.Equal(t, []trail{{model.StageOrderStatus, model.OperationFailed, ReasonNoBuyingPower}}, trailOf(sink.ForSymbol("C")))
	assert.Empty(t, sink.ForSymbol("D"))
	assert.Empty(t, sink.ForSymbol("E"))
}

func TestExecuteBuyOrders_CanceledAndRejected(t *testing.T) {
	for _, status := range []string{model.OrderStatusCanceled, model.OrderStatusRejected} {
		t.Run(status, func(t *testing.T) {
			broker := newFakeBroker()
			broker.statuses = []string{model.OrderStatusPendingNew, status}

			c, sink, _ := newTestController(t, broker, 5)
			results := c.ExecuteBuyOrders(context.Background(), signals("XYZ"))

			require.Len(t, results, 1)
			assert.Equal(t, Outcome(status), results[0].Outcome)
			entries := sink.ForSymbol("XYZ")
			require.Len(t, entries, 2)
			assert.Equal(t, model.OperationFailed, entries[1].Status)
			assert.Equal(t, "order "+status, entries[1].Reason)
		})
	}
}

func TestExecuteBuyOrders_SubmitErrorContinues(t *testing.T) {
	broker := newFakeBroker()
	broker.submitErr = errors.New("403 forbidden")

	c, sink, _ := newTestController(t, broker, 5)
	exceptions := &fakeExceptions{}
	c.WithExceptions(exceptions)

	results := c.ExecuteBuyOrders(context.Background(), signals("AAA", "BBB"))

	require.Len(t, results, 2)
	for i, symbol := range []string{"AAA", "BBB"} {
		assert.Equal(t, OutcomeError, results[i].Outcome)
		entries := sink.ForSymbol(symbol)
		require.Len(t, entries, 1)
		assert.Equal(t, model.OperationError, entries[0].Status)
		assert.Equal(t, "403 forbidden", entries[0].Reason)
	}
	assert.Len(t, exceptions.created, 2)
	assert.Equal(t, "broker.SubmitMarketOrder", exceptions.created[0].Method)
}

func TestExecuteBuyOrders_SubmitErrorButOrderAccepted(t *testing.T) {
	broker := newFakeBroker()
	broker.submitErr = errors.New("HTTP 504: gateway timeout")
	broker.submitAccepted = true
	broker.statuses = []string{model.OrderStatusFilled}
	broker.account.BuyingPower = decimal.NewFromInt(700)

	c, sink, _ := newTestController(t, broker, 5)
	exceptions := &fakeExceptions{}
	c.WithExceptions(exceptions)

	results := c.ExecuteBuyOrders(context.Background(), signals("XYZ", "ABC"))

	require.Len(t, results, 2)
	assert.Equal(t, OutcomeFilled, results[0].Outcome)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "key-1", results[0].ClientOrderID)
	assert.Empty(t, exceptions.created)

	assert.Equal(t, []trail{
		{model.StageOrderStatus, model.OperationPassed, ReasonSubmitted},
		{model.StageOrderConfirmation, model.OperationPassed, ReasonFilled},
	}, trailOf(sink.ForSymbol("XYZ")))

	// the accepted order drew down buying power: $200 left, $500 needed
	assert.Equal(t, OutcomeSkippedInsufficientCapital, results[1].Outcome)
}

func TestExecuteBuyOrders_AccountError(t *testing.T) {
	broker := newFakeBroker()
	broker.accountErr = errors.New("unauthorized")

	c, sink, _ := newTestController(t, broker, 5)

	assert.Empty(t, c.ExecuteBuyOrders(context.Background(), signals("AAA")))
	assert.Empty(t, broker.submitted)

	entries := sink.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, model.NoSymbol, entries[0].StockSymbol)
	assert.Equal(t, model.OperationError, entries[0].Status)
}

func TestExecuteBuyOrders_MaxWait(t *testing.T) {
	broker := newFakeBroker()
	broker.statuses = []string{model.OrderStatusNew}

	c, sink, clock := newTestController(t, broker, 5)
	c.cfg.BuyMaxWaitSeconds = 10

	results := c.ExecuteBuyOrders(context.Background(), signals("XYZ"))

	require.Len(t, results, 1)
	assert.Equal(t, OutcomeTimeout, results[0].Outcome)
	assert.Len(t, clock.slept, 5)
	entries := sink.ForSymbol("XYZ")
	assert.Equal(t, ReasonBuyWaitExhausted, entries[len(entries)-1].Reason)
}

func TestExecuteBuyOrders_CancelledContextStopsPolling(t *testing.T) {
	broker := newFakeBroker()
	broker.statuses = []string{model.OrderStatusNew}

	c, sink, _ := newTestController(t, broker, 5)
	ctx, cancel := context.WithCancel(context.Background())
	polls := 0
	c.sleep = func(ctx context.Context, d time.Duration) error {
		polls++
		if polls == 3 {
			cancel()
		}
		return ctx.Err()
	}

	results := c.ExecuteBuyOrders(ctx, signals("XYZ", "ABC"))

	require.Len(t, results, 1)
	assert.Equal(t, OutcomeError, results[0].Outcome)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.Empty(t, sink.ForSymbol("ABC"))
}

func TestExecuteSellOrders_ClosesPosition(t *testing.T) {
	broker := newFakeBroker()
	broker.positions["XYZ"] = true
	broker.closeAfterPolls = 2

	c, sink, clock := newTestController(t, broker, 5)

	results := c.ExecuteSellOrders(context.Background(), signals("XYZ"))

	require.Len(t, results, 1)
	assert.Equal(t, OutcomeFilled, results[0].Outcome)
	assert.Equal(t, []string{"XYZ"}, broker.closed)
	assert.Len(t, clock.slept, 3)
	assert.Equal(t, []trail{
		{model.StageOrderStatus, model.OperationPassed, ReasonSubmitted},
		{model.StageOrderConfirmation, model.OperationPassed, ReasonFilled},
	}, trailOf(sink.ForSymbol("XYZ")))
}

func TestExecuteSellOrders_Timeout(t *testing.T) {
	broker := newFakeBroker()
	broker.positions["XYZ"] = true
	broker.closeAfterPolls = -1

	c, sink, clock := newTestController(t, broker, 5)

	results := c.ExecuteSellOrders(context.Background(), signals("XYZ"))

	require.Len(t, results, 1)
	assert.Equal(t, OutcomeTimeout, results[0].Outcome)
	assert.NoError(t, results[0].Err)
	assert.Len(t, clock.slept, 60)

	var confirmations []model.BotOperation
	for _, e := range sink.ForSymbol("XYZ") {
		if e.Stage == model.StageOrderConfirmation {
			confirmations = append(confirmations, e)
		}
	}
	require.Len(t, confirmations, 1)
	assert.Equal(t, model.OperationFailed, confirmations[0].Status)
	assert.Contains(t, confirmations[0].Reason, "timeout")
}

func TestExecuteSellOrders_Skips(t *testing.T) {
	broker := newFakeBroker()
	broker.positions["HELD"] = true
	broker.openOrders["HELD/sell"] = []model.BrokerOrder{{Symbol: "HELD", Side: model.OrderSideSell, Status: model.OrderStatusNew}}

	c, sink, _ := newTestController(t, broker, 5)

	results := c.ExecuteSellOrders(context.Background(), signals("GONE", "HELD"))

	require.Len(t, results, 2)
	assert.Equal(t, OutcomeSkippedNoPosition, results[0].Outcome)
	assert.Equal(t, OutcomeSkippedDuplicateOrder, results[1].Outcome)
	assert.Empty(t, broker.closed)
	assert.Equal(t, ReasonNoPosition, sink.ForSymbol("GONE")[0].Reason)
	assert.Equal(t, ReasonOpenSellOrder, sink.ForSymbol("HELD")[0].Reason)
}

func TestExecuteSellOrders_PositionsErrorIsScoped(t *testing.T) {
	broker := newFakeBroker()
	broker.positionsErr = errors.New("gateway timeout")

	c, sink, _ := newTestController(t, broker, 5)

	results := c.ExecuteSellOrders(context.Background(), signals("AAA", "BBB"))

	require.Len(t, results, 2)
	assert.Equal(t, OutcomeError, results[0].Outcome)
	assert.Equal(t, OutcomeError, results[1].Outcome)
	assert.Len(t, sink.Entries(), 2)
}
