package controller

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"stockbot/src/audit"
	"stockbot/src/model"
)

// Broker is the brokerage surface order execution needs. Every call may fail
// transiently; a failure is scoped to the symbol being processed.
type Broker interface {
	GetAccount(ctx context.Context) (model.Account, error)
	GetOpenPositions(ctx context.Context) ([]model.BrokerPosition, error)
	GetOpenOrders(ctx context.Context, symbol string, side model.OrderSide) ([]model.BrokerOrder, error)
	SubmitMarketOrder(ctx context.Context, symbol string, notional decimal.Decimal, side model.OrderSide, clientOrderID string) (*model.BrokerOrder, error)
	GetOrderByClientID(ctx context.Context, clientOrderID string) (*model.BrokerOrder, error)
	ClosePosition(ctx context.Context, symbol, clientOrderID string) (*model.BrokerOrder, error)
}

// Outcome is the terminal state of one symbol's order flow.
type Outcome string

const (
	OutcomeFilled                     Outcome = "filled"
	OutcomeRejected                   Outcome = "rejected"
	OutcomeCanceled                   Outcome = "canceled"
	OutcomeSkippedDuplicateOrder      Outcome = "skipped_duplicate_order"
	OutcomeSkippedExistingPosition    Outcome = "skipped_existing_position"
	OutcomeSkippedInsufficientCapital Outcome = "skipped_insufficient_capital"
	OutcomeSkippedNoPosition          Outcome = "skipped_no_position"
	OutcomeTimeout                    Outcome = "timeout"
	OutcomeError                      Outcome = "error"
)

// Audit reasons shared by the buy and sell flows.
const (
	ReasonOpenBuyOrder     = "open buy order already exists, skipped"
	ReasonOpenSellOrder    = "open sell order already exists, skipped"
	ReasonPositionOpen     = "position already open, skipped"
	ReasonNoPosition       = "no open position, skipped"
	ReasonNoBuyingPower    = "insufficient buying power"
	ReasonSubmitted        = "order submitted"
	ReasonFilled           = "order filled"
	ReasonSellTimeout      = "timeout waiting for close"
	ReasonBuyWaitExhausted = "timeout waiting for fill"
)

type BuyResult struct {
	Symbol        string
	Outcome       Outcome
	ClientOrderID string
	Notional      decimal.Decimal
	Err           error
}

type SellResult struct {
	Symbol        string
	Outcome       Outcome
	ClientOrderID string
	Err           error
}

// OrderController turns one run's signals into brokerage orders for a single
// user and follows every order to a terminal state.
type OrderController struct {
	logger       *logrus.Entry
	broker       Broker
	recorder     *audit.Recorder
	exceptions   exceptionRepository
	positionSize float64
	cfg          Config

	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	newKeyFn func() string
}

func NewOrderController(
	logger *logrus.Entry,
	broker Broker,
	recorder *audit.Recorder,
	positionSize float64,
	cfg Config,
) *OrderController {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &OrderController{
		logger:       logger.WithField("component", "order_controller"),
		broker:       broker,
		recorder:     recorder,
		positionSize: positionSize,
		cfg:          cfg,
		now:          time.Now,
		sleep:        sleepCtx,
		newKeyFn:     uuid.NewString,
	}
}

// WithExceptions makes brokerage failures also land in the exceptions table.
func (c *OrderController) WithExceptions(repo exceptionRepository) *OrderController {
	c.exceptions = repo
	return c
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

func (c *OrderController) hasOpenPosition(ctx context.Context, symbol string) (bool, error) {
	positions, err := c.broker.GetOpenPositions(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range positions {
		if NormalizeSymbol(p.Symbol) == symbol {
			return true, nil
		}
	}
	return false, nil
}

func (c *OrderController) hasOpenOrder(ctx context.Context, symbol string, side model.OrderSide) (bool, error) {
	orders, err := c.broker.GetOpenOrders(ctx, symbol, side)
	if err != nil {
		return false, err
	}
	for _, o := range orders {
		if o.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

// fail audits a brokerage error for symbol and returns the error outcome.
func (c *OrderController) fail(ctx context.Context, symbol string, stage model.Stage, method string, err error) {
	c.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"method": method,
	}).WithError(err).Error("brokerage call failed")

	c.recorder.Log(ctx, symbol, stage, model.OperationError, err.Error())

	if c.exceptions != nil {
		Capture(ctx, c.exceptions, "OrderController", "controller", method, "error", err, map[string]interface{}{
			"user_id": c.recorder.UserID(),
			"symbol":  symbol,
		})
	}
}
