package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"stockbot/src/model"
	"stockbot/src/risk"
)

const ReasonZeroAmount = "computed order amount is zero"

// ExecuteBuyOrders processes buy signals in order. Buying power is read once;
// each submitted order draws it down and the first symbol that no longer fits
// ends buying for the run.
func (c *OrderController) ExecuteBuyOrders(ctx context.Context, buys []model.SignalRecord) []BuyResult {
	if len(buys) == 0 {
		return nil
	}

	account, err := c.broker.GetAccount(ctx)
	if err != nil {
		c.fail(ctx, model.NoSymbol, model.StageOrderStatus, "broker.GetAccount", err)
		return nil
	}

	amount := risk.PositionAmount(account.Equity, c.positionSize)
	remaining := account.BuyingPower

	c.logger.WithFields(logrus.Fields{
		"equity":        account.Equity.String(),
		"buying_power":  account.BuyingPower.String(),
		"position_size": c.positionSize,
		"amount":        amount.StringFixed(2),
		"signals":       len(buys),
	}).Info("starting buy execution")

	results := make([]BuyResult, 0, len(buys))
	for _, signal := range buys {
		if ctx.Err() != nil {
			c.logger.WithError(ctx.Err()).Warn("buy execution interrupted")
			break
		}

		res, halt := c.buy(ctx, NormalizeSymbol(signal.Symbol), amount, &remaining)
		results = append(results, res)
		if halt {
			c.logger.WithField("symbol", res.Symbol).Info("capital exhausted, remaining buys skipped")
			break
		}
	}
	return results
}

func (c *OrderController) buy(ctx context.Context, symbol string, amount decimal.Decimal, remaining *decimal.Decimal) (BuyResult, bool) {
	log := c.logger.WithField("symbol", symbol)
	res := BuyResult{Symbol: symbol}

	open, err := c.hasOpenOrder(ctx, symbol, model.OrderSideBuy)
	if err != nil {
		c.fail(ctx, symbol, model.StageOrderStatus, "broker.GetOpenOrders", err)
		res.Outcome, res.Err = OutcomeError, err
		return res, false
	}
	if open {
		log.Info("open buy order exists, skipping")
		c.recorder.Log(ctx, symbol, model.StageOrderStatus, model.OperationFailed, ReasonOpenBuyOrder)
		res.Outcome = OutcomeSkippedDuplicateOrder
		return res, false
	}

	held, err := c.hasOpenPosition(ctx, symbol)
	if err != nil {
		c.fail(ctx, symbol, model.StageOrderStatus, "broker.GetOpenPositions", err)
		res.Outcome, res.Err = OutcomeError, err
		return res, false
	}
	if held {
		log.Info("position already open, skipping")
		c.recorder.Log(ctx, symbol, model.StageOrderStatus, model.OperationFailed, ReasonPositionOpen)
		res.Outcome = OutcomeSkippedExistingPosition
		return res, false
	}

	if !amount.IsPositive() {
		log.Warn("order amount is zero, skipping remaining buys")
		c.recorder.Log(ctx, symbol, model.StageOrderStatus, model.OperationFailed, ReasonZeroAmount)
		res.Outcome = OutcomeSkippedInsufficientCapital
		return res, true
	}

	if !risk.CanAfford(*remaining, amount) {
		log.WithFields(logrus.Fields{
			"buying_power": remaining.StringFixed(2),
			"amount":       amount.StringFixed(2),
		}).Info("not enough buying power")
		c.recorder.Log(ctx, symbol, model.StageOrderStatus, model.OperationFailed, ReasonNoBuyingPower)
		res.Outcome = OutcomeSkippedInsufficientCapital
		return res, true
	}

	res.ClientOrderID = c.newKeyFn()
	res.Notional = amount

	if _, err := c.broker.SubmitMarketOrder(ctx, symbol, amount, model.OrderSideBuy, res.ClientOrderID); err != nil {
		if !c.acceptedDespite(ctx, log, res.ClientOrderID, err) {
			c.fail(ctx, symbol, model.StageOrderStatus, "broker.SubmitMarketOrder", err)
			res.Outcome, res.Err = OutcomeError, err
			return res, false
		}
	}

	*remaining = remaining.Sub(amount)
	log.WithFields(logrus.Fields{
		"client_order_id": res.ClientOrderID,
		"notional":        amount.StringFixed(2),
	}).Info("buy order submitted")
	c.recorder.Log(ctx, symbol, model.StageOrderStatus, model.OperationPassed, ReasonSubmitted)

	res.Outcome, res.Err = c.waitForFill(ctx, symbol, res.ClientOrderID)
	return res, false
}

// acceptedDespite looks the order up by its client order id after a failed
// submit. A lost response does not mean the venue never took the order.
func (c *OrderController) acceptedDespite(ctx context.Context, log *logrus.Entry, clientOrderID string, submitErr error) bool {
	order, err := c.broker.GetOrderByClientID(ctx, clientOrderID)
	if err != nil || order == nil {
		return false
	}
	log.WithError(submitErr).WithFields(logrus.Fields{
		"client_order_id": clientOrderID,
		"status":          order.Status,
	}).Warn("submit reported an error but the venue has the order")
	return true
}

// waitForFill polls the order until the venue reports a terminal state.
func (c *OrderController) waitForFill(ctx context.Context, symbol, clientOrderID string) (Outcome, error) {
	log := c.logger.WithFields(logrus.Fields{
		"symbol":          symbol,
		"client_order_id": clientOrderID,
	})
	maxWait := c.cfg.buyMaxWait()
	start := c.now()

	for polls := 1; ; polls++ {
		if err := c.sleep(ctx, c.cfg.pollInterval()); err != nil {
			c.fail(ctx, symbol, model.StageOrderConfirmation, "waitForFill", err)
			return OutcomeError, err
		}

		order, err := c.broker.GetOrderByClientID(ctx, clientOrderID)
		if err != nil {
			c.fail(ctx, symbol, model.StageOrderConfirmation, "broker.GetOrderByClientID", err)
			return OutcomeError, err
		}

		status := ""
		if order != nil {
			status = strings.ToLower(order.Status)
		}
		log.WithFields(logrus.Fields{"poll": polls, "status": status}).Debug("polled buy order")

		switch status {
		case model.OrderStatusFilled:
			log.Info("buy order filled")
			c.recorder.Log(ctx, symbol, model.StageOrderConfirmation, model.OperationPassed, ReasonFilled)
			return OutcomeFilled, nil
		case model.OrderStatusCanceled, model.OrderStatusRejected:
			log.WithField("status", status).Warn("buy order did not fill")
			c.recorder.Log(ctx, symbol, model.StageOrderConfirmation, model.OperationFailed, fmt.Sprintf("order %s", status))
			if status == model.OrderStatusCanceled {
				return OutcomeCanceled, nil
			}
			return OutcomeRejected, nil
		}

		if maxWait > 0 && c.now().Sub(start) >= maxWait {
			log.Warn("gave up waiting for buy order")
			c.recorder.Log(ctx, symbol, model.StageOrderConfirmation, model.OperationFailed, ReasonBuyWaitExhausted)
			return OutcomeTimeout, nil
		}
	}
}
