package controller

import (
	"context"

	"github.com/sirupsen/logrus"

	"stockbot/src/model"
)

// ExecuteSellOrders closes the whole position for each sell signal and waits,
// bounded by the sell timeout, for the position to disappear.
func (c *OrderController) ExecuteSellOrders(ctx context.Context, sells []model.SignalRecord) []SellResult {
	results := make([]SellResult, 0, len(sells))
	for _, signal := range sells {
		if ctx.Err() != nil {
			c.logger.WithError(ctx.Err()).Warn("sell execution interrupted")
			break
		}
		results = append(results, c.sell(ctx, NormalizeSymbol(signal.Symbol)))
	}
	return results
}

func (c *OrderController) sell(ctx context.Context, symbol string) SellResult {
	log := c.logger.WithField("symbol", symbol)
	res := SellResult{Symbol: symbol}

	held, err := c.hasOpenPosition(ctx, symbol)
	if err != nil {
		c.fail(ctx, symbol, model.StageOrderStatus, "broker.GetOpenPositions", err)
		res.Outcome, res.Err = OutcomeError, err
		return res
	}
	if !held {
		log.Info("no open position, skipping sell")
		c.recorder.Log(ctx, symbol, model.StageOrderStatus, model.OperationFailed, ReasonNoPosition)
		res.Outcome = OutcomeSkippedNoPosition
		return res
	}

	open, err := c.hasOpenOrder(ctx, symbol, model.OrderSideSell)
	if err != nil {
		c.fail(ctx, symbol, model.StageOrderStatus, "broker.GetOpenOrders", err)
		res.Outcome, res.Err = OutcomeError, err
		return res
	}
	if open {
		log.Info("open sell order exists, skipping")
		c.recorder.Log(ctx, symbol, model.StageOrderStatus, model.OperationFailed, ReasonOpenSellOrder)
		res.Outcome = OutcomeSkippedDuplicateOrder
		return res
	}

	res.ClientOrderID = c.newKeyFn()
	if _, err := c.broker.ClosePosition(ctx, symbol, res.ClientOrderID); err != nil {
		c.fail(ctx, symbol, model.StageOrderStatus, "broker.ClosePosition", err)
		res.Outcome, res.Err = OutcomeError, err
		return res
	}

	log.WithField("client_order_id", res.ClientOrderID).Info("close position submitted")
	c.recorder.Log(ctx, symbol, model.StageOrderStatus, model.OperationPassed, ReasonSubmitted)

	res.Outcome, res.Err = c.waitForClose(ctx, symbol)
	return res
}

// waitForClose polls open positions until symbol is gone or the sell timeout
// passes. A timeout is not an error; the next run sees the real state.
func (c *OrderController) waitForClose(ctx context.Context, symbol string) (Outcome, error) {
	log := c.logger.WithField("symbol", symbol)
	timeout := c.cfg.sellTimeout()
	start := c.now()

	for polls := 1; ; polls++ {
		if err := c.sleep(ctx, c.cfg.pollInterval()); err != nil {
			c.fail(ctx, symbol, model.StageOrderConfirmation, "waitForClose", err)
			return OutcomeError, err
		}

		held, err := c.hasOpenPosition(ctx, symbol)
		if err != nil {
			c.fail(ctx, symbol, model.StageOrderConfirmation, "broker.GetOpenPositions", err)
			return OutcomeError, err
		}
		if !held {
			log.WithField("poll", polls).Info("position closed")
			c.recorder.Log(ctx, symbol, model.StageOrderConfirmation, model.OperationPassed, ReasonFilled)
			return OutcomeFilled, nil
		}

		if elapsed := c.now().Sub(start); elapsed >= timeout {
			log.WithFields(logrus.Fields{
				"poll":    polls,
				"elapsed": elapsed.String(),
			}).Warn("position still open after sell timeout")
			c.recorder.Log(ctx, symbol, model.StageOrderConfirmation, model.OperationFailed, ReasonSellTimeout)
			return OutcomeTimeout, nil
		}
	}
}
