package executors

import (
	"time"

	"stockbot/src/controller"
	"stockbot/src/model"
)

type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunSkipped   RunStatus = "skipped" // another run held the user lock
	RunInactive  RunStatus = "inactive"
	RunAborted   RunStatus = "aborted"
	RunFailed    RunStatus = "failed"
)

type RunResult struct {
	UserID      uint
	Status      RunStatus
	Universe    []string
	Buys        []model.SignalRecord
	Sells       []model.SignalRecord
	BuyResults  []controller.BuyResult
	SellResults []controller.SellResult
	Duration    time.Duration
	Err         error
}

type SweepResult struct {
	Skipped bool
	Runs    []RunResult
	Err     error
}
