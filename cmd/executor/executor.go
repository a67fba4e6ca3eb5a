package executor

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"stockbot/src/audit"
	"stockbot/src/auth"
	"stockbot/src/connectors"
	"stockbot/src/controller"
	"stockbot/src/database"
	"stockbot/src/executors"
	"stockbot/src/handler"
	"stockbot/src/repository"
	"stockbot/src/screener"
	"stockbot/src/server"
	"stockbot/src/strategy"
)

// Executor wires the coordinator to the databases and external APIs.
type Executor struct {
	Log         *logrus.Entry
	coordinator *executors.Coordinator
}

func (t *Executor) init() error {
	if t.Log == nil {
		t.Log = logrus.WithField("cmd", "executor")
	}

	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		t.Log.WithError(err).Error("Failed to connect to main database")
		return err
	}

	// Initialize read-only database
	if err := database.InitReadOnlyDB(); err != nil {
		t.Log.WithError(err).Error("Failed to connect to read-only database")
		return err
	}

	var sink audit.Sink = repository.NewBotOperationRepository()
	if GetConfig().DryAudit {
		t.Log.Warn("DRY_AUDIT set, bot operations are kept in memory only")
		sink = audit.NewMemorySink()
	}

	conn := connectors.GetConfig()
	t.coordinator = executors.NewCoordinator(t.Log, executors.Dependencies{
		Settings:   repository.NewUserSettingRepository(),
		Sink:       sink,
		Screener:   screener.New(t.Log, repository.NewTradeSymbolRepository(), connectors.NewFundamentalsClient(conn.YahooURL), screener.GetConfig()),
		Exceptions: repository.NewExceptionRepository(),
		Clients:    executors.AlpacaClients(conn),
		Strategy:   strategy.GetConfig(),
		Orders:     controller.GetConfig(),
		Config:     executors.GetConfig(),
	})
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// RunUser runs the bot once for userID in the foreground.
func (t *Executor) RunUser(userID uint) (executors.RunResult, error) {
	if err := t.init(); err != nil {
		return executors.RunResult{}, err
	}
	ctx, stop := signalContext()
	defer stop()

	return t.coordinator.Run(ctx, userID), nil
}

// RunAll sweeps every active user once in the foreground.
func (t *Executor) RunAll() (executors.SweepResult, error) {
	if err := t.init(); err != nil {
		return executors.SweepResult{}, err
	}
	ctx, stop := signalContext()
	defer stop()

	return t.coordinator.RunAll(ctx), nil
}

// Toggle flips the user's bot and waits for the run activation starts.
func (t *Executor) Toggle(userID uint) (bool, error) {
	if err := t.init(); err != nil {
		return false, err
	}
	ctx, stop := signalContext()
	defer stop()

	active, err := t.coordinator.Toggle(ctx, userID)
	t.coordinator.Wait()
	return active, err
}

// Schedule blocks, sweeping all users on the configured cron schedule.
func (t *Executor) Schedule() error {
	if err := t.init(); err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	scheduler, err := executors.NewScheduler(t.Log, t.coordinator, executors.GetConfig())
	if err != nil {
		t.Log.WithError(err).Error("Failed to create scheduler")
		return err
	}
	return scheduler.StartLoop(ctx)
}

// Serve exposes the operator API until interrupted.
func (t *Executor) Serve() error {
	if err := t.init(); err != nil {
		return err
	}

	router := server.NewRouter(server.Routes{
		Bot:            handler.NewBotHandler(t.coordinator),
		UpdateSettings: handler.DefaultUpdateSettingsHandler(),
		BotOperations:  handler.DefaultListBotOperationsHandler(),
		Exceptions:     handler.DefaultListExceptionsHandler(),
		APIToken:       auth.GetConfig().APIToken,
	})

	server.StartServer(server.GetConfig().Port, router, t.coordinator.Wait)
	return nil
}
