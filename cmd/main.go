package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"stockbot/cmd/executor"
	"stockbot/cmd/keys"
	"stockbot/cmd/symbols"
	"stockbot/src/database"
	"stockbot/src/repository"
	"stockbot/src/utils"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Stockbot CMD"
	app.Usage = "The stochastic momentum trading bot command line interface"
	app.Version = Version
	app.Before = func(_ *cli.Context) error {
		utils.SetupLogger()
		return nil
	}

	app.Commands = []cli.Command{
		runCMD,
		runAllCMD,
		toggleCMD,
		scheduleCMD,
		serveCMD,
		setKeysCMD,
		importSymbolsCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var userFlag = cli.UintFlag{
	Name:  "user, u",
	Usage: "user id",
}

var (
	runCMD = cli.Command{
		Name:        "run",
		Usage:       "run the bot once for one user",
		Action:      runAction,
		Flags:       []cli.Flag{userFlag},
		Description: `Screen, check signals and place orders for a single user`,
	}
	runAllCMD = cli.Command{
		Name:        "run-all",
		Usage:       "run the bot once for every active user",
		Action:      runAllAction,
		Flags:       []cli.Flag{},
		Description: `Sweep all users with an active bot, one after the other`,
	}
	toggleCMD = cli.Command{
		Name:        "toggle",
		Usage:       "flip a user's bot on or off",
		Action:      toggleAction,
		Flags:       []cli.Flag{userFlag},
		Description: `Activating the bot also starts a run`,
	}
	scheduleCMD = cli.Command{
		Name:        "schedule",
		Usage:       "run the daily sweep on RUN_SCHEDULE",
		Action:      scheduleAction,
		Flags:       []cli.Flag{},
		Description: `Blocks until interrupted`,
	}
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "start the HTTP API",
		Action:      serveAction,
		Flags:       []cli.Flag{},
		Description: `Serve the operator API on PORT`,
	}
	setKeysCMD = cli.Command{
		Name:   "set-keys",
		Usage:  "store Alpaca keys for a user",
		Action: setKeysAction,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "name, n", Usage: "user name, created when missing"},
			cli.StringFlag{Name: "key", Usage: "Alpaca API key", EnvVar: "ALPACA_API_KEY"},
			cli.StringFlag{Name: "secret", Usage: "Alpaca API secret", EnvVar: "ALPACA_API_SECRET"},
			cli.Float64Flag{Name: "position-size", Usage: "percent of equity per trade"},
			cli.BoolTFlag{Name: "paper", Usage: "trade on the paper account"},
		},
		Description: `Keys are encrypted with BROKER_CREDENTIALS_KEY before they are stored`,
	}
	importSymbolsCMD = cli.Command{
		Name:   "import-symbols",
		Usage:  "load the symbol catalog from a CSV file",
		Action: importSymbolsAction,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "file, f", Usage: "csv path, defaults to SYMBOLS_FILE"},
		},
		Description: `Upserts trade_symbols rows keyed by symbol`,
	}
)

func userID(c *cli.Context) (uint, error) {
	id := c.Uint("user")
	if id == 0 {
		return 0, cli.NewExitError("--user is required", 2)
	}
	return id, nil
}

func runAction(c *cli.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	logrus.WithField("user_id", id).Info("Starting run CMD")
	exec := &executor.Executor{Log: logrus.WithField("cmd", "run")}
	res, err := exec.RunUser(id)
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  res.UserID,
		"status":   res.Status,
		"universe": len(res.Universe),
		"buys":     len(res.Buys),
		"sells":    len(res.Sells),
		"duration": res.Duration.String(),
	}).Info("Run finished")
	return res.Err
}

func runAllAction(_ *cli.Context) error {
	logrus.Info("Starting run-all CMD")
	exec := &executor.Executor{Log: logrus.WithField("cmd", "run-all")}
	sweep, err := exec.RunAll()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	logrus.WithFields(logrus.Fields{
		"skipped": sweep.Skipped,
		"runs":    len(sweep.Runs),
	}).Info("Sweep finished")
	return sweep.Err
}

func toggleAction(c *cli.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	exec := &executor.Executor{Log: logrus.WithField("cmd", "toggle")}
	active, err := exec.Toggle(id)
	if err != nil {
		logrus.WithError(err).Error("Toggle failed")
		return err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    id,
		"bot_active": active,
	}).Info("Bot toggled")
	return nil
}

func scheduleAction(_ *cli.Context) error {
	logrus.Info("Starting schedule CMD")
	exec := &executor.Executor{Log: logrus.WithField("cmd", "schedule")}
	if err := exec.Schedule(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func serveAction(_ *cli.Context) error {
	logrus.Info("Starting serve CMD")
	exec := &executor.Executor{Log: logrus.WithField("cmd", "serve")}
	return exec.Serve()
}

func setKeysAction(c *cli.Context) error {
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to database")
		return err
	}

	in := keys.Input{
		UserName:  c.String("name"),
		APIKey:    c.String("key"),
		APISecret: c.String("secret"),
	}
	if c.IsSet("position-size") {
		size := c.Float64("position-size")
		in.PositionSize = &size
	}
	if c.IsSet("paper") {
		paper := c.BoolT("paper")
		in.Paper = &paper
	}

	sk := &keys.SetKeys{
		Log:      logrus.WithField("cmd", "set-keys"),
		Users:    repository.NewUserRepository(),
		Settings: repository.NewUserSettingRepository(),
		Config:   keys.GetConfig(),
	}
	setting, err := sk.Start(context.Background(), in)
	if err != nil {
		return err
	}

	fmt.Printf("user %d keys stored (paper=%t)\n", setting.UserID, setting.Paper)
	return nil
}

// importSymbolsAction refreshes trade_symbols, the catalog the screener reads.
func importSymbolsAction(c *cli.Context) error {
	logrus.Info("Starting import-symbols CMD")
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to database")
		return err
	}

	cfg := symbols.GetConfig()
	if f := c.String("file"); f != "" {
		cfg.File = f
	}

	imp := &symbols.SymbolImport{
		Log:    logrus.WithField("cmd", "import-symbols"),
		DB:     database.MainDB,
		Config: cfg,
	}
	if _, err := imp.Start(context.Background()); err != nil {
		logrus.WithError(err).Error("Symbol import failed")
		return err
	}
	return nil
}
