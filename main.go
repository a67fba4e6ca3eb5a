package main

import (
	"fmt"
	"os"
	"time"

	logger "github.com/sirupsen/logrus"

	"stockbot/cmd/executor"
	"stockbot/src/utils"
)

var (
	APP_NAME = os.Getenv("APP_NAME")
)

func main() {
	utils.SetupLogger()
	defer handlePanic()

	exec := &executor.Executor{Log: logger.WithField("app", APP_NAME)}
	if err := exec.Serve(); err != nil {
		logger.WithError(err).Fatal("Failed to start server")
	}
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
