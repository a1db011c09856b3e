package main

import (
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradesim/cmd/serve"
	"tradesim/src/utils"
)

func main() {
	utils.SetupLogger(utils.GetLogConfig())
	defer handlePanic()

	s := &serve.Serve{}
	if err := s.Start(); err != nil {
		logger.WithError(err).Fatal("tradesim stopped with error")
	}
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error("tradesim panic")
		//nolint
		time.Sleep(time.Second * 5)
	}
}
