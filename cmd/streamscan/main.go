package main

import (
	"os"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/praetorian-inc/streamscan/pkg/logger"
)

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(logger.Debugf)); err != nil {
		logger.Warnf("set GOMAXPROCS: %v", err)
	}

	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
