// Meter monitor prints every reading a running p1_reader broadcasts.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/NotCoffee418/p1_mini/pkg/config"
	"github.com/NotCoffee418/p1_mini/pkg/interpreter"
	"github.com/NotCoffee418/p1_mini/pkg/logging"
	"github.com/NotCoffee418/p1_mini/pkg/types"
)

func main() {
	if err := config.LoadMonitorConfig(); err != nil {
		log.Fatalf("Failed to load meter monitor config: %v", err)
	}
	cfg := config.ActiveMonitorConfig

	// Readings go to stdout, logs to stderr
	logger := logging.Setup(cfg.LogLevel, "text")
	logger.SetOutput(os.Stderr)

	// P1_READER_HOST overrides the configured host
	host := os.Getenv("P1_READER_HOST")
	if host == "" {
		host = cfg.ReaderHost
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := interpreter.StartListener(ctx, host, logger.WithField("component", "interpreter"), handleMeterReading)
	if err != nil {
		logger.Fatalf("Lost the reader at %s: %v", host, err)
	}
}

func handleMeterReading(reading *types.MeterReading) {
	fmt.Println(string(reading.ToJsonBytes()))
}
