// P1 reader decodes the telegrams of the smart meter's P1 port and publishes
// the configured sensors over HTTP, websockets and optionally Modbus.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NotCoffee418/p1_mini/pkg/config"
	"github.com/NotCoffee418/p1_mini/pkg/livefeed"
	"github.com/NotCoffee418/p1_mini/pkg/logging"
	"github.com/NotCoffee418/p1_mini/pkg/modbusrelay"
	"github.com/NotCoffee418/p1_mini/pkg/obis"
	"github.com/NotCoffee418/p1_mini/pkg/port_reader"
	"github.com/NotCoffee418/p1_mini/pkg/sensors"
	"github.com/NotCoffee418/p1_mini/pkg/serialport"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := config.LoadReaderConfig(); err != nil {
		log.Fatalf("Failed to load p1 reader config: %v", err)
	}
	cfg := config.ActiveReaderConfig
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port, err := serialport.Open(serialport.Options{
		Device:   cfg.SerialDevice,
		Baudrate: cfg.Baudrate,
	}, logger.WithField("component", "serialport"))
	if err != nil {
		logger.Fatalf("Failed to open P1 port: %v", err)
	}
	defer port.Close()

	reader := port_reader.NewP1Reader(port, port_reader.Options{
		BufferSize:    cfg.BufferSize,
		MinimumPeriod: time.Duration(cfg.MinimumPeriodMs) * time.Millisecond,
		SecondaryP1:   cfg.SecondaryP1,
		Logger:        logger,
	})

	hub := livefeed.NewHub(logger.WithField("component", "livefeed"))
	collector := livefeed.NewCollector(hub.Publish)

	var relay *modbusrelay.Relay
	if cfg.ModbusRelay.Enabled {
		relay = modbusrelay.New(modbusrelay.Config{
			Endpoint:  cfg.ModbusRelay.Endpoint,
			UnitId:    cfg.ModbusRelay.UnitId,
			Timeout:   time.Duration(cfg.ModbusRelay.TimeoutMs) * time.Millisecond,
			PingCheck: cfg.ModbusRelay.PingCheck,
		}, logger.WithField("component", "modbusrelay"))
	}

	if err := wireSensors(reader, cfg, collector, relay); err != nil {
		logger.Fatalf("Failed to register sensors: %v", err)
	}
	wireListeners(reader, collector, logger.WithField("component", "p1_reader"))

	go hub.Run(ctx)
	if relay != nil {
		go relay.Run(ctx)
	}

	listener := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort)
	server := &http.Server{
		Addr:    listener,
		Handler: livefeed.NewHandler(collector, hub),
	}
	go func() {
		logger.Infof("Starting P1 Mini API on %s", listener)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server failed: %v", err)
		}
	}()

	interval := time.Duration(cfg.LoopIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Debugf("HTTP server shutdown: %v", err)
			}
			cancel()
			return
		case <-port.Done():
			logger.Errorf("P1 port stopped: %v", port.Err())
			return
		case <-ticker.C:
			reader.Loop()
		}
	}
}

// wireSensors registers every configured sensor with the live feed, fanned out
// to the Modbus registers that relay it.
func wireSensors(reader *port_reader.P1Reader, cfg *config.ReaderConfig, collector *livefeed.Collector, relay *modbusrelay.Relay) error {
	relayed := make(map[string][]config.RelayRegisterConfig)
	if relay != nil {
		for _, r := range cfg.ModbusRelay.Registers {
			relayed[r.Sensor] = append(relayed[r.Sensor], r)
		}
	}

	for _, s := range cfg.Sensors {
		code := obis.Parse(s.ObisCode)
		if !code.Valid() {
			return fmt.Errorf("sensor %q: not a valid OBIS code: '%s'", s.Name, s.ObisCode)
		}

		sinks := []sensors.Sink{collector.Sink(s.Name)}
		for _, r := range relayed[s.Name] {
			scale := r.Scale
			if scale == 0 {
				scale = 1
			}
			sinks = append(sinks, relay.Sink(r.Address, scale))
		}

		if err := reader.RegisterSensor(code, sensors.Fanout(sinks...)); err != nil {
			return fmt.Errorf("sensor %q: %w", s.Name, err)
		}
	}
	return nil
}

func wireListeners(reader *port_reader.P1Reader, collector *livefeed.Collector, log *logrus.Entry) {
	reader.OnReadyToReceive(port_reader.ListenerFunc(func() {
		log.Trace("Ready to receive")
	}))
	reader.OnUpdateReceived(port_reader.ListenerFunc(collector.Commit))
	reader.OnCommunicationError(port_reader.ListenerFunc(func() {
		log.Debug("Communication error, waiting for the link to settle")
		collector.Discard()
	}))
}
