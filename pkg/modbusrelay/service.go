// Package modbusrelay writes selected meter values to a Modbus TCP device,
// for example an inverter doing zero export control.
package modbusrelay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/NotCoffee418/p1_mini/pkg/esmutils"
	"github.com/NotCoffee418/p1_mini/pkg/sensors"
	"github.com/sirupsen/logrus"
)

func New(cfg Config, log *logrus.Entry) *Relay {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Relay{
		cfg:     cfg,
		log:     log,
		queue:   make(chan registerWrite, cfg.QueueSize),
		connect: dialEndpoint,
		ping:    ping,
	}
}

// Sink returns a sink writing value*scale as a signed 32 bit integer to the
// two registers starting at address, high word first. Publishing never blocks.
func (r *Relay) Sink(address uint16, scale float64) sensors.Sink {
	return sensors.SinkFunc(func(value float64) {
		w := registerWrite{
			address: address,
			regs:    esmutils.Int32ToRegisters(esmutils.ScaleToInt32(value, scale)),
		}
		select {
		case r.queue <- w:
		default:
			r.log.Warnf("Write queue full, dropping value for register %d", address)
		}
	})
}

// Run performs queued writes until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	defer r.disconnect()
	for {
		select {
		case <-ctx.Done():
			return
		case w := <-r.queue:
			if err := r.write(w); err != nil {
				r.log.Warnf("Register %d not written: %v", w.address, err)
			}
		}
	}
}

func (r *Relay) write(w registerWrite) error {
	if r.writer == nil {
		if err := r.dial(); err != nil {
			return errors.Join(ErrNotConnected, err)
		}
	}

	if err := r.writer.WriteRegisters(r.cfg.UnitId, w.address, w.regs[:]); err != nil {
		// Reconnect on the next write
		r.disconnect()
		return errors.Join(ErrWriteFailed, err)
	}
	return nil
}

func (r *Relay) dial() error {
	if r.cfg.PingCheck {
		host, _, err := net.SplitHostPort(r.cfg.Endpoint)
		if err != nil {
			host = r.cfg.Endpoint
		}
		if err := r.ping(host, r.cfg.Timeout); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
	}

	writer, err := r.connect(r.cfg)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	r.log.Infof("Connected to modbus device %s", r.cfg.Endpoint)
	r.writer = writer
	return nil
}

func (r *Relay) disconnect() {
	if r.writer == nil {
		return
	}
	if err := r.writer.Close(); err != nil {
		r.log.Debugf("Closing modbus connection: %v", err)
	}
	r.writer = nil
}
