package modbusrelay

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotConfigured = fmt.Errorf("modbus relay: endpoint required")
	ErrNotConnected  = fmt.Errorf("modbus relay: not connected")
	ErrWriteFailed   = fmt.Errorf("modbus relay: write failed")
)

const DefaultQueueSize = 64

type Config struct {
	Endpoint string
	UnitId   uint8
	Timeout  time.Duration
	// Ping the endpoint host before connecting
	PingCheck bool
	QueueSize int
}

// RegisterWriter writes holding registers on a connected device.
type RegisterWriter interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
	Close() error
}

// Relay forwards published sensor values to holding registers. Sinks only
// queue writes, Run performs them on its own goroutine.
type Relay struct {
	cfg    Config
	log    *logrus.Entry
	queue  chan registerWrite
	writer RegisterWriter

	connect func(Config) (RegisterWriter, error)
	ping    func(host string, timeout time.Duration) error
}

type registerWrite struct {
	address uint16
	regs    [2]uint16
}
