package sensors

import (
	"errors"

	"github.com/NotCoffee418/p1_mini/pkg/obis"
	"github.com/sirupsen/logrus"
)

var (
	ErrDuplicateSensor = errors.New("sensor already registered for obis code")
	ErrInvalidCode     = errors.New("invalid obis code")
	ErrNilSink         = errors.New("sink is nil")
)

// Sink receives the decoded values of one OBIS code.
type Sink interface {
	Publish(value float64)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(value float64)

func (f SinkFunc) Publish(value float64) { f(value) }

// Registry routes decoded values to sinks by OBIS code.
// It is filled at startup and only read while telegrams are decoded.
type Registry struct {
	sinks map[obis.Code]Sink
	log   *logrus.Entry
}
