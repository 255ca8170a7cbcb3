// Package sensors maps OBIS codes to the consumers of their values.
package sensors

import (
	"fmt"

	"github.com/NotCoffee418/p1_mini/pkg/obis"
	"github.com/sirupsen/logrus"
)

func NewRegistry(log *logrus.Entry) *Registry {
	return &Registry{
		sinks: make(map[obis.Code]Sink),
		log:   log,
	}
}

// Register binds sink to code. A code can only be registered once; combine
// several consumers with Fanout.
func (r *Registry) Register(code obis.Code, sink Sink) error {
	if !code.Valid() {
		return ErrInvalidCode
	}
	if sink == nil {
		return ErrNilSink
	}
	if _, exists := r.sinks[code]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSensor, code)
	}
	r.sinks[code] = sink
	return nil
}

// Dispatch publishes value to the sink of code. Meters report plenty of codes
// nobody listens to, so a missing sink is only logged at debug level.
// Reports whether a sink received the value.
func (r *Registry) Dispatch(code obis.Code, value float64) bool {
	sink, ok := r.sinks[code]
	if !ok {
		r.log.Debugf("No sensor matching: %s (0x%x)", code, uint32(code))
		return false
	}
	sink.Publish(value)
	return true
}

func (r *Registry) Len() int {
	return len(r.sinks)
}

// Fanout publishes every value to all sinks in order.
func Fanout(sinks ...Sink) Sink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return SinkFunc(func(value float64) {
		for _, s := range sinks {
			s.Publish(value)
		}
	})
}
