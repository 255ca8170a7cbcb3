package livefeed

import (
	"time"

	"github.com/NotCoffee418/p1_mini/pkg/sensors"
	"github.com/NotCoffee418/p1_mini/pkg/types"
)

// NewCollector creates a collector handing every committed reading to publish.
// publish may be nil.
func NewCollector(publish func(*types.MeterReading)) *Collector {
	return &Collector{
		staged:  make(map[string]float64),
		now:     func() string { return time.Now().UTC().Format(time.RFC3339) },
		publish: publish,
	}
}

// Sink returns the sink staging values for the sensor called name.
func (c *Collector) Sink(name string) sensors.Sink {
	return sensors.SinkFunc(func(value float64) {
		c.mu.Lock()
		c.staged[name] = value
		c.mu.Unlock()
	})
}

// Commit turns the staged values into the latest reading. Nothing happens when
// no value was staged since the previous commit.
func (c *Collector) Commit() {
	c.mu.Lock()
	if len(c.staged) == 0 {
		c.mu.Unlock()
		return
	}
	reading := &types.MeterReading{
		Timestamp: c.now(),
		Values:    c.staged,
	}
	c.staged = make(map[string]float64, len(reading.Values))
	c.latest = reading
	c.mu.Unlock()

	if c.publish != nil {
		c.publish(reading)
	}
}

// Discard drops the staged values of a telegram that was abandoned part way.
func (c *Collector) Discard() {
	c.mu.Lock()
	if len(c.staged) > 0 {
		c.staged = make(map[string]float64)
	}
	c.mu.Unlock()
}

// Latest returns the last committed reading, or nil before the first one.
func (c *Collector) Latest() *types.MeterReading {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}
