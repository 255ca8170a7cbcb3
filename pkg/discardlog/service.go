// Package discardlog collects bytes thrown away while resynchronising with the
// meter and writes them to the log as hex, a line at a time.
package discardlog

import (
	"encoding/hex"

	"github.com/sirupsen/logrus"
)

// DefaultSize is the number of raw bytes per log line.
const DefaultSize = 32

type DiscardLog struct {
	log  *logrus.Entry
	size int
	hex  []byte
}

func New(log *logrus.Entry, size int) *DiscardLog {
	if size <= 0 {
		size = DefaultSize
	}
	return &DiscardLog{
		log:  log,
		size: size,
		hex:  make([]byte, 0, size*2),
	}
}

// Add appends one byte and flushes when the line is full.
func (d *DiscardLog) Add(b byte) {
	var pair [2]byte
	hex.Encode(pair[:], []byte{b})
	d.hex = append(d.hex, pair[:]...)
	if len(d.hex) >= d.size*2 {
		d.Flush()
	}
}

// Flush writes any pending bytes as a warning and empties the log.
func (d *DiscardLog) Flush() {
	if len(d.hex) == 0 {
		return
	}
	d.log.Warnf("Discarding: %s", d.hex)
	d.hex = d.hex[:0]
}

// Pending is the number of raw bytes not flushed yet.
func (d *DiscardLog) Pending() int {
	return len(d.hex) / 2
}
