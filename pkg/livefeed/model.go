package livefeed

import (
	"sync"

	"github.com/NotCoffee418/p1_mini/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Collector stages the values of the telegram being decoded and turns them
// into a MeterReading once the reader reports a completed update.
type Collector struct {
	mu      sync.RWMutex
	staged  map[string]float64
	latest  *types.MeterReading
	now     func() string
	publish func(*types.MeterReading)
}

// Hub keeps the connected websocket clients.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	readings chan *types.MeterReading
	log      *logrus.Entry
}

type client struct {
	conn *websocket.Conn
	// gorilla connections allow one concurrent writer
	writeMu sync.Mutex
}
