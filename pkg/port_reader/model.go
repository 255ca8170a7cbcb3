package port_reader

import (
	"time"

	"github.com/NotCoffee418/p1_mini/pkg/discardlog"
	"github.com/NotCoffee418/p1_mini/pkg/parser"
	"github.com/NotCoffee418/p1_mini/pkg/sensors"
	"github.com/NotCoffee418/p1_mini/pkg/telegram"
	"github.com/sirupsen/logrus"
)

// Transport is the byte level view of the serial link. None of the methods
// may block: ReadByte is only called while Buffered reports data.
type Transport interface {
	Buffered() int
	ReadByte() (byte, error)
	WriteByte(c byte) error
}

// Listener is notified of reader lifecycle events.
type Listener interface {
	Notify()
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func()

func (f ListenerFunc) Notify() { f() }

// State is the step Loop performs next.
type State int

const (
	StateIdentifyingMessage State = iota
	StateReadingMessage
	StateVerifyingCRC
	StateProcessingASCII
	StateProcessingBinary
	StateWaiting
	StateErrorRecovery
)

func (s State) String() string {
	switch s {
	case StateIdentifyingMessage:
		return "identifying message"
	case StateReadingMessage:
		return "reading message"
	case StateVerifyingCRC:
		return "verifying crc"
	case StateProcessingASCII:
		return "processing ascii"
	case StateProcessingBinary:
		return "processing binary"
	case StateWaiting:
		return "waiting"
	case StateErrorRecovery:
		return "error recovery"
	}
	return "unknown"
}

// DataFormat is the telegram encoding, known once the first byte arrived.
type DataFormat int

const (
	FormatUnknown DataFormat = iota
	FormatASCII
	FormatBinary
)

func (f DataFormat) String() string {
	switch f {
	case FormatASCII:
		return "ascii"
	case FormatBinary:
		return "binary"
	}
	return "unknown"
}

// Options configure a P1Reader. Zero values fall back to the defaults below.
type Options struct {
	BufferSize    int
	MinimumPeriod time.Duration
	// Echo every received byte back out, for a second device on the same port.
	SecondaryP1 bool

	MaxIdleTime         time.Duration
	MaxMessageTime      time.Duration
	RecoveryQuietPeriod time.Duration
	ProcessingSlice     time.Duration
	MaxDiscardPerLoop   int

	Logger *logrus.Logger
	Clock  func() time.Time
}

// Defaults for zero Options fields.
const (
	DefaultMaxIdleTime         = 60 * time.Second
	DefaultMaxMessageTime      = 10 * time.Second
	DefaultRecoveryQuietPeriod = 500 * time.Millisecond
	DefaultProcessingSlice     = 25 * time.Millisecond
	DefaultMaxDiscardPerLoop   = 200
)

// cycleTimes are the state entry times of the current cycle.
type cycleTimes struct {
	identifying   time.Time
	reading       time.Time
	verifying     time.Time
	processing    time.Time
	waiting       time.Time
	errorRecovery time.Time
	// last byte drained while recovering
	lastDiscard time.Time
}

// P1Reader decodes telegrams from a Transport. It is driven by calling Loop
// frequently from a single goroutine; every call does a bounded slice of work.
type P1Reader struct {
	opts      Options
	transport Transport
	log       *logrus.Entry
	now       func() time.Time

	state  State
	format DataFormat

	buffer   *telegram.Buffer
	registry *sensors.Registry
	ascii    *parser.ASCII
	binary   *parser.Binary
	discard  *discardlog.DiscardLog

	readyToReceive     []Listener
	updateReceived     []Listener
	communicationError []Listener

	times              cycleTimes
	numMessageLoops    int
	numProcessingLoops int
	displayTimeStats   bool
}
