package port_reader

import (
	"time"

	"github.com/NotCoffee418/p1_mini/pkg/discardlog"
	"github.com/NotCoffee418/p1_mini/pkg/obis"
	"github.com/NotCoffee418/p1_mini/pkg/parser"
	"github.com/NotCoffee418/p1_mini/pkg/sensors"
	"github.com/NotCoffee418/p1_mini/pkg/telegram"
	"github.com/sirupsen/logrus"
)

const (
	asciiStart  = '/'
	binaryFlag  = 0x7e
	asciiCRCEnd = '!'

	// HDLC frame format type 3: upper three bits of the second byte.
	binaryFrameTypeMask = 0xe0
	binaryFrameType     = 0xa0
	// The checksum can not start inside the flag and frame format bytes.
	minBinaryCRCPosition = 3
)

// Initialize a new P1Reader on transport. The reader starts in error recovery
// so whatever the link produced before we started is drained first.
func NewP1Reader(transport Transport, opts Options) *P1Reader {
	opts = withDefaults(opts)

	log := opts.Logger.WithField("component", "p1_reader")
	p := &P1Reader{
		opts:      opts,
		transport: transport,
		log:       log,
		now:       opts.Clock,
		state:     StateErrorRecovery,
		format:    FormatUnknown,
		buffer:    telegram.NewBuffer(opts.BufferSize),
		registry:  sensors.NewRegistry(opts.Logger.WithField("component", "sensors")),
		discard:   discardlog.New(log, discardlog.DefaultSize),
	}
	p.ascii = parser.NewASCII(p.buffer, p.registry, log)
	p.binary = parser.NewBinary(p.buffer, p.registry, log)

	start := p.now()
	p.times.errorRecovery = start
	p.times.lastDiscard = start
	return p
}

func withDefaults(opts Options) Options {
	if opts.BufferSize <= 0 {
		opts.BufferSize = telegram.DefaultCapacity
	}
	if opts.MaxIdleTime <= 0 {
		opts.MaxIdleTime = DefaultMaxIdleTime
	}
	if opts.MaxMessageTime <= 0 {
		opts.MaxMessageTime = DefaultMaxMessageTime
	}
	if opts.RecoveryQuietPeriod <= 0 {
		opts.RecoveryQuietPeriod = DefaultRecoveryQuietPeriod
	}
	if opts.ProcessingSlice <= 0 {
		opts.ProcessingSlice = DefaultProcessingSlice
	}
	if opts.MaxDiscardPerLoop <= 0 {
		opts.MaxDiscardPerLoop = DefaultMaxDiscardPerLoop
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return opts
}

// RegisterSensor routes the values of code to sink. Call before the first Loop.
func (p *P1Reader) RegisterSensor(code obis.Code, sink sensors.Sink) error {
	return p.registry.Register(code, sink)
}

// OnReadyToReceive fires whenever the reader starts waiting for a telegram,
// typically used to raise the request line of the meter.
func (p *P1Reader) OnReadyToReceive(l Listener) {
	p.readyToReceive = append(p.readyToReceive, l)
}

// OnUpdateReceived fires after every value of a verified telegram has been
// published.
func (p *P1Reader) OnUpdateReceived(l Listener) {
	p.updateReceived = append(p.updateReceived, l)
}

// OnCommunicationError fires whenever a telegram is abandoned.
func (p *P1Reader) OnCommunicationError(l Listener) {
	p.communicationError = append(p.communicationError, l)
}

// State returns the state the next Loop call works in.
func (p *P1Reader) State() State {
	return p.state
}

// Format of the telegram being received, FormatUnknown between telegrams.
func (p *P1Reader) Format() DataFormat {
	return p.format
}

// Loop performs one slice of work for the current state and returns. It never
// waits for data.
func (p *P1Reader) Loop() {
	loopStart := p.now()
	switch p.state {
	case StateIdentifyingMessage:
		// Continue reading right away, returning to the scheduler between the
		// first byte and the rest gives the serial buffer a chance to overflow.
		if p.identifyMessage(loopStart) {
			p.readMessage(loopStart)
		}
	case StateReadingMessage:
		p.readMessage(loopStart)
	case StateVerifyingCRC:
		p.verifyCRC()
	case StateProcessingASCII:
		p.processASCII(loopStart)
	case StateProcessingBinary:
		p.processBinary(loopStart)
	case StateWaiting:
		p.wait(loopStart)
	case StateErrorRecovery:
		p.recoverFromError(loopStart)
	}
}

func (p *P1Reader) getByte() (byte, bool) {
	b, err := p.transport.ReadByte()
	if err != nil {
		p.log.Warnf("Reading from transport failed: %v", err)
		return 0, false
	}
	if p.opts.SecondaryP1 {
		if err := p.transport.WriteByte(b); err != nil {
			p.log.Debugf("Passthrough to secondary P1 failed: %v", err)
		}
	}
	return b, true
}

func (p *P1Reader) identifyMessage(loopStart time.Time) bool {
	if p.transport.Buffered() == 0 {
		if loopStart.Sub(p.times.identifying) > p.opts.MaxIdleTime {
			p.log.Warnf("No data received for %d seconds.", int(p.opts.MaxIdleTime.Seconds()))
			p.changeState(StateErrorRecovery)
		}
		return false
	}

	b, ok := p.getByte()
	if !ok {
		p.changeState(StateErrorRecovery)
		return false
	}
	switch b {
	case asciiStart:
		p.log.Debug("ASCII data format")
		p.format = FormatASCII
	case binaryFlag:
		p.log.Debug("BINARY data format")
		p.format = FormatBinary
	default:
		p.log.Warnf("Unknown data format (0x%02X). Resetting.", b)
		p.changeState(StateErrorRecovery)
		return false
	}
	if err := p.buffer.Append(b); err != nil {
		p.log.Warn("Message buffer overrun. Resetting.")
		p.changeState(StateErrorRecovery)
		return false
	}
	p.changeState(StateReadingMessage)
	return true
}

func (p *P1Reader) readMessage(loopStart time.Time) {
	p.numMessageLoops++
	for p.transport.Buffered() > 0 {
		b, ok := p.getByte()
		if !ok {
			p.changeState(StateErrorRecovery)
			return
		}
		if err := p.buffer.Append(b); err != nil {
			p.log.Warn("Message buffer overrun. Resetting.")
			p.changeState(StateErrorRecovery)
			return
		}
		pos := p.buffer.Len()

		// Find out where the CRC will be positioned
		switch {
		case p.format == FormatASCII && b == asciiCRCEnd:
			p.buffer.SetCRCPosition(pos)
		case p.format == FormatBinary && pos == 3:
			frame := p.buffer.Bytes()
			if frame[1]&binaryFrameTypeMask != binaryFrameType {
				p.log.Warnf("Unknown frame format (0x%02X). Resetting.", frame[1])
				p.changeState(StateErrorRecovery)
				return
			}
			crcPos := int(frame[1]&^binaryFrameTypeMask)<<8 + int(frame[2]) - 1
			if crcPos < minBinaryCRCPosition || crcPos+3 > p.buffer.Cap() {
				p.log.Warnf("Frame length %d does not fit a %d byte buffer. Resetting.", crcPos+1, p.buffer.Cap())
				p.changeState(StateErrorRecovery)
				return
			}
			p.buffer.SetCRCPosition(crcPos)
		}

		// Once the trailer is complete, verify
		if crcPos := p.buffer.CRCPosition(); crcPos > 0 && pos > crcPos {
			if p.format == FormatASCII && b == '\n' {
				p.log.Debugf("Got in total %d bytes, CRC starts at %d", pos, crcPos)
				p.changeState(StateVerifyingCRC)
				return
			}
			if p.format == FormatBinary && pos == crcPos+3 {
				if b != binaryFlag {
					p.log.Warn("Unexpected end. Resetting.")
					p.changeState(StateErrorRecovery)
					return
				}
				p.changeState(StateVerifyingCRC)
				return
			}
		}

		if p.buffer.Full() {
			p.log.Warn("Message buffer overrun. Resetting.")
			p.changeState(StateErrorRecovery)
			return
		}
	}

	if loopStart.Sub(p.times.reading) > p.opts.MaxMessageTime {
		p.log.Warnf("Complete message not received within %d seconds. Resetting.", int(p.opts.MaxMessageTime.Seconds()))
		p.changeState(StateErrorRecovery)
	}
}

func (p *P1Reader) processASCII(loopStart time.Time) {
	p.numProcessingLoops++
	if p.ascii.Process(p.sliceExpired(loopStart)) {
		p.changeState(StateWaiting)
	}
}

func (p *P1Reader) processBinary(loopStart time.Time) {
	p.numProcessingLoops++
	done, err := p.binary.Process(p.sliceExpired(loopStart))
	if err != nil {
		p.log.Warnf("%v. Resetting.", err)
		p.changeState(StateErrorRecovery)
		return
	}
	if done {
		p.changeState(StateWaiting)
	}
}

func (p *P1Reader) sliceExpired(loopStart time.Time) parser.Expired {
	return func() bool {
		return p.now().Sub(loopStart) >= p.opts.ProcessingSlice
	}
}

func (p *P1Reader) wait(loopStart time.Time) {
	if p.displayTimeStats {
		p.displayTimeStats = false
		p.logCycleTimes()
	}
	if loopStart.Sub(p.times.identifying) >= p.opts.MinimumPeriod {
		p.changeState(StateIdentifyingMessage)
	}
}

func (p *P1Reader) recoverFromError(loopStart time.Time) {
	if p.transport.Buffered() > 0 {
		for n := 0; n < p.opts.MaxDiscardPerLoop && p.transport.Buffered() > 0; n++ {
			b, ok := p.getByte()
			if !ok {
				break
			}
			p.discard.Add(b)
		}
		p.times.lastDiscard = loopStart
		return
	}
	if loopStart.Sub(p.times.lastDiscard) >= p.opts.RecoveryQuietPeriod {
		p.discard.Flush()
		p.log.Debugf("Link quiet, recovered after %d ms", loopStart.Sub(p.times.errorRecovery).Milliseconds())
		p.changeState(StateWaiting)
	}
}

func (p *P1Reader) changeState(next State) {
	now := p.now()
	prev := p.state
	p.state = next
	p.log.Tracef("State %s -> %s", prev, next)

	switch next {
	case StateIdentifyingMessage:
		p.times.identifying = now
		p.buffer.Reset()
		p.format = FormatUnknown
		p.numMessageLoops = 0
		p.numProcessingLoops = 0
		notify(p.readyToReceive)
	case StateReadingMessage:
		p.times.reading = now
	case StateVerifyingCRC:
		p.times.verifying = now
	case StateProcessingASCII, StateProcessingBinary:
		p.times.processing = now
		p.ascii.Reset()
		p.binary.Reset()
	case StateWaiting:
		p.times.waiting = now
		if prev != StateErrorRecovery {
			p.displayTimeStats = true
		}
		if prev == StateProcessingASCII || prev == StateProcessingBinary {
			notify(p.updateReceived)
		}
	case StateErrorRecovery:
		p.times.errorRecovery = now
		p.times.lastDiscard = now
		notify(p.communicationError)
	}
}

func notify(listeners []Listener) {
	for _, l := range listeners {
		l.Notify()
	}
}

func (p *P1Reader) logCycleTimes() {
	ms := func(from, to time.Time) int64 { return to.Sub(from).Milliseconds() }
	p.log.Debugf("Cycle times: Identifying = %d ms, Message = %d ms (%d loops), CRC = %d ms, Processing = %d ms (%d loops), (Total = %d ms). %d bytes in buffer",
		ms(p.times.identifying, p.times.reading),
		ms(p.times.reading, p.times.verifying),
		p.numMessageLoops,
		ms(p.times.verifying, p.times.processing),
		ms(p.times.processing, p.times.waiting),
		p.numProcessingLoops,
		ms(p.times.identifying, p.times.waiting),
		p.buffer.Len(),
	)
}
