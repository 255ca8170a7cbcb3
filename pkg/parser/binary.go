package parser

import (
	"encoding/binary"
	"fmt"

	"github.com/NotCoffee418/p1_mini/pkg/obis"
	"github.com/NotCoffee418/p1_mini/pkg/telegram"
	"github.com/sirupsen/logrus"
)

const (
	// flag + frame format, then the rest of the HDLC/LLC header up to the
	// control byte is skipped by scanning.
	binaryHeaderSize = 3
	controlByte      = 0x13
	// control byte, HCS, LLC header; the first data element follows
	controlBlockSize = 6
)

// DLMS/COSEM data tags understood by the walker.
const (
	tagNull       = 0x00
	tagArray      = 0x01
	tagStruct     = 0x02
	tagUint32     = 0x06
	tagOctets     = 0x09
	tagString     = 0x0a
	tagDateTime   = 0x0c
	tagScalerUnit = 0x0f
	tagUint16     = 0x10
	tagInt16      = 0x12
	tagEnum       = 0x16
)

// Binary walks the type-tagged elements of an HDLC framed DLMS push message.
// An octet string of length 6 carries an OBIS code that applies to the
// numeric elements after it.
type Binary struct {
	buf     *telegram.Buffer
	out     Dispatcher
	log     *logrus.Entry
	cursor  int
	started bool
	current obis.Code
}

func NewBinary(buf *telegram.Buffer, out Dispatcher, log *logrus.Entry) *Binary {
	p := &Binary{buf: buf, out: out, log: log}
	p.Reset()
	return p
}

// Reset prepares for a new telegram. The current OBIS code is forgotten.
func (p *Binary) Reset() {
	p.cursor = 0
	p.started = false
	p.current = obis.Invalid
}

// Current is the OBIS code numeric elements are published to.
func (p *Binary) Current() obis.Code {
	return p.current
}

// Process walks elements until the checksum position is reached (done) or
// expired reports true after an element. Any error abandons the telegram.
func (p *Binary) Process(expired Expired) (done bool, err error) {
	payload := p.buf.Payload()
	if payload == nil {
		return false, ErrPayloadUnavailable
	}

	if !p.started {
		p.started = true
		p.cursor = binaryHeaderSize
		for p.cursor < len(payload) && payload[p.cursor] != controlByte {
			p.cursor++
		}
		// Only the payload is scanned, the FCS is never taken for a control byte.
		if p.cursor >= len(payload) {
			return false, ErrNoControlByte
		}
		p.cursor += controlBlockSize
	}

	for {
		if p.cursor >= len(payload) {
			return true, nil
		}
		if err := p.element(payload); err != nil {
			return false, err
		}
		if p.cursor >= len(payload) {
			return true, nil
		}
		if expired() {
			return false, nil
		}
	}
}

func (p *Binary) element(payload []byte) error {
	tag := payload[p.cursor]
	switch tag {
	case tagNull:
		return p.skip(payload, 1)
	case tagArray, tagStruct, tagScalerUnit, tagEnum:
		return p.skip(payload, 2)
	case tagDateTime:
		return p.skip(payload, 13)
	case tagUint32:
		v, err := p.take(payload, 4)
		if err != nil {
			return err
		}
		p.publish(float64(binary.BigEndian.Uint32(v)) / 1000)
	case tagUint16:
		v, err := p.take(payload, 2)
		if err != nil {
			return err
		}
		p.publish(float64(binary.BigEndian.Uint16(v)) / 10)
	case tagInt16:
		v, err := p.take(payload, 2)
		if err != nil {
			return err
		}
		p.publish(float64(int16(binary.BigEndian.Uint16(v))) / 10)
	case tagOctets, tagString:
		if p.cursor+2 > len(payload) {
			return p.skip(payload, 2)
		}
		n := int(payload[p.cursor+1])
		if p.cursor+2+n > len(payload) {
			return p.skip(payload, 2+n)
		}
		if tag == tagOctets && n == 6 {
			code := payload[p.cursor+2 : p.cursor+8]
			p.current = obis.New(uint32(code[2]), uint32(code[3]), uint32(code[4]))
		}
		p.cursor += 2 + n
	default:
		return fmt.Errorf("%w 0x%02x at %d", ErrUnsupportedType, tag, p.cursor)
	}
	return nil
}

// take returns the n value bytes after the tag and moves past them. A value
// reaching into the checksum is an error.
func (p *Binary) take(payload []byte, n int) ([]byte, error) {
	if err := p.bounds(payload, 1+n); err != nil {
		return nil, err
	}
	v := payload[p.cursor+1 : p.cursor+1+n]
	p.cursor += 1 + n
	return v, nil
}

// skip moves past an element that carries no value. Running past the
// checksum boundary ends the walk.
func (p *Binary) skip(payload []byte, n int) error {
	p.cursor = min(p.cursor+n, len(payload))
	return nil
}

func (p *Binary) bounds(payload []byte, n int) error {
	if p.cursor+n > len(payload) {
		return fmt.Errorf("%w: tag 0x%02x at %d needs %d bytes, %d left",
			ErrTruncatedElement, payload[p.cursor], p.cursor, n, len(payload)-p.cursor)
	}
	return nil
}

func (p *Binary) publish(value float64) {
	if !p.current.Valid() {
		p.log.Debugf("Value %v without preceding obis code", value)
		return
	}
	p.out.Dispatch(p.current, value)
}
