package port_reader

import (
	"encoding/hex"
	"strconv"

	"github.com/NotCoffee418/p1_mini/pkg/crc"
	"github.com/sirupsen/logrus"
)

// Binary buffers are dumped in lines of this many bytes.
const dumpLineBytes = 40

func (p *P1Reader) verifyCRC() {
	data := p.buffer.Bytes()
	crcPos := p.buffer.CRCPosition()

	var calculated, fromMessage uint16
	found := false
	switch p.format {
	case FormatASCII:
		calculated = crc.ASCII(data[:crcPos])
		fromMessage, found = parseHexCRC(data[crcPos:])
	case FormatBinary:
		calculated = crc.Binary(data[1:crcPos])
		fromMessage = uint16(data[crcPos+1])<<8 | uint16(data[crcPos])
		found = true
	}

	if found && calculated == fromMessage {
		p.log.Debug("CRC verification OK")
		if p.format == FormatASCII {
			p.changeState(StateProcessingASCII)
		} else {
			p.changeState(StateProcessingBinary)
		}
		return
	}

	if found {
		p.log.Warnf("CRC mismatch, calculated %04X != %04X. Message ignored.", calculated, fromMessage)
	} else {
		p.log.Warnf("CRC missing, calculated %04X. Message ignored.", calculated)
	}
	p.dumpBuffer()
	p.changeState(StateErrorRecovery)
}

// parseHexCRC reads the hex digits at the start of the trailer, ignoring
// leading blanks.
func parseHexCRC(trailer []byte) (uint16, bool) {
	start := 0
	for start < len(trailer) && (trailer[start] == ' ' || trailer[start] == '\t') {
		start++
	}
	end := start
	for end < len(trailer) && end-start < 4 && isHexDigit(trailer[end]) {
		end++
	}
	if end == start {
		return 0, false
	}
	v, err := strconv.ParseUint(string(trailer[start:end]), 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (p *P1Reader) dumpBuffer() {
	if !p.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	data := p.buffer.Bytes()
	if p.format == FormatASCII {
		p.log.Debugf("Buffer:\n%s (%d)", data, len(data))
		return
	}
	p.log.Debug("Buffer:")
	for i := 0; i < len(data); i += dumpLineBytes {
		end := min(i+dumpLineBytes, len(data))
		p.log.Debug(hex.EncodeToString(data[i:end]))
	}
}
