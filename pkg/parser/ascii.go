package parser

import (
	"regexp"
	"strconv"

	"github.com/NotCoffee418/p1_mini/pkg/obis"
	"github.com/NotCoffee418/p1_mini/pkg/telegram"
	"github.com/sirupsen/logrus"
)

// Electricity lines only: "1-0:<major>.<minor>.<micro>(<value>...". The unit
// and anything after the number are ignored.
var asciiLinePattern = regexp.MustCompile(
	`^1-0:(\d+)\.(\d+)\.(\d+)\(([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)`,
)

// ASCII walks a DSMR text telegram line by line.
type ASCII struct {
	buf    *telegram.Buffer
	out    Dispatcher
	log    *logrus.Entry
	cursor int
}

func NewASCII(buf *telegram.Buffer, out Dispatcher, log *logrus.Entry) *ASCII {
	return &ASCII{buf: buf, out: out, log: log}
}

// Reset rewinds to the start of the buffer for a new telegram.
func (p *ASCII) Reset() {
	p.cursor = 0
}

// Process parses lines until the '!' that starts the checksum or the end of
// the buffer is reached (done), or until expired reports true after a line.
func (p *ASCII) Process(expired Expired) (done bool) {
	data := p.buf.Bytes()
	for {
		for p.cursor < len(data) && (data[p.cursor] == '\r' || data[p.cursor] == '\n') {
			p.cursor++
		}
		end := p.cursor
		for end < len(data) && !isLineEnd(data[end]) {
			end++
		}
		if end > p.cursor {
			p.parseLine(data[p.cursor:end])
		}
		if end >= len(data) || data[end] == '!' {
			p.cursor = end
			return true
		}
		p.cursor = end + 1
		if expired() {
			return false
		}
	}
}

func isLineEnd(c byte) bool {
	return c == '\r' || c == '\n' || c == '!'
}

func (p *ASCII) parseLine(line []byte) {
	match := asciiLinePattern.FindSubmatch(line)
	if match == nil {
		p.log.Debugf("Could not parse value from line '%s'", line)
		return
	}

	var parts [3]uint32
	for i := range parts {
		v, err := strconv.ParseUint(string(match[i+1]), 10, 32)
		if err != nil {
			p.log.Debugf("Could not parse obis code from line '%s'", line)
			return
		}
		parts[i] = uint32(v)
	}
	value, err := strconv.ParseFloat(string(match[4]), 64)
	if err != nil {
		p.log.Debugf("Could not parse value from line '%s': %v", line, err)
		return
	}

	p.out.Dispatch(obis.New(parts[0], parts[1], parts[2]), value)
}
