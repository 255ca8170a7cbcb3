// Package serialport turns a blocking serial device into the non-blocking
// byte source the P1 reader polls.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"
)

// MaxPending bounds the bytes held for the reader.
const MaxPending = 64 * 1024

var ErrClosed = errors.New("serial port closed")

type Options struct {
	Device   string
	Baudrate uint
}

// Port pumps bytes from the device into a queue on a separate goroutine.
type Port struct {
	rwc io.ReadWriteCloser
	log *logrus.Entry

	mu      sync.Mutex
	pending []byte
	err     error
	done    chan struct{}
}

// Open the connection to the P1 port.
func Open(opts Options, log *logrus.Entry) (*Port, error) {
	rwc, err := serial.Open(serial.OpenOptions{
		PortName:        opts.Device,
		BaudRate:        opts.Baudrate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	log.Infof("Connected to P1 port on %s", opts.Device)
	return New(rwc, log), nil
}

// New starts pumping from an already open stream.
func New(rwc io.ReadWriteCloser, log *logrus.Entry) *Port {
	p := &Port{
		rwc:  rwc,
		log:  log,
		done: make(chan struct{}),
	}
	go p.pump()
	return p
}

func (p *Port) pump() {
	defer close(p.done)
	chunk := make([]byte, 256)
	for {
		n, err := p.rwc.Read(chunk)
		if n > 0 {
			p.mu.Lock()
			p.pending = append(p.pending, chunk[:n]...)
			if over := len(p.pending) - MaxPending; over > 0 {
				p.log.Warnf("Reader falling behind, dropped %d bytes", over)
				p.pending = append(p.pending[:0], p.pending[over:]...)
			}
			p.mu.Unlock()
		}
		if err != nil {
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				p.log.Warnf("Serial read stopped: %v", err)
			}
			return
		}
	}
}

// Buffered is the number of bytes ReadByte can return without blocking.
func (p *Port) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// ReadByte returns the oldest pending byte, or io.EOF when there is none.
func (p *Port) ReadByte() (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return 0, io.EOF
	}
	b := p.pending[0]
	p.pending = p.pending[1:]
	return b, nil
}

// WriteByte writes to the device, used to pass telegrams on to a second reader.
func (p *Port) WriteByte(c byte) error {
	_, err := p.rwc.Write([]byte{c})
	return err
}

// Err is the error that stopped the pump, nil while it runs.
func (p *Port) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Done is closed once the pump stopped.
func (p *Port) Done() <-chan struct{} {
	return p.done
}

func (p *Port) Close() error {
	err := p.rwc.Close()
	if err == nil {
		p.log.Info("Disconnected from P1 port")
	}
	return err
}
