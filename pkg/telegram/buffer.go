// Package telegram holds the in-flight telegram while it is received,
// verified and parsed.
package telegram

import "errors"

// DefaultCapacity fits a DSMR 5 telegram with gas and water channels.
const DefaultCapacity = 2048

var ErrBufferFull = errors.New("telegram buffer full")

// Buffer is a fixed size byte arena. Bytes() never exposes more than what was
// appended since the last Reset.
type Buffer struct {
	data        []byte
	position    int
	crcPosition int
}

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Reset starts a new telegram. The arena is reused.
func (b *Buffer) Reset() {
	b.position = 0
	b.crcPosition = 0
}

// Append writes one byte at the write cursor. It never writes past capacity.
func (b *Buffer) Append(c byte) error {
	if b.position >= len(b.data) {
		return ErrBufferFull
	}
	b.data[b.position] = c
	b.position++
	return nil
}

// Bytes returns the received part of the telegram. Callers must not retain it
// across a Reset.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.position]
}

func (b *Buffer) Len() int { return b.position }
func (b *Buffer) Cap() int { return len(b.data) }
func (b *Buffer) Full() bool { return b.position >= len(b.data) }

// CRCPosition is the index where the checksum trailer starts, 0 while unknown.
func (b *Buffer) CRCPosition() int { return b.crcPosition }

func (b *Buffer) SetCRCPosition(pos int) { b.crcPosition = pos }

// Payload returns the bytes before the checksum trailer, nil while the trailer
// position is unknown or not received yet.
func (b *Buffer) Payload() []byte {
	if b.crcPosition <= 0 || b.crcPosition > b.position {
		return nil
	}
	return b.data[:b.crcPosition]
}
