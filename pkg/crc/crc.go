// Package crc holds the two checksums used to verify P1 telegrams.
package crc

import "github.com/sigurn/crc16"

var (
	// CRC16_ARC: reflected 0xA001, init 0, no final xor. DSMR text telegrams.
	asciiTable = crc16.MakeTable(crc16.CRC16_ARC)
	// CRC16_X_25: reflected 0x8408, init 0xFFFF, final xor 0xFFFF. HDLC frames.
	binaryTable = crc16.MakeTable(crc16.CRC16_X_25)
)

// ASCII returns the checksum of a text telegram, computed from the leading '/'
// up to and including the '!'.
func ASCII(data []byte) uint16 {
	return crc16.Checksum(data, asciiTable)
}

// Binary returns the frame check sequence of an HDLC frame, computed over the
// frame without its opening flag and without the checksum itself.
func Binary(data []byte) uint16 {
	return crc16.Checksum(data, binaryTable)
}
