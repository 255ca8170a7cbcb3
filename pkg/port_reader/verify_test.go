package port_reader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHexCRC(t *testing.T) {
	tests := []struct {
		in    string
		want  uint16
		found bool
	}{
		{"A1B2\r\n", 0xA1B2, true},
		{"a1b2\r\n", 0xA1B2, true},
		{" 00FF\r\n", 0x00FF, true},
		{"EF\r\n", 0x00EF, true},
		{"\r\n", 0, false},
		{"", 0, false},
		{"XYZ1", 0, false},
	}
	for _, tt := range tests {
		got, found := parseHexCRC([]byte(tt.in))
		assert.Equal(t, tt.found, found, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
