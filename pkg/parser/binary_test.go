package parser

import (
	"testing"

	"github.com/NotCoffee418/p1_mini/pkg/obis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frameHeader is flag, frame format (length patched in), addresses, control
// byte, HCS and LLC.
var frameHeader = []byte{0x7e, 0xa0, 0x00, 0x41, 0x03, 0x13, 0x12, 0x34, 0xe6, 0xe7, 0x00}

// binaryBuffer frames elements the way a meter does; the checksum bytes are
// left zero since parsers only run on verified buffers.
func binaryBuffer(t *testing.T, elements []byte) (*Binary, *recorder) {
	frame := append(append([]byte(nil), frameHeader...), elements...)
	crcPos := len(frame)
	frame[2] = byte(crcPos + 1)
	frame = append(frame, 0x00, 0x00, 0x7e)

	entry, _ := testEntry()
	out := &recorder{}
	return NewBinary(loadBuffer(t, frame, crcPos), out, entry), out
}

var meterElements = []byte{
	0x0f, 0x00, // scalar
	0x0c, 0x07, 0xe6, 0x09, 0x14, 0x02, 0x0c, 0x00, 0x00, 0xff, 0x80, 0x00, 0x00, // datetime
	0x02, 0x0c, // struct
	0x0a, 0x03, 'K', 'F', 'M', // string
	0x09, 0x06, 0x01, 0x00, 0x01, 0x08, 0x00, 0xff, // 1-0:1.8.0.255
	0x06, 0x00, 0x01, 0xe2, 0x40, // 123456
	0x09, 0x06, 0x01, 0x00, 0x20, 0x07, 0x00, 0xff, // 1-0:32.7.0.255
	0x10, 0x04, 0xd2, // 1234
	0x16, 0x1e, // enum
	0x09, 0x06, 0x01, 0x00, 0x1f, 0x07, 0x00, 0xff, // 1-0:31.7.0.255
	0x12, 0xff, 0x9c, // -100
	0x01, 0x02, // array
	0x09, 0x04, 0xde, 0xad, 0xbe, 0xef, // octets, not a code
	0x12, 0x00, 0x0a, // still 31.7.0
	0x00,
}

func TestBinaryDispatchesElements(t *testing.T) {
	p, out := binaryBuffer(t, meterElements)

	done, err := p.Process(never)
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, []dispatch{
		{obis.New(1, 8, 0), 123.456},
		{obis.New(32, 7, 0), 123.4},
		{obis.New(31, 7, 0), -10},
		{obis.New(31, 7, 0), 1},
	}, out.calls)
	assert.Equal(t, obis.New(31, 7, 0), p.Current())
}

func TestBinaryResumesAcrossSlices(t *testing.T) {
	p, out := binaryBuffer(t, meterElements)

	calls := 0
	for {
		calls++
		done, err := p.Process(always)
		require.NoError(t, err)
		if done {
			break
		}
		require.Less(t, calls, 100)
	}
	assert.Greater(t, calls, 10)
	assert.Len(t, out.calls, 4)
}

func TestBinaryUnsigned16(t *testing.T) {
	p, out := binaryBuffer(t, []byte{
		0x09, 0x06, 0x01, 0x00, 0x20, 0x07, 0x00, 0xff,
		0x10, 0x04, 0xd2,
	})

	done, err := p.Process(never)
	require.NoError(t, err)
	require.True(t, done)
	require.Len(t, out.calls, 1)
	assert.Equal(t, 123.4, out.calls[0].value)
}

func TestBinaryValueWithoutCodeIsDropped(t *testing.T) {
	p, out := binaryBuffer(t, []byte{0x10, 0x00, 0x01})

	done, err := p.Process(never)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Empty(t, out.calls)
}

func TestBinaryResetForgetsCode(t *testing.T) {
	p, _ := binaryBuffer(t, meterElements)
	_, err := p.Process(never)
	require.NoError(t, err)

	p.Reset()
	assert.Equal(t, obis.Invalid, p.Current())
}

func TestBinaryUnsupportedType(t *testing.T) {
	p, out := binaryBuffer(t, []byte{0x02, 0x01, 0x05, 0x00, 0x00, 0x00, 0x01})

	_, err := p.Process(never)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.Empty(t, out.calls)
}

func TestBinaryTruncatedElement(t *testing.T) {
	p, _ := binaryBuffer(t, []byte{
		0x09, 0x06, 0x01, 0x00, 0x20, 0x07, 0x00, 0xff,
		0x06, 0x00, 0x01,
	})

	_, err := p.Process(never)
	assert.ErrorIs(t, err, ErrTruncatedElement)
}

func TestBinarySkippedElementPastEndFinishes(t *testing.T) {
	tests := []struct {
		name string
		last []byte
	}{
		{"array tag only", []byte{0x01}},
		{"datetime cut short", []byte{0x0c, 0x07, 0xe6}},
		{"string longer than payload", []byte{0x0a, 0x09, 'K', 'F'}},
		{"octets without length", []byte{0x09}},
		{"code cut short", []byte{0x09, 0x06, 0x01, 0x00, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			elements := append([]byte{
				0x09, 0x06, 0x01, 0x00, 0x20, 0x07, 0x00, 0xff,
				0x10, 0x04, 0xd2,
			}, tt.last...)
			p, out := binaryBuffer(t, elements)

			done, err := p.Process(never)
			require.NoError(t, err)
			assert.True(t, done)
			assert.Equal(t, []dispatch{{obis.New(32, 7, 0), 123.4}}, out.calls)
			assert.Equal(t, obis.New(32, 7, 0), p.Current())
		})
	}
}

func TestBinaryMissingControlByte(t *testing.T) {
	frame := []byte{0x7e, 0xa0, 0x0a, 0x41, 0x03, 0x10, 0x12, 0x34, 0xe6, 0xe7, 0x00, 0x00, 0x00, 0x7e}
	entry, _ := testEntry()
	p := NewBinary(loadBuffer(t, frame, 11), &recorder{}, entry)

	_, err := p.Process(never)
	assert.ErrorIs(t, err, ErrNoControlByte)
}

func TestBinaryPayloadUnavailable(t *testing.T) {
	entry, _ := testEntry()
	p := NewBinary(loadBuffer(t, []byte{0x7e, 0xa0}, 0), &recorder{}, entry)

	_, err := p.Process(never)
	assert.ErrorIs(t, err, ErrPayloadUnavailable)
}
