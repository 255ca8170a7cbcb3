// Package obis packs the C.D.E part of an OBIS code into a single integer key.
//
// Only the value group triple (major.minor.micro) is kept: "1-0:1.8.0" and
// "0-0:1.8.0" address the same key. That is enough to tell the measurements of
// one electricity meter apart.
package obis

import "fmt"

// Code is a packed major.minor.micro triple. Compare codes with ==.
type Code uint32

// Invalid is returned for text that is not a valid code.
const Invalid Code = 0xffffffff

// New packs a triple. Out of range parts are masked: major to 12 bits, minor
// and micro to 8 bits.
func New(major, minor, micro uint32) Code {
	return Code((major&0xfff)<<16 | (minor&0xff)<<8 | (micro & 0xff))
}

// Parse decodes "major.minor.micro" or "major.minor" (micro then defaults to 0).
// Any single non-digit character separates the parts. Missing parts, trailing
// characters or a non-digit where a separator or the end is expected yield
// Invalid.
func Parse(text string) Code {
	var parts [3]uint32
	i := 0
	for part := 0; part < 3; part++ {
		for i < len(text) && isDigit(text[i]) {
			parts[part] = parts[part]*10 + uint32(text[i]-'0')
			i++
		}
		if i == len(text) {
			// "1" has no minor; "1.8" is complete; "1.8.0" is complete.
			if part == 0 {
				return Invalid
			}
			return New(parts[0], parts[1], parts[2])
		}
		if part == 2 {
			return Invalid
		}
		// separator
		i++
	}
	return Invalid
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (c Code) Major() uint32 { return uint32(c>>16) & 0xfff }
func (c Code) Minor() uint32 { return uint32(c>>8) & 0xff }
func (c Code) Micro() uint32 { return uint32(c) & 0xff }

// Valid reports whether c is anything but the Invalid sentinel.
func (c Code) Valid() bool { return c != Invalid }

func (c Code) String() string {
	if c == Invalid {
		return "invalid"
	}
	return fmt.Sprintf("%d.%d.%d", c.Major(), c.Minor(), c.Micro())
}
