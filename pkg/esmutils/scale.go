package esmutils

import "math"

// ScaleToInt32 multiplies v by factor and rounds to the nearest integer,
// clamping to the int32 range. NaN becomes 0.
func ScaleToInt32(v, factor float64) int32 {
	scaled := math.Round(v * factor)
	switch {
	case math.IsNaN(scaled):
		return 0
	case scaled >= math.MaxInt32:
		return math.MaxInt32
	case scaled <= math.MinInt32:
		return math.MinInt32
	}
	return int32(scaled)
}

// Int32ToRegisters splits v into two big-endian 16 bit registers, high word first.
func Int32ToRegisters(v int32) [2]uint16 {
	u := uint32(v)
	return [2]uint16{uint16(u >> 16), uint16(u)}
}
