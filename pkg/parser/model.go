// Package parser decodes verified P1 telegrams and hands every value to a
// Dispatcher. Both parsers work in slices: Process returns when the caller's
// time budget is spent and resumes from the saved cursor on the next call.
package parser

import (
	"errors"

	"github.com/NotCoffee418/p1_mini/pkg/obis"
)

var (
	ErrNoControlByte      = errors.New("could not find control byte")
	ErrUnsupportedType    = errors.New("unsupported data type")
	ErrTruncatedElement   = errors.New("element runs past end of payload")
	ErrPayloadUnavailable = errors.New("telegram payload not available")
)

// Dispatcher receives decoded values. *sensors.Registry implements it.
type Dispatcher interface {
	Dispatch(code obis.Code, value float64) bool
}

// Expired reports whether the current time slice is used up.
type Expired func() bool
