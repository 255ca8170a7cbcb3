package sensors

import (
	"testing"

	"github.com/NotCoffee418/p1_mini/pkg/obis"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry() (*Registry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewRegistry(logrus.NewEntry(logger)), hook
}

func TestDispatchToRegisteredSink(t *testing.T) {
	r, _ := newRegistry()
	var got []float64
	require.NoError(t, r.Register(obis.New(1, 8, 0), SinkFunc(func(v float64) { got = append(got, v) })))

	assert.True(t, r.Dispatch(obis.New(1, 8, 0), 123.456))
	assert.True(t, r.Dispatch(obis.New(1, 8, 0), 1))
	assert.Equal(t, []float64{123.456, 1}, got)
	assert.Equal(t, 1, r.Len())
}

func TestDispatchUnmappedIsDebugOnly(t *testing.T) {
	r, hook := newRegistry()
	assert.False(t, r.Dispatch(obis.New(99, 97, 0), 5))
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
}

func TestRegisterRejects(t *testing.T) {
	r, _ := newRegistry()
	noop := SinkFunc(func(float64) {})

	require.NoError(t, r.Register(obis.New(1, 7, 0), noop))
	assert.ErrorIs(t, r.Register(obis.New(1, 7, 0), noop), ErrDuplicateSensor)
	assert.ErrorIs(t, r.Register(obis.Invalid, noop), ErrInvalidCode)
	assert.ErrorIs(t, r.Register(obis.New(2, 7, 0), nil), ErrNilSink)
	assert.Equal(t, 1, r.Len())
}

func TestFanout(t *testing.T) {
	var a, b []float64
	sink := Fanout(
		SinkFunc(func(v float64) { a = append(a, v) }),
		SinkFunc(func(v float64) { b = append(b, v) }),
	)
	sink.Publish(2.5)
	assert.Equal(t, []float64{2.5}, a)
	assert.Equal(t, []float64{2.5}, b)
}
