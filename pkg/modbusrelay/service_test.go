package modbusrelay

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type writeCall struct {
	unitID uint8
	addr   uint16
	regs   []uint16
}

type fakeWriter struct {
	mu     sync.Mutex
	calls  []writeCall
	fail   error
	closed bool
}

func (f *fakeWriter) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.calls = append(f.calls, writeCall{unitID, addr, append([]uint16(nil), regs...)})
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWriter) Calls() []writeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]writeCall(nil), f.calls...)
}

func testEntry() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func newTestRelay(cfg Config) (*Relay, *[]*fakeWriter) {
	r := New(cfg, testEntry())
	var dialed []*fakeWriter
	r.connect = func(Config) (RegisterWriter, error) {
		w := &fakeWriter{}
		dialed = append(dialed, w)
		return w, nil
	}
	r.ping = func(string, time.Duration) error { return nil }
	return r, &dialed
}

func TestSink_ScalesAndQueues(t *testing.T) {
	r, _ := newTestRelay(Config{Endpoint: "10.0.0.2:502"})

	r.Sink(100, 1000).Publish(1.234)
	r.Sink(200, 1).Publish(-1)

	require.Len(t, r.queue, 2)
	assert.Equal(t, registerWrite{address: 100, regs: [2]uint16{0, 1234}}, <-r.queue)
	assert.Equal(t, registerWrite{address: 200, regs: [2]uint16{0xffff, 0xffff}}, <-r.queue)
}

func TestSink_DropsWhenQueueFull(t *testing.T) {
	r, _ := newTestRelay(Config{Endpoint: "10.0.0.2:502", QueueSize: 2})
	sink := r.Sink(1, 1)
	for i := 0; i < 5; i++ {
		sink.Publish(float64(i))
	}
	assert.Len(t, r.queue, 2)
}

func TestWrite_ConnectsLazilyOnce(t *testing.T) {
	r, dialed := newTestRelay(Config{Endpoint: "10.0.0.2:502", UnitId: 7})

	require.NoError(t, r.write(registerWrite{address: 10, regs: [2]uint16{1, 2}}))
	require.NoError(t, r.write(registerWrite{address: 12, regs: [2]uint16{3, 4}}))

	require.Len(t, *dialed, 1)
	assert.Equal(t, []writeCall{
		{7, 10, []uint16{1, 2}},
		{7, 12, []uint16{3, 4}},
	}, (*dialed)[0].Calls())
}

func TestWrite_ReconnectsAfterFailure(t *testing.T) {
	r, dialed := newTestRelay(Config{Endpoint: "10.0.0.2:502"})

	require.NoError(t, r.write(registerWrite{address: 1}))
	(*dialed)[0].fail = errors.New("broken pipe")

	err := r.write(registerWrite{address: 1})
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.True(t, (*dialed)[0].closed)
	assert.Nil(t, r.writer)

	require.NoError(t, r.write(registerWrite{address: 1}))
	assert.Len(t, *dialed, 2)
}

func TestWrite_PingCheck(t *testing.T) {
	r, dialed := newTestRelay(Config{Endpoint: "10.0.0.2:502", PingCheck: true})
	var pinged []string
	r.ping = func(host string, _ time.Duration) error {
		pinged = append(pinged, host)
		return errors.New("no response")
	}

	err := r.write(registerWrite{address: 1})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, []string{"10.0.0.2"}, pinged)
	assert.Empty(t, *dialed)
}

func TestWrite_ConnectFailure(t *testing.T) {
	r := New(Config{Endpoint: "10.0.0.2:502"}, testEntry())
	r.connect = func(Config) (RegisterWriter, error) { return nil, errors.New("refused") }

	err := r.write(registerWrite{address: 1})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Nil(t, r.writer)
}

func TestDialEndpoint_RequiresEndpoint(t *testing.T) {
	_, err := dialEndpoint(Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPackRegisters(t *testing.T) {
	assert.Equal(t, []byte{0x12, 0x34, 0xab, 0xcd}, packRegisters([]uint16{0x1234, 0xabcd}))
}

func TestRun_DrainsQueueAndDisconnects(t *testing.T) {
	r, dialed := newTestRelay(Config{Endpoint: "10.0.0.2:502"})
	r.Sink(40, 10).Publish(23.5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(r.queue) == 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	require.Len(t, *dialed, 1)
	assert.Equal(t, []writeCall{{0, 40, []uint16{0, 235}}}, (*dialed)[0].Calls())
	assert.True(t, (*dialed)[0].closed)
}
