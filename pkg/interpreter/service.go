// Package interpreter subscribes to the live feed of a running p1_reader.
package interpreter

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/NotCoffee418/p1_mini/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var ErrMaxRetries = errors.New("max connection retries reached")

type Backoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int
}

var DefaultBackoff = Backoff{
	BaseDelay:  2 * time.Second,
	MaxDelay:   60 * time.Second,
	MaxRetries: 10,
}

const (
	readTimeout  = 10 * time.Second
	pingInterval = 30 * time.Second
)

// StartListener calls funcToCall for every reading the reader at host
// broadcasts, reconnecting with DefaultBackoff. It returns nil once ctx is done.
func StartListener(ctx context.Context, host string, log *logrus.Entry, funcToCall func(reading *types.MeterReading)) error {
	return Listen(ctx, host, DefaultBackoff, log, funcToCall)
}

func Listen(ctx context.Context, host string, backoff Backoff, log *logrus.Entry, funcToCall func(reading *types.MeterReading)) error {
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	retryCount := 0

	for {
		if retryCount > 0 {
			// Exponential backoff
			retryDelay := time.Duration(1<<(retryCount-1)) * backoff.BaseDelay
			if retryDelay > backoff.MaxDelay || retryDelay <= 0 {
				retryDelay = backoff.MaxDelay
			}
			log.Infof("Retrying connection in %v... (attempt %d/%d)", retryDelay, retryCount+1, backoff.MaxRetries)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil
			}
		}

		log.Infof("Connecting to %s", u.String())

		dialer := websocket.Dialer{HandshakeTimeout: readTimeout}
		c, _, err := dialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warnf("Connection failed: %v", err)
			retryCount++
			if retryCount >= backoff.MaxRetries {
				log.Errorf("Max retries (%d) reached. Giving up.", backoff.MaxRetries)
				return ErrMaxRetries
			}
			continue
		}

		log.Info("Connected! Accepting meter readings.")
		retryCount = 0

		connectionBroken := handleConnection(ctx, c, log, funcToCall)
		c.Close()
		if !connectionBroken {
			return nil
		}

		log.Warn("Connection lost, will retry...")
		// First retry waits BaseDelay
		retryCount = 1
	}
}

// handleConnection reads readings until the connection breaks (true) or ctx is
// done (false).
func handleConnection(
	ctx context.Context,
	c *websocket.Conn,
	log *logrus.Entry,
	funcToCall func(reading *types.MeterReading),
) bool {
	done := make(chan struct{})

	// The reader broadcasts every telegram, usually once per second
	c.SetReadDeadline(time.Now().Add(readTimeout))

	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warnf("WebSocket error: %v", err)
				} else {
					log.Infof("Connection closed: %v", err)
				}
				return
			}

			c.SetReadDeadline(time.Now().Add(readTimeout))

			if messageType != websocket.TextMessage {
				log.Debugf("Received unexpected message type: %d", messageType)
				continue
			}
			if meterReading := types.MeterReadingFromJsonBytes(message); meterReading != nil {
				funcToCall(meterReading)
			} else {
				log.Warnf("Failed to parse meter reading: %s", string(message))
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return true
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				log.Warnf("Failed to send ping: %v", err)
			}
		case <-ctx.Done():
			log.Info("Shutting down, closing connection...")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Warnf("Error sending close message: %v", err)
			}

			// Wait for close confirmation or timeout
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return false
		}
	}
}
