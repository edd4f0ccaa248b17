package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/mechevo/simulator/pkg/streaming"
)

const (
	sendChSize   = 10_000
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// connection manages a WebSocket connection with a single write goroutine.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{} // closed on shutdown
	closed bool

	wsURL  string
	secret string

	// start_run messages of open runs, replayed after a reconnect
	cachedStart map[string][]byte
	// ack waiters keyed by ackKey
	waiters map[string]chan struct{}

	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		sendCh:      make(chan []byte, sendChSize),
		done:        make(chan struct{}),
		cachedStart: make(map[string][]byte),
		waiters:     make(map[string]chan struct{}),
		logger:      logger,
	}
}

func ackKey(msgType, runID string) string {
	return msgType + "/" + runID
}

// dial connects to the WebSocket server and starts read/write loops.
func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop(conn)
	go c.readLoop(conn)

	return nil
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh into conn until it fails or the connection shuts down.
func (c *connection) writeLoop(conn *ws.Conn) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				c.requeue(data)
				go c.reconnect(conn)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.requeue(data)
				go c.reconnect(conn)
				return
			}
		}
	}
}

// requeue puts back a message that failed to write. It may reorder messages.
func (c *connection) requeue(data []byte) {
	select {
	case c.sendCh <- data:
	default:
	}
}

// readLoop reads ack messages from the server and wakes matching waiters.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect(conn)
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != streaming.TypeAck {
			c.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}

		c.mu.Lock()
		ch, ok := c.waiters[ackKey(ack.For, ack.RunID)]
		if ok {
			delete(c.waiters, ackKey(ack.For, ack.RunID))
		}
		c.mu.Unlock()

		if ok {
			close(ch)
		} else {
			c.logger.Debug("Unexpected ack", "for", ack.For, "runId", ack.RunID)
		}
	}
}

// reconnect replaces a broken conn with exponential backoff. On success it
// replays the start_run message of every open run and restarts the loops.
// Only the first caller for a given conn does the work.
func (c *connection) reconnect(broken *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != broken {
		c.mu.Unlock()
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	c.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt)

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		cached := make([][]byte, 0, len(c.cachedStart))
		for _, msg := range c.cachedStart {
			cached = append(cached, msg)
		}
		c.mu.Unlock()

		if err := replay(conn, cached); err != nil {
			c.logger.Warn("Failed to replay start_run after reconnect", "error", err)
			_ = conn.Close()
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		c.logger.Info("WebSocket reconnected", "attempt", attempt, "openRuns", len(cached))
		go c.writeLoop(conn)
		go c.readLoop(conn)
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

func replay(conn *ws.Conn, messages [][]byte) error {
	for _, msg := range messages {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		if err := conn.WriteMessage(ws.TextMessage, msg); err != nil {
			return err
		}
	}
	return nil
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// sendAndWait sends data and blocks until the server acknowledges msgType
// for runID or the timeout expires.
func (c *connection) sendAndWait(data []byte, msgType, runID string, timeout time.Duration) error {
	key := ackKey(msgType, runID)
	ch := make(chan struct{})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("connection closed before sending %q", msgType)
	}
	c.waiters[key] = ch
	c.mu.Unlock()

	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return nil
	case <-timer.C:
		c.mu.Lock()
		delete(c.waiters, key)
		c.mu.Unlock()
		return fmt.Errorf("timeout waiting for ack of %q for run %s", msgType, runID)
	case <-c.done:
		return fmt.Errorf("connection closed while waiting for ack of %q", msgType)
	}
}

// cacheStart remembers or forgets the start_run message of a run.
func (c *connection) cacheStart(runID string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if data == nil {
		delete(c.cachedStart, runID)
		return
	}
	c.cachedStart[runID] = data
}

// close sends a WebSocket close frame and shuts down all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
