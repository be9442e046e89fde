package engine

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/xavierarpa/openwork/internal/errors"
)

const (
	// writeWait bounds control-frame writes on the stream socket.
	writeWait = 10 * time.Second

	// pongWait is how long we tolerate silence before declaring the
	// connection dead. pingPeriod must be shorter so a ping is always
	// in flight before the deadline.
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second

	// frameBuffer absorbs bursts while the consumer reconciles.
	frameBuffer = 64
)

// Subscription is one live event stream. Frames yields raw frames in
// arrival order and is closed when the stream ends; Err then reports
// why. Err returns nil when the subscription was closed locally.
type Subscription interface {
	Frames() <-chan []byte
	Err() error
	Close() error
}

// wsSubscription reads the engine's websocket event stream.
type wsSubscription struct {
	conn   *websocket.Conn
	frames chan []byte

	closeOnce sync.Once
	closed    chan struct{}

	mu  sync.Mutex
	err error
}

// Subscribe dials the engine's event stream. The returned subscription
// lives until ctx is cancelled, Close is called, or the transport
// fails; cancellation and Close count as local shutdown, not failure.
func (c *Client) Subscribe(ctx context.Context) (Subscription, error) {
	wsURL := (&url.URL{Scheme: "ws", Host: c.target, Path: "/ws"}).String()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStreamDialFailed, "dial event stream", err)
	}

	sub := &wsSubscription{
		conn:   conn,
		frames: make(chan []byte, frameBuffer),
		closed: make(chan struct{}),
	}

	go sub.watch(ctx)
	go sub.readLoop()
	go sub.pingLoop()

	return sub, nil
}

func (s *wsSubscription) Frames() <-chan []byte {
	return s.frames
}

func (s *wsSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close shuts the stream down locally. Safe to call more than once and
// concurrently with a transport failure.
func (s *wsSubscription) Close() error {
	s.shutdown(nil)
	return nil
}

// shutdown records the terminal error (first one wins) and closes the
// socket, which unblocks readLoop.
func (s *wsSubscription) shutdown(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.closed)

		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	})
}

// watch maps ctx cancellation onto a local shutdown.
func (s *wsSubscription) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		s.shutdown(nil)
	case <-s.closed:
	}
}

func (s *wsSubscription) readLoop() {
	defer close(s.frames)

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closed:
				// Local shutdown already in progress; the read error is
				// just the socket being torn down under us.
			default:
				s.shutdown(apperrors.Wrap(apperrors.CodeStreamClosed, "event stream ended", err))
			}
			return
		}

		select {
		case s.frames <- data:
		case <-s.closed:
			return
		}
	}
}

func (s *wsSubscription) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.closed:
			return
		}
	}
}
