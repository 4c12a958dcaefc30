package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"slices"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

var (
	// ErrHandshake is returned when the relay does not open with a connected frame.
	ErrHandshake = errors.New("relay handshake failed")
	// ErrClosed is returned by Emit after the connection has ended.
	ErrClosed = errors.New("connection closed")
)

// DialOptions configures Dial.
type DialOptions struct {
	// Token is sent as a bearer token on the upgrade request.
	Token string
	// ReadLimit caps the size of one inbound frame. Zero keeps the library default.
	ReadLimit int64
}

// Conn is one session with the relay. Inbound frames are decoded on a single
// goroutine and handed to subscribers in delivery order.
type Conn struct {
	ws        *websocket.Conn
	sessionID string
	log       *zerolog.Logger

	mu       sync.RWMutex
	handlers map[uint64]core.Handler
	nextID   uint64

	cancel    context.CancelFunc
	done      chan struct{}
	err       error
	closeOnce sync.Once
}

var _ core.Conn = (*Conn)(nil)

// Dial connects to the relay at url and waits for the handshake frame that
// assigns the session id. ctx bounds the dial and the handshake only.
func Dial(ctx context.Context, url string, opts DialOptions, logger *zerolog.Logger) (*Conn, error) {
	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	wsConn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if opts.ReadLimit > 0 {
		wsConn.SetReadLimit(opts.ReadLimit)
	}

	sid, err := readHandshake(ctx, wsConn)
	if err != nil {
		_ = wsConn.Close(websocket.StatusProtocolError, "handshake failed")
		return nil, err
	}

	readCtx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		ws:        wsConn,
		sessionID: sid,
		log:       logger,
		handlers:  make(map[uint64]core.Handler),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go c.readLoop(readCtx)

	logger.Debug().Str("session_id", sid).Str("url", url).Msg("relay connected")
	return c, nil
}

func readHandshake(ctx context.Context, wsConn *websocket.Conn) (string, error) {
	var frame proto.Frame
	if err := wsjson.Read(ctx, wsConn, &frame); err != nil {
		return "", fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if frame.Event != proto.EventConnected {
		return "", fmt.Errorf("%w: unexpected first event %q", ErrHandshake, frame.Event)
	}
	var data proto.ConnectedData
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		return "", fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if data.SID == "" {
		return "", fmt.Errorf("%w: empty session id", ErrHandshake)
	}
	return data.SID, nil
}

// SessionID returns the relay-assigned session id.
func (c *Conn) SessionID() string {
	return c.sessionID
}

// Emit sends cmd as a message frame.
func (c *Conn) Emit(ctx context.Context, cmd core.Command) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	frame, err := frameFromCommand(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}
	if err := wsjson.Write(ctx, c.ws, frame); err != nil {
		return fmt.Errorf("write %s frame: %w", frame.Event, err)
	}
	return nil
}

// Subscribe registers h for every inbound event. The returned function
// removes exactly this registration and is safe to call more than once.
func (c *Conn) Subscribe(h core.Handler) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = h
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

// Done is closed when the read loop stops.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended. It is nil for a normal closure and
// only meaningful after Done is closed.
func (c *Conn) Err() error {
	<-c.done
	return c.err
}

// Close performs the closing handshake and waits for the read loop to stop.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.ws.Close(websocket.StatusNormalClosure, "bye")
		c.cancel()
		<-c.done
	})
	if err != nil && isNormalClosure(err) {
		return nil
	}
	return err
}

func (c *Conn) readLoop(ctx context.Context) {
	defer close(c.done)

	for {
		var frame proto.Frame
		if err := wsjson.Read(ctx, c.ws, &frame); err != nil {
			if !isNormalClosure(err) {
				c.err = err
				c.log.Warn().Err(err).Str("session_id", c.sessionID).Msg("relay read failed")
			}
			return
		}

		ev, ok, err := eventFromFrame(frame)
		if err != nil {
			c.log.Warn().Err(err).Str("event", frame.Event).Msg("dropping malformed frame")
			continue
		}
		if !ok {
			c.log.Debug().Str("event", frame.Event).Msg("ignoring unknown event")
			continue
		}
		c.dispatch(ctx, ev)
	}
}

func (c *Conn) dispatch(ctx context.Context, ev core.Event) {
	c.mu.RLock()
	ids := slices.Sorted(maps.Keys(c.handlers))
	handlers := make([]core.Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, c.handlers[id])
	}
	c.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, ev)
	}
}

func isNormalClosure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
