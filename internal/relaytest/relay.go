// Package relaytest runs an in-process chat relay for tests. It speaks the
// same frames as the production relay: a connected handshake, message frames
// carrying directives, and joinChannel/leaveChannel/users pushes. It also
// serves the channel-creation and profile HTTP endpoints.
package relaytest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

const defaultSecret = "relaytest-secret"

// Options configures a Relay.
type Options struct {
	// Secret signs bearer tokens. A fixed default is used when empty.
	Secret string
	// ManualConfirm stops the relay from answering /join and /quit with
	// pushes; tests then confirm with Push.
	ManualConfirm bool
	// Logger receives relay-side failures. Defaults to the test log.
	Logger *zerolog.Logger
}

// Relay is a running test relay.
type Relay struct {
	// URL is the base HTTP URL, e.g. http://127.0.0.1:1234.
	URL string

	secret []byte
	manual bool
	store  *ChannelStore
	server *httptest.Server
	log    *zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	received []proto.MessageData
}

type session struct {
	id       string
	conn     *websocket.Conn
	name     string
	channels map[string]struct{}
}

// Start launches a relay and stops it when the test ends.
func Start(t testing.TB, opts Options) *Relay {
	t.Helper()

	st, err := NewChannelStore(":memory:")
	if err != nil {
		t.Fatalf("relaytest: create channel store: %v", err)
	}

	secret := opts.Secret
	if secret == "" {
		secret = defaultSecret
	}

	logger := opts.Logger
	if logger == nil {
		l := zerolog.New(zerolog.NewTestWriter(t)).With().Str("component", "relaytest").Logger()
		logger = &l
	}

	r := &Relay{
		secret:   []byte(secret),
		manual:   opts.ManualConfirm,
		store:    st,
		log:      logger,
		sessions: make(map[string]*session),
	}

	r.server = httptest.NewServer(r.routes())
	r.URL = r.server.URL
	t.Cleanup(func() {
		r.server.Close()
		_ = st.Close()
	})
	return r
}

func (r *Relay) routes() http.Handler {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/")
	api.Use(r.authMiddleware())
	api.POST("/api/channel", r.registerChannel)
	api.GET("/profile", r.profile)

	// The upgrade needs the raw ResponseWriter; gin's writer refuses to be hijacked.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ws", r.serveWS)
	mux.Handle("/", router)
	return mux
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	_, _ = fmt.Fprint(w, "ok")
}

// WSURL returns the WebSocket endpoint.
func (r *Relay) WSURL() string {
	return "ws" + strings.TrimPrefix(r.URL, "http") + "/ws"
}

// Token issues a bearer token for the given user.
func (r *Relay) Token(t testing.TB, userID, username string) string {
	t.Helper()

	token, err := issueToken(r.secret, userID, username, time.Hour)
	if err != nil {
		t.Fatalf("relaytest: issue token: %v", err)
	}
	return token
}

// Received returns every message frame the relay has read, in order.
func (r *Relay) Received() []proto.MessageData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.received)
}

// WaitReceived blocks until at least n message frames arrived and returns them.
func (r *Relay) WaitReceived(t testing.TB, n int) []proto.MessageData {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := r.Received(); len(got) >= n {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("relaytest: expected %d message frames, got %d", n, len(r.Received()))
	return nil
}

// Sessions returns the ids of connected sessions, sorted.
func (r *Relay) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Channels returns the channels registered through POST /api/channel.
func (r *Relay) Channels(ctx context.Context) ([]string, error) {
	return r.store.ListChannels(ctx)
}

// Members returns the user ids registered on channel, in join order.
func (r *Relay) Members(ctx context.Context, channel string) ([]string, error) {
	return r.store.ListMembers(ctx, channel)
}

// CloseChannel marks channel closed so further registrations are refused.
func (r *Relay) CloseChannel(ctx context.Context, channel string) error {
	return r.store.CloseChannel(ctx, channel)
}

// Push sends an event to one session.
func (r *Relay) Push(ctx context.Context, sessionID, event string, data any) error {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return errors.New("relaytest: unknown session " + sessionID)
	}
	return send(ctx, s, event, data)
}

// PushRaw writes a frame without encoding its payload.
func (r *Relay) PushRaw(ctx context.Context, sessionID string, frame proto.Frame) error {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return errors.New("relaytest: unknown session " + sessionID)
	}
	return wsjson.Write(ctx, s.conn, frame)
}

func (r *Relay) serveWS(w http.ResponseWriter, req *http.Request) {
	conn, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		r.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	ctx := req.Context()
	s := &session{
		id:       uuid.NewString(),
		conn:     conn,
		channels: make(map[string]struct{}),
	}

	// Registered before the handshake so Push works as soon as Dial returns.
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.sessions, s.id)
		r.mu.Unlock()
	}()

	if err := send(ctx, s, proto.EventConnected, proto.ConnectedData{SID: s.id}); err != nil {
		return
	}

	for {
		var frame proto.Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return
		}
		if err := r.handle(ctx, s, frame); err != nil {
			return
		}
	}
}

func (r *Relay) handle(ctx context.Context, s *session, frame proto.Frame) error {
	if frame.Event != proto.EventMessage {
		return send(ctx, s, proto.EventError, proto.Error{Code: "unknown_event", Message: "unknown event " + frame.Event})
	}

	var msg proto.MessageData
	if err := json.Unmarshal(frame.Data, &msg); err != nil {
		return send(ctx, s, proto.EventError, proto.Error{Code: "bad_request", Message: "invalid message payload"})
	}

	r.mu.Lock()
	r.received = append(r.received, msg)
	s.name = msg.Sender
	r.mu.Unlock()

	directive, arg := proto.ParseDirective(msg.Message)
	switch directive {
	case proto.DirectiveJoin:
		r.mu.Lock()
		s.channels[arg] = struct{}{}
		r.mu.Unlock()
		if r.manual {
			return nil
		}
		return send(ctx, s, proto.EventJoinChannel, arg)
	case proto.DirectiveQuit:
		r.mu.Lock()
		delete(s.channels, arg)
		r.mu.Unlock()
		if r.manual {
			return nil
		}
		return send(ctx, s, proto.EventLeaveChannel, arg)
	case proto.DirectiveUsers:
		return send(ctx, s, proto.EventUsers, proto.UsersData{Channel: arg, Users: r.roster(arg)})
	default:
		r.broadcast(ctx, msg)
		return nil
	}
}

func (r *Relay) roster(channel string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := []string{}
	for _, s := range r.sessions {
		if _, ok := s.channels[channel]; ok && s.name != "" {
			users = append(users, s.name)
		}
	}
	slices.Sort(users)
	return users
}

func (r *Relay) broadcast(ctx context.Context, msg proto.MessageData) {
	r.mu.Lock()
	targets := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		targets = append(targets, s)
	}
	r.mu.Unlock()

	for _, s := range targets {
		// Drop on slow or closed peers.
		_ = send(ctx, s, proto.EventMessage, msg)
	}
}

func send(ctx context.Context, s *session, event string, data any) error {
	frame, err := proto.NewFrame(event, data)
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, s.conn, frame)
}
