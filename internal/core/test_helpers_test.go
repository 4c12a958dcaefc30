package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var errEmitFailed = errors.New("emit failed")

// fakeConn records emitted commands and lets tests push events.
type fakeConn struct {
	mu       sync.Mutex
	sid      string
	sent     []Command
	handlers map[int]Handler
	nextID   int
	failEmit bool
}

func newFakeConn(sid string) *fakeConn {
	return &fakeConn{sid: sid, handlers: make(map[int]Handler)}
}

func (f *fakeConn) SessionID() string { return f.sid }

func (f *fakeConn) Emit(_ context.Context, cmd Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEmit {
		return errEmitFailed
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeConn) Subscribe(h Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.handlers[id] = h
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}
}

func (f *fakeConn) push(ctx context.Context, ev Event) {
	f.mu.Lock()
	handlers := make([]Handler, 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(ctx, ev)
	}
}

func (f *fakeConn) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeConn) commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.sent...)
}

// fakeRegistrar records channel creations and fails for names in reject.
type fakeRegistrar struct {
	mu      sync.Mutex
	created []string
	reject  map[string]string
}

func (r *fakeRegistrar) CreateChannel(_ context.Context, channel, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg, ok := r.reject[channel]; ok {
		return &RemoteRejection{Status: 409, Message: msg}
	}
	r.created = append(r.created, channel)
	return nil
}

// noticeRecorder collects notices.
type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *noticeRecorder) Notify(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *noticeRecorder) all() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}

func nopLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func joinEvent(channel string) Event  { return Event{Kind: EventJoinChannel, Channel: channel} }
func leaveEvent(channel string) Event { return Event{Kind: EventLeaveChannel, Channel: channel} }

func assertChannels(t *testing.T, m *Membership, want ...string) {
	t.Helper()

	got := m.Channels()
	if len(got) != len(want) {
		t.Fatalf("channels = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("channels = %v, want %v", got, want)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
