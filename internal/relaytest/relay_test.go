package relaytest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

func TestWebSocketHandshake(t *testing.T) {
	relay := Start(t, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, relay.WSURL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	var frame proto.Frame
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read handshake: %v", err)
	}
	if frame.Event != proto.EventConnected {
		t.Fatalf("first event = %q, want %q", frame.Event, proto.EventConnected)
	}
	var data proto.ConnectedData
	if err := json.Unmarshal(frame.Data, &data); err != nil || data.SID == "" {
		t.Fatalf("bad connected payload %s: %v", frame.Data, err)
	}

	sessions := relay.Sessions()
	if len(sessions) != 1 || sessions[0] != data.SID {
		t.Fatalf("sessions = %v, want [%s]", sessions, data.SID)
	}
}

func TestHTTPRoutesShareServer(t *testing.T) {
	relay := Start(t, Options{})

	resp, err := http.Get(relay.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("health = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(relay.URL + "/profile")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("profile without token = %d, want 401", resp.StatusCode)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAcceptFailureIsLogged(t *testing.T) {
	buf := &syncBuffer{}
	logger := zerolog.New(buf)
	relay := Start(t, Options{Logger: &logger})

	resp, err := http.Get(relay.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusSwitchingProtocols {
		t.Fatalf("plain GET must not be upgraded")
	}
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(buf.String(), "ws accept error") {
		if time.Now().After(deadline) {
			t.Fatalf("accept failure not logged: %q", buf.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
