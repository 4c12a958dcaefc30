package app

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/relaytest"
)

type noticeLog struct {
	mu      sync.Mutex
	notices []core.Notice
}

func (n *noticeLog) Notify(notice core.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *noticeLog) has(level core.NoticeLevel, text string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, notice := range n.notices {
		if notice.Level == level && notice.Text == text {
			return true
		}
	}
	return false
}

func (n *noticeLog) texts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	texts := make([]string, 0, len(n.notices))
	for _, notice := range n.notices {
		texts = append(texts, notice.Text)
	}
	return texts
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testConfig(relay *relaytest.Relay, token string) config.Config {
	cfg := config.Default()
	cfg.ServerURL = relay.WSURL()
	cfg.APIURL = relay.URL
	cfg.Token = token
	cfg.SweepInterval = 20 * time.Millisecond
	return cfg
}

// startApp runs an app until the test ends and returns it once mounted.
func startApp(t *testing.T, cfg config.Config, notifier core.Notifier) *App {
	t.Helper()

	logger := zerolog.Nop()
	ctx, cancel := context.WithCancel(context.Background())

	application, err := New(ctx, cfg, notifier, &logger)
	if err != nil {
		cancel()
		t.Fatalf("new app: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- application.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("run returned error: %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Errorf("run did not stop")
		}
	})

	<-application.Ready()
	return application
}

func TestJoinSelectLeaveRoundTrip(t *testing.T) {
	relay := relaytest.Start(t, relaytest.Options{})
	notices := &noticeLog{}
	application := startApp(t, testConfig(relay, relay.Token(t, "42", "alice")), notices)
	client := application.Client()
	ctx := context.Background()

	waitFor(t, "profile", func() bool { return client.Identity.Username() == "alice" })

	if err := client.Dispatcher.RequestJoin(ctx, "dev"); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	waitFor(t, "join confirmation", func() bool { return client.Members.Contains("dev") })

	if client.Members.IsPending("dev") {
		t.Fatalf("dev still pending after confirmation")
	}
	waitFor(t, "success notice", func() bool { return notices.has(core.NoticeSuccess, "Joined dev") })
	channels, err := relay.Channels(ctx)
	if err != nil || !slices.Contains(channels, "dev") {
		t.Fatalf("channel not registered over HTTP: %v %v", channels, err)
	}

	if err := client.Dispatcher.SelectChannel(ctx, "dev"); err != nil {
		t.Fatalf("SelectChannel: %v", err)
	}
	if err := client.Dispatcher.RequestLeave(ctx, "dev"); err != nil {
		t.Fatalf("RequestLeave: %v", err)
	}
	waitFor(t, "leave confirmation", func() bool { return !client.Members.Contains("dev") })

	if sel, ok := client.Members.Selected(); ok {
		t.Fatalf("selection should be cleared after leaving it, got %q", sel)
	}

	received := relay.Received()
	var texts []string
	for _, msg := range received {
		if msg.Sender != "alice" {
			t.Fatalf("unexpected sender: %+v", msg)
		}
		texts = append(texts, msg.Message)
	}
	want := []string{"/join dev", "/users dev", "/quit dev"}
	if !slices.Equal(texts, want) {
		t.Fatalf("relay received %v, want %v", texts, want)
	}
	if received[2].Channel != "dev" {
		t.Fatalf("leave should carry the selected channel, got %+v", received[2])
	}
}

func TestSecondUserJoinsExistingChannel(t *testing.T) {
	relay := relaytest.Start(t, relaytest.Options{})
	ctx := context.Background()

	alice := startApp(t, testConfig(relay, relay.Token(t, "42", "alice")), nil).Client()
	waitFor(t, "alice profile", func() bool { return alice.Identity.UserID() == "42" })
	if err := alice.Dispatcher.RequestJoin(ctx, "dev"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	waitFor(t, "alice joined", func() bool { return alice.Members.Contains("dev") })

	notices := &noticeLog{}
	bob := startApp(t, testConfig(relay, relay.Token(t, "7", "bob")), notices).Client()
	waitFor(t, "bob profile", func() bool { return bob.Identity.UserID() == "7" })
	if err := bob.Dispatcher.RequestJoin(ctx, "dev"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	waitFor(t, "bob joined", func() bool { return bob.Members.Contains("dev") })

	waitFor(t, "bob success notice", func() bool { return notices.has(core.NoticeSuccess, "Joined dev") })
	members, err := relay.Members(ctx, "dev")
	if err != nil || !slices.Equal(members, []string{"42", "7"}) {
		t.Fatalf("unexpected relay members: %v (%v)", members, err)
	}
}

func TestLeaveThenRejoin(t *testing.T) {
	relay := relaytest.Start(t, relaytest.Options{})
	notices := &noticeLog{}
	client := startApp(t, testConfig(relay, relay.Token(t, "42", "alice")), notices).Client()
	ctx := context.Background()

	waitFor(t, "profile", func() bool { return client.Identity.UserID() == "42" })

	if err := client.Dispatcher.RequestJoin(ctx, "dev"); err != nil {
		t.Fatalf("join: %v", err)
	}
	waitFor(t, "first join", func() bool { return client.Members.Contains("dev") })

	if err := client.Dispatcher.RequestLeave(ctx, "dev"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	waitFor(t, "leave", func() bool { return !client.Members.Contains("dev") })

	if err := client.Dispatcher.RequestJoin(ctx, "dev"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	waitFor(t, "rejoin", func() bool { return client.Members.Contains("dev") })

	want := []string{"Joined dev", "Left dev", "Joined dev"}
	waitFor(t, "rejoin notices", func() bool { return len(notices.texts()) >= len(want) })
	if got := notices.texts(); !slices.Equal(got, want) {
		t.Fatalf("notices = %v, want %v", got, want)
	}
}

func TestRegistrationRejectionKeepsChannelOut(t *testing.T) {
	relay := relaytest.Start(t, relaytest.Options{})
	ctx := context.Background()

	if err := relay.CloseChannel(ctx, "dev"); err != nil {
		t.Fatalf("close channel: %v", err)
	}

	notices := &noticeLog{}
	client := startApp(t, testConfig(relay, relay.Token(t, "42", "alice")), notices).Client()
	waitFor(t, "profile", func() bool { return client.Identity.UserID() == "42" })
	if err := client.Dispatcher.RequestJoin(ctx, "dev"); err != nil {
		t.Fatalf("join: %v", err)
	}

	waitFor(t, "rejection notice", func() bool { return notices.has(core.NoticeError, "Channel dev is closed") })
	if client.Members.Contains("dev") || client.Members.IsPending("dev") {
		t.Fatalf("rejected channel must not be joined or pending")
	}
}

func TestComposerRelaysChat(t *testing.T) {
	relay := relaytest.Start(t, relaytest.Options{})
	cfg := testConfig(relay, "")
	cfg.APIURL = ""
	cfg.Username = "carol"
	application := startApp(t, cfg, nil)
	ctx := context.Background()

	var mu sync.Mutex
	var relayed []core.Message
	unsubscribe := application.Subscribe(func(_ context.Context, ev core.Event) {
		if ev.Kind != core.EventMessage {
			return
		}
		mu.Lock()
		relayed = append(relayed, ev.Message)
		mu.Unlock()
	})
	defer unsubscribe()

	composer := application.Client().Composer
	composer.SetDraft("  hello  ")
	if err := composer.Send(ctx); err != nil {
		t.Fatalf("send: %v", err)
	}
	if composer.Draft() != "" {
		t.Fatalf("draft not cleared")
	}

	waitFor(t, "relayed message", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(relayed) == 1
	})
	mu.Lock()
	defer mu.Unlock()
	if relayed[0].Text != "  hello  " || relayed[0].Sender != "carol" {
		t.Fatalf("unexpected relayed message: %+v", relayed[0])
	}
}

func TestPendingJoinTimesOut(t *testing.T) {
	relay := relaytest.Start(t, relaytest.Options{ManualConfirm: true})
	cfg := testConfig(relay, "")
	cfg.APIURL = ""
	cfg.Username = "dave"
	cfg.JoinTimeout = 50 * time.Millisecond
	notices := &noticeLog{}
	client := startApp(t, cfg, notices).Client()

	if err := client.Dispatcher.RequestJoin(context.Background(), "dev"); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}

	waitFor(t, "timeout notice", func() bool { return notices.has(core.NoticeWarn, "Join dev timed out") })
	if client.Members.IsPending("dev") || client.Members.Contains("dev") {
		t.Fatalf("timed out join must leave no trace")
	}
}

func TestNewFailsWithoutRelay(t *testing.T) {
	cfg := config.Default()
	cfg.ServerURL = "ws://127.0.0.1:1/ws"
	cfg.DialTimeout = 500 * time.Millisecond
	logger := zerolog.Nop()

	if _, err := New(context.Background(), cfg, nil, &logger); err == nil {
		t.Fatalf("expected dial error")
	}
}
