package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/vovakirdan/wirechat-client/internal/core"
	applog "github.com/vovakirdan/wirechat-client/internal/log"
	"github.com/vovakirdan/wirechat-client/internal/transport/ws"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

// run joins a channel on a live relay, relays one message and leaves again.
func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "tester", "username to send as")
	channel := flag.String("channel", "general", "channel name")
	text := flag.String("text", "hello from smoke test", "message text to send")
	token := flag.String("token", "", "bearer token")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger := applog.New("warn")
	conn, err := ws.Dial(ctx, *addr, ws.DialOptions{Token: *token}, logger)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	notices := make(chan core.Notice, 8)
	client := core.NewClient(conn, core.Options{
		Notifier: core.NotifierFunc(func(n core.Notice) { notices <- n }),
	}, logger)
	client.Identity.SetProfile("", *user)

	echoed := make(chan core.Message, 1)
	unsubscribe := conn.Subscribe(func(_ context.Context, ev core.Event) {
		if ev.Kind == core.EventMessage && ev.Message.Text == *text {
			select {
			case echoed <- ev.Message:
			default:
			}
		}
	})
	defer unsubscribe()

	unmount := client.Mount(ctx)
	defer unmount()

	fmt.Printf("Connected as %s (session %s)\n", *user, conn.SessionID())

	if err := client.Dispatcher.RequestJoin(ctx, *channel); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	if err := awaitNotice(ctx, notices, core.NoticeSuccess); err != nil {
		return fmt.Errorf("join %s: %w", *channel, err)
	}
	fmt.Printf("Joined %s\n", *channel)

	client.Composer.SetDraft(*text)
	if err := client.Composer.Send(ctx); err != nil {
		return err
	}
	select {
	case msg := <-echoed:
		fmt.Printf("Relayed: sender=%s text=%q\n", msg.Sender, msg.Text)
	case <-ctx.Done():
		return fmt.Errorf("waiting for relayed message: %w", ctx.Err())
	}

	if err := client.Dispatcher.RequestLeave(ctx, *channel); err != nil {
		return fmt.Errorf("leave: %w", err)
	}
	if err := awaitNotice(ctx, notices, core.NoticeInfo); err != nil {
		return fmt.Errorf("leave %s: %w", *channel, err)
	}
	fmt.Printf("Left %s\n", *channel)
	return nil
}

func awaitNotice(ctx context.Context, notices <-chan core.Notice, want core.NoticeLevel) error {
	for {
		select {
		case n := <-notices:
			if n.Level == want {
				return nil
			}
			if n.Level == core.NoticeError || n.Level == core.NoticeWarn {
				return errors.New(n.Text)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
