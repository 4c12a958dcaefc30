package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// terminal renders events and notices as plain lines.
type terminal struct {
	mu  sync.Mutex
	out io.Writer
}

func newTerminal(out io.Writer) *terminal {
	return &terminal{out: out}
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *terminal) event(_ context.Context, ev core.Event) {
	switch ev.Kind {
	case core.EventMessage:
		if ev.Message.Channel != "" {
			t.printf("[%s] %s: %s\n", ev.Message.Channel, ev.Message.Sender, ev.Message.Text)
			return
		}
		t.printf("%s: %s\n", ev.Message.Sender, ev.Message.Text)
	case core.EventRoster:
		t.printf("[%s] users: %s\n", ev.Channel, strings.Join(ev.Users, ", "))
	case core.EventError:
		if ev.Error != nil {
			t.printf("! relay error %s: %s\n", ev.Error.Code, ev.Error.Message)
		}
	}
}

func (t *terminal) notice(n core.Notice) {
	prefix := "*"
	switch n.Level {
	case core.NoticeWarn:
		prefix = "?"
	case core.NoticeError:
		prefix = "!"
	}
	t.printf("%s %s\n", prefix, n.Text)
}

// handleLine routes one line of input: directives drive membership, anything
// else goes out through the composer.
func handleLine(ctx context.Context, client *core.Client, out *terminal, line string) error {
	if strings.TrimSpace(line) == "/channels" {
		printChannels(client, out)
		return nil
	}

	directive, arg := proto.ParseDirective(line)
	switch directive {
	case proto.DirectiveJoin:
		return client.Dispatcher.RequestJoin(ctx, arg)
	case proto.DirectiveQuit:
		return client.Dispatcher.RequestLeave(ctx, arg)
	case proto.DirectiveUsers:
		return client.Dispatcher.SelectChannel(ctx, strings.TrimSpace(arg))
	}

	client.Composer.SetDraft(line)
	return client.Composer.Send(ctx)
}

func printChannels(client *core.Client, out *terminal) {
	selected, _ := client.Members.Selected()
	channels := client.Members.Channels()
	if len(channels) == 0 {
		out.printf("* no channels joined\n")
	}
	for _, ch := range channels {
		marker := " "
		if ch == selected {
			marker = ">"
		}
		out.printf("%s %s\n", marker, ch)
	}
	for _, ch := range client.Members.Pending() {
		out.printf("  %s (pending)\n", ch)
	}
}

func readLines(ctx context.Context, in io.Reader, handle func(string)) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			handle(line)
		}
	}
}
