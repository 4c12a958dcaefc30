package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Composer holds the staged chat text.
type Composer struct {
	mu       sync.Mutex
	draft    string
	emitter  Emitter
	identity *Identity
}

// NewComposer creates a composer with an empty draft.
func NewComposer(emitter Emitter, identity *Identity) *Composer {
	return &Composer{emitter: emitter, identity: identity}
}

// SetDraft replaces the draft verbatim.
func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

// Draft returns the staged text.
func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Send emits the draft as a chat message and clears it. A blank draft is
// silently ignored. The text is sent untrimmed. The draft is cleared only if
// it was not replaced while the message was in flight.
func (c *Composer) Send(ctx context.Context) error {
	c.mu.Lock()
	text := c.draft
	c.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return nil
	}

	cmd := Command{Sender: c.identity.Sender(), Text: text}
	if err := c.emitter.Emit(ctx, cmd); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	c.mu.Lock()
	if c.draft == text {
		c.draft = ""
	}
	c.mu.Unlock()
	return nil
}
