package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// DefaultJoinTimeout bounds how long a join may wait for the relay's confirmation.
const DefaultJoinTimeout = 30 * time.Second

// Dispatcher turns user actions into outbound directives. It never changes
// the channel list itself; that waits for the relay's push.
type Dispatcher struct {
	emitter     Emitter
	members     *Membership
	identity    *Identity
	joinTimeout time.Duration
	now         func() time.Time
	log         *zerolog.Logger
}

// NewDispatcher creates a dispatcher emitting through emitter.
func NewDispatcher(emitter Emitter, members *Membership, identity *Identity, joinTimeout time.Duration, logger *zerolog.Logger) *Dispatcher {
	if joinTimeout <= 0 {
		joinTimeout = DefaultJoinTimeout
	}
	return &Dispatcher{
		emitter:     emitter,
		members:     members,
		identity:    identity,
		joinTimeout: joinTimeout,
		now:         time.Now,
		log:         logger,
	}
}

// RequestJoin asks the relay to add the session to a channel.
// It fails with a *ValidationError when the trimmed name is empty, already
// joined, or already pending.
func (d *Dispatcher) RequestJoin(ctx context.Context, channel string) error {
	name, err := d.members.reserve(channel, d.now().Add(d.joinTimeout))
	if err != nil {
		d.log.Debug().Err(err).Str("channel", channel).Msg("join rejected locally")
		return err
	}

	if err := d.emit(ctx, proto.DirectiveJoin.Format(name), ""); err != nil {
		d.members.release(name)
		return err
	}
	d.log.Debug().Str("channel", name).Msg("join requested")
	return nil
}

// SelectChannel makes channel the active one and asks the relay for its roster.
func (d *Dispatcher) SelectChannel(ctx context.Context, channel string) error {
	d.members.Select(channel)
	return d.emit(ctx, proto.DirectiveUsers.Format(channel), "")
}

// RequestLeave asks the relay to remove the session from a typed channel name.
// The command carries the current selection as its channel context.
func (d *Dispatcher) RequestLeave(ctx context.Context, channel string) error {
	name := strings.TrimSpace(channel)
	if name == "" {
		return validationError(ErrCodeEmptyChannel, name, ErrEmptyChannelName)
	}
	return d.RemoveChannel(ctx, name)
}

// RemoveChannel leaves a channel picked from the joined list. The command's
// channel field reports the selected channel, not the one being removed.
func (d *Dispatcher) RemoveChannel(ctx context.Context, channel string) error {
	selected, _ := d.members.Selected()
	if err := d.emit(ctx, proto.DirectiveQuit.Format(channel), selected); err != nil {
		return err
	}
	d.log.Debug().Str("channel", channel).Str("selected", selected).Msg("leave requested")
	return nil
}

func (d *Dispatcher) emit(ctx context.Context, text, channel string) error {
	cmd := Command{
		Sender:  d.identity.Sender(),
		Text:    text,
		Channel: channel,
	}
	if err := d.emitter.Emit(ctx, cmd); err != nil {
		return fmt.Errorf("emit %q: %w", text, err)
	}
	return nil
}
