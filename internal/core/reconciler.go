package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ChannelRegistrar creates the channel record on the HTTP side before a
// confirmed join is shown locally.
type ChannelRegistrar interface {
	CreateChannel(ctx context.Context, channel, userID string) error
}

// NoticeLevel grades a user-facing notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeWarn
	NoticeError
)

// Notice is a message for the user, e.g. a toast.
type Notice struct {
	Level   NoticeLevel
	Channel string
	Text    string
}

// Notifier delivers notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Reconciler applies the relay's membership pushes to a Membership.
type Reconciler struct {
	members   *Membership
	identity  *Identity
	registrar ChannelRegistrar
	notifier  Notifier
	log       *zerolog.Logger
}

// NewReconciler builds a reconciler. registrar and notifier may be nil.
func NewReconciler(members *Membership, identity *Identity, registrar ChannelRegistrar, notifier Notifier, logger *zerolog.Logger) *Reconciler {
	if notifier == nil {
		notifier = NotifierFunc(func(Notice) {})
	}
	return &Reconciler{
		members:   members,
		identity:  identity,
		registrar: registrar,
		notifier:  notifier,
		log:       logger,
	}
}

// Attach subscribes the reconciler and returns the matching detach function.
func (r *Reconciler) Attach(sub Subscriber) (detach func()) {
	return sub.Subscribe(r.Apply)
}

// Apply is the single entry point for inbound events.
func (r *Reconciler) Apply(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventJoinChannel:
		r.onJoinChannel(ctx, ev.Channel)
	case EventLeaveChannel:
		r.onLeaveChannel(ev.Channel)
	case EventMessage, EventRoster, EventError:
		// Not membership state; the front end renders these.
	default:
		r.log.Warn().Stringer("event", ev.Kind).Msg("unhandled event kind")
	}
}

func (r *Reconciler) onJoinChannel(ctx context.Context, channel string) {
	if channel == "" || r.members.Contains(channel) {
		r.members.release(channel)
		r.log.Debug().Str("channel", channel).Msg("duplicate join ignored")
		return
	}

	if r.registrar != nil {
		if err := r.register(ctx, channel); err != nil {
			r.members.release(channel)
			r.log.Warn().Err(err).Str("channel", channel).Msg("channel registration failed")
			r.notifier.Notify(Notice{Level: NoticeError, Channel: channel, Text: rejectionText(err)})
			return
		}
	}

	if r.members.add(channel) {
		r.log.Info().Str("channel", channel).Msg("joined channel")
		r.notifier.Notify(Notice{Level: NoticeSuccess, Channel: channel, Text: fmt.Sprintf("Joined %s", channel)})
	}
}

func (r *Reconciler) register(ctx context.Context, channel string) error {
	userID := r.identity.UserID()
	if userID == "" {
		return errors.New("user id is not known yet")
	}
	return r.registrar.CreateChannel(ctx, channel, userID)
}

func (r *Reconciler) onLeaveChannel(channel string) {
	if !r.members.remove(channel) {
		r.log.Debug().Str("channel", channel).Msg("leave for unknown channel ignored")
		return
	}
	r.log.Info().Str("channel", channel).Msg("left channel")
	r.notifier.Notify(Notice{Level: NoticeInfo, Channel: channel, Text: fmt.Sprintf("Left %s", channel)})
}

// ExpirePending drops joins the relay never confirmed by now and returns their names.
func (r *Reconciler) ExpirePending(now time.Time) []string {
	expired := r.members.expire(now)
	for _, channel := range expired {
		r.log.Warn().Str("channel", channel).Msg("join timed out")
		r.notifier.Notify(Notice{Level: NoticeWarn, Channel: channel, Text: fmt.Sprintf("Join %s timed out", channel)})
	}
	return expired
}

func rejectionText(err error) string {
	var rejection *RemoteRejection
	if errors.As(err, &rejection) {
		return rejection.Error()
	}
	return err.Error()
}
