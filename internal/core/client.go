package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often a mounted client checks for timed-out joins.
const DefaultSweepInterval = time.Second

// Options configures a Client.
type Options struct {
	JoinTimeout   time.Duration
	SweepInterval time.Duration
	Registrar     ChannelRegistrar
	Notifier      Notifier
}

// Client is the chat state of one connection as seen by the front end.
type Client struct {
	Identity   *Identity
	Members    *Membership
	Dispatcher *Dispatcher
	Reconciler *Reconciler
	Composer   *Composer

	conn          Conn
	sweepInterval time.Duration
	log           *zerolog.Logger
}

// NewClient constructs the client components around conn.
func NewClient(conn Conn, opts Options, logger *zerolog.Logger) *Client {
	identity := NewIdentity(conn.SessionID())
	members := NewMembership()

	sweep := opts.SweepInterval
	if sweep <= 0 {
		sweep = DefaultSweepInterval
	}

	return &Client{
		Identity:      identity,
		Members:       members,
		Dispatcher:    NewDispatcher(conn, members, identity, opts.JoinTimeout, logger),
		Reconciler:    NewReconciler(members, identity, opts.Registrar, opts.Notifier, logger),
		Composer:      NewComposer(conn, identity),
		conn:          conn,
		sweepInterval: sweep,
		log:           logger,
	}
}

// Mount attaches the reconciler to the connection and starts expiring
// pending joins. The returned unmount stops the sweeper and detaches the
// reconciler; it is safe to call more than once.
func (c *Client) Mount(ctx context.Context) (unmount func()) {
	detach := c.Reconciler.Attach(c.conn)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.sweep(ctx)
	}()

	c.log.Debug().Str("session_id", c.Identity.SessionID()).Msg("client mounted")

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
			detach()
			c.log.Debug().Str("session_id", c.Identity.SessionID()).Msg("client unmounted")
		})
	}
}

// Run mounts the client until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	unmount := c.Mount(ctx)
	defer unmount()
	<-ctx.Done()
}

func (c *Client) sweep(ctx context.Context) {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.Reconciler.ExpirePending(now)
		}
	}
}
