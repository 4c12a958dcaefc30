package core

import "context"

// EventKind is a notification the relay pushes to the client.
type EventKind int

const (
	// EventJoinChannel confirms the session was added to a channel.
	EventJoinChannel EventKind = iota
	// EventLeaveChannel confirms the session was removed from a channel.
	EventLeaveChannel
	// EventMessage relays chat content.
	EventMessage
	// EventRoster answers a roster query for a channel.
	EventRoster
	// EventError reports a relay-side error.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventJoinChannel:
		return "join_channel"
	case EventLeaveChannel:
		return "leave_channel"
	case EventMessage:
		return "message"
	case EventRoster:
		return "roster"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one inbound push, already decoded by the transport.
type Event struct {
	Kind    EventKind
	Channel string
	Message Message  // EventMessage
	Users   []string // EventRoster
	Error   *RelayError
}

// Message is a chat message relayed by the server.
type Message struct {
	Sender  string
	Text    string
	Channel string
}

// RelayError is an error reported by the relay.
type RelayError struct {
	Code    string
	Message string
}

// Handler receives inbound events in delivery order.
type Handler func(ctx context.Context, ev Event)

// Subscriber is the inbound half of a connection.
type Subscriber interface {
	// Subscribe registers h and returns a function removing exactly that registration.
	Subscribe(h Handler) (unsubscribe func())
}

// Emitter is the outbound half of a connection.
type Emitter interface {
	Emit(ctx context.Context, cmd Command) error
}

// Conn is the connection handle the core talks through.
type Conn interface {
	Emitter
	Subscriber
	SessionID() string
}
