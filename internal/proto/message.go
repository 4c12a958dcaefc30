package proto

import (
	"encoding/json"
	"strings"
)

// Frame is the envelope for every message on the relay connection, in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

const (
	// EventConnected is the handshake frame the relay sends first, carrying the session id.
	EventConnected = "connected"
	// EventMessage carries chat content and directives from client to server, and relayed chat back.
	EventMessage = "message"
	// EventJoinChannel confirms the session was added to a channel.
	EventJoinChannel = "joinChannel"
	// EventLeaveChannel confirms the session was removed from a channel.
	EventLeaveChannel = "leaveChannel"
	// EventUsers answers a roster query.
	EventUsers = "users"
	// EventError reports a relay-side failure.
	EventError = "error"
)

// ConnectedData is the payload of the handshake frame.
type ConnectedData struct {
	SID string `json:"sid"`
}

// MessageData is a chat message or directive.
type MessageData struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
	Channel string `json:"channel,omitempty"`
}

// UsersData is the roster of a channel.
type UsersData struct {
	Channel string   `json:"channel"`
	Users   []string `json:"users"`
}

// Error describes a relay-level error.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Directive is a control prefix inside MessageData.Message.
type Directive string

const (
	DirectiveNone  Directive = ""
	DirectiveJoin  Directive = "/join"
	DirectiveUsers Directive = "/users"
	DirectiveQuit  Directive = "/quit"
)

var directives = []Directive{DirectiveJoin, DirectiveUsers, DirectiveQuit}

// Format renders a directive with its argument, e.g. "/join dev".
func (d Directive) Format(arg string) string {
	if d == DirectiveNone {
		return arg
	}
	return string(d) + " " + arg
}

// ParseDirective splits text into a directive and its argument.
// Plain chat returns DirectiveNone and the text unchanged.
func ParseDirective(text string) (Directive, string) {
	for _, d := range directives {
		prefix := string(d) + " "
		if strings.HasPrefix(text, prefix) {
			return d, text[len(prefix):]
		}
	}
	return DirectiveNone, text
}

// NewFrame marshals data into a frame for the given event.
func NewFrame(event string, data any) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: raw}, nil
}
