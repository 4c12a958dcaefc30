package ws

import (
	"encoding/json"
	"fmt"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

func frameFromCommand(cmd core.Command) (proto.Frame, error) {
	return proto.NewFrame(proto.EventMessage, proto.MessageData{
		Sender:  cmd.Sender,
		Message: cmd.Text,
		Channel: cmd.Channel,
	})
}

// eventFromFrame decodes an inbound frame. ok is false for events the client
// does not know.
func eventFromFrame(frame proto.Frame) (ev core.Event, ok bool, err error) {
	switch frame.Event {
	case proto.EventJoinChannel, proto.EventLeaveChannel:
		var channel string
		if err := json.Unmarshal(frame.Data, &channel); err != nil {
			return core.Event{}, false, fmt.Errorf("decode %s: %w", frame.Event, err)
		}
		kind := core.EventJoinChannel
		if frame.Event == proto.EventLeaveChannel {
			kind = core.EventLeaveChannel
		}
		return core.Event{Kind: kind, Channel: channel}, true, nil
	case proto.EventMessage:
		var msg proto.MessageData
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			return core.Event{}, false, fmt.Errorf("decode message: %w", err)
		}
		return core.Event{
			Kind:    core.EventMessage,
			Channel: msg.Channel,
			Message: core.Message{
				Sender:  msg.Sender,
				Text:    msg.Message,
				Channel: msg.Channel,
			},
		}, true, nil
	case proto.EventUsers:
		var users proto.UsersData
		if err := json.Unmarshal(frame.Data, &users); err != nil {
			return core.Event{}, false, fmt.Errorf("decode users: %w", err)
		}
		return core.Event{Kind: core.EventRoster, Channel: users.Channel, Users: users.Users}, true, nil
	case proto.EventError:
		var relayErr proto.Error
		if err := json.Unmarshal(frame.Data, &relayErr); err != nil {
			return core.Event{}, false, fmt.Errorf("decode error: %w", err)
		}
		return core.Event{
			Kind:  core.EventError,
			Error: &core.RelayError{Code: relayErr.Code, Message: relayErr.Message},
		}, true, nil
	default:
		return core.Event{}, false, nil
	}
}
