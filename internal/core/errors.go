package core

import (
	"errors"
	"fmt"
)

// Error codes for local validation failures.
const (
	ErrCodeEmptyChannel   = "empty_channel"
	ErrCodeAlreadyJoined  = "already_joined"
	ErrCodeJoinPending    = "join_pending"
	ErrCodeRemoteRejected = "remote_rejected"
)

var (
	ErrEmptyChannelName = errors.New("empty channel name")
	ErrAlreadyJoined    = errors.New("already joined")
	ErrJoinPending      = errors.New("join pending")
)

// ValidationError is a recoverable, user-facing rejection of a local action.
// No state changed and nothing was sent.
type ValidationError struct {
	Code    string
	Channel string
	Err     error
}

func (e *ValidationError) Error() string {
	switch e.Code {
	case ErrCodeEmptyChannel:
		return "please enter a channel name"
	case ErrCodeAlreadyJoined:
		return fmt.Sprintf("%s already exists", e.Channel)
	case ErrCodeJoinPending:
		return fmt.Sprintf("join %s is already pending", e.Channel)
	default:
		return e.Err.Error()
	}
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func validationError(code, channel string, err error) *ValidationError {
	return &ValidationError{Code: code, Channel: channel, Err: err}
}

// RemoteRejection is a failed call to the HTTP collaborator. Message is the
// server-supplied text shown to the user.
type RemoteRejection struct {
	Status  int
	Message string
}

func (e *RemoteRejection) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request rejected with status %d", e.Status)
	}
	return e.Message
}
