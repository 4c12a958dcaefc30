package core

import "sync"

// Identity describes the connected session. The username and user id may be
// resolved after the connection is up.
type Identity struct {
	mu        sync.RWMutex
	sessionID string
	userID    string
	username  string
}

// NewIdentity creates an identity for the given session.
func NewIdentity(sessionID string) *Identity {
	return &Identity{sessionID: sessionID}
}

// SessionID returns the relay-assigned session id.
func (i *Identity) SessionID() string {
	return i.sessionID
}

// SetProfile records the resolved profile. Empty values leave the field unchanged.
func (i *Identity) SetProfile(userID, username string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if userID != "" {
		i.userID = userID
	}
	if username != "" {
		i.username = username
	}
}

// UserID returns the resolved user id, or "" while unknown.
func (i *Identity) UserID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.userID
}

// Username returns the resolved username, or "" while unknown.
func (i *Identity) Username() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.username
}

// Sender is the identity field stamped on every outbound command: the
// username once known, the session id before that.
func (i *Identity) Sender() string {
	if name := i.Username(); name != "" {
		return name
	}
	return i.sessionID
}
