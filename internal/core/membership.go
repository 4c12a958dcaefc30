package core

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Membership holds the channels the session belongs to, in join order, plus
// the selected channel and the joins still awaiting confirmation.
// The channel list changes only through add and remove, which the Reconciler
// calls when the relay confirms a join or leave.
type Membership struct {
	mu       sync.Mutex
	channels []string
	selected string
	pending  map[string]time.Time
}

// NewMembership constructs an empty membership store.
func NewMembership() *Membership {
	return &Membership{
		pending: make(map[string]time.Time),
	}
}

// Channels returns a copy of the joined channels in join order.
func (m *Membership) Channels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.channels)
}

// Contains reports whether name is a joined channel.
func (m *Membership) Contains(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.channels, name)
}

// Selected returns the active channel, if any.
func (m *Membership) Selected() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected, m.selected != ""
}

// Select sets the active channel. Membership is not checked.
func (m *Membership) Select(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = name
}

// Pending returns the channels with an unconfirmed join, sorted by name.
func (m *Membership) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.pending))
	for name := range m.pending {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsPending reports whether a join for name awaits confirmation.
func (m *Membership) IsPending(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[name]
	return ok
}

// reserve validates a join request and marks it pending until deadline.
// It returns the trimmed name.
func (m *Membership) reserve(raw string, deadline time.Time) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", validationError(ErrCodeEmptyChannel, name, ErrEmptyChannelName)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.Contains(m.channels, name) {
		return "", validationError(ErrCodeAlreadyJoined, name, ErrAlreadyJoined)
	}
	if _, ok := m.pending[name]; ok {
		return "", validationError(ErrCodeJoinPending, name, ErrJoinPending)
	}
	m.pending[name] = deadline
	return name, nil
}

// release drops the pending marker for name. Returns true if one existed.
func (m *Membership) release(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[name]; !ok {
		return false
	}
	delete(m.pending, name)
	return true
}

// expire drops pending joins whose deadline is not after now and returns them sorted.
func (m *Membership) expire(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []string
	for name, deadline := range m.pending {
		if !deadline.After(now) {
			expired = append(expired, name)
			delete(m.pending, name)
		}
	}
	slices.Sort(expired)
	return expired
}

// add appends name and clears its pending marker. Returns true if newly added.
func (m *Membership) add(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, name)
	if slices.Contains(m.channels, name) {
		return false
	}
	m.channels = append(m.channels, name)
	return true
}

// remove deletes name in place, keeping the order of the rest, and clears the
// selection if it pointed at name. Returns true if removed.
func (m *Membership) remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := slices.Index(m.channels, name)
	if idx < 0 {
		return false
	}
	m.channels = slices.Delete(m.channels, idx, idx+1)
	if m.selected == name {
		m.selected = ""
	}
	return true
}
