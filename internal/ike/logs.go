package ike

import (
	"sync"

	"vpnsim/internal/ike/message"
	"vpnsim/internal/ike/types"
)

// Log capacities. Oldest entries are dropped first.
const (
	MessageLogCap = 1000
	EventLogCap   = 500
)

// MessageLog is an append-only bounded buffer of exchanged IKE messages.
type MessageLog struct {
	mtx      sync.RWMutex
	capacity int
	entries  []*message.IKEMessage
}

func NewMessageLog(capacity int) *MessageLog {
	return &MessageLog{capacity: capacity}
}

func (l *MessageLog) Append(m *message.IKEMessage) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.entries = append(l.entries, m)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
}

func (l *MessageLog) All() []*message.IKEMessage {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	out := make([]*message.IKEMessage, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *MessageLog) Filter(pred func(*message.IKEMessage) bool) []*message.IKEMessage {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	var out []*message.IKEMessage
	for _, m := range l.entries {
		if pred(m) {
			out = append(out, m)
		}
	}
	return out
}

func (l *MessageLog) Recent(n int) []*message.IKEMessage {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]*message.IKEMessage, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

func (l *MessageLog) Len() int {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	return len(l.entries)
}

func (l *MessageLog) Clear() {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.entries = nil
}

// EventLog is the bounded buffer of narrative VPN events.
type EventLog struct {
	mtx      sync.RWMutex
	capacity int
	entries  []*types.VPNEvent
}

func NewEventLog(capacity int) *EventLog {
	return &EventLog{capacity: capacity}
}

func (l *EventLog) Append(e *types.VPNEvent) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.entries = append(l.entries, e)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
}

func (l *EventLog) All() []*types.VPNEvent {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	out := make([]*types.VPNEvent, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *EventLog) Filter(pred func(*types.VPNEvent) bool) []*types.VPNEvent {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	var out []*types.VPNEvent
	for _, e := range l.entries {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

func (l *EventLog) Recent(n int) []*types.VPNEvent {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]*types.VPNEvent, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

func (l *EventLog) Len() int {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	return len(l.entries)
}

func (l *EventLog) Clear() {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.entries = nil
}
