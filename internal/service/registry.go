package service

import (
	"time"

	"kenalan/internal/models"
)

// EventSender delivers outbound events to a single client. Implementations
// must not block: the websocket transport queues events and drops the
// connection if the queue overflows.
type EventSender interface {
	Send(event models.OutboundEvent)
}

// Connection is the registry record for one live transport connection.
type Connection struct {
	ID      string
	Profile models.Profile
	Sender  EventSender

	// lastEndCall debounces duplicate end-call events from the same side.
	lastEndCall time.Time
}

// Registry maps connection ids to their records. It is the sole source of
// truth for "is this user still connected". Not safe for concurrent use on
// its own; the ChatService serializes access.
type Registry struct {
	conns map[string]*Connection
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Connection),
	}
}

// Upsert creates or overwrites the record for id.
func (r *Registry) Upsert(id string, profile models.Profile, sender EventSender) *Connection {
	conn := &Connection{
		ID:      id,
		Profile: profile,
		Sender:  sender,
	}
	r.conns[id] = conn
	return conn
}

// Get returns the record for id, or nil when the connection is gone.
func (r *Registry) Get(id string) *Connection {
	return r.conns[id]
}

// Remove deletes the record for id. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	delete(r.conns, id)
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	return len(r.conns)
}
