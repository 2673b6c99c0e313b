package state

import (
	"time"

	"github.com/google/uuid"
)

// Transport is the write side of a live connection. *transport.Connection
// satisfies it; tests substitute fakes.
type Transport interface {
	ID() uuid.UUID
	Send(message []byte)
	SendEvent(event string, payload any) error
	Close(err error)
}

// representation of a single transport-layer connection.
type Connection struct {
	ID           uuid.UUID
	Transport    Transport // The actual connection for sending messages
	User         *User     // Pointer to the owning user
	CreatedAt    time.Time
	LastActivity time.Time
}

// canonical representation of a user, aggregating all their connections.
// A user is considered online exactly while Connections is non-empty.
type User struct {
	ID          string
	Connections map[uuid.UUID]*Connection // All active connections for this user
	Rooms       map[string]*Room          // Rooms this user is subscribed to, keyed by room id
}

// canonical representation of a broadcast scope: either a private pair
// room, a group room, or a per-user room.
type Room struct {
	ID      string
	Members map[string]*User // All users subscribed to this room, keyed by user id
}
