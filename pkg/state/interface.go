package state

import (
	"github.com/google/uuid"
)

// Manager tracks live connections, the users that own them, and the rooms
// those users are subscribed to. It is process-local: a second instance
// behind a load balancer holds its own, independent state.
//
// All mutations go through Register/Deregister/Join/Leave; feature code
// must never reach into the maps directly, so the invariant
// "user online ⇔ connection set non-empty" holds under interleaved
// connect/disconnect bursts.
type Manager interface {
	// --- Connection Lifecycle ---
	// Register binds an authenticated connection to its user, creating the
	// user entry on first contact. Reports whether this was the user's
	// first live connection (the offline-to-online transition).
	Register(conn Transport, userID string) (first bool, err error)
	// Deregister drops a connection. Reports the owning user and whether
	// this was their last live connection (the online-to-offline
	// transition). Unknown connection ids are a no-op.
	Deregister(connID uuid.UUID) (userID string, last bool)
	// CloseAllConnections closes every live transport with the given
	// reason. The transports are snapshotted under the registry lock and
	// closed outside it, so pump goroutines deregistering concurrently
	// never race the iteration. Used by server shutdown.
	CloseAllConnections(reason error)
	GetConnection(connID uuid.UUID) (*Connection, bool)
	FindOldestUserConnection(userID string) (*Connection, bool)

	// --- User Management ---
	IsOnline(userID string) bool
	FindUser(userID string) (*User, bool)
	GetUserConnections(userID string) ([]Transport, error)
	GetUserConnectionCount(userID string) (int, error)
	GetAllUsers() ([]*User, error)

	// --- Room & Membership Management ---
	// Join subscribes a user to a room, creating the room if it doesn't exist.
	Join(userID, roomID string) error
	Leave(userID, roomID string) error
	GetRoomMembers(roomID string) ([]*User, error)
	FindRoom(roomID string) (*Room, bool)
	UserRooms(userID string) []string
}
