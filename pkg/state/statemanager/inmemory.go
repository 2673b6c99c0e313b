package statemanager

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ideateGudy/chat-backend/pkg/state"
)

// InMemoryManager is the process-local registry implementation. A single
// mutex guards the connection, user and room maps together: the
// online/offline transition must be decided atomically with the map
// mutation, or two connections for the same user closing in overlapping
// windows could both (or neither) report the last-connection transition.
type InMemoryManager struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*state.Connection
	users map[string]*state.User
	rooms map[string]*state.Room

	logger *slog.Logger
}

func NewInMemoryManager(logger *slog.Logger) *InMemoryManager {
	return &InMemoryManager{
		conns:  make(map[uuid.UUID]*state.Connection),
		users:  make(map[string]*state.User),
		rooms:  make(map[string]*state.Room),
		logger: logger.With(slog.String("component", "state_manager_inmemory")),
	}
}

// compile-time check to ensure InMemoryManager implements Manager.
var _ state.Manager = (*InMemoryManager)(nil)

func (m *InMemoryManager) Register(conn state.Transport, userID string) (bool, error) {
	if userID == "" {
		return false, errors.New("cannot register a connection without a user")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	connID := conn.ID()
	if _, exists := m.conns[connID]; exists {
		return false, errors.New("connection is already registered")
	}

	user, exists := m.users[userID]
	if !exists {
		user = &state.User{
			ID:          userID,
			Connections: make(map[uuid.UUID]*state.Connection),
			Rooms:       make(map[string]*state.Room),
		}
		m.users[userID] = user
	}

	first := len(user.Connections) == 0

	now := time.Now()
	newConn := &state.Connection{
		ID:           connID,
		Transport:    conn,
		User:         user,
		CreatedAt:    now,
		LastActivity: now,
	}
	m.conns[connID] = newConn
	user.Connections[connID] = newConn

	m.logger.Debug("Connection registered",
		slog.String("connID", connID.String()),
		slog.String("userID", userID),
		slog.Bool("first", first),
	)
	return first, nil
}

func (m *InMemoryManager) Deregister(connID uuid.UUID) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		// already deregistered; nothing to do
		return "", false
	}
	delete(m.conns, connID)

	user := conn.User
	delete(user.Connections, connID)

	last := len(user.Connections) == 0
	if last {
		// The user went offline: drop their room subscriptions and the
		// user entry itself so the maps never accumulate ghosts.
		for roomID, r := range user.Rooms {
			delete(r.Members, user.ID)
			if len(r.Members) == 0 {
				delete(m.rooms, roomID)
			}
		}
		delete(m.users, user.ID)
	}

	m.logger.Debug("Connection deregistered",
		slog.String("connID", connID.String()),
		slog.String("userID", user.ID),
		slog.Bool("last", last),
	)
	return user.ID, last
}

func (m *InMemoryManager) CloseAllConnections(reason error) {
	m.mu.RLock()
	transports := make([]state.Transport, 0, len(m.conns))
	for _, conn := range m.conns {
		transports = append(transports, conn.Transport)
	}
	m.mu.RUnlock()

	// Close outside the lock: each close re-enters the registry through
	// the deregister callback.
	for _, t := range transports {
		t.Close(reason)
	}
}

func (m *InMemoryManager) GetConnection(connID uuid.UUID) (*state.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[connID]
	return conn, ok
}

func (m *InMemoryManager) FindOldestUserConnection(userID string) (*state.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, false
	}

	var oldestConn *state.Connection
	var oldestTime time.Time

	for _, conn := range user.Connections {
		if oldestConn == nil || conn.CreatedAt.Before(oldestTime) {
			oldestConn = conn
			oldestTime = conn.CreatedAt
		}
	}

	if oldestConn == nil {
		return nil, false // User has no connections.
	}

	return oldestConn, true
}

// --- User Management ---

func (m *InMemoryManager) IsOnline(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	return ok && len(user.Connections) > 0
}

func (m *InMemoryManager) FindUser(userID string) (*state.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[userID]
	return user, ok
}

func (m *InMemoryManager) GetUserConnections(userID string) ([]state.Transport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, errors.New("user not found")
	}

	conns := make([]state.Transport, 0, len(user.Connections))
	for _, c := range user.Connections {
		conns = append(conns, c.Transport)
	}
	return conns, nil
}

func (m *InMemoryManager) GetUserConnectionCount(userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return 0, nil // User doesn't exist yet, so they have 0 connections.
	}
	return len(user.Connections), nil
}

func (m *InMemoryManager) GetAllUsers() ([]*state.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]*state.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	return users, nil
}

// --- Room & Membership Management ---

func (m *InMemoryManager) Join(userID, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return errors.New("cannot join room: user not found")
	}

	// Already subscribed; joining twice is a no-op.
	if _, exists := user.Rooms[roomID]; exists {
		return nil
	}

	room, exists := m.rooms[roomID]
	if !exists {
		room = &state.Room{
			ID:      roomID,
			Members: make(map[string]*state.User),
		}
		m.rooms[roomID] = room
	}

	user.Rooms[roomID] = room
	room.Members[userID] = user

	m.logger.Debug("User joined room", "userID", userID, "roomID", roomID)
	return nil
}

func (m *InMemoryManager) Leave(userID string, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return nil // User doesn't exist, so they can't be in the room.
	}

	room, ok := m.rooms[roomID]
	if !ok {
		return nil // Room doesn't exist.
	}

	delete(user.Rooms, roomID)
	delete(room.Members, userID)

	// For memory hygiene, remove the room if it's now empty.
	if len(room.Members) == 0 {
		delete(m.rooms, roomID)
		m.logger.Debug("Removed empty room", "roomID", roomID)
	}

	m.logger.Debug("User left room", "userID", userID, "roomID", roomID)
	return nil
}

func (m *InMemoryManager) GetRoomMembers(roomID string) ([]*state.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return nil, errors.New("room not found")
	}

	members := make([]*state.User, 0, len(room.Members))
	for _, u := range room.Members {
		members = append(members, u)
	}
	return members, nil
}

func (m *InMemoryManager) FindRoom(roomID string) (*state.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	return room, ok
}

func (m *InMemoryManager) UserRooms(userID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return nil
	}
	rooms := make([]string, 0, len(user.Rooms))
	for id := range user.Rooms {
		rooms = append(rooms, id)
	}
	return rooms
}
