package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/ideateGudy/chat-backend/internal/store"
	"github.com/ideateGudy/chat-backend/pkg/room"
	"github.com/ideateGudy/chat-backend/pkg/state"
)

// handlerFunc processes one inbound event for an authenticated
// connection. A returned error is reported to the origin as a scoped
// error event; it never tears down the connection.
type handlerFunc func(ctx context.Context, conn *state.Connection, payload []byte) error

// Gateway is the realtime protocol layer: it owns the mapping from
// named events to handlers and multiplexes store mutations out to room
// subscribers. Connections reach it only after authentication.
type Gateway struct {
	logger   *slog.Logger
	state    state.Manager
	messages store.MessageStore
	groups   store.GroupStore
	presence store.PresenceStore

	handlers map[string]handlerFunc
}

func New(logger *slog.Logger, sm state.Manager, messages store.MessageStore, groups store.GroupStore, presence store.PresenceStore) *Gateway {
	g := &Gateway{
		logger:   logger.With(slog.String("component", "gateway")),
		state:    sm,
		messages: messages,
		groups:   groups,
		presence: presence,
	}
	g.handlers = map[string]handlerFunc{
		EventSendMessage:       g.handleSendMessage,
		EventMessageDelivered:  g.handleMessageDelivered,
		EventMessageRead:       g.handleMessageRead,
		EventFetchMessages:     g.handleFetchMessages,
		EventGetGroupMessages:  g.handleGetGroupMessages,
		EventUserTyping:        g.typingHandler(EventUserTyping),
		EventUserStoppedTyping: g.typingHandler(EventUserStoppedTyping),
		EventGetUserStatus:     g.handleGetUserStatus,
		EventUpdateLastSeen:    g.handleUpdateLastSeen,
		EventJoinPrivateChat:   g.handleJoinPrivateChat,
		EventLeavePrivateChat:  g.handleLeavePrivateChat,
		EventJoinGroup:         g.handleJoinGroup,
		EventLeaveGroup:        g.handleLeaveGroup,
	}
	return g
}

// Attach registers an authenticated connection, subscribes it to every
// room the user participates in and, on the user's first connection,
// flips them online and announces it. Subscription lookups are best
// effort: a failed roster read is logged and skipped so the connection
// still comes up with whatever rooms resolved.
func (g *Gateway) Attach(ctx context.Context, conn state.Transport, userID string) error {
	first, err := g.state.Register(conn, userID)
	if err != nil {
		return err
	}

	// Every user gets a personal room so origin-addressed events reach
	// all of their devices.
	if err := g.state.Join(userID, room.UserID(userID)); err != nil {
		g.logger.Warn("failed to join personal room", "userID", userID, "error", err)
	}

	partners, err := g.messages.PrivatePartners(ctx, userID)
	if err != nil {
		g.logger.Warn("partner lookup failed, continuing without private rooms", "userID", userID, "error", err)
	}
	for _, partner := range partners {
		if err := g.state.Join(userID, room.ID(userID, partner)); err != nil {
			g.logger.Warn("failed to join private room", "userID", userID, "partner", partner, "error", err)
		}
	}

	memberGroups, err := g.groups.MemberGroups(ctx, userID)
	if err != nil {
		g.logger.Warn("group roster lookup failed, continuing without group rooms", "userID", userID, "error", err)
	}
	for _, grp := range memberGroups {
		if err := g.state.Join(userID, room.GroupID(grp.ID)); err != nil {
			g.logger.Warn("failed to join group room", "userID", userID, "groupID", grp.ID, "error", err)
		}
	}

	if first {
		if err := g.presence.SetOnline(ctx, userID); err != nil {
			g.logger.Error("failed to persist online transition", "userID", userID, "error", err)
		}
		g.broadcastGlobal(EventUserOnline, presenceChangePayload{UserID: userID, IsOnline: true})
	}

	g.logger.Info("connection attached",
		slog.String("connID", conn.ID().String()),
		slog.String("userID", userID),
		slog.Bool("first", first),
	)
	return nil
}

// Disconnect drops a connection from the registry. On the user's last
// connection it persists the offline transition with a fresh last-seen
// and announces it. Store failures are logged only; there is no caller
// left to report them to.
func (g *Gateway) Disconnect(ctx context.Context, connID uuid.UUID) {
	userID, last := g.state.Deregister(connID)
	if userID == "" {
		return
	}
	if !last {
		return
	}

	if err := g.presence.SetOffline(ctx, userID); err != nil {
		g.logger.Error("failed to persist offline transition", "userID", userID, "error", err)
	}

	var lastSeen *time.Time
	if p, err := g.presence.Get(ctx, userID); err == nil && !p.LastSeen.IsZero() {
		lastSeen = &p.LastSeen
	}
	g.broadcastGlobal(EventUserOffline, presenceChangePayload{UserID: userID, IsOnline: false, LastSeen: lastSeen})

	g.logger.Info("user went offline", slog.String("userID", userID))
}

// HandleMessage dispatches one inbound frame. Unknown events and
// handler failures are converted into an error event to the origin,
// never a dropped connection.
func (g *Gateway) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	conn, ok := g.state.GetConnection(connID)
	if !ok {
		g.logger.Warn("frame from unregistered connection", "connID", connID)
		return
	}

	if !gjson.ValidBytes(msg) {
		g.sendError(conn, "malformed frame")
		return
	}
	event := gjson.GetBytes(msg, "event").String()
	if event == "" {
		g.sendError(conn, "missing event name")
		return
	}

	handler, ok := g.handlers[event]
	if !ok {
		g.logger.Warn("received unknown event", "event", event, "connID", connID)
		g.sendError(conn, "unknown event: "+event)
		return
	}

	payload := []byte(gjson.GetBytes(msg, "payload").Raw)
	g.logger.Debug("dispatching event", slog.String("event", event), slog.Any("connID", connID))
	if err := handler(ctx, conn, payload); err != nil {
		g.logger.Warn("event handler failed", "event", event, "connID", connID, "error", err)
		g.sendError(conn, userFacing(err))
	}
}

// broadcastRoom sends an event to every connection of every user
// subscribed to the room. A room nobody is subscribed to is not an
// error; the event simply has no audience.
func (g *Gateway) broadcastRoom(roomID, event string, payload any) {
	members, err := g.state.GetRoomMembers(roomID)
	if err != nil {
		return
	}
	for _, member := range members {
		g.sendToUser(member.ID, event, payload)
	}
}

// broadcastGlobal sends an event to every live connection.
func (g *Gateway) broadcastGlobal(event string, payload any) {
	users, err := g.state.GetAllUsers()
	if err != nil {
		return
	}
	for _, u := range users {
		g.sendToUser(u.ID, event, payload)
	}
}

// sendToUser delivers an event to all of a user's connections. Offline
// users are skipped silently; durable delivery is the store's job.
func (g *Gateway) sendToUser(userID, event string, payload any) {
	conns, err := g.state.GetUserConnections(userID)
	if err != nil {
		return
	}
	for _, c := range conns {
		if err := c.SendEvent(event, payload); err != nil {
			g.logger.Warn("failed to send event", "event", event, "userID", userID, "error", err)
		}
	}
}

func (g *Gateway) sendError(conn *state.Connection, msg string) {
	if err := conn.Transport.SendEvent(EventError, errorPayload{Message: msg}); err != nil {
		g.logger.Warn("failed to send error event", "connID", conn.ID, "error", err)
	}
}

// userFacing maps store errors onto messages safe to echo to a client.
func userFacing(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "not found"
	case errors.Is(err, store.ErrConflict):
		return "conflict"
	case errors.Is(err, store.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, store.ErrInvalid):
		return "invalid request"
	default:
		return "internal error"
	}
}
