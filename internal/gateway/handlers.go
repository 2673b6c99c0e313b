package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ideateGudy/chat-backend/internal/store"
	"github.com/ideateGudy/chat-backend/pkg/room"
	"github.com/ideateGudy/chat-backend/pkg/state"
)

func decode(payload []byte, v any) error {
	if len(payload) == 0 {
		return store.ErrInvalid
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalid, err)
	}
	return nil
}

// handleSendMessage persists and fans out a new message. The sender is
// always the connection's authenticated identity; there is no sender
// field in the payload to trust in the first place.
func (g *Gateway) handleSendMessage(ctx context.Context, conn *state.Connection, payload []byte) error {
	var p sendMessagePayload
	if err := decode(payload, &p); err != nil {
		return err
	}

	userID := conn.User.ID
	if p.ChatType == store.ChatTypeGroup {
		if p.GroupID == "" {
			return store.ErrInvalid
		}
		// Only members may post into a group.
		member, err := g.groups.IsMember(ctx, p.GroupID, userID)
		if err != nil {
			return err
		}
		if !member {
			return store.ErrUnauthorized
		}
	}

	msg := &store.Message{
		ChatType:   p.ChatType,
		SenderID:   userID,
		ReceiverID: p.Receiver,
		GroupID:    p.GroupID,
		Body:       p.Body,
		Attachment: p.Attachment,
	}
	if err := g.messages.Create(ctx, msg); err != nil {
		return err
	}

	// A first message creates the conversation; make sure the sender is
	// subscribed before fanning out.
	if err := g.state.Join(userID, msg.ChatRoomID); err != nil {
		g.logger.Warn("failed to join room on send", "userID", userID, "roomID", msg.ChatRoomID, "error", err)
	}

	if err := conn.Transport.SendEvent(EventMessageSent, messageSentPayload{MessageID: msg.ID}); err != nil {
		g.logger.Warn("failed to ack send", "connID", conn.ID, "error", err)
	}

	switch msg.ChatType {
	case store.ChatTypePrivate:
		g.broadcastRoom(msg.ChatRoomID, EventMessageReceived, msg)
		// A receiver who never opened this conversation is not in the
		// room yet; reach their devices through their personal room.
		if !g.roomHasMember(msg.ChatRoomID, msg.ReceiverID) {
			g.sendToUser(msg.ReceiverID, EventMessageReceived, msg)
		}
	case store.ChatTypeGroup:
		g.broadcastRoom(msg.ChatRoomID, EventGroupMessageReceived, msg)
	}
	return nil
}

func (g *Gateway) roomHasMember(roomID, userID string) bool {
	members, err := g.state.GetRoomMembers(roomID)
	if err != nil {
		return false
	}
	for _, m := range members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

func (g *Gateway) handleMessageDelivered(ctx context.Context, conn *state.Connection, payload []byte) error {
	var p messageDeliveredPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if p.MessageID == "" {
		return store.ErrInvalid
	}

	msg, err := g.messages.UpdateStatus(ctx, p.MessageID, store.StatusDelivered)
	if err != nil {
		return err
	}
	g.broadcastRoom(msg.ChatRoomID, EventMessageStatus, messageStatusPayload{
		MessageID: msg.ID,
		Status:    msg.Status,
	})
	return nil
}

func (g *Gateway) handleMessageRead(ctx context.Context, conn *state.Connection, payload []byte) error {
	var p messageReadPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if p.MessageID == "" {
		return store.ErrInvalid
	}

	userID := conn.User.ID

	var msg *store.Message
	var err error
	if p.GroupID != "" {
		msg, err = g.messages.MarkGroupRead(ctx, p.MessageID, userID)
	} else {
		msg, err = g.messages.Get(ctx, p.MessageID)
		if err != nil {
			return err
		}
		if msg.ChatType == store.ChatTypeGroup {
			msg, err = g.messages.MarkGroupRead(ctx, p.MessageID, userID)
		} else {
			msg, err = g.messages.UpdateStatus(ctx, p.MessageID, store.StatusRead)
		}
	}
	if err != nil {
		return err
	}

	g.broadcastRoom(msg.ChatRoomID, EventMessageStatus, messageStatusPayload{
		MessageID: msg.ID,
		Status:    msg.Status,
		ReadBy:    msg.ReadBy,
	})
	return nil
}

// handleFetchMessages returns a page of a private conversation. Any
// still-undelivered inbound messages in the room become DELIVERED as a
// named side effect, and the transition is announced to the room.
func (g *Gateway) handleFetchMessages(ctx context.Context, conn *state.Connection, payload []byte) error {
	var p fetchMessagesPayload
	if err := decode(payload, &p); err != nil {
		return err
	}

	userID := conn.User.ID
	partner := p.SenderID
	if partner == "" || partner == userID {
		partner = p.ReceiverID
	}
	if partner == "" || partner == userID {
		return store.ErrInvalid
	}
	roomID := room.ID(userID, partner)

	promoted, err := g.messages.MarkDeliveredOnFetch(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if len(promoted) > 0 {
		g.broadcastRoom(roomID, EventMessageStatus, messageStatusPayload{
			MessageIDs: promoted,
			ChatRoomID: roomID,
			Status:     store.StatusDelivered,
		})
	}

	msgs, err := g.messages.RoomMessages(ctx, roomID, p.Page, p.Limit)
	if err != nil {
		return err
	}
	return conn.Transport.SendEvent(EventMessagesFetched, messagesFetchedPayload{
		ChatRoomID: roomID,
		Messages:   msgs,
		Page:       p.Page,
		Limit:      p.Limit,
	})
}

func (g *Gateway) handleGetGroupMessages(ctx context.Context, conn *state.Connection, payload []byte) error {
	var p fetchMessagesPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if p.GroupID == "" {
		return store.ErrInvalid
	}

	userID := conn.User.ID
	member, err := g.groups.IsMember(ctx, p.GroupID, userID)
	if err != nil {
		return err
	}
	if !member {
		return store.ErrUnauthorized
	}

	roomID := room.GroupID(p.GroupID)
	msgs, err := g.messages.RoomMessages(ctx, roomID, p.Page, p.Limit)
	if err != nil {
		return err
	}
	return conn.Transport.SendEvent(EventGroupMessagesFetched, messagesFetchedPayload{
		ChatRoomID: roomID,
		Messages:   msgs,
		Page:       p.Page,
		Limit:      p.Limit,
	})
}

// typingHandler rebroadcasts a typing signal to the room it names. The
// same handler serves start and stop; only the event name differs.
func (g *Gateway) typingHandler(event string) handlerFunc {
	return func(ctx context.Context, conn *state.Connection, payload []byte) error {
		var p typingPayload
		if err := decode(payload, &p); err != nil {
			return err
		}

		roomID := p.ChatRoomID
		if roomID == "" && p.GroupID != "" {
			roomID = room.GroupID(p.GroupID)
		}
		if roomID == "" {
			return store.ErrInvalid
		}

		g.broadcastRoom(roomID, event, typingBroadcastPayload{
			ChatRoomID: roomID,
			UserID:     conn.User.ID,
		})
		return nil
	}
}

func (g *Gateway) handleGetUserStatus(ctx context.Context, conn *state.Connection, payload []byte) error {
	var p userStatusQueryPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if p.UserID == "" {
		return store.ErrInvalid
	}

	presence, err := g.presence.Get(ctx, p.UserID)
	if err != nil {
		return err
	}

	out := userStatusPayload{UserID: presence.UserID, IsOnline: presence.IsOnline}
	if !presence.LastSeen.IsZero() {
		out.LastSeen = &presence.LastSeen
	}
	return conn.Transport.SendEvent(EventUserStatus, out)
}

func (g *Gateway) handleUpdateLastSeen(ctx context.Context, conn *state.Connection, payload []byte) error {
	userID := conn.User.ID
	presence, err := g.presence.UpdateLastSeen(ctx, userID, time.Now().UTC())
	if err != nil {
		return err
	}

	out := userStatusPayload{UserID: userID, IsOnline: presence.IsOnline}
	if !presence.LastSeen.IsZero() {
		out.LastSeen = &presence.LastSeen
	}
	return conn.Transport.SendEvent(EventUserStatus, out)
}

func (g *Gateway) handleJoinPrivateChat(ctx context.Context, conn *state.Connection, payload []byte) error {
	var p roomMembershipPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if p.ChatRoomID == "" {
		return store.ErrInvalid
	}

	userID := conn.User.ID
	if err := g.state.Join(userID, p.ChatRoomID); err != nil {
		return err
	}
	g.broadcastRoom(p.ChatRoomID, EventUserJoinedChat, membershipChangePayload{
		ChatRoomID: p.ChatRoomID,
		UserID:     userID,
	})
	return nil
}

func (g *Gateway) handleLeavePrivateChat(ctx context.Context, conn *state.Connection, payload []byte) error {
	var p roomMembershipPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if p.ChatRoomID == "" {
		return store.ErrInvalid
	}

	userID := conn.User.ID
	if err := g.state.Leave(userID, p.ChatRoomID); err != nil {
		return err
	}
	g.broadcastRoom(p.ChatRoomID, EventUserLeftChat, membershipChangePayload{
		ChatRoomID: p.ChatRoomID,
		UserID:     userID,
	})
	return nil
}

func (g *Gateway) handleJoinGroup(ctx context.Context, conn *state.Connection, payload []byte) error {
	var p roomMembershipPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if p.GroupID == "" {
		return store.ErrInvalid
	}

	userID := conn.User.ID
	member, err := g.groups.IsMember(ctx, p.GroupID, userID)
	if err != nil {
		return err
	}
	if !member {
		return store.ErrUnauthorized
	}

	roomID := room.GroupID(p.GroupID)
	if err := g.state.Join(userID, roomID); err != nil {
		return err
	}
	g.broadcastRoom(roomID, EventUserJoinedGroup, membershipChangePayload{
		GroupID: p.GroupID,
		UserID:  userID,
	})
	return nil
}

func (g *Gateway) handleLeaveGroup(ctx context.Context, conn *state.Connection, payload []byte) error {
	var p roomMembershipPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if p.GroupID == "" {
		return store.ErrInvalid
	}

	userID := conn.User.ID
	roomID := room.GroupID(p.GroupID)
	if err := g.state.Leave(userID, roomID); err != nil {
		return err
	}
	g.broadcastRoom(roomID, EventUserLeftGroup, membershipChangePayload{
		GroupID: p.GroupID,
		UserID:  userID,
	})
	return nil
}
