package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ideateGudy/chat-backend/internal/store"
	"github.com/ideateGudy/chat-backend/pkg/room"
)

type createMessageRequest struct {
	ChatType   store.ChatType `json:"chatType"`
	Receiver   string         `json:"receiver,omitempty"`
	GroupID    string         `json:"groupId,omitempty"`
	Body       string         `json:"body"`
	Attachment string         `json:"attachment,omitempty"`
}

// createMessage persists a message exactly like the realtime sendMessage
// event does; the sender is the authenticated caller, never the body.
func (h *Handler) createMessage(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, store.ErrInvalid)
		return
	}

	sender := currentUser(c)
	if req.ChatType == store.ChatTypeGroup {
		if req.GroupID == "" {
			fail(c, store.ErrInvalid)
			return
		}
		// Only members may post into a group, same as the realtime path.
		member, err := h.groups.IsMember(c.Request.Context(), req.GroupID, sender)
		if err != nil {
			fail(c, err)
			return
		}
		if !member {
			fail(c, store.ErrUnauthorized)
			return
		}
	}

	msg := &store.Message{
		ChatType:   req.ChatType,
		SenderID:   sender,
		ReceiverID: req.Receiver,
		GroupID:    req.GroupID,
		Body:       req.Body,
		Attachment: req.Attachment,
	}
	if err := h.messages.Create(c.Request.Context(), msg); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// roomMessages returns one page of a room's history. The caller must
// participate in the room: one of a private pair, or a member of the
// group a group room names, same checks as the realtime fetch paths.
// Fetching promotes the caller's still-undelivered messages in that
// room to DELIVERED.
func (h *Handler) roomMessages(c *gin.Context) {
	roomID := c.Param("roomId")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	ctx := c.Request.Context()
	userID := currentUser(c)

	if groupID, ok := room.ParseGroup(roomID); ok {
		member, err := h.groups.IsMember(ctx, groupID, userID)
		if err != nil {
			fail(c, err)
			return
		}
		if !member {
			fail(c, store.ErrUnauthorized)
			return
		}
	} else if !room.HasParticipant(roomID, userID) {
		fail(c, store.ErrUnauthorized)
		return
	}

	if _, err := h.messages.MarkDeliveredOnFetch(ctx, roomID, userID); err != nil {
		fail(c, err)
		return
	}

	msgs, err := h.messages.RoomMessages(ctx, roomID, page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chatRoomId": roomID,
		"messages":   msgs,
		"page":       page,
		"limit":      limit,
	})
}

func (h *Handler) undeliveredMessages(c *gin.Context) {
	msgs, err := h.messages.Undelivered(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type updateStatusRequest struct {
	Status store.MessageStatus `json:"status"`
}

func (h *Handler) updateMessageStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, store.ErrInvalid)
		return
	}

	msg, err := h.messages.UpdateStatus(c.Request.Context(), c.Param("messageId"), req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

type bulkStatusRequest struct {
	PartnerID string `json:"partnerId"`
}

// bulkMarkDelivered promotes every SENT message from the partner to the
// caller. Idempotent; the response reports how many rows moved.
func (h *Handler) bulkMarkDelivered(c *gin.Context) {
	var req bulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PartnerID == "" {
		fail(c, store.ErrInvalid)
		return
	}

	n, err := h.messages.MarkDelivered(c.Request.Context(), currentUser(c), req.PartnerID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *Handler) bulkMarkRead(c *gin.Context) {
	var req bulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PartnerID == "" {
		fail(c, store.ErrInvalid)
		return
	}

	n, err := h.messages.MarkRead(c.Request.Context(), currentUser(c), req.PartnerID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// chatRooms aggregates the caller's conversation list: every private
// counterpart and every active group, each with its latest message and
// unread count, newest first.
func (h *Handler) chatRooms(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUser(c)

	private, err := h.messages.PrivateRooms(ctx, userID)
	if err != nil {
		fail(c, err)
		return
	}
	groups, err := h.messages.GroupRooms(ctx, userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"private": private,
		"groups":  groups,
	})
}
