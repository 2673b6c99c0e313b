package gateway

import (
	"time"

	"github.com/ideateGudy/chat-backend/internal/store"
)

// Inbound event names. Each maps to exactly one typed payload below;
// anything else is rejected at the boundary with an error event.
const (
	EventSendMessage       = "sendMessage"
	EventMessageDelivered  = "messageDelivered"
	EventMessageRead       = "messageRead"
	EventFetchMessages     = "fetchMessages"
	EventGetGroupMessages  = "getGroupMessages"
	EventUserTyping        = "userTyping"
	EventUserStoppedTyping = "userStoppedTyping"
	EventGetUserStatus     = "getUserStatus"
	EventUpdateLastSeen    = "updateLastSeen"
	EventJoinPrivateChat   = "joinPrivateChat"
	EventLeavePrivateChat  = "leavePrivateChat"
	EventJoinGroup         = "joinGroup"
	EventLeaveGroup        = "leaveGroup"
)

// Outbound event names.
const (
	EventMessageReceived      = "messageReceived"
	EventGroupMessageReceived = "groupMessageReceived"
	EventMessageSent          = "messageSent"
	EventMessageStatus        = "messageStatus"
	EventMessagesFetched      = "messagesFetched"
	EventGroupMessagesFetched = "groupMessagesFetched"
	EventUserStatus           = "userStatus"
	EventUserOnline           = "userOnline"
	EventUserOffline          = "userOffline"
	EventUserJoinedChat       = "userJoinedChat"
	EventUserLeftChat         = "userLeftChat"
	EventUserJoinedGroup      = "userJoinedGroup"
	EventUserLeftGroup        = "userLeftGroup"
	EventError                = "error"
)

type sendMessagePayload struct {
	ChatType   store.ChatType `json:"chatType"`
	Receiver   string         `json:"receiver,omitempty"`
	GroupID    string         `json:"groupId,omitempty"`
	Body       string         `json:"body"`
	Attachment string         `json:"attachment,omitempty"`
}

type messageDeliveredPayload struct {
	MessageID string `json:"messageId"`
}

type messageReadPayload struct {
	MessageID string `json:"messageId"`
	GroupID   string `json:"groupId,omitempty"`
}

type fetchMessagesPayload struct {
	SenderID   string `json:"senderId,omitempty"`
	ReceiverID string `json:"receiverId,omitempty"`
	GroupID    string `json:"groupId,omitempty"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
}

type typingPayload struct {
	ChatRoomID string `json:"chatRoomId,omitempty"`
	GroupID    string `json:"groupId,omitempty"`
}

type userStatusQueryPayload struct {
	UserID string `json:"userId"`
}

type roomMembershipPayload struct {
	ChatRoomID string `json:"chatRoomId,omitempty"`
	GroupID    string `json:"groupId,omitempty"`
}

// Outbound payloads.

type messageSentPayload struct {
	MessageID string `json:"messageId"`
}

// messageStatusPayload carries a single-message transition when
// MessageID is set, or a bulk transition when MessageIDs lists the
// affected messages (the fetch-triggers-delivered path, which also
// names the room the bulk applies to).
type messageStatusPayload struct {
	MessageID  string              `json:"messageId,omitempty"`
	MessageIDs []string            `json:"messageIds,omitempty"`
	ChatRoomID string              `json:"chatRoomId,omitempty"`
	Status     store.MessageStatus `json:"status"`
	ReadBy     store.StringList    `json:"readBy,omitempty"`
}

type messagesFetchedPayload struct {
	ChatRoomID string          `json:"chatRoomId"`
	Messages   []store.Message `json:"messages"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
}

type userStatusPayload struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

type presenceChangePayload struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

type membershipChangePayload struct {
	ChatRoomID string `json:"chatRoomId,omitempty"`
	GroupID    string `json:"groupId,omitempty"`
	UserID     string `json:"userId"`
}

type typingBroadcastPayload struct {
	ChatRoomID string `json:"chatRoomId"`
	UserID     string `json:"userId"`
}

type errorPayload struct {
	Message string `json:"message"`
}
