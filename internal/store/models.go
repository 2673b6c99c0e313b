package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type ChatType string

const (
	ChatTypePrivate ChatType = "private"
	ChatTypeGroup   ChatType = "group"
)

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// rank orders statuses for the forward-only transition guard.
func (s MessageStatus) rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	default:
		return -1
	}
}

// StringList stores a JSON-encoded string set in a text column. Used for
// the group-message readBy set, which only ever grows.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for StringList", value)
	}
	return json.Unmarshal(raw, l)
}

// Contains reports whether the list holds the given element.
func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

// Message is a chat message, private or group. The id is always
// server-generated; status only ever moves forward and read_by only grows.
type Message struct {
	ID         string        `gorm:"primaryKey;type:varchar(64)" json:"messageId"`
	ChatRoomID string        `gorm:"not null;index" json:"chatRoomId"`
	ChatType   ChatType      `gorm:"not null;type:varchar(16)" json:"chatType"`
	SenderID   string        `gorm:"not null;index" json:"sender"`
	ReceiverID string        `gorm:"index" json:"receiver,omitempty"`
	GroupID    string        `gorm:"index" json:"groupId,omitempty"`
	Body       string        `gorm:"type:text;not null" json:"body"`
	Attachment string        `gorm:"type:text" json:"attachment,omitempty"`
	Status     MessageStatus `gorm:"not null;type:varchar(16);default:'sent'" json:"status"`
	ReadBy     StringList    `gorm:"type:text" json:"readBy,omitempty"`
	CreatedAt  time.Time     `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt  time.Time     `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Group is a persistent group chat. Deletion is a soft delete via
// IsActive; membership lives in GroupMember rows.
type Group struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)" json:"groupId"`
	Name        string    `gorm:"not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Avatar      string    `gorm:"type:text" json:"avatar,omitempty"`
	CreatedBy   string    `gorm:"not null;index" json:"createdBy"`
	IsActive    bool      `gorm:"not null;default:true" json:"isActive"`
	InviteCode  string    `gorm:"index" json:"inviteCode,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// GroupMember is one user's membership in a group. Admins are members
// with the flag set, so an admin is always a member by construction.
type GroupMember struct {
	GroupID   string    `gorm:"primaryKey;type:varchar(64)" json:"groupId"`
	UserID    string    `gorm:"primaryKey;type:varchar(64);index" json:"userId"`
	IsAdmin   bool      `gorm:"not null" json:"isAdmin"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

// Presence is the durable online flag and last-seen timestamp for a
// user. The identity subsystem owns the user record itself; this row is
// mutated only through the PresenceStore.
type Presence struct {
	UserID    string    `gorm:"primaryKey;type:varchar(64)" json:"userId"`
	IsOnline  bool      `gorm:"not null" json:"isOnline"`
	LastSeen  time.Time `json:"lastSeen"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`
}
