package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ideateGudy/chat-backend/pkg/room"
)

// PrivateRoomSummary is one entry of the private chat-room list: the
// counterpart, the latest message, how many inbound messages are still
// unread, and the delivery state of the last message the requesting
// user sent (so a sender can see their own message's status).
type PrivateRoomSummary struct {
	ChatRoomID     string        `json:"chatRoomId"`
	PartnerID      string        `json:"partnerId"`
	LastMessage    *Message      `json:"lastMessage,omitempty"`
	UnreadCount    int64         `json:"unreadCount"`
	LastSentStatus MessageStatus `json:"lastSentStatus,omitempty"`
}

// GroupRoomSummary is one entry of the group chat-room list.
type GroupRoomSummary struct {
	ChatRoomID  string   `json:"chatRoomId"`
	GroupID     string   `json:"groupId"`
	GroupName   string   `json:"groupName"`
	LastMessage *Message `json:"lastMessage,omitempty"`
	UnreadCount int64    `json:"unreadCount"`
}

type MessageStore interface {
	Create(ctx context.Context, msg *Message) error
	Get(ctx context.Context, messageID string) (*Message, error)
	RoomMessages(ctx context.Context, roomID string, page, limit int) ([]Message, error)

	// MarkDeliveredOnFetch promotes every SENT message addressed to the
	// user in the room to DELIVERED and returns the ids that moved, so
	// the status broadcast can name the affected messages. Named
	// explicitly so the fetch-side-effect is testable on its own; both
	// fetch paths call it.
	MarkDeliveredOnFetch(ctx context.Context, roomID, userID string) ([]string, error)

	// Reverse-pair bulk transitions: all messages from partner to user.
	// Idempotent; a second call matches nothing.
	MarkDelivered(ctx context.Context, userID, partnerID string) (int64, error)
	MarkRead(ctx context.Context, userID, partnerID string) (int64, error)

	MarkGroupRead(ctx context.Context, messageID, userID string) (*Message, error)
	UpdateStatus(ctx context.Context, messageID string, status MessageStatus) (*Message, error)

	Undelivered(ctx context.Context, userID string) ([]Message, error)
	PrivatePartners(ctx context.Context, userID string) ([]string, error)
	PrivateRooms(ctx context.Context, userID string) ([]PrivateRoomSummary, error)
	GroupRooms(ctx context.Context, userID string) ([]GroupRoomSummary, error)
}

type messageStore struct {
	db *gorm.DB
}

func NewMessageStore(db *gorm.DB) MessageStore {
	return &messageStore{db: db}
}

// Create persists a new message. The id is always assigned here; any
// client-supplied id or room id is overwritten. The sender must already
// be the authenticated identity: callers set it from the credential,
// never from the payload.
func (s *messageStore) Create(ctx context.Context, msg *Message) error {
	switch msg.ChatType {
	case ChatTypePrivate:
		if msg.ReceiverID == "" || msg.GroupID != "" {
			return ErrInvalid
		}
		if msg.ReceiverID == msg.SenderID {
			return ErrInvalid
		}
		msg.ChatRoomID = room.ID(msg.SenderID, msg.ReceiverID)
		msg.ReadBy = nil
	case ChatTypeGroup:
		if msg.GroupID == "" || msg.ReceiverID != "" {
			return ErrInvalid
		}
		msg.ChatRoomID = room.GroupID(msg.GroupID)
		// The sender has trivially read their own message.
		msg.ReadBy = StringList{msg.SenderID}
	default:
		return ErrInvalid
	}
	if msg.Body == "" && msg.Attachment == "" {
		return ErrInvalid
	}

	msg.ID = uuid.New().String()
	msg.Status = StatusSent
	return s.db.WithContext(ctx).Create(msg).Error
}

func (s *messageStore) Get(ctx context.Context, messageID string) (*Message, error) {
	var msg Message
	err := s.db.WithContext(ctx).First(&msg, "id = ?", messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *messageStore) RoomMessages(ctx context.Context, roomID string, page, limit int) ([]Message, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	var messages []Message
	err := s.db.WithContext(ctx).
		Where("chat_room_id = ?", roomID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *messageStore) MarkDeliveredOnFetch(ctx context.Context, roomID, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Select-then-update under a row lock so the promoted set and
		// the returned ids are the same rows.
		if err := tx.Model(&Message{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("chat_room_id = ? AND receiver_id = ? AND status = ?", roomID, userID, StatusSent).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&Message{}).
			Where("id IN ?", ids).
			Update("status", StatusDelivered).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *messageStore) MarkDelivered(ctx context.Context, userID, partnerID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Message{}).
		Where("sender_id = ? AND receiver_id = ? AND status = ?", partnerID, userID, StatusSent).
		Update("status", StatusDelivered)
	return res.RowsAffected, res.Error
}

func (s *messageStore) MarkRead(ctx context.Context, userID, partnerID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Message{}).
		Where("sender_id = ? AND receiver_id = ? AND status IN ?", partnerID, userID,
			[]MessageStatus{StatusSent, StatusDelivered}).
		Update("status", StatusRead)
	return res.RowsAffected, res.Error
}

// MarkGroupRead adds the user to the message's readBy set. Status is
// promoted to READ as soon as any single member reads the message; a
// per-member read-by-all model was considered and deliberately not
// adopted to keep the observed behaviour.
func (s *messageStore) MarkGroupRead(ctx context.Context, messageID, userID string) (*Message, error) {
	var msg Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Row-locked read: two members reading concurrently must not
		// overwrite each other's readBy append.
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&msg, "id = ?", messageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if msg.ChatType != ChatTypeGroup {
			return ErrInvalid
		}
		if msg.ReadBy.Contains(userID) {
			return nil // already read by this user
		}
		msg.ReadBy = append(msg.ReadBy, userID)
		msg.Status = StatusRead
		return tx.Model(&Message{}).Where("id = ?", messageID).
			Updates(map[string]any{"read_by": msg.ReadBy, "status": msg.Status}).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateStatus applies a forward-only transition. A regressing update
// matches no rows and leaves the message untouched.
func (s *messageStore) UpdateStatus(ctx context.Context, messageID string, status MessageStatus) (*Message, error) {
	if status.rank() < 0 {
		return nil, ErrInvalid
	}

	var eligible []MessageStatus
	switch status {
	case StatusDelivered:
		eligible = []MessageStatus{StatusSent}
	case StatusRead:
		eligible = []MessageStatus{StatusSent, StatusDelivered}
	case StatusSent:
		// Nothing below sent; a no-op by definition.
		return s.Get(ctx, messageID)
	}

	res := s.db.WithContext(ctx).Model(&Message{}).
		Where("id = ? AND status IN ?", messageID, eligible).
		Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	return s.Get(ctx, messageID)
}

func (s *messageStore) Undelivered(ctx context.Context, userID string) ([]Message, error) {
	var messages []Message
	err := s.db.WithContext(ctx).
		Where("receiver_id = ? AND status = ?", userID, StatusSent).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

func (s *messageStore) PrivatePartners(ctx context.Context, userID string) ([]string, error) {
	var partners []string
	err := s.db.WithContext(ctx).Model(&Message{}).
		Distinct().
		Select("CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END", userID).
		Where("chat_type = ? AND (sender_id = ? OR receiver_id = ?)", ChatTypePrivate, userID, userID).
		Scan(&partners).Error
	return partners, err
}

func (s *messageStore) PrivateRooms(ctx context.Context, userID string) ([]PrivateRoomSummary, error) {
	partners, err := s.PrivatePartners(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]PrivateRoomSummary, 0, len(partners))
	for _, partner := range partners {
		roomID := room.ID(userID, partner)
		entry := PrivateRoomSummary{ChatRoomID: roomID, PartnerID: partner}

		var last Message
		err := s.db.WithContext(ctx).
			Where("chat_room_id = ?", roomID).
			Order("created_at DESC").
			First(&last).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err == nil {
			entry.LastMessage = &last
		}

		if err := s.db.WithContext(ctx).Model(&Message{}).
			Where("chat_room_id = ? AND receiver_id = ? AND status <> ?", roomID, userID, StatusRead).
			Count(&entry.UnreadCount).Error; err != nil {
			return nil, err
		}

		var lastSent Message
		err = s.db.WithContext(ctx).
			Where("chat_room_id = ? AND sender_id = ?", roomID, userID).
			Order("created_at DESC").
			First(&lastSent).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err == nil {
			entry.LastSentStatus = lastSent.Status
		}

		summaries = append(summaries, entry)
	}

	sortSummariesByLatest(summaries)
	return summaries, nil
}

func (s *messageStore) GroupRooms(ctx context.Context, userID string) ([]GroupRoomSummary, error) {
	var groups []Group
	err := s.db.WithContext(ctx).
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ? AND groups.is_active = ?", userID, true).
		Find(&groups).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]GroupRoomSummary, 0, len(groups))
	for _, g := range groups {
		roomID := room.GroupID(g.ID)
		entry := GroupRoomSummary{ChatRoomID: roomID, GroupID: g.ID, GroupName: g.Name}

		var last Message
		err := s.db.WithContext(ctx).
			Where("chat_room_id = ?", roomID).
			Order("created_at DESC").
			First(&last).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err == nil {
			entry.LastMessage = &last
		}

		// Unread: group messages from others whose readBy set does not
		// contain this user. The set is a JSON array of quoted ids, so a
		// LIKE on the quoted id is exact enough.
		if err := s.db.WithContext(ctx).Model(&Message{}).
			Where("chat_room_id = ? AND sender_id <> ? AND read_by NOT LIKE ?",
				roomID, userID, `%"`+userID+`"%`).
			Count(&entry.UnreadCount).Error; err != nil {
			return nil, err
		}

		summaries = append(summaries, entry)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return latestTime(summaries[i].LastMessage).After(latestTime(summaries[j].LastMessage))
	})
	return summaries, nil
}

func sortSummariesByLatest(summaries []PrivateRoomSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return latestTime(summaries[i].LastMessage).After(latestTime(summaries[j].LastMessage))
	})
}

// latestTime treats a conversation with no messages as older than any
// conversation that has one.
func latestTime(m *Message) time.Time {
	if m == nil {
		return time.Time{}
	}
	return m.CreatedAt
}
