package store

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GroupStore interface {
	Create(ctx context.Context, g *Group) error
	Get(ctx context.Context, groupID string) (*Group, error)
	Update(ctx context.Context, groupID string, name, description, avatar *string) (*Group, error)
	Deactivate(ctx context.Context, groupID, actorID string) error
	Search(ctx context.Context, query string) ([]Group, error)

	AddMember(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	Members(ctx context.Context, groupID string) ([]GroupMember, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	IsAdmin(ctx context.Context, groupID, userID string) (bool, error)
	MemberGroups(ctx context.Context, userID string) ([]Group, error)

	RevokeInviteCode(ctx context.Context, groupID, actorID string) (string, error)
	JoinByInviteCode(ctx context.Context, code, userID string) (*Group, error)
}

type groupStore struct {
	db *gorm.DB
}

func NewGroupStore(db *gorm.DB) GroupStore {
	return &groupStore{db: db}
}

// Create persists a new group. The creator is seeded as both member and
// admin in the same transaction, so the invariant holds from birth.
func (s *groupStore) Create(ctx context.Context, g *Group) error {
	if g.Name == "" || g.CreatedBy == "" {
		return ErrInvalid
	}

	g.ID = uuid.New().String()
	g.IsActive = true
	g.InviteCode = newInviteCode()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Group{}).Where("name = ?", g.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrConflict
		}

		if err := tx.Create(g).Error; err != nil {
			return err
		}

		creator := GroupMember{GroupID: g.ID, UserID: g.CreatedBy, IsAdmin: true}
		return tx.Create(&creator).Error
	})
}

func (s *groupStore) Get(ctx context.Context, groupID string) (*Group, error) {
	var g Group
	err := s.db.WithContext(ctx).First(&g, "id = ? AND is_active = ?", groupID, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *groupStore) Update(ctx context.Context, groupID string, name, description, avatar *string) (*Group, error) {
	updates := map[string]any{}
	if name != nil {
		updates["name"] = *name
	}
	if description != nil {
		updates["description"] = *description
	}
	if avatar != nil {
		updates["avatar"] = *avatar
	}
	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&Group{}).
			Where("id = ? AND is_active = ?", groupID, true).
			Updates(updates)
		if res.Error != nil {
			if strings.Contains(res.Error.Error(), "duplicate") || strings.Contains(res.Error.Error(), "unique") {
				return nil, ErrConflict
			}
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.Get(ctx, groupID)
}

// Deactivate soft-deletes the group. Admin-only; rows are never
// physically removed.
func (s *groupStore) Deactivate(ctx context.Context, groupID, actorID string) error {
	admin, err := s.IsAdmin(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrUnauthorized
	}

	res := s.db.WithContext(ctx).Model(&Group{}).
		Where("id = ? AND is_active = ?", groupID, true).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *groupStore) Search(ctx context.Context, query string) ([]Group, error) {
	var groups []Group
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND name LIKE ?", true, "%"+query+"%").
		Order("name ASC").
		Find(&groups).Error
	return groups, err
}

// AddMember is an idempotent set insert: adding an existing member
// changes nothing.
func (s *groupStore) AddMember(ctx context.Context, groupID, userID string) error {
	if _, err := s.Get(ctx, groupID); err != nil {
		return err
	}
	member := GroupMember{GroupID: groupID, UserID: userID}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&member).Error
}

// RemoveMember removes the membership row, which also revokes any admin
// bit. Removing a non-member is a no-op.
func (s *groupStore) RemoveMember(ctx context.Context, groupID, userID string) error {
	return s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&GroupMember{}).Error
}

func (s *groupStore) Members(ctx context.Context, groupID string) ([]GroupMember, error) {
	var members []GroupMember
	err := s.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Find(&members).Error
	return members, err
}

func (s *groupStore) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

func (s *groupStore) IsAdmin(ctx context.Context, groupID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&GroupMember{}).
		Where("group_id = ? AND user_id = ? AND is_admin = ?", groupID, userID, true).
		Count(&count).Error
	return count > 0, err
}

func (s *groupStore) MemberGroups(ctx context.Context, userID string) ([]Group, error) {
	var groups []Group
	err := s.db.WithContext(ctx).
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ? AND groups.is_active = ?", userID, true).
		Find(&groups).Error
	return groups, err
}

// RevokeInviteCode rotates the group's invite code. Admin-only: a
// non-admin member gets ErrUnauthorized. Joins with the old code fail
// with ErrNotFound afterwards.
func (s *groupStore) RevokeInviteCode(ctx context.Context, groupID, actorID string) (string, error) {
	admin, err := s.IsAdmin(ctx, groupID, actorID)
	if err != nil {
		return "", err
	}
	if !admin {
		return "", ErrUnauthorized
	}

	code := newInviteCode()
	res := s.db.WithContext(ctx).Model(&Group{}).
		Where("id = ? AND is_active = ?", groupID, true).
		Update("invite_code", code)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", ErrNotFound
	}
	return code, nil
}

// JoinByInviteCode adds the user to the group the code belongs to. An
// unknown or inactive code is ErrNotFound; joining a group the user is
// already in is an explicit ErrConflict, not a silent no-op.
func (s *groupStore) JoinByInviteCode(ctx context.Context, code, userID string) (*Group, error) {
	if code == "" {
		return nil, ErrNotFound
	}

	var g Group
	err := s.db.WithContext(ctx).
		First(&g, "invite_code = ? AND is_active = ?", code, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	member, err := s.IsMember(ctx, g.ID, userID)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, ErrConflict
	}

	if err := s.db.WithContext(ctx).
		Create(&GroupMember{GroupID: g.ID, UserID: userID}).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func newInviteCode() string {
	// Short opaque token; uuid gives enough entropy for a revocable code.
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}
