package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PresenceStore interface {
	// SetOnline marks the user online. LastSeen is left untouched; it
	// records the end of the previous session until the next offline
	// transition.
	SetOnline(ctx context.Context, userID string) error

	// SetOffline marks the user offline and stamps LastSeen with the
	// current time.
	SetOffline(ctx context.Context, userID string) error

	// UpdateLastSeen sets LastSeen to the given time and forces the user
	// offline. A client reporting its own last-seen is by definition not
	// actively connected.
	UpdateLastSeen(ctx context.Context, userID string, at time.Time) (*Presence, error)

	Get(ctx context.Context, userID string) (*Presence, error)
}

type presenceStore struct {
	db    *gorm.DB
	cache *redis.Client
	ttl   time.Duration
}

// NewPresenceStore builds a presence store over postgres with an
// optional redis read cache. A nil client disables caching entirely,
// which is how the tests run.
func NewPresenceStore(db *gorm.DB, cache *redis.Client, ttl time.Duration) PresenceStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &presenceStore{db: db, cache: cache, ttl: ttl}
}

func presenceCacheKey(userID string) string {
	return "presence:" + userID
}

func (s *presenceStore) SetOnline(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalid
	}
	p := Presence{UserID: userID, IsOnline: true}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{"is_online": true}),
		}).
		Create(&p).Error
	if err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *presenceStore) SetOffline(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalid
	}
	now := time.Now().UTC()
	p := Presence{UserID: userID, IsOnline: false, LastSeen: now}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{"is_online": false, "last_seen": now}),
		}).
		Create(&p).Error
	if err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *presenceStore) UpdateLastSeen(ctx context.Context, userID string, at time.Time) (*Presence, error) {
	if userID == "" {
		return nil, ErrInvalid
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	p := Presence{UserID: userID, IsOnline: false, LastSeen: at}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{"is_online": false, "last_seen": at}),
		}).
		Create(&p).Error
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return s.Get(ctx, userID)
}

// Get reads presence through the cache. On a miss it falls back to
// postgres and repopulates the cache; an unknown user is reported as
// offline with a zero last-seen rather than an error.
func (s *presenceStore) Get(ctx context.Context, userID string) (*Presence, error) {
	if userID == "" {
		return nil, ErrInvalid
	}

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, presenceCacheKey(userID)).Result()
		if err == nil {
			var p Presence
			if json.Unmarshal([]byte(raw), &p) == nil {
				return &p, nil
			}
		}
	}

	var p Presence
	err := s.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = Presence{UserID: userID, IsOnline: false}
	} else if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(&p); err == nil {
			// Best effort; a failed cache write only costs a reread.
			s.cache.Set(ctx, presenceCacheKey(userID), raw, s.ttl)
		}
	}
	return &p, nil
}

func (s *presenceStore) invalidate(ctx context.Context, userID string) {
	if s.cache != nil {
		s.cache.Del(ctx, presenceCacheKey(userID))
	}
}
